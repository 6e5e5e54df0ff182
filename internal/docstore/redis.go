package docstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps each document as a hash at its key; set-valued fields live
// in sibling sets at "<key>#<field>". The conditional primitives run as Lua
// scripts so each stays atomic on its single key.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client in the Store contract.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

var clampedDecrementScript = redis.NewScript(`
local v = tonumber(redis.call('HGET', KEYS[1], ARGV[1])) or 0
v = v - tonumber(ARGV[2])
if v < 0 then v = 0 end
redis.call('HSET', KEYS[1], ARGV[1], v)
return v
`)

var incrementOnceScript = redis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[3]) == 1 then
  redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
  if KEYS[3] ~= '' then
    redis.call('SADD', KEYS[3], ARGV[3])
  end
  return 1
end
redis.call('HSETNX', KEYS[1], ARGV[1], 0)
return 0
`)

var setMaxScript = redis.NewScript(`
local v = tonumber(redis.call('HGET', KEYS[1], ARGV[1])) or 0
local n = tonumber(ARGV[2])
if n > v then
  redis.call('HSET', KEYS[1], ARGV[1], n)
  return n
end
return v
`)

func setKey(key, field string) string {
	return key + "#" + field
}

func (s *redisStore) Increment(ctx context.Context, key, field string, delta int64) (int64, error) {
	value, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s.%s: %w", key, field, err)
	}
	return value, nil
}

func (s *redisStore) ClampedDecrement(ctx context.Context, key, field string, delta int64) (int64, error) {
	value, err := clampedDecrementScript.Run(ctx, s.client, []string{key}, field, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("clamped decrement %s.%s: %w", key, field, err)
	}
	return value, nil
}

func (s *redisStore) IncrementOnce(ctx context.Context, key, field string, delta int64, guardField, unionField, member string) (bool, error) {
	union := ""
	if unionField != "" {
		union = setKey(key, unionField)
	}
	applied, err := incrementOnceScript.Run(ctx, s.client, []string{key, setKey(key, guardField), union}, field, delta, member).Int64()
	if err != nil {
		return false, fmt.Errorf("increment once %s.%s: %w", key, field, err)
	}
	return applied == 1, nil
}

func (s *redisStore) SetMax(ctx context.Context, key, field string, value int64) (int64, error) {
	result, err := setMaxScript.Run(ctx, s.client, []string{key}, field, value).Int64()
	if err != nil {
		return 0, fmt.Errorf("set max %s.%s: %w", key, field, err)
	}
	return result, nil
}

func (s *redisStore) UnionAdd(ctx context.Context, key, field string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(members))
	for _, member := range members {
		args = append(args, member)
	}
	if err := s.client.SAdd(ctx, setKey(key, field), args...).Err(); err != nil {
		return fmt.Errorf("union add %s.%s: %w", key, field, err)
	}
	return nil
}

func (s *redisStore) UnionRemove(ctx context.Context, key, field string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(members))
	for _, member := range members {
		args = append(args, member)
	}
	if err := s.client.SRem(ctx, setKey(key, field), args...).Err(); err != nil {
		return fmt.Errorf("union remove %s.%s: %w", key, field, err)
	}
	return nil
}

func (s *redisStore) MergeSet(ctx context.Context, key string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("merge set %s: %w", key, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (Document, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return Document(values), nil
}

func (s *redisStore) Members(ctx context.Context, key, field string) ([]string, error) {
	members, err := s.client.SMembers(ctx, setKey(key, field)).Result()
	if err != nil {
		return nil, fmt.Errorf("members %s.%s: %w", key, field, err)
	}
	return members, nil
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n > 0, nil
}
