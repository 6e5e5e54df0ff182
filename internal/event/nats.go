package event

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const queueGroup = "activity-sync"

// FollowUpSource subscribes to follow-up change events on NATS and feeds
// them to a Consumer. It is the adapter between the hosting queue and the
// transport-agnostic processor.
type FollowUpSource struct {
	conn     *nats.Conn
	subject  string
	consumer Consumer
	logger   zerolog.Logger
}

// NewFollowUpSource constructs the subscriber adapter.
func NewFollowUpSource(conn *nats.Conn, subject string, consumer Consumer, logger zerolog.Logger) *FollowUpSource {
	return &FollowUpSource{
		conn:     conn,
		subject:  subject,
		consumer: consumer,
		logger:   logger.With().Str("component", "followup_source").Logger(),
	}
}

// Start subscribes and drains the subscription when ctx is cancelled. A
// handler error is logged and the message is left to the queue's redelivery;
// every processor write is idempotent, so replays converge.
func (s *FollowUpSource) Start(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(s.subject, queueGroup, func(msg *nats.Msg) {
		var evt FollowUpEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			s.logger.Warn().Err(err).Msg("invalid follow-up event payload")
			return
		}

		if err := s.consumer.Handle(ctx, evt); err != nil {
			s.logger.Error().
				Err(err).
				Str("group_id", evt.GroupID).
				Str("action_step_id", evt.ActionStepID).
				Str("follow_up_id", evt.FollowUpID).
				Msg("follow-up event handling failed")
		}
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain follow-up subscription")
		}
	}()

	return nil
}

// NATSBadgeQueue publishes and consumes badge recomputation tasks.
type NATSBadgeQueue struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSBadgeQueue constructs the badge task queue.
func NewNATSBadgeQueue(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSBadgeQueue {
	return &NATSBadgeQueue{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "badge_queue").Logger(),
	}
}

// PublishBadgeTask enqueues a badge recomputation task.
func (q *NATSBadgeQueue) PublishBadgeTask(ctx context.Context, task BadgeTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.conn.Publish(q.subject, payload)
}

// Consume subscribes the given handler to badge tasks until ctx is cancelled.
func (q *NATSBadgeQueue) Consume(ctx context.Context, handle func(ctx context.Context, task BadgeTask)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		var task BadgeTask
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			q.logger.Warn().Err(err).Msg("invalid badge task payload")
			return
		}
		handle(ctx, task)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			q.logger.Warn().Err(err).Msg("failed to drain badge task subscription")
		}
	}()

	return nil
}
