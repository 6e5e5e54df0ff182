package docstore

import (
	"context"
	"strconv"
)

// Document is a flat snapshot of a stored document's scalar fields.
type Document map[string]string

// Int reads a numeric field, treating absent or malformed values as zero.
func (d Document) Int(field string) int64 {
	v, err := strconv.ParseInt(d[field], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Store exposes the per-document atomic primitives the sync engine is built
// on. Every operation is atomic for its own key; nothing here coordinates
// across keys, so callers must keep each write idempotent or commutative.
type Store interface {
	// Increment atomically adds delta to a numeric field and returns the
	// resulting value. A delta of zero materialises the field at zero.
	Increment(ctx context.Context, key, field string, delta int64) (int64, error)

	// ClampedDecrement subtracts delta from a numeric field, flooring the
	// stored value at zero. It is a conditional single-key write, not a
	// blind atomic decrement.
	ClampedDecrement(ctx context.Context, key, field string, delta int64) (int64, error)

	// IncrementOnce adds delta to a numeric field only if member was not
	// already present in the document's guard set. When unionField is
	// non-empty the member also joins that set, in the same atomic step as
	// the increment, so a counter and the ids it counts never drift apart.
	// Returns whether the increment was applied. Redelivered events
	// carrying the same member are absorbed without touching either.
	IncrementOnce(ctx context.Context, key, field string, delta int64, guardField, unionField, member string) (bool, error)

	// SetMax raises a numeric field to value if value exceeds the stored
	// one, and returns the resulting value. The field never decreases.
	SetMax(ctx context.Context, key, field string, value int64) (int64, error)

	// UnionAdd adds members to a document's set field.
	UnionAdd(ctx context.Context, key, field string, members ...string) error

	// UnionRemove removes members from a document's set field.
	UnionRemove(ctx context.Context, key, field string, members ...string) error

	// MergeSet writes the given fields, leaving all other fields untouched.
	MergeSet(ctx context.Context, key string, fields map[string]interface{}) error

	// Get returns the document's scalar fields. Missing documents come back
	// as an empty Document, not an error.
	Get(ctx context.Context, key string) (Document, error)

	// Members lists a document's set field.
	Members(ctx context.Context, key, field string) ([]string, error)

	// Exists reports whether the document has any scalar fields.
	Exists(ctx context.Context, key string) (bool, error)
}
