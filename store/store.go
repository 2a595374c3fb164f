// Package store defines the durable storage interface for Tally ledgers.
package store

import (
	"context"

	"github.com/kyomi-dev/tally/types"
)

// Store is the durable backing for every ledger kind. One flat two-column
// table (or collection) exists per kind; rows are created lazily and never
// deleted.
//
// Increment, Decrement and SetValue must be atomic at the storage layer —
// a relative update expression or native $inc, never a read-modify-write in
// the adapter — so concurrent callers on the same subject cannot lose
// updates. Every mutation must be durably committed before it returns; the
// ledger service writes the cache only after the store acknowledges.
type Store interface {
	// EnsureSubject inserts a zero-valued row for the subject if absent.
	// It is a no-op, not an error, when the row already exists, and must
	// be safe under concurrent callers (conditional insert).
	EnsureSubject(ctx context.Context, kind types.Kind, subjectID int64) error

	// Increment applies value = value + delta. A missing row is not an
	// error; the update simply affects no rows.
	Increment(ctx context.Context, kind types.Kind, subjectID, delta int64) error

	// Decrement applies value = value - delta with the same missing-row
	// semantics as Increment.
	Decrement(ctx context.Context, kind types.Kind, subjectID, delta int64) error

	// SetValue overwrites the subject's value unconditionally.
	SetValue(ctx context.Context, kind types.Kind, subjectID, value int64) error

	// GetValue returns the subject's persisted value and whether a row
	// exists. The experience clamp on Remove reads through this.
	GetValue(ctx context.Context, kind types.Kind, subjectID int64) (int64, bool, error)

	// ReadAll returns a snapshot of every row in the kind's table from a
	// single scan. Warm-up replays this into the cache.
	ReadAll(ctx context.Context, kind types.Kind) ([]types.Row, error)

	// Migrate creates the required tables or indexes.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
