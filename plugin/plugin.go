// Package plugin provides an extensible hook system for Tally.
// Plugins can hook into ledger lifecycle events to extend functionality,
// most importantly the level-up notification delivered to the caller.
package plugin

import (
	"context"
	"time"

	"github.com/kyomi-dev/tally/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts, after the store has migrated
// and the caches warmed.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, ledger interface{}) error
}

// OnShutdown is called when the ledger is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger event hooks
// ──────────────────────────────────────────────────

// OnLevelUp is called when a message-triggered experience grant crosses a
// level boundary. This is the outbound signal the command layer turns into
// a congratulation message.
type OnLevelUp interface {
	Plugin
	OnLevelUp(ctx context.Context, subjectID int64, oldLevel, newLevel int) error
}

// OnGrant is called after a reward draw (activity experience or daily
// credits) has been applied to both layers.
type OnGrant interface {
	Plugin
	OnGrant(ctx context.Context, kind types.Kind, subjectID, amount int64) error
}

// OnWarmUp is called after a ledger kind's cache has been seeded from the
// durable store.
type OnWarmUp interface {
	Plugin
	OnWarmUp(ctx context.Context, kind types.Kind, rows int, elapsed time.Duration) error
}
