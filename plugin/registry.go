package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kyomi-dev/tally/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emission never type-switches per event.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit     []OnInit
	onShutdown []OnShutdown
	onLevelUp  []OnLevelUp
	onGrant    []OnGrant
	onWarmUp   []OnWarmUp
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnLevelUp); ok {
		r.onLevelUp = append(r.onLevelUp, v)
	}
	if v, ok := p.(OnGrant); ok {
		r.onGrant = append(r.onGrant, v)
	}
	if v, ok := p.(OnWarmUp); ok {
		r.onWarmUp = append(r.onWarmUp, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLevelUp emits a level boundary crossing.
func (r *Registry) EmitLevelUp(ctx context.Context, subjectID int64, oldLevel, newLevel int) {
	r.mu.RLock()
	plugins := r.onLevelUp
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLevelUp(ctx, subjectID, oldLevel, newLevel)
		}); err != nil {
			r.logger.Warn("plugin OnLevelUp failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitGrant emits an applied reward draw.
func (r *Registry) EmitGrant(ctx context.Context, kind types.Kind, subjectID, amount int64) {
	r.mu.RLock()
	plugins := r.onGrant
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnGrant(ctx, kind, subjectID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnGrant failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWarmUp emits a completed cache warm-up for one ledger kind.
func (r *Registry) EmitWarmUp(ctx context.Context, kind types.Kind, rows int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onWarmUp
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWarmUp(ctx, kind, rows, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnWarmUp failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout bounds a hook call so one stuck plugin cannot wedge the
// write path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
