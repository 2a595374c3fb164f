package tally

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyomi-dev/tally/cache"
	"github.com/kyomi-dev/tally/curve"
	"github.com/kyomi-dev/tally/plugin"
	"github.com/kyomi-dev/tally/ratelimit"
	"github.com/kyomi-dev/tally/store"
	"github.com/kyomi-dev/tally/types"
)

// Reward draw bounds, inclusive.
const (
	defaultActivityMin = 15
	defaultActivityMax = 25
	defaultDailyMin    = 25
	defaultDailyMax    = 50
)

// Ledger is the dual-ledger engine: one currency balance and one
// experience score per subject, written through to the durable store
// first and mirrored into the cache, read from the cache only.
type Ledger struct {
	store   store.Store
	cache   cache.Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	limiter *ratelimit.Limiter

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	activityEvents int
	activityWindow time.Duration
	activityMin    int64
	activityMax    int64
	dailyMin       int64
	dailyMax       int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a new Ledger instance over the given store and cache.
// Both dependencies are injected; the Ledger never constructs its own.
func New(s store.Store, c cache.Cache, opts ...Option) *Ledger {
	l := &Ledger{
		store:          s,
		cache:          c,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		stopChan:       make(chan struct{}),
		activityEvents: ratelimit.DefaultEvents,
		activityWindow: ratelimit.DefaultWindow,
		activityMin:    defaultActivityMin,
		activityMax:    defaultActivityMax,
		dailyMin:       defaultDailyMin,
		dailyMax:       defaultDailyMax,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.limiter = ratelimit.New(l.activityEvents, l.activityWindow)

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithActivityLimit configures how often a subject may earn experience:
// at most events grants per window.
func WithActivityLimit(events int, window time.Duration) Option {
	return func(l *Ledger) {
		l.activityEvents = events
		l.activityWindow = window
	}
}

// WithActivityReward sets the inclusive draw range for activity grants.
func WithActivityReward(min, max int64) Option {
	return func(l *Ledger) {
		l.activityMin = min
		l.activityMax = max
	}
}

// WithDailyReward sets the inclusive draw range for daily grants.
func WithDailyReward(min, max int64) Option {
	return func(l *Ledger) {
		l.dailyMin = min
		l.dailyMax = max
	}
}

// WithRand sets the random source for reward draws. Useful for tests.
func WithRand(r *rand.Rand) Option {
	return func(l *Ledger) {
		l.rng = r
	}
}

// Start migrates the store, warms the cache for both ledger kinds,
// initializes plugins and begins background workers. Reads served before
// Start returns may observe zero for subjects that have durable state, so
// callers must sequence Start before serving.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range types.Kinds {
		g.Go(func() error {
			return l.WarmUp(gctx, kind)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.wg.Add(1)
	go l.pruneWorker()

	l.logger.Info("tally started",
		"activity_events", l.activityEvents,
		"activity_window", l.activityWindow,
	)

	return nil
}

// Stop shuts down the Ledger and closes both layers.
func (l *Ledger) Stop() error {
	close(l.stopChan)
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	cacheErr := l.cache.Close()
	storeErr := l.store.Close()
	if cacheErr != nil {
		return cacheErr
	}
	return storeErr
}

// pruneWorker evicts elapsed cooldown buckets so the limiter map does not
// grow with every subject ever seen.
func (l *Ledger) pruneWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.activityWindow)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			if n := l.limiter.Prune(); n > 0 {
				l.logger.Debug("pruned cooldown buckets", "count", n)
			}
		}
	}
}

// ──────────────────────────────────────────────────
// Ledger primitives
// ──────────────────────────────────────────────────

// WarmUp seeds the cache from the durable store for one ledger kind.
// Every row is written with a conditional set so a value a live write
// already placed in the cache is never overwritten. Idempotent: re-running
// after partial completion only fills gaps.
func (l *Ledger) WarmUp(ctx context.Context, kind types.Kind) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}

	start := time.Now()

	rows, err := l.store.ReadAll(ctx, kind)
	if err != nil {
		return fmt.Errorf("tally: warm-up read: %w", err)
	}

	seeded := 0
	for _, row := range rows {
		set, err := l.cache.SetNX(ctx, kind.CacheKey(row.SubjectID), row.Value)
		if err != nil {
			return fmt.Errorf("tally: warm-up seed: %w", err)
		}
		if set {
			seeded++
		}
	}

	elapsed := time.Since(start)
	l.logger.Info("cache warm-up complete",
		"kind", kind,
		"rows", len(rows),
		"seeded", seeded,
		"elapsed", elapsed,
	)
	l.plugins.EmitWarmUp(ctx, kind, len(rows), elapsed)

	return nil
}

// Add credits amount to the subject's ledger. The row is created at zero
// if absent, the store applies the relative update and commits, and only
// then is the cache incremented. A store failure aborts before the cache
// step so the cache never runs ahead of durable state.
func (l *Ledger) Add(ctx context.Context, kind types.Kind, subjectID, amount int64) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if amount < 0 {
		return ErrInvalidAmount
	}

	if err := l.store.EnsureSubject(ctx, kind, subjectID); err != nil {
		return err
	}
	if err := l.store.Increment(ctx, kind, subjectID, amount); err != nil {
		return err
	}
	if _, err := l.cache.IncrBy(ctx, kind.CacheKey(subjectID), amount); err != nil {
		return err
	}
	return nil
}

// Remove debits amount from the subject's ledger.
//
// The experience kind clamps the debit to the persisted value, so
// experience never goes negative, and a subject with no row is left
// untouched in both layers. The currency kind applies the debit
// unconditionally: the store decrement on a missing row affects zero rows
// while the cache still goes negative, and the next Set or warm-up
// reconciles the pair. Currency balances may go negative by design.
func (l *Ledger) Remove(ctx context.Context, kind types.Kind, subjectID, amount int64) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if amount < 0 {
		return ErrInvalidAmount
	}

	if kind.ClampOnRemove() {
		current, found, err := l.store.GetValue(ctx, kind, subjectID)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		if amount > current {
			amount = current
		}
		if amount == 0 {
			return nil
		}
	}

	if err := l.store.Decrement(ctx, kind, subjectID, amount); err != nil {
		return err
	}
	if _, err := l.cache.DecrBy(ctx, kind.CacheKey(subjectID), amount); err != nil {
		return err
	}
	return nil
}

// Set overwrites the subject's ledger value in both layers.
func (l *Ledger) Set(ctx context.Context, kind types.Kind, subjectID, value int64) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}

	if err := l.store.EnsureSubject(ctx, kind, subjectID); err != nil {
		return err
	}
	if err := l.store.SetValue(ctx, kind, subjectID, value); err != nil {
		return err
	}
	return l.cache.Set(ctx, kind.CacheKey(subjectID), value)
}

// Read returns the subject's cached ledger value, defaulting to zero for
// an absent key. The durable store is never touched on the read path.
func (l *Ledger) Read(ctx context.Context, kind types.Kind, subjectID int64) (int64, error) {
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}

	v, found, err := l.cache.Get(ctx, kind.CacheKey(subjectID))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return v, nil
}

// ──────────────────────────────────────────────────
// Reward events
// ──────────────────────────────────────────────────

// Activity is the outcome of a RegisterActivity call.
type Activity struct {
	// Throttled is true when the rate limiter denied the grant. All
	// other fields are zero in that case.
	Throttled bool

	// Amount is the experience granted.
	Amount int64

	// OldLevel and NewLevel are the subject's level before and after
	// the grant.
	OldLevel int
	NewLevel int
}

// LeveledUp reports whether the grant crossed a level boundary.
func (a Activity) LeveledUp() bool {
	return a.NewLevel > a.OldLevel
}

// RegisterActivity records one qualifying activity event for the subject.
// The rate limiter bounds how often a subject can earn; a permitted call
// draws a random experience amount, credits it, and emits a level-up hook
// when the grant crosses a level boundary.
func (l *Ledger) RegisterActivity(ctx context.Context, subjectID int64) (Activity, error) {
	if !l.limiter.TryAcquire(subjectID) {
		return Activity{Throttled: true}, nil
	}

	current, err := l.Read(ctx, types.KindExperience, subjectID)
	if err != nil {
		return Activity{}, err
	}

	amount := l.draw(l.activityMin, l.activityMax)
	if err := l.Add(ctx, types.KindExperience, subjectID, amount); err != nil {
		return Activity{}, err
	}

	act := Activity{
		Amount:   amount,
		OldLevel: curve.Level(current),
		NewLevel: curve.Level(current + amount),
	}

	l.plugins.EmitGrant(ctx, types.KindExperience, subjectID, amount)
	if act.LeveledUp() {
		l.logger.Info("level up",
			"subject_id", subjectID,
			"old_level", act.OldLevel,
			"new_level", act.NewLevel,
		)
		l.plugins.EmitLevelUp(ctx, subjectID, act.OldLevel, act.NewLevel)
	}

	return act, nil
}

// Daily credits the subject's daily currency grant and returns the drawn
// amount. The 24-hour per-subject cooldown for invoking this belongs to
// the calling layer.
func (l *Ledger) Daily(ctx context.Context, subjectID int64) (int64, error) {
	amount := l.draw(l.dailyMin, l.dailyMax)
	if err := l.Add(ctx, types.KindCurrency, subjectID, amount); err != nil {
		return 0, err
	}
	l.plugins.EmitGrant(ctx, types.KindCurrency, subjectID, amount)
	return amount, nil
}

// Progress returns the subject's level, experience spent inside that
// level, and percentage toward the next one, from the cached score.
func (l *Ledger) Progress(ctx context.Context, subjectID int64) (level int, used int64, pct float64, err error) {
	total, err := l.Read(ctx, types.KindExperience, subjectID)
	if err != nil {
		return 0, 0, 0, err
	}
	level, used, pct = curve.Progress(total)
	return level, used, pct, nil
}

// draw returns a uniform random value in [min, max] inclusive.
func (l *Ledger) draw(min, max int64) int64 {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()

	return min + l.rng.Int63n(max-min+1)
}
