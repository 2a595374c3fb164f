// Package observability provides a metrics extension for Tally that records
// ledger event counts via an abstract MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/kyomi-dev/tally/plugin"
	"github.com/kyomi-dev/tally/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin    = (*MetricsExtension)(nil)
	_ plugin.OnInit    = (*MetricsExtension)(nil)
	_ plugin.OnGrant   = (*MetricsExtension)(nil)
	_ plugin.OnLevelUp = (*MetricsExtension)(nil)
	_ plugin.OnWarmUp  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide event metrics.
// Register it as a Ledger plugin to automatically track grants, level-ups
// and warm-up cost.
type MetricsExtension struct {
	factory MetricFactory

	// Grant metrics
	CurrencyGranted   Counter
	ExperienceGranted Counter
	GrantAmount       Histogram

	// Level metrics
	LevelUps Counter

	// Warm-up metrics
	WarmUpRows    Histogram
	WarmUpLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Grant metrics
		CurrencyGranted:   factory.Counter("tally.grant.currency"),
		ExperienceGranted: factory.Counter("tally.grant.experience"),
		GrantAmount:       factory.Histogram("tally.grant.amount"),

		// Level metrics
		LevelUps: factory.Counter("tally.level.ups"),

		// Warm-up metrics
		WarmUpRows:    factory.Histogram("tally.warmup.rows"),
		WarmUpLatency: factory.Histogram("tally.warmup.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnGrant implements plugin.OnGrant.
func (m *MetricsExtension) OnGrant(_ context.Context, kind types.Kind, _ int64, amount int64) error {
	switch kind {
	case types.KindCurrency:
		m.CurrencyGranted.Inc()
	case types.KindExperience:
		m.ExperienceGranted.Inc()
	}
	m.GrantAmount.Observe(float64(amount))
	return nil
}

// OnLevelUp implements plugin.OnLevelUp.
func (m *MetricsExtension) OnLevelUp(_ context.Context, _ int64, _, _ int) error {
	m.LevelUps.Inc()
	return nil
}

// OnWarmUp implements plugin.OnWarmUp.
func (m *MetricsExtension) OnWarmUp(_ context.Context, _ types.Kind, rows int, elapsed time.Duration) error {
	m.WarmUpRows.Observe(float64(rows))
	m.WarmUpLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
