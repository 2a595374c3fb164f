package observability

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusFactory implements MetricFactory on prometheus/client_golang.
// Metric names in the "tally.grant.amount" form are rewritten to the
// underscore form Prometheus expects.
type PrometheusFactory struct {
	registerer prometheus.Registerer
}

// NewPrometheusFactory creates a factory registering metrics against reg.
// Pass prometheus.DefaultRegisterer to use the process-global registry.
func NewPrometheusFactory(reg prometheus.Registerer) *PrometheusFactory {
	return &PrometheusFactory{registerer: reg}
}

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: promName(name) + "_total",
	})
	f.registerer.MustRegister(c)
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    promName(name),
		Buckets: prometheus.DefBuckets,
	})
	f.registerer.MustRegister(h)
	return h
}

func promName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}
