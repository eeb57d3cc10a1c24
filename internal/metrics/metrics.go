// Package metrics exposes categorization metrics to Prometheus.
package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/kwcat/internal/store"
)

var (
	usageCallsDesc = prometheus.NewDesc(
		"kwcat_ai_calls_total",
		"AI provider calls recorded in the usage ledger",
		[]string{"provider", "success"},
		nil,
	)
	usageTokensDesc = prometheus.NewDesc(
		"kwcat_ai_tokens_total",
		"Approximate AI tokens recorded in the usage ledger",
		[]string{"provider", "direction"},
		nil,
	)
)

// UsageSource supplies ledger aggregates on each scrape.
type UsageSource interface {
	UsageTotals(ctx context.Context) ([]store.UsageTotal, error)
}

// UsageCollector reads usage ledger totals from the database on each scrape.
type UsageCollector struct {
	src    UsageSource
	logger *slog.Logger
}

// Describe sends the metric descriptors to the channel.
func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- usageCallsDesc
	ch <- usageTokensDesc
}

// Collect emits ledger totals as counters.
func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	totals, err := c.src.UsageTotals(ctx)
	if err != nil {
		c.logger.Error("failed to collect usage metrics", slog.String("error", err.Error()))
		return
	}

	in := map[string]int64{}
	out := map[string]int64{}
	for _, t := range totals {
		ch <- prometheus.MustNewConstMetric(usageCallsDesc, prometheus.CounterValue,
			float64(t.Calls), t.Provider, strconv.FormatBool(t.Success))
		in[t.Provider] += t.InputTokens
		out[t.Provider] += t.OutputTokens
	}
	for p, n := range in {
		ch <- prometheus.MustNewConstMetric(usageTokensDesc, prometheus.CounterValue, float64(n), p, "input")
	}
	for p, n := range out {
		ch <- prometheus.MustNewConstMetric(usageTokensDesc, prometheus.CounterValue, float64(n), p, "output")
	}
}

// Metrics holds the live collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	runs        *prometheus.CounterVec
	aiLatency   *prometheus.HistogramVec
	duplicates  prometheus.Counter
	persistFail *prometheus.CounterVec
}

// New registers the collectors on a fresh registry. src may be nil, in
// which case ledger totals are not exported.
func New(src UsageSource, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwcat_categorization_runs_total",
			Help: "Categorization runs by result source",
		}, []string{"source"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kwcat_ai_request_duration_seconds",
			Help:    "AI provider call latency by outcome",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"provider", "outcome"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kwcat_duplicates_removed_total",
			Help: "Keyword records merged away by deduplication",
		}),
		persistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwcat_persist_failures_total",
			Help: "Failed persistence writes by step",
		}, []string{"step"}),
	}
	m.Registry.MustRegister(m.runs, m.aiLatency, m.duplicates, m.persistFail)
	if src != nil {
		m.Registry.MustRegister(&UsageCollector{src: src, logger: logger})
	}
	return m
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(source string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(source).Inc()
}

// ObserveAI records an AI call latency. outcome is "success" or a failure kind.
func (m *Metrics) ObserveAI(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiLatency.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// AddDuplicates adds merged records.
func (m *Metrics) AddDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicates.Add(float64(n))
}

// AddPersistFailure counts one failed write.
func (m *Metrics) AddPersistFailure(step string) {
	if m == nil {
		return
	}
	m.persistFail.WithLabelValues(step).Inc()
}
