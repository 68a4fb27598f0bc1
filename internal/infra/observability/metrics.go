package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	probeFailures   *prometheus.CounterVec
	stageResults    *prometheus.CounterVec
	wizardSteps     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bff_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		upstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_upstream_errors_total",
				Help: "Total errors from the DCarbon API.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		probeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_stage_probe_failures_total",
				Help: "Stage probes whose upstream call failed and were counted as incomplete.",
			},
			[]string{"probe"},
		),
		stageResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_stage_results_total",
				Help: "Computed onboarding stages.",
			},
			[]string{"stage"},
		),
		wizardSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bff_wizard_transitions_total",
				Help: "Wizard step transitions served.",
			},
			[]string{"step"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrUpstreamError increments the upstream error counter.
func (m *Metrics) IncrUpstreamError(operation string) {
	m.upstreamErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrProbeFailure counts a stage probe that errored and was treated as
// not-completed.
func (m *Metrics) IncrProbeFailure(probe string) {
	m.probeFailures.WithLabelValues(probe).Inc()
}

// IncrStageResult counts one computed stage value.
func (m *Metrics) IncrStageResult(stage string) {
	m.stageResults.WithLabelValues(stage).Inc()
}

// IncrWizardStep counts a wizard transition served to the dashboard.
func (m *Metrics) IncrWizardStep(step string) {
	m.wizardSteps.WithLabelValues(step).Inc()
}

// OnboardingSnapshot is a JSON-friendly view of the onboarding counters
// served by GET /v1/metrics/onboarding.
type OnboardingSnapshot struct {
	StageResults   map[string]int64 `json:"stageResults"`
	ProbeFailures  map[string]int64 `json:"probeFailures"`
	CacheHitRate   float64          `json:"cacheHitRate"`
	UpstreamErrors int64            `json:"upstreamErrors"`
}

// GetOnboardingSnapshot gathers the onboarding counters from the registry.
func (m *Metrics) GetOnboardingSnapshot() *OnboardingSnapshot {
	snap := &OnboardingSnapshot{
		StageResults:  make(map[string]int64),
		ProbeFailures: make(map[string]int64),
	}

	for _, stage := range []string{"1", "2", "3", "4", "5"} {
		if v := getCounterValue(m.stageResults, stage); v > 0 {
			snap.StageResults[stage] = int64(v)
		}
	}
	for _, probe := range []string{"owner_address", "terms", "financial_info", "meters", "facilities"} {
		if v := getCounterValue(m.probeFailures, probe); v > 0 {
			snap.ProbeFailures[probe] = int64(v)
		}
	}

	hits := getCounterValue(m.cacheHits, "stage")
	misses := getCounterValue(m.cacheMisses, "stage")
	if hits+misses > 0 {
		snap.CacheHitRate = hits / (hits + misses)
	}

	mfs, err := m.Registry.Gather()
	if err == nil {
		for _, mf := range mfs {
			if mf.GetName() != "bff_upstream_errors_total" {
				continue
			}
			for _, mm := range mf.GetMetric() {
				snap.UpstreamErrors += int64(mm.GetCounter().GetValue())
			}
		}
	}
	return snap
}

// getCounterValue reads the current value of a labeled counter.
func getCounterValue(vec *prometheus.CounterVec, label string) float64 {
	var metric dto.Metric
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
