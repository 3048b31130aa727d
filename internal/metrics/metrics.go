// Package metrics exposes Prometheus counters for generation, publish
// fan-out and campaign builds.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for promoforge
type Metrics struct {
	GenerationsTotal       *prometheus.CounterVec
	GenerationRetriesTotal prometheus.Counter

	PublishesTotal         *prometheus.CounterVec
	PublishDurationSeconds *prometheus.HistogramVec

	CampaignStagesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_generations_total",
				Help: "Total content generation calls by outcome",
			},
			[]string{"kind", "outcome"},
		),
		GenerationRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promoforge_generation_retries_total",
				Help: "Total backoff retries against the generative backend",
			},
		),
		PublishesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_publishes_total",
				Help: "Total publish attempts by platform and outcome",
			},
			[]string{"platform", "outcome"},
		),
		PublishDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promoforge_publish_duration_seconds",
				Help:    "Duration of per-platform publish attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform"},
		),
		CampaignStagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promoforge_campaign_stages_total",
				Help: "Campaign build stage transitions by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.GenerationsTotal,
		m.GenerationRetriesTotal,
		m.PublishesTotal,
		m.PublishDurationSeconds,
		m.CampaignStagesTotal,
	)

	return m
}

// Handler returns the HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePublish records one publish outcome. Nil receivers are
// allowed so metrics stay optional in tests.
func (m *Metrics) ObservePublish(platformName, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.PublishesTotal.WithLabelValues(platformName, outcome).Inc()
	m.PublishDurationSeconds.WithLabelValues(platformName).Observe(seconds)
}

// ObserveGeneration records one generation call by kind (text,
// image_description) and outcome
func (m *Metrics) ObserveGeneration(kind, outcome string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveGenerationRetry counts one backoff retry against the backend
func (m *Metrics) ObserveGenerationRetry() {
	if m == nil {
		return
	}
	m.GenerationRetriesTotal.Inc()
}

// ObserveCampaignStage records one campaign build stage transition
func (m *Metrics) ObserveCampaignStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.CampaignStagesTotal.WithLabelValues(stage, outcome).Inc()
}
