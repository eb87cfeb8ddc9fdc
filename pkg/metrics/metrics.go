// Package metrics provides Prometheus metrics for the insight pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the insight service
type Metrics struct {
	Registry *prometheus.Registry

	// Turn metrics
	TurnsTotal    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	TurnsInFlight prometheus.Gauge

	// Stage metrics
	StageDuration *prometheus.HistogramVec

	// LLM accounting
	TokensTotal *prometheus.CounterVec
	CostTotal   prometheus.Counter

	// SQL metrics
	ValidationFailuresTotal prometheus.Counter
	ResultRows              prometheus.Histogram
}

// NewMetrics creates all metrics on a private registry so several instances can coexist in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"outcome"},
	)

	m.TurnDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_turn_duration_seconds",
			Help:    "Duration of a full chat turn in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	m.TurnsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "insight_turns_in_flight",
			Help: "Number of chat turns currently being processed",
		},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insight_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	m.TokensTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"kind"},
	)

	m.CostTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_llm_cost_usd_total",
			Help: "Accumulated LLM cost in USD",
		},
	)

	m.ValidationFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "insight_sql_validation_failures_total",
			Help: "Total number of generated queries rejected by validation",
		},
	)

	m.ResultRows = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insight_sql_result_rows",
			Help:    "Number of rows returned by executed queries",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	return m
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, since time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
}

// RecordTurn records a finished turn with its outcome
func (m *Metrics) RecordTurn(outcome string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(duration.Seconds())
}

// RecordUsage adds token counts and cost
func (m *Metrics) RecordUsage(promptTokens, completionTokens int, cost float64) {
	m.TokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	m.TokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
	if cost > 0 {
		m.CostTotal.Add(cost)
	}
}
