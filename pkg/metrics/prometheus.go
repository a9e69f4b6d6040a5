package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchedTotal  *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	phaseDuration *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_fetched_total",
				Help: "Total number of raw payloads fetched per source",
			},
			[]string{"source"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_validation_outcomes_total",
				Help: "Validation outcomes per source and verdict",
			},
			[]string{"source", "verdict"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpull_last_price",
				Help: "Last accepted price for an instrument",
			},
			[]string{"instrument"},
		),
		phaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpull_phase_duration_seconds",
				Help:    "Duration of pipeline phases in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
	}
}

// RecordFetched records payloads fetched from a source.
func (r *Recorder) RecordFetched(source string, n int) {
	r.fetchedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordOutcome records validation verdicts for a source.
func (r *Recorder) RecordOutcome(source, verdict string, n int) {
	r.outcomesTotal.WithLabelValues(source, verdict).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last accepted price for an instrument.
func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordPhaseDuration records a pipeline phase duration in seconds.
func (r *Recorder) RecordPhaseDuration(phase string, seconds float64) {
	r.phaseDuration.WithLabelValues(phase).Observe(seconds)
}
