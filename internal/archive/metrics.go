package archive

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the ingest path.
type Metrics struct {
	Registry             *prometheus.Registry
	PagesProcessedTotal  prometheus.Counter
	PagesSkippedTotal    *prometheus.CounterVec
	ObservationsTotal    prometheus.Counter
	ManualOverridesTotal prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enfmon_pages_processed_total",
			Help: "Total HTML pages pulled from ingested bundles.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enfmon_pages_skipped_total",
			Help: "Total pages skipped during ingest, by reason.",
		},
		[]string{"reason"},
	)
	observations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enfmon_observations_total",
			Help: "Total price observations extracted from bundles.",
		},
	)
	manual := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enfmon_manual_overrides_total",
			Help: "Total observations sourced from manual price overrides.",
		},
	)

	registry.MustRegister(pages, skipped, observations, manual)

	return &Metrics{
		Registry:             registry,
		PagesProcessedTotal:  pages,
		PagesSkippedTotal:    skipped,
		ObservationsTotal:    observations,
		ManualOverridesTotal: manual,
	}
}

// IncPage increments the processed pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesProcessedTotal.Inc()
}

// IncSkipped increments the skipped pages counter for a reason label.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.PagesSkippedTotal.WithLabelValues(reason).Inc()
}

// IncObservation increments the extracted observations counter.
func (m *Metrics) IncObservation() {
	if m == nil {
		return
	}
	m.ObservationsTotal.Inc()
}

// IncManual increments the manual overrides counter.
func (m *Metrics) IncManual() {
	if m == nil {
		return
	}
	m.ManualOverridesTotal.Inc()
}
