package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus instruments. A nil *Metrics is
// valid and records nothing, so callers never need to guard.
type Metrics struct {
	daysProcessed     prometheus.Counter
	dayFailures       prometheus.Counter
	eventsCreated     prometheus.Counter
	tasksCreated      prometheus.Counter
	reflectionRetries prometheus.Counter
	disputedItems     prometheus.Counter
}

// NewMetrics registers the pipeline instruments with reg. Passing a
// dedicated registry in tests avoids duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		daysProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "days_processed_total",
			Help:      "Days that completed the full pipeline.",
		}),
		dayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "day_failures_total",
			Help:      "Days that failed processing and will be retried.",
		}),
		eventsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "events_created_total",
			Help:      "Calendar events inserted by upsert.",
		}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "tasks_created_total",
			Help:      "Tasks inserted by upsert.",
		}),
		reflectionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "reflection_retries_total",
			Help:      "Extraction retries triggered by the critic.",
		}),
		disputedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agendad",
			Name:      "disputed_items_total",
			Help:      "Items disputed during cross-verification.",
		}),
	}
	reg.MustRegister(
		m.daysProcessed, m.dayFailures,
		m.eventsCreated, m.tasksCreated,
		m.reflectionRetries, m.disputedItems,
	)
	return m
}

func (m *Metrics) dayProcessed(events, tasks int) {
	if m == nil {
		return
	}
	m.daysProcessed.Inc()
	m.eventsCreated.Add(float64(events))
	m.tasksCreated.Add(float64(tasks))
}

func (m *Metrics) dayFailure() {
	if m == nil {
		return
	}
	m.dayFailures.Inc()
}

func (m *Metrics) reflectionRetry() {
	if m == nil {
		return
	}
	m.reflectionRetries.Inc()
}

func (m *Metrics) itemsDisputed(n int) {
	if m == nil || n == 0 {
		return
	}
	m.disputedItems.Add(float64(n))
}
