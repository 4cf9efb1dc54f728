package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"crowdvault/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured engine events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crowdvault",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of engine events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(eventType))
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// EventCounter is an events.Emitter that counts every emitted event by type.
// It can be used directly or wrapped around another emitter via Tee.
type EventCounter struct {
	next events.Emitter
}

// NewEventCounter returns an emitter that only counts events.
func NewEventCounter() *EventCounter { return &EventCounter{} }

// Tee returns an emitter that counts events and forwards them to next.
func Tee(next events.Emitter) *EventCounter { return &EventCounter{next: next} }

// Emit records the event in the prometheus registry and forwards it when a
// downstream emitter is configured.
func (c *EventCounter) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	Events().RecordEvent(evt.EventType())
	if c.next != nil {
		c.next.Emit(evt)
	}
}
