package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsResolvedTotal counts channel resolutions by event kind and result.
	// Labels:
	// - kind: event kind like "geofence-crossed"
	// - result: resolved | unknown_kind
	eventsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "broadcast",
			Name:      "events_resolved_total",
			Help:      "Domain events resolved to channel targets.",
		},
		[]string{"kind", "result"},
	)

	// targetsPerEvent observes the resolved target set size per event kind.
	targetsPerEvent = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "broadcast",
			Name:      "targets_per_event",
			Help:      "Number of channel targets resolved per event.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 12, 20},
		},
		[]string{"kind"},
	)

	// auditWritesTotal counts audit record writes by result.
	// Labels:
	// - result: ok | error
	auditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Audit record write attempts by result.",
		},
		[]string{"result"},
	)
)

// IncEventResolved increments the resolution counter and records the target count.
func IncEventResolved(kind, result string, targets int) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	eventsResolvedTotal.WithLabelValues(kind, result).Inc()
	targetsPerEvent.WithLabelValues(kind).Observe(float64(targets))
}

// IncAuditWrite increments the audit write counter.
func IncAuditWrite(result string) {
	if result == "" {
		result = "unknown"
	}
	auditWritesTotal.WithLabelValues(result).Inc()
}
