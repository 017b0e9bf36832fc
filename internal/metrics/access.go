package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authzDecisionsTotal counts capability decisions by capability and result.
	// Labels:
	// - capability: table key like "dispatch-ambulances"
	// - result: granted | denied | error
	authzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Capability authorization decisions by capability and result.",
		},
		[]string{"capability", "result"},
	)
)

// IncAuthzDecision increments the authorization decision counter.
func IncAuthzDecision(capability, result string) {
	if capability == "" {
		capability = "unknown"
	}
	if result == "" {
		result = "unknown"
	}
	authzDecisionsTotal.WithLabelValues(capability, result).Inc()
}
