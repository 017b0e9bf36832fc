package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// threatSignalsTotal counts emitted threat signals by kind and severity.
	// Labels:
	// - kind: new-location-login | unusual-time-login | brute-force | account-locked
	// - severity: info | warning | high | critical
	threatSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "threat",
			Name:      "signals_total",
			Help:      "Threat signals emitted by the session monitor.",
		},
		[]string{"kind", "severity"},
	)

	// loginOutcomesTotal counts authentication lifecycle signals observed by the monitor.
	// Labels:
	// - outcome: success | failure | logout | password-reset | revocation
	loginOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "threat",
			Name:      "login_outcomes_total",
			Help:      "Authentication lifecycle signals observed by the monitor.",
		},
		[]string{"outcome"},
	)

	// monitorFailuresTotal counts swallowed monitoring faults by stage.
	monitorFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "threat",
			Name:      "monitor_failures_total",
			Help:      "Monitoring faults that were logged and suppressed.",
		},
		[]string{"stage"},
	)
)

// IncThreatSignal increments the threat signal counter.
func IncThreatSignal(kind, severity string) {
	if kind == "" {
		kind = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}
	threatSignalsTotal.WithLabelValues(kind, severity).Inc()
}

// IncLoginOutcome increments the lifecycle signal counter.
func IncLoginOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	loginOutcomesTotal.WithLabelValues(outcome).Inc()
}

// IncMonitorFailure increments the suppressed-fault counter for a stage.
func IncMonitorFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	monitorFailuresTotal.WithLabelValues(stage).Inc()
}
