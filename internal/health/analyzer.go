// Package health turns metrics and recent log entries into a health report.
package health

import (
	"strings"

	"memoryhttpd/internal/logs"
	"memoryhttpd/internal/metrics"
)

// recentLogWindow is how many log entries Analyze inspects.
const recentLogWindow = 100

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			RegistrationFailureRule,
			ExpirationBacklogRule,
			PanicRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	registrationWarnings := 0
	for _, entry := range a.logger.GetLast(recentLogWindow) {
		if entry.Level == logs.WARN &&
			strings.Contains(entry.Message, "expiration registration failed") {
			registrationWarnings++
		}
	}

	if registrationWarnings >= 3 {
		signals = append(signals,
			"Repeated expiration registration failures in recent logs",
		)
		recommendations = append(recommendations,
			"Clients are receiving 5xx on PUT with a TTL; retry or reduce write rate",
		)
		status = escalate(status, StatusDegraded)
	}

	/* ---------- SUMMARY ---------- */

	summary := "System is healthy"
	if status != StatusOK {
		summary = "System health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}

func escalate(current, severity Status) Status {
	switch {
	case severity == StatusCritical:
		return StatusCritical
	case severity == StatusDegraded && current == StatusOK:
		return StatusDegraded
	default:
		return current
	}
}
