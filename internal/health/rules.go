package health

import "memoryhttpd/internal/metrics"

// BacklogThreshold is the number of pending expirations above which the
// scheduler is considered behind.
const BacklogThreshold = 1000

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// Rejected registrations mean TTL'd writes are failing with 5xx.
func RegistrationFailureRule(snapshot map[string]int64) RuleResult {
	failures := snapshot[string(metrics.ExpirationRegisterFailuresTotal)]

	if failures > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Expiration registrations are failing",
			Recommendation: "Raise -queue-size or -register-timeout, or check that the scheduler is running",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// A large backlog of pending expirations indicates heavy TTL churn.
func ExpirationBacklogRule(snapshot map[string]int64) RuleResult {
	pending := snapshot[string(metrics.ExpirationsPending)]

	if pending > BacklogThreshold {
		return RuleResult{
			Triggered:      true,
			Signal:         "Expiration backlog is growing",
			Recommendation: "Check for clients rewriting TTL'd keys in a tight loop",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Recovered panics mean a handler is misbehaving.
func PanicRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.PanicsRecoveredTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Request handlers recovered from panics",
			Recommendation: "Inspect ERROR log lines and stabilize error handling",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}
