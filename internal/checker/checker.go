// Package checker implements the pluggable regression-checker suite.
// Every built-in checker is a pure function over (baseline, candidate,
// config) -> findings, grounded in the teacher's internal/validation
// package style (syntax_validators.go, security_scanner.go): small,
// independently testable analyzers with no shared mutable state.
package checker

import (
	"fmt"

	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/invariant"
)

// Config is one checker's configuration block, looked up by checker name
// from Proposal.CheckerConfig.
type Config map[string]any

func (c Config) float(key string, def float64) float64 {
	if c == nil {
		return def
	}
	if v, ok := c[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

// Checker is a pure regression checker.
type Checker struct {
	Name        string
	TriggerDoc  string
	Run         func(baseline, candidate gftypes.Evidence, invariants []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding
}

// Names returns the built-in checker names in emission order. This order is
// load-bearing: reason and finding ordering in the regression summary
// follows it exactly.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for _, c := range builtins {
		names = append(names, c.Name)
	}
	return names
}

// Describe returns the checker registered under name, or false if unknown.
func Describe(name string) (Checker, bool) {
	for _, c := range builtins {
		if c.Name == name {
			return c, true
		}
	}
	return Checker{}, false
}

// All returns every built-in checker in emission order.
func All() []Checker {
	return builtins
}

var builtins = []Checker{
	{
		Name:       "timeout",
		TriggerDoc: "candidate_timeout_detected",
		Run:        runTimeout,
	},
	{
		Name:       "nan_inf",
		TriggerDoc: "nan_or_inf_detected",
		Run:        runNanInf,
	},
	{
		Name:       "performance_regression",
		TriggerDoc: "performance_regression_detected",
		Run:        runPerformanceRegression,
	},
	{
		Name:       "event_explosion",
		TriggerDoc: "event_explosion_detected",
		Run:        runEventExplosion,
	},
	{
		Name:       "steady_state_regression",
		TriggerDoc: "steady_state_regression_detected",
		Run:        runSteadyStateRegression,
	},
	{
		Name:       "control_behavior_regression",
		TriggerDoc: "overshoot_regression_detected, settling_time_regression_detected, steady_state_regression_detected",
		Run:        runControlBehaviorRegression,
	},
	{
		Name:       "invariant_guard",
		TriggerDoc: "physical_invariant_<type>_violated:<metric>",
		Run:        runInvariantGuard,
	},
}

func runTimeout(baseline, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding {
	maxRuntime := cfg.float("max_runtime_seconds", 0)
	if maxRuntime <= 0 {
		return nil
	}
	if candidate.FailureType == gftypes.FailureTimeout || candidate.Metrics.RuntimeSeconds > maxRuntime {
		return []gftypes.Finding{{
			Checker: "timeout",
			Reason:  "candidate_timeout_detected",
			Message: fmt.Sprintf("candidate runtime %.3gs exceeds max_runtime_seconds %.3g", candidate.Metrics.RuntimeSeconds, maxRuntime),
		}}
	}
	return nil
}

func runNanInf(_, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, _ Config) []gftypes.Finding {
	for name, v := range allMetrics(candidate.Metrics) {
		if isNaNOrInf(v) {
			return []gftypes.Finding{{
				Checker: "nan_inf",
				Reason:  "nan_or_inf_detected",
				Message: fmt.Sprintf("metric %s is NaN or Inf", name),
			}}
		}
	}
	return nil
}

func runPerformanceRegression(baseline, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding {
	if _, ok := candidate.Metrics.Get("runtime_seconds"); !ok {
		return missingMetric("performance_regression", "runtime_seconds")
	}
	maxRatio := cfg.float("max_ratio", 1.5)
	if baseline.Metrics.RuntimeSeconds <= 0 {
		return nil
	}
	ratio := candidate.Metrics.RuntimeSeconds / baseline.Metrics.RuntimeSeconds
	if ratio > maxRatio {
		return []gftypes.Finding{{
			Checker: "performance_regression",
			Reason:  "performance_regression_detected",
			Message: fmt.Sprintf("runtime ratio %.3g exceeds max_ratio %.3g", ratio, maxRatio),
		}}
	}
	return nil
}

func runEventExplosion(baseline, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding {
	if _, ok := candidate.Metrics.Get("events"); !ok {
		return missingMetric("event_explosion", "events")
	}
	maxRatio := cfg.float("max_ratio", 1.5)
	absThresholdIfZero := cfg.float("abs_threshold_if_baseline_zero", 10)

	if baseline.Metrics.Events == 0 {
		if candidate.Metrics.Events > int(absThresholdIfZero) {
			return []gftypes.Finding{{
				Checker: "event_explosion",
				Reason:  "event_explosion_detected",
				Message: fmt.Sprintf("candidate events %d exceeds abs_threshold_if_baseline_zero %.3g with zero baseline events", candidate.Metrics.Events, absThresholdIfZero),
			}}
		}
		return nil
	}

	ratio := float64(candidate.Metrics.Events) / float64(baseline.Metrics.Events)
	if ratio > maxRatio {
		return []gftypes.Finding{{
			Checker: "event_explosion",
			Reason:  "event_explosion_detected",
			Message: fmt.Sprintf("event ratio %.3g exceeds max_ratio %.3g", ratio, maxRatio),
		}}
	}
	return nil
}

func runSteadyStateRegression(baseline, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding {
	if _, ok := candidate.Metrics.Get("steady_state_error"); !ok {
		return missingMetric("steady_state_regression", "steady_state_error")
	}
	maxAbsDelta := cfg.float("max_abs_delta", 0.02)
	delta := absFloat(candidate.Metrics.SteadyStateError - baseline.Metrics.SteadyStateError)
	if delta > maxAbsDelta {
		return []gftypes.Finding{{
			Checker: "steady_state_regression",
			Reason:  "steady_state_regression_detected",
			Message: fmt.Sprintf("steady_state_error delta %.4g exceeds max_abs_delta %.4g", delta, maxAbsDelta),
		}}
	}
	return nil
}

func runControlBehaviorRegression(baseline, candidate gftypes.Evidence, _ []gftypes.PhysicalInvariant, cfg Config) []gftypes.Finding {
	for _, metric := range []string{"overshoot", "settling_time", "steady_state_error"} {
		if _, ok := candidate.Metrics.Get(metric); !ok {
			return missingMetric("control_behavior_regression", metric)
		}
	}

	var findings []gftypes.Finding

	maxOvershootDelta := cfg.float("max_overshoot_abs_delta", 0.05)
	if d := absFloat(candidate.Metrics.Overshoot - baseline.Metrics.Overshoot); d > maxOvershootDelta {
		findings = append(findings, gftypes.Finding{
			Checker: "control_behavior_regression",
			Reason:  "overshoot_regression_detected",
			Message: fmt.Sprintf("overshoot delta %.4g exceeds max_overshoot_abs_delta %.4g", d, maxOvershootDelta),
		})
	}

	maxSettlingRatio := cfg.float("max_settling_time_ratio", 1.3)
	if baseline.Metrics.SettlingTime > 0 {
		ratio := candidate.Metrics.SettlingTime / baseline.Metrics.SettlingTime
		if ratio > maxSettlingRatio {
			findings = append(findings, gftypes.Finding{
				Checker: "control_behavior_regression",
				Reason:  "settling_time_regression_detected",
				Message: fmt.Sprintf("settling_time ratio %.3g exceeds max_settling_time_ratio %.3g", ratio, maxSettlingRatio),
			})
		}
	}

	maxSteadyStateDelta := cfg.float("max_steady_state_abs_delta", 0.02)
	if d := absFloat(candidate.Metrics.SteadyStateError - baseline.Metrics.SteadyStateError); d > maxSteadyStateDelta {
		findings = append(findings, gftypes.Finding{
			Checker: "control_behavior_regression",
			Reason:  "steady_state_regression_detected",
			Message: fmt.Sprintf("steady_state_error delta %.4g exceeds max_steady_state_abs_delta %.4g", d, maxSteadyStateDelta),
		})
	}

	return findings
}

func runInvariantGuard(baseline, candidate gftypes.Evidence, invariants []gftypes.PhysicalInvariant, _ Config) []gftypes.Finding {
	if len(invariants) == 0 {
		return nil
	}
	violations := invariant.Check(invariants, baseline.Metrics, candidate.Metrics)
	findings := make([]gftypes.Finding, 0, len(violations))
	for _, v := range violations {
		findings = append(findings, gftypes.Finding{
			Checker: "invariant_guard",
			Reason:  v.Reason,
			Message: v.Message,
		})
	}
	return findings
}

func allMetrics(m gftypes.Metrics) map[string]float64 {
	out := map[string]float64{
		"runtime_seconds":    m.RuntimeSeconds,
		"events":             float64(m.Events),
		"overshoot":          m.Overshoot,
		"settling_time":      m.SettlingTime,
		"steady_state_error": m.SteadyStateError,
		"energy":             m.Energy,
	}
	for k, v := range m.Extra {
		out[k] = v
	}
	return out
}

func missingMetric(checkerName, metric string) []gftypes.Finding {
	return []gftypes.Finding{{
		Checker: checkerName,
		Reason:  fmt.Sprintf("%s_metric_missing", checkerName),
		Message: fmt.Sprintf("required metric %s was not reported by the candidate run", metric),
	}}
}

func isNaNOrInf(v float64) bool {
	return v != v || v > 1e308 || v < -1e308
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
