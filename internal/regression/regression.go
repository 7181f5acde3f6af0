// Package regression compares a candidate evidence record against a
// baseline and emits a deterministic, order-stable Regression Summary,
// grounded in the teacher's internal/validation.ValidationEngine
// multi-stage-comparison shape but restructured around reason lists
// instead of numeric scores, per the spec's redesign notes.
package regression

import (
	"fmt"

	"github.com/wangzizhe/gateforge/internal/checker"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/policy"
)

// Options configures one regression comparison.
type Options struct {
	RuntimeThreshold    float64
	Strict              bool
	StrictModelScript   bool
	StrictPolicyVersion bool
	DryRun              bool
	Checkers            []string // empty == all built-ins
	CheckerConfig       map[string]map[string]any
	PhysicalInvariants  []gftypes.PhysicalInvariant
	Policy              *policy.Policy
	PolicyPath          string
	RiskLevel           gftypes.RiskLevel
}

// Compare implements spec.md §4.1's algorithm: strict comparability reasons,
// then structural gates, then runtime, then the checker suite, then the
// policy overlay. Reason ordering is the emission ordering; duplicates are
// elided by first occurrence.
func Compare(baselinePath, candidatePath string, baseline, candidate gftypes.Evidence, opts Options) gftypes.RegressionSummary {
	var reasons []string
	var findings []gftypes.Finding
	seen := map[string]bool{}

	emit := func(reason string) {
		if !seen[reason] {
			seen[reason] = true
			reasons = append(reasons, reason)
		}
	}

	// 1. Strict comparability reasons.
	if opts.Strict || opts.StrictModelScript || opts.StrictPolicyVersion {
		if baseline.SchemaVersion != candidate.SchemaVersion {
			emit("schema_version_mismatch")
		}
		if baseline.Backend != candidate.Backend {
			emit("backend_mismatch")
		}
		if opts.StrictModelScript && baseline.ModelScript != candidate.ModelScript {
			emit("model_script_mismatch")
		}
		if opts.StrictPolicyVersion && baseline.Toolchain.PolicyVersion != candidate.Toolchain.PolicyVersion {
			emit("policy_version_mismatch")
		}
	}

	// 2. Structural gates, fixed order.
	if candidate.Status != gftypes.StatusSuccess {
		emit("status_not_success")
	}
	if candidate.Gate != gftypes.GatePass {
		emit("gate_not_pass")
	}
	if !candidate.CheckOK {
		emit("check_regression")
	}
	if candidate.SimulateOK != nil && !*candidate.SimulateOK {
		emit("simulate_regression")
	}

	// 3. Runtime.
	threshold := opts.RuntimeThreshold
	if threshold <= 0 {
		threshold = 0.20
	}
	allowed := baseline.Metrics.RuntimeSeconds * (1 + threshold)
	if candidate.Metrics.RuntimeSeconds > allowed {
		emit(fmt.Sprintf("runtime_regression:%.3gs>%.3gs", candidate.Metrics.RuntimeSeconds, allowed))
	}

	// 4. Checker suite, in declared order.
	effectiveCheckers := effectiveCheckerList(opts.Checkers, opts.CheckerConfig)
	for _, name := range effectiveCheckers {
		c, ok := checker.Describe(name)
		if !ok {
			continue
		}
		cfg := checker.Config(opts.CheckerConfig[name])
		fs := c.Run(baseline, candidate, opts.PhysicalInvariants, cfg)
		for _, f := range fs {
			findings = append(findings, f)
			emit(f.Reason)
		}
	}

	// 5. Policy overlay.
	summary := gftypes.RegressionSummary{
		Reasons:       reasons,
		Findings:      findings,
		Checkers:      effectiveCheckers,
		CheckerConfig: opts.CheckerConfig,
		PolicyPath:    opts.PolicyPath,
	}

	if opts.Policy != nil {
		summary.PolicyVersion = opts.Policy.PolicyVersion
		var result policy.Result
		if opts.DryRun {
			result = policy.OverlayDryRun(opts.Policy, reasons, opts.RiskLevel)
		} else {
			result = policy.Overlay(opts.Policy, reasons, opts.RiskLevel)
		}
		summary.Decision = result.Decision
		summary.PolicyReasons = result.PolicyReasons
		summary.RequiredHumanChecks = result.RequiredHumanChecks
	} else if len(reasons) == 0 {
		summary.Decision = gftypes.DecisionPass
	} else {
		summary.Decision = gftypes.DecisionFail
	}

	return summary
}

// effectiveCheckerList returns the declared checker set, defaulting to every
// built-in when the proposal did not declare one, then applies the
// checker_config["_runtime"].enable / .disable runtime override, per
// spec.md §4.2's checker-selection rule.
func effectiveCheckerList(declared []string, checkerConfig map[string]map[string]any) []string {
	base := declared
	if len(base) == 0 {
		base = checker.Names()
	}

	runtimeCfg, ok := checkerConfig["_runtime"]
	if !ok {
		return base
	}

	set := map[string]bool{}
	order := make([]string, 0, len(base))
	for _, name := range base {
		if !set[name] {
			set[name] = true
			order = append(order, name)
		}
	}

	if disable, ok := runtimeCfg["disable"]; ok {
		for _, name := range toStringSlice(disable) {
			set[name] = false
		}
	}
	if enable, ok := runtimeCfg["enable"]; ok {
		for _, name := range toStringSlice(enable) {
			if !set[name] {
				set[name] = true
				order = append(order, name)
			}
		}
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// MissingBaseline builds the regression summary used when the baseline
// evidence could not be located at all.
func MissingBaseline() gftypes.RegressionSummary {
	return gftypes.RegressionSummary{
		Decision: gftypes.DecisionFail,
		Reasons:  []string{"baseline_missing"},
	}
}
