// Package policy loads policy files and overlays them onto a regression's
// reasons to derive a governance decision, generalizing the teacher's
// internal/hitl quality-gate-threshold approach into declarative maps keyed
// by reason and risk level, per the spec's "policy string matching becomes
// declarative maps" redesign note.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Policy is the on-disk shape of a policy file.
type Policy struct {
	PolicyVersion             string                       `json:"policy_version"`
	CriticalReasons           []string                     `json:"critical_reasons,omitempty"`
	RuntimeOnlyPolicyByRisk   map[string]string            `json:"runtime_only_policy_by_risk,omitempty"`
	ReasonToDecisionByRisk    map[string]map[string]string `json:"reason_to_decision_by_risk,omitempty"`
	RequiredHumanChecksByRisk map[string][]string          `json:"required_human_checks_by_risk,omitempty"`
	DryRunHumanChecksByRisk   map[string][]string          `json:"dry_run_human_checks_by_risk,omitempty"`
	MinConfidenceAutoApply    float64                      `json:"min_confidence_auto_apply,omitempty"`
	MinConfidenceAccept       float64                      `json:"min_confidence_accept,omitempty"`
}

// Load resolves a policy by name or path: a bare name like "default" or
// "industrial_strict" is looked up under policies/<name>.json (profile
// names are never aliased to one another — industrial_strict and
// industrial_strict_v0 are distinct files); anything containing a path
// separator or a .json suffix is read as a literal path.
func Load(nameOrPath string) (*Policy, string, error) {
	path := nameOrPath
	if !strings.Contains(nameOrPath, string(filepath.Separator)) && !strings.HasSuffix(nameOrPath, ".json") {
		path = filepath.Join("policies", nameOrPath+".json")
	}

	if !artifact.Exists(path) {
		return nil, path, fmt.Errorf("unknown policy profile %q (looked for %s)", nameOrPath, path)
	}

	var p Policy
	if err := artifact.ReadJSON(path, &p); err != nil {
		return nil, path, err
	}
	return &p, path, nil
}

// Result is the outcome of applying the policy overlay to a reason list.
type Result struct {
	Decision            gftypes.Decision
	PolicyReasons       []string
	RequiredHumanChecks []string
}

// Overlay derives (reasons, risk_level, policy) -> decision per spec.md
// §4.3's ordered, first-match-wins rule set.
func Overlay(policy *Policy, reasons []string, risk gftypes.RiskLevel) Result {
	return overlay(policy, reasons, risk, false)
}

// OverlayDryRun is Overlay with the dry-run human-check list attached
// instead of the required one, for callers previewing a decision without
// committing reviewers to it.
func OverlayDryRun(policy *Policy, reasons []string, risk gftypes.RiskLevel) Result {
	return overlay(policy, reasons, risk, true)
}

func overlay(policy *Policy, reasons []string, risk gftypes.RiskLevel, dryRun bool) Result {
	if len(reasons) == 0 {
		return Result{Decision: gftypes.DecisionPass}
	}

	// Rule 1: any critical reason -> FAIL.
	for _, critical := range policy.CriticalReasons {
		for _, r := range reasons {
			if reasonMatches(r, critical) {
				return Result{
					Decision:      gftypes.DecisionFail,
					PolicyReasons: []string{fmt.Sprintf("critical_reason:%s", r)},
				}
			}
		}
	}

	// Rule 2: per-reason decision maps, worst contribution wins.
	worst := gftypes.Decision("")
	var policyReasons []string
	matchedAny := false
	for _, r := range reasons {
		key := reasonKey(r)
		byRisk, ok := policy.ReasonToDecisionByRisk[key]
		if !ok {
			continue
		}
		decisionStr, ok := byRisk[string(risk)]
		if !ok {
			continue
		}
		matchedAny = true
		d := gftypes.Decision(decisionStr)
		policyReasons = append(policyReasons, fmt.Sprintf("policy_reason:%s=%s", r, decisionStr))
		if worst == "" || d.Worse(worst) {
			worst = d
		}
	}
	if matchedAny {
		return Result{
			Decision:            worst,
			PolicyReasons:       policyReasons,
			RequiredHumanChecks: requiredChecks(policy, worst, risk, dryRun),
		}
	}

	// Rule 3: runtime-only reasons.
	if allRuntimeReasons(reasons) {
		decisionStr, ok := policy.RuntimeOnlyPolicyByRisk[string(risk)]
		if ok {
			d := gftypes.Decision(decisionStr)
			return Result{
				Decision:            d,
				PolicyReasons:       []string{fmt.Sprintf("runtime_only_policy:%s", decisionStr)},
				RequiredHumanChecks: requiredChecks(policy, d, risk, dryRun),
			}
		}
	}

	// Rule 4: no rule matched any reason -> PASS.
	return Result{Decision: gftypes.DecisionPass}
}

func requiredChecks(policy *Policy, decision gftypes.Decision, risk gftypes.RiskLevel, dryRun bool) []string {
	if decision != gftypes.DecisionNeedsReview {
		return nil
	}
	if dryRun {
		return policy.DryRunHumanChecksByRisk[string(risk)]
	}
	return policy.RequiredHumanChecksByRisk[string(risk)]
}

// reasonKey strips a `:<detail>` suffix so `runtime_regression:1.3s>1.0s`
// keys the same map entry as `runtime_regression`.
func reasonKey(reason string) string {
	if i := strings.Index(reason, ":"); i >= 0 {
		return reason[:i]
	}
	return reason
}

func reasonMatches(reason, pattern string) bool {
	if reason == pattern {
		return true
	}
	return reasonKey(reason) == pattern
}

func allRuntimeReasons(reasons []string) bool {
	for _, r := range reasons {
		if !strings.HasPrefix(r, "runtime_regression") {
			return false
		}
	}
	return true
}

// DefaultPolicyPath returns the canonical path policies live under for a profile name.
func DefaultPolicyPath(name string) string {
	return filepath.Join("policies", name+".json")
}

// EnsureDir creates the policies directory if missing (used by tooling that writes defaults).
func EnsureDir() error {
	return os.MkdirAll("policies", 0o755)
}
