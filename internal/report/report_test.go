package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func TestRunSummary(t *testing.T) {
	md := RunSummary(gftypes.RunSummary{
		ProposalID:          "prop-7",
		Status:              gftypes.DecisionNeedsReview,
		PolicyReasons:       []string{"runtime_only_policy:NEEDS_REVIEW"},
		RequiredHumanChecks: []string{"confirm_runtime_budget"},
		CandidatePath:       "artifacts/candidate.json",
		ChangeApplyStatus:   "skipped",
	})

	assert.Contains(t, md, "# Run prop-7")
	assert.Contains(t, md, "**Status:** NEEDS_REVIEW")
	assert.Contains(t, md, "`confirm_runtime_budget`")
	assert.Contains(t, md, "`artifacts/candidate.json`")
	assert.NotContains(t, md, "## Fail reasons")
}

func TestRegression(t *testing.T) {
	md := Regression(gftypes.RegressionSummary{
		Decision: gftypes.DecisionFail,
		Reasons:  []string{"gate_not_pass", "runtime_regression:1.3s>1.2s"},
		Findings: []gftypes.Finding{
			{Checker: "performance_regression", Reason: "performance_regression_detected", Message: "ratio 1.6 exceeds 1.5"},
		},
		Checkers:      []string{"performance_regression"},
		PolicyPath:    "policies/default.json",
		PolicyVersion: "v1",
	})

	assert.Contains(t, md, "**Decision:** FAIL")
	assert.Contains(t, md, "`runtime_regression:1.3s>1.2s`")
	assert.Contains(t, md, "ratio 1.6 exceeds 1.5")
	assert.Contains(t, md, "policies/default.json")
}

func TestRepairLoop(t *testing.T) {
	md := RepairLoop(gftypes.RepairLoopSummary{
		Before:   gftypes.RepairOutcome{Status: gftypes.DecisionFail},
		After:    gftypes.RepairOutcome{Status: gftypes.DecisionFail, Reasons: []string{"repair_safety_new_critical_reason:strict_backend_mismatch"}},
		Attempts: []gftypes.RepairAttempt{{Index: 1, PlannerBackend: "rule", Status: gftypes.DecisionFail}},
		Comparison:           gftypes.RepairComparison{Delta: "unchanged"},
		SafetyGuardTriggered: true,
	})

	assert.Contains(t, md, "**Safety guard triggered.**")
	assert.Contains(t, md, "**Delta:** unchanged")
	assert.Contains(t, md, "1. `rule` → FAIL")
}
