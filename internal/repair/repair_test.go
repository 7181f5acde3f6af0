package repair

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func TestRun_ImprovesOnFirstAttemptStopsRetrying(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail, FailReasons: []string{"gate_not_pass"}}

	calls := 0
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		calls++
		return gftypes.RunSummary{Status: gftypes.DecisionPass}, nil
	}

	result := Run(context.Background(), source, attempt, Options{MaxRetries: 3})

	assert.Equal(t, 1, calls)
	assert.Equal(t, gftypes.DecisionFail, result.Before.Status)
	assert.Equal(t, gftypes.DecisionPass, result.After.Status)
	assert.Equal(t, "improved", result.Comparison.Delta)
	assert.False(t, result.RetryUsed)
}

func TestRun_RetriesUnderConservativeProfileWhenNoImprovement(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail, FailReasons: []string{"gate_not_pass"}}

	var seenBackends []string
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		seenBackends = append(seenBackends, plannerBackend)
		return gftypes.RunSummary{Status: gftypes.DecisionFail, FailReasons: []string{"gate_not_pass"}}, nil
	}

	result := Run(context.Background(), source, attempt, Options{PlannerBackend: "gemini", MaxRetries: 2})

	require.Equal(t, []string{"gemini", "rule"}, seenBackends)
	assert.True(t, result.RetryUsed)
	assert.Equal(t, "unchanged", result.Comparison.Delta)
	assert.NotEmpty(t, result.RetryAnalysis)
}

func TestRun_CustomRetryPlannerBackend(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail}

	var seenBackends []string
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		seenBackends = append(seenBackends, plannerBackend)
		return gftypes.RunSummary{Status: gftypes.DecisionFail}, nil
	}

	Run(context.Background(), source, attempt, Options{
		PlannerBackend:      "gemini",
		RetryPlannerBackend: "openai",
		MaxRetries:          2,
	})

	assert.Equal(t, []string{"gemini", "openai"}, seenBackends)
}

func TestRun_SafetyGuardBlocksNewCriticalReason(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail, FailReasons: []string{"runtime_regression:1.2s>1.0s"}}

	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		return gftypes.RunSummary{
			Status:      gftypes.DecisionNeedsReview,
			FailReasons: []string{"physical_invariant_range_violated:overshoot"},
		}, nil
	}

	result := Run(context.Background(), source, attempt, Options{
		MaxRetries:         2,
		NewCriticalReasons: []string{"physical_invariant_range_violated"},
	})

	assert.True(t, result.SafetyGuardTriggered)
	assert.Equal(t, gftypes.DecisionFail, result.After.Status)
	assert.Contains(t, result.After.Reasons, "physical_invariant_range_violated:overshoot")
	assert.Contains(t, result.After.Reasons[len(result.After.Reasons)-1], "repair_safety_new_critical_reason")
}

func TestRun_SafetyGuardBlocksBlockedPrefix(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail}

	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		return gftypes.RunSummary{Status: gftypes.DecisionNeedsReview, PolicyReasons: []string{"security_violation:x"}}, nil
	}

	result := Run(context.Background(), source, attempt, Options{
		MaxRetries:           1,
		BlockNewReasonPrefix: "security_violation",
	})

	assert.True(t, result.SafetyGuardTriggered)
	assert.Equal(t, gftypes.DecisionFail, result.After.Status)
}

func TestRun_InvariantRepairAppliedDetection(t *testing.T) {
	source := gftypes.RunSummary{
		Status:      gftypes.DecisionFail,
		FailReasons: []string{"physical_invariant_range_violated:overshoot"},
	}
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		return gftypes.RunSummary{Status: gftypes.DecisionPass}, nil
	}

	result := Run(context.Background(), source, attempt, Options{MaxRetries: 1})
	assert.True(t, result.InvariantRepairApplied)
}

func TestRun_AttemptErrorRecordedAndLoopContinues(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail}

	calls := 0
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		calls++
		if idx == 1 {
			return gftypes.RunSummary{}, fmt.Errorf("backend_unavailable: connection refused")
		}
		return gftypes.RunSummary{Status: gftypes.DecisionPass}, nil
	}

	result := Run(context.Background(), source, attempt, Options{MaxRetries: 2})

	assert.Equal(t, 2, calls)
	require.Len(t, result.Attempts, 2)
	assert.Contains(t, result.Attempts[0].Reasons[0], "repair_attempt_error")
	assert.Equal(t, gftypes.DecisionPass, result.After.Status)
}

func TestRun_MaxRetriesBelowOneIsTreatedAsOne(t *testing.T) {
	source := gftypes.RunSummary{Status: gftypes.DecisionFail}

	calls := 0
	attempt := func(ctx context.Context, idx int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		calls++
		return gftypes.RunSummary{Status: gftypes.DecisionFail}, nil
	}

	Run(context.Background(), source, attempt, Options{MaxRetries: 0})
	assert.Equal(t, 1, calls)
}

func TestUnionReasons_Deduplicates(t *testing.T) {
	out := unionReasons([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestHasInvariantReason(t *testing.T) {
	assert.True(t, hasInvariantReason([]string{"physical_invariant_range_violated:overshoot"}))
	assert.False(t, hasInvariantReason([]string{"gate_not_pass"}))
}

func TestSourceReasons_UnionsFailAndPolicyReasons(t *testing.T) {
	source := gftypes.RunSummary{
		FailReasons:   []string{"gate_not_pass", "runtime_regression:1.3s>1.2s"},
		PolicyReasons: []string{"gate_not_pass", "critical_reason:gate_not_pass"},
	}
	assert.Equal(t,
		[]string{"gate_not_pass", "runtime_regression:1.3s>1.2s", "critical_reason:gate_not_pass"},
		SourceReasons(source))
}

func TestInvariantRepairNeeded(t *testing.T) {
	assert.False(t, InvariantRepairNeeded(gftypes.RunSummary{FailReasons: []string{"gate_not_pass"}}))
	assert.True(t, InvariantRepairNeeded(gftypes.RunSummary{
		PolicyReasons: []string{"physical_invariant_monotonic_violated:energy"},
	}))
}

func TestReasonKey(t *testing.T) {
	assert.Equal(t, "runtime_regression", reasonKey("runtime_regression:1.2s>1.0s"))
	assert.Equal(t, "gate_not_pass", reasonKey("gate_not_pass"))
}
