package governance

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func TestDerive_AllSignalsCleanIsPass(t *testing.T) {
	snapshot := Derive(Inputs{})
	assert.Equal(t, gftypes.DecisionPass, snapshot.Status)
	assert.Empty(t, snapshot.Risks)
	assert.Nil(t, snapshot.Trend)
}

func TestDerive_CIFailureForcesFail(t *testing.T) {
	snapshot := Derive(Inputs{CI: CIMatrixSummary{AnyJobFailed: true}})
	assert.Equal(t, gftypes.DecisionFail, snapshot.Status)
	require.Len(t, snapshot.Risks, 1)
	assert.Equal(t, "ci_job_failed", snapshot.Risks[0].Code)
}

func TestDerive_RepairDowngradeExceedsThreshold(t *testing.T) {
	snapshot := Derive(Inputs{Repair: RepairCompareSummary{StrictDowngradeRate: 0.5, DowngradeThreshold: 0.2}})
	assert.Equal(t, gftypes.DecisionFail, snapshot.Status)
	assert.Equal(t, "repair_strict_downgrade_exceeded", snapshot.Risks[0].Code)
}

func TestDerive_ReasonDistributionRegressed(t *testing.T) {
	snapshot := Derive(Inputs{Repair: RepairCompareSummary{ReasonDeltaCounts: map[string]int{"gate_not_pass": 2}}})
	assert.Equal(t, gftypes.DecisionFail, snapshot.Status)
	assert.Equal(t, "repair_reason_distribution_regressed", snapshot.Risks[0].Code)
}

func TestDerive_ReasonDistributionImprovedDoesNotRegress(t *testing.T) {
	snapshot := Derive(Inputs{Repair: RepairCompareSummary{ReasonDeltaCounts: map[string]int{"gate_not_pass": -1, "runtime_regression": 0}}})
	assert.Equal(t, gftypes.DecisionPass, snapshot.Status)
}

func TestDerive_ReviewFailRateExceedsThreshold(t *testing.T) {
	snapshot := Derive(Inputs{Review: ReviewSummary{FailRate: 0.4, FailRateThreshold: 0.1}})
	assert.Equal(t, gftypes.DecisionFail, snapshot.Status)
	assert.Equal(t, "review_fail_rate_exceeded", snapshot.Risks[0].Code)
}

func TestDerive_ReviewRecoveryBelowThresholdIsNeedsReview(t *testing.T) {
	snapshot := Derive(Inputs{Review: ReviewSummary{ReviewRecoveryRate: 0.1, RecoveryThreshold: 0.5}})
	assert.Equal(t, gftypes.DecisionNeedsReview, snapshot.Status)
	assert.Equal(t, "review_recovery_below_threshold", snapshot.Risks[0].Code)
}

func TestDerive_WorstOfMultipleSignalsWins(t *testing.T) {
	snapshot := Derive(Inputs{
		Review: ReviewSummary{ReviewRecoveryRate: 0.1, RecoveryThreshold: 0.5},
		CI:     CIMatrixSummary{AnyJobFailed: true},
	})
	assert.Equal(t, gftypes.DecisionFail, snapshot.Status)
	assert.Len(t, snapshot.Risks, 2)
}

func TestDerive_TrendAttachedWhenPreviousSupplied(t *testing.T) {
	previous := gftypes.GovernanceSnapshot{
		Status: gftypes.DecisionPass,
		KPIs:   gftypes.KPIs{ApprovalRate: 0.9, FailRate: 0.1},
		Risks:  []gftypes.Risk{{Code: "stale_risk"}},
	}

	snapshot := Derive(Inputs{
		CI:       CIMatrixSummary{AnyJobFailed: true},
		KPIs:     gftypes.KPIs{ApprovalRate: 0.7, FailRate: 0.3},
		Previous: &previous,
	})

	require.NotNil(t, snapshot.Trend)
	assert.Equal(t, "PASS->FAIL", snapshot.Trend.StatusTransition)
	assert.InDelta(t, -0.2, snapshot.Trend.KPIDelta["approval_rate"], 1e-9)
	assert.InDelta(t, 0.2, snapshot.Trend.KPIDelta["fail_rate"], 1e-9)
	require.Len(t, snapshot.Trend.NewRisks, 1)
	assert.Equal(t, "ci_job_failed", snapshot.Trend.NewRisks[0].Code)
	require.Len(t, snapshot.Trend.ResolvedRisks, 1)
	assert.Equal(t, "stale_risk", snapshot.Trend.ResolvedRisks[0].Code)
}

func TestAppendAndLoadHistory_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.jsonl")

	require.NoError(t, AppendHistory(path, HistoryEntry{Label: "run-1", Snapshot: gftypes.GovernanceSnapshot{Status: gftypes.DecisionPass}}))
	require.NoError(t, AppendHistory(path, HistoryEntry{Label: "run-2", Snapshot: gftypes.GovernanceSnapshot{Status: gftypes.DecisionFail}}))

	entries, err := LoadHistory(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-1", entries[0].Label)
	assert.Equal(t, gftypes.DecisionFail, entries[1].Snapshot.Status)
}
