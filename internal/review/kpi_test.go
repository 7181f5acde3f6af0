package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func TestDeriveKPIs_EmptyRecordsYieldsZeroValue(t *testing.T) {
	kpi := DeriveKPIs(nil, 3600, time.Now().UTC())
	assert.Zero(t, kpi.ApprovalRate)
	assert.NotNil(t, kpi.RiskStatusCounts)
	assert.Len(t, kpi.Last7DaysVolume, 7)
}

func TestDeriveKPIs_RatesAndCounts(t *testing.T) {
	now := time.Now().UTC()
	records := []gftypes.LedgerRecord{
		{RiskLevel: gftypes.RiskHigh, SourceStatus: gftypes.DecisionNeedsReview, FinalStatus: gftypes.DecisionPass, ResolvedAt: now, ResolutionSeconds: 100, PolicyProfile: "default"},
		{RiskLevel: gftypes.RiskMedium, SourceStatus: gftypes.DecisionNeedsReview, FinalStatus: gftypes.DecisionFail, ResolvedAt: now, ResolutionSeconds: 9000, PlannerGuardrailRuleIDs: []string{"change_plan_file_not_allowed:x"}},
		{RiskLevel: gftypes.RiskLow, SourceStatus: gftypes.DecisionPass, FinalStatus: gftypes.DecisionPass, ResolvedAt: now, ResolutionSeconds: 50},
	}

	kpi := DeriveKPIs(records, 3600, now)

	assert.InDelta(t, 2.0/3.0, kpi.ApprovalRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, kpi.FailRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, kpi.StrictNonPassRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, kpi.SLABreachRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, kpi.GuardrailFailRate, 1e-9)
	// review_recovery_rate denominator is records with source_status == NEEDS_REVIEW (2 of 3); 1 of those recovered.
	assert.InDelta(t, 0.5, kpi.ReviewRecoveryRate, 1e-9)
	assert.Equal(t, 1, kpi.GuardrailRuleIDCounts["change_plan_file_not_allowed:x"])
	assert.Equal(t, 1, kpi.PolicyProfileCounts["default"])
	assert.Equal(t, 1, kpi.RiskStatusCounts["high"]["PASS"])
}

func TestDeriveKPIs_Last7DaysVolumeBucketsByDay(t *testing.T) {
	now := time.Now().UTC()
	records := []gftypes.LedgerRecord{
		{ResolvedAt: now, FinalStatus: gftypes.DecisionPass},
		{ResolvedAt: now.AddDate(0, 0, -6), FinalStatus: gftypes.DecisionPass},
		{ResolvedAt: now.AddDate(0, 0, -10), FinalStatus: gftypes.DecisionPass},
	}

	kpi := DeriveKPIs(records, 0, now)

	assert.Equal(t, 1, kpi.Last7DaysVolume[6])
	assert.Equal(t, 1, kpi.Last7DaysVolume[0])
	total := 0
	for _, v := range kpi.Last7DaysVolume {
		total += v
	}
	assert.Equal(t, 2, total)
}

func TestDeriveKPIs_NoSLAThresholdMeansNoBreaches(t *testing.T) {
	now := time.Now().UTC()
	records := []gftypes.LedgerRecord{{ResolvedAt: now, ResolutionSeconds: 1e9, FinalStatus: gftypes.DecisionPass}}

	kpi := DeriveKPIs(records, 0, now)
	assert.Zero(t, kpi.SLABreachRate)
}

func TestDeriveKPIs_ReviewRecoveryRateZeroWhenNoNeedsReviewSources(t *testing.T) {
	now := time.Now().UTC()
	records := []gftypes.LedgerRecord{{SourceStatus: gftypes.DecisionPass, FinalStatus: gftypes.DecisionPass, ResolvedAt: now}}

	kpi := DeriveKPIs(records, 0, now)
	assert.Zero(t, kpi.ReviewRecoveryRate)
}

func TestAverage(t *testing.T) {
	assert.Zero(t, average(nil))
	assert.InDelta(t, 2.0, average([]float64{1, 2, 3}), 1e-9)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 50, percentile(sorted, 0.95), 1e-9)
	assert.InDelta(t, 10, percentile(sorted, 0), 1e-9)
	assert.Zero(t, percentile(nil, 0.95))
}
