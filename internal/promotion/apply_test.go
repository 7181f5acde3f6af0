package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func passCompare() CompareResult {
	return Compare([]CandidateResult{
		{Profile: "default", Decision: gftypes.DecisionPass, ExitCode: 0},
		{Profile: "strict", Decision: gftypes.DecisionFail, ExitCode: 1, Reasons: []string{"gate_not_pass"}},
	})
}

func passDecision() gftypes.PromotionDecision {
	return passCompare().Decision(gftypes.DecisionPass, 0, false)
}

func TestCompareResultDecision_Lowering(t *testing.T) {
	compared := passCompare()
	pd := compared.Decision(gftypes.DecisionPass, 0, false)

	assert.Equal(t, "default", pd.Profile)
	assert.Equal(t, gftypes.DecisionPass, pd.Decision)
	assert.Equal(t, compared.TopScoreMargin, pd.TopScoreMargin)
	assert.Equal(t, compared.Explanations, pd.DecisionExplanations)
	assert.Empty(t, pd.ConstraintReason)
}

func TestCompareResultDecision_MarginConstraintRecorded(t *testing.T) {
	compared := passCompare()
	pd := compared.Decision(gftypes.DecisionPass, compared.TopScoreMargin+1, false)
	assert.Equal(t, "top_score_margin_below_min", pd.ConstraintReason)
}

func TestApply_PassPromotes(t *testing.T) {
	record := Apply(passDecision(), ApplyOptions{})
	assert.Equal(t, gftypes.ApplyPromote, record.ApplyAction)
	assert.Equal(t, gftypes.DecisionPass, record.FinalStatus)
	assert.Empty(t, record.Reasons)
}

func TestApply_NeedsReviewHoldsWithTicket(t *testing.T) {
	pd := passCompare().Decision(gftypes.DecisionNeedsReview, 0, false)
	record := Apply(pd, ApplyOptions{ReviewTicketID: "REV-42"})
	assert.Equal(t, gftypes.ApplyHoldForReview, record.ApplyAction)
	assert.Equal(t, gftypes.DecisionNeedsReview, record.FinalStatus)
	assert.Equal(t, "REV-42", record.ReviewTicketID)
}

func TestApply_NeedsReviewWithoutTicketFails(t *testing.T) {
	pd := passCompare().Decision(gftypes.DecisionNeedsReview, 0, false)
	record := Apply(pd, ApplyOptions{})
	assert.Equal(t, gftypes.DecisionFail, record.FinalStatus)
	assert.Contains(t, record.Reasons, "needs_review_ticket_required")
}

func TestApply_FailBlocks(t *testing.T) {
	pd := passCompare().Decision(gftypes.DecisionFail, 0, false)
	record := Apply(pd, ApplyOptions{})
	assert.Equal(t, gftypes.ApplyBlock, record.ApplyAction)
	assert.Equal(t, gftypes.DecisionFail, record.FinalStatus)
}

func TestApply_RankingExplanationGuard(t *testing.T) {
	// A single-candidate compare has no best_vs_others rows.
	single := Compare([]CandidateResult{{Profile: "only", Decision: gftypes.DecisionPass, ExitCode: 0}})
	pd := single.Decision(gftypes.DecisionPass, 0, false)

	record := Apply(pd, ApplyOptions{RequireRankingExplanation: true})
	assert.Equal(t, gftypes.DecisionFail, record.FinalStatus)
	assert.Contains(t, record.Reasons, "ranking_explanation_required")

	record = Apply(passDecision(), ApplyOptions{RequireRankingExplanation: true})
	assert.Equal(t, gftypes.ApplyPromote, record.ApplyAction)
	assert.Equal(t, gftypes.DecisionPass, record.FinalStatus)
}

func TestApply_MinTopScoreMarginGuard(t *testing.T) {
	pd := passDecision()
	tooHigh := pd.TopScoreMargin + 1

	record := Apply(pd, ApplyOptions{RequireMinTopScoreMargin: &tooHigh})
	assert.Equal(t, gftypes.DecisionFail, record.FinalStatus)
	assert.Contains(t, record.Reasons, "top_score_margin_below_min")
	require.NotNil(t, record.RequireMinTopScoreMargin)
	assert.Equal(t, tooHigh, *record.RequireMinTopScoreMargin)

	exact := pd.TopScoreMargin
	record = Apply(pd, ApplyOptions{RequireMinTopScoreMargin: &exact})
	assert.Equal(t, gftypes.DecisionPass, record.FinalStatus)
}

func TestApply_MinExplanationQualityGuard(t *testing.T) {
	pd := passDecision()
	impossible := pd.ExplanationQuality.Score + 1

	record := Apply(pd, ApplyOptions{RequireMinExplanationQuality: &impossible})
	assert.Equal(t, gftypes.DecisionFail, record.FinalStatus)
	assert.Contains(t, record.Reasons, "explanation_quality_below_min")

	ok := pd.ExplanationQuality.Score
	record = Apply(pd, ApplyOptions{RequireMinExplanationQuality: &ok})
	assert.Equal(t, gftypes.DecisionPass, record.FinalStatus)
}
