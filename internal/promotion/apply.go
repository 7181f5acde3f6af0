package promotion

import (
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// ApplyOptions configures the strict guards a promotion apply may enforce.
type ApplyOptions struct {
	ReviewTicketID               string
	RequireRankingExplanation    bool
	RequireMinTopScoreMargin     *float64
	RequireMinExplanationQuality *int
}

// Apply implements spec.md §4.10's deterministic decision->action mapping
// plus its three strict guards, any of which can still downgrade an
// otherwise-passing decision to FAIL.
func Apply(pd gftypes.PromotionDecision, opts ApplyOptions) gftypes.ApplyRecord {
	record := gftypes.ApplyRecord{
		FinalStatus:              pd.Decision,
		RankingSelectionPriority: pd.DecisionExplanations.SelectionPriority,
		RankingBestVsOthers:      pd.DecisionExplanations.BestVsOthers,
	}

	if opts.RequireRankingExplanation {
		record.RequireRankingExplanation = true
		if len(pd.DecisionExplanations.BestVsOthers) == 0 {
			return fail(record, "ranking_explanation_required")
		}
	}
	if opts.RequireMinTopScoreMargin != nil {
		record.RequireMinTopScoreMargin = opts.RequireMinTopScoreMargin
		if pd.TopScoreMargin < *opts.RequireMinTopScoreMargin {
			return fail(record, "top_score_margin_below_min")
		}
	}
	if opts.RequireMinExplanationQuality != nil {
		record.RequireMinExplanationQuality = opts.RequireMinExplanationQuality
		if pd.ExplanationQuality.Score < *opts.RequireMinExplanationQuality {
			return fail(record, "explanation_quality_below_min")
		}
	}

	switch pd.Decision {
	case gftypes.DecisionPass:
		record.ApplyAction = gftypes.ApplyPromote
		record.FinalStatus = gftypes.DecisionPass
	case gftypes.DecisionNeedsReview:
		record.ApplyAction = gftypes.ApplyHoldForReview
		record.FinalStatus = gftypes.DecisionNeedsReview
		if opts.ReviewTicketID == "" {
			return fail(record, "needs_review_ticket_required")
		}
		record.ReviewTicketID = opts.ReviewTicketID
	default:
		record.ApplyAction = gftypes.ApplyBlock
		record.FinalStatus = gftypes.DecisionFail
	}

	return record
}

func fail(record gftypes.ApplyRecord, reason string) gftypes.ApplyRecord {
	record.ApplyAction = gftypes.ApplyBlock
	record.FinalStatus = gftypes.DecisionFail
	record.Reasons = append(record.Reasons, reason)
	return record
}
