// Package review joins a NEEDS_REVIEW run with a human reviewer's decision
// and maintains the append-only review ledger, grounded in the teacher's
// internal/hitl human-approval-gate pattern but built around GateForge's
// ledger record instead of an in-memory approval queue.
package review

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Resolve joins source (a NEEDS_REVIEW Run Summary) with decision and
// returns the final decision plus any reasons explaining why it stayed
// NEEDS_REVIEW, per spec.md §4.8.
func Resolve(source gftypes.RunSummary, decision gftypes.ReviewDecision, highRisk bool) (gftypes.Decision, []string) {
	switch decision.Decision {
	case "approve":
		if highRisk && decision.SecondDecision != "approve" {
			return gftypes.DecisionNeedsReview, []string{"needs_second_reviewer"}
		}
		return gftypes.DecisionPass, nil
	case "reject":
		return gftypes.DecisionFail, nil
	default:
		return gftypes.DecisionNeedsReview, []string{"review_decision_invalid"}
	}
}

// AppendLedger writes one resolution as a JSONL row to the review ledger.
func AppendLedger(ledgerPath string, record gftypes.LedgerRecord) error {
	return artifact.AppendJSONL(ledgerPath, record)
}

// BuildLedgerRecord assembles the ledger row for one resolved review.
func BuildLedgerRecord(source gftypes.RunSummary, decision gftypes.ReviewDecision, final gftypes.Decision, risk gftypes.RiskLevel) gftypes.LedgerRecord {
	resolvedAt := time.Now().UTC()
	createdAt := decision.CreatedAt
	if createdAt.IsZero() {
		createdAt = resolvedAt
	}

	var ruleIDs []string
	for _, v := range source.PlannerGuardrailViolations {
		ruleIDs = append(ruleIDs, v.RuleID)
	}

	return gftypes.LedgerRecord{
		ProposalID:                source.ProposalID,
		RiskLevel:                 risk,
		SourceStatus:              source.Status,
		FinalStatus:               final,
		Reviewer:                  decision.Reviewer,
		SecondReviewer:            decision.SecondReviewer,
		Decision:                  decision.Decision,
		CreatedAt:                 createdAt,
		ResolvedAt:                resolvedAt,
		ResolutionSeconds:         resolvedAt.Sub(createdAt).Seconds(),
		PolicyProfile:             source.Toolchain.PolicyProfile,
		PolicyVersion:             source.Toolchain.PolicyVersion,
		PlannerGuardrailDecision:  source.PlannerGuardrailDecision,
		PlannerGuardrailRuleIDs:   ruleIDs,
	}
}

// Filter narrows a ledger's records by the review_ledger command's supported
// predicates: final status, proposal id, and a since-UTC cutoff.
type Filter struct {
	FinalStatus string
	ProposalID  string
	SinceUTC    time.Time
}

func (f Filter) matches(r gftypes.LedgerRecord) bool {
	if f.FinalStatus != "" && string(r.FinalStatus) != f.FinalStatus {
		return false
	}
	if f.ProposalID != "" && r.ProposalID != f.ProposalID {
		return false
	}
	if !f.SinceUTC.IsZero() && r.ResolvedAt.Before(f.SinceUTC) {
		return false
	}
	return true
}

// LoadLedger reads every record from path in file order.
func LoadLedger(path string) ([]gftypes.LedgerRecord, error) {
	var records []gftypes.LedgerRecord
	err := artifact.ReadJSONL(path, func(raw json.RawMessage) error {
		var r gftypes.LedgerRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("decode ledger record: %w", err)
		}
		records = append(records, r)
		return nil
	})
	return records, err
}

// Export filters a ledger's records.
func Export(records []gftypes.LedgerRecord, filter Filter) []gftypes.LedgerRecord {
	var out []gftypes.LedgerRecord
	for _, r := range records {
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	return out
}
