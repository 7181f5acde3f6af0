// Package governance fuses repair, review, and CI summaries into one
// governance verdict, and maintains a JSONL history index with
// worsening-streak detection. It is grounded in the teacher's multi-signal
// aggregation style (internal/validation combining several checker outputs
// into one overall result) applied to GateForge's three upstream summaries
// instead of code-quality checks.
package governance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// CIMatrixSummary is the minimal shape governance needs from a CI run.
type CIMatrixSummary struct {
	AnyJobFailed bool `json:"any_job_failed"`
}

// RepairCompareSummary is the minimal shape governance needs from a repair
// batch / profile-compare result.
type RepairCompareSummary struct {
	StrictDowngradeRate float64        `json:"strict_downgrade_rate"`
	DowngradeThreshold  float64        `json:"downgrade_threshold"`
	ReasonDeltaCounts   map[string]int `json:"reason_delta_counts"`
}

// ReviewSummary is the minimal shape governance needs from a review-ledger
// KPI derivation.
type ReviewSummary struct {
	FailRate           float64 `json:"fail_rate"`
	FailRateThreshold  float64 `json:"fail_rate_threshold"`
	ReviewRecoveryRate float64 `json:"review_recovery_rate"`
	RecoveryThreshold  float64 `json:"recovery_threshold"`
}

// Inputs bundles everything one governance snapshot is derived from.
type Inputs struct {
	CI       CIMatrixSummary
	Repair   RepairCompareSummary
	Review   ReviewSummary
	KPIs     gftypes.KPIs
	Previous *gftypes.GovernanceSnapshot
}

// Derive computes a GovernanceSnapshot per spec.md §4.9: status is the worst
// of the three input signals, risks are order-stable, and a trend is
// attached whenever a previous snapshot was supplied.
func Derive(in Inputs) gftypes.GovernanceSnapshot {
	status := gftypes.DecisionPass
	var risks []gftypes.Risk

	if in.CI.AnyJobFailed {
		status = worst(status, gftypes.DecisionFail)
		risks = append(risks, gftypes.Risk{Code: "ci_job_failed", Message: "at least one selected CI job failed"})
	}

	if in.Repair.DowngradeThreshold > 0 && in.Repair.StrictDowngradeRate > in.Repair.DowngradeThreshold {
		status = worst(status, gftypes.DecisionFail)
		risks = append(risks, gftypes.Risk{
			Code:    "repair_strict_downgrade_exceeded",
			Message: fmt.Sprintf("strict_downgrade_rate %.3g exceeds threshold %.3g", in.Repair.StrictDowngradeRate, in.Repair.DowngradeThreshold),
		})
	}
	if reasonDistributionRegressed(in.Repair.ReasonDeltaCounts) {
		status = worst(status, gftypes.DecisionFail)
		risks = append(risks, gftypes.Risk{Code: "repair_reason_distribution_regressed", Message: "failure-reason distribution regressed between compared profiles"})
	}

	if in.Review.FailRateThreshold > 0 && in.Review.FailRate > in.Review.FailRateThreshold {
		status = worst(status, gftypes.DecisionFail)
		risks = append(risks, gftypes.Risk{
			Code:    "review_fail_rate_exceeded",
			Message: fmt.Sprintf("review fail_rate %.3g exceeds threshold %.3g", in.Review.FailRate, in.Review.FailRateThreshold),
		})
	}
	if in.Review.RecoveryThreshold > 0 && in.Review.ReviewRecoveryRate < in.Review.RecoveryThreshold {
		status = worst(status, gftypes.DecisionNeedsReview)
		risks = append(risks, gftypes.Risk{
			Code:    "review_recovery_below_threshold",
			Message: fmt.Sprintf("review_recovery_rate %.3g below threshold %.3g", in.Review.ReviewRecoveryRate, in.Review.RecoveryThreshold),
		})
	}

	snapshot := gftypes.GovernanceSnapshot{
		Status: status,
		KPIs:   in.KPIs,
		Risks:  risks,
	}

	if in.Previous != nil {
		snapshot.Trend = deriveTrend(*in.Previous, snapshot)
	}

	return snapshot
}

func worst(a, b gftypes.Decision) gftypes.Decision {
	if a.Worse(b) {
		return a
	}
	return b
}

func reasonDistributionRegressed(deltaCounts map[string]int) bool {
	for _, delta := range deltaCounts {
		if delta > 0 {
			return true
		}
	}
	return false
}

func deriveTrend(previous, current gftypes.GovernanceSnapshot) *gftypes.Trend {
	kpiDelta := map[string]float64{
		"strict_downgrade_rate": current.KPIs.StrictDowngradeRate - previous.KPIs.StrictDowngradeRate,
		"review_recovery_rate":  current.KPIs.ReviewRecoveryRate - previous.KPIs.ReviewRecoveryRate,
		"strict_non_pass_rate":  current.KPIs.StrictNonPassRate - previous.KPIs.StrictNonPassRate,
		"approval_rate":         current.KPIs.ApprovalRate - previous.KPIs.ApprovalRate,
		"fail_rate":             current.KPIs.FailRate - previous.KPIs.FailRate,
	}

	newRisks, resolvedRisks := diffRisks(previous.Risks, current.Risks)

	return &gftypes.Trend{
		StatusTransition: fmt.Sprintf("%s->%s", previous.Status, current.Status),
		KPIDelta:         kpiDelta,
		NewRisks:         newRisks,
		ResolvedRisks:    resolvedRisks,
	}
}

func diffRisks(before, after []gftypes.Risk) (newRisks, resolved []gftypes.Risk) {
	beforeSet := map[string]bool{}
	for _, r := range before {
		beforeSet[r.Code] = true
	}
	afterSet := map[string]bool{}
	for _, r := range after {
		afterSet[r.Code] = true
	}
	for _, r := range after {
		if !beforeSet[r.Code] {
			newRisks = append(newRisks, r)
		}
	}
	for _, r := range before {
		if !afterSet[r.Code] {
			resolved = append(resolved, r)
		}
	}
	return
}

// HistoryEntry is one row of governance/index.jsonl.
type HistoryEntry struct {
	Label     string                     `json:"label"`
	Timestamp time.Time                  `json:"timestamp"`
	Snapshot  gftypes.GovernanceSnapshot `json:"snapshot"`
}

// AppendHistory appends one labeled snapshot to the JSONL history index.
func AppendHistory(path string, entry HistoryEntry) error {
	return artifact.AppendJSONL(path, entry)
}

// LoadHistory reads every history entry from path, in file order.
func LoadHistory(path string) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := artifact.ReadJSONL(path, func(raw json.RawMessage) error {
		var e HistoryEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}
