// Package promotion implements the promote -> compare -> apply chain:
// deciding whether a governance snapshot clears a promotion profile's gate,
// scoring competing profiles against each other, and recording every apply
// decision to an append-only audit log. Grounded in the teacher's scored
// multi-candidate ranking style (internal/hitl's quality-gate scoring)
// generalized to GateForge's profile-vs-profile comparison.
package promotion

import (
	"time"

	"github.com/google/uuid"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Profile is a promotion gate: the status/KPI/risk constraints a snapshot
// must clear to be eligible for promotion.
type Profile struct {
	Name                          string             `json:"name"`
	RequireStatus                 []gftypes.Decision `json:"require_status"`
	RequireKPIFloors              map[string]float64 `json:"require_kpi_floors"`
	RequireNoRisks                []string           `json:"require_no_risks"`
	AllowPromoteEvenIfNeedsReview bool               `json:"allow_promote_even_if_needs_review"`
}

// Override lets an operator force-allow promotion despite a failed gate.
type Override struct {
	AllowPromote bool      `json:"allow_promote"`
	Reason       string    `json:"reason"`
	Approver     string    `json:"approver"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Active reports whether the override applies at the given time: it must
// allow promotion and not be expired.
func (o *Override) Active(now time.Time) bool {
	return o != nil && o.AllowPromote && (o.ExpiresAt.IsZero() || now.Before(o.ExpiresAt))
}

// Promote evaluates one snapshot against one profile and returns the decision
// a gate failure alone would produce, before any cross-profile scoring.
func Promote(snapshot gftypes.GovernanceSnapshot, profile Profile, override *Override, now time.Time) gftypes.Decision {
	if override.Active(now) {
		return gftypes.DecisionPass
	}

	statusOK := len(profile.RequireStatus) == 0
	for _, s := range profile.RequireStatus {
		if snapshot.Status == s {
			statusOK = true
			break
		}
	}
	if !statusOK {
		if profile.AllowPromoteEvenIfNeedsReview && snapshot.Status == gftypes.DecisionNeedsReview {
			statusOK = true
		}
	}
	if !statusOK {
		return gftypes.DecisionFail
	}

	riskSet := map[string]bool{}
	for _, r := range snapshot.Risks {
		riskSet[r.Code] = true
	}
	for _, forbidden := range profile.RequireNoRisks {
		if riskSet[forbidden] {
			return gftypes.DecisionFail
		}
	}

	for kpiName, floor := range profile.RequireKPIFloors {
		if kpiValue(snapshot.KPIs, kpiName) < floor {
			return gftypes.DecisionFail
		}
	}

	return snapshot.Status
}

func kpiValue(kpis gftypes.KPIs, name string) float64 {
	switch name {
	case "strict_downgrade_rate":
		return kpis.StrictDowngradeRate
	case "review_recovery_rate":
		return kpis.ReviewRecoveryRate
	case "strict_non_pass_rate":
		return kpis.StrictNonPassRate
	case "approval_rate":
		return kpis.ApprovalRate
	case "fail_rate":
		return kpis.FailRate
	default:
		return 0
	}
}

// ApplyAuditRow is one decision-audit-log line: who applied what, when,
// and the full apply record they produced.
type ApplyAuditRow struct {
	RowID     string              `json:"row_id"`
	Actor     string              `json:"actor"`
	AppliedAt time.Time           `json:"applied_at"`
	Decision  gftypes.Decision    `json:"decision"`
	Record    gftypes.ApplyRecord `json:"record"`
}

// AppendApplyLog appends one apply-decision audit row.
func AppendApplyLog(path, actor string, decision gftypes.Decision, record gftypes.ApplyRecord, now time.Time) error {
	return artifact.AppendJSONL(path, ApplyAuditRow{
		RowID:     uuid.NewString(),
		Actor:     actor,
		AppliedAt: now,
		Decision:  decision,
		Record:    record,
	})
}
