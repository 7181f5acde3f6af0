package review

import (
	"sort"
	"time"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// KPISet is the full set of KPIs review_ledger derives from a filtered
// record set, per spec.md §4.8.
type KPISet struct {
	ApprovalRate          float64                   `json:"approval_rate"`
	FailRate              float64                   `json:"fail_rate"`
	RiskStatusCounts      map[string]map[string]int `json:"risk_status_counts"`
	Last7DaysVolume       []int                     `json:"last_7_days_volume"`
	ResolutionLatencyAvg  float64                   `json:"resolution_latency_avg_seconds"`
	ResolutionLatencyP95  float64                   `json:"resolution_latency_p95_seconds"`
	SLABreachRate         float64                   `json:"sla_breach_rate"`
	GuardrailFailRate     float64                   `json:"guardrail_fail_rate"`
	ReviewRecoveryRate    float64                   `json:"review_recovery_rate"`
	StrictNonPassRate     float64                   `json:"strict_non_pass_rate"`
	GuardrailRuleIDCounts map[string]int            `json:"guardrail_rule_id_counts"`
	PolicyProfileCounts   map[string]int            `json:"policy_profile_counts"`
}

// DeriveKPIs computes KPISet over records as of "now", against slaSeconds.
func DeriveKPIs(records []gftypes.LedgerRecord, slaSeconds float64, now time.Time) KPISet {
	kpi := KPISet{
		RiskStatusCounts:      map[string]map[string]int{},
		Last7DaysVolume:       make([]int, 7),
		GuardrailRuleIDCounts: map[string]int{},
		PolicyProfileCounts:   map[string]int{},
	}
	if len(records) == 0 {
		return kpi
	}

	var approved, failed, slaBreaches, guardrailFails, recovered, strictNonPass int
	var latencies []float64

	dayStart := now.Truncate(24 * time.Hour)

	for _, r := range records {
		if r.FinalStatus == gftypes.DecisionPass {
			approved++
		}
		if r.FinalStatus == gftypes.DecisionFail {
			failed++
		}
		if r.FinalStatus != gftypes.DecisionPass {
			strictNonPass++
		}
		if r.SourceStatus == gftypes.DecisionNeedsReview && r.FinalStatus == gftypes.DecisionPass {
			recovered++
		}
		if len(r.PlannerGuardrailRuleIDs) > 0 {
			guardrailFails++
			for _, id := range r.PlannerGuardrailRuleIDs {
				kpi.GuardrailRuleIDCounts[id]++
			}
		}
		if r.PolicyProfile != "" {
			kpi.PolicyProfileCounts[r.PolicyProfile]++
		}

		risk := string(r.RiskLevel)
		if kpi.RiskStatusCounts[risk] == nil {
			kpi.RiskStatusCounts[risk] = map[string]int{}
		}
		kpi.RiskStatusCounts[risk][string(r.FinalStatus)]++

		latencies = append(latencies, r.ResolutionSeconds)
		if slaSeconds > 0 && r.ResolutionSeconds > slaSeconds {
			slaBreaches++
		}

		daysAgo := int(dayStart.Sub(r.ResolvedAt.Truncate(24*time.Hour)).Hours() / 24)
		if daysAgo >= 0 && daysAgo < 7 {
			kpi.Last7DaysVolume[6-daysAgo]++
		}
	}

	total := float64(len(records))
	kpi.ApprovalRate = float64(approved) / total
	kpi.FailRate = float64(failed) / total
	kpi.SLABreachRate = float64(slaBreaches) / total
	kpi.GuardrailFailRate = float64(guardrailFails) / total
	kpi.StrictNonPassRate = float64(strictNonPass) / total

	needsReviewTotal := 0
	for _, r := range records {
		if r.SourceStatus == gftypes.DecisionNeedsReview {
			needsReviewTotal++
		}
	}
	if needsReviewTotal > 0 {
		kpi.ReviewRecoveryRate = float64(recovered) / float64(needsReviewTotal)
	}

	sort.Float64s(latencies)
	kpi.ResolutionLatencyAvg = average(latencies)
	kpi.ResolutionLatencyP95 = percentile(latencies, 0.95)

	return kpi
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile expects values sorted ascending and uses the nearest-rank
// method: the value at rank ceil(p*n).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p * float64(len(sorted))
	idx := int(rank)
	if float64(idx) < rank {
		idx++
	}
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
