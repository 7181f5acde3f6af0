package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/governance"
)

var governanceSnapshotCmd = &cobra.Command{
	Use:   "governance-snapshot",
	Short: "Fuse CI, repair-compare, and review-ledger signals into one governance verdict",
	RunE:  runGovernanceSnapshot,
}

func init() {
	governanceSnapshotCmd.Flags().String("ci", "", "path to a CI Matrix Summary JSON")
	governanceSnapshotCmd.Flags().String("repair-compare", "", "path to a repair Profile Compare Result JSON")
	governanceSnapshotCmd.Flags().Float64("downgrade-threshold", 0, "strict_downgrade_rate above this fails")
	governanceSnapshotCmd.Flags().String("review-kpis", "", "path to a review-ledger KPI Set JSON")
	governanceSnapshotCmd.Flags().Float64("fail-rate-threshold", 0, "review fail_rate above this fails")
	governanceSnapshotCmd.Flags().Float64("recovery-threshold", 0, "review_recovery_rate below this needs review")
	governanceSnapshotCmd.Flags().String("previous", "", "path to the previous Governance Snapshot JSON, for trend")
	governanceSnapshotCmd.Flags().String("out", "", "path to write the snapshot")
}

func runGovernanceSnapshot(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	ciPath, _ := flags.GetString("ci")
	repairPath, _ := flags.GetString("repair-compare")
	downgradeThreshold, _ := flags.GetFloat64("downgrade-threshold")
	reviewKPIsPath, _ := flags.GetString("review-kpis")
	failRateThreshold, _ := flags.GetFloat64("fail-rate-threshold")
	recoveryThreshold, _ := flags.GetFloat64("recovery-threshold")
	previousPath, _ := flags.GetString("previous")
	outPath, _ := flags.GetString("out")

	in := governance.Inputs{}

	if ciPath != "" {
		if err := artifact.ReadJSON(ciPath, &in.CI); err != nil {
			return usageError("read CI matrix summary: %v", err)
		}
	}

	if repairPath != "" {
		var cmp struct {
			StrictDowngradeRate float64        `json:"strict_downgrade_rate"`
			ReasonDeltaCounts   map[string]int `json:"reason_delta_counts"`
			RecommendedProfile  string         `json:"recommended_profile"`
		}
		if err := artifact.ReadJSON(repairPath, &cmp); err != nil {
			return usageError("read repair compare result: %v", err)
		}
		in.Repair = governance.RepairCompareSummary{
			StrictDowngradeRate: cmp.StrictDowngradeRate,
			DowngradeThreshold:  downgradeThreshold,
			ReasonDeltaCounts:   cmp.ReasonDeltaCounts,
		}
		in.KPIs.StrictDowngradeRate = cmp.StrictDowngradeRate
		in.KPIs.RecommendedProfile = cmp.RecommendedProfile
	}

	if reviewKPIsPath != "" {
		var kpis struct {
			FailRate           float64 `json:"fail_rate"`
			ReviewRecoveryRate float64 `json:"review_recovery_rate"`
			ApprovalRate       float64 `json:"approval_rate"`
			StrictNonPassRate  float64 `json:"strict_non_pass_rate"`
		}
		if err := artifact.ReadJSON(reviewKPIsPath, &kpis); err != nil {
			return usageError("read review KPI set: %v", err)
		}
		in.Review = governance.ReviewSummary{
			FailRate:           kpis.FailRate,
			FailRateThreshold:  failRateThreshold,
			ReviewRecoveryRate: kpis.ReviewRecoveryRate,
			RecoveryThreshold:  recoveryThreshold,
		}
		in.KPIs.FailRate = kpis.FailRate
		in.KPIs.ReviewRecoveryRate = kpis.ReviewRecoveryRate
		in.KPIs.ApprovalRate = kpis.ApprovalRate
		in.KPIs.StrictNonPassRate = kpis.StrictNonPassRate
	}

	if previousPath != "" {
		var previous gftypes.GovernanceSnapshot
		if err := artifact.ReadJSON(previousPath, &previous); err != nil {
			return usageError("read previous snapshot: %v", err)
		}
		in.Previous = &previous
	}

	snapshot := governance.Derive(in)

	if outPath != "" {
		if err := artifact.WriteJSON(outPath, snapshot); err != nil {
			return logicalFailure("write governance snapshot: %v", err)
		}
	}
	if err := printJSON(cmd, snapshot); err != nil {
		return err
	}
	return exitForDecision(snapshot.Status)
}

var governanceHistoryCmd = &cobra.Command{
	Use:   "governance-history",
	Short: "Append a labeled snapshot to the governance history index, or summarize its window",
	RunE:  runGovernanceHistory,
}

func init() {
	governanceHistoryCmd.Flags().String("history", "governance/index.jsonl", "governance history JSONL path")
	governanceHistoryCmd.Flags().String("append", "", "path to a Governance Snapshot JSON to append")
	governanceHistoryCmd.Flags().String("label", "", "label for the appended entry")
	governanceHistoryCmd.Flags().Int("window", 10, "trailing window size to summarize")
	governanceHistoryCmd.Flags().Int("worsening-streak-threshold", 3, "consecutive worsening transitions that raise an alert")
}

func runGovernanceHistory(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	historyPath, _ := flags.GetString("history")
	appendPath, _ := flags.GetString("append")
	label, _ := flags.GetString("label")
	window, _ := flags.GetInt("window")
	alertThreshold, _ := flags.GetInt("worsening-streak-threshold")

	if appendPath != "" {
		var snapshot gftypes.GovernanceSnapshot
		if err := artifact.ReadJSON(appendPath, &snapshot); err != nil {
			return usageError("read governance snapshot: %v", err)
		}
		entry := governance.HistoryEntry{Label: label, Timestamp: time.Now().UTC(), Snapshot: snapshot}
		if err := governance.AppendHistory(historyPath, entry); err != nil {
			return logicalFailure("append governance history: %v", err)
		}
	}

	entries, err := governance.LoadHistory(historyPath)
	if err != nil {
		return usageError("load governance history: %v", err)
	}

	summary := governance.SummarizeWindow(entries, window, alertThreshold)
	return printJSON(cmd, map[string]any{
		"entry_count": len(entries),
		"window":      summary,
	})
}
