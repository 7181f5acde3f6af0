package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/review"
)

var reviewResolveCmd = &cobra.Command{
	Use:   "review-resolve",
	Short: "Join a NEEDS_REVIEW run with a human decision and append the ledger",
	RunE:  runReviewResolve,
}

func init() {
	reviewResolveCmd.Flags().String("source", "", "path to the source Run Summary JSON")
	reviewResolveCmd.Flags().String("decision", "", "path to the Review Decision JSON")
	reviewResolveCmd.Flags().Bool("high-risk", false, "treat this review as high risk (requires a second approval)")
	reviewResolveCmd.Flags().String("risk-level", "medium", "risk level recorded in the ledger row")
	reviewResolveCmd.Flags().String("ledger", "review_ledger.jsonl", "append-only review ledger path")
	reviewResolveCmd.MarkFlagRequired("source")
	reviewResolveCmd.MarkFlagRequired("decision")
}

func runReviewResolve(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	sourcePath, _ := flags.GetString("source")
	decisionPath, _ := flags.GetString("decision")
	highRisk, _ := flags.GetBool("high-risk")
	riskLevel, _ := flags.GetString("risk-level")
	ledgerPath, _ := flags.GetString("ledger")

	var source gftypes.RunSummary
	if err := artifact.ReadJSON(sourcePath, &source); err != nil {
		return usageError("read source run summary: %v", err)
	}
	var decision gftypes.ReviewDecision
	if err := artifact.ReadJSON(decisionPath, &decision); err != nil {
		return usageError("read review decision: %v", err)
	}

	final, reasons := review.Resolve(source, decision, highRisk)
	record := review.BuildLedgerRecord(source, decision, final, gftypes.RiskLevel(riskLevel))

	if err := review.AppendLedger(ledgerPath, record); err != nil {
		return logicalFailure("append review ledger: %v", err)
	}

	out := map[string]any{
		"final_status": final,
		"reasons":      reasons,
		"ledger_record": record,
	}
	if err := printJSON(cmd, out); err != nil {
		return err
	}
	return exitForDecision(final)
}

var reviewLedgerCmd = &cobra.Command{
	Use:   "review-ledger",
	Short: "Filter the review ledger and derive its KPIs",
	RunE:  runReviewLedger,
}

func init() {
	reviewLedgerCmd.Flags().String("ledger", "review_ledger.jsonl", "append-only review ledger path")
	reviewLedgerCmd.Flags().String("final-status", "", "filter: exact final status")
	reviewLedgerCmd.Flags().String("proposal-id", "", "filter: exact proposal id")
	reviewLedgerCmd.Flags().String("since-utc", "", "filter: RFC3339 cutoff, inclusive")
	reviewLedgerCmd.Flags().Float64("sla-seconds", 0, "resolution SLA in seconds, 0 disables sla_breach_rate")
	reviewLedgerCmd.Flags().String("export-out", "", "path to write the filtered records")
}

func runReviewLedger(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	ledgerPath, _ := flags.GetString("ledger")
	finalStatus, _ := flags.GetString("final-status")
	proposalID, _ := flags.GetString("proposal-id")
	sinceUTC, _ := flags.GetString("since-utc")
	slaSeconds, _ := flags.GetFloat64("sla-seconds")
	exportOut, _ := flags.GetString("export-out")

	records, err := review.LoadLedger(ledgerPath)
	if err != nil {
		return usageError("load review ledger: %v", err)
	}

	filter := review.Filter{FinalStatus: finalStatus, ProposalID: proposalID}
	if sinceUTC != "" {
		t, err := time.Parse(time.RFC3339, sinceUTC)
		if err != nil {
			return usageError("parse --since-utc: %v", err)
		}
		filter.SinceUTC = t
	}

	filtered := review.Export(records, filter)
	kpis := review.DeriveKPIs(filtered, slaSeconds, time.Now().UTC())

	if exportOut != "" {
		if err := artifact.WriteJSON(exportOut, filtered); err != nil {
			return logicalFailure("write exported ledger: %v", err)
		}
	}

	return printJSON(cmd, map[string]any{
		"record_count": len(filtered),
		"records":      filtered,
		"kpis":         kpis,
	})
}
