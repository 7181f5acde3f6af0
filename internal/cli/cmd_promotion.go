package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/promotion"
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Evaluate a governance snapshot against a promotion profile's gate",
	RunE:  runPromote,
}

func init() {
	promoteCmd.Flags().String("snapshot", "", "path to the Governance Snapshot JSON")
	promoteCmd.Flags().String("profile", "", "path to the Promotion Profile JSON")
	promoteCmd.Flags().String("override", "", "optional path to an Override JSON")
	promoteCmd.MarkFlagRequired("snapshot")
	promoteCmd.MarkFlagRequired("profile")
}

func runPromote(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	snapshotPath, _ := flags.GetString("snapshot")
	profilePath, _ := flags.GetString("profile")
	overridePath, _ := flags.GetString("override")

	var snapshot gftypes.GovernanceSnapshot
	if err := artifact.ReadJSON(snapshotPath, &snapshot); err != nil {
		return usageError("read governance snapshot: %v", err)
	}
	var profile promotion.Profile
	if err := artifact.ReadJSON(profilePath, &profile); err != nil {
		return usageError("read promotion profile: %v", err)
	}

	var override *promotion.Override
	if overridePath != "" {
		override = &promotion.Override{}
		if err := artifact.ReadJSON(overridePath, override); err != nil {
			return usageError("read override: %v", err)
		}
	}

	now := time.Now().UTC()
	decision := promotion.Promote(snapshot, profile, override, now)
	out := map[string]any{
		"profile":  profile.Name,
		"decision": decision,
	}
	if override.Active(now) {
		out["override_applied"] = true
	}
	if err := printJSON(cmd, out); err != nil {
		return err
	}
	return exitForDecision(decision)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Score competing promotion-profile results and rank them",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().String("in", "", "path to a JSON array of Candidate Result entries")
	compareCmd.Flags().Float64("min-top-score-margin", 0, "margin floor recorded on the emitted decision")
	compareCmd.Flags().String("out", "", "path to write the Promotion Decision")
	compareCmd.MarkFlagRequired("in")
}

func runCompare(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	minMargin, _ := flags.GetFloat64("min-top-score-margin")
	outPath, _ := flags.GetString("out")

	var candidates []promotion.CandidateResult
	if err := artifact.ReadJSON(inPath, &candidates); err != nil {
		return usageError("read candidate results: %v", err)
	}
	if len(candidates) == 0 {
		return usageError("no candidate results to compare")
	}

	result := promotion.Compare(candidates)

	winnerDecision := gftypes.DecisionUnknown
	for _, c := range candidates {
		if c.Profile == result.Winner {
			winnerDecision = c.Decision
			break
		}
	}

	decision := result.Decision(winnerDecision, minMargin, false)

	if outPath != "" {
		if err := artifact.WriteJSON(outPath, decision); err != nil {
			return logicalFailure("write promotion decision: %v", err)
		}
	}
	if err := printJSON(cmd, decision); err != nil {
		return err
	}
	return exitForDecision(decision.Decision)
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the winning promotion decision, subject to strict guards",
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().String("in", "", "path to the compare command's Promotion Decision JSON")
	applyCmd.Flags().String("review-ticket-id", "", "ticket id required when holding a NEEDS_REVIEW decision for review")
	applyCmd.Flags().Bool("require-ranking-explanation", false, "fail unless a best_vs_others ranking explanation is present")
	applyCmd.Flags().Float64("require-min-top-score-margin", -1, "fail unless the top score margin is at least this value")
	applyCmd.Flags().Int("require-min-explanation-quality", -1, "fail unless the explanation quality score is at least this value")
	applyCmd.Flags().String("apply-log", "promotion_apply.jsonl", "append-only promotion apply audit log path")
	applyCmd.Flags().String("actor", "", "actor recorded in the apply audit log")
	applyCmd.MarkFlagRequired("in")
}

func runApply(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	reviewTicketID, _ := flags.GetString("review-ticket-id")
	requireRanking, _ := flags.GetBool("require-ranking-explanation")
	minMargin, _ := flags.GetFloat64("require-min-top-score-margin")
	minQuality, _ := flags.GetInt("require-min-explanation-quality")
	applyLogPath, _ := flags.GetString("apply-log")
	actor, _ := flags.GetString("actor")

	var decision gftypes.PromotionDecision
	if err := artifact.ReadJSON(inPath, &decision); err != nil {
		return usageError("read promotion decision: %v", err)
	}

	opts := promotion.ApplyOptions{
		ReviewTicketID:            reviewTicketID,
		RequireRankingExplanation: requireRanking,
	}
	if flags.Changed("require-min-top-score-margin") {
		opts.RequireMinTopScoreMargin = &minMargin
	}
	if flags.Changed("require-min-explanation-quality") {
		opts.RequireMinExplanationQuality = &minQuality
	}

	record := promotion.Apply(decision, opts)

	if err := promotion.AppendApplyLog(applyLogPath, actor, decision.Decision, record, time.Now().UTC()); err != nil {
		return logicalFailure("append promotion apply log: %v", err)
	}
	if err := printJSON(cmd, record); err != nil {
		return err
	}
	return exitForDecision(record.FinalStatus)
}
