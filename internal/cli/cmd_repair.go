package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/backend"
	gfchangeset "github.com/wangzizhe/gateforge/internal/changeset"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/orchestrator"
	"github.com/wangzizhe/gateforge/internal/planner"
	"github.com/wangzizhe/gateforge/internal/regression"
	"github.com/wangzizhe/gateforge/internal/repair"
	"github.com/wangzizhe/gateforge/internal/report"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Retry a failing or NEEDS_REVIEW run under a planner-derived repair intent",
	RunE:  runRepair,
}

func init() {
	repairCmd.Flags().String("source", "", "path to the source Run Summary JSON")
	repairCmd.Flags().String("proposal", "", "path to the proposal to retry")
	repairCmd.Flags().String("baseline", "auto", "baseline evidence path or \"auto\"")
	repairCmd.Flags().String("baseline-index", "baselines/index.json", "baseline index path")
	repairCmd.Flags().String("policy-profile", "", "policy profile (strategy profile) to retry under")
	repairCmd.Flags().String("planner-backend", "rule", "planner backend for the first attempt")
	repairCmd.Flags().Int("max-retries", 1, "maximum repair attempts")
	repairCmd.Flags().String("block-new-reason-prefix", "", "new reasons with this prefix force a safety-guard FAIL")
	repairCmd.Flags().StringArray("new-critical-reason", nil, "reason (key) that is always a safety-guard trigger if newly introduced")
	repairCmd.Flags().String("out", "", "path to write the repair loop summary")
	repairCmd.Flags().String("report", "", "path to write a markdown report")
	repairCmd.MarkFlagRequired("source")
	repairCmd.MarkFlagRequired("proposal")
}

func runRepair(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	sourcePath, _ := flags.GetString("source")
	proposalPath, _ := flags.GetString("proposal")
	baselinePath, _ := flags.GetString("baseline")
	baselineIndex, _ := flags.GetString("baseline-index")
	policyProfile, _ := flags.GetString("policy-profile")
	plannerBackend, _ := flags.GetString("planner-backend")
	maxRetries, _ := flags.GetInt("max-retries")
	blockPrefix, _ := flags.GetString("block-new-reason-prefix")
	newCritical, _ := flags.GetStringArray("new-critical-reason")
	outPath, _ := flags.GetString("out")

	var source gftypes.RunSummary
	if err := artifact.ReadJSON(sourcePath, &source); err != nil {
		return usageError("read source run summary: %v", err)
	}
	var proposal gftypes.Proposal
	if err := artifact.ReadJSON(proposalPath, &proposal); err != nil {
		return usageError("read proposal: %v", err)
	}

	attempt := buildAttemptFunc(proposal, source, baselinePath, baselineIndex, policyProfile)

	summary := repair.Run(context.Background(), source, attempt, repair.Options{
		PlannerBackend:       plannerBackend,
		MaxRetries:           maxRetries,
		BlockNewReasonPrefix: blockPrefix,
		NewCriticalReasons:   newCritical,
	})

	if outPath != "" {
		if err := artifact.WriteJSON(outPath, summary); err != nil {
			return logicalFailure("write repair summary: %v", err)
		}
	}
	if reportPath, _ := flags.GetString("report"); reportPath != "" {
		if err := artifact.WriteText(reportPath, report.RepairLoop(summary)); err != nil {
			return logicalFailure("write report: %v", err)
		}
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	return exitForDecision(summary.After.Status)
}

// buildAttemptFunc derives a repair intent from the source summary's
// reasons via the configured planner backend, writes a proposed change-set
// draft to artifacts/repair-attempt-<n>-changeset.json, and runs the result through
// the orchestrator. A source carrying a physical-invariant violation gets
// invariant_guard forced into the retry proposal's checker list so the
// rerun re-checks the violated invariant.
func buildAttemptFunc(baseProposal gftypes.Proposal, source gftypes.RunSummary, baselinePath, baselineIndex, policyProfile string) repair.AttemptFunc {
	sourceReasons := repair.SourceReasons(source)
	invariantRepair := repair.InvariantRepairNeeded(source)

	return func(ctx context.Context, attemptIndex int, plannerBackend string, conservative bool) (gftypes.RunSummary, error) {
		b, err := planner.New(ctx, plannerBackend, map[string]string{
			"GOOGLE_API_KEY": os.Getenv("GOOGLE_API_KEY"),
			"OPENAI_API_KEY": os.Getenv("OPENAI_API_KEY"),
		})
		if err != nil {
			return gftypes.RunSummary{}, err
		}

		goal := fmt.Sprintf("repair proposal %s, attempt %d: resolve %s",
			baseProposal.ProposalID, attemptIndex, strings.Join(sourceReasons, ", "))
		intent, err := b.Plan(ctx, goal, "failure reasons:\n"+strings.Join(sourceReasons, "\n"))
		if err != nil {
			return gftypes.RunSummary{}, err
		}

		proposal := baseProposal
		if invariantRepair {
			proposal.Checkers = withInvariantGuard(proposal.Checkers)
		}
		if intent.ChangeSetDraft != nil && len(intent.ChangeSetDraft.Ops) > 0 {
			draftPath := fmt.Sprintf("artifacts/repair-attempt-%d-changeset.json", attemptIndex)
			cs := gfchangeset.ChangeSet{}
			for _, op := range intent.ChangeSetDraft.Ops {
				cs.Ops = append(cs.Ops, gfchangeset.Op{Kind: gfchangeset.OpKind(op.Kind), Path: op.Path, Content: op.Content})
			}
			data, _ := json.MarshalIndent(cs, "", "  ")
			if err := os.WriteFile(draftPath, data, 0o644); err == nil {
				proposal.ChangeSet = &gftypes.ChangeSetRef{Path: draftPath}
			}
		}

		adapter := backend.NewAdapter(proposal.Backend)
		opts := orchestrator.Options{
			WorkspaceRoot:  ".",
			BaselinePath:   baselinePath,
			BaselineIndex:  baselineIndex,
			PolicyProfile:  policyProfile,
			RuntimeOptions: regression.Options{},
		}
		if conservative {
			opts.RuntimeOptions.StrictModelScript = true
		}

		return orchestrator.Run(ctx, proposal, adapter, opts), nil
	}
}

// withInvariantGuard returns the declared checker list with invariant_guard
// appended, deduplicated. An empty declared list already activates every
// built-in, invariant_guard included, so it is returned unchanged.
func withInvariantGuard(declared []string) []string {
	if len(declared) == 0 {
		return declared
	}
	for _, name := range declared {
		if name == "invariant_guard" {
			return declared
		}
	}
	out := make([]string, 0, len(declared)+1)
	out = append(out, declared...)
	return append(out, "invariant_guard")
}

var repairBatchCmd = &cobra.Command{
	Use:   "repair-batch",
	Short: "Run a pack of repair cases and aggregate effectiveness counters",
	RunE:  runRepairBatch,
}

type repairPack struct {
	PackID string   `json:"pack_id"`
	Cases  []struct {
		Name           string             `json:"name"`
		Source         gftypes.RunSummary `json:"source"`
		Proposal       gftypes.Proposal   `json:"proposal"`
		PlannerBackend string             `json:"planner_backend"`
	} `json:"cases"`
}

func init() {
	repairBatchCmd.Flags().String("in", "", "repair pack JSON path")
	repairBatchCmd.Flags().String("baseline", "auto", "baseline evidence path or \"auto\"")
	repairBatchCmd.Flags().String("baseline-index", "baselines/index.json", "baseline index path")
	repairBatchCmd.Flags().String("policy-profile", "", "policy profile to retry every case under")
	repairBatchCmd.Flags().Int("max-retries", 1, "maximum repair attempts per case")
	repairBatchCmd.Flags().Int("pool-size", 1, "max concurrent cases (output order is always pack declaration order)")
	repairBatchCmd.Flags().Bool("continue-on-fail", false, "exit 0 even when some cases end FAIL")
	repairBatchCmd.Flags().String("out", "", "path to write the batch summary")
	repairBatchCmd.MarkFlagRequired("in")
}

func runRepairBatch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	baselinePath, _ := flags.GetString("baseline")
	baselineIndex, _ := flags.GetString("baseline-index")
	policyProfile, _ := flags.GetString("policy-profile")
	maxRetries, _ := flags.GetInt("max-retries")
	poolSize, _ := flags.GetInt("pool-size")
	outPath, _ := flags.GetString("out")

	var pack repairPack
	if err := artifact.ReadJSON(inPath, &pack); err != nil {
		return usageError("read repair pack: %v", err)
	}

	var cases []repair.Case
	attemptFuncs := map[string]repair.AttemptFunc{}
	for _, c := range pack.Cases {
		cases = append(cases, repair.Case{Name: c.Name, Source: c.Source, PlannerBackend: c.PlannerBackend})
		attemptFuncs[c.Name] = buildAttemptFunc(c.Proposal, c.Source, baselinePath, baselineIndex, policyProfile)
	}

	batch := repair.RunBatch(context.Background(), pack.PackID, cases, func(c repair.Case) repair.AttemptFunc {
		return attemptFuncs[c.Name]
	}, repair.Options{MaxRetries: maxRetries, PoolSize: poolSize})

	if outPath != "" {
		if err := artifact.WriteJSON(outPath, batch); err != nil {
			return logicalFailure("write batch summary: %v", err)
		}
	}
	if err := printJSON(cmd, batch); err != nil {
		return err
	}

	continueOnFail, _ := flags.GetBool("continue-on-fail")
	if !continueOnFail {
		for _, c := range batch.Cases {
			if c.Summary.After.Status == gftypes.DecisionFail {
				return logicalFailure("case %s ended FAIL", c.Name)
			}
		}
	}
	return nil
}

var compareProfilesCmd = &cobra.Command{
	Use:   "compare-profiles",
	Short: "Run a repair pack twice under two policy profiles and compare effectiveness",
	RunE:  runCompareProfiles,
}

func init() {
	compareProfilesCmd.Flags().String("in", "", "repair pack JSON path")
	compareProfilesCmd.Flags().StringSlice("compare-policy-profiles", nil, "two policy profile names")
	compareProfilesCmd.Flags().String("baseline", "auto", "baseline evidence path or \"auto\"")
	compareProfilesCmd.Flags().String("baseline-index", "baselines/index.json", "baseline index path")
	compareProfilesCmd.Flags().Int("max-retries", 1, "maximum repair attempts per case")
	compareProfilesCmd.MarkFlagRequired("in")
	compareProfilesCmd.MarkFlagRequired("compare-policy-profiles")
}

func runCompareProfiles(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	profiles, _ := flags.GetStringSlice("compare-policy-profiles")
	baselinePath, _ := flags.GetString("baseline")
	baselineIndex, _ := flags.GetString("baseline-index")
	maxRetries, _ := flags.GetInt("max-retries")

	if len(profiles) != 2 {
		return usageError("--compare-policy-profiles requires exactly two names, got %d", len(profiles))
	}

	var pack repairPack
	if err := artifact.ReadJSON(inPath, &pack); err != nil {
		return usageError("read repair pack: %v", err)
	}

	runUnder := func(profile string) (map[string]gftypes.Decision, map[string][]string) {
		statuses := map[string]gftypes.Decision{}
		reasons := map[string][]string{}
		for _, c := range pack.Cases {
			attempt := buildAttemptFunc(c.Proposal, c.Source, baselinePath, baselineIndex, profile)
			result := repair.Run(context.Background(), c.Source, attempt, repair.Options{MaxRetries: maxRetries})
			statuses[c.Name] = result.After.Status
			reasons[c.Name] = result.After.Reasons
		}
		return statuses, reasons
	}

	aStatuses, aReasons := runUnder(profiles[0])
	bStatuses, bReasons := runUnder(profiles[1])

	result := repair.CompareProfiles(profiles[0], profiles[1], aStatuses, bStatuses, aReasons, bReasons)
	return printJSON(cmd, result)
}
