package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/baseline"
	gfchangeset "github.com/wangzizhe/gateforge/internal/changeset"
	"github.com/wangzizhe/gateforge/internal/planner"
	"github.com/wangzizhe/gateforge/internal/policy"
)

var baselineResolveCmd = &cobra.Command{
	Use:   "baseline-resolve",
	Short: "Resolve the baseline evidence path for a (backend, model_script) pair",
	RunE:  runBaselineResolve,
}

func init() {
	baselineResolveCmd.Flags().String("baseline-index", "baselines/index.json", "baseline index path")
	baselineResolveCmd.Flags().String("backend", "", "backend name")
	baselineResolveCmd.Flags().String("model-script", "", "model script name")
	baselineResolveCmd.MarkFlagRequired("backend")
	baselineResolveCmd.MarkFlagRequired("model-script")
}

func runBaselineResolve(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	indexPath, _ := flags.GetString("baseline-index")
	backendName, _ := flags.GetString("backend")
	modelScript, _ := flags.GetString("model-script")

	path, err := baseline.ResolveAuto(indexPath, backendName, modelScript)
	if err != nil {
		return logicalFailure("baseline_not_found: %v", err)
	}
	return printJSON(cmd, map[string]string{"path": path})
}

var policyShowCmd = &cobra.Command{
	Use:   "policy-show",
	Short: "Load and print a policy profile",
	RunE:  runPolicyShow,
}

func init() {
	policyShowCmd.Flags().String("policy-profile", "default", "policy profile name or path")
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	profile, _ := cmd.Flags().GetString("policy-profile")
	pol, path, err := policy.Load(profile)
	if err != nil {
		return usageError("load policy: %v", err)
	}
	return printJSON(cmd, map[string]any{"path": path, "policy": pol})
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Derive an Intent from a goal via the configured planner backend",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().String("goal", "", "the goal text")
	planCmd.Flags().String("context", "", "optional supporting context text")
	planCmd.Flags().String("planner-backend", "rule", "planner backend: rule | gemini | openai")
	planCmd.Flags().Float64("change-plan-confidence-min", 0, "minimum accepted confidence")
	planCmd.Flags().Float64("change-plan-confidence-max", 1, "maximum accepted confidence")
	planCmd.Flags().StringArray("change-plan-allowed-root", nil, "allowed path root (repeatable)")
	planCmd.Flags().StringArray("change-plan-allowed-suffix", nil, "allowed path suffix (repeatable)")
	planCmd.Flags().StringArray("change-plan-allowed-file", nil, "allowed exact file path (repeatable)")
	planCmd.MarkFlagRequired("goal")
}

func runPlan(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	goal, _ := flags.GetString("goal")
	supportingContext, _ := flags.GetString("context")
	backendName, _ := flags.GetString("planner-backend")
	confMin, _ := flags.GetFloat64("change-plan-confidence-min")
	confMax, _ := flags.GetFloat64("change-plan-confidence-max")
	roots, _ := flags.GetStringArray("change-plan-allowed-root")
	suffixes, _ := flags.GetStringArray("change-plan-allowed-suffix")
	files, _ := flags.GetStringArray("change-plan-allowed-file")

	apiKeys := map[string]string{
		"GOOGLE_API_KEY": os.Getenv("GOOGLE_API_KEY"),
		"OPENAI_API_KEY": os.Getenv("OPENAI_API_KEY"),
	}

	b, err := planner.New(context.Background(), backendName, apiKeys)
	if err != nil {
		return logicalFailure("planner_backend_unavailable: %v", err)
	}

	intent, err := b.Plan(context.Background(), goal, supportingContext)
	if err != nil {
		return logicalFailure("%v", err)
	}

	cfg := planner.GuardrailConfig{
		ConfidenceMin:   confMin,
		ConfidenceMax:   confMax,
		AllowedRoots:    roots,
		AllowedSuffixes: suffixes,
		AllowedFiles:    files,
	}
	violations := planner.Validate(intent, cfg)
	if len(violations) > 0 {
		if err := printJSON(cmd, map[string]any{"intent": intent, "violations": violations}); err != nil {
			return err
		}
		return logicalFailure("guardrail violations present")
	}

	return printJSON(cmd, intent)
}

var applyChangesetCmd = &cobra.Command{
	Use:   "apply-changeset",
	Short: "Apply a change-set to the workspace",
	RunE:  runApplyChangeset,
}

func init() {
	applyChangesetCmd.Flags().String("in", "", "change-set JSON path")
	applyChangesetCmd.Flags().String("workspace-root", ".", "workspace root to apply into")
	applyChangesetCmd.MarkFlagRequired("in")
}

func runApplyChangeset(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	root, _ := flags.GetString("workspace-root")

	cs, err := gfchangeset.Load(inPath)
	if err != nil {
		return usageError("load change-set: %v", err)
	}
	result, err := gfchangeset.Apply(cs, root)
	if err != nil {
		return logicalFailure("change_set_apply_failed: %v", err)
	}
	return printJSON(cmd, result)
}
