package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/backend"
	"github.com/wangzizhe/gateforge/internal/config"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/orchestrator"
	"github.com/wangzizhe/gateforge/internal/regression"
	"github.com/wangzizhe/gateforge/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a proposal through the full governance pipeline",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("proposal", "", "path to the proposal JSON file")
	runCmd.Flags().String("out", "", "path to write the candidate evidence")
	runCmd.Flags().String("regression-out", "", "path to write the regression summary")
	runCmd.Flags().String("baseline", "", "baseline evidence path, or \"auto\"")
	runCmd.Flags().String("baseline-index", "baselines/index.json", "baseline index path for --baseline auto")
	runCmd.Flags().String("policy-profile", "", "policy profile name")
	runCmd.Flags().Float64("runtime-threshold", 0, "allowed runtime regression ratio")
	runCmd.Flags().Bool("strict", false, "enable strict comparability reasons")
	runCmd.Flags().Bool("strict-model-script", false, "require exact model_script match")
	runCmd.Flags().Bool("dry-run", false, "attach the policy's dry-run human checks instead of the required ones")
	runCmd.Flags().String("backend", "mock", "backend adapter name")
	runCmd.Flags().String("report", "", "path to write a markdown report")
	runCmd.MarkFlagRequired("proposal")
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	proposalPath, _ := flags.GetString("proposal")
	outPath, _ := flags.GetString("out")
	regressionOut, _ := flags.GetString("regression-out")
	baselinePath, _ := flags.GetString("baseline")
	baselineIndex, _ := flags.GetString("baseline-index")
	policyProfile, _ := flags.GetString("policy-profile")
	runtimeThreshold, _ := flags.GetFloat64("runtime-threshold")
	strict, _ := flags.GetBool("strict")
	strictModelScript, _ := flags.GetBool("strict-model-script")
	dryRun, _ := flags.GetBool("dry-run")
	backendName, _ := flags.GetString("backend")

	var proposal gftypes.Proposal
	if err := artifact.ReadJSON(proposalPath, &proposal); err != nil {
		return usageError("read proposal: %v", err)
	}

	opts := orchestrator.Options{
		WorkspaceRoot: ".",
		BaselinePath:  baselinePath,
		BaselineIndex: baselineIndex,
		OutPath:       outPath,
		RegressionOut: regressionOut,
		PolicyProfile: config.PolicyProfile(policyProfile),
		RuntimeOptions: regression.Options{
			RuntimeThreshold:  config.RuntimeThreshold(runtimeThreshold, flags.Changed("runtime-threshold")),
			Strict:            strict,
			StrictModelScript: config.StrictModelScript(strictModelScript, flags.Changed("strict-model-script")),
			DryRun:            dryRun,
		},
	}

	adapter := backend.NewAdapter(backendName)
	summary := orchestrator.Run(context.Background(), proposal, adapter, opts)

	if reportPath, _ := flags.GetString("report"); reportPath != "" {
		if err := artifact.WriteText(reportPath, report.RunSummary(summary)); err != nil {
			return logicalFailure("write report: %v", err)
		}
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	return exitForDecision(summary.Status)
}
