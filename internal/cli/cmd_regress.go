package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/checker"
	"github.com/wangzizhe/gateforge/internal/config"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/policy"
	"github.com/wangzizhe/gateforge/internal/regression"
	"github.com/wangzizhe/gateforge/internal/report"
)

var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Compare a candidate evidence record against a baseline",
	RunE:  runRegress,
}

func init() {
	regressCmd.Flags().String("in", "", "candidate evidence path")
	regressCmd.Flags().String("baseline", "", "baseline evidence path")
	regressCmd.Flags().String("proposal", "", "optional proposal JSON (checkers/checker-config/invariants)")
	regressCmd.Flags().String("out", "", "path to write the regression summary")
	regressCmd.Flags().String("policy", "", "policy file path or bare name")
	regressCmd.Flags().String("policy-profile", "", "policy profile name")
	regressCmd.Flags().Float64("runtime-threshold", 0, "allowed runtime regression ratio")
	regressCmd.Flags().Bool("strict", false, "enable strict comparability reasons")
	regressCmd.Flags().Bool("strict-model-script", false, "require exact model_script match")
	regressCmd.Flags().Bool("strict-policy-version", false, "require exact toolchain policy_version match")
	regressCmd.Flags().Bool("dry-run", false, "attach the policy's dry-run human checks instead of the required ones")
	regressCmd.Flags().StringArray("checker", nil, "declared checker (repeatable); empty means all built-ins")
	regressCmd.Flags().String("risk-level", "medium", "risk level for the policy overlay")
	regressCmd.Flags().String("report", "", "path to write a markdown report")
	regressCmd.MarkFlagRequired("in")
	regressCmd.MarkFlagRequired("baseline")
}

func runRegress(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	baselinePath, _ := flags.GetString("baseline")
	proposalPath, _ := flags.GetString("proposal")
	outPath, _ := flags.GetString("out")
	policyName, _ := flags.GetString("policy")
	policyProfile, _ := flags.GetString("policy-profile")
	runtimeThreshold, _ := flags.GetFloat64("runtime-threshold")
	strict, _ := flags.GetBool("strict")
	strictModelScript, _ := flags.GetBool("strict-model-script")
	strictPolicyVersion, _ := flags.GetBool("strict-policy-version")
	dryRun, _ := flags.GetBool("dry-run")
	checkers, _ := flags.GetStringArray("checker")
	riskLevel, _ := flags.GetString("risk-level")

	var candidate, baseline gftypes.Evidence
	if err := artifact.ReadJSON(inPath, &candidate); err != nil {
		return usageError("read candidate: %v", err)
	}
	if err := artifact.ReadJSON(baselinePath, &baseline); err != nil {
		return usageError("read baseline: %v", err)
	}

	var proposal gftypes.Proposal
	if proposalPath != "" {
		if err := artifact.ReadJSON(proposalPath, &proposal); err != nil {
			return usageError("read proposal: %v", err)
		}
	}

	effectiveCheckers := checkers
	if len(effectiveCheckers) == 0 {
		effectiveCheckers = proposal.Checkers
	}

	opts := regression.Options{
		RuntimeThreshold:    config.RuntimeThreshold(runtimeThreshold, flags.Changed("runtime-threshold")),
		Strict:              strict,
		StrictModelScript:   config.StrictModelScript(strictModelScript, flags.Changed("strict-model-script")),
		StrictPolicyVersion: strictPolicyVersion,
		DryRun:              dryRun,
		Checkers:            effectiveCheckers,
		CheckerConfig:       proposal.CheckerConfig,
		PhysicalInvariants:  proposal.PhysicalInvariants,
		RiskLevel:           gftypes.RiskLevel(riskLevel),
	}

	profileName := policyName
	if profileName == "" {
		profileName = config.PolicyProfile(policyProfile)
	}
	pol, path, err := policy.Load(profileName)
	if err != nil {
		return usageError("load policy: %v", err)
	}
	opts.Policy = pol
	opts.PolicyPath = path

	summary := regression.Compare(baselinePath, inPath, baseline, candidate, opts)

	if outPath != "" {
		if err := artifact.WriteJSON(outPath, summary); err != nil {
			return logicalFailure("write regression summary: %v", err)
		}
	}
	if reportPath, _ := flags.GetString("report"); reportPath != "" {
		if err := artifact.WriteText(reportPath, report.Regression(summary)); err != nil {
			return logicalFailure("write report: %v", err)
		}
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	return exitForDecision(summary.Decision)
}

var checkersCmd = &cobra.Command{
	Use:   "checkers",
	Short: "Describe the built-in checker suite",
	RunE:  runCheckers,
}

type checkerDescription struct {
	Name       string `json:"name"`
	TriggerDoc string `json:"trigger_reason"`
}

func runCheckers(cmd *cobra.Command, args []string) error {
	var out []checkerDescription
	for _, c := range checker.All() {
		out = append(out, checkerDescription{Name: c.Name, TriggerDoc: c.TriggerDoc})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
