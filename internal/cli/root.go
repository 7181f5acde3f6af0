// Package cli wires every gateforge subcommand onto a cobra root command,
// grounded in the teacher's rootCmd + one-file-per-command-group pattern.
// Every RunE returns an ExitError carrying the exact process exit code the
// spec's CLI contract requires (0 success, 1 logical failure, 2 usage
// error) so main stays a two-line dispatcher.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// ExitError carries a specific process exit code through cobra's error path.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func usageError(format string, args ...any) error {
	return ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}

func logicalFailure(format string, args ...any) error {
	return ExitError{Code: 1, Err: fmt.Errorf(format, args...)}
}

// exitForDecision maps a governance decision to the spec's CLI exit-code
// contract: only PASS is success.
func exitForDecision(d gftypes.Decision) error {
	if d == gftypes.DecisionPass {
		return nil
	}
	return ExitError{Code: 1, Err: fmt.Errorf("decision %s", d)}
}

var rootCmd = &cobra.Command{
	Use:           "gateforge",
	Short:         "GateForge: a governance pipeline for reproducible, auditable simulation-change decisions",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(
		runCmd,
		regressCmd,
		checkersCmd,
		baselineResolveCmd,
		policyShowCmd,
		planCmd,
		applyChangesetCmd,
		repairCmd,
		repairBatchCmd,
		compareProfilesCmd,
		reviewResolveCmd,
		reviewLedgerCmd,
		governanceSnapshotCmd,
		governanceHistoryCmd,
		promoteCmd,
		compareCmd,
		applyCmd,
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
