// Package orchestrator runs one proposal through the full pipeline state
// machine: init, validate, optional change-set apply, smoke, regress, policy
// overlay, finalize. It is grounded in the teacher's orchestrator state-
// machine shape (a fixed state sequence, each edge able to fail with a typed
// reason that short-circuits the remaining states) but carries GateForge's
// own states and output record instead of the teacher's pipeline stages.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wangzizhe/gateforge/internal/artifact"
	"github.com/wangzizhe/gateforge/internal/backend"
	"github.com/wangzizhe/gateforge/internal/baseline"
	gfchangeset "github.com/wangzizhe/gateforge/internal/changeset"
	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/logger"
	"github.com/wangzizhe/gateforge/internal/policy"
	"github.com/wangzizhe/gateforge/internal/regression"
)

// Options configures one orchestrated run.
type Options struct {
	WorkspaceRoot   string
	BaselinePath    string // literal path, or "auto" to resolve via BaselineIndex
	BaselineIndex   string
	OutPath         string
	RegressionOut   string
	PolicyProfile   string
	PolicyPath     string
	RuntimeOptions regression.Options
	Timeout        time.Duration
}

// Run executes the state machine for one proposal and returns its summary.
// Every early exit still returns a fully-formed RunSummary with fail_reasons
// populated, never a bare error, so callers can always serialize the result.
func Run(ctx context.Context, proposal gftypes.Proposal, adapter backend.Adapter, opts Options) gftypes.RunSummary {
	log := logger.WithComponent("orchestrator")
	log.Info("run started", zap.String("proposal_id", proposal.ProposalID))

	summary := gftypes.RunSummary{
		ProposalID: proposal.ProposalID,
		Status:     gftypes.DecisionUnknown,
	}

	// state: validate_proposal
	if err := validateProposal(proposal); err != nil {
		return fail(summary, err.Error())
	}

	// state: apply_change_set (optional)
	if proposal.ChangeSet != nil {
		cs, err := gfchangeset.Load(proposal.ChangeSet.Path)
		if err != nil {
			return fail(summary, fmt.Sprintf("change_set_load_failed: %v", err))
		}
		result, err := gfchangeset.Apply(cs, opts.WorkspaceRoot)
		if err != nil {
			summary.ChangeApplyStatus = "failed"
			return fail(summary, fmt.Sprintf("change_set_apply_failed: %v", err))
		}
		summary.ChangeApplyStatus = "applied"
		summary.ChangeSetHash = result.Hash
		summary.AppliedChangesCount = result.AppliedChangesCount
	} else {
		summary.ChangeApplyStatus = "skipped"
	}

	// state: smoke
	var candidate gftypes.Evidence
	if proposal.HasAction(gftypes.ActionSimulate) {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		ev, err := adapter.Run(ctx, proposal.Backend, proposal.ModelScript, timeout)
		if err != nil {
			return fail(summary, fmt.Sprintf("backend_unavailable: %v", err))
		}
		candidate = ev
	} else {
		candidate = gftypes.Evidence{
			SchemaVersion: "1.0",
			Backend:       proposal.Backend,
			ModelScript:   proposal.ModelScript,
			Status:        gftypes.StatusSuccess,
			Gate:          gftypes.GatePass,
			CheckOK:       true,
			SimulateOK:    nil, // NA
		}
	}

	if opts.OutPath != "" {
		if err := artifact.WriteJSON(opts.OutPath, candidate); err != nil {
			log.Error("failed to persist candidate evidence", zap.Error(err))
		}
		summary.CandidatePath = opts.OutPath
	}

	// state: regress
	baselinePath := opts.BaselinePath
	if baselinePath == "auto" {
		resolved, err := baseline.ResolveAuto(opts.BaselineIndex, proposal.Backend, proposal.ModelScript)
		if err != nil {
			summary.RegressionPath = ""
			return failWithReasons(summary, []string{"baseline_not_found"})
		}
		baselinePath = resolved
	}
	summary.BaselinePath = baselinePath

	var baselineEvidence gftypes.Evidence
	if baselinePath == "" || !artifact.Exists(baselinePath) {
		rs := regression.MissingBaseline()
		summary.Status = gftypes.DecisionFail
		summary.FailReasons = rs.Reasons
		summary.Toolchain = candidate.Toolchain
		return summary
	}
	if err := artifact.ReadJSON(baselinePath, &baselineEvidence); err != nil {
		return fail(summary, fmt.Sprintf("baseline_unreadable: %v", err))
	}

	regOpts := opts.RuntimeOptions
	regOpts.RiskLevel = proposal.RiskLevel
	regOpts.Checkers = proposal.Checkers
	regOpts.CheckerConfig = proposal.CheckerConfig
	regOpts.PhysicalInvariants = proposal.PhysicalInvariants

	var pol *policy.Policy
	if opts.PolicyProfile != "" {
		loaded, path, err := policy.Load(opts.PolicyProfile)
		if err != nil {
			return fail(summary, fmt.Sprintf("policy_not_found: %v", err))
		}
		pol = loaded
		regOpts.Policy = pol
		regOpts.PolicyPath = path
	}

	regressionSummary := regression.Compare(baselinePath, "", baselineEvidence, candidate, regOpts)

	if opts.RegressionOut != "" {
		if err := artifact.WriteJSON(opts.RegressionOut, regressionSummary); err != nil {
			log.Error("failed to persist regression summary", zap.Error(err))
		}
		summary.RegressionPath = opts.RegressionOut
	}

	// state: policy_overlay (already folded into regression.Compare above)
	summary.Status = regressionSummary.Decision
	summary.PolicyDecision = regressionSummary.Decision
	summary.PolicyReasons = regressionSummary.PolicyReasons
	summary.Toolchain = candidate.Toolchain
	if pol != nil {
		summary.Toolchain.PolicyProfile = opts.PolicyProfile
		summary.Toolchain.PolicyVersion = pol.PolicyVersion
	}

	if summary.Status == gftypes.DecisionFail {
		summary.FailReasons = regressionSummary.Reasons
	}
	if summary.Status == gftypes.DecisionNeedsReview {
		summary.RequiredHumanChecks = regressionSummary.RequiredHumanChecks
	}

	// state: finalize
	log.Info("run finished", zap.String("proposal_id", proposal.ProposalID), zap.String("status", string(summary.Status)))
	return summary
}

func validateProposal(p gftypes.Proposal) error {
	if p.ProposalID == "" {
		return fmt.Errorf("proposal_invalid: proposal_id is required")
	}
	if p.Backend == "" {
		return fmt.Errorf("proposal_invalid: backend is required")
	}
	if len(p.RequestedActions) == 0 {
		return fmt.Errorf("proposal_invalid: requested_actions must not be empty")
	}
	switch p.RiskLevel {
	case gftypes.RiskLow, gftypes.RiskMedium, gftypes.RiskHigh:
	default:
		return fmt.Errorf("proposal_invalid: unknown risk_level %q", p.RiskLevel)
	}
	return nil
}

func fail(summary gftypes.RunSummary, reason string) gftypes.RunSummary {
	return failWithReasons(summary, []string{reason})
}

func failWithReasons(summary gftypes.RunSummary, reasons []string) gftypes.RunSummary {
	summary.Status = gftypes.DecisionFail
	summary.FailReasons = append(summary.FailReasons, reasons...)
	return summary
}
