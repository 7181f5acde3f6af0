// Package repair retries a failing or NEEDS_REVIEW run through the
// orchestrator under a progressively more conservative strategy, grounded in
// the teacher's hitl retry-with-backoff shape but reworked around a typed
// before/after comparison and a safety guard instead of a bare retry count.
package repair

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wangzizhe/gateforge/internal/gftypes"
	"github.com/wangzizhe/gateforge/internal/logger"
)

// AttemptFunc executes one repair attempt (deriving an intent, optionally
// applying its change-set, and running the proposal back through the
// orchestrator) and returns the resulting run summary. attemptIndex starts
// at 1. conservative is true once a prior attempt has failed and the loop
// is retrying under the tightened retry profile.
type AttemptFunc func(ctx context.Context, attemptIndex int, plannerBackend string, conservative bool) (gftypes.RunSummary, error)

// Options configures one repair-loop execution.
type Options struct {
	PlannerBackend       string
	RetryPlannerBackend  string // backend used once a retry is needed; defaults to "rule"
	MaxRetries           int
	BlockNewReasonPrefix string
	NewCriticalReasons   []string
	// PoolSize bounds how many cases RunBatch may execute
	// concurrently. Defaults to 1 (fully serial, deterministic output order)
	// per spec.md §5; values > 1 only affect wall-clock, never the emitted
	// case ordering, which always follows pack declaration order.
	PoolSize int
}

// SourceReasons unions a source summary's fail and policy reasons, first
// occurrence wins. This is the reason list a repair intent is derived from
// and the baseline the safety guard compares new reasons against.
func SourceReasons(source gftypes.RunSummary) []string {
	return unionReasons(source.FailReasons, source.PolicyReasons)
}

// InvariantRepairNeeded reports whether the source's reasons contain a
// physical-invariant violation, which switches the loop into its
// invariant-repair branch: the retry must carry invariant_guard in its
// effective checker list so the rerun re-checks the violated invariant.
func InvariantRepairNeeded(source gftypes.RunSummary) bool {
	return hasInvariantReason(SourceReasons(source))
}

// Run drives the repair loop described in spec.md §4.6: derive an intent,
// execute one attempt, compare before/after, apply the safety guard, and
// retry under a conservative profile while attempts remain.
func Run(ctx context.Context, source gftypes.RunSummary, attempt AttemptFunc, opts Options) gftypes.RepairLoopSummary {
	log := logger.WithComponent("repair")

	before := gftypes.RepairOutcome{
		Status:  source.Status,
		Reasons: SourceReasons(source),
	}

	invariantRepairApplied := hasInvariantReason(before.Reasons)

	plannerBackend := opts.PlannerBackend
	retryBackend := opts.RetryPlannerBackend
	if retryBackend == "" {
		retryBackend = "rule"
	}

	var attempts []gftypes.RepairAttempt
	retryUsed := false
	safetyTriggered := false
	var retryAnalysis string

	after := before
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for i := 1; i <= maxRetries; i++ {
		backendName := plannerBackend
		conservative := i > 1
		if conservative {
			backendName = retryBackend
			retryUsed = true
		}

		rs, err := attempt(ctx, i, backendName, conservative)
		if err != nil {
			log.Error("repair attempt failed to execute", zap.Int("attempt", i), zap.Error(err))
			attempts = append(attempts, gftypes.RepairAttempt{
				Index:          i,
				PlannerBackend: backendName,
				Status:         gftypes.DecisionFail,
				Reasons:        []string{fmt.Sprintf("repair_attempt_error: %v", err)},
			})
			after = gftypes.RepairOutcome{Status: gftypes.DecisionFail, Reasons: []string{"repair_attempt_error"}}
			continue
		}

		reasons := unionReasons(rs.FailReasons, rs.PolicyReasons)
		attempts = append(attempts, gftypes.RepairAttempt{
			Index:          i,
			PlannerBackend: backendName,
			Status:         rs.Status,
			Reasons:        reasons,
		})
		after = gftypes.RepairOutcome{Status: rs.Status, Reasons: reasons}

		// Safety guard: a new reason matching block_new_reason_prefix or a
		// configured new-critical-reason set never escapes as an improvement.
		if triggered, reason := safetyGuard(before.Reasons, after.Reasons, opts.BlockNewReasonPrefix, opts.NewCriticalReasons); triggered {
			safetyTriggered = true
			after.Status = gftypes.DecisionFail
			after.Reasons = append(after.Reasons, fmt.Sprintf("repair_safety_new_critical_reason:%s", reason))
			log.Warn("repair safety guard triggered", zap.String("reason", reason))
			break
		}

		if after.Status.Rank() > before.Status.Rank() {
			// improved: stop retrying
			break
		}
		if i < maxRetries {
			retryAnalysis = fmt.Sprintf("attempt %d did not improve on before.status=%s; retrying with conservative profile", i, before.Status)
		}
	}

	return gftypes.RepairLoopSummary{
		Before:                 before,
		After:                  after,
		Attempts:               attempts,
		RetryUsed:              retryUsed,
		RetryAnalysis:          retryAnalysis,
		Comparison:             gftypes.RepairComparison{Delta: delta(before, after)},
		SafetyGuardTriggered:   safetyTriggered,
		InvariantRepairApplied: invariantRepairApplied,
	}
}

func delta(before, after gftypes.RepairOutcome) string {
	switch {
	case after.Status.Rank() > before.Status.Rank():
		return "improved"
	case after.Status.Rank() < before.Status.Rank():
		return "worse"
	default:
		return "unchanged"
	}
}

func safetyGuard(beforeReasons, afterReasons []string, blockPrefix string, newCritical []string) (bool, string) {
	beforeSet := map[string]bool{}
	for _, r := range beforeReasons {
		beforeSet[r] = true
	}
	criticalSet := map[string]bool{}
	for _, r := range newCritical {
		criticalSet[r] = true
	}

	for _, r := range afterReasons {
		if beforeSet[r] {
			continue // not new
		}
		if blockPrefix != "" && strings.HasPrefix(r, blockPrefix) {
			return true, r
		}
		if criticalSet[reasonKey(r)] || criticalSet[r] {
			return true, r
		}
	}
	return false, ""
}

func reasonKey(reason string) string {
	if i := strings.Index(reason, ":"); i >= 0 {
		return reason[:i]
	}
	return reason
}

func hasInvariantReason(reasons []string) bool {
	for _, r := range reasons {
		if strings.HasPrefix(r, "physical_invariant_") {
			return true
		}
	}
	return false
}

func unionReasons(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, r := range list {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
