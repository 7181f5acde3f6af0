package repair

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Case is one repair-batch test case: a named source run to repair.
type Case struct {
	Name           string
	Source         gftypes.RunSummary
	PlannerBackend string
}

// CaseResult is one case's repair outcome plus its name.
type CaseResult struct {
	Name    string                    `json:"name"`
	Summary gftypes.RepairLoopSummary `json:"summary"`
}

// BatchSummary aggregates a repair batch's per-case results.
type BatchSummary struct {
	PackID           string       `json:"pack_id"`
	Cases            []CaseResult `json:"cases"`
	ImprovedCount    int          `json:"improved_count"`
	WorseCount       int          `json:"worse_count"`
	UnchangedCount   int          `json:"unchanged_count"`
	SafetyBlockCount int          `json:"safety_block_count"`
}

// RunBatch executes every case through the repair loop over a bounded
// worker pool (golang.org/x/sync/semaphore, default weight 1 for fully
// deterministic, serial output per spec.md §5) and aggregates the
// effectiveness counters spec.md §4.7 names. Completion order is decoupled
// from pack order: each case's result lands in a slot keyed by its pack
// index, so the emitted summary always lists cases in declaration order
// regardless of worker count or finish order.
func RunBatch(ctx context.Context, packID string, cases []Case, attemptFor func(Case) AttemptFunc, opts Options) BatchSummary {
	summary := BatchSummary{PackID: packID}
	if len(cases) == 0 {
		return summary
	}

	poolSize := int64(opts.PoolSize)
	if poolSize < 1 {
		poolSize = 1
	}

	results := make([]CaseResult, len(cases))
	sem := semaphore.NewWeighted(poolSize)
	var wg sync.WaitGroup

	for i, c := range cases {
		caseOpts := opts
		if c.PlannerBackend != "" {
			caseOpts.PlannerBackend = c.PlannerBackend
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: run the remainder serially so every case
			// still gets a result rather than silently dropping from the
			// summary.
			results[i] = CaseResult{Name: c.Name, Summary: Run(ctx, c.Source, attemptFor(c), caseOpts)}
			continue
		}

		wg.Add(1)
		go func(index int, c Case, caseOpts Options) {
			defer wg.Done()
			defer sem.Release(1)
			results[index] = CaseResult{Name: c.Name, Summary: Run(ctx, c.Source, attemptFor(c), caseOpts)}
		}(i, c, caseOpts)
	}
	wg.Wait()

	summary.Cases = results
	for _, result := range results {
		switch result.Summary.Comparison.Delta {
		case "improved":
			summary.ImprovedCount++
		case "worse":
			summary.WorseCount++
		default:
			summary.UnchangedCount++
		}
		if result.Summary.SafetyGuardTriggered {
			summary.SafetyBlockCount++
		}
	}

	return summary
}

// ProfileCompareResult is the outcome of running a pack twice under two
// policy profiles and comparing effectiveness.
type ProfileCompareResult struct {
	ProfileA            string         `json:"profile_a"`
	ProfileB            string         `json:"profile_b"`
	StrictDowngradeRate float64        `json:"strict_downgrade_rate"`
	ReasonDeltaCounts   map[string]int `json:"reason_delta_counts"`
	RecommendedProfile  string         `json:"recommended_profile"`
}

// CompareProfiles implements spec.md §4.7's profile-compare algorithm given
// the two batch summaries already produced by running the same pack under
// each profile, plus each case's final status for the downgrade-rate
// computation.
func CompareProfiles(profileA, profileB string, aStatuses, bStatuses map[string]gftypes.Decision, aReasons, bReasons map[string][]string) ProfileCompareResult {
	total := 0
	downgrades := 0
	for name, aStatus := range aStatuses {
		bStatus, ok := bStatuses[name]
		if !ok {
			continue
		}
		total++
		if aStatus == gftypes.DecisionPass && bStatus != gftypes.DecisionPass {
			downgrades++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(downgrades) / float64(total)
	}

	deltaCounts := map[string]int{}
	union := map[string]bool{}
	for _, reasons := range aReasons {
		for _, r := range reasons {
			union[r] = true
		}
	}
	for _, reasons := range bReasons {
		for _, r := range reasons {
			union[r] = true
		}
	}
	for reason := range union {
		deltaCounts[reason] = countReason(bReasons, reason) - countReason(aReasons, reason)
	}

	aPass, aFail := passFailCounts(aStatuses)
	bPass, bFail := passFailCounts(bStatuses)
	recommended := profileA
	if betterTuple(bPass, bFail, aPass, aFail) {
		recommended = profileB
	}

	return ProfileCompareResult{
		ProfileA:            profileA,
		ProfileB:            profileB,
		StrictDowngradeRate: rate,
		ReasonDeltaCounts:   deltaCounts,
		RecommendedProfile:  recommended,
	}
}

// betterTuple orders (pass_count, -fail_count) lexicographically, higher wins.
func betterTuple(pass1, fail1, pass2, fail2 int) bool {
	if pass1 != pass2 {
		return pass1 > pass2
	}
	return -fail1 > -fail2
}

func passFailCounts(statuses map[string]gftypes.Decision) (pass, fail int) {
	for _, s := range statuses {
		switch s {
		case gftypes.DecisionPass:
			pass++
		case gftypes.DecisionFail:
			fail++
		}
	}
	return
}

func countReason(byCase map[string][]string, reason string) int {
	count := 0
	for _, reasons := range byCase {
		for _, r := range reasons {
			if r == reason {
				count++
			}
		}
	}
	return count
}
