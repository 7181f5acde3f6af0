package promotion

import (
	"fmt"
	"sort"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// CandidateResult is one profile's promotion result, the input to Compare.
type CandidateResult struct {
	Profile            string
	Decision           gftypes.Decision
	ExitCode           int
	Reasons            []string
	RecommendedProfile string // the snapshot's recommended_profile, same for every candidate
}

const reasonsPenalty = 5.0 // k in reasons_component = -k*|reasons|
const recommendedBonus = 10.0

func decisionComponent(d gftypes.Decision) float64 {
	switch d {
	case gftypes.DecisionPass:
		return 100
	case gftypes.DecisionNeedsReview:
		return 50
	default:
		return 0
	}
}

func exitComponent(exitCode int) float64 {
	if exitCode != 0 {
		return 0
	}
	return 10
}

func totalScore(c CandidateResult) float64 {
	score := decisionComponent(c.Decision)
	score += exitComponent(c.ExitCode)
	score -= reasonsPenalty * float64(len(c.Reasons))
	if c.Profile == c.RecommendedProfile {
		score += recommendedBonus
	}
	return score
}

// CompareResult is the ranked outcome of scoring every candidate profile.
type CompareResult struct {
	Scores             map[string]float64
	Winner             string
	TopScoreMargin     float64
	RecommendedProfile string
	Explanations       gftypes.DecisionExplanations
	ExplanationQuality gftypes.ExplanationQuality
}

// Compare scores every candidate (in declared order for tie-stable output)
// and produces the ranking explanation spec.md §4.10 requires.
func Compare(candidates []CandidateResult) CompareResult {
	type scored struct {
		CandidateResult
		score float64
	}

	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{c, totalScore(c)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].Decision != ranked[j].Decision {
			return ranked[i].Decision.Rank() > ranked[j].Decision.Rank()
		}
		if ranked[i].ExitCode != ranked[j].ExitCode {
			return ranked[i].ExitCode < ranked[j].ExitCode
		}
		return ranked[i].Profile == ranked[i].RecommendedProfile
	})

	scores := map[string]float64{}
	for _, r := range ranked {
		scores[r.Profile] = r.score
	}

	result := CompareResult{Scores: scores}
	if len(ranked) == 0 {
		return result
	}

	winner := ranked[0]
	result.Winner = winner.Profile
	result.RecommendedProfile = winner.RecommendedProfile

	if len(ranked) > 1 {
		result.TopScoreMargin = winner.score - ranked[1].score
	} else {
		result.TopScoreMargin = winner.score
	}

	var rows []gftypes.BestVsOtherRow
	for _, challenger := range ranked[1:] {
		rows = append(rows, gftypes.BestVsOtherRow{
			WinnerProfile:        winner.Profile,
			ChallengerProfile:    challenger.Profile,
			WinnerTotalScore:     winner.score,
			ChallengerTotalScore: challenger.score,
			ScoreMargin:          winner.score - challenger.score,
			TieOnTotalScore:      winner.score == challenger.score,
			WinnerAdvantages:     advantages(winner.CandidateResult, challenger.CandidateResult),
		})
	}

	result.Explanations = gftypes.DecisionExplanations{
		SelectionPriority: []string{"total_score", "decision", "exit_code", "recommended_profile_tiebreak"},
		BestVsOthers:      rows,
	}
	result.ExplanationQuality = explanationQuality(result.Explanations)

	return result
}

func advantages(winner, challenger CandidateResult) []string {
	var adv []string
	if winner.Decision.Rank() > challenger.Decision.Rank() {
		adv = append(adv, fmt.Sprintf("decision %s beats %s", winner.Decision, challenger.Decision))
	}
	if len(winner.Reasons) < len(challenger.Reasons) {
		adv = append(adv, "fewer reasons")
	}
	if winner.ExitCode == 0 && challenger.ExitCode != 0 {
		adv = append(adv, "clean exit code")
	}
	if winner.Profile == winner.RecommendedProfile && challenger.Profile != challenger.RecommendedProfile {
		adv = append(adv, "matches recommended_profile")
	}
	return adv
}

func explanationQuality(exp gftypes.DecisionExplanations) gftypes.ExplanationQuality {
	checks := map[string]bool{
		"has_selection_priority":  len(exp.SelectionPriority) > 0,
		"has_best_vs_others":      len(exp.BestVsOthers) > 0,
		"every_row_has_margin":    allRowsHaveMargin(exp.BestVsOthers),
		"every_row_has_advantage": allRowsHaveAdvantage(exp.BestVsOthers),
	}
	passed := 0
	for _, ok := range checks {
		if ok {
			passed++
		}
	}
	score := 0
	if len(checks) > 0 {
		score = int(float64(passed) / float64(len(checks)) * 100)
	}
	return gftypes.ExplanationQuality{Score: score, Checks: checks}
}

func allRowsHaveMargin(rows []gftypes.BestVsOtherRow) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if r.ScoreMargin == 0 && !r.TieOnTotalScore {
			return false
		}
	}
	return true
}

// Decision lowers a CompareResult into the wire-format Promotion Decision
// record, given the winner's governance decision and the caller's margin
// floor. The strict guards themselves run at apply time; this only records
// the constraint the decision was produced under.
func (r CompareResult) Decision(winnerDecision gftypes.Decision, minMargin float64, overrideApplied bool) gftypes.PromotionDecision {
	pd := gftypes.PromotionDecision{
		Profile:              r.Winner,
		Decision:             winnerDecision,
		TopScoreMargin:       r.TopScoreMargin,
		MinTopScoreMargin:    minMargin,
		RecommendedProfile:   r.RecommendedProfile,
		DecisionExplanations: r.Explanations,
		ExplanationQuality:   r.ExplanationQuality,
		OverrideApplied:      overrideApplied,
	}
	if minMargin > 0 && r.TopScoreMargin < minMargin {
		pd.ConstraintReason = "top_score_margin_below_min"
	}
	return pd
}

func allRowsHaveAdvantage(rows []gftypes.BestVsOtherRow) bool {
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if len(r.WinnerAdvantages) == 0 {
			return false
		}
	}
	return true
}
