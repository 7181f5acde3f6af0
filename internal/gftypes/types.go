// Package gftypes declares the wire-format records exchanged between every
// GateForge pipeline stage. Field names are the interoperability contract:
// every artifact produced by any command must marshal to exactly these
// shapes, and every reader tolerates unknown keys but never writes them back.
package gftypes

import "time"

// RequestedAction is one of the actions a Proposal can ask the pipeline to perform.
type RequestedAction string

const (
	ActionCheck    RequestedAction = "check"
	ActionSimulate RequestedAction = "simulate"
	ActionRegress  RequestedAction = "regress"
)

// RiskLevel stratifies how strict the policy overlay should be.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Decision is the governance outcome of a regression, a run, or a promotion.
type Decision string

const (
	DecisionPass        Decision = "PASS"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
	DecisionFail        Decision = "FAIL"
	DecisionUnknown     Decision = "UNKNOWN"
)

// Rank orders decisions from worst to best for monotonicity checks:
// FAIL(0) < NEEDS_REVIEW(1) < PASS(2).
func (d Decision) Rank() int {
	switch d {
	case DecisionFail:
		return 0
	case DecisionNeedsReview:
		return 1
	case DecisionPass:
		return 2
	default:
		return -1
	}
}

// Worse reports whether a is a strictly worse decision than b.
func (d Decision) Worse(other Decision) bool {
	return d.Rank() < other.Rank()
}

// ChangeSetRef points at an externally supplied change-set to apply before smoke/regress.
type ChangeSetRef struct {
	Path string `json:"path"`
	Hash string `json:"hash,omitempty"`
}

// PhysicalInvariant declares a constraint a candidate's metrics must satisfy.
type PhysicalInvariant struct {
	Type   string   `json:"type"` // range | monotonic | bounded_delta
	Metric string   `json:"metric"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mode   string   `json:"mode,omitempty"` // non_increasing | non_decreasing (monotonic)
	Delta  *float64 `json:"delta,omitempty"`
}

// Proposal is the declared intent to run a simulation change through the governance pipeline.
type Proposal struct {
	ProposalID         string                    `json:"proposal_id"`
	SchemaVersion      string                    `json:"schema_version"`
	Backend            string                    `json:"backend"`
	ModelScript        string                    `json:"model_script"`
	RequestedActions   []RequestedAction         `json:"requested_actions"`
	RiskLevel          RiskLevel                 `json:"risk_level"`
	Checkers           []string                  `json:"checkers,omitempty"`
	CheckerConfig      map[string]map[string]any `json:"checker_config,omitempty"`
	ChangeSet          *ChangeSetRef             `json:"change_set,omitempty"`
	PhysicalInvariants []PhysicalInvariant       `json:"physical_invariants,omitempty"`
}

// HasAction reports whether the proposal requested a given action.
func (p *Proposal) HasAction(a RequestedAction) bool {
	for _, x := range p.RequestedActions {
		if x == a {
			return true
		}
	}
	return false
}

// Metrics holds the numeric measurements produced by one backend run.
//
// Reported lists which metric names the backend actually populated. A nil
// or empty Reported is treated as "everything the struct can name was
// reported" for backward compatibility with evidence written before a
// metric existed; a non-nil Reported is authoritative and lets a checker
// tell "metric is zero" apart from "metric was never measured".
type Metrics struct {
	RuntimeSeconds   float64            `json:"runtime_seconds"`
	Events           int                `json:"events"`
	Overshoot        float64            `json:"overshoot"`
	SettlingTime     float64            `json:"settling_time"`
	SteadyStateError float64            `json:"steady_state_error"`
	Energy           float64            `json:"energy"`
	Extra            map[string]float64 `json:"extra,omitempty"`
	Reported         []string           `json:"reported,omitempty"`
}

func (m Metrics) isReported(name string) bool {
	if len(m.Reported) == 0 {
		return true
	}
	for _, n := range m.Reported {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns a named metric, checking the well-known fields first and
// falling back to Extra. ok is false when the metric is entirely absent.
func (m Metrics) Get(name string) (float64, bool) {
	if !m.isReported(name) {
		return 0, false
	}
	switch name {
	case "runtime_seconds":
		return m.RuntimeSeconds, true
	case "events":
		return float64(m.Events), true
	case "overshoot":
		return m.Overshoot, true
	case "settling_time":
		return m.SettlingTime, true
	case "steady_state_error":
		return m.SteadyStateError, true
	case "energy":
		return m.Energy, true
	}
	if m.Extra != nil {
		v, ok := m.Extra[name]
		return v, ok
	}
	return 0, false
}

// FailureType taxonomizes why a backend run did not succeed.
type FailureType string

const (
	FailureNone        FailureType = "none"
	FailureTimeout     FailureType = "timeout"
	FailureCrash       FailureType = "crash"
	FailureBuildError  FailureType = "build_error"
	FailureBackendDown FailureType = "backend_unavailable"
)

// Gate is the structural PASS/FAIL verdict on one backend run.
type Gate string

const (
	GatePass Gate = "PASS"
	GateFail Gate = "FAIL"
)

// RunStatus is the outcome of one backend invocation.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusFailure RunStatus = "failure"
)

// Toolchain records the provenance of one backend run.
type Toolchain struct {
	BackendVersion string `json:"backend_version"`
	DockerImage    string `json:"docker_image,omitempty"`
	PolicyProfile  string `json:"policy_profile,omitempty"`
	PolicyVersion  string `json:"policy_version,omitempty"`
}

// Artifacts bundles small auxiliary outputs of a backend run.
type Artifacts struct {
	LogExcerpt string `json:"log_excerpt,omitempty"`
}

// Evidence is the output of one backend run.
type Evidence struct {
	SchemaVersion string      `json:"schema_version"`
	RunID         string      `json:"run_id"`
	Backend       string      `json:"backend"`
	ModelScript   string      `json:"model_script"`
	Status        RunStatus   `json:"status"`
	FailureType   FailureType `json:"failure_type"`
	Gate          Gate        `json:"gate"`
	CheckOK       bool        `json:"check_ok"`
	SimulateOK    *bool       `json:"simulate_ok"` // nil == NA
	Metrics       Metrics     `json:"metrics"`
	ExitCode      int         `json:"exit_code"`
	Toolchain     Toolchain   `json:"toolchain"`
	Artifacts     Artifacts   `json:"artifacts"`
}

// Valid checks the two structural invariants every Evidence record must satisfy.
func (e Evidence) Valid() bool {
	if e.Gate == GatePass {
		simOK := e.SimulateOK == nil || *e.SimulateOK
		if e.Status != StatusSuccess || !e.CheckOK || !simOK {
			return false
		}
	}
	if (e.FailureType == FailureNone) != (e.Status == StatusSuccess) {
		return false
	}
	return true
}

// Finding is a single structured checker output.
type Finding struct {
	Checker string `json:"checker"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// RegressionSummary is the result of comparing candidate vs baseline under a proposal.
type RegressionSummary struct {
	Decision            Decision                  `json:"decision"`
	Reasons             []string                  `json:"reasons"`
	PolicyReasons       []string                  `json:"policy_reasons"`
	RequiredHumanChecks []string                  `json:"required_human_checks,omitempty"`
	Findings            []Finding                 `json:"findings"`
	Checkers            []string                  `json:"checkers"`
	CheckerConfig       map[string]map[string]any `json:"checker_config,omitempty"`
	PolicyPath          string                    `json:"policy_path"`
	PolicyVersion       string                    `json:"policy_version"`
}

// GuardrailViolation is a single planner-guardrail rejection.
type GuardrailViolation struct {
	RuleID  string `json:"rule_id"`
	Message string `json:"message"`
}

// ChangePlan is a planner's proposed set of file touches and the reasoning
// behind them, prior to being lowered into a change-set draft.
type ChangePlan struct {
	Summary      string   `json:"summary"`
	TouchedFiles []string `json:"touched_files"`
	Rationale    string   `json:"rationale,omitempty"`
}

// Intent is a planner backend's output: the interpreted goal plus whatever
// concrete change it proposes, before guardrail validation.
type Intent struct {
	Intent         string          `json:"intent"`
	ProposalID     string          `json:"proposal_id,omitempty"`
	Confidence     float64         `json:"confidence"`
	Overrides      map[string]any  `json:"overrides,omitempty"`
	ChangePlan     *ChangePlan     `json:"change_plan,omitempty"`
	ChangeSetDraft *ChangeSetDraft `json:"change_set_draft,omitempty"`
}

// ChangeSetDraft is the planner's proposed change-set, lowered into the
// same operation shape internal/changeset applies once accepted.
type ChangeSetDraft struct {
	Ops []ChangeOp `json:"ops"`
}

// ChangeOp is one proposed file operation inside a change-set draft.
type ChangeOp struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// RunSummary is the output of the proposal run orchestrator.
type RunSummary struct {
	ProposalID                 string               `json:"proposal_id"`
	Status                     Decision             `json:"status"`
	PolicyDecision             Decision             `json:"policy_decision"`
	PolicyReasons              []string             `json:"policy_reasons"`
	FailReasons                []string             `json:"fail_reasons"`
	RequiredHumanChecks        []string             `json:"required_human_checks"`
	CandidatePath              string               `json:"candidate_path"`
	BaselinePath               string               `json:"baseline_path"`
	RegressionPath             string               `json:"regression_path"`
	ChangeApplyStatus          string               `json:"change_apply_status"`
	ChangeSetHash              string               `json:"change_set_hash,omitempty"`
	AppliedChangesCount        int                  `json:"applied_changes_count,omitempty"`
	PlannerGuardrailDecision   string               `json:"planner_guardrail_decision,omitempty"`
	PlannerGuardrailViolations []GuardrailViolation `json:"planner_guardrail_violations,omitempty"`
	Toolchain                  Toolchain            `json:"toolchain"`
}

// RepairAttempt records one iteration of the repair loop.
type RepairAttempt struct {
	Index          int      `json:"index"`
	PlannerBackend string   `json:"planner_backend"`
	Status         Decision `json:"status"`
	Reasons        []string `json:"reasons"`
}

// RepairOutcome is a before/after snapshot used by the repair loop.
type RepairOutcome struct {
	Status  Decision `json:"status"`
	Reasons []string `json:"reasons"`
}

// RepairComparison reports the delta between before and after repair outcomes.
type RepairComparison struct {
	Delta string `json:"delta"` // improved | unchanged | worse
}

// RepairLoopSummary is the output of one repair-loop execution.
type RepairLoopSummary struct {
	Before                 RepairOutcome    `json:"before"`
	After                  RepairOutcome    `json:"after"`
	Attempts               []RepairAttempt  `json:"attempts"`
	RetryUsed              bool             `json:"retry_used"`
	RetryAnalysis          string           `json:"retry_analysis,omitempty"`
	Comparison             RepairComparison `json:"comparison"`
	SafetyGuardTriggered   bool             `json:"safety_guard_triggered"`
	InvariantRepairApplied bool             `json:"invariant_repair_applied,omitempty"`
}

// ReviewDecision is a human reviewer's resolution of a NEEDS_REVIEW run.
type ReviewDecision struct {
	ReviewID                   string    `json:"review_id"`
	ProposalID                 string    `json:"proposal_id"`
	Reviewer                   string    `json:"reviewer"`
	SecondReviewer             string    `json:"second_reviewer,omitempty"`
	SecondDecision             string    `json:"second_decision,omitempty"`
	Decision                   string    `json:"decision"` // approve | reject
	Rationale                  string    `json:"rationale"`
	CreatedAt                  time.Time `json:"created_at"`
	AllRequiredChecksCompleted bool      `json:"all_required_checks_completed"`
	ConfirmedChecks            []string  `json:"confirmed_checks"`
}

// LedgerRecord is one append-only review-resolution row.
type LedgerRecord struct {
	ProposalID               string    `json:"proposal_id"`
	RiskLevel                RiskLevel `json:"risk_level"`
	SourceStatus             Decision  `json:"source_status"`
	FinalStatus              Decision  `json:"final_status"`
	Reviewer                 string    `json:"reviewer"`
	SecondReviewer           string    `json:"second_reviewer,omitempty"`
	Decision                 string    `json:"decision"`
	CreatedAt                time.Time `json:"created_at"`
	ResolvedAt               time.Time `json:"resolved_at"`
	ResolutionSeconds        float64   `json:"resolution_seconds"`
	PolicyProfile            string    `json:"policy_profile"`
	PolicyVersion            string    `json:"policy_version"`
	PlannerGuardrailDecision string    `json:"planner_guardrail_decision,omitempty"`
	PlannerGuardrailRuleIDs  []string  `json:"planner_guardrail_rule_ids,omitempty"`
}

// Risk is an order-stable governance risk marker.
type Risk struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// KPIs are the derived quality metrics in a governance snapshot.
type KPIs struct {
	StrictDowngradeRate     float64 `json:"strict_downgrade_rate"`
	ReviewRecoveryRate      float64 `json:"review_recovery_rate"`
	StrictNonPassRate       float64 `json:"strict_non_pass_rate"`
	ApprovalRate            float64 `json:"approval_rate"`
	FailRate                float64 `json:"fail_rate"`
	StrategyCompareRelation string  `json:"strategy_compare_relation,omitempty"`
	RecommendedProfile      string  `json:"recommended_profile,omitempty"`
}

// Trend reports the change between two consecutive governance snapshots.
type Trend struct {
	StatusTransition string             `json:"status_transition"`
	KPIDelta         map[string]float64 `json:"kpi_delta"`
	NewRisks         []Risk             `json:"new_risks"`
	ResolvedRisks    []Risk             `json:"resolved_risks"`
}

// GovernanceSnapshot fuses repair/review/CI summaries into one governance verdict.
type GovernanceSnapshot struct {
	Status Decision `json:"status"`
	KPIs   KPIs     `json:"kpis"`
	Risks  []Risk   `json:"risks"`
	Trend  *Trend   `json:"trend,omitempty"`
}

// DecisionExplanations records promotion ranking rationale.
type DecisionExplanations struct {
	SelectionPriority []string         `json:"selection_priority"`
	BestVsOthers      []BestVsOtherRow `json:"best_vs_others"`
}

// BestVsOtherRow is one pairwise promotion-compare explanation row.
type BestVsOtherRow struct {
	WinnerProfile        string   `json:"winner_profile"`
	ChallengerProfile    string   `json:"challenger_profile"`
	WinnerTotalScore     float64  `json:"winner_total_score"`
	ChallengerTotalScore float64  `json:"challenger_total_score"`
	ScoreMargin          float64  `json:"score_margin"`
	TieOnTotalScore      bool     `json:"tie_on_total_score"`
	WinnerAdvantages     []string `json:"winner_advantages"`
}

// ExplanationQuality scores how complete a promotion's explanation is.
type ExplanationQuality struct {
	Score  int             `json:"score"`
	Checks map[string]bool `json:"checks"`
}

// PromotionDecision is the scored outcome of promotion compare.
type PromotionDecision struct {
	Profile              string               `json:"profile"`
	Decision             Decision             `json:"decision"`
	ConstraintReason     string               `json:"constraint_reason,omitempty"`
	TopScoreMargin       float64              `json:"top_score_margin"`
	MinTopScoreMargin    float64              `json:"min_top_score_margin"`
	RecommendedProfile   string               `json:"recommended_profile"`
	DecisionExplanations DecisionExplanations `json:"decision_explanations"`
	ExplanationQuality   ExplanationQuality   `json:"explanation_quality"`
	OverrideApplied      bool                 `json:"override_applied,omitempty"`
}

// ApplyAction is the deterministic action promotion apply maps a decision to.
type ApplyAction string

const (
	ApplyPromote      ApplyAction = "promote"
	ApplyHoldForReview ApplyAction = "hold_for_review"
	ApplyBlock        ApplyAction = "block"
)

// ApplyRecord is one promotion-apply audit row.
type ApplyRecord struct {
	FinalStatus                  Decision         `json:"final_status"`
	ApplyAction                  ApplyAction      `json:"apply_action"`
	ReviewTicketID               string           `json:"review_ticket_id,omitempty"`
	RequireRankingExplanation    bool             `json:"require_ranking_explanation,omitempty"`
	RequireMinTopScoreMargin     *float64         `json:"require_min_top_score_margin,omitempty"`
	RequireMinExplanationQuality *int             `json:"require_min_explanation_quality,omitempty"`
	RankingSelectionPriority     []string         `json:"ranking_selection_priority"`
	RankingBestVsOthers          []BestVsOtherRow `json:"ranking_best_vs_others"`
	Reasons                      []string         `json:"reasons"`
}
