package regression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func baseEvidence() gftypes.Evidence {
	return gftypes.Evidence{
		SchemaVersion: "1.0",
		Backend:       "mock",
		ModelScript:   "tank.mo",
		Status:        gftypes.StatusSuccess,
		Gate:          gftypes.GatePass,
		CheckOK:       true,
		Metrics:       gftypes.Metrics{RuntimeSeconds: 10},
	}
}

func TestCompare_CleanPass(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{})

	assert.Equal(t, gftypes.DecisionPass, summary.Decision)
	assert.Empty(t, summary.Reasons)
}

func TestCompare_StatusAndGateRegression(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()
	candidate.Status = gftypes.StatusFailure
	candidate.Gate = gftypes.GateFail
	candidate.CheckOK = false

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{})

	assert.Contains(t, summary.Reasons, "status_not_success")
	assert.Contains(t, summary.Reasons, "gate_not_pass")
	assert.Contains(t, summary.Reasons, "check_regression")
	assert.Equal(t, gftypes.DecisionFail, summary.Decision)
}

func TestCompare_RuntimeRegression(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()
	candidate.Metrics.RuntimeSeconds = 13 // 30% over a 20% default threshold

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{})

	assert.Len(t, summary.Reasons, 1)
	assert.Contains(t, summary.Reasons[0], "runtime_regression")
}

func TestCompare_RuntimeWithinCustomThreshold(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()
	candidate.Metrics.RuntimeSeconds = 13

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{RuntimeThreshold: 0.5})

	assert.Empty(t, summary.Reasons)
	assert.Equal(t, gftypes.DecisionPass, summary.Decision)
}

func TestCompare_StrictModelScriptMismatch(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()
	candidate.ModelScript = "tank_v2.mo"

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{StrictModelScript: true})

	assert.Contains(t, summary.Reasons, "model_script_mismatch")
}

func TestCompare_StrictPolicyVersionMismatch(t *testing.T) {
	baseline := baseEvidence()
	baseline.Toolchain.PolicyVersion = "v1"
	candidate := baseEvidence()
	candidate.Toolchain.PolicyVersion = "v2"

	summary := Compare("baseline.json", "candidate.json", baseline, candidate, Options{StrictPolicyVersion: true})
	assert.Contains(t, summary.Reasons, "policy_version_mismatch")

	summary = Compare("baseline.json", "candidate.json", baseline, candidate, Options{})
	assert.NotContains(t, summary.Reasons, "policy_version_mismatch")
}

func TestCompare_DeduplicatesReasons(t *testing.T) {
	baseline := baseEvidence()
	candidate := baseEvidence()
	candidate.Status = gftypes.StatusFailure

	summary := Compare("baseline.json", "candidate.json", baseline, candidate,
		Options{Strict: true, StrictModelScript: true})

	seen := map[string]int{}
	for _, r := range summary.Reasons {
		seen[r]++
	}
	for reason, count := range seen {
		assert.Equal(t, 1, count, "reason %q should be emitted once", reason)
	}
}

func TestMissingBaseline(t *testing.T) {
	summary := MissingBaseline()
	assert.Equal(t, gftypes.DecisionFail, summary.Decision)
	assert.Equal(t, []string{"baseline_missing"}, summary.Reasons)
}

func TestEffectiveCheckerList_RuntimeOverride(t *testing.T) {
	out := effectiveCheckerList([]string{"a", "b"}, map[string]map[string]any{
		"_runtime": {
			"disable": []any{"a"},
			"enable":  []any{"c"},
		},
	})
	assert.Equal(t, []string{"b", "c"}, out)
}
