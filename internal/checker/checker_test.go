package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

func TestNames_MatchesDeclarationOrder(t *testing.T) {
	names := Names()
	assert.Equal(t, []string{
		"timeout",
		"nan_inf",
		"performance_regression",
		"event_explosion",
		"steady_state_regression",
		"control_behavior_regression",
		"invariant_guard",
	}, names)
}

func TestDescribe_Unknown(t *testing.T) {
	_, ok := Describe("does_not_exist")
	assert.False(t, ok)
}

func TestRunTimeout(t *testing.T) {
	c, ok := Describe("timeout")
	assert.True(t, ok)

	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{RuntimeSeconds: 120}}
	findings := c.Run(gftypes.Evidence{}, candidate, nil, Config{"max_runtime_seconds": 60.0})

	assert.Len(t, findings, 1)
	assert.Equal(t, "candidate_timeout_detected", findings[0].Reason)
}

func TestRunTimeout_DisabledWithoutConfig(t *testing.T) {
	c, _ := Describe("timeout")
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{RuntimeSeconds: 99999}}
	findings := c.Run(gftypes.Evidence{}, candidate, nil, nil)
	assert.Empty(t, findings)
}

func TestRunNanInf(t *testing.T) {
	c, _ := Describe("nan_inf")
	nan := 0.0
	nan = nan / nan // NaN without using math, grounded in the checker's own isNaNOrInf self-comparison trick
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Overshoot: nan}}

	findings := c.Run(gftypes.Evidence{}, candidate, nil, nil)
	assert.Len(t, findings, 1)
	assert.Equal(t, "nan_or_inf_detected", findings[0].Reason)
}

func TestRunPerformanceRegression(t *testing.T) {
	c, _ := Describe("performance_regression")
	baseline := gftypes.Evidence{Metrics: gftypes.Metrics{RuntimeSeconds: 10}}
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{RuntimeSeconds: 20}}

	findings := c.Run(baseline, candidate, nil, nil)
	assert.Len(t, findings, 1)
	assert.Equal(t, "performance_regression_detected", findings[0].Reason)
}

func TestRunPerformanceRegression_MissingMetric(t *testing.T) {
	c, _ := Describe("performance_regression")
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Reported: []string{"events"}}}

	findings := c.Run(gftypes.Evidence{}, candidate, nil, nil)
	assert.Len(t, findings, 1)
	assert.Equal(t, "performance_regression_metric_missing", findings[0].Reason)
}

func TestRunEventExplosion_ZeroBaseline(t *testing.T) {
	c, _ := Describe("event_explosion")
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Events: 50}}

	findings := c.Run(gftypes.Evidence{}, candidate, nil, nil)
	assert.Len(t, findings, 1)
	assert.Equal(t, "event_explosion_detected", findings[0].Reason)
}

func TestRunEventExplosion_Ratio(t *testing.T) {
	c, _ := Describe("event_explosion")
	baseline := gftypes.Evidence{Metrics: gftypes.Metrics{Events: 100}}
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Events: 400}}

	findings := c.Run(baseline, candidate, nil, Config{"max_ratio": 2.0})
	assert.Len(t, findings, 1)
}

func TestRunControlBehaviorRegression(t *testing.T) {
	c, _ := Describe("control_behavior_regression")
	baseline := gftypes.Evidence{Metrics: gftypes.Metrics{Overshoot: 0.1, SettlingTime: 10, SteadyStateError: 0.01}}
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Overshoot: 0.3, SettlingTime: 20, SteadyStateError: 0.08}}

	findings := c.Run(baseline, candidate, nil, nil)

	var reasons []string
	for _, f := range findings {
		reasons = append(reasons, f.Reason)
	}
	assert.Contains(t, reasons, "overshoot_regression_detected")
	assert.Contains(t, reasons, "settling_time_regression_detected")
	assert.Contains(t, reasons, "steady_state_regression_detected")
}

func TestRunInvariantGuard_NoInvariantsIsNoop(t *testing.T) {
	c, _ := Describe("invariant_guard")
	findings := c.Run(gftypes.Evidence{}, gftypes.Evidence{}, nil, nil)
	assert.Empty(t, findings)
}

func TestRunInvariantGuard_ViolationFlowsThrough(t *testing.T) {
	c, _ := Describe("invariant_guard")
	max := 0.1
	invariants := []gftypes.PhysicalInvariant{{Type: "range", Metric: "overshoot", Max: &max}}
	candidate := gftypes.Evidence{Metrics: gftypes.Metrics{Overshoot: 0.9}}

	findings := c.Run(gftypes.Evidence{}, candidate, invariants, nil)
	assert.Len(t, findings, 1)
	assert.Equal(t, "physical_invariant_range_violated:overshoot", findings[0].Reason)
}
