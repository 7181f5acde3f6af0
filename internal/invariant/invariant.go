// Package invariant evaluates physical-invariant constraints declared on a
// Proposal against a candidate's metrics, grounded in the teacher's
// internal/validation.SecurityScanner shape of "pure function over
// (config, observed) -> findings".
package invariant

import (
	"fmt"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// Violation is one physical-invariant breach, already formatted as the
// `physical_invariant_<type>_violated:<metric>` reason string the policy
// overlay and checker suite key on.
type Violation struct {
	Reason  string
	Message string
}

// Check evaluates every declared invariant against candidate metrics (and,
// for monotonic and bounded_delta invariants, the baseline metrics) and returns one Violation
// per breach, in declaration order.
func Check(invariants []gftypes.PhysicalInvariant, baseline, candidate gftypes.Metrics) []Violation {
	var violations []Violation
	for _, inv := range invariants {
		v, ok := checkOne(inv, baseline, candidate)
		if ok {
			violations = append(violations, v)
		}
	}
	return violations
}

func checkOne(inv gftypes.PhysicalInvariant, baseline, candidate gftypes.Metrics) (Violation, bool) {
	value, present := candidate.Get(inv.Metric)
	if !present {
		return Violation{}, false
	}

	switch inv.Type {
	case "range":
		if inv.Min != nil && value < *inv.Min {
			return Violation{
				Reason:  fmt.Sprintf("physical_invariant_range_violated:%s", inv.Metric),
				Message: fmt.Sprintf("%s=%.4g below minimum %.4g", inv.Metric, value, *inv.Min),
			}, true
		}
		if inv.Max != nil && value > *inv.Max {
			return Violation{
				Reason:  fmt.Sprintf("physical_invariant_range_violated:%s", inv.Metric),
				Message: fmt.Sprintf("%s=%.4g above maximum %.4g", inv.Metric, value, *inv.Max),
			}, true
		}
		return Violation{}, false

	case "monotonic":
		baseValue, baseOK := baseline.Get(inv.Metric)
		if !baseOK {
			return Violation{}, false
		}
		switch inv.Mode {
		case "non_increasing":
			if value > baseValue {
				return Violation{
					Reason:  fmt.Sprintf("physical_invariant_monotonic_violated:%s", inv.Metric),
					Message: fmt.Sprintf("%s increased from %.4g to %.4g, expected non-increasing", inv.Metric, baseValue, value),
				}, true
			}
		case "non_decreasing":
			if value < baseValue {
				return Violation{
					Reason:  fmt.Sprintf("physical_invariant_monotonic_violated:%s", inv.Metric),
					Message: fmt.Sprintf("%s decreased from %.4g to %.4g, expected non-decreasing", inv.Metric, baseValue, value),
				}, true
			}
		}
		return Violation{}, false

	case "bounded_delta":
		baseValue, baseOK := baseline.Get(inv.Metric)
		if !baseOK || inv.Delta == nil {
			return Violation{}, false
		}
		delta := value - baseValue
		if delta < 0 {
			delta = -delta
		}
		if delta > *inv.Delta {
			return Violation{
				Reason:  fmt.Sprintf("physical_invariant_bounded_delta_violated:%s", inv.Metric),
				Message: fmt.Sprintf("%s delta %.4g exceeds bound %.4g", inv.Metric, delta, *inv.Delta),
			}, true
		}
		return Violation{}, false
	}

	return Violation{}, false
}
