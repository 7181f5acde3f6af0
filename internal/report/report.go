// Package report renders pipeline summaries as markdown. Rendering is
// presentation only: every function is a pure summary -> string mapping,
// the JSON artifact stays the source of truth, and nothing here feeds back
// into a decision.
package report

import (
	"fmt"
	"strings"

	"github.com/wangzizhe/gateforge/internal/gftypes"
)

// RunSummary renders a run summary as a markdown report.
func RunSummary(s gftypes.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", s.ProposalID)
	fmt.Fprintf(&b, "**Status:** %s\n\n", s.Status)

	if len(s.FailReasons) > 0 {
		b.WriteString("## Fail reasons\n\n")
		writeList(&b, s.FailReasons)
	}
	if len(s.PolicyReasons) > 0 {
		b.WriteString("## Policy reasons\n\n")
		writeList(&b, s.PolicyReasons)
	}
	if len(s.RequiredHumanChecks) > 0 {
		b.WriteString("## Required human checks\n\n")
		writeList(&b, s.RequiredHumanChecks)
	}

	b.WriteString("## Artifacts\n\n")
	writeRow(&b, "candidate", s.CandidatePath)
	writeRow(&b, "baseline", s.BaselinePath)
	writeRow(&b, "regression", s.RegressionPath)
	writeRow(&b, "change apply", s.ChangeApplyStatus)
	if s.ChangeSetHash != "" {
		writeRow(&b, "change-set hash", s.ChangeSetHash)
	}
	if s.Toolchain.PolicyProfile != "" {
		writeRow(&b, "policy profile", s.Toolchain.PolicyProfile)
	}
	if s.Toolchain.PolicyVersion != "" {
		writeRow(&b, "policy version", s.Toolchain.PolicyVersion)
	}
	return b.String()
}

// Regression renders a regression summary as a markdown report.
func Regression(s gftypes.RegressionSummary) string {
	var b strings.Builder
	b.WriteString("# Regression\n\n")
	fmt.Fprintf(&b, "**Decision:** %s\n\n", s.Decision)

	if len(s.Reasons) > 0 {
		b.WriteString("## Reasons\n\n")
		writeList(&b, s.Reasons)
	}
	if len(s.PolicyReasons) > 0 {
		b.WriteString("## Policy reasons\n\n")
		writeList(&b, s.PolicyReasons)
	}
	if len(s.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range s.Findings {
			fmt.Fprintf(&b, "- `%s`: %s — %s\n", f.Checker, f.Reason, f.Message)
		}
		b.WriteString("\n")
	}
	if len(s.Checkers) > 0 {
		b.WriteString("## Checkers\n\n")
		writeList(&b, s.Checkers)
	}
	if s.PolicyPath != "" {
		fmt.Fprintf(&b, "Policy: `%s` (version %s)\n", s.PolicyPath, s.PolicyVersion)
	}
	return b.String()
}

// RepairLoop renders a repair-loop summary as a markdown report.
func RepairLoop(s gftypes.RepairLoopSummary) string {
	var b strings.Builder
	b.WriteString("# Repair loop\n\n")
	fmt.Fprintf(&b, "**Before:** %s  \n**After:** %s  \n**Delta:** %s\n\n",
		s.Before.Status, s.After.Status, s.Comparison.Delta)

	if s.SafetyGuardTriggered {
		b.WriteString("**Safety guard triggered.**\n\n")
	}
	if s.InvariantRepairApplied {
		b.WriteString("Invariant repair applied.\n\n")
	}

	b.WriteString("## Attempts\n\n")
	for _, a := range s.Attempts {
		fmt.Fprintf(&b, "%d. `%s` → %s", a.Index, a.PlannerBackend, a.Status)
		if len(a.Reasons) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(a.Reasons, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if s.RetryUsed {
		fmt.Fprintf(&b, "Retry used: %s\n", s.RetryAnalysis)
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		fmt.Fprintf(b, "- `%s`\n", item)
	}
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- %s: `%s`\n", label, value)
}
