package governance

import "github.com/wangzizhe/gateforge/internal/gftypes"

// WindowSummary reports the transition counts and worsening-streak alert
// over the trailing entries of a governance history.
type WindowSummary struct {
	LatestStatus    gftypes.Decision `json:"latest_status"`
	BetterCount     int              `json:"better_count"`
	WorseCount      int              `json:"worse_count"`
	UnchangedCount  int              `json:"unchanged_count"`
	WorseningStreak int              `json:"worsening_streak"`
	WorseningAlert  bool             `json:"worsening_alert"`
}

// SummarizeWindow computes transition KPIs over the last n entries (earliest
// first in entries) and raises a worsening-streak alert when the tail is
// strictly monotonically worse for at least alertThreshold consecutive
// transitions.
func SummarizeWindow(entries []HistoryEntry, n, alertThreshold int) WindowSummary {
	if len(entries) == 0 {
		return WindowSummary{}
	}

	window := entries
	if n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}

	summary := WindowSummary{LatestStatus: window[len(window)-1].Snapshot.Status}

	// The alert keys on the tail streak: consecutive worsening transitions
	// ending at the latest entry, not the longest streak anywhere in the window.
	streak := 0
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Snapshot.Status
		curr := window[i].Snapshot.Status
		switch {
		case curr.Rank() < prev.Rank():
			summary.WorseCount++
			streak++
		case curr.Rank() > prev.Rank():
			summary.BetterCount++
			streak = 0
		default:
			summary.UnchangedCount++
			streak = 0
		}
	}

	summary.WorseningStreak = streak
	summary.WorseningAlert = alertThreshold > 0 && streak >= alertThreshold
	return summary
}
