package state

import "strings"

// #region keyword-lists

// Category keyword lists, checked in priority order. The first list with a
// substring match against the lowercased goal wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryWork, []string{"work", "meeting", "report", "project", "deadline", "email"}},
	{CategoryStudy, []string{"study", "learn", "exam", "course", "read", "homework"}},
	{CategoryPersonal, []string{"personal", "home", "family", "errand", "chore"}},
	{CategoryHealth, []string{"exercise", "gym", "workout", "run", "health"}},
}

// #endregion keyword-lists

// #region infer-category

// InferCategory maps a goal string to a category. Total: every input yields
// exactly one category; no match yields CategoryGeneral.
func InferCategory(goal string) Category {
	lower := strings.ToLower(goal)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}

// #endregion infer-category

// #region completion-window

// defaultCompletionRatio is assumed when a user has no tasks in the window.
const defaultCompletionRatio = 0.7

// CompletionWindow summarizes a user's tasks from the trailing seven days.
type CompletionWindow struct {
	TotalTasks     int
	CompletedTasks int
}

// Ratio returns the completion ratio, defaulting when the window is empty.
func (w CompletionWindow) Ratio() float64 {
	if w.TotalTasks == 0 {
		return defaultCompletionRatio
	}
	return float64(w.CompletedTasks) / float64(w.TotalTasks)
}

// Complexity buckets the ratio: >0.8 high, <0.5 low, else medium.
// An empty window yields medium.
func (w CompletionWindow) Complexity() Complexity {
	if w.TotalTasks == 0 {
		return ComplexityMedium
	}
	ratio := w.Ratio()
	switch {
	case ratio > 0.8:
		return ComplexityHigh
	case ratio < 0.5:
		return ComplexityLow
	default:
		return ComplexityMedium
	}
}

// #endregion completion-window

// #region encode

// Encode builds the discrete state for a recommendation: the user, the
// hour-of-day bucket, the goal's inferred category, and the complexity
// derived from the trailing completion window. Mood is reserved and always
// neutral.
func Encode(userID int64, goal string, hourOfDay int, window CompletionWindow) State {
	return State{
		UserID:     userID,
		HourOfDay:  hourOfDay,
		Category:   InferCategory(goal),
		Complexity: window.Complexity(),
		Mood:       MoodNeutral,
	}
}

// #endregion encode
