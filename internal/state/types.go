package state

import "fmt"

// #region category
// Category is the inferred task category of a goal.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryStudy    Category = "study"
	CategoryPersonal Category = "personal"
	CategoryHealth   Category = "health"
	CategoryGeneral  Category = "general"
)

// #endregion category

// #region complexity
// Complexity buckets a user's trailing completion ratio.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// #endregion complexity

// #region mood
// Mood is a reserved state dimension. No input source feeds it yet;
// every encoded state carries MoodNeutral.
type Mood string

const MoodNeutral Mood = "neutral"

// #endregion mood

// #region state
// State is the discretized context a recommendation is made under.
// It is a comparable value type and is used directly as a map key.
type State struct {
	UserID     int64      `json:"user_id"`
	HourOfDay  int        `json:"hour_of_day"`
	Category   Category   `json:"category"`
	Complexity Complexity `json:"complexity"`
	Mood       Mood       `json:"mood"`
}

// Key renders the canonical string form used for persistence and logging.
func (s State) Key() string {
	return fmt.Sprintf("%d_%d_%s_%s_%s", s.UserID, s.HourOfDay, s.Category, s.Complexity, s.Mood)
}

// #endregion state

// #region action
// Action is a candidate personalization policy: how a goal breakdown is
// styled, paced, and communicated.
type Action struct {
	BreakdownStyle     string `json:"breakdown_style"`
	TaskDuration       int    `json:"task_duration"`
	CommunicationStyle string `json:"communication_style"`
	TaskCount          int    `json:"task_count"`
}

// Key renders the canonical string form used for persistence and logging.
func (a Action) Key() string {
	return fmt.Sprintf("%s_%d_%s_%d", a.BreakdownStyle, a.TaskDuration, a.CommunicationStyle, a.TaskCount)
}

// #endregion action
