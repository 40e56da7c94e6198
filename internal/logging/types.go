package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table: one policy
// decision or learning update, with the keys it was made under.
type DecisionEntry struct {
	UserID      int64
	ProposalID  string
	StateKey    string
	ActionKey   string
	TriggerType string // "recommend" | "feedback" | "batch"
	Reward      float64
	HasReward   bool // false for recommend entries, which precede any reward
	Reason      string
	CreatedAt   time.Time
}

// #endregion decision-entry
