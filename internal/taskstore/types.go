package taskstore

import "time"

// #region task
// Task is one generated sub-task with its completion status. The estimated
// duration is optional and checked by presence, not reflection.
type Task struct {
	ID                int64
	UserID            int64
	SessionID         int64
	Title             string
	Completed         bool
	EstimatedDuration *int // minutes; nil when the model gave no estimate
	CreatedAt         time.Time
}

// #endregion task

// #region session
// Session is one goal-breakdown session. The proposed state and action keys
// record what the policy selected when the session was created, so historical
// rows can be replayed without the live proposal.
type Session struct {
	ID                int64
	UserID            int64
	Goal              string
	ProposedStateKey  string
	ProposedActionKey string
	CreatedAt         time.Time
}

// #endregion session

// #region feedback
// Feedback is one user rating of a session, 1 to 5.
type Feedback struct {
	ID        int64
	UserID    int64
	SessionID int64
	Rating    int
	CreatedAt time.Time
}

// #endregion feedback

// #region session-facts
// SessionFacts bundles the durable signals the reward function needs.
type SessionFacts struct {
	Completed  bool // every task in the session is done
	StreakDays int  // the owner's current streak
}

// #endregion session-facts
