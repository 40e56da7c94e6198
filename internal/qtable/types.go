package qtable

import (
	"time"

	"github.com/epochish/klarita/internal/state"
)

// #region config
// Config holds the learning parameters for the temporal-difference rule.
type Config struct {
	LearningRate   float64 // α: step size toward the TD target
	DiscountFactor float64 // γ: weight of the bootstrapped next-state value
	HistorySize    int     // bounded update history capacity
}

// DefaultConfig returns the fixed production parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:   0.1,
		DiscountFactor: 0.95,
		HistorySize:    50,
	}
}

// #endregion config

// #region update-record
// UpdateRecord is one entry in the bounded update history. Diagnostic only;
// the update rule never reads it.
type UpdateRecord struct {
	StateKey  string    `json:"state_key"`
	ActionKey string    `json:"action_key"`
	Reward    float64   `json:"reward"`
	Timestamp time.Time `json:"timestamp"`
}

// #endregion update-record

// #region export
// Export is the serializable form of a full table. Entries and visits are
// sorted by canonical key so encoding is deterministic.
type Export struct {
	Entries []ExportEntry  `json:"entries"`
	Visits  []ExportVisit  `json:"visits"`
	History []UpdateRecord `json:"history"`
}

// ExportEntry is one (state, action) → value record.
type ExportEntry struct {
	State  state.State  `json:"state"`
	Action state.Action `json:"action"`
	Value  float64      `json:"value"`
}

// ExportVisit is one state → visit count record.
type ExportVisit struct {
	State state.State `json:"state"`
	Count int         `json:"count"`
}

// #endregion export
