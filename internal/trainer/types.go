package trainer

import "time"

// #region config
// Config holds the batch training thresholds.
type Config struct {
	MinInteractions   int           // feedback rows required for eligibility
	ReplayWindow      time.Duration // how far back feedback is replayed
	EligibilityWindow time.Duration // window for eligibility and coverage
	SuccessRateHigh   float64       // above: advise less exploration
	SuccessRateLow    float64       // below: advise more exploration
	RewardHigh        float64       // above: advise a smaller learning rate
	RewardLow         float64       // below: advise a larger learning rate
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinInteractions:   5,
		ReplayWindow:      24 * time.Hour,
		EligibilityWindow: 30 * 24 * time.Hour,
		SuccessRateHigh:   0.8,
		SuccessRateLow:    0.4,
		RewardHigh:        0.7,
		RewardLow:         0.3,
	}
}

// #endregion config

// #region user-stats
// UserStats accumulates one user's training outcome. Errors are isolated per
// user; a failed row never aborts the batch.
type UserStats struct {
	UserID            int64   `json:"user_id" yaml:"user_id"`
	FeedbackProcessed int     `json:"feedback_processed" yaml:"feedback_processed"`
	QValueUpdates     int     `json:"q_value_updates" yaml:"q_value_updates"`
	AverageReward     float64 `json:"average_reward" yaml:"average_reward"`
	SuccessRate       float64 `json:"success_rate" yaml:"success_rate"`
	Errors            int     `json:"errors" yaml:"errors"`
}

// #endregion user-stats

// #region adjustment
// Adjustment is an advisory hyperparameter nudge. Never applied
// automatically.
type Adjustment struct {
	Parameter string `json:"parameter" yaml:"parameter"` // "epsilon" | "learning_rate"
	Direction string `json:"direction" yaml:"direction"` // "increase" | "decrease"
	Reason    string `json:"reason" yaml:"reason"`
}

// #endregion adjustment

// #region report
// Report aggregates one nightly training run.
type Report struct {
	ReportID               string       `json:"report_id" yaml:"report_id"`
	GeneratedAt            time.Time    `json:"generated_at" yaml:"generated_at"`
	TotalUsersTrained      int          `json:"total_users_trained" yaml:"total_users_trained"`
	TotalFeedbackProcessed int          `json:"total_feedback_processed" yaml:"total_feedback_processed"`
	TotalQValueUpdates     int          `json:"total_q_value_updates" yaml:"total_q_value_updates"`
	TotalErrors            int          `json:"total_errors" yaml:"total_errors"`
	SuccessfulUsers        int          `json:"successful_users" yaml:"successful_users"`
	AverageSuccessRate     float64      `json:"average_success_rate" yaml:"average_success_rate"`
	AverageReward          float64      `json:"average_reward" yaml:"average_reward"`
	ActiveUsers            int          `json:"active_users" yaml:"active_users"`
	TrainingCoverage       float64      `json:"training_coverage" yaml:"training_coverage"`
	Adjustments            []Adjustment `json:"adjustments" yaml:"adjustments"`
	Users                  []UserStats  `json:"users" yaml:"users"`
}

// #endregion report
