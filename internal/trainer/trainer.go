package trainer

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/epochish/klarita/internal/logging"
	"github.com/epochish/klarita/internal/qtable"
	"github.com/epochish/klarita/internal/reward"
	"github.com/epochish/klarita/internal/snapshot"
	"github.com/epochish/klarita/internal/state"
	"github.com/epochish/klarita/internal/taskstore"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// #region trainer

// Trainer replays recent feedback through the temporal-difference rule for
// every eligible user and produces an aggregate report.
type Trainer struct {
	store     *taskstore.Store
	table     *qtable.Table
	snapshots *snapshot.Store
	config    Config
	clock     func() time.Time
}

// New creates a trainer. clock may be nil, in which case time.Now is used.
func New(store *taskstore.Store, table *qtable.Table, snapshots *snapshot.Store, config Config, clock func() time.Time) *Trainer {
	if clock == nil {
		clock = time.Now
	}
	return &Trainer{
		store:     store,
		table:     table,
		snapshots: snapshots,
		config:    config,
		clock:     clock,
	}
}

// #endregion trainer

// #region run

// Run performs one nightly training pass. A failure for one user is recorded
// in that user's stats and never aborts the remaining users. Zero eligible
// users yields an empty report, not an error.
func (t *Trainer) Run() (Report, error) {
	now := t.clock()
	report := Report{
		ReportID:    uuid.New().String(),
		GeneratedAt: now.UTC(),
	}

	eligible, err := t.store.EligibleUsers(now.Add(-t.config.EligibilityWindow), t.config.MinInteractions)
	if err != nil {
		return Report{}, fmt.Errorf("eligible users: %w", err)
	}

	active, err := t.store.ActiveUserCount(now.Add(-t.config.EligibilityWindow))
	if err != nil {
		return Report{}, fmt.Errorf("active users: %w", err)
	}
	report.ActiveUsers = active

	var totalReward, totalSuccess float64
	for _, userID := range eligible {
		stats := t.trainUser(userID, now)
		report.Users = append(report.Users, stats)

		report.TotalUsersTrained++
		report.TotalFeedbackProcessed += stats.FeedbackProcessed
		report.TotalQValueUpdates += stats.QValueUpdates
		report.TotalErrors += stats.Errors
		if stats.Errors == 0 {
			report.SuccessfulUsers++
		}
		totalReward += stats.AverageReward
		totalSuccess += stats.SuccessRate
	}

	if report.TotalUsersTrained > 0 {
		report.AverageReward = totalReward / float64(report.TotalUsersTrained)
		report.AverageSuccessRate = totalSuccess / float64(report.TotalUsersTrained)
	}
	if active > 0 {
		report.TrainingCoverage = float64(report.TotalUsersTrained) / float64(active)
	}

	report.Adjustments = t.advise(report)

	if report.TotalUsersTrained > 0 {
		if err := t.snapshots.Save(t.table.Export()); err != nil {
			log.Printf("trainer: persist snapshot: %v", err)
			report.TotalErrors++
		}
	}

	return report, nil
}

// #endregion run

// #region train-user

// trainUser replays one user's feedback rows from the replay window through
// the update rule. The state/action pair is reconstructed from the keys the
// session row recorded at recommendation time, so no live proposal is
// needed. Row-level failures are counted and skipped.
func (t *Trainer) trainUser(userID int64, now time.Time) UserStats {
	stats := UserStats{UserID: userID}

	feedback, err := t.store.FeedbackSince(userID, now.Add(-t.config.ReplayWindow))
	if err != nil {
		log.Printf("trainer: feedback for user %d: %v", userID, err)
		stats.Errors++
		return stats
	}

	var totalReward float64
	var positive int
	for _, fb := range feedback {
		r, err := t.replayRow(userID, fb)
		if err != nil {
			log.Printf("trainer: replay feedback %d for user %d: %v", fb.ID, userID, err)
			stats.Errors++
			continue
		}
		stats.FeedbackProcessed++
		stats.QValueUpdates++
		totalReward += r
		if fb.Rating >= 4 {
			positive++
		}
	}

	if stats.FeedbackProcessed > 0 {
		stats.AverageReward = totalReward / float64(stats.FeedbackProcessed)
		stats.SuccessRate = float64(positive) / float64(stats.FeedbackProcessed)
	}
	return stats
}

// replayRow applies one historical feedback row and returns its reward.
func (t *Trainer) replayRow(userID int64, fb taskstore.Feedback) (float64, error) {
	sess, err := t.store.SessionByID(fb.SessionID)
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	if sess.ProposedStateKey == "" || sess.ProposedActionKey == "" {
		return 0, fmt.Errorf("session %d recorded no proposal", sess.ID)
	}

	st, err := state.ParseStateKey(sess.ProposedStateKey)
	if err != nil {
		return 0, err
	}
	action, err := state.ParseActionKey(sess.ProposedActionKey)
	if err != nil {
		return 0, err
	}

	facts, err := t.store.SessionFacts(fb.SessionID)
	if err != nil {
		return 0, fmt.Errorf("session facts: %w", err)
	}
	r, err := reward.Compute(fb.Rating, facts.Completed, facts.StreakDays)
	if err != nil {
		return 0, fmt.Errorf("compute reward: %w", err)
	}

	// Same look-ahead semantics as the live path: the state at processing
	// time, not the state the action was chosen under.
	window, err := t.store.CompletionWindow(userID, t.clock().AddDate(0, 0, -7))
	if err != nil {
		window = state.CompletionWindow{}
	}
	next := state.Encode(userID, "general", t.clock().Hour(), window)

	updated := t.table.Update(st, action, r, &next)

	if err := logging.LogDecision(t.store.DB(), logging.DecisionEntry{
		UserID:      userID,
		StateKey:    st.Key(),
		ActionKey:   action.Key(),
		TriggerType: "batch",
		Reward:      r,
		HasReward:   true,
		Reason:      fmt.Sprintf("replayed feedback %d, q now %.4f", fb.ID, updated),
	}); err != nil {
		log.Printf("trainer: log batch decision: %v", err)
	}

	return r, nil
}

// #endregion train-user

// #region advise

// advise proposes coarse hyperparameter nudges from aggregate thresholds.
// Advisory only.
func (t *Trainer) advise(report Report) []Adjustment {
	if report.TotalUsersTrained == 0 {
		return nil
	}

	var out []Adjustment
	switch {
	case report.AverageSuccessRate > t.config.SuccessRateHigh:
		out = append(out, Adjustment{
			Parameter: "epsilon",
			Direction: "decrease",
			Reason:    fmt.Sprintf("success rate %.2f above %.2f, exploit more", report.AverageSuccessRate, t.config.SuccessRateHigh),
		})
	case report.AverageSuccessRate < t.config.SuccessRateLow:
		out = append(out, Adjustment{
			Parameter: "epsilon",
			Direction: "increase",
			Reason:    fmt.Sprintf("success rate %.2f below %.2f, explore more", report.AverageSuccessRate, t.config.SuccessRateLow),
		})
	}

	switch {
	case report.AverageReward > t.config.RewardHigh:
		out = append(out, Adjustment{
			Parameter: "learning_rate",
			Direction: "decrease",
			Reason:    fmt.Sprintf("average reward %.2f above %.2f, learning is stable", report.AverageReward, t.config.RewardHigh),
		})
	case report.AverageReward < t.config.RewardLow:
		out = append(out, Adjustment{
			Parameter: "learning_rate",
			Direction: "increase",
			Reason:    fmt.Sprintf("average reward %.2f below %.2f", report.AverageReward, t.config.RewardLow),
		})
	}

	return out
}

// #endregion advise

// #region report-encoding

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func (r Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// #endregion report-encoding
