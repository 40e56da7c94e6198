package prefs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/epochish/klarita/internal/taskstore"
)

// Lightweight preference heuristic that predates the Q-learner. It still
// feeds the breakdown prompt defaults, so it is kept alongside the table.

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS user_preferences (
	user_id                  INTEGER PRIMARY KEY,
	preferred_task_duration  INTEGER,
	breakdown_style          TEXT NOT NULL DEFAULT 'detailed',
	updated_at               TEXT NOT NULL
);
`

// #endregion schema

// #region types

// Preference is a user's stored breakdown defaults.
type Preference struct {
	UserID                int64
	PreferredTaskDuration *int // minutes; nil until enough rated sessions exist
	BreakdownStyle        string
	UpdatedAt             time.Time
}

// sampleSize is the number of latest feedback rows the heuristic considers.
const sampleSize = 10

// #endregion types

// #region store

// Store manages persistent user preferences in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates the preferences table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate preferences: %w", err)
	}
	return &Store{db: db}, nil
}

// Get reads a user's preference row. ok is false when none exists yet.
func (s *Store) Get(userID int64) (Preference, bool, error) {
	var p Preference
	var duration sql.NullInt64
	var updatedStr string
	err := s.db.QueryRow(
		`SELECT user_id, preferred_task_duration, breakdown_style, updated_at
		 FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &duration, &p.BreakdownStyle, &updatedStr)
	if err == sql.ErrNoRows {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, fmt.Errorf("get preference %d: %w", userID, err)
	}
	if duration.Valid {
		d := int(duration.Int64)
		p.PreferredTaskDuration = &d
	}
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return p, true, nil
}

func (s *Store) upsert(p Preference) error {
	var durationPtr interface{}
	if p.PreferredTaskDuration != nil {
		durationPtr = *p.PreferredTaskDuration
	}
	_, err := s.db.Exec(
		`INSERT INTO user_preferences (user_id, preferred_task_duration, breakdown_style, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   preferred_task_duration = excluded.preferred_task_duration,
		   breakdown_style = excluded.breakdown_style,
		   updated_at = excluded.updated_at`,
		p.UserID, durationPtr, p.BreakdownStyle, p.UpdatedAt.UTC().Format(taskstore.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert preference %d: %w", p.UserID, err)
	}
	return nil
}

// #endregion store

// #region refresh

// Refresh recomputes a user's preferences from their recent feedback:
// the preferred duration becomes the median estimated duration of tasks in
// sessions rated 4 or higher, and the breakdown style toggles to "simple"
// when the average rating is at most 3 while sessions average more than 10
// tasks. No feedback yet leaves the stored row untouched.
func (s *Store) Refresh(tasks *taskstore.Store, userID int64, now time.Time) (Preference, error) {
	current, ok, err := s.Get(userID)
	if err != nil {
		return Preference{}, err
	}
	if !ok {
		current = Preference{UserID: userID, BreakdownStyle: "detailed"}
	}

	feedback, err := tasks.RecentFeedback(userID, sampleSize)
	if err != nil {
		return Preference{}, err
	}
	if len(feedback) == 0 {
		return current, nil
	}

	var successful []int64
	var ratingSum int
	for _, fb := range feedback {
		ratingSum += fb.Rating
		if fb.Rating >= 4 {
			successful = append(successful, fb.SessionID)
		}
	}

	if len(successful) > 0 {
		durations, err := tasks.TaskDurations(successful)
		if err != nil {
			return Preference{}, err
		}
		if len(durations) > 0 {
			median := durations[len(durations)/2]
			current.PreferredTaskDuration = &median
		}
	}

	avgRating := float64(ratingSum) / float64(len(feedback))
	counts, err := tasks.TaskCountsPerRecentSession(userID, len(feedback))
	if err != nil {
		return Preference{}, err
	}
	avgTaskCount := 0.0
	if len(counts) > 0 {
		sum := 0
		for _, c := range counts {
			sum += c
		}
		avgTaskCount = float64(sum) / float64(len(counts))
	}

	if avgRating <= 3 && avgTaskCount > 10 {
		current.BreakdownStyle = "simple"
	} else {
		current.BreakdownStyle = "detailed"
	}

	current.UserID = userID
	current.UpdatedAt = now.UTC()
	if err := s.upsert(current); err != nil {
		return Preference{}, err
	}
	return current, nil
}

// #endregion refresh
