package taskstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/epochish/klarita/internal/state"
	_ "modernc.org/sqlite"
)

// TimeLayout is the stored timestamp format. Fixed-width fractional seconds
// keep SQLite's lexicographic TEXT comparison consistent with time order;
// RFC3339Nano trims trailing zeros, which breaks sub-second window filters.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           INTEGER PRIMARY KEY,
	streak_days  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sessions (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id              INTEGER NOT NULL,
	goal                 TEXT NOT NULL,
	proposed_state_key   TEXT,
	proposed_action_key  TEXT,
	created_at           TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id             INTEGER NOT NULL,
	session_id          INTEGER NOT NULL,
	title               TEXT NOT NULL,
	completed           INTEGER NOT NULL DEFAULT 0,
	estimated_duration  INTEGER,
	created_at          TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS session_feedback (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     INTEGER NOT NULL,
	session_id  INTEGER NOT NULL,
	rating      INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	proposal_id  TEXT,
	state_key    TEXT NOT NULL,
	action_key   TEXT NOT NULL,
	trigger_type TEXT NOT NULL,
	reward       REAL,
	reason       TEXT,
	created_at   TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store owns the SQLite database holding tasks, sessions, and feedback, and
// answers the aggregate queries the learning components consume.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas apply per connection, and a :memory: path gives every pooled
	// connection its own empty database. One connection keeps both sound.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (snapshot,
// preference, and decision logging share the same database).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region users

// EnsureUser creates the user row if it does not exist.
func (s *Store) EnsureUser(userID int64) error {
	_, err := s.db.Exec(`INSERT INTO users (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	return nil
}

// SetStreak records a user's current streak length.
func (s *Store) SetStreak(userID int64, days int) error {
	if err := s.EnsureUser(userID); err != nil {
		return err
	}
	_, err := s.db.Exec(`UPDATE users SET streak_days = ? WHERE id = ?`, days, userID)
	if err != nil {
		return fmt.Errorf("set streak for %d: %w", userID, err)
	}
	return nil
}

// #endregion users

// #region sessions

// CreateSession inserts a session row carrying the goal and the proposed
// state/action keys, and returns its id.
func (s *Store) CreateSession(userID int64, goal, stateKey, actionKey string, createdAt time.Time) (int64, error) {
	if err := s.EnsureUser(userID); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO sessions (user_id, goal, proposed_state_key, proposed_action_key, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, goal, nullIfEmpty(stateKey), nullIfEmpty(actionKey), createdAt.UTC().Format(TimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("session id: %w", err)
	}
	return id, nil
}

// SessionByID retrieves one session row.
func (s *Store) SessionByID(id int64) (Session, error) {
	var sess Session
	var stateKey, actionKey sql.NullString
	var createdStr string
	err := s.db.QueryRow(
		`SELECT id, user_id, goal, proposed_state_key, proposed_action_key, created_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Goal, &stateKey, &actionKey, &createdStr)
	if err != nil {
		return Session{}, fmt.Errorf("get session %d: %w", id, err)
	}
	sess.ProposedStateKey = stateKey.String
	sess.ProposedActionKey = actionKey.String
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return sess, nil
}

// #endregion sessions

// #region tasks

// AddTask inserts a task row and returns its id. estimatedDuration may be nil.
func (s *Store) AddTask(userID, sessionID int64, title string, completed bool, estimatedDuration *int, createdAt time.Time) (int64, error) {
	var durationPtr interface{}
	if estimatedDuration != nil {
		durationPtr = *estimatedDuration
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (user_id, session_id, title, completed, estimated_duration, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, sessionID, title, boolToInt(completed), durationPtr, createdAt.UTC().Format(TimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task id: %w", err)
	}
	return id, nil
}

// CompleteTask flips a task to completed.
func (s *Store) CompleteTask(taskID int64) error {
	_, err := s.db.Exec(`UPDATE tasks SET completed = 1 WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", taskID, err)
	}
	return nil
}

// CompletionWindow counts a user's tasks created since the given time.
func (s *Store) CompletionWindow(userID int64, since time.Time) (state.CompletionWindow, error) {
	var w state.CompletionWindow
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks
		 WHERE user_id = ? AND created_at > ?`,
		userID, since.UTC().Format(TimeLayout),
	).Scan(&w.TotalTasks, &w.CompletedTasks)
	if err != nil {
		return state.CompletionWindow{}, fmt.Errorf("completion window for %d: %w", userID, err)
	}
	return w, nil
}

// #endregion tasks

// #region feedback

// AddFeedback inserts a feedback row and returns its id. An out-of-range
// rating is rejected before the insert and leaves no row behind.
func (s *Store) AddFeedback(userID, sessionID int64, rating int, createdAt time.Time) (int64, error) {
	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("insert feedback: rating outside [1,5]: %d", rating)
	}
	res, err := s.db.Exec(
		`INSERT INTO session_feedback (user_id, session_id, rating, created_at)
		 VALUES (?, ?, ?, ?)`,
		userID, sessionID, rating, createdAt.UTC().Format(TimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("feedback id: %w", err)
	}
	return id, nil
}

// FeedbackSince returns a user's feedback rows created after the given time,
// oldest first.
func (s *Store) FeedbackSince(userID int64, since time.Time) ([]Feedback, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, session_id, rating, created_at FROM session_feedback
		 WHERE user_id = ? AND created_at >= ? ORDER BY created_at ASC`,
		userID, since.UTC().Format(TimeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("feedback since for %d: %w", userID, err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

// RecentFeedback returns a user's most recent feedback rows, newest first.
func (s *Store) RecentFeedback(userID int64, limit int) ([]Feedback, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, session_id, rating, created_at FROM session_feedback
		 WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent feedback for %d: %w", userID, err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

func scanFeedback(rows *sql.Rows) ([]Feedback, error) {
	var out []Feedback
	for rows.Next() {
		var fb Feedback
		var createdStr string
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.SessionID, &fb.Rating, &createdStr); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, fb)
	}
	return out, rows.Err()
}

// #endregion feedback

// #region session-facts

// SessionFacts answers the reward function's durable lookups: whether the
// session's tasks are all done, and the owner's streak. A session with no
// tasks counts as not completed.
func (s *Store) SessionFacts(sessionID int64) (SessionFacts, error) {
	var facts SessionFacts
	var total, completed int
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks WHERE session_id = ?`,
		sessionID,
	).Scan(&total, &completed)
	if err != nil {
		return SessionFacts{}, fmt.Errorf("session facts %d: %w", sessionID, err)
	}
	facts.Completed = total > 0 && completed == total

	err = s.db.QueryRow(
		`SELECT COALESCE(u.streak_days, 0) FROM sessions se
		 LEFT JOIN users u ON u.id = se.user_id WHERE se.id = ?`,
		sessionID,
	).Scan(&facts.StreakDays)
	if err != nil {
		return SessionFacts{}, fmt.Errorf("session streak %d: %w", sessionID, err)
	}
	return facts, nil
}

// #endregion session-facts

// #region training-queries

// EligibleUsers returns users with at least minFeedback feedback rows since
// the given time.
func (s *Store) EligibleUsers(since time.Time, minFeedback int) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT user_id FROM session_feedback
		 WHERE created_at >= ?
		 GROUP BY user_id HAVING COUNT(id) >= ?
		 ORDER BY user_id ASC`,
		since.UTC().Format(TimeLayout), minFeedback,
	)
	if err != nil {
		return nil, fmt.Errorf("eligible users: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ActiveUserCount counts users with any feedback since the given time.
func (s *Store) ActiveUserCount(since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT user_id) FROM session_feedback WHERE created_at >= ?`,
		since.UTC().Format(TimeLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("active user count: %w", err)
	}
	return n, nil
}

// TaskDurations returns the non-null estimated durations of tasks belonging
// to the given sessions, sorted ascending.
func (s *Store) TaskDurations(sessionIDs []int64) ([]int, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	query := `SELECT estimated_duration FROM tasks
	          WHERE estimated_duration IS NOT NULL AND session_id IN (`
	args := make([]interface{}, 0, len(sessionIDs))
	for i, id := range sessionIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += `) ORDER BY estimated_duration ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("task durations: %w", err)
	}
	defer rows.Close()

	var durations []int
	for rows.Next() {
		var d int
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan duration: %w", err)
		}
		durations = append(durations, d)
	}
	return durations, rows.Err()
}

// TaskCountsPerRecentSession returns the task count of each of a user's most
// recent sessions.
func (s *Store) TaskCountsPerRecentSession(userID int64, limit int) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT COUNT(t.id) FROM tasks t
		 WHERE t.user_id = ?
		 GROUP BY t.session_id ORDER BY t.session_id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("task counts for %d: %w", userID, err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan task count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// #endregion training-queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
