package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/epochish/klarita/internal/taskstore"
)

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var rewardPtr interface{}
	if entry.HasReward {
		rewardPtr = entry.Reward
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (user_id, proposal_id, state_key, action_key, trigger_type, reward, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		nullIfEmpty(entry.ProposalID),
		entry.StateKey,
		entry.ActionKey,
		entry.TriggerType,
		rewardPtr,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(taskstore.TimeLayout),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent-decisions
// RecentDecisions returns a user's most recent decision entries, newest first.
func RecentDecisions(db *sql.DB, userID int64, limit int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT user_id, proposal_id, state_key, action_key, trigger_type, reward, reason, created_at
		 FROM decision_log WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var proposalID, reason sql.NullString
		var reward sql.NullFloat64
		var createdStr string
		if err := rows.Scan(&e.UserID, &proposalID, &e.StateKey, &e.ActionKey, &e.TriggerType, &reward, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.ProposalID = proposalID.String
		e.Reason = reason.String
		if reward.Valid {
			e.Reward = reward.Float64
			e.HasReward = true
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion recent-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
