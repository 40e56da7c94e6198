package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/epochish/klarita/internal/qtable"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS q_snapshots (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	payload   BLOB NOT NULL,
	saved_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store

// Store persists the entire Q-table as a single snapshot row. The upsert runs
// in one statement, so a concurrent reader sees either the old payload or the
// new one, never a torn write.
type Store struct {
	db *sql.DB
}

// NewStore creates the snapshot table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate snapshots: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion store

// #region save

// Save serializes the export and overwrites the snapshot row.
func (s *Store) Save(exp qtable.Export) error {
	payload, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO q_snapshots (id, payload, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// #endregion save

// #region load

// Load reads the snapshot row. ok is false when no snapshot exists yet; a
// fresh process then starts from an empty table.
func (s *Store) Load() (qtable.Export, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM q_snapshots WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return qtable.Export{}, false, nil
	}
	if err != nil {
		return qtable.Export{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var exp qtable.Export
	if err := json.Unmarshal(payload, &exp); err != nil {
		return qtable.Export{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return exp, true, nil
}

// #endregion load

// #region load-table

// LoadTable rebuilds a table from the stored snapshot. A missing or corrupt
// snapshot degrades to an empty table; the error is returned for logging but
// the table is always usable.
func (s *Store) LoadTable(config qtable.Config) (*qtable.Table, error) {
	exp, ok, err := s.Load()
	if err != nil || !ok {
		return qtable.New(config), err
	}
	return qtable.FromExport(exp, config), nil
}

// #endregion load-table
