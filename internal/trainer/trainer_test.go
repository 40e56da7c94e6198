package trainer

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/epochish/klarita/internal/qtable"
	"github.com/epochish/klarita/internal/snapshot"
	"github.com/epochish/klarita/internal/state"
	"github.com/epochish/klarita/internal/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var fixedNow = time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

func newTestTrainer(t *testing.T, config Config) (*Trainer, *taskstore.Store, *qtable.Table) {
	t.Helper()

	store, err := taskstore.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	snaps, err := snapshot.NewStore(store.DB())
	require.NoError(t, err)

	table := qtable.New(qtable.DefaultConfig())
	return New(store, table, snaps, config, func() time.Time { return fixedNow }), store, table
}

// seedFeedback creates n sessions with recorded proposals and one rating each.
func seedFeedback(t *testing.T, store *taskstore.Store, userID int64, n, rating int, at time.Time) {
	t.Helper()
	st := state.State{
		UserID:     userID,
		HourOfDay:  at.Hour(),
		Category:   state.CategoryWork,
		Complexity: state.ComplexityMedium,
		Mood:       state.MoodNeutral,
	}
	action := state.Actions()[int(userID)%256]
	for i := 0; i < n; i++ {
		sessID, err := store.CreateSession(userID, "work sprint", st.Key(), action.Key(), at)
		require.NoError(t, err)
		_, err = store.AddFeedback(userID, sessID, rating, at)
		require.NoError(t, err)
	}
}

func TestRunNoEligibleUsers(t *testing.T) {
	tr, _, _ := newTestTrainer(t, DefaultConfig())

	report, err := tr.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalUsersTrained)
	assert.Zero(t, report.TrainingCoverage)
	assert.Empty(t, report.Adjustments)
	assert.NotEmpty(t, report.ReportID)
}

func TestRunTrainsEligibleUsers(t *testing.T) {
	tr, store, table := newTestTrainer(t, DefaultConfig())

	seedFeedback(t, store, 1, 6, 5, fixedNow.Add(-time.Hour))
	seedFeedback(t, store, 2, 2, 4, fixedNow.Add(-time.Hour)) // below threshold

	report, err := tr.Run()
	require.NoError(t, err)

	require.Equal(t, 1, report.TotalUsersTrained)
	assert.Equal(t, 6, report.TotalFeedbackProcessed)
	assert.Equal(t, 6, report.TotalQValueUpdates)
	assert.Equal(t, 0, report.TotalErrors)
	assert.Equal(t, 2, report.ActiveUsers)
	assert.InDelta(t, 0.5, report.TrainingCoverage, 1e-9)

	// The replayed pair actually learned.
	stats := report.Users[0]
	assert.Equal(t, int64(1), stats.UserID)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Greater(t, stats.AverageReward, 0.5)

	st := state.State{UserID: 1, HourOfDay: 2, Category: state.CategoryWork, Complexity: state.ComplexityMedium, Mood: state.MoodNeutral}
	assert.Greater(t, table.Get(st, state.Actions()[1]), 0.0)
}

func TestRunReplayWindowExcludesOldFeedback(t *testing.T) {
	tr, store, _ := newTestTrainer(t, DefaultConfig())

	// Eligible via the 30-day window, but only 2 rows fall inside 24h replay.
	seedFeedback(t, store, 1, 4, 5, fixedNow.AddDate(0, 0, -5))
	seedFeedback(t, store, 1, 2, 5, fixedNow.Add(-time.Hour))

	report, err := tr.Run()
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalUsersTrained)
	assert.Equal(t, 2, report.TotalFeedbackProcessed)
}

func TestRunIsolatesPerUserErrors(t *testing.T) {
	tr, store, _ := newTestTrainer(t, DefaultConfig())

	// User 1: sessions without recorded proposals cannot be replayed.
	for i := 0; i < 5; i++ {
		sessID, err := store.CreateSession(1, "untracked", "", "", fixedNow.Add(-time.Hour))
		require.NoError(t, err)
		_, err = store.AddFeedback(1, sessID, 3, fixedNow.Add(-time.Hour))
		require.NoError(t, err)
	}
	// User 2: healthy rows.
	seedFeedback(t, store, 2, 5, 4, fixedNow.Add(-time.Hour))

	report, err := tr.Run()
	require.NoError(t, err)

	require.Equal(t, 2, report.TotalUsersTrained)
	assert.Equal(t, 5, report.TotalErrors)
	assert.Equal(t, 1, report.SuccessfulUsers)
	assert.Equal(t, 5, report.TotalFeedbackProcessed, "user 2 still processed fully")
}

func TestAdviseThresholds(t *testing.T) {
	tr, _, _ := newTestTrainer(t, DefaultConfig())

	adj := tr.advise(Report{TotalUsersTrained: 3, AverageSuccessRate: 0.9, AverageReward: 0.8})
	require.Len(t, adj, 2)
	assert.Equal(t, "epsilon", adj[0].Parameter)
	assert.Equal(t, "decrease", adj[0].Direction)
	assert.Equal(t, "learning_rate", adj[1].Parameter)
	assert.Equal(t, "decrease", adj[1].Direction)

	adj = tr.advise(Report{TotalUsersTrained: 3, AverageSuccessRate: 0.2, AverageReward: 0.1})
	require.Len(t, adj, 2)
	assert.Equal(t, "increase", adj[0].Direction)
	assert.Equal(t, "increase", adj[1].Direction)

	// Mid-band: nothing to advise.
	adj = tr.advise(Report{TotalUsersTrained: 3, AverageSuccessRate: 0.6, AverageReward: 0.5})
	assert.Empty(t, adj)

	assert.Nil(t, tr.advise(Report{}))
}

func TestReportEncodings(t *testing.T) {
	report := Report{
		ReportID:          "r-1",
		GeneratedAt:       fixedNow,
		TotalUsersTrained: 1,
		Users:             []UserStats{{UserID: 1, FeedbackProcessed: 3}},
		Adjustments:       []Adjustment{{Parameter: "epsilon", Direction: "decrease", Reason: "test"}},
	}

	var jsonBuf bytes.Buffer
	require.NoError(t, report.WriteJSON(&jsonBuf))
	var fromJSON Report
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &fromJSON))
	assert.Equal(t, report.ReportID, fromJSON.ReportID)
	assert.Equal(t, report.Users, fromJSON.Users)

	var yamlBuf bytes.Buffer
	require.NoError(t, report.WriteYAML(&yamlBuf))
	var fromYAML Report
	require.NoError(t, yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML))
	assert.Equal(t, report.ReportID, fromYAML.ReportID)
	assert.Len(t, fromYAML.Adjustments, 1)
}
