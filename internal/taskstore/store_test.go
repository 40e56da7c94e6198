package taskstore

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func intPtr(v int) *int { return &v }

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	id, err := store.CreateSession(1, "work report", "1_10_work_medium_neutral", "detailed_25_direct_5", now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess, err := store.SessionByID(id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Goal != "work report" {
		t.Fatalf("goal = %q", sess.Goal)
	}
	if sess.ProposedActionKey != "detailed_25_direct_5" {
		t.Fatalf("action key = %q", sess.ProposedActionKey)
	}
	if sess.ProposedStateKey != "1_10_work_medium_neutral" {
		t.Fatalf("state key = %q", sess.ProposedStateKey)
	}
	if !sess.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v", sess.CreatedAt)
	}
}

func TestCompletionWindow(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	sessID, err := store.CreateSession(1, "goal", "", "", now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	for i := 0; i < 4; i++ {
		if _, err := store.AddTask(1, sessID, "task", i < 3, nil, now); err != nil {
			t.Fatalf("add task: %v", err)
		}
	}
	// Outside the window.
	if _, err := store.AddTask(1, sessID, "old", true, nil, now.AddDate(0, 0, -10)); err != nil {
		t.Fatalf("add old task: %v", err)
	}

	w, err := store.CompletionWindow(1, now.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("completion window: %v", err)
	}
	if w.TotalTasks != 4 || w.CompletedTasks != 3 {
		t.Fatalf("window = %+v, want 4/3", w)
	}
}

func TestSessionFacts(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	if err := store.SetStreak(1, 6); err != nil {
		t.Fatalf("set streak: %v", err)
	}
	sessID, err := store.CreateSession(1, "goal", "", "", now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// No tasks yet: not completed.
	facts, err := store.SessionFacts(sessID)
	if err != nil {
		t.Fatalf("session facts: %v", err)
	}
	if facts.Completed {
		t.Fatal("empty session should not count as completed")
	}
	if facts.StreakDays != 6 {
		t.Fatalf("streak = %d, want 6", facts.StreakDays)
	}

	taskID, err := store.AddTask(1, sessID, "task", false, intPtr(25), now)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	facts, _ = store.SessionFacts(sessID)
	if facts.Completed {
		t.Fatal("incomplete task should block completion")
	}

	if err := store.CompleteTask(taskID); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	facts, _ = store.SessionFacts(sessID)
	if !facts.Completed {
		t.Fatal("all tasks done should mark session completed")
	}
}

func TestEligibleUsers(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	addSessionWithFeedback := func(userID int64, n int, at time.Time) {
		t.Helper()
		sessID, err := store.CreateSession(userID, "goal", "", "", at)
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
		for i := 0; i < n; i++ {
			if _, err := store.AddFeedback(userID, sessID, 4, at); err != nil {
				t.Fatalf("add feedback: %v", err)
			}
		}
	}

	addSessionWithFeedback(1, 5, now)
	addSessionWithFeedback(2, 2, now)
	addSessionWithFeedback(3, 7, now.AddDate(0, -2, 0)) // outside window

	users, err := store.EligibleUsers(now.AddDate(0, -1, 0), 5)
	if err != nil {
		t.Fatalf("eligible users: %v", err)
	}
	if len(users) != 1 || users[0] != 1 {
		t.Fatalf("eligible = %v, want [1]", users)
	}

	active, err := store.ActiveUserCount(now.AddDate(0, -1, 0))
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if active != 2 {
		t.Fatalf("active = %d, want 2", active)
	}
}

func TestFeedbackQueries(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	sessID, err := store.CreateSession(1, "goal", "", "", now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.AddFeedback(1, sessID, i+2, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("add feedback: %v", err)
		}
	}

	since, err := store.FeedbackSince(1, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("feedback since: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("since count = %d, want 2", len(since))
	}
	if since[0].Rating != 3 || since[1].Rating != 4 {
		t.Fatalf("since order wrong: %+v", since)
	}

	recent, err := store.RecentFeedback(1, 2)
	if err != nil {
		t.Fatalf("recent feedback: %v", err)
	}
	if len(recent) != 2 || recent[0].Rating != 4 {
		t.Fatalf("recent wrong: %+v", recent)
	}
}

func TestAddFeedbackRejectsInvalidRating(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sessID, err := store.CreateSession(1, "goal", "", "", now)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	for _, rating := range []int{-1, 0, 6, 9} {
		if _, err := store.AddFeedback(1, sessID, rating, now); err == nil {
			t.Fatalf("rating %d accepted", rating)
		}
	}

	rows, err := store.FeedbackSince(1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("feedback since: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rejected ratings left %d feedback row(s) behind", len(rows))
	}
}

func TestFeedbackWindowSubSecond(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sessID, err := store.CreateSession(1, "goal", "", "", base)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Inserted newest first; trailing fractional zeros must not change how
	// the stored strings compare.
	if _, err := store.AddFeedback(1, sessID, 5, base.Add(150*time.Millisecond)); err != nil {
		t.Fatalf("add feedback: %v", err)
	}
	if _, err := store.AddFeedback(1, sessID, 4, base.Add(100*time.Millisecond)); err != nil {
		t.Fatalf("add feedback: %v", err)
	}

	all, err := store.FeedbackSince(1, base)
	if err != nil {
		t.Fatalf("feedback since: %v", err)
	}
	if len(all) != 2 || all[0].Rating != 4 || all[1].Rating != 5 {
		t.Fatalf("sub-second order wrong: %+v", all)
	}

	late, err := store.FeedbackSince(1, base.Add(120*time.Millisecond))
	if err != nil {
		t.Fatalf("feedback since: %v", err)
	}
	if len(late) != 1 || late[0].Rating != 5 {
		t.Fatalf("window boundary wrong: %+v", late)
	}
}

func TestTaskDurationsAndCounts(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	s1, _ := store.CreateSession(1, "goal a", "", "", now)
	s2, _ := store.CreateSession(1, "goal b", "", "", now)

	store.AddTask(1, s1, "t1", false, intPtr(45), now)
	store.AddTask(1, s1, "t2", false, nil, now)
	store.AddTask(1, s2, "t3", false, intPtr(15), now)
	store.AddTask(1, s2, "t4", false, intPtr(25), now)

	durations, err := store.TaskDurations([]int64{s1, s2})
	if err != nil {
		t.Fatalf("task durations: %v", err)
	}
	if len(durations) != 3 || durations[0] != 15 || durations[2] != 45 {
		t.Fatalf("durations = %v", durations)
	}

	counts, err := store.TaskCountsPerRecentSession(1, 10)
	if err != nil {
		t.Fatalf("task counts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts = %v", counts)
	}
}
