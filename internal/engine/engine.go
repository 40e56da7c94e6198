package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/epochish/klarita/internal/logging"
	"github.com/epochish/klarita/internal/policy"
	"github.com/epochish/klarita/internal/qtable"
	"github.com/epochish/klarita/internal/reward"
	"github.com/epochish/klarita/internal/snapshot"
	"github.com/epochish/klarita/internal/state"
	"github.com/epochish/klarita/internal/taskstore"
	"github.com/google/uuid"
)

// #region proposal

// Proposal is the explicit record of one recommendation: the state it was
// encoded under and the action the policy selected. The host passes it back
// into SubmitFeedback; there is no hidden process-wide scratch slot. A
// proposal is consumed by the first feedback that references it.
type Proposal struct {
	ID        string
	UserID    int64
	SessionID int64
	State     state.State
	Action    state.Action
	CreatedAt time.Time

	consumed bool
}

// Consumed reports whether feedback has already been applied to this proposal.
func (p *Proposal) Consumed() bool {
	return p.consumed
}

// #endregion proposal

// #region engine

// Deps bundles the collaborators an Engine needs. Clock may be nil, in which
// case time.Now is used.
type Deps struct {
	Store     *taskstore.Store
	Table     *qtable.Table
	Selector  *policy.Selector
	Snapshots *snapshot.Store
	Clock     func() time.Time
}

// Engine is the learning-loop handler: it selects personalization actions,
// applies feedback to the Q-table, and persists snapshots.
type Engine struct {
	store     *taskstore.Store
	table     *qtable.Table
	selector  *policy.Selector
	snapshots *snapshot.Store
	clock     func() time.Time
}

// New creates an engine from its dependencies.
func New(d Deps) *Engine {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		store:     d.Store,
		table:     d.Table,
		selector:  d.Selector,
		snapshots: d.Snapshots,
		clock:     clock,
	}
}

// Table exposes the in-memory Q-table, e.g. for inspection tooling.
func (e *Engine) Table() *qtable.Table {
	return e.table
}

// #endregion engine

// #region encode

const completionWindowDays = 7

// currentState encodes the user's state as of now. A failed window query
// degrades to the empty-window default rather than blocking the request.
func (e *Engine) currentState(userID int64, goal string) state.State {
	now := e.clock()
	window, err := e.store.CompletionWindow(userID, now.AddDate(0, 0, -completionWindowDays))
	if err != nil {
		log.Printf("engine: completion window for user %d: %v", userID, err)
		window = state.CompletionWindow{}
	}
	return state.Encode(userID, goal, now.Hour(), window)
}

// #endregion encode

// #region recommend

// Recommend encodes the user's current state, selects an action over the
// full candidate set, records the proposal on a new session row, and returns
// both. The returned proposal must accompany the eventual feedback call.
func (e *Engine) Recommend(userID int64, goal string) (state.Action, *Proposal, error) {
	st := e.currentState(userID, goal)

	action, err := e.selector.Select(e.table, st, state.Actions())
	if err != nil {
		return state.Action{}, nil, fmt.Errorf("select action: %w", err)
	}

	p := &Proposal{
		ID:        uuid.New().String(),
		UserID:    userID,
		State:     st,
		Action:    action,
		CreatedAt: e.clock(),
	}

	sessionID, err := e.store.CreateSession(userID, goal, st.Key(), action.Key(), p.CreatedAt)
	if err != nil {
		// The in-memory proposal still works; only batch replay loses this row.
		log.Printf("engine: record session for user %d: %v", userID, err)
	} else {
		p.SessionID = sessionID
	}

	if err := logging.LogDecision(e.store.DB(), logging.DecisionEntry{
		UserID:      userID,
		ProposalID:  p.ID,
		StateKey:    st.Key(),
		ActionKey:   action.Key(),
		TriggerType: "recommend",
		CreatedAt:   p.CreatedAt,
	}); err != nil {
		log.Printf("engine: log recommend decision: %v", err)
	}

	return action, p, nil
}

// #endregion recommend

// #region submit-feedback

// SubmitFeedback scores a session rating and applies it to the Q-table entry
// the proposal was made under. A nil or already-consumed proposal is a
// silent no-op: feedback without a prior recommendation is normal. The state
// at feedback time serves as the look-ahead term. Snapshot persistence
// failure is logged and does not roll back the in-memory update.
func (e *Engine) SubmitFeedback(p *Proposal, sessionID int64, rating int) error {
	if p == nil || p.consumed {
		return nil
	}

	facts, err := e.store.SessionFacts(sessionID)
	if err != nil {
		log.Printf("engine: session facts for %d: %v", sessionID, err)
		facts = taskstore.SessionFacts{}
	}

	r, err := reward.Compute(rating, facts.Completed, facts.StreakDays)
	if err != nil {
		return fmt.Errorf("compute reward: %w", err)
	}

	next := e.currentState(p.UserID, "general")
	updated := e.table.Update(p.State, p.Action, r, &next)
	p.consumed = true

	if err := logging.LogDecision(e.store.DB(), logging.DecisionEntry{
		UserID:      p.UserID,
		ProposalID:  p.ID,
		StateKey:    p.State.Key(),
		ActionKey:   p.Action.Key(),
		TriggerType: "feedback",
		Reward:      r,
		HasReward:   true,
		Reason:      fmt.Sprintf("rating %d, q now %.4f", rating, updated),
	}); err != nil {
		log.Printf("engine: log feedback decision: %v", err)
	}

	if err := e.snapshots.Save(e.table.Export()); err != nil {
		log.Printf("engine: persist snapshot for user %d: %v", p.UserID, err)
	}
	return nil
}

// #endregion submit-feedback

// #region proposal-from-session

// ProposalFromSession rebuilds a proposal from the keys recorded on a
// session row. Returns nil with no error when the session carries no
// recorded proposal; feedback against it is then a no-op.
func (e *Engine) ProposalFromSession(sessionID int64) (*Proposal, error) {
	sess, err := e.store.SessionByID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %d: %w", sessionID, err)
	}
	if sess.ProposedStateKey == "" || sess.ProposedActionKey == "" {
		return nil, nil
	}

	st, err := state.ParseStateKey(sess.ProposedStateKey)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, err)
	}
	action, err := state.ParseActionKey(sess.ProposedActionKey)
	if err != nil {
		return nil, fmt.Errorf("session %d: %w", sessionID, err)
	}

	return &Proposal{
		ID:        uuid.New().String(),
		UserID:    sess.UserID,
		SessionID: sess.ID,
		State:     st,
		Action:    action,
		CreatedAt: sess.CreatedAt,
	}, nil
}

// #endregion proposal-from-session
