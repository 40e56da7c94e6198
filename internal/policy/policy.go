package policy

import (
	"errors"
	"math/rand"
	"time"

	"github.com/epochish/klarita/internal/qtable"
	"github.com/epochish/klarita/internal/state"
)

// ErrNoCandidates is returned when Select is called with an empty candidate
// set. This is a caller error, not a degraded outcome.
var ErrNoCandidates = errors.New("policy: empty candidate action set")

// #region selector

// Selector implements epsilon-greedy action selection over a Q-table.
type Selector struct {
	epsilon float64
	rng     *rand.Rand
}

// NewSelector creates a selector with the given exploration rate. rng may be
// nil, in which case a time-seeded source is used. Tests inject a fixed seed
// for reproducible draws.
func NewSelector(epsilon float64, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{epsilon: epsilon, rng: rng}
}

// Epsilon returns the configured exploration rate.
func (s *Selector) Epsilon() float64 {
	return s.epsilon
}

// #endregion selector

// #region select

// Select picks one candidate action for the given state. With probability
// epsilon a uniformly random candidate is returned. Otherwise the candidate
// with the highest stored value wins, ties broken by candidate order. A
// state with no recorded entries falls back to a random candidate.
func (s *Selector) Select(table *qtable.Table, st state.State, candidates []state.Action) (state.Action, error) {
	if len(candidates) == 0 {
		return state.Action{}, ErrNoCandidates
	}

	if s.rng.Float64() < s.epsilon {
		return candidates[s.rng.Intn(len(candidates))], nil
	}

	stored := table.ValuesFor(st)
	if len(stored) == 0 {
		// Nothing learned for this state; exploitation is impossible.
		return candidates[s.rng.Intn(len(candidates))], nil
	}

	// Candidates with no stored value score 0.0, matching the table's read
	// contract. When every stored value is negative, the first unexplored
	// candidate therefore outranks the least-bad known action.
	best := candidates[0]
	bestValue := stored[best]
	for _, a := range candidates[1:] {
		if v := stored[a]; v > bestValue {
			best = a
			bestValue = v
		}
	}
	return best, nil
}

// #endregion select
