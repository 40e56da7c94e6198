package qtable

import (
	"sort"
	"sync"
	"time"

	"github.com/epochish/klarita/internal/state"
)

// #region table

// Table is a sparse mapping from state → action → learned value estimate,
// with per-state visit counters and a bounded update history. States and
// actions are comparable value types used directly as map keys.
//
// Reads are safe during a concurrent write. Per-user write serialization is
// the caller's responsibility.
type Table struct {
	mu      sync.RWMutex
	values  map[state.State]map[state.Action]float64
	visits  map[state.State]int
	history []UpdateRecord
	config  Config
}

// New creates an empty table with the given configuration.
func New(config Config) *Table {
	return &Table{
		values: make(map[state.State]map[state.Action]float64),
		visits: make(map[state.State]int),
		config: config,
	}
}

// #endregion table

// #region get

// Get returns the stored value for (s, a), or 0 when absent. Never mutates
// the table.
func (t *Table) Get(s state.State, a state.Action) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values[s][a]
}

// ValuesFor returns a copy of all stored action values for a state.
func (t *Table) ValuesFor(s state.State) map[state.Action]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored := t.values[s]
	if len(stored) == 0 {
		return nil
	}
	out := make(map[state.Action]float64, len(stored))
	for a, v := range stored {
		out[a] = v
	}
	return out
}

// Visits returns the number of updates seen for a state.
func (t *Table) Visits(s state.State) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.visits[s]
}

// #endregion get

// #region update

// Update applies the one-step temporal-difference rule and returns the new
// value. When next is non-nil the target bootstraps on the best known value
// of the next state; otherwise the value is nudged toward the raw reward.
func (t *Table) Update(s state.State, a state.Action, reward float64, next *state.State) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.values[s][a]

	var target float64
	if next != nil {
		maxNext := 0.0
		firstNext := true
		for _, v := range t.values[*next] {
			if firstNext || v > maxNext {
				maxNext = v
				firstNext = false
			}
		}
		target = reward + t.config.DiscountFactor*maxNext
	} else {
		target = reward
	}

	updated := current + t.config.LearningRate*(target-current)

	if t.values[s] == nil {
		t.values[s] = make(map[state.Action]float64)
	}
	t.values[s][a] = updated
	t.visits[s]++

	t.history = append(t.history, UpdateRecord{
		StateKey:  s.Key(),
		ActionKey: a.Key(),
		Reward:    reward,
		Timestamp: time.Now().UTC(),
	})
	if t.config.HistorySize > 0 && len(t.history) > t.config.HistorySize {
		t.history = t.history[len(t.history)-t.config.HistorySize:]
	}

	return updated
}

// #endregion update

// #region best

// BestFor returns the highest-valued stored action for a state. ok is false
// when the state has no recorded entries.
func (t *Table) BestFor(s state.State) (state.Action, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored := t.values[s]
	if len(stored) == 0 {
		return state.Action{}, 0, false
	}

	var best state.Action
	bestValue := 0.0
	first := true
	for a, v := range stored {
		// Deterministic across map iteration order: prefer the higher value,
		// break exact ties on the canonical key.
		if first || v > bestValue || (v == bestValue && a.Key() < best.Key()) {
			best = a
			bestValue = v
			first = false
		}
	}
	return best, bestValue, true
}

// States returns every state with at least one stored value, sorted by key.
func (t *Table) States() []state.State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make([]state.State, 0, len(t.values))
	for s := range t.values {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Key() < states[j].Key() })
	return states
}

// #endregion best

// #region history

// History returns a copy of the bounded update history, oldest first.
func (t *Table) History() []UpdateRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]UpdateRecord, len(t.history))
	copy(out, t.history)
	return out
}

// #endregion history

// #region export

// Export produces the serializable form of the table with deterministic
// ordering.
func (t *Table) Export() Export {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exp := Export{History: make([]UpdateRecord, len(t.history))}
	copy(exp.History, t.history)

	for s, actions := range t.values {
		for a, v := range actions {
			exp.Entries = append(exp.Entries, ExportEntry{State: s, Action: a, Value: v})
		}
	}
	sort.Slice(exp.Entries, func(i, j int) bool {
		if exp.Entries[i].State.Key() != exp.Entries[j].State.Key() {
			return exp.Entries[i].State.Key() < exp.Entries[j].State.Key()
		}
		return exp.Entries[i].Action.Key() < exp.Entries[j].Action.Key()
	})

	for s, count := range t.visits {
		exp.Visits = append(exp.Visits, ExportVisit{State: s, Count: count})
	}
	sort.Slice(exp.Visits, func(i, j int) bool {
		return exp.Visits[i].State.Key() < exp.Visits[j].State.Key()
	})

	return exp
}

// FromExport rebuilds a table from its serialized form.
func FromExport(exp Export, config Config) *Table {
	t := New(config)
	for _, e := range exp.Entries {
		if t.values[e.State] == nil {
			t.values[e.State] = make(map[state.Action]float64)
		}
		t.values[e.State][e.Action] = e.Value
	}
	for _, v := range exp.Visits {
		t.visits[v.State] = v.Count
	}
	t.history = append(t.history, exp.History...)
	if config.HistorySize > 0 && len(t.history) > config.HistorySize {
		t.history = t.history[len(t.history)-config.HistorySize:]
	}
	return t
}

// #endregion export
