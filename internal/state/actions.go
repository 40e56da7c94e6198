package state

import (
	"fmt"
	"strconv"
	"strings"
)

// #region action-space

// Fixed action space dimensions. The cross product is 4^4 = 256 actions.
var (
	breakdownStyles     = []string{"detailed", "concise", "visual", "step-by-step"}
	taskDurations       = []int{15, 25, 45, 60}
	communicationStyles = []string{"encouraging", "direct", "gentle", "motivational"}
	taskCounts          = []int{3, 5, 7, 10}
)

// Actions returns the full cross product of discrete action choices in a
// fixed nesting order. The order is stable across calls so greedy
// tie-breaking is reproducible.
func Actions() []Action {
	actions := make([]Action, 0, len(breakdownStyles)*len(taskDurations)*len(communicationStyles)*len(taskCounts))
	for _, style := range breakdownStyles {
		for _, duration := range taskDurations {
			for _, comm := range communicationStyles {
				for _, count := range taskCounts {
					actions = append(actions, Action{
						BreakdownStyle:     style,
						TaskDuration:       duration,
						CommunicationStyle: comm,
						TaskCount:          count,
					})
				}
			}
		}
	}
	return actions
}

// #endregion action-space

// #region key-parsing

// ParseActionKey reconstructs an Action from its canonical key. Used when
// replaying historical rows that store only the key.
func ParseActionKey(key string) (Action, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 4 {
		return Action{}, fmt.Errorf("parse action key %q: want 4 fields, got %d", key, len(parts))
	}
	duration, err := strconv.Atoi(parts[1])
	if err != nil {
		return Action{}, fmt.Errorf("parse action key %q: duration: %w", key, err)
	}
	count, err := strconv.Atoi(parts[3])
	if err != nil {
		return Action{}, fmt.Errorf("parse action key %q: task count: %w", key, err)
	}
	return Action{
		BreakdownStyle:     parts[0],
		TaskDuration:       duration,
		CommunicationStyle: parts[2],
		TaskCount:          count,
	}, nil
}

// ParseStateKey reconstructs a State from its canonical key.
func ParseStateKey(key string) (State, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 5 {
		return State{}, fmt.Errorf("parse state key %q: want 5 fields, got %d", key, len(parts))
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return State{}, fmt.Errorf("parse state key %q: user id: %w", key, err)
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil {
		return State{}, fmt.Errorf("parse state key %q: hour: %w", key, err)
	}
	return State{
		UserID:     userID,
		HourOfDay:  hour,
		Category:   Category(parts[2]),
		Complexity: Complexity(parts[3]),
		Mood:       Mood(parts[4]),
	}, nil
}

// #endregion key-parsing
