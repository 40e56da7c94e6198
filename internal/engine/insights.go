package engine

import (
	"fmt"
	"sort"
)

// #region insight

// Insight is a learned pattern surfaced for UI display.
type Insight struct {
	ID            string  `json:"id"`
	InsightType   string  `json:"insight_type"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Confidence    float64 `json:"confidence"`
	ActionableTip string  `json:"actionable_tip"`
	DataSource    string  `json:"data_source"`
}

// #endregion insight

// #region insights

const maxInsightConfidence = 95

// Insights derives one pattern per learned state for the user: the
// highest-valued action with a confidence capped at 95. States with no
// recorded values are skipped; a user with no learned states gets an empty
// list.
func (e *Engine) Insights(userID int64) []Insight {
	var insights []Insight

	for _, st := range e.table.States() {
		if st.UserID != userID {
			continue
		}
		best, value, ok := e.table.BestFor(st)
		if !ok {
			continue
		}

		confidence := value * 100
		if confidence > maxInsightConfidence {
			confidence = maxInsightConfidence
		}

		insights = append(insights, Insight{
			ID:          fmt.Sprintf("rl_pattern_%d_%s", userID, st.Key()),
			InsightType: "pattern",
			Title:       fmt.Sprintf("Your %s pattern around %d:00", st.Category, st.HourOfDay),
			Description: fmt.Sprintf(
				"You perform best with %s breakdowns, %d-minute tasks, and %s communication style.",
				best.BreakdownStyle, best.TaskDuration, best.CommunicationStyle,
			),
			Confidence:    confidence,
			ActionableTip: fmt.Sprintf("Try using %s breakdowns for your next session.", best.BreakdownStyle),
			DataSource:    "reinforcement_learning",
		})
	}

	sort.Slice(insights, func(i, j int) bool {
		if insights[i].Confidence != insights[j].Confidence {
			return insights[i].Confidence > insights[j].Confidence
		}
		return insights[i].ID < insights[j].ID
	})
	return insights
}

// #endregion insights
