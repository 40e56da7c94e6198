package reward

import "fmt"

// ErrInvalidRating is returned for ratings outside [1, 5].
var ErrInvalidRating = fmt.Errorf("reward: rating outside [1,5]")

// #region constants

const (
	ratingWeight     = 0.5 // per rating step away from neutral 3
	completionBonus  = 0.5
	streakStep       = 0.1 // per streak day
	streakCap        = 0.5
	lowRatingPenalty = -0.5 // applied at rating <= 2
)

// #endregion constants

// #region compute

// Compute shapes a session rating plus auxiliary signals into a bounded
// scalar reward in [-1, 1]. Pure and side-effect free.
func Compute(rating int, completed bool, streakDays int) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}

	base := float64(rating-3) * ratingWeight

	bonus := 0.0
	if completed {
		bonus = completionBonus
	}

	streak := 0.0
	if streakDays > 0 {
		streak = float64(streakDays) * streakStep
		if streak > streakCap {
			streak = streakCap
		}
	}

	penalty := 0.0
	if rating <= 2 {
		penalty = lowRatingPenalty
	}

	return clamp(base+bonus+streak+penalty, -1.0, 1.0), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion compute
