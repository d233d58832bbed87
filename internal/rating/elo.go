// internal/rating/elo.go
package rating

import "math"

// KFactor is the maximum rating swing for a single game.
const KFactor = 32

// Outcome is the result of a finished game from one player's perspective.
type Outcome int

const (
	Loss Outcome = iota
	Draw
	Win
)

// DeltaFunc maps (own rating, opponent rating, outcome) to a signed rating
// change. The match session takes one of these so the formula stays pluggable.
type DeltaFunc func(ratingSelf, ratingOpponent int, outcome Outcome) int

// Delta is the standard Elo update: delta = K * (score - expected), where
// expected = 1 / (1 + 10^((opp-self)/400)). It is a pure function of its
// inputs; persistence of the adjusted ratings is the caller's concern.
func Delta(ratingSelf, ratingOpponent int, outcome Outcome) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(ratingOpponent-ratingSelf)/400.0))

	var score float64
	switch outcome {
	case Win:
		score = 1.0
	case Draw:
		score = 0.5
	case Loss:
		score = 0.0
	}

	return int(math.Round(KFactor * (score - expected)))
}
