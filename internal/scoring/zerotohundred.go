package scoring

import (
	"math"
	"time"

	"quizlive/internal/domain"
)

// WorstPenalty is the fixed score charged in zero-to-one-hundred mode for a
// missing or late answer. Lower is better in this mode, so it is also the
// cap for any distance-based penalty.
const WorstPenalty = 100

// penaltyStrategy is the zero-to-one-hundred contract for types without a
// meaningful distance: an exact match costs nothing, anything else costs
// the full penalty. The closest (minimum) alternative is kept.
type penaltyStrategy struct {
	match matchFunc
}

func (s penaltyStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return s.match(q, correct, answer)
}

func (s penaltyStrategy) Score(q domain.Question, correct, answer domain.Answer, _ time.Duration) int {
	if s.match(q, correct, answer) {
		return 0
	}
	return WorstPenalty
}

func (penaltyStrategy) Missing(domain.Question) int { return WorstPenalty }

func (penaltyStrategy) Combine(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// penaltyRangeStrategy charges the absolute distance to the target, capped
// at the worst penalty.
type penaltyRangeStrategy struct{}

func (penaltyRangeStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return matchRange(q, correct, answer)
}

func (penaltyRangeStrategy) Score(q domain.Question, correct, answer domain.Answer, _ time.Duration) int {
	c, ok := correct.(domain.RangeAnswer)
	if !ok {
		return WorstPenalty
	}
	a, ok := answer.(domain.RangeAnswer)
	if !ok {
		return WorstPenalty
	}
	return capPenalty(math.Abs(a.Value - c.Value))
}

func (penaltyRangeStrategy) Missing(domain.Question) int { return WorstPenalty }

func (penaltyRangeStrategy) Combine(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// penaltyPinStrategy charges the euclidean distance to the target point.
type penaltyPinStrategy struct{}

func (penaltyPinStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return matchPin(q, correct, answer)
}

func (penaltyPinStrategy) Score(q domain.Question, correct, answer domain.Answer, _ time.Duration) int {
	c, ok := correct.(domain.PinAnswer)
	if !ok {
		return WorstPenalty
	}
	a, ok := answer.(domain.PinAnswer)
	if !ok {
		return WorstPenalty
	}
	return capPenalty(math.Hypot(a.X-c.X, a.Y-c.Y))
}

func (penaltyPinStrategy) Missing(domain.Question) int { return WorstPenalty }

func (penaltyPinStrategy) Combine(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// penaltyPuzzleStrategy charges the fraction of misplaced positions.
type penaltyPuzzleStrategy struct{}

func (penaltyPuzzleStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return puzzleMatchFraction(correct, answer) > 0
}

func (penaltyPuzzleStrategy) Score(q domain.Question, correct, answer domain.Answer, _ time.Duration) int {
	frac := puzzleMatchFraction(correct, answer)
	return int(math.Round(WorstPenalty * (1 - frac)))
}

func (penaltyPuzzleStrategy) Missing(domain.Question) int { return WorstPenalty }

func (penaltyPuzzleStrategy) Combine(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func capPenalty(distance float64) int {
	p := int(math.Round(distance))
	if p > WorstPenalty {
		return WorstPenalty
	}
	if p < 0 {
		return 0
	}
	return p
}
