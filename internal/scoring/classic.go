package scoring

import (
	"math"
	"strings"
	"time"

	"quizlive/internal/domain"
)

// decayDivisor controls how steeply classic points decay across the answer
// window: a full-window answer keeps 11/12 of the maximum. With a 5s
// question worth 1000 points an answer at +1s lands on 983.
const decayDivisor = 12.0

// timeDecayScore returns the classic base score for a fully correct answer
// submitted elapsed into the window. It is monotonically non-increasing in
// elapsed, equals MaxPoints at elapsed zero and is zero past the window.
func timeDecayScore(maxPoints int, elapsed time.Duration, durationSeconds int) float64 {
	if durationSeconds <= 0 {
		return float64(maxPoints)
	}
	window := time.Duration(durationSeconds) * time.Second
	if elapsed > window {
		return 0
	}
	frac := float64(elapsed) / float64(window)
	return float64(maxPoints) * (1 - frac/decayDivisor)
}

type matchFunc func(q domain.Question, correct, answer domain.Answer) bool

// classicStrategy awards the time-decayed base score for a matching answer
// and zero otherwise; the best alternative wins.
type classicStrategy struct {
	match matchFunc
}

func (s classicStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return s.match(q, correct, answer)
}

func (s classicStrategy) Score(q domain.Question, correct, answer domain.Answer, elapsed time.Duration) int {
	if !s.match(q, correct, answer) {
		return 0
	}
	return int(math.Round(timeDecayScore(q.MaxPoints, elapsed, q.DurationSeconds)))
}

func (classicStrategy) Missing(domain.Question) int { return 0 }

func (classicStrategy) Combine(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// classicPuzzleStrategy scales the base score by the fraction of positions
// arranged correctly. One matching position is enough to count as correct.
type classicPuzzleStrategy struct{}

func (classicPuzzleStrategy) IsCorrect(q domain.Question, correct, answer domain.Answer) bool {
	return puzzleMatchFraction(correct, answer) > 0
}

func (classicPuzzleStrategy) Score(q domain.Question, correct, answer domain.Answer, elapsed time.Duration) int {
	frac := puzzleMatchFraction(correct, answer)
	if frac == 0 {
		return 0
	}
	base := math.Round(timeDecayScore(q.MaxPoints, elapsed, q.DurationSeconds))
	return int(math.Round(base * frac))
}

func (classicPuzzleStrategy) Missing(domain.Question) int { return 0 }

func (classicPuzzleStrategy) Combine(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// puzzleMatchFraction compares the submitted arrangement position by
// position against the target. Differing lengths match nothing.
func puzzleMatchFraction(correct, answer domain.Answer) float64 {
	target, ok := correct.(domain.PuzzleAnswer)
	if !ok {
		return 0
	}
	got, ok := answer.(domain.PuzzleAnswer)
	if !ok {
		return 0
	}
	if len(target.Order) == 0 || len(got.Order) != len(target.Order) {
		return 0
	}
	matches := 0
	for i := range target.Order {
		if got.Order[i] == target.Order[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(target.Order))
}

func matchMultiChoice(_ domain.Question, correct, answer domain.Answer) bool {
	c, ok := correct.(domain.MultiChoiceAnswer)
	if !ok {
		return false
	}
	a, ok := answer.(domain.MultiChoiceAnswer)
	if !ok {
		return false
	}
	return a.OptionIndex == c.OptionIndex
}

func matchRange(q domain.Question, correct, answer domain.Answer) bool {
	c, ok := correct.(domain.RangeAnswer)
	if !ok {
		return false
	}
	a, ok := answer.(domain.RangeAnswer)
	if !ok {
		return false
	}
	return math.Abs(a.Value-c.Value) <= q.Tolerance
}

func matchTrueFalse(_ domain.Question, correct, answer domain.Answer) bool {
	c, ok := correct.(domain.TrueFalseAnswer)
	if !ok {
		return false
	}
	a, ok := answer.(domain.TrueFalseAnswer)
	if !ok {
		return false
	}
	return a.Value == c.Value
}

func matchTypedText(_ domain.Question, correct, answer domain.Answer) bool {
	c, ok := correct.(domain.TypedAnswer)
	if !ok {
		return false
	}
	a, ok := answer.(domain.TypedAnswer)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(a.Text), strings.TrimSpace(c.Text))
}

func matchPin(q domain.Question, correct, answer domain.Answer) bool {
	c, ok := correct.(domain.PinAnswer)
	if !ok {
		return false
	}
	a, ok := answer.(domain.PinAnswer)
	if !ok {
		return false
	}
	return math.Hypot(a.X-c.X, a.Y-c.Y) <= q.Tolerance
}
