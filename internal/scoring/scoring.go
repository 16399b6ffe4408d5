// Package scoring turns raw answers into correctness verdicts and point
// values. Strategies are pure: no I/O, no clocks, total over their input
// domain (missing and late answers are both valid inputs).
package scoring

import (
	"time"

	"quizlive/internal/domain"
)

// Verdict is the outcome of evaluating one submission against a question.
type Verdict struct {
	Correct bool
	Score   int
}

// Strategy scores one submission against a single correct alternative.
// Missing defines the score for an absent or late answer, and Combine folds
// the scores across several correct alternatives (best-of for classic,
// worst-of for zero-to-one-hundred).
type Strategy interface {
	IsCorrect(q domain.Question, correct, answer domain.Answer) bool
	Score(q domain.Question, correct, answer domain.Answer, elapsed time.Duration) int
	Missing(q domain.Question) int
	Combine(a, b int) int
}

type key struct {
	Mode domain.GameMode
	Type domain.QuestionType
}

// registry is the compile-time strategy table keyed by (mode, type).
var registry = map[key]Strategy{
	{domain.ModeClassic, domain.QuestionMultiChoice}: classicStrategy{matchMultiChoice},
	{domain.ModeClassic, domain.QuestionRange}:       classicStrategy{matchRange},
	{domain.ModeClassic, domain.QuestionTrueFalse}:   classicStrategy{matchTrueFalse},
	{domain.ModeClassic, domain.QuestionTypeAnswer}:  classicStrategy{matchTypedText},
	{domain.ModeClassic, domain.QuestionPin}:         classicStrategy{matchPin},
	{domain.ModeClassic, domain.QuestionPuzzle}:      classicPuzzleStrategy{},

	{domain.ModeZeroToOneHundred, domain.QuestionMultiChoice}: penaltyStrategy{matchMultiChoice},
	{domain.ModeZeroToOneHundred, domain.QuestionRange}:       penaltyRangeStrategy{},
	{domain.ModeZeroToOneHundred, domain.QuestionTrueFalse}:   penaltyStrategy{matchTrueFalse},
	{domain.ModeZeroToOneHundred, domain.QuestionTypeAnswer}:  penaltyStrategy{matchTypedText},
	{domain.ModeZeroToOneHundred, domain.QuestionPin}:         penaltyPinStrategy{},
	{domain.ModeZeroToOneHundred, domain.QuestionPuzzle}:      penaltyPuzzleStrategy{},
}

// Lookup returns the strategy registered for the given mode and type.
func Lookup(mode domain.GameMode, qt domain.QuestionType) (Strategy, bool) {
	s, ok := registry[key{mode, qt}]
	return s, ok
}

// Evaluate scores one (possibly absent) submission against a question's
// frozen correct alternatives. The alternatives are passed explicitly so
// the rebuild path can reuse a result task's own frozen set instead of
// re-deriving it from the question.
func Evaluate(mode domain.GameMode, q domain.Question, correct domain.Answers, sub *domain.SubmittedAnswer, presentedAt time.Time) Verdict {
	st, ok := Lookup(mode, q.Type)
	if !ok || len(correct) == 0 {
		return Verdict{}
	}
	if sub == nil || sub.Answer == nil {
		return Verdict{Correct: false, Score: st.Missing(q)}
	}
	elapsed := sub.SubmittedAt.Sub(presentedAt)
	if answeredLate(q, elapsed) {
		// Late submissions are treated exactly like missing ones.
		return Verdict{Correct: false, Score: st.Missing(q)}
	}
	if elapsed < 0 {
		elapsed = 0
	}

	var verdict Verdict
	for i, alt := range correct {
		score := st.Score(q, alt, sub.Answer, elapsed)
		if i == 0 {
			verdict.Score = score
		} else {
			verdict.Score = st.Combine(verdict.Score, score)
		}
		if st.IsCorrect(q, alt, sub.Answer) {
			verdict.Correct = true
		}
	}
	return verdict
}

func answeredLate(q domain.Question, elapsed time.Duration) bool {
	if q.DurationSeconds <= 0 {
		return false
	}
	return elapsed > time.Duration(q.DurationSeconds)*time.Second
}
