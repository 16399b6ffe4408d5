package domain

// GameMode selects the scoring contract for a whole session.
type GameMode string

const (
	// ModeClassic awards time-decayed points, higher is better.
	ModeClassic GameMode = "classic"
	// ModeZeroToOneHundred awards distance penalties, lower is better.
	ModeZeroToOneHundred GameMode = "zero_to_one_hundred"
)

// QuestionType discriminates the answer payload a question expects.
type QuestionType string

const (
	QuestionMultiChoice QuestionType = "multi_choice"
	QuestionRange       QuestionType = "range"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionTypeAnswer  QuestionType = "type_answer"
	QuestionPin         QuestionType = "pin"
	QuestionPuzzle      QuestionType = "puzzle"
)

// Question is an immutable question definition snapshotted into a session
// at creation time. Correct holds one or more accepted alternatives (e.g.
// several valid multi-choice options or spellings).
type Question struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type"`
	Prompt          string       `json:"prompt"`
	Options         []string     `json:"options,omitempty"`
	Correct         Answers      `json:"correct"`
	DurationSeconds int          `json:"durationSeconds"`
	MaxPoints       int          `json:"maxPoints"`
	// Tolerance is the accepted numeric band for range questions and the
	// accepted radius for pin questions.
	Tolerance float64 `json:"tolerance,omitempty"`
}

// Quiz is the content snapshot loaded from the quiz store at game creation.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
