package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Answer is the closed set of answer payloads, one variant per question
// type. Both player submissions and a question's correct alternatives use
// the same variants.
type Answer interface {
	Kind() QuestionType
}

// MultiChoiceAnswer selects one option by index.
type MultiChoiceAnswer struct {
	OptionIndex int `json:"optionIndex"`
}

func (MultiChoiceAnswer) Kind() QuestionType { return QuestionMultiChoice }

// RangeAnswer is a numeric guess on a sliding scale.
type RangeAnswer struct {
	Value float64 `json:"value"`
}

func (RangeAnswer) Kind() QuestionType { return QuestionRange }

// TrueFalseAnswer is a boolean pick.
type TrueFalseAnswer struct {
	Value bool `json:"value"`
}

func (TrueFalseAnswer) Kind() QuestionType { return QuestionTrueFalse }

// TypedAnswer is free text typed by the player.
type TypedAnswer struct {
	Text string `json:"text"`
}

func (TypedAnswer) Kind() QuestionType { return QuestionTypeAnswer }

// PinAnswer is a 2-D coordinate placed on an image.
type PinAnswer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (PinAnswer) Kind() QuestionType { return QuestionPin }

// PuzzleAnswer is an ordered arrangement of option indexes.
type PuzzleAnswer struct {
	Order []int `json:"order"`
}

func (PuzzleAnswer) Kind() QuestionType { return QuestionPuzzle }

type answerEnvelope struct {
	Kind    QuestionType    `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAnswer encodes an answer variant with its type tag.
func MarshalAnswer(a Answer) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerEnvelope{Kind: a.Kind(), Payload: payload})
}

// UnmarshalAnswer decodes a type-tagged answer envelope.
func UnmarshalAnswer(data []byte) (Answer, error) {
	var env answerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var (
		a   Answer
		err error
	)
	switch env.Kind {
	case QuestionMultiChoice:
		var v MultiChoiceAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	case QuestionRange:
		var v RangeAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	case QuestionTrueFalse:
		var v TrueFalseAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	case QuestionTypeAnswer:
		var v TypedAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	case QuestionPin:
		var v PinAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	case QuestionPuzzle:
		var v PuzzleAnswer
		err = json.Unmarshal(env.Payload, &v)
		a = v
	default:
		return nil, fmt.Errorf("unknown answer kind %q", env.Kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Answers is a JSON-round-trippable list of answer variants.
type Answers []Answer

func (as Answers) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(as))
	for _, a := range as {
		data, err := MarshalAnswer(a)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

func (as *Answers) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Answers, 0, len(raw))
	for _, r := range raw {
		a, err := UnmarshalAnswer(r)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*as = out
	return nil
}

// SubmittedAnswer is one player's answer to the question open at
// QuestionIndex, stamped with the server-side receive time.
type SubmittedAnswer struct {
	ParticipantID string
	QuestionIndex int
	Answer        Answer
	SubmittedAt   time.Time
}

type submittedAnswerJSON struct {
	ParticipantID string          `json:"participantId"`
	QuestionIndex int             `json:"questionIndex"`
	Answer        json.RawMessage `json:"answer"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

func (s SubmittedAnswer) MarshalJSON() ([]byte, error) {
	answer, err := MarshalAnswer(s.Answer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(submittedAnswerJSON{
		ParticipantID: s.ParticipantID,
		QuestionIndex: s.QuestionIndex,
		Answer:        answer,
		SubmittedAt:   s.SubmittedAt,
	})
}

func (s *SubmittedAnswer) UnmarshalJSON(data []byte) error {
	var raw submittedAnswerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	answer, err := UnmarshalAnswer(raw.Answer)
	if err != nil {
		return err
	}
	s.ParticipantID = raw.ParticipantID
	s.QuestionIndex = raw.QuestionIndex
	s.Answer = answer
	s.SubmittedAt = raw.SubmittedAt
	return nil
}
