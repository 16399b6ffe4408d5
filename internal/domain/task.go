package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskType names the phase a task variant represents.
type TaskType string

const (
	TaskLobby          TaskType = "lobby"
	TaskQuestion       TaskType = "question"
	TaskQuestionResult TaskType = "question_result"
	TaskLeaderboard    TaskType = "leaderboard"
	TaskPodium         TaskType = "podium"
	TaskQuit           TaskType = "quit"
)

// Task is the closed set of session phases. A task is immutable once it has
// been superseded: the engine only ever constructs a new value and appends
// the old one to the session's history.
type Task interface {
	Phase() TaskType
}

// LobbyTask is the initial waiting-room phase.
type LobbyTask struct {
	OpenedAt time.Time `json:"openedAt"`
}

func (LobbyTask) Phase() TaskType { return TaskLobby }

// QuestionTask is an open question accepting answers. Answers stays empty
// while the question is live (submissions accumulate in the ingestion
// buffer) and is frozen with the drained buffer contents when the question
// closes.
type QuestionTask struct {
	QuestionIndex int               `json:"questionIndex"`
	PresentedAt   time.Time         `json:"presentedAt"`
	Answers       []SubmittedAnswer `json:"answers,omitempty"`
}

func (QuestionTask) Phase() TaskType { return TaskQuestion }

// QuestionResultTask carries the frozen correct alternatives and the scored
// per-player outcome of the question that just closed.
type QuestionResultTask struct {
	QuestionIndex  int                  `json:"questionIndex"`
	CorrectAnswers Answers              `json:"correctAnswers"`
	Results        []QuestionResultItem `json:"results"`
	ClosedAt       time.Time            `json:"closedAt"`
}

func (QuestionResultTask) Phase() TaskType { return TaskQuestionResult }

// LeaderboardTask is a standings snapshot between questions.
type LeaderboardTask struct {
	Standings []LeaderboardEntry `json:"standings"`
	ShownAt   time.Time          `json:"shownAt"`
}

func (LeaderboardTask) Phase() TaskType { return TaskLeaderboard }

// PodiumTask is the final standings shown after the last question.
type PodiumTask struct {
	Standings []LeaderboardEntry `json:"standings"`
	ShownAt   time.Time          `json:"shownAt"`
}

func (PodiumTask) Phase() TaskType { return TaskPodium }

// QuitTask is the terminal phase. Forced marks quits synthesized by the
// idle reaper rather than a host-driven finish.
type QuitTask struct {
	EndedAt time.Time `json:"endedAt"`
	Forced  bool      `json:"forced,omitempty"`
}

func (QuitTask) Phase() TaskType { return TaskQuit }

// QuestionResultItem is the derived per-player outcome of one closed
// question. It is a pure function of the drained answers, the frozen
// correct alternatives and the player's pre-question totals, which is what
// makes the rebuild recovery path deterministic.
type QuestionResultItem struct {
	ParticipantID string           `json:"participantId"`
	Nickname      string           `json:"nickname"`
	Answer        *SubmittedAnswer `json:"answer,omitempty"`
	Correct       bool             `json:"correct"`
	LastScore     int              `json:"lastScore"`
	TotalScore    int              `json:"totalScore"`
	Position      int              `json:"position"`
	Streak        int              `json:"streak"`
}

// LeaderboardEntry is one row of a standings snapshot.
type LeaderboardEntry struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	Streak        int    `json:"streak"`
	Position      int    `json:"position"`
}

type taskEnvelope struct {
	Phase TaskType        `json:"phase"`
	Task  json.RawMessage `json:"task"`
}

// MarshalTask encodes a task variant with its phase tag.
func MarshalTask(t Task) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(taskEnvelope{Phase: t.Phase(), Task: payload})
}

// UnmarshalTask decodes a phase-tagged task envelope.
func UnmarshalTask(data []byte) (Task, error) {
	var env taskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var (
		t   Task
		err error
	)
	switch env.Phase {
	case TaskLobby:
		var v LobbyTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	case TaskQuestion:
		var v QuestionTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	case TaskQuestionResult:
		var v QuestionResultTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	case TaskLeaderboard:
		var v LeaderboardTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	case TaskPodium:
		var v PodiumTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	case TaskQuit:
		var v QuitTask
		err = json.Unmarshal(env.Task, &v)
		t = &v
	default:
		return nil, fmt.Errorf("unknown task phase %q", env.Phase)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
