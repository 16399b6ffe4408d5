package domain

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of a game session. Completed and
// Expired are terminal.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusExpired   SessionStatus = "expired"
)

// Role distinguishes the host driving the game from answering players.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Participant is a host or player attached to a session. Score fields are
// only meaningful for players.
type Participant struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Nickname      string    `json:"nickname"`
	TotalScore    int       `json:"totalScore"`
	CurrentStreak int       `json:"currentStreak"`
	JoinedAt      time.Time `json:"joinedAt"`
	LastActiveAt  time.Time `json:"lastActiveAt"`
}

// GameSession is the root aggregate for one live game. Questions is an
// immutable snapshot taken at creation; quiz edits after game start never
// affect a running session. CurrentTask and TaskHistory are only mutated
// inside a lock-held transition.
type GameSession struct {
	ID                string
	JoinCode          string
	QuizID            string
	HostID            string
	Mode              GameMode
	Status            SessionStatus
	Questions         []Question
	NextQuestionIndex int
	CurrentTask       Task
	TaskHistory       []Task
	Participants      []*Participant
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Participant returns the participant with the given id, if present.
func (s *GameSession) Participant(id string) (*Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Players returns the player participants in join order.
func (s *GameSession) Players() []*Participant {
	players := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.Role == RolePlayer {
			players = append(players, p)
		}
	}
	return players
}

// QuestionsRemaining reports how many questions have not been presented yet.
func (s *GameSession) QuestionsRemaining() int {
	return len(s.Questions) - s.NextQuestionIndex
}

// PushTask appends the current task to the history and installs next as the
// live task. The superseded task value is never modified afterwards.
func (s *GameSession) PushTask(next Task, now time.Time) {
	if s.CurrentTask != nil {
		s.TaskHistory = append(s.TaskHistory, s.CurrentTask)
	}
	s.CurrentTask = next
	s.UpdatedAt = now
}

// RemapParticipant rewrites every occurrence of oldID to newID: the
// participant record itself, the host reference, buffered answers frozen in
// task history and per-question result items. This is a maintenance
// operation (binding an anonymous join to an authenticated identity) and is
// expected to run under the session lock, not during normal gameplay.
func (s *GameSession) RemapParticipant(oldID, newID string) error {
	p, ok := s.Participant(oldID)
	if !ok {
		return ErrParticipantNotFound
	}
	p.ID = newID
	if s.HostID == oldID {
		s.HostID = newID
	}
	remapTask(s.CurrentTask, oldID, newID)
	for _, t := range s.TaskHistory {
		remapTask(t, oldID, newID)
	}
	return nil
}

func remapTask(t Task, oldID, newID string) {
	switch v := t.(type) {
	case *QuestionTask:
		for i := range v.Answers {
			if v.Answers[i].ParticipantID == oldID {
				v.Answers[i].ParticipantID = newID
			}
		}
	case *QuestionResultTask:
		for i := range v.Results {
			if v.Results[i].ParticipantID == oldID {
				v.Results[i].ParticipantID = newID
			}
			if a := v.Results[i].Answer; a != nil && a.ParticipantID == oldID {
				a.ParticipantID = newID
			}
		}
	}
}

type sessionJSON struct {
	ID                string            `json:"id"`
	JoinCode          string            `json:"joinCode"`
	QuizID            string            `json:"quizId"`
	HostID            string            `json:"hostId"`
	Mode              GameMode          `json:"mode"`
	Status            SessionStatus     `json:"status"`
	Questions         []Question        `json:"questions"`
	NextQuestionIndex int               `json:"nextQuestionIndex"`
	CurrentTask       json.RawMessage   `json:"currentTask"`
	TaskHistory       []json.RawMessage `json:"taskHistory"`
	Participants      []*Participant    `json:"participants"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

func (s GameSession) MarshalJSON() ([]byte, error) {
	out := sessionJSON{
		ID:                s.ID,
		JoinCode:          s.JoinCode,
		QuizID:            s.QuizID,
		HostID:            s.HostID,
		Mode:              s.Mode,
		Status:            s.Status,
		Questions:         s.Questions,
		NextQuestionIndex: s.NextQuestionIndex,
		Participants:      s.Participants,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.CurrentTask != nil {
		raw, err := MarshalTask(s.CurrentTask)
		if err != nil {
			return nil, err
		}
		out.CurrentTask = raw
	}
	for _, t := range s.TaskHistory {
		raw, err := MarshalTask(t)
		if err != nil {
			return nil, err
		}
		out.TaskHistory = append(out.TaskHistory, raw)
	}
	return json.Marshal(out)
}

func (s *GameSession) UnmarshalJSON(data []byte) error {
	var raw sessionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = raw.ID
	s.JoinCode = raw.JoinCode
	s.QuizID = raw.QuizID
	s.HostID = raw.HostID
	s.Mode = raw.Mode
	s.Status = raw.Status
	s.Questions = raw.Questions
	s.NextQuestionIndex = raw.NextQuestionIndex
	s.Participants = raw.Participants
	s.CreatedAt = raw.CreatedAt
	s.UpdatedAt = raw.UpdatedAt
	s.CurrentTask = nil
	s.TaskHistory = nil
	if len(raw.CurrentTask) > 0 {
		t, err := UnmarshalTask(raw.CurrentTask)
		if err != nil {
			return err
		}
		s.CurrentTask = t
	}
	for _, r := range raw.TaskHistory {
		t, err := UnmarshalTask(r)
		if err != nil {
			return err
		}
		s.TaskHistory = append(s.TaskHistory, t)
	}
	return nil
}
