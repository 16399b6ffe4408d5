package game

import (
	"time"

	"quizlive/internal/domain"
)

// QuestionView is a question stripped of its correct alternatives, safe to
// push to players while the question is open.
type QuestionView struct {
	Index           int                 `json:"index"`
	Type            domain.QuestionType `json:"type"`
	Prompt          string              `json:"prompt"`
	Options         []string            `json:"options,omitempty"`
	DurationSeconds int                 `json:"durationSeconds"`
	MaxPoints       int                 `json:"maxPoints"`
}

// ParticipantView is the lobby roster projection.
type ParticipantView struct {
	ID       string      `json:"id"`
	Role     domain.Role `json:"role"`
	Nickname string      `json:"nickname"`
}

// TaskView is the authoritative task projected to one participant's role
// and visibility. Fields are populated per phase.
type TaskView struct {
	Phase          domain.TaskType              `json:"phase"`
	Participants   []ParticipantView            `json:"participants,omitempty"`
	Question       *QuestionView                `json:"question,omitempty"`
	PresentedAt    *time.Time                   `json:"presentedAt,omitempty"`
	CorrectAnswers domain.Answers               `json:"correctAnswers,omitempty"`
	Results        []domain.QuestionResultItem  `json:"results,omitempty"`
	Standings      []domain.LeaderboardEntry    `json:"standings,omitempty"`
	EndedAt        *time.Time                   `json:"endedAt,omitempty"`
}

// ProjectTask renders the current task for a subscriber. Hosts see the full
// per-question result set; a player sees the correct answers plus only
// their own result line. Correct answers never leak while a question is
// open.
func ProjectTask(s *domain.GameSession, role domain.Role, participantID string) TaskView {
	view := TaskView{Phase: s.CurrentTask.Phase()}
	switch t := s.CurrentTask.(type) {
	case *domain.LobbyTask:
		for _, p := range s.Participants {
			view.Participants = append(view.Participants, ParticipantView{
				ID:       p.ID,
				Role:     p.Role,
				Nickname: p.Nickname,
			})
		}
	case *domain.QuestionTask:
		q := s.Questions[t.QuestionIndex]
		view.Question = &QuestionView{
			Index:           t.QuestionIndex,
			Type:            q.Type,
			Prompt:          q.Prompt,
			Options:         q.Options,
			DurationSeconds: q.DurationSeconds,
			MaxPoints:       q.MaxPoints,
		}
		presentedAt := t.PresentedAt
		view.PresentedAt = &presentedAt
	case *domain.QuestionResultTask:
		view.CorrectAnswers = t.CorrectAnswers
		if role == domain.RoleHost {
			view.Results = t.Results
		} else {
			for _, item := range t.Results {
				if item.ParticipantID == participantID {
					view.Results = []domain.QuestionResultItem{item}
					break
				}
			}
		}
	case *domain.LeaderboardTask:
		view.Standings = t.Standings
	case *domain.PodiumTask:
		view.Standings = t.Standings
	case *domain.QuitTask:
		endedAt := t.EndedAt
		view.EndedAt = &endedAt
	}
	return view
}
