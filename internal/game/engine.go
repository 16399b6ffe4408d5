package game

import (
	"fmt"
	"time"

	"quizlive/internal/domain"
)

// Engine applies phase transitions to a session. It is purely computational:
// locking, persistence and broadcasting are the service's job. Every method
// either commits exactly one transition or returns an error leaving the
// session untouched.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Advance applies the single legal transition for the session's current
// phase. drained must hold the ingestion buffer contents when (and only
// when) the current phase is Question; it is ignored otherwise.
//
//	Lobby → Question → QuestionResult → Leaderboard → Question … (loop)
//	QuestionResult → Podium (no questions left) → Quit
func (e *Engine) Advance(s *domain.GameSession, drained []domain.SubmittedAnswer, now time.Time) error {
	if s.Status != domain.StatusActive {
		return domain.ErrSessionFinished
	}
	switch t := s.CurrentTask.(type) {
	case *domain.LobbyTask:
		return e.startQuestion(s, now)
	case *domain.QuestionTask:
		return e.closeQuestion(s, t, drained, now)
	case *domain.QuestionResultTask:
		if s.QuestionsRemaining() > 0 {
			s.PushTask(&domain.LeaderboardTask{Standings: standings(s), ShownAt: now}, now)
		} else {
			s.PushTask(&domain.PodiumTask{Standings: standings(s), ShownAt: now}, now)
		}
		return nil
	case *domain.LeaderboardTask:
		return e.startQuestion(s, now)
	case *domain.PodiumTask:
		s.PushTask(&domain.QuitTask{EndedAt: now}, now)
		s.Status = domain.StatusCompleted
		return nil
	default:
		return domain.ErrPhaseMismatch
	}
}

func (e *Engine) startQuestion(s *domain.GameSession, now time.Time) error {
	if s.QuestionsRemaining() <= 0 {
		return domain.ErrPhaseMismatch
	}
	index := s.NextQuestionIndex
	s.NextQuestionIndex++
	s.PushTask(&domain.QuestionTask{QuestionIndex: index, PresentedAt: now}, now)
	return nil
}

func (e *Engine) closeQuestion(s *domain.GameSession, t *domain.QuestionTask, drained []domain.SubmittedAnswer, now time.Time) error {
	if t.QuestionIndex < 0 || t.QuestionIndex >= len(s.Questions) {
		return fmt.Errorf("question index %d out of range", t.QuestionIndex)
	}
	q := s.Questions[t.QuestionIndex]

	// Freeze the drained buffer into the question task before it is
	// superseded; the rebuild path reads it back from history.
	t.Answers = drained

	result := buildQuestionResultTask(
		s.Mode, q, t.QuestionIndex, q.Correct, t.PresentedAt, drained, rosterOf(s), now,
	)
	applyResults(s, result.Results)
	s.PushTask(result, now)
	return nil
}

// Rebuild recomputes the current QuestionResult task's results from the
// preceding Question task's frozen answers and the result task's own frozen
// correct alternatives. It never re-derives the correct set and produces
// output identical to the original computation, so it is safe to retry
// after a partial failure without risking a different scoring outcome.
func (e *Engine) Rebuild(s *domain.GameSession) error {
	cur, ok := s.CurrentTask.(*domain.QuestionResultTask)
	if !ok {
		return domain.ErrPhaseMismatch
	}
	if len(s.TaskHistory) == 0 {
		return domain.ErrPhaseMismatch
	}
	prev, ok := s.TaskHistory[len(s.TaskHistory)-1].(*domain.QuestionTask)
	if !ok || prev.QuestionIndex != cur.QuestionIndex {
		return domain.ErrPhaseMismatch
	}
	q := s.Questions[cur.QuestionIndex]

	prior := make(map[string]domain.QuestionResultItem, len(cur.Results))
	for _, item := range cur.Results {
		prior[item.ParticipantID] = item
	}
	roster := make([]playerState, 0, len(cur.Results))
	for _, p := range s.Players() {
		item, ok := prior[p.ID]
		if !ok {
			// Joined after the question closed; not part of the original
			// result set.
			continue
		}
		priorStreak := 0
		if item.Correct {
			priorStreak = item.Streak - 1
		}
		roster = append(roster, playerState{
			ID:          p.ID,
			Nickname:    item.Nickname,
			PriorTotal:  item.TotalScore - item.LastScore,
			PriorStreak: priorStreak,
		})
	}

	rebuilt := buildQuestionResultTask(
		s.Mode, q, cur.QuestionIndex, cur.CorrectAnswers, prev.PresentedAt, prev.Answers, roster, cur.ClosedAt,
	)
	s.CurrentTask = rebuilt
	return nil
}

// ForceEnd terminates an idle session on behalf of the reaper: a session
// stuck on the podium is completed, any other phase is expired.
func (e *Engine) ForceEnd(s *domain.GameSession, now time.Time) error {
	if s.Status != domain.StatusActive {
		return domain.ErrSessionFinished
	}
	if _, ok := s.CurrentTask.(*domain.QuitTask); ok {
		return domain.ErrPhaseMismatch
	}
	if _, ok := s.CurrentTask.(*domain.PodiumTask); ok {
		s.Status = domain.StatusCompleted
	} else {
		s.Status = domain.StatusExpired
	}
	s.PushTask(&domain.QuitTask{EndedAt: now, Forced: true}, now)
	return nil
}

func rosterOf(s *domain.GameSession) []playerState {
	players := s.Players()
	roster := make([]playerState, 0, len(players))
	for _, p := range players {
		roster = append(roster, playerState{
			ID:          p.ID,
			Nickname:    p.Nickname,
			PriorTotal:  p.TotalScore,
			PriorStreak: p.CurrentStreak,
		})
	}
	return roster
}

func applyResults(s *domain.GameSession, items []domain.QuestionResultItem) {
	for _, item := range items {
		p, ok := s.Participant(item.ParticipantID)
		if !ok {
			continue
		}
		p.TotalScore = item.TotalScore
		p.CurrentStreak = item.Streak
	}
}
