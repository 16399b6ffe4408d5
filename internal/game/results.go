package game

import (
	"sort"
	"time"

	"quizlive/internal/domain"
	"quizlive/internal/scoring"
)

// playerState is a player's standing before the question being scored.
// Result building is a pure function over these snapshots plus the frozen
// answers, which is what makes the rebuild path reproducible.
type playerState struct {
	ID          string
	Nickname    string
	PriorTotal  int
	PriorStreak int
}

// buildQuestionResultTask scores one closed question. answers is the
// drained ingestion buffer in submission order; when a player submitted
// more than once the last write before the drain wins. roster order is the
// players' join order and doubles as the final tie-break.
func buildQuestionResultTask(
	mode domain.GameMode,
	q domain.Question,
	questionIndex int,
	correct domain.Answers,
	presentedAt time.Time,
	answers []domain.SubmittedAnswer,
	roster []playerState,
	closedAt time.Time,
) *domain.QuestionResultTask {
	latest := make(map[string]*domain.SubmittedAnswer, len(answers))
	for i := range answers {
		if answers[i].QuestionIndex != questionIndex {
			continue
		}
		latest[answers[i].ParticipantID] = &answers[i]
	}

	items := make([]domain.QuestionResultItem, 0, len(roster))
	for _, p := range roster {
		sub := latest[p.ID]
		verdict := scoring.Evaluate(mode, q, correct, sub, presentedAt)
		streak := 0
		if verdict.Correct {
			streak = p.PriorStreak + 1
		}
		items = append(items, domain.QuestionResultItem{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Answer:        sub,
			Correct:       verdict.Correct,
			LastScore:     verdict.Score,
			TotalScore:    p.PriorTotal + verdict.Score,
			Streak:        streak,
		})
	}

	rankItems(mode, items)

	return &domain.QuestionResultTask{
		QuestionIndex:  questionIndex,
		CorrectAnswers: correct,
		Results:        items,
		ClosedAt:       closedAt,
	}
}

// rankItems orders results best-first and assigns 1-based positions.
// Ties break toward the earliest submission; unanswered players rank after
// answered ones at the same score, and remaining ties keep join order.
func rankItems(mode domain.GameMode, items []domain.QuestionResultItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.LastScore != b.LastScore {
			if mode == domain.ModeZeroToOneHundred {
				return a.LastScore < b.LastScore
			}
			return a.LastScore > b.LastScore
		}
		switch {
		case a.Answer != nil && b.Answer != nil:
			return a.Answer.SubmittedAt.Before(b.Answer.SubmittedAt)
		case a.Answer != nil:
			return true
		default:
			return false
		}
	})
	for i := range items {
		items[i].Position = i + 1
	}
}

// standings snapshots the current scoreboard across all players.
func standings(s *domain.GameSession) []domain.LeaderboardEntry {
	players := s.Players()
	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Nickname:      p.Nickname,
			Score:         p.TotalScore,
			Streak:        p.CurrentStreak,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			if s.Mode == domain.ModeZeroToOneHundred {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		if a.Nickname != b.Nickname {
			return a.Nickname < b.Nickname
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries
}
