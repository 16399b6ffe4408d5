package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizlive/internal/domain"
)

// submitScript appends an answer only while its question is still the open
// one, making the open-check and the push a single atomic step against a
// concurrent drain.
var submitScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("RPUSH", KEYS[2], ARGV[2])
	redis.call("PEXPIRE", KEYS[2], ARGV[3])
	return 1
end
return 0
`)

// drainScript atomically reads the full list and closes the question, so no
// answer is lost or double-counted when a submission races the drain.
var drainScript = redis.NewScript(`
local open = redis.call("GET", KEYS[1])
if open ~= ARGV[1] then
	return {}
end
local items = redis.call("LRANGE", KEYS[2], 0, -1)
redis.call("DEL", KEYS[1], KEYS[2])
return items
`)

// AnswerBuffer is the Redis implementation of game.AnswerBuffer, required
// when the service runs horizontally scaled. Answers live in a list per
// (session, question); an "open" marker key gates submissions.
type AnswerBuffer struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnswerBuffer creates a buffer whose keys expire after ttl as a safety
// net for sessions that never drain (e.g., reaped mid-question).
func NewAnswerBuffer(client *redis.Client, ttl time.Duration) *AnswerBuffer {
	return &AnswerBuffer{client: client, ttl: ttl}
}

func (b *AnswerBuffer) Open(ctx context.Context, sessionID string, questionIndex int) error {
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.openKey(sessionID), questionIndex, b.ttl)
	pipe.Del(ctx, b.listKey(sessionID, questionIndex))
	_, err := pipe.Exec(ctx)
	return err
}

func (b *AnswerBuffer) Submit(ctx context.Context, sessionID string, ans domain.SubmittedAnswer) error {
	payload, err := json.Marshal(ans)
	if err != nil {
		return err
	}
	ok, err := submitScript.Run(ctx, b.client,
		[]string{b.openKey(sessionID), b.listKey(sessionID, ans.QuestionIndex)},
		ans.QuestionIndex, payload, b.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrQuestionClosed
	}
	return nil
}

func (b *AnswerBuffer) Drain(ctx context.Context, sessionID string, questionIndex int) ([]domain.SubmittedAnswer, error) {
	raw, err := drainScript.Run(ctx, b.client,
		[]string{b.openKey(sessionID), b.listKey(sessionID, questionIndex)},
		questionIndex,
	).StringSlice()
	if err != nil {
		return nil, err
	}
	answers := make([]domain.SubmittedAnswer, 0, len(raw))
	for _, item := range raw {
		var ans domain.SubmittedAnswer
		if err := json.Unmarshal([]byte(item), &ans); err != nil {
			return nil, err
		}
		answers = append(answers, ans)
	}
	return answers, nil
}

func (b *AnswerBuffer) openKey(sessionID string) string {
	return "game:answers:open:" + sessionID
}

func (b *AnswerBuffer) listKey(sessionID string, questionIndex int) string {
	return "game:answers:" + sessionID + ":" + strconv.Itoa(questionIndex)
}
