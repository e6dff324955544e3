package redis

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"battle-arena/internal/app"
	"battle-arena/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AnswerCache caches correct answers in Redis in front of a question bank.
// Answers are stored as: SET question:{questionID}:answer {choice}
// Everything other than CorrectAnswers goes straight to the wrapped bank.
type AnswerCache struct {
	app.QuestionBank
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAnswerCache(client *redis.Client, bank app.QuestionBank, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		QuestionBank: bank,
		client:       client,
		ttl:          ttl,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AnswerCache) CorrectAnswers(ctx context.Context, questionIDs []string) ([]domain.Choice, error) {
	if answers, ok := c.cached(ctx, questionIDs); ok {
		return answers, nil
	}

	result, err, _ := c.sf.Do(strings.Join(questionIDs, ","), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if answers, ok := c.cached(ctx, questionIDs); ok {
			return answers, nil
		}

		answers, err := c.QuestionBank.CorrectAnswers(ctx, questionIDs)
		if err != nil {
			return nil, err
		}

		pipe := c.client.Pipeline()
		for i, id := range questionIDs {
			if i < len(answers) {
				pipe.Set(ctx, c.key(id), string(answers[i]), c.ttlWithJitter())
			}
		}
		_, _ = pipe.Exec(ctx)
		return answers, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Choice), nil
}

// cached returns answers only when every id is present in Redis.
func (c *AnswerCache) cached(ctx context.Context, questionIDs []string) ([]domain.Choice, bool) {
	if len(questionIDs) == 0 {
		return nil, false
	}
	keys := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, false
	}
	out := make([]domain.Choice, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out[i] = domain.Choice(s)
	}
	return out, true
}

func (c *AnswerCache) key(questionID string) string {
	return "question:" + questionID + ":answer"
}

func (c *AnswerCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
