package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-game-service/internal/domain"
)

// QuestionLoader fetches categories from a backing store (YAML file, Postgres).
type QuestionLoader interface {
	LoadCategory(ctx context.Context, category string) ([]domain.Question, error)
	Categories(ctx context.Context) ([]string, error)
}

// QuestionBank caches category contents in Redis and falls back to a loader on miss.
// Questions are stored as: SET quiz:category:{name} <json array>
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, category string) ([]domain.Question, error) {
	if questions, ok := b.cached(ctx, category); ok {
		return questions, nil
	}

	result, err, _ := b.sf.Do(category, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := b.cached(ctx, category); ok {
			return questions, nil
		}

		questions, err := b.loader.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(questions)
		if err == nil {
			err = b.client.Set(ctx, b.categoryKey(category), data, b.ttlWithJitter()).Err()
		}
		if err != nil {
			// best-effort; the loader result is still good
			log.Printf("cache category %q: %v", category, err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) Categories(ctx context.Context) ([]string, error) {
	return b.loader.Categories(ctx)
}

func (b *QuestionBank) cached(ctx context.Context, category string) ([]domain.Question, bool) {
	raw, err := b.client.Get(ctx, b.categoryKey(category)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("read cached category %q: %v", category, err)
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (b *QuestionBank) categoryKey(category string) string {
	return "quiz:category:" + category
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
