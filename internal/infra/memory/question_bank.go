package memory

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-game-service/internal/domain"
)

// QuestionLoader fetches categories from a backing store (YAML file, Postgres).
type QuestionLoader interface {
	LoadCategory(ctx context.Context, category string) ([]domain.Question, error)
	Categories(ctx context.Context) ([]string, error)
}

// QuestionBank caches categories with TTL to avoid repeated loader hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedCategory
}

type cachedCategory struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCategory),
	}
}

func (b *QuestionBank) Questions(ctx context.Context, category string) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[category]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(category, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[category]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[category] = cachedCategory{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
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

// StaticQuestionLoader is a loader backed by an in-memory bank (YAML file contents, tests).
type StaticQuestionLoader struct {
	bank domain.QuestionBank
}

func NewStaticQuestionLoader(bank domain.QuestionBank) *StaticQuestionLoader {
	return &StaticQuestionLoader{bank: bank}
}

func (l *StaticQuestionLoader) LoadCategory(_ context.Context, category string) ([]domain.Question, error) {
	if questions, ok := l.bank[category]; ok {
		return slices.Clone(questions), nil
	}
	return nil, domain.ErrCategoryNotFound
}

func (l *StaticQuestionLoader) Categories(context.Context) ([]string, error) {
	return l.bank.Categories(), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
