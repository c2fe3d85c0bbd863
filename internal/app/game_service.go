package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"quiz-game-service/internal/domain"
)

// SessionRepository abstracts where live engines are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Save(id string, engine *Engine)
	Get(id string) (*Engine, bool)
	Delete(id string)
	IDs() []string
}

// GameService hands out one Engine per connected player and wires it to the
// question bank and the leaderboards.
type GameService struct {
	sessions     SessionRepository
	questions    QuestionBank
	leaderboards *Leaderboards
	opts         []EngineOption
}

func NewGameService(store SessionRepository, questions QuestionBank, leaderboards *Leaderboards, opts ...EngineOption) *GameService {
	return &GameService{
		sessions:     store,
		questions:    questions,
		leaderboards: leaderboards,
		opts:         opts,
	}
}

// Open creates a new engine with one attached client.
func (s *GameService) Open() (string, *Engine) {
	opts := append([]EngineOption{WithRecorder(s.leaderboards)}, s.opts...)
	engine := NewEngine(s.questions, opts...)
	engine.attach()

	id := uuid.NewString()
	s.sessions.Save(id, engine)
	return id, engine
}

// Reattach connects another client to an existing engine.
func (s *GameService) Reattach(id string) (*Engine, error) {
	engine, ok := s.sessions.Get(id)
	if !ok || !engine.attach() {
		return nil, domain.ErrSessionNotFound
	}
	return engine, nil
}

// Detach releases a client. A game left without clients is paused until
// someone reattaches or the sweeper removes it.
func (s *GameService) Detach(id string) {
	if engine, ok := s.sessions.Get(id); ok {
		engine.detach()
	}
}

// Categories lists the playable categories.
func (s *GameService) Categories(ctx context.Context) ([]string, error) {
	return s.questions.Categories(ctx)
}

// Leaderboard returns the archived results of a category.
func (s *GameService) Leaderboard(ctx context.Context, category string) []domain.LeaderboardEntry {
	return s.leaderboards.Load(ctx, category)
}

// SweepIdle closes and forgets detached engines that saw no activity for idle.
func (s *GameService) SweepIdle(idle time.Duration) int {
	removed := 0
	for _, id := range s.sessions.IDs() {
		engine, ok := s.sessions.Get(id)
		if !ok || !engine.closeIfIdle(idle) {
			continue
		}
		s.sessions.Delete(id)
		removed++
	}
	return removed
}
