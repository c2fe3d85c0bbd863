package memory

import (
	"context"
	"slices"
	"sync"

	"quiz-game-service/internal/domain"
)

// ScoreStore keeps leaderboards in process memory. Nothing survives a restart.
type ScoreStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.LeaderboardEntry
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{entries: make(map[string][]domain.LeaderboardEntry)}
}

func (s *ScoreStore) LoadLeaderboard(_ context.Context, category string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[domain.LeaderboardKey(category)]), nil
}

func (s *ScoreStore) SaveLeaderboard(_ context.Context, category string, entries []domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[domain.LeaderboardKey(category)] = domain.SortLeaderboard(entries)
	return nil
}
