package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"quiz-game-service/internal/domain"
)

// ScoreStore keeps each leaderboard as a JSON array under leaderboard_<category>.
type ScoreStore struct {
	client    *redis.Client
	available bool
}

// NewScoreStore probes the server once; an unreachable server turns every
// later call into domain.ErrStoreUnavailable without touching the network.
func NewScoreStore(ctx context.Context, client *redis.Client) *ScoreStore {
	store := &ScoreStore{client: client, available: true}
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis score store unavailable: %v", err)
		store.available = false
	}
	return store
}

func (s *ScoreStore) LoadLeaderboard(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	if !s.available {
		return nil, domain.ErrStoreUnavailable
	}
	raw, err := s.client.Get(ctx, domain.LeaderboardKey(category)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []domain.LeaderboardEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return entries, nil
}

func (s *ScoreStore) SaveLeaderboard(ctx context.Context, category string, entries []domain.LeaderboardEntry) error {
	if !s.available {
		return domain.ErrStoreUnavailable
	}
	data, err := json.Marshal(domain.SortLeaderboard(entries))
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := s.client.Set(ctx, domain.LeaderboardKey(category), data, 0).Err(); err != nil {
		return fmt.Errorf("set leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
