package app

import (
	"context"
	"log"
	"sync"

	"quiz-game-service/internal/domain"
)

// ScoreStore persists leaderboards per category (memory, Redis, SQLite, Postgres).
// Implementations report outages by wrapping domain.ErrStoreUnavailable.
type ScoreStore interface {
	LoadLeaderboard(ctx context.Context, category string) ([]domain.LeaderboardEntry, error)
	SaveLeaderboard(ctx context.Context, category string, entries []domain.LeaderboardEntry) error
}

// Leaderboards applies the game's persistence policy on top of a ScoreStore:
// read failures yield an empty leaderboard and write failures are only logged.
type Leaderboards struct {
	store ScoreStore
	mu    sync.Mutex
}

func NewLeaderboards(store ScoreStore) *Leaderboards {
	return &Leaderboards{store: store}
}

// Load returns the leaderboard of category, highest score first.
func (l *Leaderboards) Load(ctx context.Context, category string) []domain.LeaderboardEntry {
	entries, err := l.store.LoadLeaderboard(ctx, category)
	if err != nil {
		log.Printf("load leaderboard %q: %v", category, err)
		return []domain.LeaderboardEntry{}
	}
	if entries == nil {
		return []domain.LeaderboardEntry{}
	}
	return entries
}

// Record appends result to its category's leaderboard and persists it.
// The returned leaderboard is what the player sees even if saving failed.
func (l *Leaderboards) Record(ctx context.Context, result domain.GameResult) []domain.LeaderboardEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.Load(ctx, result.Category)
	entries = append(entries, domain.LeaderboardEntry{Name: result.Name, Score: result.Score})
	entries = domain.SortLeaderboard(entries)
	if err := l.store.SaveLeaderboard(ctx, result.Category, entries); err != nil {
		log.Printf("save leaderboard %q: %v", result.Category, err)
	}
	return entries
}
