package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/uptrace/bun"
	"quiz-game-service/internal/domain"
)

type leaderboardRow struct {
	bun.BaseModel `bun:"table:leaderboards"`

	Key       string                    `bun:"key,pk"`
	Entries   []domain.LeaderboardEntry `bun:"entries,type:jsonb,notnull"`
	UpdatedAt time.Time                 `bun:"updated_at,notnull"`
}

// ScoreStore keeps one leaderboards row per category key.
type ScoreStore struct {
	db        *bun.DB
	now       func() time.Time
	available bool
}

// NewScoreStore pings the database once and remembers the outcome.
func NewScoreStore(ctx context.Context, db *bun.DB) *ScoreStore {
	store := &ScoreStore{db: db, now: time.Now, available: true}
	if err := db.PingContext(ctx); err != nil {
		log.Printf("postgres score store unavailable: %v", err)
		store.available = false
	}
	return store
}

func (s *ScoreStore) LoadLeaderboard(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	if !s.available {
		return nil, domain.ErrStoreUnavailable
	}
	var row leaderboardRow
	err := s.db.NewSelect().Model(&row).Where("key = ?", domain.LeaderboardKey(category)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.LeaderboardEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return row.Entries, nil
}

func (s *ScoreStore) SaveLeaderboard(ctx context.Context, category string, entries []domain.LeaderboardEntry) error {
	if !s.available {
		return domain.ErrStoreUnavailable
	}
	row := &leaderboardRow{
		Key:       domain.LeaderboardKey(category),
		Entries:   domain.SortLeaderboard(entries),
		UpdatedAt: s.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("entries = EXCLUDED.entries").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
