package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
	"quiz-game-service/internal/domain"
)

//go:embed schema.sql
var schema string

// ScoreStore persists leaderboards as JSON values in a single-file key-value table.
type ScoreStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed. A store that fails to open is
// still returned; every call on it reports domain.ErrStoreUnavailable.
func Open(ctx context.Context, path string) *ScoreStore {
	store := &ScoreStore{now: time.Now}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Printf("sqlite score store unavailable: %v", err)
		return store
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Printf("sqlite score store unavailable: %v", err)
		_ = db.Close()
		return store
	}
	store.db = db
	return store
}

func (s *ScoreStore) LoadLeaderboard(ctx context.Context, category string) ([]domain.LeaderboardEntry, error) {
	if s.db == nil {
		return nil, domain.ErrStoreUnavailable
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, domain.LeaderboardKey(category)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.LeaderboardEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, nil
}

func (s *ScoreStore) SaveLeaderboard(ctx context.Context, category string, entries []domain.LeaderboardEntry) error {
	if s.db == nil {
		return domain.ErrStoreUnavailable
	}
	raw, err := json.Marshal(domain.SortLeaderboard(entries))
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		domain.LeaderboardKey(category), string(raw), s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *ScoreStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
