package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"quiz-game-service/internal/domain"
)

type categoryRow struct {
	bun.BaseModel `bun:"table:question_categories"`

	Name      string            `bun:"name,pk"`
	Questions []domain.Question `bun:"data,type:jsonb,notnull"`
}

// SeedCategories upserts every category of bank, replacing existing questions.
func SeedCategories(ctx context.Context, db *bun.DB, bank domain.QuestionBank) error {
	if err := bank.Validate(); err != nil {
		return fmt.Errorf("validate question bank: %w", err)
	}
	rows := make([]categoryRow, 0, len(bank))
	for _, name := range bank.Categories() {
		rows = append(rows, categoryRow{Name: name, Questions: bank[name]})
	}
	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (name) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}
