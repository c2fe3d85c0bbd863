package cli

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"quiz-game-service/internal/config"
	"quiz-game-service/internal/infra/file"
	"quiz-game-service/internal/infra/postgres"
)

// NewSeedCmd loads the YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var questionsPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the question bank file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, questionsPath)
		},
	}
	cmd.Flags().StringVar(&questionsPath, "questions", "", "question bank YAML (defaults to questions.path)")
	return cmd
}

func runSeed(ctx context.Context, configPath, questionsPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if questionsPath == "" {
		questionsPath = cfg.Questions.Path
	}
	bank, err := file.LoadQuestionBank(questionsPath)
	if err != nil {
		return err
	}

	db, err := openBunDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrateDB(ctx, db); err != nil {
		return err
	}
	if err := postgres.SeedCategories(ctx, db, bank); err != nil {
		return err
	}
	log.Printf("seeded %d categories from %s", len(bank), questionsPath)
	return nil
}
