package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"quiz-game-service/internal/app"
	"quiz-game-service/internal/config"
	"quiz-game-service/internal/domain"
	"quiz-game-service/internal/infra/file"
	"quiz-game-service/internal/infra/memory"
	"quiz-game-service/internal/infra/postgres"
	infraredis "quiz-game-service/internal/infra/redis"
	"quiz-game-service/internal/infra/sqlite"
	transport "quiz-game-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		bunDB, err = openBunDB(cfg)
		if err != nil {
			return err
		}
		defer bunDB.Close()
		if err := migrateDB(ctx, bunDB); err != nil {
			return err
		}
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}
	questionsTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionBank
	if redisClient != nil {
		questions = infraredis.NewQuestionBank(redisClient, loader, questionsTTL)
	} else {
		questions = memory.NewQuestionBank(loader, questionsTTL)
	}

	scores, closeScores, err := scoreStore(ctx, cfg, redisClient, bunDB)
	if err != nil {
		return err
	}
	defer closeScores()

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	clock := clockwork.NewRealClock()
	service := app.NewGameService(sessions, questions, app.NewLeaderboards(scores),
		app.WithClock(clock),
		app.WithRevealDelay(config.TTLDuration(cfg.Game.RevealDelay, app.RevealDelay)),
	)

	sweeper, err := app.StartSweeper(service, clock,
		config.TTLDuration(cfg.Game.SweepInterval, time.Minute),
		config.TTLDuration(cfg.Game.IdleTimeout, 30*time.Minute),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			log.Printf("sweeper shutdown: %v", err)
		}
	}()

	mux := http.NewServeMux()
	transport.NewAPIHandler(service).Register(mux, transport.NewWSHandler(service))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz game on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// questionLoader prefers Postgres, then the YAML file, then the built-in sample bank.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuestionLoader, error) {
	if pool != nil {
		return postgres.NewQuestionLoader(pool), nil
	}
	if cfg.Questions.Path != "" {
		loader, err := file.NewQuestionLoader(cfg.Questions.Path)
		if err == nil {
			return loader, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Printf("question file %s not found, using sample questions", cfg.Questions.Path)
	}
	return memory.NewStaticQuestionLoader(sampleQuestions()), nil
}

func scoreStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, bunDB *bun.DB) (app.ScoreStore, func(), error) {
	backend := cfg.Leaderboard.Backend
	if backend == "" {
		switch {
		case bunDB != nil:
			backend = "postgres"
		case redisClient != nil:
			backend = "redis"
		case cfg.SQLite.Path != "":
			backend = "sqlite"
		default:
			backend = "memory"
		}
	}
	noop := func() {}

	switch backend {
	case "memory":
		return memory.NewScoreStore(), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, fmt.Errorf("leaderboard backend redis needs redis.addr")
		}
		return infraredis.NewScoreStore(ctx, redisClient), noop, nil
	case "postgres":
		if bunDB == nil {
			return nil, noop, fmt.Errorf("leaderboard backend postgres needs postgres.url")
		}
		return postgres.NewScoreStore(ctx, bunDB), noop, nil
	case "sqlite":
		if cfg.SQLite.Path == "" {
			return nil, noop, fmt.Errorf("leaderboard backend sqlite needs sqlite.path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, noop, err
		}
		store := sqlite.Open(ctx, cfg.SQLite.Path)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown leaderboard backend %q", backend)
	}
}

// sampleQuestions is the fallback bank when neither Postgres nor a question file is configured.
func sampleQuestions() domain.QuestionBank {
	return domain.QuestionBank{
		"general": {
			{Type: domain.QuestionMCQ, Content: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Answer: "4", Hint: "An even number."},
			{Type: domain.QuestionFill, Content: "The capital of France is ____.", Answer: "Paris", Hint: "City of light."},
			{Type: domain.QuestionRiddle, Content: "What has hands but cannot clap?", Answer: "clock", Hint: "It tells time."},
		},
	}
}
