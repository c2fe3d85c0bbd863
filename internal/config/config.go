package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
		Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path" env:"QUIZ_SQLITE_PATH"`
	} `yaml:"sqlite"`
	Questions struct {
		Path string `yaml:"path" env:"QUIZ_QUESTIONS_PATH"`
		TTL  string `yaml:"ttl" env:"QUIZ_QUESTIONS_TTL"`
	} `yaml:"questions"`
	Game struct {
		RevealDelay   string `yaml:"revealDelay" env:"QUIZ_GAME_REVEAL_DELAY"`
		IdleTimeout   string `yaml:"idleTimeout" env:"QUIZ_GAME_IDLE_TIMEOUT"`
		SweepInterval string `yaml:"sweepInterval" env:"QUIZ_GAME_SWEEP_INTERVAL"`
	} `yaml:"game"`
	Leaderboard struct {
		// Backend is one of memory, redis, sqlite, postgres. Empty picks the first
		// configured of postgres, redis, sqlite and falls back to memory.
		Backend string `yaml:"backend" env:"QUIZ_LEADERBOARD_BACKEND"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path, then applies QUIZ_* environment overrides.
// A missing file is not an error; the environment alone can configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
