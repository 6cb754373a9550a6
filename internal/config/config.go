package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/epicleaderboard/epicleaderboard-go/internal/constants"
)

var ErrGameIDRequired = errors.New("EPICLEADERBOARD_GAME_ID is required")

type Config struct {
	BaseURL         string
	GameID          string
	GameKey         string
	LogLevel        string
	RequestTimeout  time.Duration
	MaxConnsPerHost int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		BaseURL:  getEnv("EPICLEADERBOARD_BASE_URL", constants.DefaultBaseURL),
		GameID:   getEnv("EPICLEADERBOARD_GAME_ID", ""),
		GameKey:  getEnv("EPICLEADERBOARD_GAME_KEY", ""),
		LogLevel: getEnv("LOG_LEVEL", constants.DefaultLogLevel),
	}

	timeout, err := getDuration("REQUEST_TIMEOUT", constants.DefaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	cfg.RequestTimeout = timeout

	maxConns, err := getInt("MAX_CONNS_PER_HOST", constants.DefaultMaxConnsPerHost)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnsPerHost = maxConns

	if cfg.GameID == "" {
		return nil, ErrGameIDRequired
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Str("game_id", cfg.GameID).
		Bool("has_game_key", cfg.GameKey != "").
		Str("log_level", cfg.LogLevel).
		Dur("request_timeout", cfg.RequestTimeout).
		Int("max_conns_per_host", cfg.MaxConnsPerHost).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

var Module = fx.Provide(Load)
