package fx

import (
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"

	epicleaderboard "github.com/epicleaderboard/epicleaderboard-go"
	"github.com/epicleaderboard/epicleaderboard-go/internal/config"
	"github.com/epicleaderboard/epicleaderboard-go/internal/constants"
	"github.com/epicleaderboard/epicleaderboard-go/internal/logger"
	"github.com/epicleaderboard/epicleaderboard-go/internal/service"
)

// ProvideLogger applies the configured level to the base logger.
func ProvideLogger(base zerolog.Logger, cfg *config.Config) zerolog.Logger {
	return base.Level(logger.ParseLevel(cfg.LogLevel))
}

func ProvideClient(cfg *config.Config, base zerolog.Logger) *epicleaderboard.Client {
	log := ProvideLogger(base, cfg)
	return epicleaderboard.NewClient(
		epicleaderboard.WithBaseURL(cfg.BaseURL),
		epicleaderboard.WithLogger(log.With().Str("component", "client").Logger()),
		epicleaderboard.WithDoer(&fasthttp.Client{
			Name:                constants.DefaultUserAgent,
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			MaxIdleConnDuration: constants.MaxIdleConnDuration,
		}),
	)
}

func ProvideService(client *epicleaderboard.Client, cfg *config.Config, base zerolog.Logger) *service.LeaderboardService {
	log := ProvideLogger(base, cfg)
	return service.NewLeaderboardService(client, cfg, log.With().Str("component", "service").Logger())
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	// api client
	fx.Provide(ProvideClient),
	// svc
	fx.Provide(ProvideService),
)
