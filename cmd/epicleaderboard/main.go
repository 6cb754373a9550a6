package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/epicleaderboard/epicleaderboard-go/internal/config"
	fxmodules "github.com/epicleaderboard/epicleaderboard-go/internal/fx"
	"github.com/epicleaderboard/epicleaderboard-go/internal/logger"
	"github.com/epicleaderboard/epicleaderboard-go/internal/service"
)

func main() {
	flag.Parse()

	var (
		svc  *service.LeaderboardService
		cfg  *config.Config
		base zerolog.Logger
	)
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Populate(&svc, &cfg, &base),
	)
	if err := app.Err(); err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("failed to initialise")
	}
	log := fxmodules.ProvideLogger(base, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	status := newCommander(flag.CommandLine, svc, os.Stdout, log).Execute(ctx)
	stop()
	os.Exit(int(status))
}
