package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"hrportal/internal/app/server"
	"hrportal/internal/platform/config"
	"hrportal/internal/platform/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.Environment)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		app.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}
