package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/internal/app"
	"github.com/koensayr/visca-srt/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := app.Init("visca-srt-server", "/etc/visca_srt/server_config.json"); err != nil {
		log.Fatal().Err(err).Send()
	}

	srv, err := server.New()
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	api.StatusFunc = srv.Status
	api.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Send()
	}

	log.Info().Msg("shutdown complete")
}
