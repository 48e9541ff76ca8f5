package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/internal/app"
	"github.com/koensayr/visca-srt/internal/client"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := app.Init("visca-srt-client", "/etc/visca_srt/client_config.json"); err != nil {
		log.Fatal().Err(err).Send()
	}

	cl, err := client.New()
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	api.StatusFunc = cl.Status
	api.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = cl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Send()
	}

	log.Info().Msg("shutdown complete")
}
