// Package server is the camera-site peer: it listens for SRT clients,
// demultiplexes their frames to the camera fleet and runs the tally
// translator.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/koensayr/visca-srt/internal/app"
	"github.com/koensayr/visca-srt/internal/camera"
	"github.com/koensayr/visca-srt/internal/tally"
	"github.com/koensayr/visca-srt/pkg/srt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	cfg Config

	cams       *camera.Registry
	table      *tally.Table
	translator *tally.Translator

	log zerolog.Logger
}

// New loads and validates the server configuration and builds the camera
// table. Config errors are fatal at startup.
func New() (*Server, error) {
	var cfg Config
	app.LoadConfig(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:   cfg,
		cams:  camera.NewRegistry(),
		table: tally.NewTable(),
		log:   app.GetLogger("server"),
	}

	camLog := app.GetLogger("camera")
	for i := range cfg.Cameras {
		cam := camera.New(cfg.Cameras[i].endpoint(), camLog)
		if err := s.cams.Add(cam); err != nil {
			return nil, err
		}
	}

	interval := time.Duration(cfg.NDI.TallyUpdateInterval) * time.Millisecond
	s.translator = tally.NewTranslator(s.table, s.cams, interval, app.GetLogger("tally"))

	return s, nil
}

// Run blocks until ctx is canceled or the listener fails. Camera
// connectors, the tally tick and the accept loop all ride one errgroup;
// closing the listener on cancel unblocks Accept, closing each TCP socket
// unblocks its connector within one poll interval.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.SRTPort)

	ln, err := srt.Listen(addr, s.cfg.Settings)
	if err != nil {
		return err
	}

	s.log.Info().Str("addr", addr).Int("cameras", len(s.cfg.Cameras)).Msg("[server] listen")

	group, ctx := errgroup.WithContext(ctx)

	for _, cam := range s.cams.All() {
		cam := cam
		group.Go(func() error {
			cam.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		return s.translator.Run(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	group.Go(func() error {
		return s.accept(ctx, ln)
	})

	return group.Wait()
}

func (s *Server) accept(ctx context.Context, ln *srt.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == srt.ErrRejected {
				s.log.Warn().Msg("[server] client rejected, max_clients reached")
				continue
			}
			// a failed handshake is not fatal, keep accepting
			s.log.Warn().Err(err).Msg("[server] accept")
			continue
		}

		s.log.Info().Str("client", conn.RemoteAddr()).Msg("[server] client connected")
		go s.serveClient(ctx, conn)
	}
}

// Status feeds the API status endpoint.
func (s *Server) Status() any {
	cams := map[string]any{}
	for _, cam := range s.cams.All() {
		state, updated := cam.CurrentTally()
		cams[cam.Name] = map[string]any{
			"id":        cam.ID,
			"addr":      cam.Addr,
			"connected": cam.Connected(),
			"tally":     state.String(),
			"tally_at":  updated,
		}
	}
	return map[string]any{
		"cameras": cams,
		"tally":   s.table.Snapshot(),
	}
}
