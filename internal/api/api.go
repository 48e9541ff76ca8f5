// Package api serves the optional monitoring surface: a status endpoint,
// the in-memory log tail, a websocket event feed and Prometheus metrics.
// The gateway core never depends on it; without an `api: listen` address
// nothing is started.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/koensayr/visca-srt/internal/app"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

var mux = http.NewServeMux()

// StatusFunc is set by the binary to expose its runtime state.
var StatusFunc func() any

func Init() {
	var cfg struct {
		Mod struct {
			Listen string `yaml:"listen"`
		} `yaml:"api"`
	}

	app.LoadConfig(&cfg)

	if cfg.Mod.Listen == "" {
		return
	}

	log = app.GetLogger("api")

	mux.HandleFunc("/api", apiHandler)
	mux.HandleFunc("/api/log", logHandler)
	mux.HandleFunc("/api/ws", wsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	go listen(cfg.Mod.Listen)
}

func listen(address string) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		log.Error().Err(err).Msg("[api] listen")
		return
	}

	log.Info().Str("addr", address).Msg("[api] listen")

	server := http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err = server.Serve(ln); err != nil {
		log.Error().Err(err).Msg("[api] serve")
	}
}

func apiHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"version": app.Version,
		"uptime":  time.Since(app.StartTime).Round(time.Second).String(),
	}
	if StatusFunc != nil {
		info["status"] = StatusFunc()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(info); err != nil {
		log.Warn().Err(err).Msg("[api] status")
	}
}

func logHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = app.MemoryLog.WriteTo(w)
}
