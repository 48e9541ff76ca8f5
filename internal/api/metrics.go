package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters shared by the routing paths of both peers. Registered on the
// default registry, served at /metrics when the API listener is enabled.
var (
	Frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viscasrt_frames_total",
		Help: "Frames moved over the SRT channel.",
	}, []string{"direction", "kind"})

	Drops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "viscasrt_drops_total",
		Help: "Frames and payloads dropped, by reason.",
	}, []string{"reason"})

	TallyCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "viscasrt_tally_commands_total",
		Help: "VISCA tally commands written to cameras.",
	})

	Connected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "viscasrt_endpoint_connected",
		Help: "Per-endpoint TCP connection state (1 connected).",
	}, []string{"endpoint"})
)
