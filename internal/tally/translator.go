package tally

import (
	"context"
	"time"

	"github.com/koensayr/visca-srt/internal/camera"
	"github.com/rs/zerolog"
)

const DefaultInterval = 100 * time.Millisecond

// Translator polls the table every interval and pushes state transitions to
// the mapped cameras. Polling rather than per-frame sends: tally sources
// flap during switcher transitions, the tick debounces them and caps the
// command rate per camera at one per interval.
type Translator struct {
	table    *Table
	cams     *camera.Registry
	interval time.Duration
	log      zerolog.Logger
}

func NewTranslator(table *Table, cams *camera.Registry, interval time.Duration, log zerolog.Logger) *Translator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Translator{table: table, cams: cams, interval: interval, log: log}
}

// Run ticks until ctx is canceled. Join this task on shutdown.
func (t *Translator) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick reconciles every mapped camera once. Lock order: camera table, then
// tally table, both released before the socket write.
func (t *Translator) Tick() {
	for _, cam := range t.cams.All() {
		source := cam.TallySource()
		if source == "" {
			continue
		}

		state, ok := t.table.Get(source)
		if !ok {
			continue
		}

		current, _ := cam.CurrentTally()
		if state == current {
			continue
		}

		if err := cam.ApplyTally(state); err != nil {
			t.log.Debug().Err(err).Str("camera", cam.Name).Msg("[tally] apply")
		}
	}
}
