package camera

import (
	"time"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/pkg/frame"
)

// ApplyTally moves the camera to a new tally state. The mapped command is
// written to the socket and the cached state advances only after the write
// succeeds. A disabled or unconfigured state suppresses the write but still
// advances the cache, so the translator does not re-send it every tick.
func (c *Camera) ApplyTally(state frame.TallyState) error {
	cmd, enabled := c.Mapping.command(state)

	if enabled && len(cmd) > 0 {
		if err := c.Write(cmd); err != nil {
			return err
		}
		api.TallyCommands.Inc()
	}

	c.tallyMu.Lock()
	c.currentTally = state
	c.lastTally = time.Now()
	c.tallyMu.Unlock()

	api.Notify("tally", map[string]any{"camera": c.Name, "state": state.String()})
	c.log.Debug().Str("camera", c.Name).Stringer("state", state).Msg("[camera] tally")
	return nil
}
