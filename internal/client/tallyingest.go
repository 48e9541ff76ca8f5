package client

import (
	"context"
	"fmt"
	"net"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/pkg/frame"
)

// runTallyIngest accepts pre-framed tally datagrams over UDP and relays
// them to the server. This is how tally routers and the switcher-side
// scripts inject state without speaking SRT themselves.
func (c *Client) runTallyIngest(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", c.cfg.TallyListen)
	if err != nil {
		return fmt.Errorf("tally listen: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
	defer stop()
	defer pc.Close()

	c.log.Info().Str("addr", c.cfg.TallyListen).Msg("[client] tally ingest")

	buf := make([]byte, 2048)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		msg, err := frame.Decode(buf[:n])
		if err != nil {
			api.Drops.WithLabelValues("framing").Inc()
			c.log.Warn().Err(err).Msg("[client] bad tally datagram")
			continue
		}

		tm, ok := msg.(frame.NdiTally)
		if !ok {
			api.Drops.WithLabelValues("unexpected_kind").Inc()
			continue
		}

		// re-encode rather than relay raw bytes, which normalizes any
		// trailing garbage after the declared name length
		if err := c.send(tm.Encode()); err != nil {
			api.Drops.WithLabelValues("srt_down").Inc()
			c.log.Debug().Err(err).Msg("[client] tally relay")
			continue
		}
		api.Frames.WithLabelValues("out", "tally").Inc()
		c.log.Debug().Str("source", tm.Source).Stringer("state", tm.State).Msg("[client] tally relayed")
	}
}
