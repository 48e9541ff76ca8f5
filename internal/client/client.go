// Package client is the control-site peer: it multiplexes VISCA bytes from
// the controller endpoints and tally events onto one SRT connection and
// routes responses back by camera id.
package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/internal/app"
	"github.com/koensayr/visca-srt/pkg/frame"
	"github.com/koensayr/visca-srt/pkg/srt"
	"github.com/koensayr/visca-srt/pkg/visca"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const srtReconnectInterval = 5 * time.Second

var errNotConnected = errors.New("client: not connected")

func itoa(v int) string { return strconv.Itoa(v) }

type Client struct {
	cfg Config

	mu        sync.Mutex
	endpoints map[byte]*Controller

	connMu sync.Mutex
	conn   *srt.Conn

	sendMu sync.Mutex

	// shared across all controllers, wraps at 16 bit; correlation only
	// needs uniqueness within the inflight window
	seq atomic.Uint32

	log zerolog.Logger
}

// New loads and validates the client configuration.
func New() (*Client, error) {
	var cfg Config
	app.LoadConfig(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		endpoints: map[byte]*Controller{},
		log:       app.GetLogger("client"),
	}

	for _, epc := range cfg.Endpoints {
		ep := newController(epc, c.log, c.forward)
		c.endpoints[ep.CameraID] = ep
	}

	return c, nil
}

// Run blocks until ctx is canceled. One goroutine per controller endpoint,
// one for the SRT caller/ingress, optionally one for the UDP tally ingest.
func (c *Client) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	c.mu.Lock()
	eps := make([]*Controller, 0, len(c.endpoints))
	for _, ep := range c.endpoints {
		eps = append(eps, ep)
	}
	c.mu.Unlock()

	for _, ep := range eps {
		ep := ep
		group.Go(func() error {
			ep.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		return c.runSRT(ctx)
	})

	if c.cfg.TallyListen != "" {
		group.Go(func() error {
			return c.runTallyIngest(ctx)
		})
	}

	return group.Wait()
}

func (c *Client) nextSeq() uint16 {
	return uint16(c.seq.Add(1))
}

// buildFrame wraps controller bytes in a VISCA frame, consuming one
// sequence number. Inquiries are tagged by their 0x82 prefix, everything
// else travels as a command.
func (c *Client) buildFrame(ep *Controller, data []byte) frame.Visca {
	typ := frame.ViscaCommand
	if len(data) > 0 && data[0] == visca.InquiryPrefix {
		typ = frame.ViscaInquiry
	}

	return frame.Visca{
		Type:     typ,
		CameraID: ep.CameraID,
		Sequence: c.nextSeq(),
		Data:     data,
	}
}

// forward puts controller bytes on the SRT channel.
func (c *Client) forward(ep *Controller, data []byte) {
	m := c.buildFrame(ep, data)

	if err := c.send(m.Encode()); err != nil {
		api.Drops.WithLabelValues("srt_down").Inc()
		c.log.Debug().Err(err).Str("endpoint", ep.Name).Msg("[client] forward")
		return
	}
	api.Frames.WithLabelValues("out", "visca").Inc()
}

func (c *Client) send(b []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return errNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return conn.Send(b)
}

// runSRT dials the server and pumps ingress frames, reconnecting with a
// fixed interval for as long as ctx lives.
func (c *Client) runSRT(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.Server.Host, itoa(c.cfg.Server.Port))

	for ctx.Err() == nil {
		conn, err := srt.Dial(addr, c.cfg.Settings)
		if err != nil {
			c.log.Warn().Err(err).Str("addr", addr).Msg("[client] srt connect")
			select {
			case <-ctx.Done():
			case <-time.After(srtReconnectInterval):
			}
			continue
		}

		c.log.Info().Str("addr", addr).Msg("[client] srt connected")

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		c.ingress(ctx, conn)
		stop()

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		_ = conn.Close()

		if ctx.Err() == nil {
			c.log.Warn().Msg("[client] srt connection lost")
		}
	}
	return ctx.Err()
}

func (c *Client) ingress(ctx context.Context, conn *srt.Conn) {
	buf := make([]byte, 2048)
	for {
		n, err := conn.Recv(buf)
		if err != nil {
			return
		}
		c.handleFrame(buf[:n])
	}
}

// handleFrame routes one ingress frame to its controller endpoint.
func (c *Client) handleFrame(b []byte) {
	msg, err := frame.Decode(b)
	if err != nil {
		api.Drops.WithLabelValues("framing").Inc()
		c.log.Warn().Err(err).Msg("[client] bad frame")
		return
	}

	m, ok := msg.(frame.Visca)
	if !ok {
		// the server never pushes tally frames down, drop anything else
		api.Drops.WithLabelValues("unexpected_kind").Inc()
		return
	}
	api.Frames.WithLabelValues("in", "visca").Inc()

	c.mu.Lock()
	ep := c.endpoints[m.CameraID]
	c.mu.Unlock()

	if ep == nil {
		api.Drops.WithLabelValues("unknown_camera").Inc()
		c.log.Warn().Uint8("camera", m.CameraID).Msg("[client] unknown camera id")
		return
	}

	if err := ep.Write(m.Data); err != nil {
		api.Drops.WithLabelValues("disconnected").Inc()
		c.log.Debug().Err(err).Str("endpoint", ep.Name).Msg("[client] response write")
	}
}

// Status feeds the API status endpoint.
func (c *Client) Status() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	eps := map[string]any{}
	for id, ep := range c.endpoints {
		eps[ep.Name] = map[string]any{
			"camera_id": id,
			"addr":      ep.Addr,
			"connected": ep.Connected(),
		}
	}
	return map[string]any{
		"endpoints": eps,
		"sequence":  uint16(c.seq.Load()),
	}
}
