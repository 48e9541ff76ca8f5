package client

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/rs/zerolog"
)

const (
	pollInterval = 10 * time.Millisecond
	mtu          = 1500

	defaultReconnectInterval = 5 * time.Second
)

// Controller - the control-site mirror of a camera endpoint: one TCP
// connection to a VISCA controller (operator panel, automation, tally
// router). Inbound bytes are published upstream tagged with the camera id,
// response payloads from the SRT side are written back.
type Controller struct {
	CameraID          byte
	Name              string
	Addr              string
	ReconnectInterval time.Duration
	CommandTimeout    time.Duration

	log zerolog.Logger

	connected atomic.Bool

	connMu sync.Mutex
	conn   net.Conn

	writeMu sync.Mutex

	// onData receives every chunk read from the controller socket
	onData func(*Controller, []byte)
}

func newController(cfg EndpointConfig, log zerolog.Logger, onData func(*Controller, []byte)) *Controller {
	ep := &Controller{
		CameraID:          byte(cfg.CameraID),
		Name:              cfg.Name,
		Addr:              net.JoinHostPort(cfg.IP, itoa(cfg.Port)),
		ReconnectInterval: time.Duration(cfg.ReconnectInterval) * time.Millisecond,
		CommandTimeout:    time.Duration(cfg.CommandTimeout) * time.Millisecond,
		log:               log,
		onData:            onData,
	}
	if ep.ReconnectInterval <= 0 {
		ep.ReconnectInterval = defaultReconnectInterval
	}
	return ep
}

func (c *Controller) Connected() bool { return c.connected.Load() }

// Run drives the connector loop until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	buf := make([]byte, mtu)

	for ctx.Err() == nil {
		if !c.connected.Load() {
			if !c.dial(ctx) {
				continue
			}
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			c.onData(c, data)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.log.Warn().Err(err).Str("endpoint", c.Name).Msg("[client] read")
			c.disconnect(conn)
		}
	}

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
	c.connected.Store(false)
}

func (c *Controller) dial(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", c.Addr, c.ReconnectInterval)
	if err != nil {
		c.log.Debug().Err(err).Str("endpoint", c.Name).Msg("[client] connect")
		select {
		case <-ctx.Done():
		case <-time.After(c.ReconnectInterval):
		}
		return false
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(true)

	api.Connected.WithLabelValues(c.Name).Set(1)
	api.Notify("endpoint", map[string]any{"name": c.Name, "connected": true})
	c.log.Info().Str("endpoint", c.Name).Str("addr", c.Addr).Msg("[client] connected")
	return true
}

func (c *Controller) disconnect(conn net.Conn) {
	_ = conn.Close()

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.connected.CompareAndSwap(true, false) {
		api.Connected.WithLabelValues(c.Name).Set(0)
		api.Notify("endpoint", map[string]any{"name": c.Name, "connected": false})
		c.log.Info().Str("endpoint", c.Name).Msg("[client] disconnected")
	}
}

// Write sends a response payload back to the controller. No queueing: a
// disconnected endpoint fails the write and the message is dropped.
func (c *Controller) Write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil || !c.connected.Load() {
		return errNotConnected
	}

	if _, err := conn.Write(b); err != nil {
		c.disconnect(conn)
		return err
	}
	return nil
}
