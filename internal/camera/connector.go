package camera

import (
	"context"
	"net"
	"time"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/pkg/frame"
)

// Run drives the connector loop and the request worker until ctx is
// canceled. The connector is the socket's only reader.
func (c *Camera) Run(ctx context.Context) {
	go c.runWorker(ctx)

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
			c.publish(buf[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.log.Warn().Err(err).Str("camera", c.Name).Msg("[camera] read")
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

// dial attempts one connection, sleeping the reconnect interval on failure.
// Returns false when the loop should re-check ctx.
func (c *Camera) dial(ctx context.Context) bool {
	conn, err := net.DialTimeout("tcp", c.Addr, c.ReconnectInterval)
	if err != nil {
		c.log.Debug().Err(err).Str("camera", c.Name).Msg("[camera] connect")
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
	api.Notify("camera", map[string]any{"name": c.Name, "connected": true})
	c.log.Info().Str("camera", c.Name).Str("addr", c.Addr).Msg("[camera] connected")
	return true
}

func (c *Camera) disconnect(conn net.Conn) {
	_ = conn.Close()

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()

	if c.connected.CompareAndSwap(true, false) {
		api.Connected.WithLabelValues(c.Name).Set(0)
		api.Notify("camera", map[string]any{"name": c.Name, "connected": false})
		c.log.Info().Str("camera", c.Name).Msg("[camera] disconnected")
	}
}

// publish queues inbound bytes for the exchange in flight. With no exchange
// pending the queue fills and sheds oldest first, there is no client to
// return unsolicited camera bytes to.
func (c *Camera) publish(b []byte) {
	data := append([]byte(nil), b...)
	for {
		select {
		case c.inbound <- data:
			return
		default:
			select {
			case <-c.inbound:
				api.Drops.WithLabelValues("unsolicited").Inc()
			default:
			}
		}
	}
}

func (c *Camera) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			c.handle(req)
		}
	}
}

func (c *Camera) handle(req Request) {
	switch req.Msg.Type {
	case frame.ViscaCommand, frame.ViscaInquiry:
		reply, err := c.Exchange(req.Msg.Data, c.CommandTimeout)
		if err != nil {
			// a timeout emits no response frame, later requests are unaffected
			c.log.Debug().Err(err).Str("camera", c.Name).Uint16("seq", req.Msg.Sequence).Msg("[camera] exchange")
			api.Drops.WithLabelValues("exchange").Inc()
			return
		}
		if req.Reply != nil {
			req.Reply(frame.Visca{
				Type:     frame.ViscaResponse,
				CameraID: c.ID,
				Sequence: req.Msg.Sequence,
				Data:     reply,
			})
		}

	default:
		// Response and Error frames from proxied multi-hop controllers are
		// forwarded verbatim, nothing comes back
		if err := c.Write(req.Msg.Data); err != nil {
			c.log.Debug().Err(err).Str("camera", c.Name).Msg("[camera] forward")
			api.Drops.WithLabelValues("disconnected").Inc()
		}
	}
}
