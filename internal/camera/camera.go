// Package camera owns the server-side TCP endpoints: one connector per
// camera with auto-reconnect, a single-reader poll loop, serialized writes
// and a dedicated worker that performs the command/response exchange.
package camera

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/pkg/frame"
	"github.com/rs/zerolog"
)

const (
	pollInterval = 10 * time.Millisecond
	mtu          = 1500
	queueSize    = 64

	DefaultReconnectInterval = 5 * time.Second
	DefaultCommandTimeout    = 100 * time.Millisecond
)

var (
	ErrNotConnected = errors.New("camera: not connected")
	ErrTimeout      = errors.New("camera: command timeout")
)

// TallyMapping binds an NDI source to this camera and carries the raw VISCA
// byte sequences to emit on each transition.
type TallyMapping struct {
	Source         string
	ProgramEnabled bool
	PreviewEnabled bool
	Program        []byte
	Preview        []byte
	ProgramPreview []byte // optional, falls back to Program
	Off            []byte
}

// command returns the bytes for a state and whether emission is enabled.
func (m *TallyMapping) command(state frame.TallyState) ([]byte, bool) {
	switch state {
	case frame.TallyProgram:
		return m.Program, m.ProgramEnabled
	case frame.TallyPreview:
		return m.Preview, m.PreviewEnabled
	case frame.TallyProgramPreview:
		if m.ProgramPreview != nil {
			return m.ProgramPreview, m.ProgramEnabled
		}
		return m.Program, m.ProgramEnabled
	default:
		return m.Off, true
	}
}

type Config struct {
	ID                byte
	Name              string
	Addr              string
	ReconnectInterval time.Duration
	CommandTimeout    time.Duration
	Mapping           TallyMapping
}

// Request - one frame routed to this camera, with the way back to the
// originating SRT client.
type Request struct {
	Msg   frame.Visca
	Reply func(frame.Visca)
}

// Camera - a single downstream endpoint. The connector goroutine is the
// only reader of the socket; every write goes through writeMu so a tally
// command never interleaves mid-exchange with a controller command.
type Camera struct {
	Config

	log zerolog.Logger

	connected atomic.Bool

	connMu sync.Mutex // guards conn replacement
	conn   net.Conn

	writeMu sync.Mutex // serializes writes and the exchange round-trip

	inbound  chan []byte
	requests chan Request

	tallyMu      sync.Mutex
	currentTally frame.TallyState
	lastTally    time.Time
}

func New(cfg Config, log zerolog.Logger) *Camera {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	return &Camera{
		Config:   cfg,
		log:      log,
		inbound:  make(chan []byte, queueSize),
		requests: make(chan Request, queueSize),
	}
}

func (c *Camera) Connected() bool { return c.connected.Load() }

// CurrentTally returns the last state successfully applied to the camera,
// never a pending value.
func (c *Camera) CurrentTally() (frame.TallyState, time.Time) {
	c.tallyMu.Lock()
	defer c.tallyMu.Unlock()
	return c.currentTally, c.lastTally
}

// TallySource returns the mapped NDI source name, empty when unmapped.
func (c *Camera) TallySource() string { return c.Mapping.Source }

// Enqueue hands a request to the camera worker. The queue is bounded, on
// overflow the oldest request is dropped: VISCA is realtime, stale commands
// are worse than missed ones.
func (c *Camera) Enqueue(req Request) {
	for {
		select {
		case c.requests <- req:
			return
		default:
			select {
			case <-c.requests:
				api.Drops.WithLabelValues("queue_full").Inc()
				c.log.Warn().Uint8("camera", c.ID).Msg("[camera] request queue overflow")
			default:
			}
		}
	}
}

// Write sends raw bytes to the camera socket. Fails immediately when
// disconnected, a write error marks the endpoint disconnected.
func (c *Camera) Write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.write(b)
}

func (c *Camera) write(b []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil || !c.connected.Load() {
		return ErrNotConnected
	}

	if _, err := conn.Write(b); err != nil {
		c.disconnect(conn)
		return err
	}
	return nil
}

// Exchange writes a payload and waits up to timeout for the camera's reply.
// Stale unsolicited bytes are flushed first. The write lock is held for the
// whole round-trip, which is what gives each camera its FIFO guarantee.
func (c *Camera) Exchange(payload []byte, timeout time.Duration) ([]byte, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// flush bytes that arrived outside any exchange
	for {
		select {
		case <-c.inbound:
			api.Drops.WithLabelValues("unsolicited").Inc()
			continue
		default:
		}
		break
	}

	if err := c.write(payload); err != nil {
		return nil, err
	}

	select {
	case reply := <-c.inbound:
		return reply, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}
