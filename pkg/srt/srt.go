// Package srt wraps a single SRT connection or listener from
// github.com/datarhei/gosrt behind the small surface the gateway needs:
// caller and listener roles, blocking send/recv of whole datagrams, option
// mapping and close-exactly-once semantics.
//
// A Conn must have at most one reader task and one writer task. The
// underlying gosrt connection documents concurrent Read/Write as safe, so a
// single Conn may be split between an ingress and an egress goroutine, but
// never shared wider than that.
package srt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gosrt "github.com/datarhei/gosrt"
)

// Options - recognized SRT tuning knobs, all optional.
type Options struct {
	Latency    int    `yaml:"latency"`     // receiver buffer latency, ms
	MaxBW      int64  `yaml:"max_bw"`      // bandwidth cap, bytes/s
	MaxClients int    `yaml:"max_clients"` // listener only
	StreamID   string `yaml:"stream_id"`
	Passphrase string `yaml:"passphrase"`
}

func (o Options) config() gosrt.Config {
	c := gosrt.DefaultConfig()
	if o.Latency > 0 {
		c.Latency = time.Duration(o.Latency) * time.Millisecond
	}
	if o.MaxBW > 0 {
		c.MaxBW = o.MaxBW
	}
	c.StreamId = o.StreamID
	c.Passphrase = o.Passphrase
	return c
}

// OpError - transport failure with the operation that produced it.
type OpError struct {
	Op  string // listen, connect, accept, send, recv
	Err error
}

func (e *OpError) Error() string { return fmt.Sprintf("srt: %s: %s", e.Op, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }

// ErrRejected - listener refused a handshake (max_clients reached).
var ErrRejected = errors.New("srt: connection rejected")

// Conn owns one SRT connection. Not copyable, move between tasks only.
type Conn struct {
	conn    gosrt.Conn
	once    sync.Once
	onClose func()
}

// Dial connects in caller mode.
func Dial(addr string, opts Options) (*Conn, error) {
	conn, err := gosrt.Dial("srt", addr, opts.config())
	if err != nil {
		return nil, &OpError{Op: "connect", Err: err}
	}
	return &Conn{conn: conn}, nil
}

// Send writes one datagram. The peer receives it as a single message.
func (c *Conn) Send(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return &OpError{Op: "send", Err: err}
	}
	return nil
}

// Recv blocks until one datagram arrives and copies it into b. A closed
// connection surfaces as an OpError with op "recv".
func (c *Conn) Recv(b []byte) (int, error) {
	n, err := c.conn.Read(b)
	if err != nil {
		return n, &OpError{Op: "recv", Err: err}
	}
	return n, nil
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close releases the connection. Safe to call from any task, the underlying
// handle is closed exactly once; a blocked Recv returns after Close.
func (c *Conn) Close() (err error) {
	c.once.Do(func() {
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return
}

// Listener owns the bound server socket.
type Listener struct {
	ln     gosrt.Listener
	max    int32
	active atomic.Int32
	once   sync.Once
}

// Listen binds and listens in one step. maxClients <= 0 means unlimited.
func Listen(addr string, opts Options) (*Listener, error) {
	ln, err := gosrt.Listen("srt", addr, opts.config())
	if err != nil {
		return nil, &OpError{Op: "listen", Err: err}
	}
	return &Listener{ln: ln, max: int32(opts.MaxClients)}, nil
}

// Accept blocks until a caller completes the handshake. Handshakes beyond
// max_clients are rejected and reported as ErrRejected so the accept loop
// can log and continue.
func (l *Listener) Accept() (*Conn, error) {
	conn, mode, err := l.ln.Accept(func(req gosrt.ConnRequest) gosrt.ConnType {
		if l.max > 0 && l.active.Load() >= l.max {
			return gosrt.REJECT
		}
		return gosrt.PUBLISH
	})
	if err != nil {
		return nil, &OpError{Op: "accept", Err: err}
	}
	if mode == gosrt.REJECT || conn == nil {
		return nil, ErrRejected
	}

	l.active.Add(1)
	return &Conn{conn: conn, onClose: func() { l.active.Add(-1) }}, nil
}

// Close unblocks Accept.
func (l *Listener) Close() (err error) {
	l.once.Do(func() { l.ln.Close() })
	return
}
