package camera

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/koensayr/visca-srt/pkg/frame"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cameraSim - minimal VISCA camera: accepts connections, records every
// write and optionally acks each read.
type cameraSim struct {
	ln    net.Listener
	mu    sync.Mutex
	recv  bytes.Buffer
	ack   []byte
	conns chan net.Conn
}

func newCameraSim(t *testing.T, ack []byte) *cameraSim {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sim := &cameraSim{ln: ln, ack: ack, conns: make(chan net.Conn, 4)}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			sim.conns <- conn
			go sim.serve(conn)
		}
	}()
	return sim
}

func (s *cameraSim) serve(conn net.Conn) {
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.recv.Write(buf[:n])
			s.mu.Unlock()
			if s.ack != nil {
				_, _ = conn.Write(s.ack)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *cameraSim) addr() string { return s.ln.Addr().String() }

func (s *cameraSim) received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.recv.Bytes()...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func testCamera(sim *cameraSim, mapping TallyMapping) *Camera {
	return New(Config{
		ID:                3,
		Name:              "cam3",
		Addr:              sim.addr(),
		ReconnectInterval: 50 * time.Millisecond,
		CommandTimeout:    500 * time.Millisecond,
		Mapping:           mapping,
	}, zerolog.Nop())
}

func TestExchange(t *testing.T) {
	sim := newCameraSim(t, []byte{0x90, 0x41, 0xFF})
	cam := testCamera(sim, TallyMapping{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { cam.Run(ctx); close(done) }()

	waitFor(t, cam.Connected)

	payload := []byte{0x81, 0x01, 0x06, 0x01, 0x0A, 0x0A, 0x03, 0x01, 0xFF}
	reply, err := cam.Exchange(payload, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x41, 0xFF}, reply)

	// the camera socket saw the payload byte for byte
	waitFor(t, func() bool { return bytes.Equal(sim.received(), payload) })

	cancel()
	<-done
}

func TestExchangeTimeout(t *testing.T) {
	sim := newCameraSim(t, nil) // never acks
	cam := testCamera(sim, TallyMapping{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { cam.Run(ctx); close(done) }()

	waitFor(t, cam.Connected)

	_, err := cam.Exchange([]byte{0x81, 0xFF}, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// a timed out request does not poison the next one
	_, err = cam.Exchange([]byte{0x81, 0xFF}, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	cancel()
	<-done
}

func TestReconnect(t *testing.T) {
	sim := newCameraSim(t, nil)
	cam := testCamera(sim, TallyMapping{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { cam.Run(ctx); close(done) }()

	waitFor(t, cam.Connected)
	first := <-sim.conns

	// kill the camera side, the connector must notice and redial
	_ = first.Close()
	waitFor(t, func() bool {
		select {
		case <-sim.conns:
			return true
		default:
			return false
		}
	})
	waitFor(t, cam.Connected)

	cancel()
	<-done
}

func TestWriteDisconnected(t *testing.T) {
	cam := New(Config{ID: 1, Name: "down", Addr: "127.0.0.1:1"}, zerolog.Nop())

	assert.ErrorIs(t, cam.Write([]byte{0x81, 0xFF}), ErrNotConnected)
	_, err := cam.Exchange([]byte{0x81, 0xFF}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestEnqueueDropsOldest(t *testing.T) {
	cam := New(Config{ID: 1, Name: "cam"}, zerolog.Nop()) // worker not running

	for seq := uint16(1); seq <= queueSize+6; seq++ {
		cam.Enqueue(Request{Msg: frame.Visca{Sequence: seq}})
	}

	require.Len(t, cam.requests, queueSize)
	first := <-cam.requests
	assert.Equal(t, uint16(7), first.Msg.Sequence)
}
