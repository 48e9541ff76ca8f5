package tally

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/koensayr/visca-srt/internal/camera"
	"github.com/koensayr/visca-srt/pkg/frame"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	cmdProgram = []byte{0x81, 0x01, 0x7E, 0x01, 0x0A, 0x00, 0x02, 0xFF}
	cmdPreview = []byte{0x81, 0x01, 0x7E, 0x01, 0x0A, 0x00, 0x01, 0xFF}
	cmdOff     = []byte{0x81, 0x01, 0x7E, 0x01, 0x0A, 0x00, 0x03, 0xFF}
)

// sink - fake camera socket recording every write.
type sink struct {
	ln net.Listener
	mu sync.Mutex
	b  bytes.Buffer
}

func newSink(t *testing.T) *sink {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &sink{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 256)
				for {
					n, err := conn.Read(buf)
					if n > 0 {
						s.mu.Lock()
						s.b.Write(buf[:n])
						s.mu.Unlock()
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()
	return s
}

func (s *sink) received() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.b.Bytes()...)
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

// startTranslator wires one mapped camera to a sink and returns everything
// a tick test needs. The translator itself is ticked manually.
func startTranslator(t *testing.T) (*Table, *Translator, *sink) {
	s := newSink(t)

	cams := camera.NewRegistry()
	cam := camera.New(camera.Config{
		ID:                1,
		Name:              "cam1",
		Addr:              s.ln.Addr().String(),
		ReconnectInterval: 50 * time.Millisecond,
		Mapping: camera.TallyMapping{
			Source:         "A",
			ProgramEnabled: true,
			PreviewEnabled: true,
			Program:        cmdProgram,
			Preview:        cmdPreview,
			Off:            cmdOff,
		},
	}, zerolog.Nop())
	require.NoError(t, cams.Add(cam))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { cam.Run(ctx); close(done) }()
	t.Cleanup(func() { cancel(); <-done })

	waitFor(t, cam.Connected)

	table := NewTable()
	tr := NewTranslator(table, cams, DefaultInterval, zerolog.Nop())
	return table, tr, s
}

func TestTableLastWriteWins(t *testing.T) {
	table := NewTable()

	table.Update("A", frame.TallyProgram, 100)
	// an older timestamp still overwrites, the gateway is not a clock
	// authority
	table.Update("A", frame.TallyOff, 50)

	state, ok := table.Get("A")
	require.True(t, ok)
	assert.Equal(t, frame.TallyOff, state)

	snap := table.Snapshot()
	assert.Equal(t, uint32(50), snap["A"].Timestamp)
}

func TestTickDebounces(t *testing.T) {
	table, tr, s := startTranslator(t)

	// five rapid updates with the same state collapse into one command
	for i := 0; i < 5; i++ {
		table.Update("A", frame.TallyProgram, uint32(i))
	}
	tr.Tick()
	waitFor(t, func() bool { return bytes.Equal(s.received(), cmdProgram) })

	// state unchanged, further ticks emit nothing
	tr.Tick()
	tr.Tick()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, cmdProgram, s.received())
}

func TestTickTransitions(t *testing.T) {
	table, tr, s := startTranslator(t)

	var want []byte
	for _, step := range []struct {
		state frame.TallyState
		cmd   []byte
	}{
		{frame.TallyProgram, cmdProgram},
		{frame.TallyPreview, cmdPreview},
		{frame.TallyOff, cmdOff},
	} {
		table.Update("A", step.state, 0)
		tr.Tick()
		want = append(want, step.cmd...)
		waitFor(t, func() bool { return bytes.Equal(s.received(), want) })
	}
}

func TestTickUnmappedSource(t *testing.T) {
	table, tr, s := startTranslator(t)

	// a source nothing is mapped to changes nothing
	table.Update("B", frame.TallyProgram, 0)
	tr.Tick()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.received())
}

func TestTranslatorRunStops(t *testing.T) {
	table, tr, _ := startTranslator(t)
	_ = table

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("translator did not stop")
	}
}
