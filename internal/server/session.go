package server

import (
	"context"
	"sync"

	"github.com/koensayr/visca-srt/internal/api"
	"github.com/koensayr/visca-srt/internal/camera"
	"github.com/koensayr/visca-srt/pkg/frame"
	"github.com/koensayr/visca-srt/pkg/srt"
	"github.com/koensayr/visca-srt/pkg/visca"
)

// sender is the session's way back to its SRT client.
type sender interface {
	Send([]byte) error
}

// session - one accepted SRT client. Camera workers reply concurrently, so
// sends are serialized here.
type session struct {
	conn sender
	mu   sync.Mutex
}

func (s *session) send(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Send(b)
}

const recvBuffer = 2048

func (s *Server) serveClient(ctx context.Context, conn *srt.Conn) {
	defer conn.Close()

	// unblock Recv on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sess := &session{conn: conn}
	buf := make([]byte, recvBuffer)

	for {
		n, err := conn.Recv(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Info().Err(err).Msg("[server] client gone")
			}
			return
		}
		// every per-frame error is absorbed here, one bad frame can
		// never kill the session
		s.handleFrame(sess, buf[:n])
	}
}

// handleFrame decodes and dispatches one datagram. The buffer is owned by
// the read loop, payloads that outlive this call are copied.
func (s *Server) handleFrame(sess *session, b []byte) {
	msg, err := frame.Decode(b)
	if err != nil {
		api.Drops.WithLabelValues("framing").Inc()
		s.log.Warn().Err(err).Msg("[server] bad frame")
		return
	}

	switch m := msg.(type) {
	case frame.Visca:
		api.Frames.WithLabelValues("in", "visca").Inc()
		s.routeVisca(sess, m)

	case frame.NdiTally:
		api.Frames.WithLabelValues("in", "tally").Inc()
		if !m.State.Known() {
			s.log.Warn().Uint8("state", byte(m.State)).Str("source", m.Source).Msg("[server] unknown tally state")
		}
		s.table.Update(m.Source, m.State, m.Timestamp)
		s.log.Debug().Str("source", m.Source).Stringer("state", m.State).Uint32("ts", m.Timestamp).Msg("[server] tally")
	}
}

func (s *Server) routeVisca(sess *session, m frame.Visca) {
	if !m.Type.Known() {
		s.log.Warn().Uint8("type", byte(m.Type)).Msg("[server] unknown visca type")
	}

	if !visca.Valid(m.Data) {
		api.Drops.WithLabelValues("invalid_payload").Inc()
		s.log.Warn().Uint8("camera", m.CameraID).Msg("[server] invalid visca payload")
		return
	}

	cam, ok := s.cams.Get(m.CameraID)
	if !ok {
		api.Drops.WithLabelValues("unknown_camera").Inc()
		s.log.Warn().Uint8("camera", m.CameraID).Msg("[server] unknown camera")
		return
	}

	// the read loop reuses its buffer, detach the payload
	m.Data = append([]byte(nil), m.Data...)

	cam.Enqueue(camera.Request{
		Msg: m,
		Reply: func(resp frame.Visca) {
			if err := sess.send(resp.Encode()); err != nil {
				s.log.Debug().Err(err).Msg("[server] reply")
				return
			}
			api.Frames.WithLabelValues("out", "visca").Inc()
		},
	})
}
