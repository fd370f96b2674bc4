package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/airstrum/internal/domain/dedupe"
	"github.com/okian/airstrum/internal/domain/fret"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/logger"
	"github.com/okian/airstrum/pkg/metrics"
	"golang.org/x/net/websocket"
)

const (
	maxChordMessageBytes = 16 << 10
	maxFrameMessageBytes = 256 << 10
)

// wsEndpoint builds a websocket endpoint whose handshake enforces the
// allowed origins. Live connections are tracked so Close can end them.
func (s *Server) wsEndpoint(serve func(*websocket.Conn)) http.Handler {
	return websocket.Server{
		Handler: func(conn *websocket.Conn) {
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			defer s.untrack(conn)
			serve(conn)
		},
		Handshake: func(_ *websocket.Config, r *http.Request) error {
			if !s.originAllowed(r.Header.Get("Origin")) {
				return ErrOriginNotAllowed
			}
			return nil
		},
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

// Close ends every open websocket channel and refuses new ones.
func (s *Server) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.closed = true
	var errs []error
	for conn := range s.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.conns, conn)
	}
	return errors.Join(errs...)
}

// receive reads one message. It reports false when the connection is done;
// oversized messages are skipped.
func receive(ctx context.Context, conn *websocket.Conn, l logger.Logger) ([]byte, bool) {
	for {
		var data []byte
		err := websocket.Message.Receive(conn, &data)
		switch {
		case err == nil:
			return data, true
		case errors.Is(err, websocket.ErrFrameTooLarge):
			l.Warn(ctx, "websocket message too large", logger.Int("limit", conn.MaxPayloadBytes))
			continue
		case errors.Is(err, io.EOF):
			return nil, false
		default:
			l.Debug(ctx, "websocket closed", logger.Error(err))
			return nil, false
		}
	}
}

type pong struct {
	Type string `json:"type"`
}

// ChordHandler consumes the chord channel: chord_change and FRET_UPDATE
// messages replace the fret state, ping is answered with pong.
type ChordHandler struct {
	deps    ChordApplier
	deduper dedupe.Deduper
	logger  logger.Logger
}

// NewChordHandler creates a chord channel handler.
func NewChordHandler(deps ChordApplier, d dedupe.Deduper, l logger.Logger) *ChordHandler {
	return &ChordHandler{deps: deps, deduper: d, logger: l}
}

// Serve runs one chord channel connection until it closes. A disconnect
// leaves the last applied fret state in place.
func (h *ChordHandler) Serve(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	conn.MaxPayloadBytes = maxChordMessageBytes
	ctx := conn.Request().Context()

	h.logger.Info(ctx, "chord channel connected", logger.String("remote", conn.Request().RemoteAddr))
	defer h.logger.Info(ctx, "chord channel disconnected")

	for {
		data, ok := receive(ctx, conn, h.logger)
		if !ok {
			return
		}
		if reply, ok := h.handle(ctx, data); ok {
			if err := websocket.JSON.Send(conn, reply); err != nil {
				h.logger.Debug(ctx, "reply failed", logger.Error(err))
				return
			}
		}
	}
}

// handle applies one message and returns a reply when one is due.
func (h *ChordHandler) handle(ctx context.Context, data []byte) (any, bool) {
	typ, err := fret.MessageType(data)
	if err != nil {
		metrics.RecordChordDropped("malformed")
		h.logger.Warn(ctx, "dropping malformed chord message", logger.Error(err))
		return nil, false
	}

	switch typ {
	case fret.TypePing:
		metrics.RecordChordMessage(typ)
		return pong{Type: "pong"}, true
	case fret.TypeChordChange, fret.TypeFretUpdate:
	default:
		metrics.RecordChordDropped("unknown_type")
		h.logger.Warn(ctx, "dropping chord message of unknown type", logger.String("type", typ))
		return nil, false
	}

	u, err := fret.Parse(data)
	if err != nil {
		metrics.RecordChordDropped("invalid")
		h.logger.Warn(ctx, "dropping invalid chord message", logger.String("type", typ), logger.Error(err))
		return nil, false
	}
	metrics.RecordChordMessage(typ)
	if key, ok := u.Key(); ok && h.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordChordDropped("duplicate")
		return nil, false
	}

	snap := h.deps.ApplyChord(ctx, u)
	h.logger.Debug(ctx, "fret state replaced",
		logger.String("chord", snap.Chord),
		logger.String("fret", snap.Fret.String()),
		logger.Any("version", snap.Version),
	)
	return nil, false
}

// FrameHandler consumes hand estimator frames. Each message is one frame;
// the latest frame wins.
type FrameHandler struct {
	deps   FrameSink
	logger logger.Logger
}

// NewFrameHandler creates a frame channel handler.
func NewFrameHandler(deps FrameSink, l logger.Logger) *FrameHandler {
	return &FrameHandler{deps: deps, logger: l}
}

// Serve runs one frame channel connection until it closes.
func (h *FrameHandler) Serve(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	conn.MaxPayloadBytes = maxFrameMessageBytes
	ctx := conn.Request().Context()

	for {
		data, ok := receive(ctx, conn, h.logger)
		if !ok {
			return
		}
		var f model.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			metrics.RecordFrame(false)
			h.logger.Warn(ctx, "dropping malformed frame", logger.Error(err))
			continue
		}
		metrics.RecordFrame(true)
		h.deps.SubmitFrame(f)
	}
}
