// Package api declares HTTP and websocket contracts and route registration
// helpers for the strum service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"

	"github.com/okian/airstrum/internal/domain/dedupe"
	"github.com/okian/airstrum/internal/domain/fret"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/types"
	"github.com/okian/airstrum/pkg/logger"
	"github.com/rs/cors"
	"golang.org/x/net/websocket"
)

const defaultMaxLeaderboardLimit = 100

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatsProvider
	SessionController
	ChordApplier
	FrameSink
	LeaderboardDependencies
	RankDependencies
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAllowedOrigins restricts browser origins for CORS and websockets.
// "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = slices.Clone(origins)
		}
	}
}

// WithMaxLeaderboardLimit caps GET /leaderboard?limit.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithDeduper sets the chord message deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Server) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the service API.
type Server struct {
	origins  []string
	maxLimit int
	deduper  dedupe.Deduper
	logger   logger.Logger

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionHandler     *SessionHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	chordHandler       *ChordHandler
	frameHandler       *FrameHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		origins:  []string{"*"},
		maxLimit: defaultMaxLeaderboardLimit,
		conns:    make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper()
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.sessionHandler = NewSessionHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.chordHandler = NewChordHandler(deps, s.deduper, s.logger.Named("chords"))
	s.frameHandler = NewFrameHandler(deps, s.logger.Named("frames"))
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/session/end", MetricsMiddleware(s.sessionHandler.HandleEndSession, "session_end"))
	mux.HandleFunc("/session/new", MetricsMiddleware(s.sessionHandler.HandleNewSession, "session_new"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))

	// Websocket routes hijack the connection, so they bypass the metrics
	// response writer.
	mux.Handle("/ws/chords", s.wsEndpoint(s.chordHandler.Serve))
	mux.Handle("/ws/frames", s.wsEndpoint(s.frameHandler.Serve))
}

// Handler wraps next with CORS for the configured origins.
func (s *Server) Handler(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(next)
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// SessionController ends the running session and starts new ones. first
// is false when the session had already ended.
type SessionController interface {
	EndSession(ctx context.Context) (summary model.SessionSummary, first bool, err error)
	NewSession(ctx context.Context) (model.SessionSummary, error)
}

// ChordApplier installs a parsed chord update.
type ChordApplier interface {
	ApplyChord(ctx context.Context, u fret.Update) fret.Snapshot
}

// FrameSink accepts the latest hand estimator frame.
type FrameSink interface {
	SubmitFrame(f model.Frame)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
