package api

import (
	"net/http"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// SessionHandler handles the end-of-session request.
type SessionHandler struct {
	deps SessionController
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionController) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type summaryResponse struct {
	SessionID    string    `json:"session_id"`
	PlayerID     string    `json:"player_id"`
	Score        int       `json:"score"`
	MaxCombo     int       `json:"max_combo"`
	PerfectCount int       `json:"perfect_count"`
	GreatCount   int       `json:"great_count"`
	MissCount    int       `json:"miss_count"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Duration     float64   `json:"duration_seconds"`
	AlreadyEnded bool      `json:"already_ended"`
}

func newSummaryResponse(s model.SessionSummary, first bool) summaryResponse { //nolint:gocritic // hugeParam
	return summaryResponse{
		SessionID:    s.SessionID,
		PlayerID:     s.PlayerID,
		Score:        s.Score,
		MaxCombo:     s.MaxCombo,
		PerfectCount: s.PerfectCount,
		GreatCount:   s.GreatCount,
		MissCount:    s.MissCount,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Duration:     s.DurationSeconds(),
		AlreadyEnded: !first,
	}
}

// HandleEndSession handles POST /session/end. Repeated calls return the
// same summary.
func (h *SessionHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.end_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	summary, first, err := h.deps.EndSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(summary, first))
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	PlayerID  string    `json:"player_id"`
	StartedAt time.Time `json:"started_at"`
}

// HandleNewSession handles POST /session/new. The running session is ended
// and submitted first.
func (h *SessionHandler) HandleNewSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.new_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	s, err := h.deps.NewSession(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: s.SessionID, PlayerID: s.PlayerID, StartedAt: s.StartedAt})
}
