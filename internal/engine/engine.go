// Package engine runs one tick of the strum-matching pipeline:
// extract, detect, schedule, judge, retire, aggregate.
//
// An Engine is an owned value driven by a single goroutine. It performs no
// I/O; side effects are returned as outcomes.
package engine

import (
	"time"

	"github.com/okian/airstrum/internal/domain/fret"
	"github.com/okian/airstrum/internal/domain/judge"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/schedule"
	"github.com/okian/airstrum/internal/domain/session"
	"github.com/okian/airstrum/internal/domain/signal"
	"github.com/okian/airstrum/internal/domain/strum"
)

// FretSource provides the latest fret state for hit outcomes.
type FretSource interface {
	Load() fret.Snapshot
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithPicker sets the note label picker.
func WithPicker(p schedule.LabelPicker) Option {
	return func(e *Engine) {
		if p != nil {
			e.picker = p
		}
	}
}

// WithFretSource sets where hit outcomes read fret state from.
func WithFretSource(src FretSource) Option {
	return func(e *Engine) {
		if src != nil {
			e.frets = src
		}
	}
}

// WithPlayerID sets the player sessions are attributed to.
func WithPlayerID(id string) Option {
	return func(e *Engine) {
		e.playerID = id
	}
}

// Result is everything a tick produced.
type Result struct {
	Position  model.Position
	HasSignal bool
	Strum     *model.StrumEvent
	Outcomes  []model.Outcome
	Spawned   int
	Notes     []model.Note // copy of the active set after retirement
	Score     model.ScoreState
}

// Engine is the per-session matching state.
type Engine struct {
	cfg      Config
	picker   schedule.LabelPicker
	frets    FretSource
	playerID string

	extractor *signal.Extractor
	detector  *strum.Detector
	scheduler *schedule.Scheduler
	judge     *judge.Judge

	session *session.Aggregator
	notes   []model.Note
}

// New validates cfg and builds an engine. No session exists until Reset or
// the first Tick.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, frets: fret.NewStore()}
	for _, opt := range opts {
		opt(e)
	}
	e.build()
	return e, nil
}

func (e *Engine) build() {
	cfg := e.cfg
	e.extractor = signal.NewExtractor(
		signal.WithDisplaySize(cfg.DisplayWidth, cfg.DisplayHeight),
		signal.WithWristGate(cfg.WristGate),
		signal.WithMirror(cfg.Mirror),
	)
	e.detector = strum.NewDetector(
		strum.WithZone(cfg.Zone),
		strum.WithVelocityThreshold(cfg.VelocityThreshold),
		strum.WithDebounce(cfg.Debounce),
	)
	e.scheduler = schedule.NewScheduler(
		schedule.WithSpawnInterval(cfg.SpawnInterval),
		schedule.WithSpeed(cfg.Speed),
		schedule.WithTrackStart(cfg.TrackStart),
		schedule.WithLabels(cfg.Labels),
		schedule.WithPicker(e.picker),
		schedule.WithMaxTickElapsed(cfg.MaxTickElapsed),
	)
	e.judge = judge.NewJudge(
		judge.WithHitZone(cfg.HitZoneX(), cfg.HitWindow),
		judge.WithRetirement(cfg.DisplayWidth, cfg.RetireMargin),
	)
}

// Config returns the validated configuration.
func (e *Engine) Config() Config { return e.cfg }

// Reset discards all state and starts a new session at now.
func (e *Engine) Reset(now time.Time) {
	e.detector.Reset()
	e.scheduler.Reset()
	e.notes = nil
	e.session = session.New(e.playerID, now)
}

// Session returns the current session, starting one at now if needed.
func (e *Engine) Session(now time.Time) *session.Aggregator {
	if e.session == nil {
		e.session = session.New(e.playerID, now)
	}
	return e.session
}

// Tick runs one frame. frame is nil when the estimator produced nothing.
// After the session has ended Tick only reports the frozen state.
func (e *Engine) Tick(now time.Time, frame *model.Frame) Result {
	sess := e.Session(now)
	if sess.Ended() {
		return Result{Notes: e.snapshot(), Score: *sess.Score()}
	}

	var res Result
	if frame != nil {
		res.Position, res.HasSignal = e.extractor.Extract(*frame)
	}

	var event *model.StrumEvent
	if ev, ok := e.detector.Observe(now, res.Position, res.HasSignal); ok {
		event = &ev
		res.Strum = event
	}

	before := len(e.notes)
	e.notes = e.scheduler.Tick(now, e.notes)
	res.Spawned = len(e.notes) - before

	res.Outcomes = e.judge.Resolve(now, e.notes, event, sess.Score())
	hit := false
	for i := range res.Outcomes {
		if res.Outcomes[i].Kind != model.OutcomeHit {
			continue
		}
		hit = true
		snap := e.frets.Load()
		res.Outcomes[i].Fret = snap.Fret
		res.Outcomes[i].Chord = snap.Chord
	}

	e.notes = e.judge.Retire(e.notes)
	sess.Record(now, event != nil, hit, res.Spawned, len(e.notes))

	res.Notes = e.snapshot()
	res.Score = *sess.Score()
	return res
}

// End finishes the current session. See session.Aggregator.End.
func (e *Engine) End(now time.Time) (model.SessionSummary, bool) {
	return e.Session(now).End(now)
}

// Notes returns a copy of the active notes.
func (e *Engine) Notes() []model.Note { return e.snapshot() }

func (e *Engine) snapshot() []model.Note {
	out := make([]model.Note, len(e.notes))
	copy(out, e.notes)
	return out
}
