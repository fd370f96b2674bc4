// Package service drives the strum engine from a periodic tick and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/airstrum/internal/adapters/audio"
	"github.com/okian/airstrum/internal/adapters/http/api"
	"github.com/okian/airstrum/internal/adapters/mq/queue"
	"github.com/okian/airstrum/internal/adapters/mq/worker"
	"github.com/okian/airstrum/internal/adapters/repository"
	"github.com/okian/airstrum/internal/config"
	"github.com/okian/airstrum/internal/domain/fret"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/schedule"
	"github.com/okian/airstrum/internal/domain/types"
	"github.com/okian/airstrum/internal/engine"
	"github.com/okian/airstrum/pkg/logger"
	"github.com/okian/airstrum/pkg/metrics"
)

// frameTTL bounds how long a latched frame keeps feeding ticks after the
// estimator goes quiet.
const frameTTL = 500 * time.Millisecond

// ErrNotStarted is returned by operations that need a running service.
var ErrNotStarted = errors.New("service not started")

// Service owns one engine and its collaborators.
type Service struct {
	mu  sync.Mutex // guards lifecycle
	cfg *config.Config

	engMu  sync.Mutex // serializes engine access
	engine *engine.Engine

	submitMu    sync.Mutex // serializes score submission, never held with engMu
	submittedID string

	frets *fret.Store

	frameMu sync.Mutex
	frame   *model.Frame
	frameAt time.Time

	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	store     repository.Store
	sender    audio.Sender
	closeMIDI func() error
	recorder  *audio.Recorder

	picker schedule.LabelPicker
	clock  func() time.Time
	logger logger.Logger

	started  bool
	stopped  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithStore uses st instead of opening cfg.DBPath. The service closes it
// on Stop.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithSender sends MIDI through send instead of cfg.MIDIPort.
func WithSender(send audio.Sender) Option {
	return func(s *Service) {
		if send != nil {
			s.sender = send
		}
	}
}

// WithPicker sets the note label picker.
func WithPicker(p schedule.LabelPicker) Option {
	return func(s *Service) {
		if p != nil {
			s.picker = p
		}
	}
}

// New validates cfg and builds the engine. Collaborators are created by
// Start.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:   cfg,
		frets: fret.NewStore(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	eopts := []engine.Option{
		engine.WithFretSource(s.frets),
		engine.WithPlayerID(cfg.PlayerID),
	}
	if s.picker != nil {
		eopts = append(eopts, engine.WithPicker(s.picker))
	}
	eng, err := engine.New(cfg.Engine(), eopts...)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s.engine = eng
	return s, nil
}

// Start opens the score store and the MIDI sink, starts the dispatcher
// workers and begins a session driven by the tick loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting strum service...")

	if s.store == nil {
		st, err := repository.Open(ctx, s.cfg.DBPath)
		if err != nil {
			return fmt.Errorf("service: %w", err)
		}
		s.store = st
	}

	if s.sender == nil {
		if s.cfg.MIDIPort != "" {
			send, closeFn, err := audio.OpenPort(s.cfg.MIDIPort)
			if err != nil {
				_ = s.store.Close()
				return fmt.Errorf("service: %w", err)
			}
			s.sender, s.closeMIDI = send, closeFn
			s.logger.Info(ctx, "midi output opened", logger.String("port", s.cfg.MIDIPort))
		} else {
			s.sender = audio.LogSender(s.logger.Named("midi"))
		}
	}

	now := s.clock()
	channel := uint8(s.cfg.MIDIChannel) //nolint:gosec // validated to 0..15
	handlers := worker.Fanout{
		audio.NewSynth(s.sender, audio.WithChannel(channel), audio.WithLogger(s.logger.Named("synth"))),
	}
	if s.cfg.RecordPath != "" {
		s.recorder = audio.NewRecorder(now, channel)
		handlers = append(handlers, s.recorder)
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.OutcomeQueueSize))
	metrics.UpdateQueueCapacity(s.cfg.OutcomeQueueSize)
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.queue, handlers, s.logger)
	// Workers outlive ctx so Stop can drain the queue.
	s.pool.Start(context.WithoutCancel(ctx))

	s.engMu.Lock()
	s.engine.Reset(now)
	sess := s.engine.Session(now)
	s.engMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	go s.run(loopCtx, s.cfg.TickInterval())

	s.started = true
	s.logger.Info(ctx, "strum service started",
		logger.String("session_id", sess.ID()),
		logger.String("player_id", sess.PlayerID()),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.cfg.OutcomeQueueSize),
		logger.Duration("tick", s.cfg.TickInterval()),
	)
	return nil
}

// Stop tears down in order: tick loop, session, outcome queue and
// workers, recording, MIDI sink, store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return nil
	}
	s.stopped = true
	s.logger.Info(ctx, "stopping strum service...")

	s.cancel()
	<-s.loopDone

	var errs []error
	if _, _, err := s.EndSession(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.recorder != nil {
		if err := s.recorder.WriteFile(s.cfg.RecordPath); err != nil {
			errs = append(errs, err)
		} else {
			s.logger.Info(ctx, "session recorded",
				logger.String("path", s.cfg.RecordPath),
				logger.Int("events", s.recorder.Len()),
			)
		}
	}
	if s.closeMIDI != nil {
		if err := s.closeMIDI(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info(ctx, "strum service stopped")
	return errors.Join(errs...)
}

func (s *Service) run(ctx context.Context, interval time.Duration) {
	defer close(s.loopDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one engine tick against the latched frame and hands its
// outcomes to the dispatchers. It never blocks on them; outcomes that do
// not fit the queue are dropped and counted. Call it only after Start.
func (s *Service) Tick(ctx context.Context) engine.Result {
	start := time.Now()
	now := s.clock()
	frame := s.latest(now)

	s.engMu.Lock()
	res := s.engine.Tick(now, frame)
	s.engMu.Unlock()

	metrics.RecordTick(float64(time.Since(start).Microseconds()) / 1000)
	for range res.Spawned {
		metrics.RecordSpawn()
	}

	hit := false
	for i := range res.Outcomes {
		o := res.Outcomes[i]
		metrics.RecordOutcome(o)
		if o.Kind == model.OutcomeHit {
			hit = true
		}
		if err := s.queue.Enqueue(ctx, o); err != nil {
			metrics.RecordEnqueueError()
			s.logger.Warn(ctx, "outcome dropped",
				logger.Int64("note_id", o.Note.ID),
				logger.String("kind", o.Kind.String()),
				logger.Error(err),
			)
		}
	}
	if res.Strum != nil {
		metrics.RecordStrum(res.Strum.Direction)
		if !hit {
			metrics.RecordWhiff()
		}
	}
	metrics.UpdateSessionGauges(res.Score, len(res.Notes))
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	return res
}

// latest returns the latched frame, or nil once it is older than frameTTL.
// A frame is reused until a newer one arrives.
func (s *Service) latest(now time.Time) *model.Frame {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	if s.frame == nil || now.Sub(s.frameAt) > frameTTL {
		return nil
	}
	return s.frame
}

// SubmitFrame latches f for the next tick; the latest frame wins.
func (s *Service) SubmitFrame(f model.Frame) {
	now := s.clock()
	s.frameMu.Lock()
	s.frame = &f
	s.frameAt = now
	s.frameMu.Unlock()
}

// ApplyChord replaces the fret state read by hit outcomes.
func (s *Service) ApplyChord(_ context.Context, u fret.Update) fret.Snapshot {
	return s.frets.Replace(u, s.clock())
}

// EndSession freezes the running session and submits its score. Repeated
// calls return the same summary with first false; a failed submission is
// retried on the next call.
func (s *Service) EndSession(ctx context.Context) (model.SessionSummary, bool, error) {
	s.engMu.Lock()
	summary, first := s.engine.End(s.clock())
	s.engMu.Unlock()

	if first {
		metrics.RecordSessionEnded()
		s.logger.Info(ctx, "session ended",
			logger.String("session_id", summary.SessionID),
			logger.Int("score", summary.Score),
			logger.Int("max_combo", summary.MaxCombo),
			logger.Duration("duration", summary.Duration),
		)
	}
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if s.submittedID == summary.SessionID {
		return summary, first, nil
	}
	if s.store == nil {
		return summary, first, ErrNotStarted
	}
	if _, err := s.store.Submit(ctx, summary); err != nil {
		s.logger.Error(ctx, "score submission failed",
			logger.String("session_id", summary.SessionID),
			logger.Error(err),
		)
		return summary, first, fmt.Errorf("end session: %w", err)
	}
	s.submittedID = summary.SessionID
	return summary, first, nil
}

// NewSession ends the running session, submitting it if needed, and
// starts a fresh one.
func (s *Service) NewSession(ctx context.Context) (model.SessionSummary, error) {
	prev, _, err := s.EndSession(ctx)
	if err != nil {
		return model.SessionSummary{}, err
	}

	s.engMu.Lock()
	now := s.clock()
	s.engine.Reset(now)
	sess := s.engine.Session(now)
	s.engMu.Unlock()

	s.logger.Info(ctx, "session started",
		logger.String("session_id", sess.ID()),
		logger.String("previous", prev.SessionID),
	)
	return model.SessionSummary{
		SessionID: sess.ID(),
		PlayerID:  sess.PlayerID(),
		StartedAt: now,
	}, nil
}

// TopN returns the top n submitted sessions.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if s.store == nil {
		return nil, ErrNotStarted
	}
	return s.store.TopN(ctx, n)
}

// Rank returns the leaderboard row of one submitted session.
func (s *Service) Rank(ctx context.Context, sessionID string) (types.Entry, error) {
	if s.store == nil {
		return types.Entry{}, ErrNotStarted
	}
	entry, err := s.store.Rank(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Entry{}, fmt.Errorf("%w: %w", api.ErrNotFound, err)
	}
	return entry, err
}

// GetStats returns live session statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	ctx := context.Background()

	s.engMu.Lock()
	st := s.engine.Session(s.clock()).Stats()
	s.engMu.Unlock()
	snap := s.frets.Load()

	stats := map[string]interface{}{
		"session_id":      st.SessionID,
		"player_id":       st.PlayerID,
		"started_at":      st.StartedAt,
		"elapsed_seconds": st.Elapsed.Seconds(),
		"ended":           st.Ended,
		"ticks":           st.Ticks,
		"strums":          st.Strums,
		"whiffs":          st.Whiffs,
		"spawned":         st.Spawned,
		"active_notes":    st.ActiveNotes,
		"score":           st.Score.Score,
		"combo":           st.Score.Combo,
		"max_combo":       st.Score.MaxCombo,
		"perfect_count":   st.Score.PerfectCount,
		"great_count":     st.Score.GreatCount,
		"miss_count":      st.Score.MissCount,
		"chord":           snap.Chord,
		"fret":            snap.Fret.String(),
	}

	s.mu.Lock()
	started := s.started && !s.stopped
	s.mu.Unlock()
	stats["started"] = started
	if started {
		stats["queue_length"] = s.queue.Len(ctx)
		stats["workers"] = s.pool.Size()
		stats["submissions"] = s.store.Count(ctx)
	}
	return stats
}
