package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/airstrum/internal/adapters/http/api"
	"github.com/okian/airstrum/internal/adapters/repository"
	"github.com/okian/airstrum/internal/config"
	"github.com/okian/airstrum/internal/domain/fret"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/schedule"
	"github.com/okian/airstrum/internal/domain/types"
	"github.com/okian/airstrum/internal/engine"
	"github.com/okian/airstrum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/gomidi/midi/v2"
)

const tickStep = 200 * time.Millisecond

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type capture struct {
	msgs chan midi.Message
}

func (c *capture) send(msg midi.Message) error {
	select {
	case c.msgs <- msg:
	default:
	}
	return nil
}

// firstNoteOn waits for the first NoteOn and returns its channel and
// velocity.
func (c *capture) firstNoteOn(timeout time.Duration) (uint8, uint8, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.msgs:
			var ch, key, vel uint8
			if msg.GetNoteOn(&ch, &key, &vel) {
				return ch, vel, true
			}
		case <-deadline:
			return 0, 0, false
		}
	}
}

// slowStore blocks Submit until release is closed.
type slowStore struct {
	entered chan struct{}
	release chan struct{}
}

func (st *slowStore) Submit(ctx context.Context, _ model.SessionSummary) (bool, error) {
	close(st.entered)
	select {
	case <-st.release:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (st *slowStore) Rank(context.Context, string) (types.Entry, error) {
	return types.Entry{}, repository.ErrNotFound
}
func (st *slowStore) TopN(context.Context, int) ([]types.Entry, error) { return nil, nil }
func (st *slowStore) Count(context.Context) int                        { return 0 }
func (st *slowStore) Close() error                                     { return nil }

func hand(tipY float64) model.Hand {
	h := make(model.Hand, model.LandmarkCount)
	for i := range h {
		h[i] = model.Point{X: 300, Y: tipY}
	}
	h[model.LandmarkWrist] = model.Point{X: 300, Y: 650}
	return h
}

func frame(tipY float64) model.Frame {
	return model.Frame{Width: 1280, Height: 720, Hands: []model.Hand{hand(tipY)}}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.DBPath = ":memory:"
	cfg.WorkerCount = 1
	cfg.MIDIChannel = 2
	// Ticks are driven by hand.
	cfg.TickIntervalMS = int(time.Hour / time.Millisecond)
	return cfg
}

func newTestService(cfg *config.Config, clock *fakeClock, out *capture) *Service {
	svc, err := New(cfg,
		WithLogger(logger.Nop()),
		WithClock(clock.Now),
		WithSender(out.send),
		WithPicker(schedule.NewSequencePicker("G")),
	)
	So(err, ShouldBeNil)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

// tickN advances the clock before every tick except the first.
func tickN(svc *Service, clock *fakeClock, n int, first bool) engine.Result {
	var res engine.Result
	for i := range n {
		if i > 0 || !first {
			clock.Advance(tickStep)
		}
		res = svc.Tick(context.Background())
	}
	return res
}

func TestNew(t *testing.T) {
	Convey("Given a degenerate configuration", t, func() {
		cfg := testConfig()
		cfg.HitWindow = 0

		Convey("Then the service refuses to build", func() {
			_, err := New(cfg, WithLogger(logger.Nop()))
			So(errors.Is(err, engine.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestServiceSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		out := &capture{msgs: make(chan midi.Message, 128)}
		cfg := testConfig()
		cfg.RecordPath = filepath.Join(t.TempDir(), "session.mid")
		svc := newTestService(cfg, clock, out)

		Reset(func() {
			_ = svc.Stop(ctx)
		})

		Convey("When a G chord is held and a down strum lands on the first note", func() {
			u, err := fret.Parse([]byte(`{"type":"chord_change","chord":"G","fingering":[{"string":6,"fret":3},{"string":5,"fret":2},{"string":1,"fret":3}]}`))
			So(err, ShouldBeNil)
			svc.ApplyChord(ctx, u)

			tickN(svc, clock, 18, true)
			svc.SubmitFrame(frame(500))
			tickN(svc, clock, 1, false)
			svc.SubmitFrame(frame(600))
			res := tickN(svc, clock, 1, false)

			Convey("Then the tick reports the hit with the held chord", func() {
				So(res.Strum, ShouldNotBeNil)
				So(res.Strum.Direction, ShouldEqual, model.Down)
				So(len(res.Outcomes), ShouldEqual, 1)
				o := res.Outcomes[0]
				So(o.Kind, ShouldEqual, model.OutcomeHit)
				So(o.Rating, ShouldEqual, model.Great)
				So(o.Chord, ShouldEqual, "G")
				So(o.Fret.String(), ShouldEqual, "32---3")
				So(res.Score.Combo, ShouldEqual, 1)
			})

			Convey("Then the synth plays it on the configured channel", func() {
				ch, vel, ok := out.firstNoteOn(2 * time.Second)
				So(ok, ShouldBeTrue)
				So(ch, ShouldEqual, uint8(2))
				So(vel, ShouldBeGreaterThan, 0)
			})

			Convey("Then stopping writes the recording", func() {
				stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				So(svc.Stop(stopCtx), ShouldBeNil)

				info, err := os.Stat(cfg.RecordPath)
				So(err, ShouldBeNil)
				So(info.Size(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When nothing is played until the first note passes", func() {
			res := tickN(svc, clock, 22, true)

			Convey("Then it is missed and a chunk is sent", func() {
				So(len(res.Outcomes), ShouldEqual, 1)
				So(res.Outcomes[0].Kind, ShouldEqual, model.OutcomeMissed)
				So(res.Score.MissCount, ShouldEqual, 1)
				_, vel, ok := out.firstNoteOn(2 * time.Second)
				So(ok, ShouldBeTrue)
				So(vel, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the estimator goes quiet", func() {
			svc.SubmitFrame(frame(500))
			fresh := tickN(svc, clock, 1, true)
			clock.Advance(frameTTL + tickStep)
			stale := svc.Tick(ctx)

			Convey("Then the latched frame expires", func() {
				So(fresh.HasSignal, ShouldBeTrue)
				So(stale.HasSignal, ShouldBeFalse)
			})
		})

		Convey("When the session is ended twice", func() {
			tickN(svc, clock, 3, true)
			first, isFirst, err := svc.EndSession(ctx)
			So(err, ShouldBeNil)
			again, againFirst, err := svc.EndSession(ctx)
			So(err, ShouldBeNil)

			Convey("Then one submission is stored", func() {
				So(isFirst, ShouldBeTrue)
				So(againFirst, ShouldBeFalse)
				So(again, ShouldResemble, first)
				So(first.Duration, ShouldEqual, 2*tickStep)

				top, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, 1)
				So(top[0].SessionID, ShouldEqual, first.SessionID)

				entry, err := svc.Rank(ctx, first.SessionID)
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 1)
			})

			Convey("Then ticks no longer change the session", func() {
				res := tickN(svc, clock, 30, false)
				So(res.Outcomes, ShouldBeEmpty)
				So(svc.GetStats()["ended"], ShouldEqual, true)
			})

			Convey("Then a new session starts fresh", func() {
				next, err := svc.NewSession(ctx)
				So(err, ShouldBeNil)
				So(next.SessionID, ShouldNotEqual, first.SessionID)

				stats := svc.GetStats()
				So(stats["session_id"], ShouldEqual, next.SessionID)
				So(stats["ended"], ShouldEqual, false)
				So(stats["started"], ShouldEqual, true)
				So(stats["submissions"], ShouldEqual, 1)

				_, isFirst, err := svc.EndSession(ctx)
				So(err, ShouldBeNil)
				So(isFirst, ShouldBeTrue)
				So(svc.GetStats()["submissions"], ShouldEqual, 2)
			})
		})

		Convey("When ranking an unknown session", func() {
			_, err := svc.Rank(ctx, "ghost")

			Convey("Then the error is an API not-found", func() {
				So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceStop(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc, err := New(testConfig(), WithLogger(logger.Nop()))
		So(err, ShouldBeNil)

		Convey("Then Stop is a no-op and reads report not started", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
			_, err := svc.TopN(context.Background(), 1)
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a running service", t, func() {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		out := &capture{msgs: make(chan midi.Message, 8)}
		svc := newTestService(testConfig(), clock, out)

		Convey("Then Stop ends and submits the session once", func() {
			clock.Advance(time.Second)
			So(svc.Stop(context.Background()), ShouldBeNil)
			So(svc.Stop(context.Background()), ShouldBeNil)
			_, first, err := svc.EndSession(context.Background())
			So(err, ShouldBeNil)
			So(first, ShouldBeFalse)
		})
	})
}

func TestServiceSubmitDoesNotStallTicks(t *testing.T) {
	Convey("Given a service whose store is slow to accept a submission", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		st := &slowStore{entered: make(chan struct{}), release: make(chan struct{})}
		svc, err := New(testConfig(),
			WithLogger(logger.Nop()),
			WithClock(clock.Now),
			WithSender((&capture{msgs: make(chan midi.Message, 8)}).send),
			WithStore(st),
		)
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		ended := make(chan error, 1)
		go func() {
			_, _, err := svc.EndSession(ctx)
			ended <- err
		}()
		<-st.entered

		Convey("Then ticks keep running while the submission is in flight", func() {
			ticked := make(chan struct{})
			go func() {
				clock.Advance(tickStep)
				svc.Tick(ctx)
				close(ticked)
			}()

			select {
			case <-ticked:
			case <-time.After(2 * time.Second):
				t.Fatal("tick blocked behind score submission")
			}

			close(st.release)
			So(<-ended, ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})
	})
}
