package strumsim

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/airstrum/internal/adapters/http/api"
	service "github.com/okian/airstrum/internal/app"
	"github.com/okian/airstrum/internal/config"
	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/strum"
	"github.com/okian/airstrum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/gomidi/midi/v2"
)

func init() {
	_ = logger.Init()
}

func TestConfig(t *testing.T) {
	Convey("Given simulator configs", t, func() {
		cfg := DefaultConfig()
		So(cfg.Validate(), ShouldBeNil)
		So(cfg.SpawnInterval(), ShouldEqual, 1500*time.Millisecond)

		Convey("Then degenerate values are rejected", func() {
			for _, mut := range []func(*Config){
				func(c *Config) { c.Duration = 0 },
				func(c *Config) { c.BPM = 0 },
				func(c *Config) { c.Tick = 0 },
				func(c *Config) { c.Jitter = -time.Millisecond },
				func(c *Config) { c.Skip = 1.5 },
				func(c *Config) { c.BPM = 1200 },
			} {
				bad := DefaultConfig()
				mut(&bad)
				So(errors.Is(bad.Validate(), ErrInvalidConfig), ShouldBeTrue)
			}
		})
	})
}

func TestPlayer(t *testing.T) {
	Convey("Given a player aiming at one strum", t, func() {
		zone := strum.DefaultZone
		p := NewPlayer(1, 0, 0, zone, 1280, 720)
		t0 := time.Unix(100, 0)
		p.Aim(t0.Add(time.Second))

		Convey("Then the hand rests above the midline until the flick", func() {
			So(p.Y(t0), ShouldBeLessThan, zone.Midline())
			So(p.Y(t0.Add(time.Second)), ShouldAlmostEqual, zone.Midline(), 0.001)
		})

		Convey("Then it rests below afterwards and the plan is consumed", func() {
			So(p.Y(t0.Add(2*time.Second)), ShouldBeGreaterThan, zone.Midline())
			So(p.Pending(), ShouldEqual, 0)
		})

		Convey("Then frames keep the hand inside the zone with a gated wrist", func() {
			f := p.Frame(t0)
			So(len(f.Hands), ShouldEqual, 1)
			tip := f.Hands[0][model.LandmarkIndexTip]
			So(zone.Contains(model.Position{X: tip.X, Y: tip.Y}), ShouldBeTrue)
			So(f.Hands[0][model.LandmarkWrist].Y, ShouldBeGreaterThan, 0.4*720)
		})
	})

	Convey("Given a player that skips everything", t, func() {
		p := NewPlayer(1, 0, 1, strum.DefaultZone, 1280, 720)
		p.Aim(time.Unix(100, 0))
		So(p.Pending(), ShouldEqual, 0)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a perfect player", t, func() {
		cfg := DefaultConfig()
		cfg.Jitter = 0
		cfg.Labels = []string{"G", "C"}
		cfg.Record = filepath.Join(t.TempDir(), "sim.mid")
		var out bytes.Buffer

		rep, err := Run(context.Background(), cfg, &out)
		So(err, ShouldBeNil)

		Convey("Then every note that reached the line is a perfect hit", func() {
			So(rep.Summary.MissCount, ShouldEqual, 0)
			So(rep.Summary.PerfectCount, ShouldBeGreaterThan, 10)
			So(rep.Summary.GreatCount, ShouldEqual, 0)
			So(rep.Summary.MaxCombo, ShouldEqual, rep.Summary.PerfectCount)
			So(rep.Whiffs, ShouldEqual, 0)
			So(rep.Strums, ShouldEqual, rep.Summary.PerfectCount)
			So(rep.Outcomes[0].Note.Label, ShouldEqual, "G")
			So(rep.Outcomes[1].Note.Label, ShouldEqual, "C")
		})

		Convey("Then alternate strums change direction", func() {
			So(rep.Outcomes[0].Direction, ShouldEqual, model.Down)
			So(rep.Outcomes[1].Direction, ShouldEqual, model.Up)
		})

		Convey("Then the report and recording are written", func() {
			So(out.String(), ShouldContainSubstring, "perfect")
			So(out.String(), ShouldContainSubstring, "max combo")
			info, err := os.Stat(cfg.Record)
			So(err, ShouldBeNil)
			So(info.Size(), ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given a player that never strums", t, func() {
		cfg := DefaultConfig()
		cfg.Skip = 1
		rep, err := Run(context.Background(), cfg, &bytes.Buffer{})
		So(err, ShouldBeNil)

		Convey("Then every passed note is missed", func() {
			So(rep.Strums, ShouldEqual, 0)
			So(rep.Summary.Score, ShouldEqual, 0)
			So(rep.Summary.MissCount, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given two runs with the same seed", t, func() {
		cfg := DefaultConfig()
		cfg.Seed = 7
		cfg.Skip = 0.2
		a, err := Run(context.Background(), cfg, &bytes.Buffer{})
		So(err, ShouldBeNil)
		b, err := Run(context.Background(), cfg, &bytes.Buffer{})
		So(err, ShouldBeNil)

		Convey("Then they score the same", func() {
			So(b.Summary.Score, ShouldEqual, a.Summary.Score)
			So(b.Summary.MissCount, ShouldEqual, a.Summary.MissCount)
			So(b.Strums, ShouldEqual, a.Strums)
			So(len(b.Outcomes), ShouldEqual, len(a.Outcomes))
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, DefaultConfig(), &bytes.Buffer{})
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestChordMessage(t *testing.T) {
	Convey("Given built-in chord shapes", t, func() {
		msg, ok := ChordMessage("C", time.UnixMilli(1000))
		So(ok, ShouldBeTrue)
		So(msg.Type, ShouldEqual, "chord_change")
		So(msg.Timestamp, ShouldEqual, 1000)
		So(msg.Fingering[0], ShouldResemble, Fingering{String: 6, Fret: -1})
		So(msg.Fingering[1], ShouldResemble, Fingering{String: 5, Fret: 3})
		So(len(msg.Fingering), ShouldEqual, 6)

		_, ok = ChordMessage("H#", time.Now())
		So(ok, ShouldBeFalse)
	})
}

func TestStream(t *testing.T) {
	Convey("Given a running service behind its API", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.DBPath = ":memory:"
		cfg.WorkerCount = 1
		svc, err := service.New(cfg,
			service.WithLogger(logger.Nop()),
			service.WithSender(func(midi.Message) error { return nil }),
		)
		So(err, ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		apiServer := api.NewServer(svc, api.WithLogger(logger.Nop()))
		mux := http.NewServeMux()
		apiServer.Register(ctx, mux)
		srv := httptest.NewServer(apiServer.Handler(mux))
		defer srv.Close()
		defer func() { _ = apiServer.Close() }()

		Convey("When a short session is streamed", func() {
			sim := DefaultConfig()
			sim.Duration = 300 * time.Millisecond
			sim.Labels = []string{"Em"}
			var out bytes.Buffer
			summary, err := Stream(ctx, NewClient(srv.URL), sim, &out)

			Convey("Then the service ends the session and reports it", func() {
				So(err, ShouldBeNil)
				So(summary["session_id"], ShouldNotBeEmpty)
				So(summary["already_ended"], ShouldEqual, false)
				So(out.String(), ShouldContainSubstring, "sent ")
				So(svc.GetStats()["chord"], ShouldEqual, "Em")
			})
		})
	})
}
