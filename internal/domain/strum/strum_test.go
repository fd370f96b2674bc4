package strum_test

import (
	"testing"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/strum"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

func pos(y float64) model.Position { return model.Position{X: 100, Y: y} }

func newDetector() *strum.Detector {
	return strum.NewDetector(
		strum.WithZone(strum.Zone{MinX: 0, MinY: 400, MaxX: 640, MaxY: 700}),
		strum.WithVelocityThreshold(15),
		strum.WithDebounce(150*time.Millisecond),
	)
}

func TestDetector(t *testing.T) {
	Convey("Given a detector with midline at 550", t, func() {
		d := newDetector()

		Convey("When the first sample arrives", func() {
			_, fired := d.Observe(at(0), pos(500), true)

			Convey("Then nothing fires without a previous sample", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When the hand moves down fast across the midline", func() {
			d.Observe(at(0), pos(520), true)
			ev, fired := d.Observe(at(16), pos(580), true)

			Convey("Then a down strum fires with the sample velocity", func() {
				So(fired, ShouldBeTrue)
				So(ev.Direction, ShouldEqual, model.Down)
				So(ev.Velocity, ShouldAlmostEqual, 60)
				So(ev.Timestamp, ShouldEqual, at(16))
			})
		})

		Convey("When the hand moves up fast across the midline", func() {
			d.Observe(at(0), pos(600), true)
			ev, fired := d.Observe(at(16), pos(500), true)

			Convey("Then an up strum fires", func() {
				So(fired, ShouldBeTrue)
				So(ev.Direction, ShouldEqual, model.Up)
				So(ev.Velocity, ShouldAlmostEqual, -100)
			})
		})

		Convey("When a sample lands exactly on the midline", func() {
			d.Observe(at(0), pos(520), true)
			_, fired := d.Observe(at(16), pos(550), true)

			Convey("Then it counts as a crossing", func() {
				So(fired, ShouldBeTrue)
			})
		})

		Convey("When the hand drifts slowly across the midline", func() {
			d.Observe(at(0), pos(545), true)
			_, fired := d.Observe(at(16), pos(555), true)

			Convey("Then the velocity gate suppresses it", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When the speed equals the threshold exactly", func() {
			d.Observe(at(0), pos(540), true)
			_, fired := d.Observe(at(16), pos(555), true)

			Convey("Then it does not fire", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When moving fast without crossing", func() {
			d.Observe(at(0), pos(410), true)
			_, fired := d.Observe(at(16), pos(500), true)

			Convey("Then nothing fires", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When two crossings are closer than the debounce interval", func() {
			d.Observe(at(0), pos(500), true)
			_, first := d.Observe(at(16), pos(600), true)
			_, second := d.Observe(at(100), pos(500), true)
			_, third := d.Observe(at(200), pos(600), true)

			Convey("Then only crossings outside the window fire", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(third, ShouldBeTrue)
			})
		})

		Convey("When the crossing lands exactly on the debounce boundary", func() {
			d.Observe(at(0), pos(500), true)
			d.Observe(at(16), pos(600), true)
			_, fired := d.Observe(at(166), pos(500), true)

			Convey("Then it is still debounced", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When the hand leaves the zone between samples", func() {
			d.Observe(at(0), pos(420), true)
			d.Observe(at(16), model.Position{X: 900, Y: 500}, true)
			_, fired := d.Observe(at(32), pos(690), true)

			Convey("Then the stale sample is not paired with the re-entry", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When the extractor loses the hand for a frame", func() {
			d.Observe(at(0), pos(420), true)
			d.Observe(at(16), model.Position{}, false)
			_, fired := d.Observe(at(32), pos(690), true)

			Convey("Then history is cleared", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When a suppressed crossing is followed by another sample", func() {
			d.Observe(at(0), pos(500), true)
			d.Observe(at(16), pos(600), true)
			d.Observe(at(50), pos(520), true) // debounced crossing, still recorded
			_, fired := d.Observe(at(300), pos(540), true)

			Convey("Then velocity is measured against the latest sample", func() {
				So(fired, ShouldBeFalse)
			})
		})

		Convey("When reset", func() {
			d.Observe(at(0), pos(500), true)
			d.Observe(at(16), pos(600), true)
			d.Reset()
			d.Observe(at(20), pos(500), true)
			_, fired := d.Observe(at(40), pos(600), true)

			Convey("Then debounce history is forgotten too", func() {
				So(fired, ShouldBeTrue)
			})
		})
	})
}

func TestDetectorRate(t *testing.T) {
	Convey("Given an oscillating hand sampled every 16ms", t, func() {
		d := newDetector()
		var events []time.Time
		ys := []float64{450, 650}
		for i := 0; i < 200; i++ {
			now := at(i * 16)
			if ev, ok := d.Observe(now, pos(ys[i%2]), true); ok {
				events = append(events, ev.Timestamp)
			}
		}

		Convey("Then consecutive events are always more than the debounce apart", func() {
			So(len(events), ShouldBeGreaterThan, 1)
			for i := 1; i < len(events); i++ {
				So(events[i].Sub(events[i-1]), ShouldBeGreaterThan, 150*time.Millisecond)
			}
		})
	})
}

func TestZone(t *testing.T) {
	Convey("Given a zone", t, func() {
		z := strum.Zone{MinX: 0, MinY: 400, MaxX: 640, MaxY: 700}

		Convey("Then edges are inclusive", func() {
			So(z.Contains(model.Position{X: 0, Y: 400}), ShouldBeTrue)
			So(z.Contains(model.Position{X: 640, Y: 700}), ShouldBeTrue)
			So(z.Contains(model.Position{X: 641, Y: 500}), ShouldBeFalse)
		})

		Convey("Then the midline is centered", func() {
			So(z.Midline(), ShouldEqual, 550)
		})

		Convey("Then an inverted zone is empty", func() {
			So(strum.Zone{MinX: 10, MaxX: 5, MinY: 0, MaxY: 1}.Empty(), ShouldBeTrue)
		})
	})
}
