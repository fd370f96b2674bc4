package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type capture struct {
	msgs  []midi.Message
	slept time.Duration
	fail  error
}

func (c *capture) send(msg midi.Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capture) noteOns() []uint8 {
	var keys []uint8
	for _, m := range c.msgs {
		var ch, key, vel uint8
		if m.GetNoteStart(&ch, &key, &vel) {
			keys = append(keys, key)
		}
	}
	return keys
}

func newTestSynth(c *capture) *Synth {
	return NewSynth(c.send,
		WithLogger(logger.Nop()),
		WithSleep(func(d time.Duration) { c.slept += d }),
	)
}

func gHit(dir model.Direction) model.Outcome {
	return model.Outcome{
		Kind:      model.OutcomeHit,
		Note:      model.Note{ID: 1, Label: "G"},
		Rating:    model.Perfect,
		Direction: dir,
		Velocity:  40,
		Fret:      mustShape("320003"),
		Chord:     "G",
	}
}

func TestSynth(t *testing.T) {
	Convey("Given a synth with a capturing sender", t, func() {
		c := &capture{}
		s := newTestSynth(c)
		ctx := context.Background()

		Convey("When a down strum hits a G shape", func() {
			So(s.OnHit(ctx, gHit(model.Down)), ShouldBeNil)

			Convey("Then strings sound low to high and every note is released", func() {
				So(c.noteOns(), ShouldResemble, []uint8{43, 47, 50, 55, 59, 67})
				offs := 0
				for _, m := range c.msgs {
					var ch, key uint8
					if m.GetNoteEnd(&ch, &key) {
						offs++
					}
				}
				So(offs, ShouldEqual, 6)
				So(c.slept, ShouldEqual, 6*defaultStrumSpread+defaultNoteLength)
			})
		})

		Convey("When an up strum hits", func() {
			So(s.OnHit(ctx, gHit(model.Up)), ShouldBeNil)

			Convey("Then strings sound high to low", func() {
				So(c.noteOns(), ShouldResemble, []uint8{67, 59, 55, 50, 47, 43})
			})
		})

		Convey("When the shape has muted strings", func() {
			o := gHit(model.Down)
			o.Fret = mustShape("x32010")
			So(s.OnHit(ctx, o), ShouldBeNil)

			Convey("Then the muted string plays a quiet dead note first", func() {
				var ch, key, vel uint8
				So(c.msgs[0].GetNoteStart(&ch, &key, &vel), ShouldBeTrue)
				So(key, ShouldEqual, uint8(40))
				So(vel, ShouldEqual, uint8(deadVelocity))
			})
		})

		Convey("When no fret state was received", func() {
			o := gHit(model.Down)
			o.Fret = model.FretState{}
			o.Chord = ""
			o.Note.Label = "Em"
			So(s.OnHit(ctx, o), ShouldBeNil)

			Convey("Then the note label's shape is used", func() {
				So(c.noteOns(), ShouldResemble, []uint8{40, 47, 52, 55, 59, 64})
			})
		})

		Convey("When a note is missed", func() {
			So(s.OnMiss(ctx, model.Outcome{Kind: model.OutcomeMissed}), ShouldBeNil)

			Convey("Then all six strings chunk quietly", func() {
				So(c.noteOns(), ShouldResemble, []uint8{40, 45, 50, 55, 59, 64})
			})
		})

		Convey("When the sender fails", func() {
			c.fail = errors.New("port gone")

			So(errors.Is(s.OnHit(ctx, gHit(model.Down)), ErrSend), ShouldBeTrue)
		})
	})
}

func TestVelocity(t *testing.T) {
	Convey("Velocity grows with speed and Perfect is accented", t, func() {
		slow := velocity(model.Outcome{Velocity: 10})
		fast := velocity(model.Outcome{Velocity: -60})
		perfect := velocity(model.Outcome{Velocity: 10, Rating: model.Perfect})

		So(fast, ShouldBeGreaterThan, slow)
		So(perfect, ShouldEqual, slow+perfectAccent)
		So(velocity(model.Outcome{Velocity: 1000}), ShouldEqual, uint8(127))
	})
}

func TestRecorder(t *testing.T) {
	Convey("Given a recorder", t, func() {
		start := time.Unix(1700000000, 0)
		r := NewRecorder(start, 0)
		ctx := context.Background()

		Convey("When nothing was recorded", func() {
			_, err := r.WriteTo(&bytes.Buffer{})
			So(errors.Is(err, ErrNoRecords), ShouldBeTrue)
		})

		Convey("When outcomes arrive out of order", func() {
			late := gHit(model.Down)
			late.Note.ResolvedAt = start.Add(2 * time.Second)
			early := model.Outcome{Kind: model.OutcomeMissed, Note: model.Note{ResolvedAt: start.Add(time.Second)}}
			So(r.OnHit(ctx, late), ShouldBeNil)
			So(r.OnMiss(ctx, early), ShouldBeNil)

			var buf bytes.Buffer
			_, err := r.WriteTo(&buf)
			So(err, ShouldBeNil)

			Convey("Then the file decodes with the chunk before the chord", func() {
				file, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
				So(err, ShouldBeNil)
				So(len(file.Tracks), ShouldEqual, 1)

				var keys []uint8
				for _, ev := range file.Tracks[0] {
					var ch, key, vel uint8
					if ev.Message.GetNoteOn(&ch, &key, &vel) {
						keys = append(keys, key)
					}
				}
				So(len(keys), ShouldEqual, 12)
				So(keys[:6], ShouldResemble, []uint8{40, 45, 50, 55, 59, 64})
				So(keys[6:], ShouldResemble, []uint8{43, 47, 50, 55, 59, 67})
				So(r.Len(), ShouldEqual, 24)
			})
		})
	})
}
