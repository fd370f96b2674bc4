package audio

import (
	"cmp"
	"slices"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"gitlab.com/gomidi/midi/v2"
)

// openStrings holds standard tuning pitches, low E first.
var openStrings = [model.StringCount]uint8{40, 45, 50, 55, 59, 64} //nolint:gochecknoglobals // tuning table

// shapes voices chord labels when no fret state was received.
var shapes = map[string]model.FretState{ //nolint:gochecknoglobals // chord table
	"C":  mustShape("x32010"),
	"G":  mustShape("320003"),
	"Am": mustShape("x02210"),
	"F":  mustShape("133211"),
	"D":  mustShape("xx0232"),
	"Em": mustShape("022000"),
	"E":  mustShape("022100"),
	"A":  mustShape("x02220"),
	"Dm": mustShape("xx0231"),
}

func mustShape(s string) model.FretState {
	var f model.FretState
	for i, r := range s {
		switch {
		case r == 'x':
			f[i] = model.MutedSlot()
		case r >= '0' && r <= '9':
			f[i] = model.FretAt(int(r - '0'))
		default:
			panic("bad chord shape " + s)
		}
	}
	return f
}

// Shape returns the built-in voicing for a chord label.
func Shape(label string) (model.FretState, bool) {
	f, ok := shapes[label]
	return f, ok
}

// step is one message at an offset from the start of a gesture.
type step struct {
	at  time.Duration
	msg midi.Message
}

type voicer struct {
	channel uint8
	spread  time.Duration
	length  time.Duration
}

const (
	deadVelocity  = 20
	chunkVelocity = 30
	deadLength    = 30 * time.Millisecond
	perfectAccent = 10
)

// velocity maps strum speed to MIDI velocity.
func velocity(o model.Outcome) uint8 { //nolint:gocritic // hugeParam
	speed := o.Velocity
	if speed < 0 {
		speed = -speed
	}
	v := 56 + speed*1.1
	if o.Rating == model.Perfect {
		v += perfectAccent
	}
	return uint8(min(max(v, 40), 127))
}

// voice returns the fret state to play for a hit.
func voice(o model.Outcome) model.FretState { //nolint:gocritic // hugeParam
	for _, s := range o.Fret {
		if s.IsUsed() {
			return o.Fret
		}
	}
	label := o.Chord
	if label == "" {
		label = o.Note.Label
	}
	if f, ok := Shape(label); ok {
		return f
	}
	var open model.FretState
	for i := range open {
		open[i] = model.FretAt(0)
	}
	return open
}

// plan lays out the messages for one outcome. Down strums run low to high
// strings, up strums high to low.
func (v voicer) plan(o model.Outcome) []step { //nolint:gocritic // hugeParam
	if o.Kind == model.OutcomeMissed {
		return v.chunk()
	}

	shape := voice(o)
	order := make([]int, 0, model.StringCount)
	for i := range model.StringCount {
		order = append(order, i)
	}
	if o.Direction == model.Up {
		for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
			order[l], order[r] = order[r], order[l]
		}
	}

	vel := velocity(o)
	var steps, offs []step
	var at time.Duration
	for _, i := range order {
		slot := shape[i]
		if !slot.IsUsed() {
			continue
		}
		switch slot.Kind {
		case model.Muted:
			steps = append(steps,
				step{at: at, msg: midi.NoteOn(v.channel, openStrings[i], deadVelocity)},
				step{at: at + deadLength, msg: midi.NoteOff(v.channel, openStrings[i])},
			)
		case model.Fretted:
			key := uint8(min(int(openStrings[i])+slot.Fret, 127))
			steps = append(steps, step{at: at, msg: midi.NoteOn(v.channel, key, vel)})
			offs = append(offs, step{msg: midi.NoteOff(v.channel, key)})
		}
		at += v.spread
	}
	end := at + v.length
	for _, off := range offs {
		off.at = end
		steps = append(steps, off)
	}
	sortSteps(steps)
	return steps
}

func (v voicer) chunk() []step {
	steps := make([]step, 0, 2*model.StringCount)
	for _, key := range openStrings {
		steps = append(steps, step{at: 0, msg: midi.NoteOn(v.channel, key, chunkVelocity)})
	}
	for _, key := range openStrings {
		steps = append(steps, step{at: deadLength, msg: midi.NoteOff(v.channel, key)})
	}
	return steps
}

// sortSteps orders by offset, keeping insertion order for ties.
func sortSteps(steps []step) {
	slices.SortStableFunc(steps, func(a, b step) int { return cmp.Compare(a.at, b.at) })
}
