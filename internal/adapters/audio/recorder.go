package audio

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"gitlab.com/gomidi/midi/v2/smf"
)

const recordTempoBPM = 120.0

type recorded struct {
	at  time.Time
	seq int
	msg []byte
}

// Recorder captures outcomes as a standard MIDI file. Outcomes are placed
// by their resolution time, so dispatch order does not matter.
type Recorder struct {
	mu     sync.Mutex
	voicer voicer
	events []recorded
	start  time.Time
	seq    int
}

// NewRecorder creates a recorder. Events are timed relative to start; a
// zero start uses the first recorded outcome.
func NewRecorder(start time.Time, channel uint8) *Recorder {
	return &Recorder{
		start:  start,
		voicer: voicer{channel: channel & 0x0f, spread: defaultStrumSpread, length: defaultNoteLength},
	}
}

func (r *Recorder) OnHit(_ context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	r.add(o)
	return nil
}

func (r *Recorder) OnMiss(_ context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	r.add(o)
	return nil
}

func (r *Recorder) add(o model.Outcome) { //nolint:gocritic // hugeParam
	r.mu.Lock()
	defer r.mu.Unlock()

	at := o.Note.ResolvedAt
	if r.start.IsZero() {
		r.start = at
	}
	if at.Before(r.start) {
		at = r.start
	}
	for _, st := range r.voicer.plan(o) {
		r.events = append(r.events, recorded{at: at.Add(st.at), seq: r.seq, msg: st.msg})
		r.seq++
	}
}

// Len returns the number of recorded MIDI messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// WriteTo encodes the recording as a single-track SMF.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	events := slices.Clone(r.events)
	start := r.start
	r.mu.Unlock()

	if len(events) == 0 {
		return 0, ErrNoRecords
	}
	slices.SortFunc(events, func(a, b recorded) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	ticks := smf.MetricTicks(960)
	var track smf.Track
	track.Add(0, smf.MetaTempo(recordTempoBPM))
	var last time.Duration
	for _, e := range events {
		off := e.at.Sub(start)
		track.Add(ticks.Ticks(recordTempoBPM, off-last), e.msg)
		last = off
	}
	track.Close(0)

	file := smf.New()
	file.TimeFormat = ticks
	if err := file.Add(track); err != nil {
		return 0, fmt.Errorf("smf add track: %w", err)
	}
	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return 0, fmt.Errorf("smf encode: %w", err)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// WriteFile saves the recording to path.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
