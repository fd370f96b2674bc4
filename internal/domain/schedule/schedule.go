// Package schedule spawns target notes at a paced interval and scrolls them
// along the track.
package schedule

import (
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// Default scheduler configuration constants.
const (
	defaultSpawnInterval = 1500 * time.Millisecond
	defaultSpeed         = 300.0 // display pixels per second
	defaultRandomSeed    = 42
)

// DefaultLabels is the chord set used when none is configured.
var DefaultLabels = []string{"C", "G", "Am", "F", "D", "Em"}

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithSpawnInterval sets the time between note spawns.
func WithSpawnInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSpeed sets the note speed in display pixels per second.
func WithSpeed(speed float64) Option {
	return func(s *Scheduler) {
		if speed >= 0 {
			s.speed = speed
		}
	}
}

// WithTrackStart sets the spawn position.
func WithTrackStart(x float64) Option {
	return func(s *Scheduler) {
		s.start = x
	}
}

// WithLabels sets the label set notes are drawn from.
func WithLabels(labels []string) Option {
	return func(s *Scheduler) {
		if len(labels) > 0 {
			s.labels = append([]string(nil), labels...)
		}
	}
}

// WithPicker sets the label picker.
func WithPicker(p LabelPicker) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.picker = p
		}
	}
}

// WithMaxTickElapsed caps the time one tick may advance notes by. Zero,
// the default, disables the cap; a cap below the real tick gap makes note
// speed depend on the tick rate.
func WithMaxTickElapsed(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.maxElapsed = d
		}
	}
}

// Scheduler owns spawn pacing and note advance.
type Scheduler struct {
	interval   time.Duration
	speed      float64
	start      float64
	labels     []string
	picker     LabelPicker
	maxElapsed time.Duration

	nextID    int64
	lastSpawn time.Time
	spawned   bool
	lastTick  time.Time
	ticked    bool
}

// NewScheduler creates a scheduler with configuration options.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: defaultSpawnInterval,
		speed:    defaultSpeed,
		labels:   DefaultLabels,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.picker == nil {
		s.picker = NewRandomPicker(defaultRandomSeed)
	}
	return s
}

// Tick advances every active note by speed*elapsed and spawns a new note
// when the interval has passed. The returned slice may share notes' backing
// array. Newly spawned notes start exactly at the track start.
func (s *Scheduler) Tick(now time.Time, notes []model.Note) []model.Note {
	elapsed := s.elapsed(now)
	if step := s.speed * elapsed.Seconds(); step > 0 {
		for i := range notes {
			notes[i].TrackPosition += step
		}
	}

	if !s.spawned || now.Sub(s.lastSpawn) > s.interval {
		s.nextID++
		notes = append(notes, model.Note{
			ID:            s.nextID,
			SpawnTime:     now,
			TrackPosition: s.start,
			Label:         s.picker.Pick(s.labels),
			State:         model.Pending,
		})
		s.lastSpawn = now
		s.spawned = true
	}
	return notes
}

func (s *Scheduler) elapsed(now time.Time) time.Duration {
	if !s.ticked {
		s.lastTick = now
		s.ticked = true
		return 0
	}
	d := now.Sub(s.lastTick)
	s.lastTick = now
	if d < 0 {
		return 0
	}
	if s.maxElapsed > 0 && d > s.maxElapsed {
		return s.maxElapsed
	}
	return d
}

// Reset forgets pacing history and restarts note IDs at 1.
func (s *Scheduler) Reset() {
	s.nextID = 0
	s.lastSpawn = time.Time{}
	s.spawned = false
	s.lastTick = time.Time{}
	s.ticked = false
}
