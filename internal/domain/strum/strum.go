// Package strum turns a stream of display positions into strum events.
//
// A strum fires when consecutive samples inside the zone straddle the
// zone's horizontal midline fast enough, at most once per debounce window.
package strum

import (
	"math"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// Default detector configuration constants.
const (
	defaultVelocityThreshold = 15.0
	defaultDebounce          = 150 * time.Millisecond
)

// Zone is an inclusive rectangle in display coordinates.
type Zone struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// DefaultZone covers the lower left quadrant of a 1280x720 display.
var DefaultZone = Zone{MinX: 0, MinY: 400, MaxX: 640, MaxY: 700}

// Contains reports whether p lies inside the zone.
func (z Zone) Contains(p model.Position) bool {
	return p.X >= z.MinX && p.X <= z.MaxX && p.Y >= z.MinY && p.Y <= z.MaxY
}

// Midline is the vertical center of the zone.
func (z Zone) Midline() float64 {
	return (z.MinY + z.MaxY) / 2
}

// Empty reports whether the zone has no area.
func (z Zone) Empty() bool {
	return z.MaxX <= z.MinX || z.MaxY <= z.MinY
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithZone sets the strum zone.
func WithZone(z Zone) Option {
	return func(d *Detector) {
		if !z.Empty() {
			d.zone = z
		}
	}
}

// WithVelocityThreshold sets the minimum per-sample vertical speed.
func WithVelocityThreshold(v float64) Option {
	return func(d *Detector) {
		if v >= 0 {
			d.threshold = v
		}
	}
}

// WithDebounce sets the minimum interval between events.
func WithDebounce(interval time.Duration) Option {
	return func(d *Detector) {
		if interval >= 0 {
			d.debounce = interval
		}
	}
}

// Detector is the stateful zero-crossing detector. It is not safe for
// concurrent use; one tick driver owns it.
type Detector struct {
	zone      Zone
	threshold float64
	debounce  time.Duration

	last      model.Position
	hasLast   bool
	lastEvent time.Time
	hasEvent  bool
}

// NewDetector creates a detector with configuration options.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		zone:      DefaultZone,
		threshold: defaultVelocityThreshold,
		debounce:  defaultDebounce,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe consumes one sample. ok is false when the extractor had no
// signal this frame.
func (d *Detector) Observe(now time.Time, pos model.Position, ok bool) (model.StrumEvent, bool) {
	if !ok || !d.zone.Contains(pos) {
		// Drop history so a re-entry on the other side cannot pair with it.
		d.hasLast = false
		return model.StrumEvent{}, false
	}

	var (
		ev    model.StrumEvent
		fired bool
	)
	if d.hasLast {
		vel := pos.Y - d.last.Y
		mid := d.zone.Midline()
		crossed := (d.last.Y-mid)*(pos.Y-mid) <= 0
		if crossed && math.Abs(vel) > d.threshold && d.debounced(now) {
			dir := model.Up
			if vel > 0 {
				dir = model.Down
			}
			ev = model.StrumEvent{Timestamp: now, Direction: dir, Velocity: vel}
			fired = true
			d.lastEvent = now
			d.hasEvent = true
		}
	}

	d.last = pos
	d.hasLast = true
	return ev, fired
}

func (d *Detector) debounced(now time.Time) bool {
	return !d.hasEvent || now.Sub(d.lastEvent) > d.debounce
}

// Reset clears all history.
func (d *Detector) Reset() {
	d.last = model.Position{}
	d.hasLast = false
	d.lastEvent = time.Time{}
	d.hasEvent = false
}

// Zone returns the configured strum zone.
func (d *Detector) Zone() Zone {
	return d.zone
}
