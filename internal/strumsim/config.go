// Package strumsim plays the strum game with a synthetic hand. It drives
// an in-process engine on a virtual clock, or streams frames to a running
// service.
package strumsim

import (
	"errors"
	"fmt"
	"time"
)

// Default simulator configuration constants.
const (
	DefaultDuration = 30 * time.Second
	DefaultBPM      = 40.0
	DefaultTick     = 16 * time.Millisecond
	DefaultJitter   = 40 * time.Millisecond

	// flickWidth is how long one strum takes to sweep across the zone.
	flickWidth = 60 * time.Millisecond
)

// ErrInvalidConfig is returned for configurations the simulator cannot run.
var ErrInvalidConfig = errors.New("invalid simulator config")

// Config holds one simulated session.
type Config struct {
	Seed     int64         // seeds label choice, timing error and skips
	Duration time.Duration // session length on the virtual clock
	BPM      float64       // one note per beat
	Labels   []string      // replayed in order; empty draws from the defaults
	Tick     time.Duration // engine tick period
	Jitter   time.Duration // standard deviation of strum timing error
	Skip     float64       // probability of letting a note pass, 0..1
	Record   string        // optional .mid output path
	Verbose  bool          // print every strum
}

// DefaultConfig returns a 30s session at 40 BPM.
func DefaultConfig() Config {
	return Config{
		Duration: DefaultDuration,
		BPM:      DefaultBPM,
		Tick:     DefaultTick,
		Jitter:   DefaultJitter,
	}
}

// SpawnInterval converts BPM to the note spawn interval.
func (c Config) SpawnInterval() time.Duration {
	return time.Duration(float64(time.Minute) / c.BPM)
}

// Validate rejects degenerate simulator settings.
func (c Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	case c.BPM <= 0:
		return fmt.Errorf("%w: bpm must be positive", ErrInvalidConfig)
	case c.Tick <= 0:
		return fmt.Errorf("%w: tick must be positive", ErrInvalidConfig)
	case c.Jitter < 0:
		return fmt.Errorf("%w: jitter must not be negative", ErrInvalidConfig)
	case c.Skip < 0 || c.Skip > 1:
		return fmt.Errorf("%w: skip must be within 0..1", ErrInvalidConfig)
	case c.SpawnInterval() <= 2*flickWidth:
		return fmt.Errorf("%w: bpm %v is too fast to strum", ErrInvalidConfig, c.BPM)
	}
	return nil
}
