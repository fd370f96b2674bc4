package engine

import (
	"fmt"
	"time"

	"github.com/okian/airstrum/internal/domain/schedule"
	"github.com/okian/airstrum/internal/domain/strum"
)

// Config carries every tunable of the matching engine.
type Config struct {
	DisplayWidth  float64
	DisplayHeight float64
	WristGate     float64 // fraction of display height
	Mirror        bool

	Zone              strum.Zone
	VelocityThreshold float64 // display px per sample
	Debounce          time.Duration

	SpawnInterval  time.Duration
	Speed          float64 // display px per second
	TrackStart     float64
	MaxTickElapsed time.Duration
	Labels         []string

	HitZoneOffset float64 // hit line distance from the track end
	HitWindow     float64
	RetireMargin  float64
}

// DefaultConfig returns the tuning used by the browser build of the game.
func DefaultConfig() Config {
	return Config{
		DisplayWidth:      1280,
		DisplayHeight:     720,
		WristGate:         0.4,
		Zone:              strum.DefaultZone,
		VelocityThreshold: 15,
		Debounce:          150 * time.Millisecond,
		SpawnInterval:     1500 * time.Millisecond,
		Speed:             300,
		TrackStart:        0,
		MaxTickElapsed:    0,
		Labels:            append([]string(nil), schedule.DefaultLabels...),
		HitZoneOffset:     200,
		HitWindow:         120,
		RetireMargin:      100,
	}
}

// HitZoneX is the absolute hit line position on the track.
func (c Config) HitZoneX() float64 {
	return c.DisplayWidth - c.HitZoneOffset
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.DisplayWidth <= 0 || c.DisplayHeight <= 0:
		return fmt.Errorf("%w: display must be positive, got %vx%v", ErrInvalidConfig, c.DisplayWidth, c.DisplayHeight)
	case c.WristGate < 0 || c.WristGate > 1:
		return fmt.Errorf("%w: wrist gate %v outside [0,1]", ErrInvalidConfig, c.WristGate)
	case c.Zone.Empty():
		return fmt.Errorf("%w: strum zone has no area", ErrInvalidConfig)
	case c.VelocityThreshold < 0:
		return fmt.Errorf("%w: velocity threshold must not be negative", ErrInvalidConfig)
	case c.Debounce < 0:
		return fmt.Errorf("%w: debounce must not be negative", ErrInvalidConfig)
	case c.SpawnInterval <= 0:
		return fmt.Errorf("%w: spawn interval must be positive", ErrInvalidConfig)
	case c.Speed < 0:
		return fmt.Errorf("%w: speed must not be negative", ErrInvalidConfig)
	case c.MaxTickElapsed < 0:
		return fmt.Errorf("%w: max tick elapsed must not be negative", ErrInvalidConfig)
	case len(c.Labels) == 0:
		return fmt.Errorf("%w: at least one label is required", ErrInvalidConfig)
	case c.HitWindow <= 0:
		return fmt.Errorf("%w: hit window must be positive", ErrInvalidConfig)
	case c.RetireMargin < 0:
		return fmt.Errorf("%w: retire margin must not be negative", ErrInvalidConfig)
	case c.HitZoneX() <= c.TrackStart:
		return fmt.Errorf("%w: hit line %v is not ahead of track start %v", ErrInvalidConfig, c.HitZoneX(), c.TrackStart)
	}
	return nil
}
