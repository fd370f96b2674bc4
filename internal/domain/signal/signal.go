// Package signal reduces raw hand landmarks to a single display position.
package signal

import (
	"github.com/okian/airstrum/internal/domain/model"
)

// Default extractor configuration constants.
const (
	defaultDisplayWidth      = 1280
	defaultDisplayHeight     = 720
	defaultWristGateFraction = 0.4
)

// fingertips are averaged to form the strumming position.
var fingertips = [...]int{model.LandmarkIndexTip, model.LandmarkMiddleTip, model.LandmarkRingTip}

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithDisplaySize sets the target display dimensions.
func WithDisplaySize(width, height float64) Option {
	return func(e *Extractor) {
		if width > 0 && height > 0 {
			e.displayW = width
			e.displayH = height
		}
	}
}

// WithWristGate sets the fraction of display height above which a wrist
// disqualifies its hand.
func WithWristGate(fraction float64) Option {
	return func(e *Extractor) {
		if fraction >= 0 && fraction <= 1 {
			e.gate = fraction
		}
	}
}

// WithMirror flips source X so the display behaves like a mirror.
func WithMirror(mirror bool) Option {
	return func(e *Extractor) {
		e.mirror = mirror
	}
}

// Extractor maps a frame to an optional display position. It is stateless.
type Extractor struct {
	displayW float64
	displayH float64
	gate     float64
	mirror   bool
}

// NewExtractor creates an extractor with configuration options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		displayW: defaultDisplayWidth,
		displayH: defaultDisplayHeight,
		gate:     defaultWristGateFraction,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the position of the leftmost gated hand, or false when
// no hand qualifies.
func (e *Extractor) Extract(frame model.Frame) (model.Position, bool) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return model.Position{}, false
	}

	best := -1
	var bestWrist model.Position
	for i, hand := range frame.Hands {
		if len(hand) <= model.LandmarkRingTip {
			continue
		}
		wrist := e.toDisplay(frame, hand[model.LandmarkWrist])
		if wrist.Y < e.gate*e.displayH {
			continue
		}
		// Strict less keeps the earliest detection on ties.
		if best < 0 || wrist.X < bestWrist.X {
			best = i
			bestWrist = wrist
		}
	}
	if best < 0 {
		return model.Position{}, false
	}

	hand := frame.Hands[best]
	var sum model.Position
	for _, idx := range fingertips {
		p := e.toDisplay(frame, hand[idx])
		sum.X += p.X
		sum.Y += p.Y
	}
	n := float64(len(fingertips))
	return model.Position{X: sum.X / n, Y: sum.Y / n}, true
}

func (e *Extractor) toDisplay(frame model.Frame, p model.Point) model.Position {
	x := p.X * e.displayW / frame.Width
	if e.mirror {
		x = e.displayW - x
	}
	return model.Position{X: x, Y: p.Y * e.displayH / frame.Height}
}
