// Package judge is the scoring state machine: it matches strum events to
// notes, rates hits, tracks combo and retires resolved notes.
package judge

import (
	"math"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// Scoring constants.
const (
	PerfectAward   = 1000
	GreatAward     = 500
	perfectDivisor = 3.5

	defaultHitZoneX     = 1080.0
	defaultHitWindow    = 120.0
	defaultDisplayWidth = 1280.0
	defaultRetireMargin = 100.0
)

// Option applies a configuration option to the Judge.
type Option func(*Judge)

// WithHitZone sets the hit line position and the hit window half-width.
func WithHitZone(x, window float64) Option {
	return func(j *Judge) {
		if window > 0 {
			j.hitX = x
			j.window = window
		}
	}
}

// WithRetirement sets the display width and the margin past it after
// which notes leave the active set.
func WithRetirement(displayWidth, margin float64) Option {
	return func(j *Judge) {
		if displayWidth > 0 && margin >= 0 {
			j.displayW = displayWidth
			j.margin = margin
		}
	}
}

// Judge resolves notes. It holds configuration only; all mutable state is
// passed in, so one Judge can serve any number of sessions.
type Judge struct {
	hitX     float64
	window   float64
	displayW float64
	margin   float64
}

// NewJudge creates a judge with configuration options.
func NewJudge(opts ...Option) *Judge {
	j := &Judge{
		hitX:     defaultHitZoneX,
		window:   defaultHitWindow,
		displayW: defaultDisplayWidth,
		margin:   defaultRetireMargin,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// HitZoneX returns the hit line position.
func (j *Judge) HitZoneX() float64 { return j.hitX }

// HitWindow returns the hit window half-width.
func (j *Judge) HitWindow() float64 { return j.window }

// Rate grades a hit by its distance from the hit line.
func (j *Judge) Rate(distance float64) model.Rating {
	if distance < j.window/perfectDivisor {
		return model.Perfect
	}
	return model.Great
}

// Resolve applies one tick of judgement to notes in place: an optional
// strum event first, then the miss sweep. It returns the outcomes in the
// order they happened. Hit outcomes carry no fret data; the caller
// attaches it.
func (j *Judge) Resolve(now time.Time, notes []model.Note, event *model.StrumEvent, score *model.ScoreState) []model.Outcome {
	var outcomes []model.Outcome

	if event != nil {
		if idx, distance, ok := j.nearest(notes); ok {
			n := &notes[idx]
			n.State = model.Hit
			n.ResolvedAt = now

			rating := j.Rate(distance)
			award := GreatAward
			if rating == model.Perfect {
				award = PerfectAward
				score.PerfectCount++
			} else {
				score.GreatCount++
			}
			score.Score += award
			score.Combo++
			if score.Combo > score.MaxCombo {
				score.MaxCombo = score.Combo
			}

			outcomes = append(outcomes, model.Outcome{
				Kind:      model.OutcomeHit,
				Note:      *n,
				Rating:    rating,
				Award:     award,
				Direction: event.Direction,
				Velocity:  event.Velocity,
			})
		}
	}

	late := j.hitX + j.window
	for i := range notes {
		n := &notes[i]
		if n.State != model.Pending || n.TrackPosition <= late {
			continue
		}
		n.State = model.Missed
		n.ResolvedAt = now
		score.Combo = 0
		score.MissCount++
		outcomes = append(outcomes, model.Outcome{Kind: model.OutcomeMissed, Note: *n})
	}

	return outcomes
}

// nearest folds over pending notes inside the window, keyed by
// (distance, id).
func (j *Judge) nearest(notes []model.Note) (int, float64, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i := range notes {
		n := &notes[i]
		if n.State != model.Pending {
			continue
		}
		d := math.Abs(n.TrackPosition - j.hitX)
		if d >= j.window {
			continue
		}
		if best < 0 || d < bestDist || (d == bestDist && n.ID < notes[best].ID) {
			best = i
			bestDist = d
		}
	}
	return best, bestDist, best >= 0
}

// Retire drops hit notes and notes that scrolled past the display margin.
// It filters in place and returns the shortened slice.
func (j *Judge) Retire(notes []model.Note) []model.Note {
	limit := j.displayW + j.margin
	kept := notes[:0]
	for _, n := range notes {
		if n.State == model.Hit || n.TrackPosition > limit {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}
