package strumsim

import (
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/strum"
)

// Player is a synthetic strumming hand. It rests on one side of the strum
// zone midline and sweeps across it in a half-cosine flick centred on
// each planned strum time, so consecutive strums alternate direction.
type Player struct {
	rng    *rand.Rand
	jitter time.Duration
	skip   float64

	x, mid, amp float64
	wristY      float64
	width       float64
	height      float64

	side    float64 // -1 above the midline, +1 below
	flicks  []time.Time
	planned map[int64]bool
}

// NewPlayer creates a player for zone on a width x height display.
func NewPlayer(seed int64, jitter time.Duration, skip float64, zone strum.Zone, width, height float64) *Player {
	return &Player{
		rng:     rand.New(rand.NewSource(seed)), //nolint:gosec // simulation randomness
		jitter:  jitter,
		skip:    skip,
		x:       (zone.MinX + zone.MaxX) / 2,
		mid:     zone.Midline(),
		amp:     (zone.MaxY - zone.MinY) * 0.35,
		wristY:  height * 0.95,
		width:   width,
		height:  height,
		side:    -1,
		planned: make(map[int64]bool),
	}
}

// Aim plans a strum for arrival, perturbed by the timing error. A skipped
// strum is decided here too.
func (p *Player) Aim(arrival time.Time) {
	if p.skip > 0 && p.rng.Float64() < p.skip {
		return
	}
	at := arrival
	if p.jitter > 0 {
		at = at.Add(time.Duration(p.rng.NormFloat64() * float64(p.jitter)))
	}
	i, _ := slices.BinarySearchFunc(p.flicks, at, func(a, b time.Time) int { return a.Compare(b) })
	p.flicks = slices.Insert(p.flicks, i, at)
}

// Watch plans a strum for every pending note not seen before, predicting
// when it reaches hitX at speed px/s.
func (p *Player) Watch(now time.Time, notes []model.Note, hitX, speed float64) {
	if speed <= 0 {
		return
	}
	for _, n := range notes {
		if n.State != model.Pending || p.planned[n.ID] {
			continue
		}
		p.planned[n.ID] = true
		eta := time.Duration((hitX - n.TrackPosition) / speed * float64(time.Second))
		if eta < 0 {
			continue
		}
		p.Aim(now.Add(eta))
	}
}

// Y returns the fingertip height at now. Calls must not go back in time.
func (p *Player) Y(now time.Time) float64 {
	half := flickWidth / 2
	for len(p.flicks) > 0 {
		start := p.flicks[0].Add(-half)
		if now.Before(start) {
			break
		}
		progress := float64(now.Sub(start)) / float64(flickWidth)
		if progress < 1 {
			return p.mid + p.side*p.amp*math.Cos(math.Pi*progress)
		}
		p.side = -p.side
		p.flicks = p.flicks[1:]
	}
	return p.mid + p.side*p.amp
}

// Frame renders the hand at now as one estimator frame in display
// coordinates.
func (p *Player) Frame(now time.Time) model.Frame {
	y := p.Y(now)
	hand := make(model.Hand, model.LandmarkCount)
	for i := range hand {
		hand[i] = model.Point{X: p.x, Y: y}
	}
	hand[model.LandmarkWrist] = model.Point{X: p.x, Y: p.wristY}
	return model.Frame{Width: p.width, Height: p.height, Hands: []model.Hand{hand}}
}

// Pending returns how many strums are still planned.
func (p *Player) Pending() int { return len(p.flicks) }
