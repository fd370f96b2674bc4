// Package model contains domain models passed between layers.
package model

import "time"

// Landmark indices in a hand (21-point hand model ordering).
const (
	LandmarkWrist     = 0
	LandmarkIndexTip  = 8
	LandmarkMiddleTip = 12
	LandmarkRingTip   = 16
	LandmarkCount     = 21
)

// Point is a single landmark in source-frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand is the ordered landmark list of one detected hand.
type Hand []Point

// Frame is one estimator output: every detected hand plus the source size.
type Frame struct {
	Hands  []Hand  `json:"hands"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Position is a point in display coordinates.
type Position struct {
	X float64
	Y float64
}

// Direction of a strum gesture.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// StrumEvent is produced by the detector and consumed in the same tick.
type StrumEvent struct {
	Timestamp time.Time
	Direction Direction
	Velocity  float64 // signed display pixels per sample
}

// NoteState is the judge state of a note.
type NoteState int

const (
	Pending NoteState = iota
	Hit
	Missed
)

func (s NoteState) String() string {
	switch s {
	case Hit:
		return "hit"
	case Missed:
		return "missed"
	default:
		return "pending"
	}
}

// Note is a scrolling target.
type Note struct {
	ID            int64
	SpawnTime     time.Time
	TrackPosition float64
	Label         string
	State         NoteState
	ResolvedAt    time.Time // zero while pending
}

// Rating grades a hit.
type Rating int

const (
	Great Rating = iota
	Perfect
)

func (r Rating) String() string {
	if r == Perfect {
		return "perfect"
	}
	return "great"
}

// ScoreState is mutated only by the judge, once per resolved note.
type ScoreState struct {
	Score        int
	Combo        int
	MaxCombo     int
	PerfectCount int
	GreatCount   int
	MissCount    int
}

// OutcomeKind distinguishes judge outcomes.
type OutcomeKind int

const (
	OutcomeHit OutcomeKind = iota
	OutcomeMissed
)

func (k OutcomeKind) String() string {
	if k == OutcomeMissed {
		return "missed"
	}
	return "hit"
}

// Outcome is a resolved note handed to side-effect handlers.
// Rating, Direction, Velocity, Fret and Chord are set for hits only.
type Outcome struct {
	Kind      OutcomeKind
	Note      Note
	Rating    Rating
	Award     int
	Direction Direction
	Velocity  float64
	Fret      FretState
	Chord     string
}

// SessionSummary is the immutable end-of-session snapshot.
type SessionSummary struct {
	SessionID    string
	PlayerID     string
	Score        int
	MaxCombo     int
	PerfectCount int
	GreatCount   int
	MissCount    int
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// DurationSeconds reports the session length in seconds.
func (s SessionSummary) DurationSeconds() float64 {
	return s.Duration.Seconds()
}
