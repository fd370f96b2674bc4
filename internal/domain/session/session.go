// Package session accumulates session statistics around the judge's score
// state and produces the end-of-session summary exactly once.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/airstrum/internal/domain/model"
)

// Stats is a live view of a running session.
type Stats struct {
	SessionID   string
	PlayerID    string
	StartedAt   time.Time
	Elapsed     time.Duration
	Ticks       int64
	Strums      int64
	Whiffs      int64
	Spawned     int64
	ActiveNotes int
	Score       model.ScoreState
	Ended       bool
}

// Aggregator owns the ScoreState of one session. Only the judge mutates
// Score(); the aggregator adds bookkeeping around it.
type Aggregator struct {
	id       string
	playerID string
	start    time.Time
	last     time.Time
	score    model.ScoreState

	ticks   int64
	strums  int64
	whiffs  int64
	spawned int64
	active  int

	ended   bool
	summary model.SessionSummary
}

// New starts a session for playerID at start. An empty playerID gets a
// generated anonymous id.
func New(playerID string, start time.Time) *Aggregator {
	if playerID == "" {
		playerID = "anon-" + uuid.NewString()[:8]
	}
	return &Aggregator{
		id:       uuid.NewString(),
		playerID: playerID,
		start:    start,
		last:     start,
	}
}

// ID returns the session id.
func (a *Aggregator) ID() string { return a.id }

// PlayerID returns the player the session belongs to.
func (a *Aggregator) PlayerID() string { return a.playerID }

// Score exposes the score state for the judge to mutate.
func (a *Aggregator) Score() *model.ScoreState { return &a.score }

// Ended reports whether End has been called.
func (a *Aggregator) Ended() bool { return a.ended }

// Record folds one tick's results into the session counters. strummed is
// true when the detector fired; hit reports whether that strum resolved a
// note.
func (a *Aggregator) Record(now time.Time, strummed, hit bool, spawned, active int) {
	if a.ended {
		return
	}
	a.ticks++
	a.last = now
	a.spawned += int64(spawned)
	a.active = active
	if strummed {
		a.strums++
		if !hit {
			a.whiffs++
		}
	}
}

// End freezes the session. The first call returns the summary and true;
// later calls return the same summary and false.
func (a *Aggregator) End(now time.Time) (model.SessionSummary, bool) {
	if a.ended {
		return a.summary, false
	}
	if now.Before(a.start) {
		now = a.start
	}
	a.ended = true
	a.summary = model.SessionSummary{
		SessionID:    a.id,
		PlayerID:     a.playerID,
		Score:        a.score.Score,
		MaxCombo:     a.score.MaxCombo,
		PerfectCount: a.score.PerfectCount,
		GreatCount:   a.score.GreatCount,
		MissCount:    a.score.MissCount,
		StartedAt:    a.start,
		EndedAt:      now,
		Duration:     now.Sub(a.start),
	}
	return a.summary, true
}

// Stats returns a snapshot of the session counters.
func (a *Aggregator) Stats() Stats {
	return Stats{
		SessionID:   a.id,
		PlayerID:    a.playerID,
		StartedAt:   a.start,
		Elapsed:     a.last.Sub(a.start),
		Ticks:       a.ticks,
		Strums:      a.strums,
		Whiffs:      a.whiffs,
		Spawned:     a.spawned,
		ActiveNotes: a.active,
		Score:       a.score,
		Ended:       a.ended,
	}
}
