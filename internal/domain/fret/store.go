// Package fret holds the latest six-string fret description received from
// the chord channel and parses the messages that carry it.
package fret

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
)

// Snapshot is one complete stored value.
type Snapshot struct {
	Chord     string
	Fret      model.FretState
	UpdatedAt time.Time
	Version   uint64
}

// Store is a single-value register. Replace may run on any goroutine;
// Load never observes a partially written value.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
	version uint64
}

// NewStore creates a store holding an all-Unused state.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{})
	return s
}

// Replace swaps in a freshly built value from u and returns it.
func (s *Store) Replace(u Update, receivedAt time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	snap := &Snapshot{
		Chord:     u.Chord,
		Fret:      u.Fret,
		UpdatedAt: receivedAt,
		Version:   s.version,
	}
	s.current.Store(snap)
	return *snap
}

// Load returns the current value.
func (s *Store) Load() Snapshot {
	return *s.current.Load()
}
