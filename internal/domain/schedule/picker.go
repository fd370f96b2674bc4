package schedule

import (
	"math/rand"
	"sync"
)

// LabelPicker chooses the target label of each spawned note.
type LabelPicker interface {
	Pick(labels []string) string
}

// RandomPicker draws labels uniformly.
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker creates a uniform picker. A zero seed still yields a
// deterministic sequence; callers wanting variety pass a time-based seed.
func NewRandomPicker(seed int64) *RandomPicker {
	return &RandomPicker{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // gameplay randomness, not security
}

// Pick returns a uniformly chosen label, or "" when labels is empty.
func (p *RandomPicker) Pick(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return labels[p.rng.Intn(len(labels))]
}

// SequencePicker cycles through a fixed sequence of labels.
type SequencePicker struct {
	seq  []string
	next int
}

// NewSequencePicker creates a picker that ignores the configured label set
// and replays seq in order. An empty seq falls back to cycling the labels.
func NewSequencePicker(seq ...string) *SequencePicker {
	return &SequencePicker{seq: append([]string(nil), seq...)}
}

// Pick returns the next label in sequence.
func (p *SequencePicker) Pick(labels []string) string {
	src := p.seq
	if len(src) == 0 {
		src = labels
	}
	if len(src) == 0 {
		return ""
	}
	label := src[p.next%len(src)]
	p.next++
	return label
}
