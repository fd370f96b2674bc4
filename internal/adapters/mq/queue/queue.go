// Package queue carries judge outcomes from the tick loop to dispatchers.
//
// Enqueue never blocks: the tick loop must not wait on audio or storage, so
// a full queue drops the outcome and reports it.
package queue

import (
	"context"
	"sync"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an outcome. It returns ErrFull or ErrClosed when the
	// outcome was not accepted.
	Enqueue(ctx context.Context, o model.Outcome) error

	// Dequeue returns the shared receive channel. It is closed once the
	// queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Outcome

	// Len returns the current number of queued outcomes.
	Len(ctx context.Context) int

	// Close stops accepting outcomes. Safe to call more than once.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	outcomes chan model.Outcome
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.outcomes = make(chan model.Outcome, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds an outcome to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordEnqueueError()
		return err
	}

	select {
	case q.outcomes <- o:
		metrics.UpdateQueueSize(len(q.outcomes))
		return nil
	default:
		metrics.RecordEnqueueError()
		return ErrFull
	}
}

// Dequeue returns the channel consumers range over.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan model.Outcome {
	return q.outcomes
}

// Len returns the current number of queued outcomes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.outcomes)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue. Buffered outcomes stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.outcomes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
