package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/logger"
	"github.com/okian/airstrum/pkg/metrics"
)

var ErrUnknownOutcome = errors.New("unknown outcome kind")

// Handler reacts to resolved notes. Errors are logged and counted; they
// never stop a worker.
type Handler interface {
	OnHit(ctx context.Context, o model.Outcome) error
	OnMiss(ctx context.Context, o model.Outcome) error
}

// Fanout calls every handler in order and joins their errors.
type Fanout []Handler

func (f Fanout) OnHit(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	var errs []error
	for _, h := range f {
		if err := h.OnHit(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) OnMiss(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	var errs []error
	for _, h := range f {
		if err := h.OnMiss(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Queue defines how workers receive outcomes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Outcome
}

// Worker processes outcomes until its queue closes.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one dispatcher goroutine.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run reads outcomes until the queue is closed and drained, ctx is
// cancelled, or the worker is told to stop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	outcomes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			if err := w.dispatch(ctx, o); err != nil {
				w.logger.Error(ctx, "outcome handler failed",
					logger.Int64("note_id", o.Note.ID),
					logger.String("kind", o.Kind.String()),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without draining.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) dispatch(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	start := time.Now()
	defer func() {
		metrics.RecordHandlerLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var err error
	switch o.Kind {
	case model.OutcomeHit:
		err = w.handler.OnHit(ctx, o)
	case model.OutcomeMissed:
		err = w.handler.OnMiss(ctx, o)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownOutcome, o.Kind)
	}
	if err != nil {
		metrics.RecordHandlerError(o.Kind)
		return err
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount dispatchers. Counts below one
// become one; a nil logger uses the global one.
func NewPool(workerCount int, q Queue, h Handler, l logger.Logger) *Pool {
	workerCount = max(workerCount, 1)
	if l == nil {
		l = logger.Get()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  l.Named("worker-pool"),
	}
	for i := range workerCount {
		name := "worker-" + strconv.Itoa(i)
		p.workers[i] = NewInMemoryWorker(q, h, WithName(name), WithLogger(l.Named(name)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx expires are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = w.Shutdown(stopCtx)
			cancel()
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("pool shutdown: %w", ctx.Err())
	}
	return nil
}
