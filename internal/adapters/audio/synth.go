// Package audio renders judge outcomes as MIDI: live through an output
// port and offline into a standard MIDI file.
package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/pkg/logger"
	"gitlab.com/gomidi/midi/v2"
)

// Default synth configuration constants.
const (
	defaultStrumSpread = 12 * time.Millisecond
	defaultNoteLength  = 400 * time.Millisecond
)

// Sender delivers one MIDI message.
type Sender func(msg midi.Message) error

// Option applies a configuration option to the Synth.
type Option func(*Synth)

// WithChannel sets the MIDI channel (0-15).
func WithChannel(ch uint8) Option {
	return func(s *Synth) {
		if ch < 16 {
			s.voicer.channel = ch
		}
	}
}

// WithStrumSpread sets the delay between consecutive strings.
func WithStrumSpread(d time.Duration) Option {
	return func(s *Synth) {
		if d >= 0 {
			s.voicer.spread = d
		}
	}
}

// WithNoteLength sets how long fretted notes ring.
func WithNoteLength(d time.Duration) Option {
	return func(s *Synth) {
		if d > 0 {
			s.voicer.length = d
		}
	}
}

// WithSleep replaces time.Sleep between steps.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Synth) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger sets a custom logger for the synth.
func WithLogger(l logger.Logger) Option {
	return func(s *Synth) {
		if l != nil {
			s.logger = l
		}
	}
}

// Synth plays outcomes through a Sender. It is safe for concurrent use;
// gestures are serialized so strums do not interleave.
type Synth struct {
	mu     sync.Mutex
	send   Sender
	voicer voicer
	sleep  func(time.Duration)
	logger logger.Logger
}

// NewSynth creates a synth writing to send.
func NewSynth(send Sender, opts ...Option) *Synth {
	s := &Synth{
		send:   send,
		voicer: voicer{spread: defaultStrumSpread, length: defaultNoteLength},
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("synth")
	}
	return s
}

// OnHit strums the chord shape of the hit.
func (s *Synth) OnHit(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	return s.play(ctx, s.voicer.plan(o))
}

// OnMiss plays a muted chunk on every string.
func (s *Synth) OnMiss(ctx context.Context, o model.Outcome) error { //nolint:gocritic // hugeParam
	return s.play(ctx, s.voicer.plan(o))
}

func (s *Synth) play(ctx context.Context, steps []step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var at time.Duration
	var firstErr error
	for _, st := range steps {
		if st.at > at {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.sleep(st.at - at)
			at = st.at
		}
		if err := s.send(st.msg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %w", ErrSend, st.msg, err)
		}
	}
	return firstErr
}

// LogSender returns a Sender that logs messages at debug level. It stands
// in for a port when none is configured.
func LogSender(l logger.Logger) Sender {
	return func(msg midi.Message) error {
		l.Debug(context.Background(), "midi", logger.String("msg", msg.String()))
		return nil
	}
}

// OpenPort finds an output port whose name contains name and returns a
// sender for it plus a close function. A driver must be registered, e.g.
// by importing gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
func OpenPort(name string) (Sender, func() error, error) {
	out, err := midi.FindOutPort(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q: %w", ErrPort, name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q: %w", ErrPort, name, err)
	}
	return send, out.Close, nil
}
