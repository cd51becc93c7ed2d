// Package upstream keeps one subscription to the runtime's event feed alive
// and republishes every event on the broadcast bus.
package upstream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/BryanFRD/admin-api/internal/metrics"
	"github.com/BryanFRD/admin-api/internal/protocol"
	"github.com/BryanFRD/admin-api/internal/runtime"
)

// ErrFeedClosed is reported when the runtime closes its feed without an
// error.
var ErrFeedClosed = errors.New("event feed closed")

// State of the upstream subscription.
type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Publisher receives encoded envelopes. *bus.Bus satisfies it.
type Publisher interface {
	Publish(data []byte) uint64
}

// Options controls the reconnect schedule. A Multiplier of 1 gives a fixed
// delay of RetryInterval; Jitter is the backoff randomization factor.
type Options struct {
	RetryInterval time.Duration
	MaxInterval   time.Duration
	Multiplier    float64
	Jitter        float64
}

// Source holds the runtime event subscription and publishes what it
// receives as encoded envelopes.
type Source struct {
	rt      runtime.Client
	pub     Publisher
	backoff *backoff.ExponentialBackOff
	retry   time.Duration
	logger  zerolog.Logger
	state   atomic.Int32
}

// New returns a Source in the Disconnected state. Zero Options fields take
// the defaults.
func New(rt runtime.Client, pub Publisher, opts Options, logger zerolog.Logger) *Source {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 10 * time.Second
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 1
	}
	if opts.MaxInterval < opts.RetryInterval {
		opts.MaxInterval = opts.RetryInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInterval
	b.MaxInterval = opts.MaxInterval
	b.Multiplier = opts.Multiplier
	b.RandomizationFactor = opts.Jitter
	b.Reset()

	s := &Source{
		rt:      rt,
		pub:     pub,
		backoff: b,
		retry:   opts.RetryInterval,
		logger:  logger.With().Str("component", "upstream").Logger(),
	}
	s.setState(Disconnected)
	return s
}

// State returns the current subscription state.
func (s *Source) State() State {
	return State(s.state.Load())
}

func (s *Source) setState(st State) {
	s.state.Store(int32(st))
	metrics.SetUpstreamState(int(st))
}

// Run holds the upstream subscription until ctx is cancelled. It only
// returns ctx's error.
func (s *Source) Run(ctx context.Context) error {
	for {
		s.setState(Connecting)
		events, errc, err := s.rt.Events(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(Disconnected)
				return ctx.Err()
			}
			s.setState(Disconnected)
			s.publish(protocol.StatusUpdate{Status: protocol.StatusUnreachable})
			metrics.RecordReconnect()

			wait := s.backoff.NextBackOff()
			s.logger.Warn().Err(err).Dur("retry_in", wait).Msg("runtime event feed unavailable")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		s.backoff.Reset()
		s.setState(Streaming)
		s.logger.Info().Msg("runtime event feed connected")
		s.publish(protocol.StatusUpdate{Status: protocol.StatusOK})

		opened := time.Now()
		err = s.stream(ctx, events, errc)
		if ctx.Err() != nil {
			s.setState(Disconnected)
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Dur("lifetime", time.Since(opened)).Msg("runtime event feed ended")
		s.setState(Disconnected)
		s.publish(protocol.StatusUpdate{Status: protocol.StatusUnreachable})
		metrics.RecordReconnect()

		// A feed that dies right after opening would otherwise spin.
		if time.Since(opened) < s.retry {
			if err := sleep(ctx, s.backoff.NextBackOff()); err != nil {
				s.setState(Disconnected)
				return err
			}
		}
	}
}

// stream relays events until the feed ends or ctx is done.
func (s *Source) stream(ctx context.Context, events <-chan runtime.RawEvent, errc <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			if err == nil {
				err = ErrFeedClosed
			}
			return err
		case ev, ok := <-events:
			if !ok {
				// The error, if any, is sent before the close.
				select {
				case err := <-errc:
					if err != nil {
						return err
					}
				default:
				}
				return ErrFeedClosed
			}
			s.relay(ev)
		}
	}
}

func (s *Source) relay(ev runtime.RawEvent) {
	out, err := Translate(ev)
	switch {
	case errors.Is(err, ErrUnmapped):
		metrics.RecordUnmapped()
		s.logger.Debug().Str("type", ev.Type).Str("action", ev.Action).Msg("ignoring unmapped runtime event")
		return
	case err != nil:
		s.logger.Warn().Err(err).Str("type", ev.Type).Str("action", ev.Action).Msg("dropping runtime event")
		return
	}
	metrics.RecordUpstreamEvent(string(out.Tag()))
	s.publish(out)
}

func (s *Source) publish(ev protocol.Event) {
	seq := s.pub.Publish(protocol.Encode(ev))
	metrics.RecordPublish()
	s.logger.Debug().Str("type", string(ev.Tag())).Uint64("seq", seq).Msg("published")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
