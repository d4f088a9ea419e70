package assistant

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/broadcast"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/history"
	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/metrics"
	"codeberg.org/mutker/driveassist/internal/telemetry"
)

const DefaultInterval = time.Second

// Broadcaster forwards cycle results to optional downstream systems.
type Broadcaster interface {
	Send(ctx context.Context, ev broadcast.Event) error
}

// Options wires the collaborators of the loop. Reader, Dataset and
// Publisher are required; the rest may be nil.
type Options struct {
	Reader    telemetry.Reader
	Dataset   dataset.Sink
	Publisher advice.Publisher
	History   history.Recorder
	Broadcast Broadcaster
	Metrics   *metrics.Loop
	Logger    logger.Logger
	Interval  time.Duration
	Now       func() time.Time
}

// Assistant runs the read, classify, record and publish cycle.
type Assistant struct {
	opts  Options
	state atomic.Int32
}

func New(opts Options) (*Assistant, error) {
	errFactory := errors.New()

	switch {
	case opts.Reader == nil:
		return nil, errFactory.WithMessage(ErrInvalidOptions, "snapshot reader is required")
	case opts.Dataset == nil:
		return nil, errFactory.WithMessage(ErrInvalidOptions, "dataset sink is required")
	case opts.Publisher == nil:
		return nil, errFactory.WithMessage(ErrInvalidOptions, "advice publisher is required")
	case opts.Interval < 0:
		return nil, errFactory.WithMessage(ErrInvalidOptions, "interval must not be negative")
	}

	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Assistant{opts: opts}, nil
}

func (a *Assistant) State() State {
	return State(a.state.Load())
}

// Run initializes the dataset and then ticks every interval until ctx is
// cancelled. Cancellation is observed between ticks, never inside one.
func (a *Assistant) Run(ctx context.Context) error {
	if err := a.opts.Dataset.Initialize(); err != nil {
		return errors.New().Wrap(ErrStartFailed, err)
	}

	a.state.Store(int32(Running))
	defer a.state.Store(int32(Stopped))

	log := a.opts.Logger
	log.Info().Dur("interval", a.opts.Interval).Msg("Assistant loop started")

	timer := time.NewTimer(a.opts.Interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Assistant loop stopped")
			return nil
		}

		a.Tick(context.WithoutCancel(ctx))

		timer.Reset(a.opts.Interval)
		select {
		case <-ctx.Done():
			log.Info().Msg("Assistant loop stopped")
			return nil
		case <-timer.C:
		}
	}
}
