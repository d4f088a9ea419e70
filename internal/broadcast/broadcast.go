package broadcast

import (
	"context"
	stderrors "errors"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
)

// Event is everything one cycle produced.
type Event struct {
	Record  dataset.Record
	Payload advice.Payload
}

// Sink delivers cycle results to one downstream system.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Fanout sends every event to all of its sinks. A failing sink does not
// stop delivery to the others.
type Fanout struct {
	sinks []Sink
	log   logger.Logger
}

func NewFanout(log logger.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Send(ctx context.Context, ev Event) error {
	var errs []error

	for _, s := range f.sinks {
		if err := s.Send(ctx, ev); err != nil {
			f.log.Debug().Err(err).Str("sink", s.Name()).Msg("Broadcast failed")
			errs = append(errs, errors.New().WithData(ErrSendFailed, struct {
				Sink  string
				Error string
			}{
				Sink:  s.Name(),
				Error: err.Error(),
			}))
		}
	}

	return stderrors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error

	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, errors.New().Wrap(ErrCloseFailed, err))
		}
	}

	return stderrors.Join(errs...)
}
