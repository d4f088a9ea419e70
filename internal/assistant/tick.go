package assistant

import (
	"context"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/broadcast"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/metrics"
)

// Cycle outcomes, also used as metric label values.
const (
	OutcomeOK          = "ok"
	OutcomeReadFailed  = "read_failed"
	OutcomeWriteFailed = "write_failed"
)

// TickResult reports what one cycle did. Read is set when the cycle was
// abandoned; the remaining errors belong to the individual sinks.
type TickResult struct {
	Read      error
	Missing   []string
	Record    *dataset.Record
	Payload   *advice.Payload
	Dataset   error
	History   error
	Publish   error
	Broadcast error
}

func (r TickResult) Outcome() string {
	switch {
	case r.Read != nil:
		return OutcomeReadFailed
	case r.Dataset != nil, r.History != nil, r.Publish != nil, r.Broadcast != nil:
		return OutcomeWriteFailed
	default:
		return OutcomeOK
	}
}

// Tick runs a single cycle. Sink failures are logged and do not stop the
// remaining sinks.
func (a *Assistant) Tick(ctx context.Context) TickResult {
	var res TickResult
	log := a.opts.Logger

	reading, err := a.opts.Reader.Read(ctx)
	if err != nil {
		res.Read = err
		log.WarnWithCode(logger.Code(err, errors.ErrRead)).Msg("Skipping cycle, signals unavailable")
		a.observe(res)

		return res
	}

	if len(reading.Missing) > 0 {
		res.Missing = reading.Missing
		log.Warn().Strs("fields", reading.Missing).Msg("Signals incomplete, missing fields default to 0")
	}

	payload := advice.NewPayload(reading.Snapshot)
	rec := dataset.Record{
		Timestamp: a.opts.Now(),
		Snapshot:  reading.Snapshot,
		Label:     payload.Label,
	}
	res.Record = &rec
	res.Payload = &payload

	if err := a.opts.Dataset.Append(ctx, rec); err != nil {
		res.Dataset = err
		log.ErrorWithContext(logger.Code(err, errors.ErrWrite), "dataset", "append").Msg("Failed to append sample")
	}

	if a.opts.History != nil {
		if err := a.opts.History.Record(ctx, &rec); err != nil {
			res.History = err
			log.ErrorWithContext(logger.Code(err, errors.ErrWrite), "history", "record").Msg("Failed to mirror sample")
		}
	}

	if err := a.opts.Publisher.Publish(ctx, payload); err != nil {
		res.Publish = err
		log.ErrorWithContext(logger.Code(err, errors.ErrWrite), "advice", "publish").Msg("Failed to publish advice")
	}

	if a.opts.Broadcast != nil {
		if err := a.opts.Broadcast.Send(ctx, broadcast.Event{Record: rec, Payload: payload}); err != nil {
			res.Broadcast = err
			log.ErrorWithContext(logger.Code(err, errors.ErrWrite), "broadcast", "send").Msg("Failed to broadcast advice")
		}
	}

	log.Info().
		Float64("speed_kmh", payload.SpeedKmh).
		Float64("outside_temp_c", payload.OutsideTempC).
		Float64("cabin_temp_c", payload.CabinTempC).
		Float64("battery_level_percent", payload.BatteryLevelPercent).
		Strs("advices", payload.Advices).
		Str("label", payload.Label.String()).
		Msg("Cycle complete")

	a.observe(res)

	return res
}

func (a *Assistant) observe(res TickResult) {
	m := a.opts.Metrics
	if m == nil {
		return
	}

	m.Cycles.WithLabelValues(res.Outcome()).Inc()

	if res.Read != nil {
		m.ReadFailures.Inc()
		return
	}

	m.Labels.WithLabelValues(res.Payload.Label.String()).Inc()
	m.LastCycle.Set(float64(res.Record.Timestamp.Unix()))

	for sink, err := range map[string]error{
		metrics.SinkDataset:   res.Dataset,
		metrics.SinkHistory:   res.History,
		metrics.SinkAdvice:    res.Publish,
		metrics.SinkBroadcast: res.Broadcast,
	} {
		if err != nil {
			m.WriteFailures.WithLabelValues(sink).Inc()
		}
	}
}
