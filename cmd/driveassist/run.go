package main

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/driveassist/internal/advice"
	"codeberg.org/mutker/driveassist/internal/assistant"
	"codeberg.org/mutker/driveassist/internal/broadcast"
	"codeberg.org/mutker/driveassist/internal/config"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/history"
	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/metrics"
	"codeberg.org/mutker/driveassist/internal/pid"
	"codeberg.org/mutker/driveassist/internal/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the advisory loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)

			ctx, cancel := withSignals(cmd.Context())
			defer cancel()

			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()
	log := logger.Default()

	lock := pid.New(cfg.PIDFile)
	if err := lock.Write(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Remove(); err != nil {
			logger.ErrorWithCode(logger.Code(err, errors.ErrShutdownFailed)).Msg("Failed to remove PID file")
		}
	}()

	runID := uuid.NewString()

	reader, err := telemetry.NewReader(telemetry.Config{Path: cfg.SignalsPath, Strict: cfg.StrictSignals})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	sink, err := dataset.NewSink(dataset.Config{Path: cfg.DatasetPath})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	publisher, err := advice.NewPublisher(advice.Config{Path: cfg.AdvicePath})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	historyCfg := history.DefaultConfig()
	historyCfg.Enabled = cfg.History.Enabled
	historyCfg.DBPath = cfg.History.DBPath
	historyCfg.RunID = runID

	recorder, err := history.NewService(historyCfg, log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.ErrorWithCode(logger.Code(err, errors.ErrShutdownFailed)).Msg("Failed to close history")
		}
	}()

	fanout := newFanout(ctx, cfg, runID, log)
	defer func() {
		if err := fanout.Close(); err != nil {
			logger.ErrorWithCode(logger.Code(err, errors.ErrShutdownFailed)).Msg("Failed to close broadcast sinks")
		}
	}()

	var bc assistant.Broadcaster
	if fanout.Len() > 0 {
		bc = fanout
	}

	loopMetrics := metrics.NewLoop()
	stopMetrics := serveMetrics(cfg.Metrics.Listen, loopMetrics)
	defer stopMetrics()

	a, err := assistant.New(assistant.Options{
		Reader:    reader,
		Dataset:   sink,
		Publisher: publisher,
		History:   recorder,
		Broadcast: bc,
		Metrics:   loopMetrics,
		Logger:    log,
		Interval:  cfg.Interval,
	})
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	logger.Info().
		Str("run_id", runID).
		Str("signals", cfg.SignalsPath).
		Str("dataset", cfg.DatasetPath).
		Str("advice", cfg.AdvicePath).
		Msg("Starting driving assistant")

	if err := a.Run(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	logger.Info().Msg("Exiting...")

	return nil
}

// newFanout connects the configured broadcast sinks. A sink that cannot
// connect is skipped so the loop still runs.
func newFanout(ctx context.Context, cfg *config.Config, runID string, log logger.Logger) *broadcast.Fanout {
	var sinks []broadcast.Sink

	if cfg.Redis.Addr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		r, err := broadcast.NewRedis(connectCtx, broadcast.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
			Channel:  cfg.Redis.Channel,
		})
		cancel()
		if err != nil {
			log.WarnWithCode(logger.Code(err, errors.ErrWrite)).Msg("Redis broadcast disabled")
		} else {
			sinks = append(sinks, r)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sinks = append(sinks, broadcast.NewKafka(broadcast.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Key:     runID,
		}))
	}

	if cfg.MQTT.Broker != "" {
		m, err := broadcast.NewMQTT(broadcast.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		})
		if err != nil {
			log.WarnWithCode(logger.Code(err, errors.ErrWrite)).Msg("MQTT broadcast disabled")
		} else {
			sinks = append(sinks, m)
		}
	}

	for _, s := range sinks {
		log.Info().Str("sink", s.Name()).Msg("Broadcast sink enabled")
	}

	return broadcast.NewFanout(log, sinks...)
}

// serveMetrics exposes the loop metrics on listen until the returned
// function is called. An empty listen address disables it.
func serveMetrics(listen string, m *metrics.Loop) func() {
	if listen == "" {
		return func() {}
	}

	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		logger.Info().Str("listen", listen).Msg("Metrics endpoint starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithCode(logger.Code(err, errors.ErrOperationFailed)).Msg("Metrics endpoint failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorWithCode(logger.Code(err, errors.ErrShutdownFailed)).Msg("Failed to stop metrics endpoint")
		}
	}
}
