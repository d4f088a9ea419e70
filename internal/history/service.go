package history

import (
	"context"

	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"github.com/google/uuid"
)

type service struct {
	repo  Repository
	cfg   Config
	runID string
}

// No-op implementation
type noopRecorder struct{}

// NewService opens the history store. A disabled config yields a recorder
// that drops everything.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Sample history disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create history repository")
		return nil, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Str("run_id", runID).
		Msg("History service initialized successfully")

	return &service{
		repo:  repo,
		cfg:   cfg,
		runID: runID,
	}, nil
}

func (s *service) Record(ctx context.Context, rec *dataset.Record) error {
	errFactory := errors.New()

	if rec == nil {
		return errFactory.New(ErrInvalidSample)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrRecordFailed, ctx.Err())
	default:
		if err := s.repo.Record(s.runID, rec); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func (*noopRecorder) Record(_ context.Context, _ *dataset.Record) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}
