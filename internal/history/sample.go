package history

import (
	"context"

	"codeberg.org/mutker/driveassist/internal/dataset"
)

// Recorder mirrors dataset records into a queryable store.
type Recorder interface {
	Record(ctx context.Context, rec *dataset.Record) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Record(runID string, rec *dataset.Record) error
	Count() (int, error)
	Close() error
}
