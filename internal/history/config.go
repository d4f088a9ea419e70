package history

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/driveassist/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm = 0o755
	defaultDBPath  = "history.db"

	defaultBatchSize  = 1
	defaultMaxPending = 1000
)

type Config struct {
	DBPath  string
	Enabled bool
	// BatchSize > 1 buffers samples and flushes them every FlushInterval
	// or when the buffer is full.
	BatchSize     int
	FlushInterval time.Duration
	// MaxPending bounds the samples kept while the database cannot be
	// written. The oldest are dropped first. Defaults to 1000.
	MaxPending int
	// RunID tags every stored sample. A random one is used when empty.
	RunID string
	// BackupDir receives a copy of the database before a schema change.
	// Defaults to a "backups" directory next to DBPath.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		DBPath:    defaultDBPath,
		Enabled:   false, // Disabled by default
		BatchSize: defaultBatchSize,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if history is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "batch_size",
			Value: c.BatchSize,
		})
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
