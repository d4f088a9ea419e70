package history_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/driveassist/internal/advisor"
	"codeberg.org/mutker/driveassist/internal/dataset"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/history"
	"codeberg.org/mutker/driveassist/internal/logger"
	"codeberg.org/mutker/driveassist/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(speed float64) *dataset.Record {
	s := telemetry.Snapshot{SpeedKmh: speed, OutsideTempC: 10, CabinTempC: 22, BatteryLevelPercent: 50}

	return &dataset.Record{
		Timestamp: time.Now(),
		Snapshot:  s,
		Label:     advisor.ClassifyLabel(s),
	}
}

func TestDisabledServiceIsNoop(t *testing.T) {
	rec, err := history.NewService(history.DefaultConfig(), logger.Default())
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), sample(60)))
	require.NoError(t, rec.Close())
}

func TestConfigValidate(t *testing.T) {
	err := history.Config{Enabled: true}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrConfig))

	require.NoError(t, history.Config{Enabled: false}.Validate())
	require.Error(t, history.Config{DBPath: "x.db", BatchSize: -1}.Validate())
}

func TestRepositoryRecordsEverySample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "history.db")
	repo, err := history.NewRepository(history.Config{DBPath: path, Enabled: true}, logger.Default())
	require.NoError(t, err)

	for _, speed := range []float64{60, 130, 90} {
		require.NoError(t, repo.Record("run-1", sample(speed)))
	}

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT run_id, speed_kmh, label FROM samples ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var got []int
	for rows.Next() {
		var runID string
		var speed float64
		var label int
		require.NoError(t, rows.Scan(&runID, &speed, &label))
		assert.Equal(t, "run-1", runID)
		got = append(got, label)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{0, 2, 0}, got)
}

func TestRepositoryBatchingFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	cfg := history.Config{DBPath: path, Enabled: true, BatchSize: 10, FlushInterval: time.Hour}

	repo, err := history.NewRepository(cfg, logger.Default())
	require.NoError(t, err)
	require.NoError(t, repo.Record("run", sample(60)))
	require.NoError(t, repo.Record("run", sample(70)))
	require.NoError(t, repo.Close())

	reopened, err := history.NewRepository(history.Config{DBPath: path, Enabled: true}, logger.Default())
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSchemaVersionMismatchBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE samples (id INTEGER PRIMARY KEY);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	backupDir := filepath.Join(dir, "backups")
	repo, err := history.NewRepository(history.Config{DBPath: path, Enabled: true, BackupDir: backupDir}, logger.Default())
	require.NoError(t, err)
	defer repo.Close()

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, repo.Record("run", sample(60)))
	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceRecord(t *testing.T) {
	cfg := history.Config{DBPath: filepath.Join(t.TempDir(), "history.db"), Enabled: true}

	rec, err := history.NewService(cfg, logger.Default())
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(context.Background(), sample(60)))

	err = rec.Record(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, history.ErrInvalidSample))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rec.Record(ctx, sample(60))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.ErrWrite))
}

func TestServiceUsesConfiguredRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	rec, err := history.NewService(history.Config{DBPath: path, Enabled: true, RunID: "fixed-run"}, logger.Default())
	require.NoError(t, err)
	require.NoError(t, rec.Record(context.Background(), sample(60)))
	require.NoError(t, rec.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var runID string
	require.NoError(t, db.QueryRow(`SELECT run_id FROM samples`).Scan(&runID))
	assert.Equal(t, "fixed-run", runID)
}

func TestRepositoryBoundsPendingSamplesWhileUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	repo, err := history.NewRepository(history.Config{DBPath: path, Enabled: true, MaxPending: 3}, logger.Default())
	require.NoError(t, err)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`DROP TABLE samples`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	for _, speed := range []float64{10, 20, 30, 40, 50} {
		assert.Error(t, repo.Record("run", sample(speed)))
	}

	assert.Equal(t, []float64{30, 40, 50}, history.PendingSpeeds(repo))
	assert.Error(t, repo.Close())
}
