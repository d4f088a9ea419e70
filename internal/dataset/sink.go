package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"codeberg.org/mutker/driveassist/internal/advisor"
	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/telemetry"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644

	// TimestampLayout is ISO-8601 local time with microseconds.
	TimestampLayout = "2006-01-02T15:04:05.000000"
)

// Header is the fixed column layout of the dataset file.
var Header = []string{
	"timestamp",
	telemetry.FieldSpeed,
	telemetry.FieldOutsideTemp,
	telemetry.FieldCabinTemp,
	telemetry.FieldBatteryLevel,
	"label",
}

// Record is one labeled sample.
type Record struct {
	Timestamp time.Time
	Snapshot  telemetry.Snapshot
	Label     advisor.Label
}

// Row renders r in Header order.
func (r Record) Row() []string {
	return []string{
		r.Timestamp.Local().Format(TimestampLayout),
		formatFloat(r.Snapshot.SpeedKmh),
		formatFloat(r.Snapshot.OutsideTempC),
		formatFloat(r.Snapshot.CabinTempC),
		formatFloat(r.Snapshot.BatteryLevelPercent),
		strconv.Itoa(int(r.Label)),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Sink is an append-only store of labeled samples. Records are never updated
// or deleted.
type Sink interface {
	Initialize() error
	Append(ctx context.Context, rec Record) error
}

type Config struct {
	Path string
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New().New(ErrInvalidPath)
	}

	return nil
}

type csvSink struct {
	cfg Config
}

func NewSink(cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &csvSink{cfg: cfg}, nil
}

// Initialize writes the header if the file is missing or empty. Existing
// data is never truncated, so calling it repeatedly is safe.
func (s *csvSink) Initialize() error {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(s.cfg.Path), defaultDirPerm); err != nil {
		return errFactory.WithData(ErrInitFailed, failure("create_directory", s.cfg.Path, err))
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return errFactory.WithData(ErrInitFailed, failure("open_file", s.cfg.Path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errFactory.WithData(ErrInitFailed, failure("stat_file", s.cfg.Path, err))
	}
	if info.Size() > 0 {
		return nil
	}

	if err := writeRow(f, Header); err != nil {
		return errFactory.WithData(ErrInitFailed, failure("write_header", s.cfg.Path, err))
	}

	return nil
}

// Append adds rec as a single write followed by fsync.
func (s *csvSink) Append(ctx context.Context, rec Record) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrAppendFailed, err)
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return errFactory.WithData(ErrAppendFailed, failure("open_file", s.cfg.Path, err))
	}
	defer f.Close()

	if err := writeRow(f, rec.Row()); err != nil {
		return errFactory.WithData(ErrAppendFailed, failure("write_record", s.cfg.Path, err))
	}

	return nil
}

func writeRow(f *os.File, row []string) error {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return err
	}

	return f.Sync()
}

type failureData struct {
	Phase string
	Path  string
	Error string
}

func failure(phase, path string, err error) failureData {
	return failureData{Phase: phase, Path: path, Error: err.Error()}
}
