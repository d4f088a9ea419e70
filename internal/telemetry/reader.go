package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"codeberg.org/mutker/driveassist/internal/errors"
)

// Reader loads the snapshot document the vehicle producer keeps rewriting.
type Reader interface {
	Read(ctx context.Context) (Reading, error)
}

type Config struct {
	Path string
	// Strict turns missing fields into read errors instead of zero values.
	Strict bool
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New().New(ErrInvalidPath)
	}

	return nil
}

type fileReader struct {
	cfg Config
}

func NewReader(cfg Config) (Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &fileReader{cfg: cfg}, nil
}

// Read makes a single attempt at the document. The producer may be
// mid-write, so any failure here is expected to clear by the next cycle.
func (r *fileReader) Read(ctx context.Context) (Reading, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return Reading{}, errFactory.Wrap(errors.ErrRead, err)
	}

	data, err := os.ReadFile(r.cfg.Path)
	if err != nil {
		code := ErrReadFailed
		if os.IsNotExist(err) {
			code = ErrNotFound
		}

		return Reading{}, errFactory.WithData(code, struct {
			Path  string
			Error string
		}{
			Path:  r.cfg.Path,
			Error: err.Error(),
		})
	}

	reading, err := Parse(data)
	if err != nil {
		return Reading{}, err
	}

	if r.cfg.Strict && len(reading.Missing) > 0 {
		return Reading{}, errFactory.WithData(ErrMissingFields, reading.Missing)
	}

	return reading, nil
}

// Parse decodes a snapshot document. Absent or null fields read as 0.0 and
// are listed in Reading.Missing; unknown fields are ignored.
func Parse(data []byte) (Reading, error) {
	errFactory := errors.New()

	if len(bytes.TrimSpace(data)) == 0 {
		return Reading{}, errFactory.WithMessage(ErrParseFailed, "snapshot document is empty")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reading{}, errFactory.Wrap(ErrParseFailed, err)
	}

	var reading Reading
	for _, name := range Fields {
		value, ok := raw[name]
		if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			reading.Missing = append(reading.Missing, name)
			continue
		}

		if err := json.Unmarshal(value, reading.Snapshot.field(name)); err != nil {
			return Reading{}, errFactory.WithData(ErrInvalidField, struct {
				Field string
				Value string
			}{
				Field: name,
				Value: string(value),
			})
		}
	}

	return reading, nil
}
