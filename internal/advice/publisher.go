package advice

import (
	"context"
	"os"
	"path/filepath"

	"codeberg.org/mutker/driveassist/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Publisher replaces the shared advisory payload. Only the latest payload is
// kept.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
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

type filePublisher struct {
	cfg Config
}

func NewPublisher(cfg Config) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &filePublisher{cfg: cfg}, nil
}

// Publish writes p to a temp file next to the target and renames it into
// place, so readers see either the old or the new payload in full.
func (p *filePublisher) Publish(ctx context.Context, payload Payload) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	data, err := payload.Encode()
	if err != nil {
		return errFactory.Wrap(ErrEncodeFailed, err)
	}

	if err := WriteFileAtomic(p.cfg.Path, data); err != nil {
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	return nil
}

// WriteFileAtomic replaces path with data via a synced temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	errFactory := errors.New()
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("create_directory", dir, err))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("create_temp", dir, err))
	}

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("write_temp", tmp.Name(), err))
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("chmod_temp", tmp.Name(), err))
	}
	if err := tmp.Sync(); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("sync_temp", tmp.Name(), err))
	}
	if err := tmp.Close(); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("close_temp", tmp.Name(), err))
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errFactory.WithData(errors.ErrWrite, failure("rename", path, err))
	}
	committed = true

	return nil
}

type failureData struct {
	Phase string
	Path  string
	Error string
}

func failure(phase, path string, err error) failureData {
	return failureData{Phase: phase, Path: path, Error: err.Error()}
}
