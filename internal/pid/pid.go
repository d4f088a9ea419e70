package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/driveassist/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o600
)

// File guards a resource against a second writer process.
type File struct {
	path string
	held bool
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Write records the current process ID. It fails with ErrAlreadyRunning if
// the file names another live process; a stale file is replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if err := os.MkdirAll(filepath.Dir(f.path), defaultDirPerm); err != nil {
		return errFactory.Wrap(errors.ErrInitFailed, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePerm)
		if err == nil {
			_, werr := file.WriteString(strconv.Itoa(os.Getpid()))
			cerr := file.Close()
			if werr != nil {
				os.Remove(f.path)
				return errFactory.Wrap(errors.ErrInitFailed, werr)
			}
			if cerr != nil {
				os.Remove(f.path)
				return errFactory.Wrap(errors.ErrInitFailed, cerr)
			}
			f.held = true

			return nil
		}
		if !os.IsExist(err) {
			return errFactory.Wrap(errors.ErrInitFailed, err)
		}

		if owner, alive := f.owner(); alive {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				Path string
				PID  int
			}{
				Path: f.path,
				PID:  owner,
			})
		}

		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return errFactory.Wrap(errors.ErrInitFailed, err)
		}
	}

	return errFactory.New(errors.ErrAlreadyRunning)
}

func (f *File) owner() (int, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	// A file naming this process is left over from an earlier run that got
	// the same PID, typically PID 1 in a restarted container.
	if pid == os.Getpid() {
		return pid, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}

	return pid, process.Signal(syscall.Signal(0)) == nil
}

// Remove deletes the PID file if this process wrote it.
func (f *File) Remove() error {
	if !f.held {
		return nil
	}
	f.held = false

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
