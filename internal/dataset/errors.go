package dataset

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	ErrInvalidPath  = errors.ErrorCode("dataset_invalid_path")
	ErrInitFailed   = errors.ErrorCode("dataset_init_failed")
	ErrAppendFailed = errors.ErrorCode("dataset_append_failed")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidPath)
	errors.RegisterKind(errors.ErrWrite, ErrInitFailed, ErrAppendFailed)
}
