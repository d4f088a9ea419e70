package assistant

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	ErrInvalidOptions = errors.ErrorCode("assistant_invalid_options")
	ErrStartFailed    = errors.ErrorCode("assistant_start_failed")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidOptions)
}
