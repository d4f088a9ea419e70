package advice

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	ErrInvalidPath   = errors.ErrorCode("advice_invalid_path")
	ErrEncodeFailed  = errors.ErrorCode("advice_encode_failed")
	ErrPublishFailed = errors.ErrorCode("advice_publish_failed")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidPath)
	errors.RegisterKind(errors.ErrWrite, ErrEncodeFailed, ErrPublishFailed)
}
