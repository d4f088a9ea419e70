package broadcast

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	ErrConnectFailed = errors.ErrorCode("broadcast_connect_failed")
	ErrSendFailed    = errors.ErrorCode("broadcast_send_failed")
	ErrCloseFailed   = errors.ErrorCode("broadcast_close_failed")
)

func init() {
	errors.RegisterKind(errors.ErrWrite, ErrConnectFailed, ErrSendFailed, ErrCloseFailed)
}
