package server

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	ErrInvalidListen = errors.ErrorCode("server_invalid_listen")
	ErrServeFailed   = errors.ErrorCode("server_serve_failed")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidListen)
}
