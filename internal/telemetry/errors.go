package telemetry

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	// Configuration Errors
	ErrInvalidPath = errors.ErrorCode("telemetry_invalid_path")

	// Read Errors
	ErrNotFound      = errors.ErrorCode("telemetry_not_found")
	ErrReadFailed    = errors.ErrorCode("telemetry_read_failed")
	ErrParseFailed   = errors.ErrorCode("telemetry_parse_failed")
	ErrInvalidField  = errors.ErrorCode("telemetry_invalid_field")
	ErrMissingFields = errors.ErrorCode("telemetry_missing_fields")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidPath)
	errors.RegisterKind(errors.ErrRead, ErrNotFound, ErrReadFailed, ErrParseFailed, ErrInvalidField, ErrMissingFields)
}
