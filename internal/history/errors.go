package history

import "codeberg.org/mutker/driveassist/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrConfig
	ErrInvalidDBPath = errors.ErrorCode("history_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("history_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("history_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("history_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("history_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("history_storage_access_failed")
	ErrStorageInit   = errors.ErrorCode("history_storage_init_failed")
	ErrStorageClose  = errors.ErrorCode("history_storage_close_failed")

	// Recording Errors
	ErrRecordFailed  = errors.ErrorCode("history_record_failed")
	ErrInvalidSample = errors.ErrorCode("history_invalid_sample")
)

func init() {
	errors.RegisterKind(errors.ErrConfig, ErrInvalidDBPath)
	errors.RegisterKind(errors.ErrWrite,
		ErrSchemaInitFailed, ErrSchemaValidationFailed, ErrSchemaMigrationFailed,
		ErrTransactionFailed, ErrStorageAccess, ErrStorageInit, ErrStorageClose,
		ErrRecordFailed, ErrInvalidSample,
	)
}
