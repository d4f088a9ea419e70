package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

var (
	kindsMu sync.RWMutex
	kinds   = map[ErrorCode]ErrorCode{
		ErrRead:            ErrRead,
		ErrWrite:           ErrWrite,
		ErrConfig:          ErrConfig,
		ErrMissingConfig:   ErrConfig,
		ErrBindFlags:       ErrConfig,
		ErrReadConfig:      ErrConfig,
		ErrInvalidInterval: ErrConfig,
		ErrInvalidPath:     ErrConfig,
		ErrInvalidLogLevel: ErrConfig,
	}
)

// RegisterKind files a package-specific code under one of ErrRead, ErrWrite
// or ErrConfig. Packages call it from init alongside their code tables.
func RegisterKind(kind ErrorCode, codes ...ErrorCode) {
	kindsMu.Lock()
	defer kindsMu.Unlock()

	for _, c := range codes {
		kinds[c] = kind
	}
}

func kindOf(code ErrorCode) ErrorCode {
	kindsMu.RLock()
	defer kindsMu.RUnlock()

	if k, ok := kinds[code]; ok {
		return k
	}

	return code
}

// IsKind reports whether any coded error in err's chain belongs to kind.
func IsKind(err error, kind ErrorCode) bool {
	for err != nil {
		var appErr Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Kind() == kind {
			return true
		}
		err = appErr.Unwrap()
	}

	return false
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code() == code {
			return true
		}
		err = appErr.Unwrap()
	}

	return false
}

// appError implements the Error interface
type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *appError) Error() string {
	message := e.message
	if message == "" {
		message = GetErrorMessage(e.code)
	}

	if e.data != nil {
		return fmt.Sprintf("%s: %v", message, e.data)
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %v", message, e.err)
	}

	return message
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) Kind() ErrorCode {
	return kindOf(e.code)
}

func (e *appError) WithMessage(msg string) Error {
	return &appError{
		code:    e.code,
		message: msg,
		err:     e.err,
		data:    e.data,
	}
}

func (e *appError) WithData(data any) Error {
	return &appError{
		code:    e.code,
		message: e.message,
		err:     e.err,
		data:    data,
	}
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{
		code: code,
	}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{
		code: code,
		err:  err,
	}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{
		code:    code,
		message: msg,
	}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{
		code: code,
		data: data,
	}
}

// New creates a Factory instance for error creation
func New() Factory {
	return &defaultFactory{}
}
