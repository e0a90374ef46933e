package nvm3

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of failures reported by the client. Values
// match the status integers of the C interface.
type ErrorCode int32

const (
	// ErrFailure is a generic failure; the log has details.
	ErrFailure ErrorCode = -1

	// ErrNotInitialized means the handle is unknown or was deinitialized.
	ErrNotInitialized ErrorCode = -2

	// ErrNotOpen means the operation needs an open instance.
	ErrNotOpen ErrorCode = -3

	// ErrNotClosed means the instance, or another one in this process, is still open.
	ErrNotClosed ErrorCode = -4

	// ErrUnknownError is an unclassified remote or internal condition.
	ErrUnknownError ErrorCode = -5

	// ErrInvalidArg means an argument violates a precondition.
	ErrInvalidArg ErrorCode = -6

	// ErrInvalidVersion means the remote NVM3 component speaks another major version.
	ErrInvalidVersion ErrorCode = -7

	// ErrInvalidObjectKey means the key does not exist or is malformed.
	ErrInvalidObjectKey ErrorCode = -8

	// ErrTryAgain is transient; resubmitting the same call is meaningful.
	ErrTryAgain ErrorCode = -9

	// ErrCpcEndpointError is an unrecoverable transport fault.
	ErrCpcEndpointError ErrorCode = -10

	// ErrBufferTooSmall means the caller buffer cannot hold the object.
	ErrBufferTooSmall ErrorCode = -11
)

var codeText = map[ErrorCode][2]string{
	ErrFailure:          {"failure", "generic failure"},
	ErrNotInitialized:   {"not_initialized", "instance not initialized"},
	ErrNotOpen:          {"not_open", "instance not open"},
	ErrNotClosed:        {"not_closed", "instance not closed"},
	ErrUnknownError:     {"unknown_error", "unknown error"},
	ErrInvalidArg:       {"invalid_arg", "invalid argument"},
	ErrInvalidVersion:   {"invalid_version", "protocol version mismatch"},
	ErrInvalidObjectKey: {"invalid_object_key", "invalid object key"},
	ErrTryAgain:         {"try_again", "try again"},
	ErrCpcEndpointError: {"cpc_endpoint_error", "CPC endpoint error"},
	ErrBufferTooSmall:   {"buffer_too_small", "buffer too small"},
}

func (c ErrorCode) Error() string {
	if t, ok := codeText[c]; ok {
		return t[1]
	}
	return fmt.Sprintf("error code %d", int32(c))
}

// Name returns the snake_case identifier of the code, or "ok" for zero.
func (c ErrorCode) Name() string {
	if c == 0 {
		return "ok"
	}
	if t, ok := codeText[c]; ok {
		return t[0]
	}
	return fmt.Sprintf("code_%d", int32(c))
}

// Error is returned by every failing operation. It matches its Code with
// errors.Is and unwraps to the underlying cause.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b []byte
	b = append(b, "nvm3: "...)
	if e.Op != "" {
		b = append(b, e.Op...)
		b = append(b, ": "...)
	}
	b = append(b, e.Code.Error()...)
	if e.Err != nil {
		b = append(b, ": "...)
		b = append(b, e.Err.Error()...)
	}
	return string(b)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Code}
	}
	return []error{e.Code, e.Err}
}

// CodeOf returns the ErrorCode carried by err: zero for nil, ErrFailure for
// errors produced outside this package.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c ErrorCode
	if errors.As(err, &c) {
		return c
	}
	return ErrFailure
}

// Status returns the C-style status of err: 0 on success, a negative ErrorCode otherwise.
func Status(err error) int32 { return int32(CodeOf(err)) }

func fail(code ErrorCode, err error) error {
	return &Error{Code: code, Err: err}
}

func failf(code ErrorCode, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}
