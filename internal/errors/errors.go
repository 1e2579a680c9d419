// Package errors provides the pipeline's structured error taxonomy.
package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies a pipeline error per the voice error taxonomy.
type Code int

const (
	Unknown Code = iota
	InvalidParam
	InvalidState
	BufferOverflow
	OutOfMemory
	BackendFailure
	Fatal
)

func (c Code) String() string {
	switch c {
	case InvalidParam:
		return "invalid_param"
	case InvalidState:
		return "invalid_state"
	case BufferOverflow:
		return "buffer_overflow"
	case OutOfMemory:
		return "out_of_memory"
	case BackendFailure:
		return "backend_failure"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// grpcCodeMap maps our codes to gRPC status codes for the remote scorer boundary.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:        codes.Unknown,
	InvalidParam:   codes.InvalidArgument,
	InvalidState:   codes.FailedPrecondition,
	BufferOverflow: codes.ResourceExhausted,
	OutOfMemory:    codes.ResourceExhausted,
	BackendFailure: codes.Unavailable,
	Fatal:          codes.Internal,
}

// AppError is the base error type carrying a structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets AppError satisfy the interface status.FromError checks for.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata attaches a metadata key/value and returns the receiver.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts an AppError from a gRPC error, best-effort.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidParam
	case codes.FailedPrecondition:
		return InvalidState
	case codes.ResourceExhausted:
		return BufferOverflow
	case codes.Unavailable, codes.DeadlineExceeded:
		return BackendFailure
	case codes.Internal:
		return Fatal
	default:
		return Unknown
	}
}

// IsCode reports whether err is an *AppError with the given code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether the error is potentially transient.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case BackendFailure, BufferOverflow:
		return true
	default:
		return false
	}
}

