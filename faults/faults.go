package faults

import (
	"context"
	"errors"
	"fmt"
)

// Error is the structured error used across the sidequest agents.
type Error struct {
	code      Code
	category  Category
	message   string
	cause     error
	taskID    string
	retryable *bool // nil means use the category default
}

// Error returns the error message, including the cause if present.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the failure code.
func (e *Error) Code() Code {
	return e.code
}

// Category returns the failure category.
func (e *Error) Category() Category {
	return e.category
}

// Retryable reports whether the operation may succeed on retry.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// TaskID returns the related task ID, if one was attached.
func (e *Error) TaskID() string {
	return e.taskID
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Option configures an Error at construction time.
type Option func(*Error)

// WithCause attaches the underlying error.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// WithCategory overrides the code's default category.
func WithCategory(cat Category) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets retryability.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithTaskID attaches the task the failure relates to.
func WithTaskID(id string) Option {
	return func(e *Error) {
		e.taskID = id
	}
}

// New creates an Error with the given code and message.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an Error carrying the code's default description.
func FromCode(code Code, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(CodeInvalidInput, message, opts...)
}

// Timeout creates a timeout error.
func Timeout(message string, opts ...Option) *Error {
	return New(CodeTimeout, message, opts...)
}

// Unavailable creates a dependency-unavailable error.
func Unavailable(message string, opts ...Option) *Error {
	return New(CodeUnavailable, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(CodeInternal, message, opts...)
}

// MalformedRecord creates a strict-extraction failure for a store record.
func MalformedRecord(recordID, reason string, opts ...Option) *Error {
	opts = append([]Option{WithTaskID(recordID)}, opts...)
	return New(CodeMalformedRecord, fmt.Sprintf("record %s: %s", recordID, reason), opts...)
}

// Wrap wraps err with additional context while preserving the chain.
// An existing *Error keeps its code and category; context errors map to
// CodeTimeout/CodeCanceled; anything else becomes CodeInternal.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		wrapped := &Error{
			code:      fe.code,
			category:  fe.category,
			message:   message,
			cause:     err,
			taskID:    fe.taskID,
			retryable: fe.retryable,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(CodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(CodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(CodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err under a specific code, discarding any code carried
// by the chain.
func WrapWithCode(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// CodeOf extracts the code from an error chain, or "" if none is present.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.code
	}
	return ""
}

// CategoryOf extracts the category from an error chain, or "" if none.
func CategoryOf(err error) Category {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.category
	}
	return ""
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the error chain is retryable. Errors outside
// the taxonomy are treated as not retryable.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return false
}
