// Package errors carries the typed error model shared by the services, the
// HTTP layer and the submission client. Codes reuse the gRPC code space and
// map onto HTTP statuses at the edge.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	// CodeInvalidArgument marks input rejected before any side effect.
	CodeInvalidArgument = Code(codes.InvalidArgument)
	// CodeUnauthenticated marks a missing credential or an identity mismatch.
	CodeUnauthenticated = Code(codes.Unauthenticated)
	// CodeNotFound marks the absence of a record. Callers treat it as a
	// normal outcome, not a failure.
	CodeNotFound = Code(codes.NotFound)
	// CodeUnavailable marks a transient network or storage failure.
	CodeUnavailable = Code(codes.Unavailable)
	// CodeAlreadyExists marks a duplicate-key violation on an upsert path,
	// which means the store broke its atomic replace-or-insert contract.
	CodeAlreadyExists = Code(codes.AlreadyExists)
	CodeInternal      = Code(codes.Internal)
)

var code2http = map[Code]int{
	CodeInvalidArgument: http.StatusBadRequest,
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeNotFound:        http.StatusNotFound,
	CodeUnavailable:     http.StatusServiceUnavailable,
	CodeAlreadyExists:   http.StatusInternalServerError,
	CodeInternal:        http.StatusInternalServerError,
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert extracts the typed error from err, wrapping unknown errors as
// internal ones.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func InvalidArgumentf(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithMessagef(format, args...))
}

func Unauthenticatedf(format string, args ...any) *Error {
	return New(CodeUnauthenticated, WithMessagef(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(CodeNotFound, WithMessagef(format, args...))
}

func Unavailable(err error) *Error {
	return New(CodeUnavailable, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
