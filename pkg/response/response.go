package response

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries the HTTP status a domain error should surface with.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap keeps the code of base and replaces its message with a more specific
// user-facing one. errors.Is(Wrap(base, ...), base) holds.
func Wrap(base error, format string, args ...any) error {
	var b *Error
	if !errors.As(base, &b) {
		return fmt.Errorf(format+": %w", append(args, base)...)
	}
	return &wrapped{
		resp: &Error{Code: b.Code, Err: fmt.Errorf(format, args...)},
		base: base,
	}
}

type wrapped struct {
	resp *Error
	base error
}

func (w *wrapped) Error() string {
	return w.resp.Error()
}

func (w *wrapped) Is(target error) bool {
	return target == w.base || w.resp.Is(target)
}

// As hands out the specific error so callers reading *Error see the wrapped
// message rather than the base one.
func (w *wrapped) As(target any) bool {
	if t, ok := target.(**Error); ok {
		*t = w.resp
		return true
	}
	return false
}

func (w *wrapped) Unwrap() error {
	return w.base
}

// StatusCode returns the status attached to err, or 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return http.StatusInternalServerError
}
