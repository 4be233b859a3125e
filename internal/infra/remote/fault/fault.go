// Package fault classifies failed remote calls.
//
// Transports report failures as *Fault (status code, native code, message and
// quota metadata). Classify maps any error to exactly one domain.ErrorType, and
// Error is the structured error handed back to callers.
package fault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// ErrCanceled is returned when the caller's context ends while the access
// layer is waiting or calling. It is never reported as a timeout.
var ErrCanceled = errors.New("remote call canceled")

// Canceled wraps a context error so that it matches ErrCanceled.
func Canceled(cause error) error {
	if cause == nil {
		return ErrCanceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

// Fault is a failed call as reported by a transport.
type Fault struct {
	StatusCode int
	Code       string // native code, e.g. ECONNRESET
	Message    string
	Quota      domain.Quota
	Err        error
}

func (f *Fault) Error() string {
	var sb strings.Builder
	if f.StatusCode > 0 {
		sb.WriteString(fmt.Sprintf("http %d", f.StatusCode))
	}
	if f.Code != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(f.Code)
	}
	if f.Message != "" {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(f.Message)
	}
	if f.Err != nil {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(f.Err.Error())
	}
	if sb.Len() == 0 {
		return "remote fault"
	}
	return sb.String()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Error is a classified failure surfaced to callers of the access layer.
type Error struct {
	Type        domain.ErrorType
	Category    domain.FaultCategory
	UserMessage string
	Retryable   bool
	StatusCode  int
	ResetAt     time.Time
	Err         error
}

// NewError builds an Error from a classification and its cause.
func NewError(c Classification, cause error) *Error {
	e := &Error{
		Type:        c.Type,
		Category:    c.Category,
		UserMessage: c.UserMessage,
		Retryable:   c.Retryable,
		Err:         cause,
	}
	var f *Fault
	if errors.As(cause, &f) {
		e.StatusCode = f.StatusCode
		e.ResetAt = f.Quota.ResetAt()
	}
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.UserMessage)
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.UserMessage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TypeOf returns the classified type of err, classifying it if needed.
func TypeOf(err error) domain.ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return Classify(err).Type
}
