// Package apperr defines the error classes the generation pipeline
// distinguishes when mapping failures to responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind int

const (
	// KindValidation: the caller sent an unusable request. Maps to 4xx.
	KindValidation Kind = iota
	// KindUpstream: an inference backend call failed. Maps to 500 or a
	// terminal error event on streams.
	KindUpstream
	// KindPartialData: referenced data was incomplete, e.g. a snippet
	// body missing from the object store. The item is dropped silently.
	KindPartialData
	// KindParse: a malformed frame or payload from an upstream stream.
	// Logged and skipped.
	KindParse
)

// Error carries a kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Msg: msg, Err: err}
}

func PartialData(msg string, err error) error {
	return &Error{Kind: KindPartialData, Msg: msg, Err: err}
}

func Parse(msg string, err error) error {
	return &Error{Kind: KindParse, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindUpstream for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// IsValidation reports whether err is a caller error.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindValidation
}
