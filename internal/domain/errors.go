package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. None of them is fatal to the process: connection-level kinds
// lead to a retry, record-level kinds to a degraded or dropped record.
var (
	ErrDiscoveryMiss  = errors.New("peripheral not found")
	ErrConnect        = errors.New("connect failed")
	ErrSubscribe      = errors.New("subscribe failed")
	ErrConnectionLost = errors.New("connection lost")
	ErrDecode         = errors.New("decode failed")
	ErrSinkWrite      = errors.New("sink write failed")
)

var kinds = []error{ErrDiscoveryMiss, ErrConnect, ErrSubscribe, ErrConnectionLost, ErrDecode, ErrSinkWrite}

// Error tags a transport or storage error with its failure kind.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// Wrap returns err tagged with kind. A nil err still produces an error so
// callers can signal a kind without a cause.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the failure kind carried by err, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// FieldError reports a single record field that degraded to NotAvailable.
type FieldError struct {
	Field Field
	Input string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: parse %q: %v", e.Field, e.Input, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
