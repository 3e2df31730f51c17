package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAdapterTimeout marks a carrier that did not answer within its invocation budget.
	ErrAdapterTimeout = errors.New("adapter timeout")
	// ErrAdapterData marks a carrier response whose structure could not be understood.
	ErrAdapterData = errors.New("adapter data error")
	// ErrExhausted is returned when no configured adapter produced any events.
	ErrExhausted = errors.New("tracking number not found")
)

// TimeoutError carries the diagnostic artifact captured when an adapter timed out.
type TimeoutError struct {
	Adapter  string
	Artifact string
	Err      error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Adapter, ErrAdapterTimeout)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Artifact != "" {
		msg += " (diagnostic: " + e.Artifact + ")"
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrAdapterTimeout }

// DataError wraps malformed or unexpected carrier output.
type DataError struct {
	Adapter string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Adapter, ErrAdapterData)
	}
	return fmt.Sprintf("%s: %v: %v", e.Adapter, ErrAdapterData, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Is(target error) bool { return target == ErrAdapterData }

// ExhaustedError lists every adapter attempted for a tracking number that nobody knew.
type ExhaustedError struct {
	TrackingNumber string
	Tried          []string
}

func (e *ExhaustedError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("%s: %v: no carrier adapters configured", e.TrackingNumber, ErrExhausted)
	}
	return fmt.Sprintf("%s: %v (tried: %s)", e.TrackingNumber, ErrExhausted, strings.Join(e.Tried, ", "))
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
