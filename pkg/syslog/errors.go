package syslog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every argument validation failure
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned when sending through a closed Client
	ErrClosed = errors.New("syslog client is closed")
)

// ArgumentError describes a rejected argument. It is raised before any
// network I/O is attempted.
type ArgumentError struct {
	Arg    string
	Value  interface{}
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid argument %s: %s", e.Arg, e.Reason)
	}
	return fmt.Sprintf("invalid argument %s=%v: %s", e.Arg, e.Value, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
