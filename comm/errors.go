package comm

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen           = errors.New("transport is not open")
	ErrQueuesNotAttached = errors.New("input and output queues must be attached")
	ErrAlreadyStarted    = errors.New("dispatcher already started")
	ErrStopped           = errors.New("dispatcher stopped")
)

// OpenError reports a failure to open or configure the serial device.
type OpenError struct {
	Device string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Device, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// IoError reports a failed write or read in the middle of a command.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a malformed command or a symbol that can't be resolved.
type ProtocolError struct {
	Reason  string
	Action  string
	Content string
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Action != "" && e.Content != "":
		return fmt.Sprintf("%s: action=%q content=%q", e.Reason, e.Action, e.Content)
	case e.Action != "":
		return fmt.Sprintf("%s: action=%q", e.Reason, e.Action)
	case e.Content != "":
		return fmt.Sprintf("%s: content=%q", e.Reason, e.Content)
	default:
		return e.Reason
	}
}
