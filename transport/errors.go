package transport

import "fmt"

// Error reports a transport-level failure: a broken pipe, a closed
// connection, a child process that exited unexpectedly. It is distinct
// from a protocol-level JSON-RPC error and is never translated into one on
// the wire -- callers see it as a Go error from Send/Receive/Close.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a transport Error tagged with the operation that
// produced it.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// ErrClosed is returned by Send/Receive once Close has been called.
var ErrClosed = fmt.Errorf("transport: closed")
