package lspclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// ErrClosed is returned when the connection to the server has been closed,
// either by Stop or because the server went away.
var ErrClosed = errors.New("language server connection closed")

// LaunchError is returned by Start when the server cannot be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot start language server %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// RequestTimeout is returned by Request when no response arrives in time.
type RequestTimeout struct {
	Method  string
	Timeout time.Duration
}

func (e *RequestTimeout) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Method, e.Timeout)
}

// RemoteError is returned by Request when the server responds with an error
// object.
type RemoteError struct {
	Method string
	Err    *jsonrpc2.Error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s (code %d)", e.Method, e.Err.Message, e.Err.Code)
}

func (e *RemoteError) Unwrap() error { return e.Err }
