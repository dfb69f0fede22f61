package repl

import (
	"errors"
	"fmt"
	"strings"
)

// Result is the classified result of an evaluation: SuccessWithoutValue,
// SuccessWithValue or *EvalError.
type Result interface{ isResult() }

// SuccessWithoutValue is the result of code that ran and produced no value.
type SuccessWithoutValue struct{}

// SuccessWithValue is the result of code that ran and produced a value.
type SuccessWithValue struct{ Value Value }

func (SuccessWithoutValue) isResult() {}
func (SuccessWithValue) isResult()    {}
func (*EvalError) isResult()          {}

// ErrProcessDied is returned by Evaluate when the REPL process is no longer
// valid after an evaluation. The controller cannot be used afterwards.
var ErrProcessDied = errors.New("REPL process died")

// ErrNoProcess is returned by Interrupt when there is no running process.
var ErrNoProcess = errors.New("no Swift process currently running")

// ErrNotReady is returned by Evaluate when the controller is not Ready.
var ErrNotReady = errors.New("REPL is not ready")

// LaunchError is returned by Launch. Step names the failed step.
type LaunchError struct {
	Step string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot launch REPL: %s: %v", e.Step, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// EvalError is a compile or runtime error reported by the debugger.
type EvalError struct {
	// Raw diagnostic text.
	Raw string
}

func (e *EvalError) Error() string { return e.Message() }

// Severity is "error", "warning" or "note" if the text contains the
// corresponding marker, checked in that order, or "unknown".
func (e *EvalError) Severity() string {
	lower := strings.ToLower(e.Raw)
	for _, s := range []string{"error", "warning", "note"} {
		if strings.Contains(lower, s+":") {
			return s
		}
	}
	return "unknown"
}

var noisePrefixes = []string{
	"error: <EXPR>:",
	"Execution was interrupted, reason: ",
}

// Message returns the text without debugger-specific prefixes.
func (e *EvalError) Message() string {
	msg := e.Raw
	for _, prefix := range noisePrefixes {
		if rest, ok := strings.CutPrefix(msg, prefix); ok {
			msg = strings.TrimLeft(rest, " \t\r\n")
		}
	}
	return strings.TrimSpace(msg)
}

// HelpfulMessage returns Message followed by the hint of the first matching
// rule in Rules, if any.
func (e *EvalError) HelpfulMessage() string {
	msg := e.Message()
	if hint := Rules.Hint(msg); hint != "" {
		return msg + "\n\n" + hint
	}
	return msg
}
