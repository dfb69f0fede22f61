package repl

import (
	"context"
	"time"
)

// Debugger is the interface to the external debugger that hosts the REPL
// process. Implementations must allow Interrupt, Valid and ReadStdout to be
// called concurrently with Evaluate.
type Debugger interface {
	// CreateTarget creates the debug target for the executable at path,
	// selecting the slice for arch.
	CreateTarget(ctx context.Context, path, arch string) error
	// AppendModuleSearchPath adds a directory searched for Swift modules.
	AppendModuleSearchPath(ctx context.Context, dir string) error
	// SetBreakpoint sets a breakpoint on a function of the target's
	// executable.
	SetBreakpoint(ctx context.Context, symbol string) error
	// Launch starts the target process and runs it to the breakpoint.
	Launch(ctx context.Context, opts LaunchOptions) error
	// Evaluate evaluates code in the stopped process. It blocks until the
	// evaluation finishes, which may take arbitrarily long.
	Evaluate(ctx context.Context, code string, opts EvalOptions) (*EvalResult, error)
	// ReadStdout reads up to max bytes of buffered process output. It returns
	// an empty slice when no output is buffered.
	ReadStdout(max int) ([]byte, error)
	// Interrupt asks the process to stop at its next safe point. It does not
	// wait.
	Interrupt() error
	// Valid reports whether the process exists and has not exited.
	Valid() bool
	// StackTrace returns the frames of the main thread, innermost first.
	StackTrace() ([]Frame, error)
	// Version returns a description of the debugger.
	Version() string
	// Close kills the process and releases the debugger.
	Close() error
}

// LaunchOptions configures Debugger.Launch.
type LaunchOptions struct {
	Env []string `json:"env"`
	Dir string   `json:"dir"`
	// Whether to launch with address space layout randomization disabled.
	// Disabling it uses the personality syscall, which container sandboxes
	// commonly forbid.
	DisableASLR bool `json:"disableASLR"`
}

// EvalOptions configures Debugger.Evaluate.
type EvalOptions struct {
	Language          string `json:"language"`
	REPLMode          bool   `json:"replMode"`
	UnwindOnError     bool   `json:"unwindOnError"`
	GenerateDebugInfo bool   `json:"generateDebugInfo"`
	// Zero means no timeout.
	Timeout time.Duration `json:"timeout"`
}

// ErrorKind classifies the error object of an evaluation.
type ErrorKind string

// Error kinds. ErrorNone is the kind of an evaluation that produced a value;
// ErrorGeneric is reported for statements that produced no value.
const (
	ErrorNone       ErrorKind = "none"
	ErrorGeneric    ErrorKind = "generic"
	ErrorExpression ErrorKind = "expression"
)

// EvalResult is the raw result of Debugger.Evaluate.
type EvalResult struct {
	ErrorKind ErrorKind  `json:"errorKind"`
	ErrorText string     `json:"errorText,omitempty"`
	Value     *ValueNode `json:"value,omitempty"`
}

// Frame is a stack frame. File is empty for frames without source location.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}
