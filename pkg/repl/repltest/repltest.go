// Package repltest provides a scripted Debugger for testing code that drives
// a REPL.
package repltest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"src.swiftkernel.dev/pkg/repl"
)

// EvalFunc computes the result of evaluating code. The code does not include
// the #sourceLocation line added by repl.Controller.
type EvalFunc func(ctx context.Context, d *Debugger, code string) (*repl.EvalResult, error)

// Debugger is a fake repl.Debugger. The zero value is not usable; use New.
type Debugger struct {
	mu          sync.Mutex
	eval        EvalFunc
	failures    map[string]error
	calls       []string
	searchPaths []string
	target      string
	arch        string
	breakpoint  string
	launch      *repl.LaunchOptions
	evaluated   []string
	stdout      []byte
	frames      []repl.Frame
	valid       bool
	closed      bool
	interrupts  chan struct{}
}

var _ repl.Debugger = (*Debugger)(nil)

// New returns a Debugger whose evaluations succeed without a value.
func New() *Debugger {
	return &Debugger{
		eval:       func(context.Context, *Debugger, string) (*repl.EvalResult, error) { return NoValue(), nil },
		failures:   map[string]error{},
		interrupts: make(chan struct{}, 16),
	}
}

// NoValue returns the result of a statement.
func NoValue() *repl.EvalResult { return &repl.EvalResult{ErrorKind: repl.ErrorGeneric} }

// WithValue returns a result carrying v.
func WithValue(v *repl.ValueNode) *repl.EvalResult {
	return &repl.EvalResult{ErrorKind: repl.ErrorNone, Value: v}
}

// Scalar returns a result with a scalar value described the way the
// debugger describes it, such as "(Int) $R0 = 42".
func Scalar(typ, value string) *repl.EvalResult {
	return WithValue(&repl.ValueNode{
		Type: typ, VarName: "$R0", Scalar: value,
		Description: "(" + typ + ") $R0 = " + value,
	})
}

// Error returns a failed result with the given diagnostic text.
func Error(text string) *repl.EvalResult {
	return &repl.EvalResult{ErrorKind: repl.ErrorExpression, ErrorText: text}
}

// OnEvaluate sets the function computing evaluation results.
func (d *Debugger) OnEvaluate(f EvalFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eval = f
}

// Fail makes the named method, such as "SetBreakpoint", fail with err.
func (d *Debugger) Fail(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[method] = err
}

// WriteStdout appends to the output buffered by the process.
func (d *Debugger) WriteStdout(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stdout = append(d.stdout, s...)
}

// SetFrames sets the stack trace of the main thread.
func (d *Debugger) SetFrames(frames []repl.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = frames
}

// Kill makes the process invalid.
func (d *Debugger) Kill() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = false
}

// Calls returns the names of the methods called so far, except ReadStdout,
// Valid and Version.
func (d *Debugger) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Evaluated returns the code of all evaluations, without #sourceLocation
// lines.
func (d *Debugger) Evaluated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.evaluated...)
}

// SearchPaths returns the module search paths appended so far.
func (d *Debugger) SearchPaths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.searchPaths...)
}

// Target returns the path and architecture of the created target.
func (d *Debugger) Target() (path, arch string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target, d.arch
}

// Breakpoint returns the symbol of the breakpoint.
func (d *Debugger) Breakpoint() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.breakpoint
}

// LaunchOptions returns the options passed to Launch, or nil.
func (d *Debugger) LaunchOptions() *repl.LaunchOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launch
}

// Interrupts returns a channel that receives a value for each Interrupt call.
func (d *Debugger) Interrupts() <-chan struct{} { return d.interrupts }

// Closed reports whether Close has been called.
func (d *Debugger) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Records a call and returns the failure configured for it.
func (d *Debugger) call(method string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, method)
	return d.failures[method]
}

func (d *Debugger) CreateTarget(_ context.Context, path, arch string) error {
	if err := d.call("CreateTarget"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target, d.arch = path, arch
	return nil
}

func (d *Debugger) AppendModuleSearchPath(_ context.Context, dir string) error {
	if err := d.call("AppendModuleSearchPath"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchPaths = append(d.searchPaths, dir)
	return nil
}

func (d *Debugger) SetBreakpoint(_ context.Context, symbol string) error {
	if err := d.call("SetBreakpoint"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoint = symbol
	return nil
}

func (d *Debugger) Launch(_ context.Context, opts repl.LaunchOptions) error {
	if err := d.call("Launch"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.launch = &opts
	d.valid = true
	return nil
}

func (d *Debugger) Evaluate(ctx context.Context, code string, _ repl.EvalOptions) (*repl.EvalResult, error) {
	if err := d.call("Evaluate"); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(code, "#sourceLocation(") {
		return nil, errors.New("code without #sourceLocation")
	}
	_, code, _ = strings.Cut(code, "\n")
	d.mu.Lock()
	d.evaluated = append(d.evaluated, code)
	eval := d.eval
	d.mu.Unlock()
	return eval(ctx, d, code)
}

func (d *Debugger) ReadStdout(max int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := min(max, len(d.stdout))
	out := append([]byte(nil), d.stdout[:n]...)
	d.stdout = d.stdout[n:]
	return out, nil
}

func (d *Debugger) Interrupt() error {
	if err := d.call("Interrupt"); err != nil {
		return err
	}
	select {
	case d.interrupts <- struct{}{}:
	default:
	}
	return nil
}

func (d *Debugger) Valid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valid
}

func (d *Debugger) StackTrace() ([]repl.Frame, error) {
	if err := d.call("StackTrace"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]repl.Frame(nil), d.frames...), nil
}

func (d *Debugger) Version() string { return "fake debugger" }

func (d *Debugger) Close() error {
	d.call("Close")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = false
	d.closed = true
	return nil
}
