// Package repl controls a Swift REPL process hosted by a debugger.
//
// A Controller launches the process once, evaluates fragments of source one
// at a time and classifies the outcome of each evaluation. The process is
// never relaunched: once it dies, the controller is Terminated.
package repl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"src.swiftkernel.dev/pkg/env"
	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[repl] ")

// State is the state of a Controller.
type State int

// States of a Controller.
const (
	Uninitialized State = iota
	Launching
	Ready
	Evaluating
	Terminated
)

var stateNames = [...]string{"Uninitialized", "Launching", "Ready", "Evaluating", "Terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EntryPoint is the function of the REPL executable on which the process
// stops before fragments are evaluated.
const EntryPoint = "repl_main"

// Config configures Launch.
type Config struct {
	// Path to the repl_swift executable.
	ReplSwiftPath string
	// Architecture of the target. Empty means that of the running machine.
	Arch string
	// Directories searched for Swift modules, in order.
	ModuleSearchPaths []string
	// Environment of the process before filtering. Nil means the current
	// environment.
	Env []string
	// Working directory of the process. Empty means the current directory.
	Dir string
}

// Controller owns a REPL process.
type Controller struct {
	dbg Debugger

	// Guards state. The debugger handle is written only before Launch
	// returns.
	mu    sync.Mutex
	state State

	closeOnce sync.Once
	closeErr  error
}

// Launch launches the REPL process under dbg and returns a Ready controller.
// Any failure is a *LaunchError; the debugger is closed in that case.
func Launch(ctx context.Context, dbg Debugger, cfg Config) (*Controller, error) {
	c := &Controller{dbg: dbg, state: Launching}
	if err := c.launch(ctx, cfg); err != nil {
		c.setState(Terminated)
		dbg.Close()
		return nil, err
	}
	c.setState(Ready)
	logger.Infow("REPL launched", "path", cfg.ReplSwiftPath)
	return c, nil
}

func (c *Controller) launch(ctx context.Context, cfg Config) error {
	if cfg.ReplSwiftPath == "" {
		return &LaunchError{"create target", fmt.Errorf("$%s is not set", env.REPL_SWIFT_PATH)}
	}
	arch := cfg.Arch
	if arch == "" {
		arch = MachineArch()
	}
	for _, dir := range cfg.ModuleSearchPaths {
		if err := c.dbg.AppendModuleSearchPath(ctx, dir); err != nil {
			return &LaunchError{"module search path " + dir, err}
		}
	}
	if err := c.dbg.CreateTarget(ctx, cfg.ReplSwiftPath, arch); err != nil {
		return &LaunchError{fmt.Sprintf("create target %s with arch %s", cfg.ReplSwiftPath, arch), err}
	}
	if err := c.dbg.SetBreakpoint(ctx, EntryPoint); err != nil {
		return &LaunchError{"set breakpoint on " + EntryPoint, err}
	}
	environ := cfg.Env
	if environ == nil {
		environ = os.Environ()
	}
	dir := cfg.Dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	err := c.dbg.Launch(ctx, LaunchOptions{
		Env: FilterEnv(environ, env.EvaluatorBlocklist), Dir: dir, DisableASLR: false})
	if err != nil {
		return &LaunchError{"launch process", err}
	}
	return nil
}

// MachineArch returns the name of the running machine's architecture in the
// form the debugger expects.
func MachineArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		if runtime.GOOS == "darwin" {
			return "arm64"
		}
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}

// FilterEnv returns the entries of environ whose names are not in blocklist.
func FilterEnv(environ, blocklist []string) []string {
	result := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if !contains(blocklist, name) {
			result = append(result, kv)
		}
	}
	return result
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// State returns the state of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// SourceLocationName returns the file name that errors in a cell are
// attributed to.
func SourceLocationName(cell int) string {
	return fmt.Sprintf("<Cell %d>", cell)
}

var evalOptions = EvalOptions{
	Language:          "swift",
	REPLMode:          true,
	UnwindOnError:     false,
	GenerateDebugInfo: true,
	Timeout:           0,
}

// Evaluate evaluates code as cell number cell. Errors reported by the
// compiler or the runtime are returned as an *EvalError result, not as an
// error. The error return is ErrProcessDied if the process is no longer valid
// afterwards, ErrNotReady if the controller is not Ready, or an error talking
// to the debugger.
func (c *Controller) Evaluate(ctx context.Context, code string, cell int) (Result, error) {
	c.mu.Lock()
	if c.state != Ready {
		state := c.state
		c.mu.Unlock()
		if state == Terminated {
			return nil, ErrProcessDied
		}
		return nil, ErrNotReady
	}
	c.state = Evaluating
	c.mu.Unlock()

	source := fmt.Sprintf("#sourceLocation(file: %q, line: 1)\n%s", SourceLocationName(cell), code)
	raw, err := c.dbg.Evaluate(ctx, source, evalOptions)
	if !c.dbg.Valid() {
		logger.Warnw("REPL process died", "cell", cell)
		c.setState(Terminated)
		return nil, ErrProcessDied
	}
	c.setState(Ready)
	if err != nil {
		return nil, err
	}
	return classify(raw), nil
}

func classify(raw *EvalResult) Result {
	switch raw.ErrorKind {
	case ErrorNone:
		if raw.Value == nil {
			return SuccessWithoutValue{}
		}
		return SuccessWithValue{raw.Value}
	case ErrorGeneric:
		return SuccessWithoutValue{}
	default:
		return &EvalError{Raw: raw.ErrorText}
	}
}

// Valid reports whether the process is running.
func (c *Controller) Valid() bool {
	if c.State() == Terminated {
		return false
	}
	return c.dbg.Valid()
}

// Interrupt asks a running evaluation to stop. It only reads the debugger
// handle and never changes the state of the controller. It returns
// ErrNoProcess if there is no valid process.
func (c *Controller) Interrupt() error {
	if !c.Valid() {
		return ErrNoProcess
	}
	return c.dbg.Interrupt()
}

// ReadStdout reads up to max bytes of buffered process output.
func (c *Controller) ReadStdout(max int) ([]byte, error) {
	return c.dbg.ReadStdout(max)
}

// StackTrace returns the main thread's stack trace formatted one frame per
// line, as "  at function (file:line:column)". Frames without a source
// location and compiler-generated frames are left out.
func (c *Controller) StackTrace() ([]string, error) {
	frames, err := c.dbg.StackTrace()
	if err != nil {
		return nil, err
	}
	return FormatFrames(frames), nil
}

// FormatFrames formats frames as described for Controller.StackTrace.
func FormatFrames(frames []Frame) []string {
	var lines []string
	for _, f := range frames {
		if f.File == "" || f.File == "<compiler-generated>" {
			continue
		}
		name := f.Function
		if name == "" {
			name = "<unknown>"
		}
		lines = append(lines, fmt.Sprintf("  at %s (%s:%d:%d)",
			name, filepath.Base(f.File), f.Line, f.Column))
	}
	return lines
}

// DebuggerVersion returns the debugger's description.
func (c *Controller) DebuggerVersion() string { return c.dbg.Version() }

// Close kills the process. The controller is Terminated afterwards. Close is
// idempotent.
func (c *Controller) Close() error {
	c.setState(Terminated)
	c.closeOnce.Do(func() { c.closeErr = c.dbg.Close() })
	return c.closeErr
}
