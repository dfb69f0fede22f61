package kernel

import (
	"fmt"

	"src.swiftkernel.dev/pkg/repl"
)

// Kind is the kind of an Outcome.
type Kind int

// Kinds of outcomes.
const (
	// The submission ran and produced no value, or had nothing to evaluate.
	NoValue Kind = iota
	// The submission ran and produced a value.
	Value
	// A directive was malformed. The session is untouched.
	PreprocessError
	// The compiler or the runtime reported an error. The session remains
	// usable.
	EvalError
	// A package could not be installed.
	InstallError
	// The REPL process could not be launched or is no longer running. The
	// kernel must be restarted, or the session reset.
	ProcessDied
	// An unexpected error. Later submissions may still work.
	InternalError
)

var kindNames = [...]string{
	"NoValue", "Value", "PreprocessError", "EvalError", "InstallError",
	"ProcessDied", "InternalError"}

func (k Kind) String() string {
	if 0 <= k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the result of a submission.
type Outcome struct {
	Kind           Kind
	ExecutionCount int
	// Rendered value, for Value.
	Display *repl.Display
	// Lines shown to the user, for error kinds.
	Traceback []string
	// Underlying error, for error kinds.
	Err error
}

// IsError reports whether the outcome is an error.
func (o *Outcome) IsError() bool { return o.Kind >= PreprocessError }

// Stream names.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// Event is output streamed while a submission is processed.
type Event struct {
	// If true, the output shown so far should be cleared and the other fields
	// are empty.
	Clear bool
	// Stdout or Stderr.
	Stream string
	Text   string
}

// Sink receives events. It is called from the goroutine running Execute and
// from the stdout drain goroutine, never concurrently.
type Sink func(Event)

// Messages of outcomes that have no underlying diagnostic.
var (
	processKilled = []string{"Process killed"}
	restartHint   = "Restart the kernel, or run %reset to start a new Swift process."
	unexpected    = []string{
		"Unexpected error during cell execution.",
		"The kernel may be in an unstable state. Consider restarting if issues persist.",
	}
)

const (
	msgInstallAfterInit = "Install Error: Packages can only be installed during the first cell execution.\n\n" +
		"💡 Tip: Restart the kernel to install packages.\n" +
		"   • In Jupyter: Kernel menu → Restart\n" +
		"   • %install must be in the first cell before any other Swift code"
	msgSystemAfterInit = "System commands can only run in the first cell."
	msgShutDown        = "The kernel has been shut down."
)
