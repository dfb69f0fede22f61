// Package env keeps names of environment variables with special significance to
// the kernel.
package env

// Environment variables with special significance to the kernel.
//
// Note that some of these env vars may be significant only in special
// circumstances, such as when running unit tests.
const (
	HOME                         = "HOME"
	LD_PRELOAD                   = "LD_PRELOAD"
	PATH                         = "PATH"
	PWD                          = "PWD"
	PYTHONPATH                   = "PYTHONPATH"
	REPL_SWIFT_PATH              = "REPL_SWIFT_PATH"
	SWIFT_BUILD_PATH             = "SWIFT_BUILD_PATH"
	SWIFT_JUPYTER_BUILD_TIMEOUT  = "SWIFT_JUPYTER_BUILD_TIMEOUT"
	SWIFT_KERNEL_CONFIG          = "SWIFT_KERNEL_CONFIG"
	SWIFT_KERNEL_DEBUGGER_HOST   = "SWIFT_KERNEL_DEBUGGER_HOST"
	SWIFT_KERNEL_PYTHON          = "SWIFT_KERNEL_PYTHON"
	SWIFT_KERNEL_TEST_TIME_SCALE = "SWIFT_KERNEL_TEST_TIME_SCALE"
	SWIFT_PACKAGE_PATH           = "SWIFT_PACKAGE_PATH"
	SWIFT_TOOLCHAIN_ROOT         = "SWIFT_TOOLCHAIN_ROOT"
)

// EvaluatorBlocklist lists the variables that are stripped from the
// environment of the evaluator subprocess. Everything else is passed through.
var EvaluatorBlocklist = []string{PYTHONPATH, REPL_SWIFT_PATH}
