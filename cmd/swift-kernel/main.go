// Swift-kernel executes Swift code interactively, through a long-lived REPL
// session with package installation and code intelligence. It serves
// JSON-RPC requests with --serve; otherwise it runs a console on the
// terminal.
package main

import (
	"os"

	"src.swiftkernel.dev/pkg/buildinfo"
	"src.swiftkernel.dev/pkg/prog"
	"src.swiftkernel.dev/pkg/serve"
	"src.swiftkernel.dev/pkg/shell"
)

func main() {
	os.Exit(prog.Run(
		[3]*os.File{os.Stdin, os.Stdout, os.Stderr}, os.Args,
		prog.Composite(&buildinfo.Program{}, &serve.Program{}, &shell.Program{})))
}
