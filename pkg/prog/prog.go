// Package prog provides the entry point to the Swift kernel. Its subpackages
// correspond to subprograms of the kernel.
package prog

// This package parses the common flags, sets up logging and calls the
// appropriate "subprogram", one of the build information printer, the
// JSON-RPC server or the interactive console.

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"src.swiftkernel.dev/pkg/logutil"
)

// Flags keeps command-line flags.
type Flags struct {
	Log, LogLevel, Config string

	Help, Version, BuildInfo, JSON bool

	Serve bool
}

func newCommand(f *Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swift-kernel [flags]",
		Short: "Interactive Swift kernel",
		// Errors and usage are printed by Run.
		SilenceErrors:         true,
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		CompletionOptions:     cobra.CompletionOptions{DisableDefaultCmd: true},
	}
	fs := cmd.Flags()
	fs.SortFlags = false
	fs.StringVar(&f.Log, "log", "", "a file to write the debug log to")
	fs.StringVar(&f.LogLevel, "log-level", "", "minimum level of the debug log (debug, info, warn, error)")
	fs.StringVar(&f.Config, "config", "", "path to the YAML configuration file")

	fs.BoolVar(&f.Help, "help", false, "show usage help and quit")
	fs.BoolVar(&f.Version, "version", false, "show version and quit")
	fs.BoolVar(&f.BuildInfo, "buildinfo", false, "show build info and quit")
	fs.BoolVar(&f.JSON, "json", false, "show output in JSON; useful with --buildinfo and --version")

	fs.BoolVar(&f.Serve, "serve", false, "serve JSON-RPC requests on stdin and stdout instead of running the console")
	return cmd
}

func usage(out io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(out, "Usage: swift-kernel [flags]")
	fmt.Fprintln(out, "Supported flags:")
	fmt.Fprint(out, fs.FlagUsages())
}

// Run parses command-line flags and runs the first applicable subprogram. It
// returns the exit status of the program.
func Run(fds [3]*os.File, args []string, p Program) int {
	f := &Flags{}
	cmd := newCommand(f)
	cmd.SetArgs(args[1:])
	cmd.SetIn(fds[0])
	cmd.SetOut(fds[1])
	cmd.SetErr(fds[2])
	// Called instead of RunE for --help.
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) { usage(fds[1], c.Flags()) })

	var runErr error
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		// Handle flags common to all subprograms.
		if f.Log != "" {
			if err := logutil.SetOutputFile(f.Log); err != nil {
				fmt.Fprintln(fds[2], err)
			}
		}
		if f.LogLevel != "" {
			if err := logutil.SetLevel(f.LogLevel); err != nil {
				return BadUsage(err.Error())
			}
		}
		runErr = p.Run(fds, f, args)
		return runErr
	}

	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if runErr == nil {
		// A flag parsing error.
		fmt.Fprintln(fds[2], err)
		usage(fds[2], cmd.Flags())
		return 2
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(fds[2], msg)
	}
	var badUsage badUsageError
	var exit exitError
	switch {
	case errors.As(err, &badUsage):
		usage(fds[2], cmd.Flags())
	case errors.As(err, &exit):
		return int(exit)
	}
	return 2
}

// Program is a subprogram, such as the console or the JSON-RPC server.
type Program interface {
	// Run runs the subprogram with the parsed flags and the remaining
	// arguments. It returns ErrNotSuitable if the flags ask for another
	// subprogram.
	Run(fds [3]*os.File, f *Flags, args []string) error
}

// ErrNotSuitable is returned by Program.Run when the flags do not select the
// Program.
var ErrNotSuitable = errors.New("internal error: no suitable subprogram")

// Composite returns a Program that runs the first of programs that does not
// return ErrNotSuitable.
func Composite(programs ...Program) Program {
	return composite(programs)
}

type composite []Program

func (c composite) Run(fds [3]*os.File, f *Flags, args []string) error {
	for _, p := range c {
		if err := p.Run(fds, f, args); !errors.Is(err, ErrNotSuitable) {
			return err
		}
	}
	return ErrNotSuitable
}

// BadUsage returns an error that makes Run print msg followed by the usage,
// and exit with 2.
func BadUsage(msg string) error { return badUsageError(msg) }

type badUsageError string

func (e badUsageError) Error() string { return string(e) }

// Exit returns an error that makes Run exit with the given status silently.
// It returns nil for 0.
func Exit(status int) error {
	if status == 0 {
		return nil
	}
	return exitError(status)
}

type exitError int

func (e exitError) Error() string { return "" }
