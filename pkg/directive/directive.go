// Package directive parses the %-directives of a submission.
//
// There are three classes of directives:
//
//   - Install directives (%install, %install-swiftpm-flags,
//     %install-location, %install-extra-include-command, %system) may appear
//     on any line. They are collected over the whole submission and removed
//     from the source.
//
//   - Cell directives (%who, %reset, %timeit, %help, %lsmagic, %env,
//     %swift-version, %load, %save, %history) consume the whole submission.
//
//   - Line directives (%include, %enableCompletion, %disableCompletion) are
//     replaced in place.
//
// Lines removed from the source are replaced by empty lines, so that line
// numbers in diagnostics stay correct.
package directive

import (
	"fmt"
	"os"
	"strings"
)

// Submission is a parsed submission.
type Submission struct {
	Install Install
	// Non-nil if the submission is a cell directive.
	Cell *Cell
	// Source to evaluate. For %timeit, it is the timing harness around the
	// timed code. For other cell directives, it is empty.
	Code string
	// Completion toggles in the order they appear.
	CompletionToggles []bool
}

// Options configures Parse.
type Options struct {
	// Substituted for $cwd in install directives. Defaults to the working
	// directory.
	Cwd string
	// Directories searched by %include, in order.
	IncludePaths []string
	// Name of the cell in #sourceLocation directives, restored after an
	// included file.
	CellFile string
}

// Error is a malformed directive.
type Error struct {
	// 1-based line number, or 0 when the error is not about a single line.
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("Line %d: %s", e.Line, e.Msg)
}

func errorf(line int, format string, args ...any) *Error {
	return &Error{line, fmt.Sprintf(format, args...)}
}

// Parse parses the directives in code. The returned error is always an
// *Error.
func Parse(code string, opts Options) (*Submission, error) {
	if opts.Cwd == "" {
		opts.Cwd, _ = os.Getwd()
	}
	lines := strings.Split(code, "\n")
	sub := &Submission{}
	for i, line := range lines {
		consumed, err := sub.Install.parseLine(line, i+1, opts.Cwd)
		if err != nil {
			return nil, err
		}
		if consumed {
			lines[i] = ""
		}
	}

	cell, err := parseCell(strings.TrimSpace(strings.Join(lines, "\n")))
	if err != nil {
		return nil, err
	}
	if cell != nil {
		if cell.Kind == Reset && !sub.Install.Empty() {
			return nil, errorf(0, "%%reset cannot be combined with install directives")
		}
		sub.Cell = cell
		if cell.Kind == Timeit {
			sub.Code = TimeitHarness(cell.Arg)
		}
		return sub, nil
	}

	for i, line := range lines {
		replaced, err := sub.parseLine(line, i+1, opts)
		if err != nil {
			return nil, err
		}
		lines[i] = replaced
	}
	sub.Code = strings.Join(lines, "\n")
	return sub, nil
}

// TimeitHarness returns code that runs the given code and prints the time it
// took.
func TimeitHarness(code string) string {
	return `
import Foundation
let __start = Date()
` + code + `
let __end = Date()
let __elapsed = __end.timeIntervalSince(__start)
print("⏱️  Execution time: \(__elapsed * 1000) ms")
`
}
