// Package sys provides system utilities used by the kernel's process
// management.
package sys

import (
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
)

// IsATTY determines whether the given file is a terminal.
func IsATTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsFileATTY is like IsATTY, but takes an *os.File. A nil file is not a
// terminal.
func IsFileATTY(f *os.File) bool {
	return f != nil && IsATTY(f.Fd())
}

const dumpStackBufSizeInit = 8192

// DumpStack returns the stack traces of all goroutines.
func DumpStack() string {
	buf := make([]byte, dumpStackBufSizeInit)
	for {
		n := runtime.Stack(buf, true)
		if n < cap(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, cap(buf)*2)
	}
}
