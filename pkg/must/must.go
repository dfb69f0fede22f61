// Package must has helpers that panic on errors. They are meant for tests,
// where a failing filesystem or pipe call means the test setup is broken.
package must

import (
	"os"
	"path/filepath"
)

// OK panics if err is not nil.
func OK(err error) {
	if err != nil {
		panic(err)
	}
}

// Get returns v, or panics if err is not nil.
func Get[T any](v T, err error) T {
	OK(err)
	return v
}

// Pipe returns the two ends of a new OS pipe.
func Pipe() (r, w *os.File) {
	r, w, err := os.Pipe()
	OK(err)
	return r, w
}

// WriteFile writes content to a file, creating missing parent directories.
func WriteFile(name, content string) {
	write(name, content, 0o644)
}

// WriteScript writes an executable shell script with the given body. It is
// used to fake toolchain binaries.
func WriteScript(name, body string) {
	write(name, "#!/bin/sh\n"+body, 0o755)
}

func write(name, content string, perm os.FileMode) {
	OK(os.MkdirAll(filepath.Dir(name), 0o755))
	OK(os.WriteFile(name, []byte(content), perm))
}

// ReadFile returns the content of a file.
func ReadFile(name string) string {
	return string(Get(os.ReadFile(name)))
}
