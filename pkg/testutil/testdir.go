// Package testutil contains helpers shared by the kernel's tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"src.swiftkernel.dev/pkg/must"
)

// TempDir returns a temporary directory for the duration of a test, with
// symlinks resolved. Install paths are compared by prefix, which fails on
// unresolved links such as macOS's /var -> /private/var.
func TempDir(t testing.TB) string {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	return dir
}

// InTempDir is like TempDir, but also changes into the directory until the
// test finishes.
func InTempDir(t testing.TB) string {
	dir := TempDir(t)
	t.Chdir(dir)
	return dir
}

// ApplyDir creates files in a directory. The map keys are slash-separated
// relative paths and the values are file contents.
func ApplyDir(dir string, files map[string]string) {
	for name, content := range files {
		must.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), content)
	}
}

// Unsetenv unsets an environment variable until the test finishes.
func Unsetenv(t testing.TB, name string) {
	// Registers the restoring cleanup.
	t.Setenv(name, "")
	os.Unsetenv(name)
}
