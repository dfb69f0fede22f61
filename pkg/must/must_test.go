package must

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOK_PanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("OK(err) did not panic")
		}
	}()
	OK(errors.New("boom"))
}

func TestGet(t *testing.T) {
	if got := Get(42, nil); got != 42 {
		t.Errorf("Get(42, nil) -> %v, want 42", got)
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	name := filepath.Join(t.TempDir(), "x", "y", "Package.swift")
	WriteFile(name, "// swift-tools-version:5.5")
	if got := ReadFile(name); got != "// swift-tools-version:5.5" {
		t.Errorf("ReadFile -> %q", got)
	}
}

func TestWriteScript_IsExecutable(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bin", "swift")
	WriteScript(name, "echo hi\n")
	info, err := os.Stat(name)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("mode %v is not executable", info.Mode())
	}
	if got := ReadFile(name); got != "#!/bin/sh\necho hi\n" {
		t.Errorf("content %q", got)
	}
}

func TestPipe(t *testing.T) {
	r, w := Pipe()
	defer r.Close()
	w.WriteString("x")
	w.Close()
	b := make([]byte, 1)
	if n, _ := r.Read(b); n != 1 || b[0] != 'x' {
		t.Errorf("read %q from pipe", b[:n])
	}
}
