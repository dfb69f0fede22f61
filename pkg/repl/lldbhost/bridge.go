package lldbhost

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"src.swiftkernel.dev/pkg/env"
	"src.swiftkernel.dev/pkg/toolchain"
)

// The bundled host. LLDB exposes its debugger API only to C++ and Python, so
// the host side of the protocol is a Python program.
//
//go:embed bridge.py
var bridgeScript []byte

// BridgeFile is the name under which the bundled host is written.
const BridgeFile = "lldb_bridge.py"

// Bridge describes how to run the bundled host.
type Bridge struct {
	// Root of the Swift toolchain. When set, its lldb is preferred over the
	// one in PATH, and its bin directory is put first in the host's PATH.
	ToolchainRoot string
	// Python interpreter. Empty means python3 in PATH.
	Python string
	// Directory the host script is written to.
	Dir string
}

// Command writes the host script to b.Dir and returns the Command that runs
// it. The Python package of LLDB is located by asking lldb with -P.
func (b Bridge) Command(ctx context.Context) (Command, error) {
	lldbPath, err := b.lldb()
	if err != nil {
		return Command{}, err
	}
	out, err := exec.CommandContext(ctx, lldbPath, "-P").Output()
	if err != nil {
		return Command{}, fmt.Errorf("%s -P: %w", lldbPath, err)
	}
	pythonPath := strings.TrimSpace(string(out))
	if pythonPath == "" {
		return Command{}, fmt.Errorf("%s -P printed no Python path", lldbPath)
	}

	python := b.Python
	if python == "" {
		if python, err = exec.LookPath("python3"); err != nil {
			return Command{}, fmt.Errorf("cannot find python3 for the LLDB bridge: %w", err)
		}
	}

	script := filepath.Join(b.Dir, BridgeFile)
	if err := os.WriteFile(script, bridgeScript, 0o644); err != nil {
		return Command{}, err
	}

	environ := os.Environ()
	if b.ToolchainRoot != "" {
		environ = toolchain.WithPathPrefix(environ, filepath.Join(b.ToolchainRoot, "usr", "bin"))
	}
	environ = withPrefix(environ, env.PYTHONPATH, pythonPath)
	logger.Infow("using LLDB bridge", "python", python, "lldb", lldbPath, "pythonpath", pythonPath)
	return Command{Path: python, Args: []string{"-u", script}, Env: environ}, nil
}

var errNoLLDB = errors.New("cannot find lldb")

func (b Bridge) lldb() (string, error) {
	if b.ToolchainRoot != "" {
		p := filepath.Join(b.ToolchainRoot, "usr", "bin", "lldb")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath("lldb"); err == nil {
		return p, nil
	}
	return "", errNoLLDB
}

// Prepends dir to the list variable name of environ, adding the variable if
// it is missing.
func withPrefix(environ []string, name, dir string) []string {
	result := make([]string, 0, len(environ)+1)
	found := false
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, name+"="); ok {
			found = true
			if v != "" {
				kv = name + "=" + dir + string(os.PathListSeparator) + v
			} else {
				kv = name + "=" + dir
			}
		}
		result = append(result, kv)
	}
	if !found {
		result = append(result, name+"="+dir)
	}
	return result
}
