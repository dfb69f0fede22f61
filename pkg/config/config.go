// Package config loads the kernel configuration from an optional YAML file and
// the environment.
//
// Values are resolved in this order, later sources overriding earlier ones:
// built-in defaults, the YAML file, environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"src.swiftkernel.dev/pkg/env"
)

// Config keeps the kernel configuration.
type Config struct {
	// Path to the repl_swift binary launched under the debugger.
	ReplSwiftPath string `yaml:"repl_swift_path"`
	// Paths to swift-build and swift-package, used by %install.
	SwiftBuildPath   string `yaml:"swift_build_path"`
	SwiftPackagePath string `yaml:"swift_package_path"`
	// Root of the Swift toolchain, such as /usr/share/swift.
	ToolchainRoot string `yaml:"toolchain_root"`

	// Debugger host program and its arguments. Empty means the bundled LLDB
	// bridge, run with Python.
	DebuggerHost     string   `yaml:"debugger_host"`
	DebuggerHostArgs []string `yaml:"debugger_host_args"`
	// Python interpreter for the LLDB bridge. It must match the Python that
	// the toolchain's LLDB was built against. Empty means python3 in PATH.
	Python string `yaml:"python"`

	// Extra module search paths for the REPL, appended after those produced
	// by %install.
	ModuleSearchPaths []string `yaml:"module_search_paths"`
	// Directories searched by %include, in order.
	IncludePaths []string `yaml:"include_paths"`

	// Directory for kernel scratch files. Empty means a fresh temporary
	// directory per kernel.
	ScratchDir string `yaml:"scratch_dir"`
	// Path to the history database. Empty means history.db in the scratch
	// directory.
	HistoryDB string `yaml:"history_db"`

	// Path to sourcekit-lsp. Empty means search for it.
	LanguageServer string `yaml:"language_server"`
	// Disables the code intelligence session entirely.
	DisableIntel bool `yaml:"disable_intel"`

	Timeouts Timeouts `yaml:"timeouts"`
	Drain    Drain    `yaml:"drain"`
}

// Timeouts keeps the time limits of blocking operations.
type Timeouts struct {
	Build      time.Duration `yaml:"build"`
	Initialize time.Duration `yaml:"initialize"`
	Completion time.Duration `yaml:"completion"`
	Hover      time.Duration `yaml:"hover"`
	Definition time.Duration `yaml:"definition"`
}

// Drain keeps parameters of the stdout drain.
type Drain struct {
	Interval time.Duration `yaml:"interval"`
	ReadSize int           `yaml:"read_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timeouts: Timeouts{
			Build:      600 * time.Second,
			Initialize: 15 * time.Second,
			Completion: 5 * time.Second,
			Hover:      10 * time.Second,
			Definition: 2 * time.Second,
		},
		Drain: Drain{
			Interval: 100 * time.Millisecond,
			ReadSize: 1000,
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path and
// the process environment. If path is empty, $SWIFT_KERNEL_CONFIG is used; if
// that is also empty, no file is read.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv(env.SWIFT_KERNEL_CONFIG)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := c.decode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(c)
	if errors.Is(err, io.EOF) {
		// An empty file leaves the defaults untouched.
		return nil
	}
	return err
}

// ApplyEnv overrides fields from environment variables, looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, s := range []struct {
		name string
		ptr  *string
	}{
		{env.REPL_SWIFT_PATH, &c.ReplSwiftPath},
		{env.SWIFT_BUILD_PATH, &c.SwiftBuildPath},
		{env.SWIFT_PACKAGE_PATH, &c.SwiftPackagePath},
		{env.SWIFT_TOOLCHAIN_ROOT, &c.ToolchainRoot},
		{env.SWIFT_KERNEL_DEBUGGER_HOST, &c.DebuggerHost},
		{env.SWIFT_KERNEL_PYTHON, &c.Python},
	} {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.ptr = v
		}
	}
	if v, ok := lookup(env.SWIFT_JUPYTER_BUILD_TIMEOUT); ok && v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid $%s: %q is not a positive number of seconds",
				env.SWIFT_JUPYTER_BUILD_TIMEOUT, v)
		}
		c.Timeouts.Build = time.Duration(secs) * time.Second
	}
	return nil
}

// HistoryPath returns the path of the history database given the resolved
// scratch directory.
func (c *Config) HistoryPath(scratchDir string) string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return filepath.Join(scratchDir, "history.db")
}
