package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"src.swiftkernel.dev/pkg/env"
	"src.swiftkernel.dev/pkg/testutil"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		env.SWIFT_KERNEL_CONFIG, env.SWIFT_JUPYTER_BUILD_TIMEOUT, env.REPL_SWIFT_PATH,
		env.SWIFT_BUILD_PATH, env.SWIFT_PACKAGE_PATH, env.SWIFT_TOOLCHAIN_ROOT,
		env.SWIFT_KERNEL_DEBUGGER_HOST, env.SWIFT_KERNEL_PYTHON,
	} {
		testutil.Unsetenv(t, name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load(\"\") differs from Default() (-want +got):\n%s", diff)
	}
	if c.Timeouts.Build != 600*time.Second {
		t.Errorf("default build timeout = %v, want 10m", c.Timeouts.Build)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "kernel.yaml")
	os.WriteFile(path, []byte(`
repl_swift_path: /from/file/repl_swift
swift_build_path: /from/file/swift-build
module_search_paths: [/opt/modules]
timeouts:
  completion: 3s
python: /from/file/python3
drain:
  read_size: 4096
`), 0o600)
	clearEnv(t)
	t.Setenv(env.SWIFT_BUILD_PATH, "/from/env/swift-build")
	t.Setenv(env.SWIFT_KERNEL_PYTHON, "/from/env/python3")
	t.Setenv(env.SWIFT_JUPYTER_BUILD_TIMEOUT, "1200")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.ReplSwiftPath = "/from/file/repl_swift"
	want.SwiftBuildPath = "/from/env/swift-build"
	want.ModuleSearchPaths = []string{"/opt/modules"}
	want.Python = "/from/env/python3"
	want.Timeouts.Completion = 3 * time.Second
	want.Timeouts.Build = 1200 * time.Second
	want.Drain.ReadSize = 4096
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Load (-want +got):\n%s", diff)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "empty.yaml")
	os.WriteFile(path, nil, 0o600)
	clearEnv(t)
	if _, err := Load(path); err != nil {
		t.Errorf("Load(empty file) -> %v, want nil", err)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := filepath.Join(testutil.TempDir(t), "bad.yaml")
	os.WriteFile(path, []byte("no_such_field: 1\n"), 0o600)
	if _, err := Load(path); err == nil {
		t.Errorf("Load with unknown field -> nil error")
	}
}

func TestApplyEnv_BadBuildTimeout(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == env.SWIFT_JUPYTER_BUILD_TIMEOUT {
			return "soon", true
		}
		return "", false
	}
	if err := Default().ApplyEnv(lookup); err == nil {
		t.Errorf("ApplyEnv with non-numeric timeout -> nil error")
	}
}

func TestHistoryPath(t *testing.T) {
	c := Default()
	if got := c.HistoryPath("/tmp/k"); got != filepath.Join("/tmp/k", "history.db") {
		t.Errorf("HistoryPath -> %q", got)
	}
	c.HistoryDB = "/var/h.db"
	if got := c.HistoryPath("/tmp/k"); got != "/var/h.db" {
		t.Errorf("HistoryPath with HistoryDB set -> %q", got)
	}
}
