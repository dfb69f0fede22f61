package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"src.swiftkernel.dev/pkg/must"
	"src.swiftkernel.dev/pkg/testutil"
)

func TestFindLanguageServer_InPath(t *testing.T) {
	dir := testutil.TempDir(t)
	must.WriteScript(filepath.Join(dir, "sourcekit-lsp"), "")
	t.Setenv("PATH", dir)

	got, err := FindLanguageServer("")
	if want := filepath.Join(dir, "sourcekit-lsp"); got != want || err != nil {
		t.Errorf("FindLanguageServer -> (%q, %v), want (%q, nil)", got, err, want)
	}
}

func TestFindLanguageServer_NextToSwift(t *testing.T) {
	dir := testutil.TempDir(t)
	bin := filepath.Join(dir, "toolchain", "usr", "bin")
	must.WriteScript(filepath.Join(bin, "swift"), "")
	must.WriteScript(filepath.Join(bin, "sourcekit-lsp"), "")
	link := filepath.Join(dir, "swift")
	must.OK(os.Symlink(filepath.Join(bin, "swift"), link))
	t.Setenv("PATH", filepath.Join(dir, "empty"))
	t.Setenv("HOME", dir)

	got, err := FindLanguageServer(link)
	if want := filepath.Join(bin, "sourcekit-lsp"); got != want || err != nil {
		t.Errorf("FindLanguageServer -> (%q, %v), want (%q, nil)", got, err, want)
	}
}

func TestFindLanguageServer_SwiftlyDir(t *testing.T) {
	home := testutil.TempDir(t)
	want := filepath.Join(home, ".local", "share", "swiftly", "bin", "sourcekit-lsp")
	must.WriteScript(want, "")
	t.Setenv("PATH", filepath.Join(home, "empty"))
	t.Setenv("HOME", home)

	got, err := FindLanguageServer(filepath.Join(home, "no-swift"))
	if got != want || err != nil {
		t.Errorf("FindLanguageServer -> (%q, %v), want (%q, nil)", got, err, want)
	}
}

var inferRootTests = []struct {
	path string
	want string
}{
	{"/opt/swift/usr/bin/sourcekit-lsp", "/opt/swift"},
	{"/usr/bin/sourcekit-lsp", "/"},
	{"/opt/swift/bin/sourcekit-lsp", ""},
	{"sourcekit-lsp", ""},
}

func TestInferRoot(t *testing.T) {
	for _, tc := range inferRootTests {
		if got := InferRoot(tc.path); got != tc.want {
			t.Errorf("InferRoot(%q) -> %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestWithPathPrefix(t *testing.T) {
	got := WithPathPrefix([]string{"A=1", "PATH=/bin:/usr/bin"}, "/tc/usr/bin")
	want := []string{"A=1", "PATH=/tc/usr/bin:/bin:/usr/bin"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithPathPrefix (-want +got):\n%s", diff)
	}
	got = WithPathPrefix([]string{"A=1"}, "/tc/usr/bin")
	want = []string{"A=1", "PATH=/tc/usr/bin"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("WithPathPrefix without PATH (-want +got):\n%s", diff)
	}
}

var parseVersionTests = []struct {
	output string
	want   string
}{
	{"Swift version 6.0.3 (swift-6.0.3-RELEASE)\nTarget: x86_64-unknown-linux-gnu", "6.0"},
	{"Apple Swift version 5.9 (swiftlang-5.9.0.128.108 clang-1500.0.40.1)", "5.9"},
	{"Swift version 6.3-dev (LLVM 1234)", "6.3"},
	{"", FallbackVersion},
	{"garbage", FallbackVersion},
}

func TestParseVersion(t *testing.T) {
	for _, tc := range parseVersionTests {
		if got := ParseVersion(tc.output); got != tc.want {
			t.Errorf("ParseVersion(%q) -> %q, want %q", tc.output, got, tc.want)
		}
	}
}

func TestVersionAndTargetInfo(t *testing.T) {
	swift := filepath.Join(testutil.TempDir(t), "swift")
	must.WriteScript(swift, `case "$1" in
--version) echo "Swift version 5.10 (swift-5.10-RELEASE)";;
-print-target-info) echo '{"target":{"triple":"x86_64-unknown-linux-gnu","moduleTriple":"x86_64-unknown-linux-gnu"},"paths":{"runtimeLibraryPaths":["/usr/lib/swift/linux"]}}';;
esac
`)

	out, err := Version(context.Background(), swift)
	if err != nil || ParseVersion(out) != "5.10" {
		t.Errorf("Version -> (%q, %v), want output with version 5.10", out, err)
	}
	info, err := QueryTargetInfo(context.Background(), swift)
	if err != nil {
		t.Fatalf("QueryTargetInfo -> error %v", err)
	}
	if info.Target.Triple != "x86_64-unknown-linux-gnu" {
		t.Errorf("triple = %q", info.Target.Triple)
	}
	if diff := cmp.Diff([]string{"/usr/lib/swift/linux"}, info.Paths.RuntimeLibraryPaths); diff != "" {
		t.Errorf("runtime paths (-want +got):\n%s", diff)
	}
}
