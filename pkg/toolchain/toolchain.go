// Package toolchain locates the programs of a Swift toolchain and queries
// their versions.
package toolchain

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[toolchain] ")

// FallbackVersion is reported when the Swift version cannot be determined.
const FallbackVersion = "5.x"

const queryTimeout = 10 * time.Second

// ErrNotFound is returned when a program cannot be located.
var ErrNotFound = errors.New("not found")

// Install locations used by swiftly, searched after PATH.
var swiftlyDirs = []string{
	"~/.local/share/swiftly/bin",
	"/usr/local/share/swiftly/bin",
	"/opt/swiftly/bin",
}

// FindLanguageServer locates sourcekit-lsp. It searches PATH, then the
// directory containing the real path of the swift binary (swiftPath, or swift
// from PATH if empty), then the swiftly install locations.
func FindLanguageServer(swiftPath string) (string, error) {
	const name = "sourcekit-lsp"
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	if swiftPath == "" {
		swiftPath, _ = exec.LookPath("swift")
	}
	var candidates []string
	if swiftPath != "" {
		if real, err := filepath.EvalSymlinks(swiftPath); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(real), name))
		}
	}
	for _, dir := range swiftlyDirs {
		candidates = append(candidates, filepath.Join(expandHome(dir), name))
	}
	for _, c := range candidates {
		if isExecutable(c) {
			return c, nil
		}
	}
	logger.Debugw("language server not found", "candidates", candidates)
	return "", ErrNotFound
}

// InferRoot infers the toolchain root from the path of one of its programs,
// such as /opt/swift/usr/bin/sourcekit-lsp -> /opt/swift. It returns "" if
// the path is not under a usr/bin directory.
func InferRoot(programPath string) string {
	dir := filepath.Dir(programPath)
	if filepath.Base(dir) != "bin" || filepath.Base(filepath.Dir(dir)) != "usr" {
		return ""
	}
	return filepath.Dir(filepath.Dir(dir))
}

// WithPathPrefix returns a copy of environ with dir prepended to PATH.
func WithPathPrefix(environ []string, dir string) []string {
	result := make([]string, 0, len(environ)+1)
	found := false
	for _, kv := range environ {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			found = true
			kv = "PATH=" + dir + string(os.PathListSeparator) + v
		}
		result = append(result, kv)
	}
	if !found {
		result = append(result, "PATH="+dir)
	}
	return result
}

var versionPattern = regexp.MustCompile(`Swift version (\d+\.\d+)`)

// ParseVersion extracts the major.minor version from the output of
// swift --version. It returns FallbackVersion if there is none.
func ParseVersion(output string) string {
	if m := versionPattern.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return FallbackVersion
}

// Version runs swift --version and returns the full output.
func Version(ctx context.Context, swiftPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, swiftPath, "--version").Output()
	return strings.TrimSpace(string(out)), err
}

// TargetInfo is part of the output of swift -print-target-info.
type TargetInfo struct {
	Target struct {
		Triple       string `json:"triple"`
		ModuleTriple string `json:"moduleTriple"`
	} `json:"target"`
	Paths struct {
		RuntimeLibraryPaths []string `json:"runtimeLibraryPaths"`
	} `json:"paths"`
}

// QueryTargetInfo runs swift -print-target-info.
func QueryTargetInfo(ctx context.Context, swiftPath string) (*TargetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, swiftPath, "-print-target-info").Output()
	if err != nil {
		return nil, err
	}
	var info TargetInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0
}
