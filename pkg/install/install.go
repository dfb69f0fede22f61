// Package install builds Swift packages requested by install directives and
// makes them available to the REPL.
//
// The pipeline synthesizes a package that depends on all requested packages,
// builds it with swift-build, copies the modules it produced into a module
// search directory and finally loads its dynamic library into the REPL
// process. Artifacts of a failed run are left in place; the next run
// overwrites them.
package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/shlex"
	"golang.org/x/sync/errgroup"
	"src.swiftkernel.dev/pkg/directive"
	"src.swiftkernel.dev/pkg/env"
	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[install] ")

// Progress receives the output of the pipeline, including the output of the
// build. Each call is a complete line or block ending in "\n".
type Progress func(text string)

// TotalSteps is the number of steps shown in progress messages.
const TotalSteps = 5

// Request is what to install.
type Request struct {
	Packages             []directive.InstallSpec
	SwiftPMFlags         []string
	ExtraIncludeCommands []string
	// If not empty, the scratch directory is a symlink to this directory.
	Location string
}

// RequestFromDirectives builds a Request from parsed install directives.
func RequestFromDirectives(in *directive.Install) Request {
	return Request{in.Packages, in.SwiftPMFlags, in.ExtraIncludeCommands, in.Location}
}

// Pipeline builds packages.
type Pipeline struct {
	SwiftBuildPath   string
	SwiftPackagePath string
	// Directory under which the swift-install tree is created.
	ScratchDir string
	// Time limit of the build. Zero means DefaultTimeout.
	Timeout time.Duration
	// Environment of the build tools. Nil means the environment of the
	// current process.
	Env []string
}

// DefaultTimeout is the default time limit of the build.
const DefaultTimeout = 600 * time.Second

// Library preloaded into SwiftPM on Linux to work around a crash.
var libUUIDPath = "/lib/x86_64-linux-gnu/libuuid.so.1"

// Artifacts are the results of a successful build.
type Artifacts struct {
	// Directory to add to the REPL's module search paths.
	ModuleSearchPath string
	// Dynamic library to load into the REPL.
	Library string
	// Copied module files and relocated module maps.
	Modules    []string
	ModuleMaps []string
	// All installed products.
	Products []string
}

// Layout of the scratch tree.
type layout struct {
	base    string
	pkg     string
	modules string
}

func (p *Pipeline) layout() layout {
	base := filepath.Join(p.ScratchDir, "swift-install")
	return layout{base, filepath.Join(base, "package"), filepath.Join(base, "modules")}
}

// Build runs the build steps of the pipeline. It does not load the library;
// see Load. Errors are always *Error.
func (p *Pipeline) Build(ctx context.Context, req Request, progress Progress) (*Artifacts, error) {
	if p.SwiftBuildPath == "" {
		return nil, &Error{Step: StepConfigure, Msg: msgNoBuildPath}
	}
	if p.SwiftPackagePath == "" {
		return nil, &Error{Step: StepConfigure, Msg: msgNoPackagePath}
	}
	l := p.layout()
	if err := prepare(l, req.Location); err != nil {
		return nil, &Error{Step: StepPrepare, Msg: "Install Error: cannot prepare the scratch directory.", Err: err}
	}
	for _, command := range req.ExtraIncludeCommands {
		if err := linkExtraIncludes(ctx, command, l.modules); err != nil {
			return nil, err
		}
	}

	progress("\n📦 Installing Swift Packages\n" + strings.Repeat("=", 50) + "\n")
	progress("Packages:\n" + describe(req.Packages))
	if len(req.SwiftPMFlags) > 0 {
		progress(fmt.Sprintf("SwiftPM flags: %q\n", req.SwiftPMFlags))
	}

	step(progress, 1, "📋 Creating Package.swift")
	if err := writeManifest(l.pkg, req.Packages); err != nil {
		return nil, &Error{Step: StepManifest, Msg: "Install Error: cannot write Package.swift.", Err: err}
	}

	step(progress, 2, "🌐 Resolving and fetching dependencies (this may take a while...)")
	environ := p.buildEnv()

	step(progress, 3, "🔨 Building packages...")
	start := time.Now()
	if err := p.runBuild(ctx, l.pkg, environ, req.SwiftPMFlags, progress); err != nil {
		return nil, err
	}
	progress(fmt.Sprintf("✓ Build completed in %.1fs\n", time.Since(start).Seconds()))

	binDir, depPaths, err := p.queryBuild(ctx, l.pkg, environ, req.SwiftPMFlags)
	if err != nil {
		return nil, &Error{Step: StepLocate, Msg: "Install Error: cannot query the build.", Err: err}
	}

	step(progress, 4, "📦 Copying Swift modules to kernel...")
	art := &Artifacts{
		ModuleSearchPath: l.modules,
		Library:          filepath.Join(binDir, libraryName()),
	}
	for _, spec := range req.Packages {
		art.Products = append(art.Products, spec.Products...)
	}
	dbPath := findBuildDB(binDir, l.pkg)
	if dbPath == "" {
		return nil, &Error{Step: StepLocate, Msg: msgNoBuildDB}
	}
	files, err := queryBuildDB(ctx, dbPath, depPaths)
	if err != nil {
		return nil, &Error{Step: StepLocate, Msg: msgNoBuildDB, Err: err}
	}
	if err := copyArtifacts(files, l.modules, art); err != nil {
		return nil, &Error{Step: StepCopy, Msg: fmt.Sprintf(msgCopyFailed, l.modules), Err: err}
	}
	logger.Infow("packages built", "library", art.Library,
		"modules", len(art.Modules), "modulemaps", len(art.ModuleMaps))
	return art, nil
}

func step(progress Progress, n int, msg string) {
	progress(fmt.Sprintf("[%d/%d] %s\n", n, TotalSteps, msg))
}

func prepare(l layout, location string) error {
	if location != "" {
		if err := os.MkdirAll(location, 0o755); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(l.base), 0o755); err != nil {
			return err
		}
		if fi, err := os.Lstat(l.base); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			if err := os.Remove(l.base); err != nil {
				return err
			}
		}
		if err := os.Symlink(location, l.base); err != nil {
			return err
		}
	}
	for _, dir := range []string{l.pkg, l.modules} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func writeManifest(dir string, specs []directive.InstallSpec) error {
	err := os.WriteFile(filepath.Join(dir, "Package.swift"), []byte(Manifest(specs)), 0o644)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ProductName+".swift"), []byte("// intentionally blank\n"), 0o644)
}

func (p *Pipeline) buildEnv() []string {
	environ := p.Env
	if environ == nil {
		environ = os.Environ()
	}
	if _, err := os.Stat(libUUIDPath); err == nil {
		environ = append(environ[:len(environ):len(environ)], env.LD_PRELOAD+"="+libUUIDPath)
	}
	return environ
}

func libraryName() string {
	if runtime.GOOS == "darwin" {
		return "lib" + ProductName + ".dylib"
	}
	return "lib" + ProductName + ".so"
}

// Runs an extra include command and links the entries of each -I directory it
// prints into the module search directory.
func linkExtraIncludes(ctx context.Context, command, modules string) error {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		return &Error{Step: StepPrepare,
			Msg: fmt.Sprintf("%%install-extra-include-command returned nonzero exit code: %d\nStdout:\n%s\nStderr:\n%s\n",
				code, stdout.String(), stderr.String()),
			Err: err}
	}
	words, err := shlex.Split(stdout.String())
	if err != nil {
		return &Error{Step: StepPrepare, Msg: "Install Error: cannot parse %install-extra-include-command output.", Err: err}
	}
	for _, word := range words {
		dir, ok := strings.CutPrefix(word, "-I")
		if !ok {
			logger.Warnw("non -I output from %install-extra-include-command", "word", word)
			continue
		}
		if err := linkEntries(dir, modules); err != nil {
			return &Error{Step: StepPrepare, Msg: "Install Error: cannot link extra include directory " + dir + ".", Err: err}
		}
	}
	return nil
}

func linkEntries(dir, modules string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		link := filepath.Join(modules, entry.Name())
		if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			os.Remove(link)
		}
		if err := os.Symlink(filepath.Join(dir, entry.Name()), link); err != nil {
			return err
		}
	}
	return nil
}

// Queries the binary directory and the dependency paths concurrently.
func (p *Pipeline) queryBuild(ctx context.Context, dir string, environ, flags []string) (string, []string, error) {
	var binDir string
	var depPaths []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := output(gctx, dir, environ, p.SwiftBuildPath, append([]string{"--show-bin-path"}, flags...)...)
		if err != nil {
			return fmt.Errorf("swift-build --show-bin-path: %w", err)
		}
		binDir = strings.TrimSpace(out)
		return nil
	})
	g.Go(func() error {
		out, err := output(gctx, dir, environ, p.SwiftPackagePath, "show-dependencies", "--format", "json")
		if err != nil {
			return fmt.Errorf("swift-package show-dependencies: %w", err)
		}
		depPaths, err = DependencyPaths([]byte(out))
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	if binDir == "" {
		return "", nil, errors.New("swift-build --show-bin-path printed nothing")
	}
	return binDir, depPaths, nil
}

func output(ctx context.Context, dir string, environ []string, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir, cmd.Env, cmd.Stderr = dir, environ, &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), err
}
