package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/goleak"
	"src.swiftkernel.dev/pkg/config"
	"src.swiftkernel.dev/pkg/directive"
	"src.swiftkernel.dev/pkg/install"
	"src.swiftkernel.dev/pkg/intel"
	"src.swiftkernel.dev/pkg/lspclient"
	"src.swiftkernel.dev/pkg/lspclient/lsptest"
	"src.swiftkernel.dev/pkg/must"
	"src.swiftkernel.dev/pkg/repl"
	"src.swiftkernel.dev/pkg/repl/repltest"
	"src.swiftkernel.dev/pkg/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	k       *Kernel
	builder *fakeBuilder
	server  *lsptest.Server

	mu     sync.Mutex
	eval   repltest.EvalFunc
	dbgs   []*repltest.Debugger
	prep   func(d *repltest.Debugger)
	events []Event
}

type setupOpts struct {
	intel     bool
	swiftPath string
}

func setup(t *testing.T, so setupOpts) *fixture {
	t.Helper()
	f := &fixture{builder: &fakeBuilder{}}
	cfg := config.Default()
	cfg.ReplSwiftPath = "/toolchain/usr/bin/repl_swift"
	cfg.ScratchDir = testutil.TempDir(t)
	cfg.Drain.Interval = time.Millisecond
	cfg.DisableIntel = !so.intel
	opts := Options{
		Config:      cfg,
		NewDebugger: f.newDebugger,
		Builder:     f.builder,
		SwiftPath:   so.swiftPath,
		OpenIntel: func(c intel.Config) (*intel.Session, error) {
			server, w, r := lsptest.Start()
			f.server = server
			c.Timeouts.Initialize = testutil.Scaled(5 * time.Second)
			return intel.New(lspclient.NewClient(w, r, nil), c)
		},
	}
	if so.swiftPath == "" {
		opts.SwiftPath = filepath.Join(cfg.ScratchDir, "no-swift")
	}
	k, err := New(opts)
	if err != nil {
		t.Fatalf("New -> error %v", err)
	}
	f.k = k
	t.Cleanup(func() {
		k.Shutdown(false)
		if f.server != nil {
			<-f.server.Disconnected()
		}
	})
	return f
}

func (f *fixture) newDebugger(context.Context) (repl.Debugger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := repltest.New()
	if f.eval != nil {
		d.OnEvaluate(f.eval)
	}
	if f.prep != nil {
		f.prep(d)
	}
	f.dbgs = append(f.dbgs, d)
	return d, nil
}

func (f *fixture) onEvaluate(eval repltest.EvalFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eval = eval
}

func (f *fixture) debuggers() []*repltest.Debugger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*repltest.Debugger(nil), f.dbgs...)
}

func (f *fixture) lastDebugger(t *testing.T) *repltest.Debugger {
	t.Helper()
	dbgs := f.debuggers()
	if len(dbgs) == 0 {
		t.Fatalf("no debugger was started")
	}
	return dbgs[len(dbgs)-1]
}

func (f *fixture) sink(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

// Returns the events received so far and forgets them.
func (f *fixture) takeEvents() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := f.events
	f.events = nil
	return events
}

// Returns the text sent to a stream since the last call to takeEvents.
func (f *fixture) takeText(stream string) string {
	var sb strings.Builder
	for _, e := range f.takeEvents() {
		if e.Stream == stream {
			sb.WriteString(e.Text)
		}
	}
	return sb.String()
}

func (f *fixture) execute(t *testing.T, code string) *Outcome {
	t.Helper()
	return f.k.Execute(context.Background(), code, f.sink)
}

func (f *fixture) mustExecute(t *testing.T, code string, want Kind) *Outcome {
	t.Helper()
	out := f.execute(t, code)
	if out.Kind != want {
		t.Fatalf("Execute(%q) -> %v %q (err %v), want %v", code, out.Kind, out.Traceback, out.Err, want)
	}
	return out
}

type fakeBuilder struct {
	mu       sync.Mutex
	requests []install.Request
	art      *install.Artifacts
	err      error
	panicVal any
}

func (b *fakeBuilder) Build(_ context.Context, req install.Request, progress install.Progress) (*install.Artifacts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panicVal != nil {
		panic(b.panicVal)
	}
	b.requests = append(b.requests, req)
	progress("building\n")
	return b.art, b.err
}

func evalResults(results map[string]*repl.EvalResult) repltest.EvalFunc {
	return func(_ context.Context, _ *repltest.Debugger, code string) (*repl.EvalResult, error) {
		if r, ok := results[code]; ok {
			return r, nil
		}
		return repltest.NoValue(), nil
	}
}

func TestExecute_EmptySubmission(t *testing.T) {
	f := setup(t, setupOpts{})

	out := f.mustExecute(t, "  \n\t", NoValue)

	if out.ExecutionCount != 0 {
		t.Errorf("ExecutionCount = %d, want 0", out.ExecutionCount)
	}
	if n := len(f.debuggers()); n != 0 {
		t.Errorf("%d debuggers started, want 0", n)
	}
}

func TestExecute_Value(t *testing.T) {
	f := setup(t, setupOpts{})
	f.onEvaluate(evalResults(map[string]*repl.EvalResult{
		"40 + 2": repltest.Scalar("Int", "42"),
	}))

	f.mustExecute(t, "let a = 1", NoValue)
	out := f.mustExecute(t, "40 + 2", Value)

	if out.ExecutionCount != 2 {
		t.Errorf("ExecutionCount = %d, want 2", out.ExecutionCount)
	}
	if out.Display == nil || out.Display.Text != "42" {
		t.Errorf("Display = %+v, want text 42", out.Display)
	}
	d := f.lastDebugger(t)
	if len(f.debuggers()) != 1 {
		t.Errorf("%d debuggers started, want 1", len(f.debuggers()))
	}
	if diff := cmp.Diff([]string{"let a = 1", "40 + 2"}, d.Evaluated()); diff != "" {
		t.Errorf("evaluated (-want +got):\n%s", diff)
	}
	if path, _ := d.Target(); path != "/toolchain/usr/bin/repl_swift" {
		t.Errorf("target = %q", path)
	}
}

func TestExecute_CompileErrorThenRecovery(t *testing.T) {
	f := setup(t, setupOpts{})
	f.onEvaluate(evalResults(map[string]*repl.EvalResult{
		`let x: Int = "s"`: repltest.Error(
			"error: <EXPR>:1:14: error: cannot convert value of type 'String' to specified type 'Int'"),
	}))

	out := f.mustExecute(t, `let x: Int = "s"`, EvalError)
	var evalErr *repl.EvalError
	if !errors.As(out.Err, &evalErr) || evalErr.Severity() != "error" {
		t.Errorf("Err = %v, want *repl.EvalError with severity error", out.Err)
	}
	if len(out.Traceback) != 1 || !strings.Contains(out.Traceback[0], "convert between types") {
		t.Errorf("Traceback = %q, want a type conversion hint", out.Traceback)
	}

	f.mustExecute(t, "let y = 42", NoValue)
	if n := len(f.debuggers()); n != 1 {
		t.Errorf("%d debuggers started, want 1", n)
	}
}

func TestExecute_RuntimeErrorHasStackTrace(t *testing.T) {
	f := setup(t, setupOpts{})
	f.onEvaluate(func(_ context.Context, d *repltest.Debugger, code string) (*repl.EvalResult, error) {
		d.WriteStdout("Fatal error: boom\n")
		d.SetFrames([]repl.Frame{
			{Function: "crash()", File: "<Cell 1>", Line: 2, Column: 5},
			{Function: "thunk", File: "<compiler-generated>"},
		})
		return repltest.Error("Execution was interrupted, reason: EXC_BAD_INSTRUCTION."), nil
	})

	out := f.mustExecute(t, "crash()", EvalError)

	want := []string{"Current stack trace:", "\t  at crash() (<Cell 1>:2:5)"}
	if diff := cmp.Diff(want, out.Traceback); diff != "" {
		t.Errorf("Traceback (-want +got):\n%s", diff)
	}
	if got := f.takeText(Stdout); got != "Fatal error: boom\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestExecute_StreamsClearEvents(t *testing.T) {
	f := setup(t, setupOpts{})
	f.onEvaluate(func(_ context.Context, d *repltest.Debugger, code string) (*repl.EvalResult, error) {
		d.WriteStdout("a\033[2Jb")
		return repltest.NoValue(), nil
	})

	f.mustExecute(t, "show()", NoValue)

	want := []Event{{Stream: Stdout, Text: "a"}, {Clear: true}, {Stream: Stdout, Text: "b"}}
	if diff := cmp.Diff(want, f.takeEvents()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestExecute_ProcessDiedAndReset(t *testing.T) {
	f := setup(t, setupOpts{})
	f.onEvaluate(func(_ context.Context, d *repltest.Debugger, code string) (*repl.EvalResult, error) {
		if code == "exit(0)" {
			d.Kill()
			return repltest.Error("error: process exited"), nil
		}
		return repltest.NoValue(), nil
	})

	out := f.mustExecute(t, "exit(0)", ProcessDied)
	if diff := cmp.Diff([]string{"Process killed"}, out.Traceback); diff != "" {
		t.Errorf("Traceback (-want +got):\n%s", diff)
	}
	if !errors.Is(out.Err, repl.ErrProcessDied) {
		t.Errorf("Err = %v, want ErrProcessDied", out.Err)
	}

	out = f.mustExecute(t, "1", ProcessDied)
	if len(out.Traceback) == 0 || out.Traceback[len(out.Traceback)-1] != restartHint {
		t.Errorf("Traceback = %q, want restart hint", out.Traceback)
	}

	f.mustExecute(t, "%reset", NoValue)
	if got := f.takeText(Stdout); !strings.Contains(got, "Kernel reset.") {
		t.Errorf("%%reset wrote %q", got)
	}
	f.mustExecute(t, "1", NoValue)
	if n := len(f.debuggers()); n != 2 {
		t.Errorf("%d debuggers started, want 2", n)
	}
}

func TestExecute_LaunchFailure(t *testing.T) {
	f := setup(t, setupOpts{})
	f.prep = func(d *repltest.Debugger) { d.Fail("SetBreakpoint", errors.New("no symbol")) }

	out := f.mustExecute(t, "1", ProcessDied)

	var launchErr *repl.LaunchError
	if !errors.As(out.Err, &launchErr) || launchErr.Step != "set breakpoint on repl_main" {
		t.Errorf("Err = %v, want *repl.LaunchError for the breakpoint", out.Err)
	}
	if !f.lastDebugger(t).Closed() {
		t.Errorf("debugger not closed after launch failure")
	}

	f.mu.Lock()
	f.prep = nil
	f.mu.Unlock()
	out = f.mustExecute(t, "2", ProcessDied)
	if !errors.As(out.Err, &launchErr) {
		t.Errorf("Err = %v, want the *repl.LaunchError of the first launch", out.Err)
	}
	if len(out.Traceback) == 0 || out.Traceback[len(out.Traceback)-1] != restartHint {
		t.Errorf("Traceback = %q, want restart hint", out.Traceback)
	}
	if n := len(f.debuggers()); n != 1 {
		t.Errorf("%d debuggers started, want 1", n)
	}

	f.mustExecute(t, "%reset -q", NoValue)
	f.mustExecute(t, "3", NoValue)
	if n := len(f.debuggers()); n != 2 {
		t.Errorf("%d debuggers started after %%reset, want 2", n)
	}
}

func TestExecute_Install(t *testing.T) {
	f := setup(t, setupOpts{})
	f.builder.art = &install.Artifacts{
		ModuleSearchPath: "/scratch/swift-install/modules",
		Library:          "/scratch/libjupyterInstalledPackages.so",
		Products:         []string{"Foo"},
	}
	loadCode := install.DynamicLoadCode("/scratch/libjupyterInstalledPackages.so")
	f.onEvaluate(evalResults(map[string]*repl.EvalResult{
		loadCode: repltest.Scalar("UnsafeMutableRawPointer?", "0x0000000100008000"),
	}))

	f.mustExecute(t, `%install '.package(url: "https://example.com/foo", from: "1.0.0")' Foo`, NoValue)

	wantReq := []install.Request{{Packages: []directive.InstallSpec{{
		Spec:     `.package(url: "https://example.com/foo", from: "1.0.0")`,
		Products: []string{"Foo"}}}}}
	if diff := cmp.Diff(wantReq, f.builder.requests); diff != "" {
		t.Errorf("build requests (-want +got):\n%s", diff)
	}
	if got := f.takeText(Stdout); !strings.HasPrefix(got, "building\n") ||
		!strings.HasSuffix(got, "✅ Successfully installed: Foo\n") {
		t.Errorf("stdout = %q", got)
	}
	d := f.lastDebugger(t)
	if diff := cmp.Diff([]string{"/scratch/swift-install/modules"}, d.SearchPaths()); diff != "" {
		t.Errorf("search paths (-want +got):\n%s", diff)
	}

	f.mustExecute(t, "import Foo", NoValue)
	if diff := cmp.Diff([]string{loadCode, "import Foo"}, d.Evaluated()); diff != "" {
		t.Errorf("evaluated (-want +got):\n%s", diff)
	}

	// Installs are rejected once the session exists, and the session is
	// untouched.
	out := f.mustExecute(t, `%install '.package(path: "/bar")' Bar`, InstallError)
	if out.Traceback[0] != msgInstallAfterInit {
		t.Errorf("Traceback = %q", out.Traceback)
	}
	if len(f.builder.requests) != 1 || d.Closed() {
		t.Errorf("rejected install touched the session")
	}

	// A new session gets the artifacts again.
	f.mustExecute(t, "%reset -q", NoValue)
	f.mustExecute(t, "import Foo", NoValue)
	d2 := f.lastDebugger(t)
	if d2 == d {
		t.Fatalf("no new debugger after reset")
	}
	if diff := cmp.Diff([]string{"/scratch/swift-install/modules"}, d2.SearchPaths()); diff != "" {
		t.Errorf("search paths after reset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{loadCode, "import Foo"}, d2.Evaluated()); diff != "" {
		t.Errorf("evaluated after reset (-want +got):\n%s", diff)
	}
}

func TestExecute_InstallFailure(t *testing.T) {
	f := setup(t, setupOpts{})
	f.builder.err = &install.Error{Step: install.StepBuild, Msg: "Install Error: swift-build returned nonzero exit code 1."}

	out := f.mustExecute(t, "%install '.package(path: \"/x\")' X\nimport X", InstallError)

	var installErr *install.Error
	if !errors.As(out.Err, &installErr) {
		t.Errorf("Err = %v, want *install.Error", out.Err)
	}
	if n := len(f.debuggers()); n != 0 {
		t.Errorf("%d debuggers started, want 0", n)
	}
}

func TestExecute_LoadFailureReturnsNilHandle(t *testing.T) {
	f := setup(t, setupOpts{})
	f.builder.art = &install.Artifacts{Library: "/lib.so", Products: []string{"X"}}
	f.onEvaluate(evalResults(map[string]*repl.EvalResult{
		install.DynamicLoadCode("/lib.so"): repltest.Scalar("UnsafeMutableRawPointer?", "nil"),
	}))

	out := f.mustExecute(t, "%install '.package(path: \"/x\")' X", InstallError)

	var installErr *install.Error
	if !errors.As(out.Err, &installErr) || installErr.Step != install.StepLoad {
		t.Errorf("Err = %v, want *install.Error at the load step", out.Err)
	}
}

func TestExecute_ProcessDiesDuringLoad(t *testing.T) {
	f := setup(t, setupOpts{})
	f.builder.art = &install.Artifacts{Library: "/lib.so", Products: []string{"X"}}
	loadCode := install.DynamicLoadCode("/lib.so")
	f.onEvaluate(func(_ context.Context, d *repltest.Debugger, code string) (*repl.EvalResult, error) {
		if strings.HasSuffix(code, loadCode) {
			d.Kill()
			return repltest.Error("error: process exited"), nil
		}
		return repltest.NoValue(), nil
	})

	out := f.mustExecute(t, "%install '.package(path: \"/x\")' X", ProcessDied)

	if !errors.Is(out.Err, repl.ErrProcessDied) {
		t.Errorf("Err = %v, want ErrProcessDied", out.Err)
	}
	if diff := cmp.Diff([]string{"Process killed", "", restartHint}, out.Traceback); diff != "" {
		t.Errorf("Traceback (-want +got):\n%s", diff)
	}
	if r := f.k.Interrupt(context.Background()); r.OK || !errors.Is(r.Err, repl.ErrNoProcess) {
		t.Errorf("Interrupt after death -> %+v, want ErrNoProcess", r)
	}
}

func TestExecute_RejectedSubmissionIsNotRecorded(t *testing.T) {
	f := setup(t, setupOpts{})
	f.mustExecute(t, "let a = 1", NoValue)

	f.mustExecute(t, "let b = 2\n%install '.package(path: \"/x\")' X", InstallError)
	f.mustExecute(t, "let c = 3\n%include nowhere", PreprocessError)

	cells, err := f.k.store.LastCells(10)
	if err != nil {
		t.Fatalf("LastCells -> error %v", err)
	}
	var codes []string
	for _, c := range cells {
		codes = append(codes, c.Code)
	}
	if diff := cmp.Diff([]string{"let a = 1"}, codes); diff != "" {
		t.Errorf("recorded cells (-want +got):\n%s", diff)
	}
}

func TestExecute_System(t *testing.T) {
	f := setup(t, setupOpts{})

	f.mustExecute(t, "%system echo hello", NoValue)
	if got := f.takeText(Stdout); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
	if n := len(f.debuggers()); n != 0 {
		t.Errorf("%d debuggers started, want 0", n)
	}

	f.mustExecute(t, "1", NoValue)
	out := f.mustExecute(t, "%system echo again", InstallError)
	if out.Traceback[0] != msgSystemAfterInit {
		t.Errorf("Traceback = %q", out.Traceback)
	}
}

func TestExecute_PreprocessError(t *testing.T) {
	f := setup(t, setupOpts{})

	out := f.mustExecute(t, "let a = 1\n%include \"missing.swift\"", PreprocessError)

	if !strings.HasPrefix(out.Traceback[0], "Line 2: could not find") {
		t.Errorf("Traceback = %q", out.Traceback)
	}
	if n := len(f.debuggers()); n != 0 {
		t.Errorf("%d debuggers started, want 0", n)
	}

	f.mustExecute(t, "%install-location /x\n%reset", PreprocessError)
}

func TestExecute_PanicBecomesInternalError(t *testing.T) {
	f := setup(t, setupOpts{})
	f.builder.panicVal = "corrupted"

	out := f.mustExecute(t, "%install '.package(path: \"/x\")' X", InternalError)

	want := []string{
		"Unexpected error during cell execution.",
		"The kernel may be in an unstable state. Consider restarting if issues persist.",
		"",
		"Error: corrupted",
	}
	if diff := cmp.Diff(want, out.Traceback); diff != "" {
		t.Errorf("Traceback (-want +got):\n%s", diff)
	}
	// The kernel keeps working.
	f.builder.panicVal = nil
	f.mustExecute(t, "1", NoValue)
}

func TestExecute_Interrupt(t *testing.T) {
	f := setup(t, setupOpts{})
	if reply := f.k.Interrupt(context.Background()); !errors.Is(reply.Err, repl.ErrNoProcess) {
		t.Errorf("Interrupt without session -> %+v, want ErrNoProcess", reply)
	}
	f.onEvaluate(func(ctx context.Context, d *repltest.Debugger, code string) (*repl.EvalResult, error) {
		if code != "while true {}" {
			return repltest.NoValue(), nil
		}
		select {
		case <-d.Interrupts():
			return repltest.Error("Execution was interrupted, reason: signal SIGINT."), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	f.mustExecute(t, "1", NoValue)

	done := make(chan *Outcome, 1)
	go func() { done <- f.k.Execute(context.Background(), "while true {}", f.sink) }()
	for {
		if reply := f.k.Interrupt(context.Background()); reply.OK {
			break
		}
		time.Sleep(time.Millisecond)
	}

	select {
	case out := <-done:
		if out.Kind != EvalError {
			t.Errorf("interrupted evaluation -> %v, want EvalError", out.Kind)
		}
	case <-time.After(testutil.Scaled(5 * time.Second)):
		t.Fatalf("evaluation did not return after interrupt")
	}
}

func TestExecute_AfterShutdown(t *testing.T) {
	f := setup(t, setupOpts{})
	f.mustExecute(t, "1", NoValue)

	if err := f.k.Shutdown(true); err != nil {
		t.Errorf("Shutdown -> %v", err)
	}
	if !f.lastDebugger(t).Closed() {
		t.Errorf("debugger not closed")
	}
	out := f.mustExecute(t, "2", InternalError)
	if diff := cmp.Diff([]string{msgShutDown}, out.Traceback); diff != "" {
		t.Errorf("Traceback (-want +got):\n%s", diff)
	}
	if err := f.k.Shutdown(false); err != nil {
		t.Errorf("second Shutdown -> %v", err)
	}
}

func TestComplete(t *testing.T) {
	f := setup(t, setupOpts{intel: true})
	f.mustExecute(t, "let xs = [1]", NoValue)
	f.server.On("textDocument/completion", func(context.Context, *jsonrpc2.Request) (any, error) {
		return lsp.CompletionList{Items: []lsp.CompletionItem{{Label: "count"}}}, nil
	})

	got := f.k.Complete("xs.c", 4)
	want := intel.Completion{Matches: []string{"count"}, CursorStart: 0, CursorEnd: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Complete (-want +got):\n%s", diff)
	}
	uri := lspclient.FileURI(filepath.Join(f.k.ScratchDir(), intel.DocumentName))
	if versions := f.server.DocumentVersions(uri); !slices.Contains(versions, "let xs = [1]\n") {
		t.Errorf("document versions = %q, want the evaluated code", versions)
	}

	f.mustExecute(t, "%disableCompletion", NoValue)
	if got := f.takeText(Stdout); got != "Completion disabled!\n" {
		t.Errorf("stdout = %q", got)
	}
	got = f.k.Complete("xs.c", 4)
	if diff := cmp.Diff(intel.Completion{CursorStart: 4, CursorEnd: 4}, got); diff != "" {
		t.Errorf("Complete when disabled (-want +got):\n%s", diff)
	}
	f.mustExecute(t, "%enable_completion", NoValue)
	if got := f.k.Complete("xs.c", 4); len(got.Matches) != 1 {
		t.Errorf("Complete after enabling -> %v", got)
	}

	// Reset clears the document. The completion request is handled after
	// the change, and sees the cell alone.
	f.mustExecute(t, "%reset -q", NoValue)
	f.k.Complete("x", 1)
	versions := f.server.DocumentVersions(uri)
	i := slices.Index(versions, "x")
	if i < 1 || versions[i-1] != "" {
		t.Errorf("document versions after reset = %q, want \"\" then \"x\"", versions)
	}
}

func TestComplete_WithoutIntel(t *testing.T) {
	f := setup(t, setupOpts{})
	f.mustExecute(t, "1", NoValue)

	got := f.k.Complete("pri", 100)
	if diff := cmp.Diff(intel.Completion{CursorStart: 100, CursorEnd: 100}, got); diff != "" {
		t.Errorf("Complete (-want +got):\n%s", diff)
	}
	if text, found := f.k.Inspect("x", 1); found || text != "" {
		t.Errorf("Inspect -> (%q, %v), want nothing", text, found)
	}
}

var completeDirectiveTests = []struct {
	name   string
	code   string
	cursor int
	want   intel.Completion
	ok     bool
}{
	{"prefix", "%his", 4, intel.Completion{Matches: []string{"%history"}, CursorStart: 0, CursorEnd: 4}, true},
	{"second line with indent", "let a = 1\n  %sw", 15,
		intel.Completion{Matches: []string{"%swift-version", "%swift_version"}, CursorStart: 12, CursorEnd: 15}, true},
	{"clamped cursor", "%lsm", 10, intel.Completion{Matches: []string{"%lsmagic"}, CursorStart: 0, CursorEnd: 4}, true},
	{"after arguments", "%load a", 7, intel.Completion{}, false},
	{"code", "xs.c", 4, intel.Completion{}, false},
}

func TestCompleteDirective(t *testing.T) {
	for _, test := range completeDirectiveTests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := completeDirective(test.code, test.cursor)
			if ok != test.ok {
				t.Errorf("completeDirective -> ok %v, want %v", ok, test.ok)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("completeDirective (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	f := setup(t, setupOpts{intel: true})
	f.mustExecute(t, "let a = 1", NoValue)
	f.server.On("textDocument/hover", func(context.Context, *jsonrpc2.Request) (any, error) {
		return map[string]any{"contents": "let a: Int"}, nil
	})

	got, found := f.k.Inspect("a", 1)
	if !found || got != "let a: Int" {
		t.Errorf("Inspect -> (%q, %v), want (\"let a: Int\", true)", got, found)
	}
}

func TestInfo(t *testing.T) {
	dir := testutil.TempDir(t)
	swift := filepath.Join(dir, "swift")
	must.WriteScript(swift, "echo 'Swift version 5.9.2 (swift-5.9.2-RELEASE)'\n")
	f := setup(t, setupOpts{swiftPath: swift})

	info := f.k.Info()

	if info.ProtocolVersion != "5.4" || info.Implementation != "swift-kernel" {
		t.Errorf("Info = %+v", info)
	}
	wantLang := LanguageInfo{
		Name: "swift", Version: "5.9", Mimetype: "text/x-swift",
		FileExtension: ".swift", PygmentsLexer: "swift", CodemirrorMode: "swift"}
	if diff := cmp.Diff(wantLang, info.LanguageInfo); diff != "" {
		t.Errorf("LanguageInfo (-want +got):\n%s", diff)
	}
	if info.Banner != "Swift 5.9 Jupyter Kernel" {
		t.Errorf("Banner = %q", info.Banner)
	}
	if _, err := json.Marshal(info); err != nil {
		t.Errorf("Info cannot be marshaled: %v", err)
	}
}

func TestInfo_NoSwift(t *testing.T) {
	f := setup(t, setupOpts{})
	if v := f.k.Info().LanguageInfo.Version; v != "5.x" {
		t.Errorf("version = %q, want 5.x", v)
	}
}

func TestOutcome(t *testing.T) {
	if (&Outcome{Kind: Value}).IsError() {
		t.Errorf("Value is an error")
	}
	if !(&Outcome{Kind: ProcessDied}).IsError() {
		t.Errorf("ProcessDied is not an error")
	}
	if s := InternalError.String(); s != "InternalError" {
		t.Errorf("InternalError.String() = %q", s)
	}
	if s := Kind(42).String(); s != "Kind(42)" {
		t.Errorf("Kind(42).String() = %q", s)
	}
}
