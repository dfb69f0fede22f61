package kernel

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/debug"
	"strings"
	"time"

	"src.swiftkernel.dev/pkg/directive"
	"src.swiftkernel.dev/pkg/install"
	"src.swiftkernel.dev/pkg/intel"
	"src.swiftkernel.dev/pkg/relay"
	"src.swiftkernel.dev/pkg/repl"
	"src.swiftkernel.dev/pkg/store"
)

// Execute processes one submission. Events are sent to sink, which may be
// nil, before Execute returns. Submissions are processed one at a time.
func (k *Kernel) Execute(ctx context.Context, code string, sink Sink) (out *Outcome) {
	k.execMu.Lock()
	defer k.execMu.Unlock()
	if sink == nil {
		sink = func(Event) {}
	}
	if strings.TrimSpace(code) == "" {
		return &Outcome{Kind: NoValue, ExecutionCount: k.count}
	}
	k.count++
	e := &execution{k: k, ctx: ctx, sink: sink, cell: k.count}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("panic during execution", "cell", e.cell, "panic", r,
				"stack", string(debug.Stack()))
			out = e.fail(InternalError, fmt.Errorf("%v", r),
				append(unexpected, "", fmt.Sprintf("Error: %v", r))...)
		}
	}()
	if k.isClosed() {
		return e.fail(InternalError, errors.New(msgShutDown), msgShutDown)
	}
	return e.run(code)
}

func (k *Kernel) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

// State of one submission.
type execution struct {
	k    *Kernel
	ctx  context.Context
	sink Sink
	cell int
}

func (e *execution) stdout(text string) {
	if text != "" {
		e.sink(Event{Stream: Stdout, Text: text})
	}
}

func (e *execution) stderr(text string) {
	if text != "" {
		e.sink(Event{Stream: Stderr, Text: text})
	}
}

func (e *execution) relayEvent(ev relay.Event) {
	if ev.Kind == relay.EventClear {
		e.sink(Event{Clear: true})
	} else {
		e.stdout(ev.Text)
	}
}

func (e *execution) done(kind Kind) *Outcome {
	return &Outcome{Kind: kind, ExecutionCount: e.cell}
}

func (e *execution) fail(kind Kind, err error, traceback ...string) *Outcome {
	logger.Infow("submission failed", "cell", e.cell, "kind", kind, "err", err)
	return &Outcome{Kind: kind, ExecutionCount: e.cell, Err: err, Traceback: traceback}
}

func (e *execution) run(code string) *Outcome {
	k := e.k
	sub, err := directive.Parse(code, directive.Options{
		IncludePaths: k.cfg.IncludePaths,
		CellFile:     repl.SourceLocationName(e.cell),
	})
	if err != nil {
		return e.fail(PreprocessError, err, err.Error())
	}

	if !sub.Install.Empty() {
		if out := e.install(&sub.Install); out != nil {
			return out
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(code), "%") {
		k.record(code)
	}
	for _, on := range sub.CompletionToggles {
		e.toggleCompletion(on)
	}

	src := sub.Code
	if sub.Cell != nil {
		var out *Outcome
		src, out = e.cellDirective(sub.Cell, src)
		if out != nil {
			return out
		}
	}

	hasCode := strings.TrimSpace(src) != ""
	if !hasCode && !k.needsLoad {
		return e.done(NoValue)
	}
	if out := e.ensureSession(); out != nil {
		return out
	}
	if !hasCode {
		return e.done(NoValue)
	}
	return e.evaluate(src)
}

func (k *Kernel) record(code string) {
	_, err := k.store.AddCell(store.Cell{Code: code, Session: k.sessionID, Time: time.Now()})
	if err != nil {
		logger.Warnw("cannot record cell", "err", err)
	}
}

func (k *Kernel) controller() *repl.Controller {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ctrl
}

func (k *Kernel) intelSession() *intel.Session {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.intel
}

// Runs %system commands and builds packages. Installs are only allowed
// before the session exists.
func (e *execution) install(in *directive.Install) *Outcome {
	k := e.k
	if k.controller() != nil {
		if !in.Requested() && len(in.SystemCommands) > 0 {
			return e.fail(InstallError, errors.New(msgSystemAfterInit), msgSystemAfterInit)
		}
		return e.fail(InstallError, errors.New(msgInstallAfterInit), msgInstallAfterInit)
	}
	for _, command := range in.SystemCommands {
		e.system(command)
	}
	if !in.Requested() {
		return nil
	}
	art, err := k.builder.Build(e.ctx, install.RequestFromDirectives(in), e.stdout)
	if err != nil {
		return e.fail(InstallError, err, err.Error())
	}
	k.artifacts, k.needsLoad = art, true
	return nil
}

// Runs a %system command and streams its combined output. The exit status is
// only logged.
func (e *execution) system(command string) {
	cmd := exec.CommandContext(e.ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	e.stdout(string(out))
	if err != nil {
		logger.Infow("system command failed", "command", command, "err", err)
	}
}

func (e *execution) toggleCompletion(on bool) {
	k := e.k
	k.mu.Lock()
	k.completionEnabled = on
	k.mu.Unlock()
	if on {
		e.stdout("Completion enabled!\n")
	} else {
		e.stdout("Completion disabled!\n")
	}
}

// Launches the REPL process if there is none, and loads installed packages
// into it.
func (e *execution) ensureSession() *Outcome {
	k := e.k
	ctrl := k.controller()
	if ctrl != nil && !ctrl.Valid() {
		return e.fail(ProcessDied, repl.ErrProcessDied, append(processKilled, "", restartHint)...)
	}
	if k.launchErr != nil {
		return e.fail(ProcessDied, k.launchErr, k.launchErr.Error(), "", restartHint)
	}
	if ctrl == nil {
		var err error
		ctrl, err = k.launch(e.ctx)
		if err != nil {
			k.launchErr = err
			return e.fail(ProcessDied, err, err.Error(), "", restartHint)
		}
	}
	if k.needsLoad {
		if err := install.Load(e.ctx, ctrl, k.artifacts, e.stdout); err != nil {
			if errors.Is(err, repl.ErrProcessDied) || !ctrl.Valid() {
				k.relay.SetTarget(nil)
				return e.fail(ProcessDied, err, append(processKilled, "", restartHint)...)
			}
			return e.fail(InstallError, err, err.Error())
		}
		k.needsLoad = false
	}
	return nil
}

func (k *Kernel) launch(ctx context.Context) (*repl.Controller, error) {
	dbg, err := k.newDebugger(ctx)
	if err != nil {
		return nil, &repl.LaunchError{Step: "start debugger", Err: err}
	}
	var searchPaths []string
	if k.artifacts != nil {
		searchPaths = append(searchPaths, k.artifacts.ModuleSearchPath)
	}
	searchPaths = append(searchPaths, k.cfg.ModuleSearchPaths...)
	ctrl, err := repl.Launch(ctx, dbg, repl.Config{
		ReplSwiftPath:     k.cfg.ReplSwiftPath,
		ModuleSearchPaths: searchPaths,
	})
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.ctrl = ctrl
	k.mu.Unlock()
	k.relay.SetTarget(ctrl)
	if k.artifacts != nil {
		k.needsLoad = true
	}
	k.openIntelSession()
	return ctrl, nil
}

// Opens the code intelligence session once per kernel. Failures only disable
// completion and inspection.
func (k *Kernel) openIntelSession() {
	k.mu.Lock()
	opened := k.intelOpened
	k.intelOpened = true
	k.mu.Unlock()
	if opened || k.cfg.DisableIntel {
		return
	}
	s, err := k.openIntel(intel.Config{
		ServerPath:    k.cfg.LanguageServer,
		SwiftPath:     k.swiftPath,
		ToolchainRoot: k.cfg.ToolchainRoot,
		Dir:           k.scratch,
		Timeouts:      k.cfg.Timeouts,
	})
	if err != nil {
		logger.Warnw("code intelligence unavailable", "err", err)
		return
	}
	k.mu.Lock()
	k.intel = s
	k.mu.Unlock()
}

func (e *execution) evaluate(src string) *Outcome {
	k := e.k
	ctrl := k.controller()
	if ctrl == nil {
		// Shut down concurrently.
		return e.fail(ProcessDied, repl.ErrProcessDied, processKilled...)
	}
	drain := relay.StartDrain(ctrl, relay.DrainConfig{
		Interval: k.cfg.Drain.Interval, ReadSize: k.cfg.Drain.ReadSize}, e.relayEvent)
	result, err := ctrl.Evaluate(e.ctx, src, e.cell)
	drain.Stop()

	if errors.Is(err, repl.ErrProcessDied) {
		k.relay.SetTarget(nil)
		return e.fail(ProcessDied, err, processKilled...)
	} else if err != nil {
		return e.fail(InternalError, err, append(unexpected, "", "Error: "+err.Error())...)
	}

	switch r := result.(type) {
	case repl.SuccessWithValue:
		k.commit(src)
		display := repl.Render(r.Value)
		return &Outcome{Kind: Value, ExecutionCount: e.cell, Display: &display}
	case repl.SuccessWithoutValue:
		k.commit(src)
		return e.done(NoValue)
	case *repl.EvalError:
		if !ctrl.Valid() {
			k.relay.SetTarget(nil)
			return e.fail(ProcessDied, r, processKilled...)
		}
		if drain.HadOutput() {
			// A runtime error. Its message is part of the output.
			return e.fail(EvalError, r, e.stackTrace(ctrl)...)
		}
		return e.fail(EvalError, r, r.HelpfulMessage())
	}
	return e.fail(InternalError, fmt.Errorf("unexpected result %T", result), unexpected...)
}

func (e *execution) stackTrace(ctrl *repl.Controller) []string {
	lines := []string{"Current stack trace:"}
	frames, err := ctrl.StackTrace()
	if err != nil {
		logger.Warnw("cannot get stack trace", "err", err)
	}
	for _, frame := range frames {
		lines = append(lines, "\t"+frame)
	}
	return lines
}

// Appends evaluated code to the code intelligence document.
func (k *Kernel) commit(src string) {
	if s := k.intelSession(); s != nil {
		s.Commit(src)
	}
}

// Kills the REPL process and clears the code intelligence document. Installed
// artifacts are kept and loaded into the next session.
func (k *Kernel) reset() error {
	k.mu.Lock()
	ctrl, s := k.ctrl, k.intel
	k.ctrl = nil
	k.mu.Unlock()
	k.launchErr = nil
	k.relay.SetTarget(nil)
	if s != nil {
		s.Reset()
	}
	if k.artifacts != nil {
		k.needsLoad = true
	}
	if ctrl == nil {
		return nil
	}
	return ctrl.Close()
}
