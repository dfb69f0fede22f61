// Package kernel implements the execution pipeline of the Swift kernel.
//
// A Kernel accepts submissions of source text and returns one Outcome per
// submission. Each submission goes through these states:
//
//	ReceiveSubmission → ExtractDirectives → [InstallIfNeeded] →
//	InitSessionIfNeeded → Evaluate → PostProcess → Emit
//
// Output of the REPL process and progress messages are streamed to a Sink
// while the submission is processed. Packages requested with %install are
// built before the REPL process is launched, and only in the first
// submission that launches it.
package kernel

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"src.swiftkernel.dev/pkg/config"
	"src.swiftkernel.dev/pkg/install"
	"src.swiftkernel.dev/pkg/intel"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/relay"
	"src.swiftkernel.dev/pkg/repl"
	"src.swiftkernel.dev/pkg/repl/lldbhost"
	"src.swiftkernel.dev/pkg/store"
)

var logger = logutil.GetLogger("[kernel] ")

// Builder builds packages requested with %install. It is implemented by
// *install.Pipeline.
type Builder interface {
	Build(ctx context.Context, req install.Request, progress install.Progress) (*install.Artifacts, error)
}

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config
	// Starts the debugger of a new session. Defaults to starting
	// Config.DebuggerHost, or the bundled LLDB bridge if that is empty.
	NewDebugger func(ctx context.Context) (repl.Debugger, error)
	// Opens the code intelligence session. Defaults to intel.Open. Not called
	// if Config.DisableIntel is set.
	OpenIntel func(cfg intel.Config) (*intel.Session, error)
	// Defaults to an install.Pipeline configured from Config.
	Builder Builder
	// Defaults to a store at Config.HistoryPath.
	Store store.Store
	// Path to the swift binary. Defaults to swift in the toolchain root or
	// PATH.
	SwiftPath string
	// Signals relayed to the REPL process as interrupts.
	InterruptSignals []os.Signal
}

// Kernel is the execution pipeline of one kernel.
type Kernel struct {
	cfg         *config.Config
	newDebugger func(ctx context.Context) (repl.Debugger, error)
	openIntel   func(cfg intel.Config) (*intel.Session, error)
	builder     Builder
	store       store.Store
	swiftPath   string
	relay       *relay.Relay
	sessionID   string

	scratch      string
	ownsScratch  bool
	historyStart int

	// Serializes Execute. Held for the whole of a submission.
	execMu sync.Mutex
	// Fields below are only changed with execMu held.
	count     int
	artifacts *install.Artifacts
	// Set when artifacts have not been loaded into the current session.
	needsLoad bool
	// Set when launching the REPL process failed. Cleared by %reset.
	launchErr error

	// Guards the fields below, which are also read by Complete, Inspect and
	// Shutdown.
	mu                sync.Mutex
	ctrl              *repl.Controller
	intel             *intel.Session
	intelOpened       bool
	completionEnabled bool
	closed            bool

	versionOnce sync.Once
	version     string
}

// New creates a Kernel. The REPL process is not launched until the first
// submission with code to evaluate.
func New(opts Options) (*Kernel, error) {
	cfg := opts.Config
	k := &Kernel{
		cfg:               cfg,
		newDebugger:       opts.NewDebugger,
		openIntel:         opts.OpenIntel,
		builder:           opts.Builder,
		store:             opts.Store,
		swiftPath:         opts.SwiftPath,
		sessionID:         uuid.NewString(),
		completionEnabled: true,
	}
	k.scratch = cfg.ScratchDir
	if k.scratch == "" {
		dir, err := os.MkdirTemp("", "swift-kernel-")
		if err != nil {
			return nil, err
		}
		k.scratch, k.ownsScratch = dir, true
	} else if err := os.MkdirAll(k.scratch, 0o755); err != nil {
		return nil, err
	}
	if k.store == nil {
		st, err := store.NewStore(cfg.HistoryPath(k.scratch))
		if err != nil {
			k.removeScratch()
			return nil, err
		}
		k.store = st
	}
	if n, err := k.store.CellCount(); err == nil {
		k.historyStart = n
	} else {
		logger.Warnw("cannot count history cells", "err", err)
	}
	if k.newDebugger == nil {
		k.newDebugger = k.startHost
	}
	if k.openIntel == nil {
		k.openIntel = intel.Open
	}
	if k.builder == nil {
		k.builder = &install.Pipeline{
			SwiftBuildPath:   cfg.SwiftBuildPath,
			SwiftPackagePath: cfg.SwiftPackagePath,
			ScratchDir:       k.scratch,
			Timeout:          cfg.Timeouts.Build,
		}
	}
	if k.swiftPath == "" {
		k.swiftPath = findSwift(cfg.ToolchainRoot)
	}
	k.relay = relay.Start(opts.InterruptSignals...)
	logger.Infow("kernel created", "session", k.sessionID, "scratch", k.scratch)
	return k, nil
}

func (k *Kernel) startHost(ctx context.Context) (repl.Debugger, error) {
	cmd := lldbhost.Command{Path: k.cfg.DebuggerHost, Args: k.cfg.DebuggerHostArgs}
	if cmd.Path == "" {
		bridge := lldbhost.Bridge{
			ToolchainRoot: k.cfg.ToolchainRoot, Python: k.cfg.Python, Dir: k.scratch}
		var err error
		if cmd, err = bridge.Command(ctx); err != nil {
			return nil, err
		}
	}
	return lldbhost.Start(ctx, cmd)
}

func findSwift(root string) string {
	if root != "" {
		p := filepath.Join(root, "usr", "bin", "swift")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if p, err := exec.LookPath("swift"); err == nil {
		return p
	}
	return ""
}

// SessionID returns the identifier under which submissions are recorded in
// the history.
func (k *Kernel) SessionID() string { return k.sessionID }

// ScratchDir returns the directory of the kernel's scratch files.
func (k *Kernel) ScratchDir() string { return k.scratch }

// Interrupt asks the running evaluation, if any, to stop. It does not wait
// for the evaluation to return. The reply carries repl.ErrNoProcess when
// there is no REPL process.
func (k *Kernel) Interrupt(ctx context.Context) relay.Reply {
	return k.relay.Request(ctx)
}

// Complete returns completions for code at the cursor, a character offset.
// The result has no matches if completion is disabled or unavailable.
func (k *Kernel) Complete(code string, cursor int) intel.Completion {
	if c, ok := completeDirective(code, cursor); ok {
		return c
	}
	k.mu.Lock()
	s, enabled := k.intel, k.completionEnabled
	k.mu.Unlock()
	if s == nil || !enabled {
		return intel.Completion{CursorStart: cursor, CursorEnd: cursor}
	}
	return s.Complete(code, cursor)
}

// Inspect returns documentation of the symbol at the cursor in markdown.
func (k *Kernel) Inspect(code string, cursor int) (string, bool) {
	k.mu.Lock()
	s := k.intel
	k.mu.Unlock()
	if s == nil {
		return "", false
	}
	return s.Inspect(code, cursor)
}

// Shutdown kills the REPL process and releases all resources. A running
// evaluation returns with a ProcessDied outcome. If restart is true, the
// caller is going to create a new kernel.
func (k *Kernel) Shutdown(restart bool) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	ctrl, s := k.ctrl, k.intel
	k.ctrl, k.intel = nil, nil
	k.mu.Unlock()
	logger.Infow("shutting down", "restart", restart)

	var err error
	k.relay.Stop()
	if ctrl != nil {
		err = multierr.Append(err, ctrl.Close())
	}
	if s != nil {
		err = multierr.Append(err, s.Close())
	}
	// Wait for a running submission to finish with the store.
	k.execMu.Lock()
	err = multierr.Append(err, k.store.Close())
	k.execMu.Unlock()
	k.removeScratch()
	return err
}

func (k *Kernel) removeScratch() {
	if k.ownsScratch {
		if err := os.RemoveAll(k.scratch); err != nil {
			logger.Warnw("cannot remove scratch directory", "dir", k.scratch, "err", err)
		}
	}
}
