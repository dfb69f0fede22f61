// Package lldbhost implements repl.Debugger by talking JSON-RPC to a debugger
// host process over its standard streams.
//
// The host process embeds the debugger (for instance through LLDB's scripting
// bridge) and serves the methods in protocol.go. Serve implements the server
// side on top of any repl.Debugger.
package lldbhost

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/repl"
	"src.swiftkernel.dev/pkg/sys"
)

var logger = logutil.GetLogger("[lldbhost] ")

// Time limits for calls that must not block.
const (
	quickTimeout = 5 * time.Second
	closeTimeout = 5 * time.Second
	exitGrace    = 2 * time.Second
)

// Command describes the host process.
type Command struct {
	Path string
	Args []string
	// Nil means the environment of the current process.
	Env []string
}

// Host is a connection to a debugger host. It implements repl.Debugger.
type Host struct {
	conn    *jsonrpc2.Conn
	cmd     *exec.Cmd
	version string

	closeOnce sync.Once
	closeErr  error
}

var _ repl.Debugger = (*Host)(nil)

// Start starts the host process in its own process group, so that a SIGINT
// delivered to the kernel's terminal does not reach it directly.
func Start(ctx context.Context, c Command) (*Host, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	sys.SetNewProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	logger.Infow("started debugger host", "path", c.Path, "pid", cmd.Process.Pid)
	go logLines(stderr)
	h := newHost(ctx, stdio{stdout, stdin})
	h.cmd = cmd
	h.fetchVersion()
	return h, nil
}

// Connect returns a Host talking to a host over rwc.
func Connect(ctx context.Context, rwc io.ReadWriteCloser) *Host {
	h := newHost(ctx, rwc)
	h.fetchVersion()
	return h
}

func newHost(ctx context.Context, rwc io.ReadWriteCloser) *Host {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(refuse),
		jsonrpc2.SetLogger(logutil.Printf(logger)))
	return &Host{conn: conn}
}

// The host never sends requests.
func refuse(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "client serves no methods"}
}

func (h *Host) fetchVersion() {
	var v string
	if err := h.quickCall(methodVersion, nil, &v); err != nil {
		logger.Warnw("cannot get debugger version", "err", err)
		v = "unknown"
	}
	h.version = v
}

type stdio struct {
	io.ReadCloser
	w io.WriteCloser
}

func (s stdio) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s stdio) Close() error {
	return errors.Join(s.w.Close(), s.ReadCloser.Close())
}

func logLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Infow("host stderr", "line", scanner.Text())
	}
}

func (h *Host) call(ctx context.Context, method string, params, result any) error {
	return h.conn.Call(ctx, method, params, result)
}

func (h *Host) quickCall(method string, params, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), quickTimeout)
	defer cancel()
	return h.conn.Call(ctx, method, params, result)
}

func (h *Host) CreateTarget(ctx context.Context, path, arch string) error {
	return h.call(ctx, methodCreateTarget, createTargetParams{path, arch}, nil)
}

func (h *Host) AppendModuleSearchPath(ctx context.Context, dir string) error {
	return h.call(ctx, methodAppendSearchPath, searchPathParams{dir}, nil)
}

func (h *Host) SetBreakpoint(ctx context.Context, symbol string) error {
	return h.call(ctx, methodSetBreakpoint, breakpointParams{symbol}, nil)
}

func (h *Host) Launch(ctx context.Context, opts repl.LaunchOptions) error {
	return h.call(ctx, methodLaunch, opts, nil)
}

func (h *Host) Evaluate(ctx context.Context, code string, opts repl.EvalOptions) (*repl.EvalResult, error) {
	var result repl.EvalResult
	if err := h.call(ctx, methodEvaluate, evaluateParams{code, opts}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (h *Host) ReadStdout(max int) ([]byte, error) {
	var result readStdoutResult
	if err := h.quickCall(methodReadStdout, readStdoutParams{max}, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (h *Host) Interrupt() error {
	return h.quickCall(methodInterrupt, nil, nil)
}

// Valid reports false if the host cannot be reached.
func (h *Host) Valid() bool {
	select {
	case <-h.conn.DisconnectNotify():
		return false
	default:
	}
	var valid bool
	if err := h.quickCall(methodValid, nil, &valid); err != nil {
		logger.Warnw("cannot query process state", "err", err)
		return false
	}
	return valid
}

func (h *Host) StackTrace() ([]repl.Frame, error) {
	var frames []repl.Frame
	err := h.quickCall(methodStackTrace, nil, &frames)
	return frames, err
}

func (h *Host) Version() string { return h.version }

// Close asks the host to kill the REPL process, closes the connection and
// waits for the host process to exit, killing it after a grace period.
func (h *Host) Close() error {
	h.closeOnce.Do(func() { h.closeErr = h.close() })
	return h.closeErr
}

func (h *Host) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	err := h.conn.Call(ctx, methodClose, nil, nil)
	cancel()
	if err != nil {
		logger.Debugw("close request failed", "err", err)
	}
	h.conn.Close()
	if h.cmd == nil {
		return nil
	}
	exited := make(chan error, 1)
	go func() { exited <- h.cmd.Wait() }()
	select {
	case err := <-exited:
		return ignoreExit(err)
	case <-time.After(exitGrace):
		logger.Warnw("debugger host did not exit, killing", "pid", h.cmd.Process.Pid)
		if err := sys.KillGroup(h.cmd.Process.Pid); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Warnw("cannot kill debugger host", "err", err)
		}
		return ignoreExit(<-exited)
	}
}

func ignoreExit(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
