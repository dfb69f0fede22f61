// Package lspclient implements a client for language servers speaking JSON-RPC
// over standard streams with Content-Length framing.
//
// One goroutine owns the input stream and dispatches responses to the callers
// of Request by id; writes of whole frames are serialized by a single lock.
package lspclient

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[lspclient] ")

const stopGrace = 2 * time.Second

var jsonNull = json.RawMessage("null")

// Command describes the server process to start.
type Command struct {
	Path string
	Args []string
	// Environment of the server, in the form of os.Environ. A nil Env means
	// the environment of the current process.
	Env []string
	Dir string
}

// Client is a connection to a language server.
type Client struct {
	w       io.WriteCloser
	writeMu sync.Mutex

	// Guards nextID, pending and closed.
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *incoming
	closed  bool

	diagMu        sync.Mutex
	onDiagnostics func(lsp.PublishDiagnosticsParams)

	cmd      *exec.Cmd
	closers  []io.Closer
	done     chan struct{}
	errDone  chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start spawns the server described by cmd and returns a client connected to
// its standard streams.
func Start(cmd Command) (*Client, error) {
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, &LaunchError{cmd.Path, err}
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{cmd.Path, err}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, &LaunchError{cmd.Path, err}
	}
	if err := c.Start(); err != nil {
		return nil, &LaunchError{cmd.Path, err}
	}
	logger.Infow("started language server", "path", cmd.Path, "pid", c.Process.Pid)
	return newClient(stdin, stdout, stderr, c), nil
}

// NewClient returns a client that writes frames to w and reads frames from r.
// Lines read from stderr, which may be nil, are logged. If r or stderr
// implement io.Closer, Stop closes them.
func NewClient(w io.WriteCloser, r io.Reader, stderr io.Reader) *Client {
	return newClient(w, r, stderr, nil)
}

func newClient(w io.WriteCloser, r io.Reader, stderr io.Reader, cmd *exec.Cmd) *Client {
	c := &Client{
		w:       w,
		pending: make(map[uint64]chan *incoming),
		cmd:     cmd,
		done:    make(chan struct{}),
		errDone: make(chan struct{}),
	}
	for _, x := range []io.Reader{r, stderr} {
		if closer, ok := x.(io.Closer); ok && cmd == nil {
			c.closers = append(c.closers, closer)
		}
	}
	go c.readLoop(bufio.NewReader(r))
	if stderr != nil {
		go c.stderrLoop(stderr)
	} else {
		close(c.errDone)
	}
	return c
}

// SetDiagnosticsHandler sets the function called for each
// textDocument/publishDiagnostics notification. It is called on the reader
// goroutine; panics are recovered and logged.
func (c *Client) SetDiagnosticsHandler(f func(lsp.PublishDiagnosticsParams)) {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	c.onDiagnostics = f
}

// Request sends a request and waits up to timeout for its response. It
// returns the raw result, which is "null" when the server responded with a
// null result.
func (c *Client) Request(method string, params any, timeout time.Duration) (json.RawMessage, error) {
	id, ch, err := c.register()
	if err != nil {
		return nil, err
	}
	if err := c.send(method, params, &jsonrpc2.ID{Num: id}); err != nil {
		c.forget(id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Error != nil {
			return nil, &RemoteError{method, resp.Error}
		}
		if len(resp.Result) == 0 {
			return jsonNull, nil
		}
		return resp.Result, nil
	case <-timer.C:
		c.forget(id)
		return nil, &RequestTimeout{method, timeout}
	}
}

// Call is like Request, but unmarshals the result into result.
func (c *Client) Call(method string, params, result any, timeout time.Duration) error {
	raw, err := c.Request(method, params, timeout)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

// Notify sends a notification.
func (c *Client) Notify(method string, params any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.send(method, params, nil)
}

func (c *Client) register() (uint64, chan *incoming, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	if _, dup := c.pending[id]; dup {
		panic(fmt.Sprintf("lspclient: id %d already pending", id))
	}
	// Buffered so that delivery never blocks the reader.
	ch := make(chan *incoming, 1)
	c.pending[id] = ch
	return id, ch, nil
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Client) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) send(method string, params any, id *jsonrpc2.ID) error {
	req := jsonrpc2.Request{Method: method, Notif: id == nil}
	if id != nil {
		req.ID = *id
	}
	if params != nil {
		if err := req.SetParams(params); err != nil {
			return err
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.writeFrame(body)
}

func (c *Client) reply(id jsonrpc2.ID) error {
	body, err := json.Marshal(jsonrpc2.Response{ID: id, Result: &jsonNull})
	if err != nil {
		return err
	}
	return c.writeFrame(body)
}

func (c *Client) writeFrame(body []byte) error {
	frame := appendFrame(nil, body)
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.w.Write(frame)
	return err
}

func (c *Client) readLoop(r *bufio.Reader) {
	defer close(c.done)
	defer c.closePending()
	for {
		body, err := readFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				logger.Debugw("reader exiting", "err", err)
			}
			return
		}
		var msg incoming
		if err := json.Unmarshal(body, &msg); err != nil {
			logger.Warnw("malformed message from server", "err", err)
			continue
		}
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *incoming) {
	switch {
	case msg.Method != "" && msg.ID != nil:
		// The server never waits on us; answer with a null result.
		logger.Debugw("answering server request", "method", msg.Method)
		if err := c.reply(*msg.ID); err != nil {
			logger.Warnw("cannot answer server request", "method", msg.Method, "err", err)
		}
	case msg.Method != "":
		c.handleNotification(msg.Method, msg.Params)
	case msg.ID != nil:
		if msg.ID.IsString {
			logger.Debugw("dropping response with string id", "id", msg.ID.Str)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.ID.Num]
		delete(c.pending, msg.ID.Num)
		c.mu.Unlock()
		if !ok {
			logger.Debugw("dropping response without pending request", "id", msg.ID.Num)
			return
		}
		ch <- msg
	}
}

func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case "textDocument/publishDiagnostics":
		var p lsp.PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			logger.Warnw("malformed diagnostics", "err", err)
			return
		}
		c.diagMu.Lock()
		f := c.onDiagnostics
		c.diagMu.Unlock()
		if f != nil {
			callDiagnosticsHandler(f, p)
		}
	case "window/logMessage":
		var p lsp.LogMessageParams
		if json.Unmarshal(params, &p) == nil {
			logger.Debugw("server log", "type", p.Type, "message", p.Message)
		}
	default:
		logger.Debugw("ignoring notification", "method", method)
	}
}

func callDiagnosticsHandler(f func(lsp.PublishDiagnosticsParams), p lsp.PublishDiagnosticsParams) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("diagnostics handler panicked", "panic", r)
		}
	}()
	f(p)
}

func (c *Client) closePending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) stderrLoop(r io.Reader) {
	defer close(c.errDone)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Warnw("server stderr", "line", scanner.Text())
	}
}

// Stop closes the connection. If the client was created by Start, the server
// is sent SIGTERM and killed if it does not exit within two seconds. Stop is
// idempotent.
func (c *Client) Stop() error {
	c.stopOnce.Do(func() { c.stopErr = c.stop() })
	return c.stopErr
}

func (c *Client) stop() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.writeMu.Lock()
	c.w.Close()
	c.writeMu.Unlock()

	if c.cmd == nil {
		if !c.waitReaders(stopGrace) {
			for _, closer := range c.closers {
				closer.Close()
			}
			c.waitReaders(stopGrace)
		}
		return nil
	}

	c.cmd.Process.Signal(syscall.SIGTERM)
	if !c.waitReaders(stopGrace) {
		logger.Warnw("language server did not exit, killing", "pid", c.cmd.Process.Pid)
		c.cmd.Process.Kill()
		c.waitReaders(stopGrace)
	}
	err := c.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Exiting on SIGTERM or SIGKILL is expected.
		return nil
	}
	return err
}

func (c *Client) waitReaders(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for _, ch := range []chan struct{}{c.done, c.errDone} {
		select {
		case <-ch:
		case <-timer.C:
			return false
		}
	}
	return true
}

// Done returns a channel that is closed when the reader goroutine exits.
func (c *Client) Done() <-chan struct{} { return c.done }
