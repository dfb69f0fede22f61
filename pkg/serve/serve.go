// Package serve exposes a kernel over JSON-RPC 2.0, framed with
// Content-Length headers like the language server protocol.
//
// Requests:
//
//	kernel/info       -> kernel.Info
//	kernel/execute    {code}              -> ExecuteResult
//	kernel/complete   {code, cursor_pos}  -> CompleteResult
//	kernel/inspect    {code, cursor_pos}  -> InspectResult
//	kernel/interrupt                      -> InterruptResult
//	kernel/shutdown   {restart}           -> null
//
// While kernel/execute runs, the server sends kernel/stream and
// kernel/clearOutput notifications. All notifications for a submission are
// sent before its response.
package serve

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"src.swiftkernel.dev/pkg/intel"
	"src.swiftkernel.dev/pkg/kernel"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/relay"
)

var logger = logutil.GetLogger("[serve] ")

// Kernel is the part of *kernel.Kernel used by the server.
type Kernel interface {
	Info() kernel.Info
	Execute(ctx context.Context, code string, sink kernel.Sink) *kernel.Outcome
	Complete(code string, cursor int) intel.Completion
	Inspect(code string, cursor int) (string, bool)
	Interrupt(ctx context.Context) relay.Reply
	Shutdown(restart bool) error
}

var _ Kernel = (*kernel.Kernel)(nil)

// ExecuteParams are the parameters of kernel/execute.
type ExecuteParams struct {
	Code string `json:"code"`
}

// ExecuteResult is the result of kernel/execute.
type ExecuteResult struct {
	// "ok" or "error".
	Status         string `json:"status"`
	Kind           string `json:"kind"`
	ExecutionCount int    `json:"execution_count"`
	// Set for the Value kind.
	Value *Value `json:"value,omitempty"`
	// Set for error kinds.
	Traceback []string `json:"traceback,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Value is a rendered value.
type Value struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Table string `json:"table,omitempty"`
}

// CursorParams are the parameters of kernel/complete and kernel/inspect. The
// cursor is a rune offset into code.
type CursorParams struct {
	Code      string `json:"code"`
	CursorPos int    `json:"cursor_pos"`
}

// CompleteResult is the result of kernel/complete.
type CompleteResult struct {
	Matches     []string `json:"matches"`
	CursorStart int      `json:"cursor_start"`
	CursorEnd   int      `json:"cursor_end"`
}

// InspectResult is the result of kernel/inspect.
type InspectResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text,omitempty"`
}

// InterruptResult is the result of kernel/interrupt.
type InterruptResult struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// ShutdownParams are the parameters of kernel/shutdown.
type ShutdownParams struct {
	Restart bool `json:"restart"`
}

// StreamParams are the parameters of the kernel/stream notification.
type StreamParams struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

// Serve serves requests read from rwc until the peer disconnects, ctx is
// done or kernel/shutdown is handled. When the peer closes its stream,
// requests already read are completed before the connection closes. Unless
// the kernel was shut down by a request, it is shut down before Serve
// returns.
func Serve(ctx context.Context, k Kernel, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s := &server{k: k, shutdown: make(chan struct{})}
	s.methods = map[string]method{
		"kernel/info":      s.info,
		"kernel/execute":   s.execute,
		"kernel/complete":  s.complete,
		"kernel/inspect":   s.inspect,
		"kernel/interrupt": s.interrupt,
		"kernel/shutdown":  s.shutdownKernel,
	}
	s.h = jsonrpc2.HandlerWithError(s.route)
	stream := drainingStream{
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), &s.wg}
	conn := jsonrpc2.NewConn(ctx, stream, s, jsonrpc2.SetLogger(logutil.Printf(logger)))

	select {
	case <-conn.DisconnectNotify():
	case <-s.shutdown:
	case <-ctx.Done():
	}
	var err error
	if !s.shutDown() {
		// Makes running executions return.
		err = k.Shutdown(false)
	}
	conn.Close()
	<-conn.DisconnectNotify()
	s.wg.Wait()
	return err
}

// Waits for in-flight requests when reading fails, so that they can reply
// before the connection closes.
type drainingStream struct {
	jsonrpc2.ObjectStream
	inFlight *sync.WaitGroup
}

func (s drainingStream) ReadObject(v any) error {
	err := s.ObjectStream.ReadObject(v)
	if err != nil {
		s.inFlight.Wait()
	}
	return err
}

type method func(context.Context, *jsonrpc2.Conn, json.RawMessage) (any, error)

type server struct {
	k       Kernel
	methods map[string]method
	h       jsonrpc2.Handler
	wg      sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Handle handles each request in its own goroutine, so that interrupt,
// complete and inspect requests are served while an execution runs.
func (s *server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.h.Handle(ctx, conn, req)
		if req.Method == "kernel/shutdown" {
			// Closed after the reply has been written.
			s.shutdownOnce.Do(func() { close(s.shutdown) })
		}
	}()
}

func (s *server) shutDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

func (s *server) route(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	fn, ok := s.methods[req.Method]
	if !ok {
		return nil, errMethodNotFound
	}
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}
	return fn(ctx, conn, params)
}

// Decodes params into v. Absent params leave v untouched.
func decode(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if json.Unmarshal(params, v) != nil {
		return errInvalidParams
	}
	return nil
}

func (s *server) info(context.Context, *jsonrpc2.Conn, json.RawMessage) (any, error) {
	return s.k.Info(), nil
}

func (s *server) execute(ctx context.Context, conn *jsonrpc2.Conn, rawParams json.RawMessage) (any, error) {
	var params ExecuteParams
	if err := decode(rawParams, &params); err != nil {
		return nil, err
	}
	sink := func(e kernel.Event) {
		var err error
		if e.Clear {
			err = conn.Notify(ctx, "kernel/clearOutput", struct{}{})
		} else {
			err = conn.Notify(ctx, "kernel/stream", StreamParams{Name: e.Stream, Text: e.Text})
		}
		if err != nil {
			logger.Warnw("cannot send output", "err", err)
		}
	}
	return executeResult(s.k.Execute(ctx, params.Code, sink)), nil
}

func executeResult(out *kernel.Outcome) *ExecuteResult {
	r := &ExecuteResult{
		Status:         "ok",
		Kind:           out.Kind.String(),
		ExecutionCount: out.ExecutionCount,
	}
	if out.Display != nil {
		r.Value = &Value{Kind: out.Display.Kind.String(), Text: out.Display.Text, Table: out.Display.Table}
	}
	if out.IsError() {
		r.Status = "error"
		r.Traceback = out.Traceback
		if out.Err != nil {
			r.Error = out.Err.Error()
		}
	}
	return r
}

func (s *server) complete(_ context.Context, _ *jsonrpc2.Conn, rawParams json.RawMessage) (any, error) {
	var params CursorParams
	if err := decode(rawParams, &params); err != nil {
		return nil, err
	}
	c := s.k.Complete(params.Code, params.CursorPos)
	matches := c.Matches
	if matches == nil {
		matches = []string{}
	}
	return CompleteResult{Matches: matches, CursorStart: c.CursorStart, CursorEnd: c.CursorEnd}, nil
}

func (s *server) inspect(_ context.Context, _ *jsonrpc2.Conn, rawParams json.RawMessage) (any, error) {
	var params CursorParams
	if err := decode(rawParams, &params); err != nil {
		return nil, err
	}
	text, found := s.k.Inspect(params.Code, params.CursorPos)
	return InspectResult{Found: found, Text: text}, nil
}

func (s *server) interrupt(ctx context.Context, _ *jsonrpc2.Conn, _ json.RawMessage) (any, error) {
	reply := s.k.Interrupt(ctx)
	r := InterruptResult{Delivered: reply.OK}
	if reply.Err != nil {
		r.Error = reply.Err.Error()
	}
	return r, nil
}

func (s *server) shutdownKernel(_ context.Context, _ *jsonrpc2.Conn, rawParams json.RawMessage) (any, error) {
	var params ShutdownParams
	if err := decode(rawParams, &params); err != nil {
		return nil, err
	}
	if err := s.k.Shutdown(params.Restart); err != nil {
		logger.Warnw("error shutting down kernel", "err", err)
	}
	return nil, nil
}
