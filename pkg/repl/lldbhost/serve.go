package lldbhost

import (
	"context"
	"encoding/json"
	"io"

	"github.com/sourcegraph/jsonrpc2"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/repl"
)

// Serve serves the debugger host protocol over rwc, backed by dbg, until the
// connection is closed. Requests are handled concurrently, so that interrupts
// and output reads are served while an evaluation runs.
func Serve(ctx context.Context, rwc io.ReadWriteCloser, dbg repl.Debugger) {
	h := &server{dbg}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream,
		jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(h.handle)),
		jsonrpc2.SetLogger(logutil.Printf(logger)))
	<-conn.DisconnectNotify()
}

type server struct{ dbg repl.Debugger }

type method func(s *server, ctx context.Context, params json.RawMessage) (any, error)

var methods = map[string]method{
	methodCreateTarget: func(s *server, ctx context.Context, raw json.RawMessage) (any, error) {
		var p createTargetParams
		return decodeAnd(raw, &p, func() error { return s.dbg.CreateTarget(ctx, p.Path, p.Arch) })
	},
	methodAppendSearchPath: func(s *server, ctx context.Context, raw json.RawMessage) (any, error) {
		var p searchPathParams
		return decodeAnd(raw, &p, func() error { return s.dbg.AppendModuleSearchPath(ctx, p.Dir) })
	},
	methodSetBreakpoint: func(s *server, ctx context.Context, raw json.RawMessage) (any, error) {
		var p breakpointParams
		return decodeAnd(raw, &p, func() error { return s.dbg.SetBreakpoint(ctx, p.Symbol) })
	},
	methodLaunch: func(s *server, ctx context.Context, raw json.RawMessage) (any, error) {
		var p repl.LaunchOptions
		return decodeAnd(raw, &p, func() error { return s.dbg.Launch(ctx, p) })
	},
	methodEvaluate: func(s *server, ctx context.Context, raw json.RawMessage) (any, error) {
		var p evaluateParams
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		return s.dbg.Evaluate(ctx, p.Code, p.Options)
	},
	methodReadStdout: func(s *server, _ context.Context, raw json.RawMessage) (any, error) {
		var p readStdoutParams
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		data, err := s.dbg.ReadStdout(p.Max)
		return readStdoutResult{data}, err
	},
	methodInterrupt: func(s *server, _ context.Context, _ json.RawMessage) (any, error) {
		return nil, s.dbg.Interrupt()
	},
	methodValid: func(s *server, _ context.Context, _ json.RawMessage) (any, error) {
		return s.dbg.Valid(), nil
	},
	methodStackTrace: func(s *server, _ context.Context, _ json.RawMessage) (any, error) {
		frames, err := s.dbg.StackTrace()
		if frames == nil {
			frames = []repl.Frame{}
		}
		return frames, err
	},
	methodVersion: func(s *server, _ context.Context, _ json.RawMessage) (any, error) {
		return s.dbg.Version(), nil
	},
	methodClose: func(s *server, _ context.Context, _ json.RawMessage) (any, error) {
		return nil, s.dbg.Close()
	},
}

func (s *server) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	m, ok := methods[req.Method]
	if !ok {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}
	result, err := m(s, ctx, params)
	if err != nil {
		if _, ok := err.(*jsonrpc2.Error); !ok {
			err = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		}
		return nil, err
	}
	return result, nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func decodeAnd(raw json.RawMessage, v any, f func() error) (any, error) {
	if err := decode(raw, v); err != nil {
		return nil, err
	}
	return nil, f()
}
