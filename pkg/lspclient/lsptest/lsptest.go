// Package lsptest provides an in-process language server for testing clients.
package lsptest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
	"src.swiftkernel.dev/pkg/logutil"
)

var logger = logutil.GetLogger("[lsptest] ")

// ErrNoReply may be returned by a Handler to leave a request unanswered. The
// test may answer it later with Server.Reply.
var ErrNoReply = errors.New("no reply")

// Handler handles a request or notification. For notifications the results
// are ignored.
type Handler func(ctx context.Context, req *jsonrpc2.Request) (any, error)

// Server is a fake language server. By default it answers initialize, keeps
// the text of documents opened or changed by the client, and responds to
// completion, hover and definition requests with empty results.
type Server struct {
	conn *jsonrpc2.Conn

	mu       sync.Mutex
	handlers map[string]Handler
	docs     map[lsp.DocumentURI][]string
	methods  []string
}

// Start starts a server. It returns the streams for the client: the client
// writes requests to w and reads responses from r.
func Start() (s *Server, w io.WriteCloser, r io.ReadCloser) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	s = &Server{handlers: map[string]Handler{}, docs: map[lsp.DocumentURI][]string{}}
	s.handlers["initialize"] = func(context.Context, *jsonrpc2.Request) (any, error) {
		return lsp.InitializeResult{Capabilities: lsp.ServerCapabilities{
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &lsp.CompletionOptions{},
		}}, nil
	}
	s.handlers["textDocument/didOpen"] = s.didOpen
	s.handlers["textDocument/didChange"] = s.didChange
	s.handlers["textDocument/completion"] = func(context.Context, *jsonrpc2.Request) (any, error) {
		return lsp.CompletionList{Items: []lsp.CompletionItem{}}, nil
	}
	s.handlers["textDocument/hover"] = func(context.Context, *jsonrpc2.Request) (any, error) {
		return nil, nil
	}
	s.handlers["textDocument/definition"] = func(context.Context, *jsonrpc2.Request) (any, error) {
		return []lsp.Location{}, nil
	}
	s.conn = jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(pipes{serverR, serverW}, jsonrpc2.VSCodeObjectCodec{}),
		handler{s}, jsonrpc2.SetLogger(logutil.Printf(logger)))
	return s, clientW, clientR
}

type pipes struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p pipes) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p pipes) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p pipes) Close() error {
	p.r.Close()
	return p.w.Close()
}

// On sets the handler for a method, replacing any default.
func (s *Server) On(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Methods returns the methods of all requests and notifications received so
// far, in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// Document returns the current text of a document.
func (s *Server) Document(uri lsp.DocumentURI) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.docs[uri]
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

// DocumentVersions returns every text the document has had, oldest first.
func (s *Server) DocumentVersions(uri lsp.DocumentURI) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.docs[uri]...)
}

// Notify sends a notification to the client.
func (s *Server) Notify(method string, params any) error {
	return s.conn.Notify(context.Background(), method, params)
}

// Call sends a request to the client and waits for its response.
func (s *Server) Call(method string, params, result any) error {
	return s.conn.Call(context.Background(), method, params, result)
}

// Reply answers a request left unanswered with ErrNoReply.
func (s *Server) Reply(id jsonrpc2.ID, result any) error {
	return s.conn.Reply(context.Background(), id, result)
}

// Close closes the server side of the connection.
func (s *Server) Close() error {
	return s.conn.Close()
}

// Disconnected returns a channel that is closed when the connection is gone.
func (s *Server) Disconnected() <-chan struct{} {
	return s.conn.DisconnectNotify()
}

func (s *Server) didOpen(_ context.Context, req *jsonrpc2.Request) (any, error) {
	var params lsp.DidOpenTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	s.setDocument(params.TextDocument.URI, params.TextDocument.Text)
	return nil, nil
}

func (s *Server) didChange(_ context.Context, req *jsonrpc2.Request) (any, error) {
	var params lsp.DidChangeTextDocumentParams
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		return nil, err
	}
	if len(params.ContentChanges) > 0 {
		s.setDocument(params.TextDocument.URI, params.ContentChanges[0].Text)
	}
	return nil, nil
}

func (s *Server) setDocument(uri lsp.DocumentURI, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = append(s.docs[uri], text)
}

type handler struct{ s *Server }

var errMethodNotFound = &jsonrpc2.Error{
	Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}

func (h handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	h.s.mu.Lock()
	h.s.methods = append(h.s.methods, req.Method)
	fn := h.s.handlers[req.Method]
	h.s.mu.Unlock()

	if fn == nil {
		if !req.Notif {
			conn.ReplyWithError(ctx, req.ID, errMethodNotFound)
		}
		return
	}
	if req.Params == nil {
		null := json.RawMessage("null")
		req.Params = &null
	}
	result, err := fn(ctx, req)
	if req.Notif || err == ErrNoReply {
		return
	}
	if err != nil {
		rpcErr, ok := err.(*jsonrpc2.Error)
		if !ok {
			rpcErr = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
		}
		conn.ReplyWithError(ctx, req.ID, rpcErr)
		return
	}
	conn.Reply(ctx, req.ID, result)
}
