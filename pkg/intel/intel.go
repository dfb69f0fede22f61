// Package intel maintains a code intelligence session with a Swift language
// server.
//
// The session mirrors the source evaluated so far in a virtual document. The
// source of a cell that has not been evaluated yet is appended temporarily
// for completion and hover requests, and removed afterwards.
package intel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	lsp "github.com/sourcegraph/go-lsp"
	"src.swiftkernel.dev/pkg/config"
	"src.swiftkernel.dev/pkg/logutil"
	"src.swiftkernel.dev/pkg/lspclient"
	"src.swiftkernel.dev/pkg/toolchain"
)

var logger = logutil.GetLogger("[intel] ")

// DocumentName is the file name of the virtual document.
const DocumentName = "kernel.swift"

// Config configures a Session.
type Config struct {
	// Path to sourcekit-lsp. If empty, it is located with
	// toolchain.FindLanguageServer.
	ServerPath string
	// Path to the swift binary, used to locate the language server.
	SwiftPath string
	// Toolchain root passed to the language server as the SDK. If empty, it is
	// inferred from the server path.
	ToolchainRoot string
	// Directory of the virtual document and workspace root.
	Dir string
	// Environment of the server. Nil means the current environment.
	Env      []string
	Timeouts config.Timeouts
}

// Session is a code intelligence session.
type Session struct {
	client   *lspclient.Client
	uri      lsp.DocumentURI
	timeouts config.Timeouts

	// Guards the fields below. Held for the whole of Complete and Inspect so
	// that the temporary document is never observed by Commit.
	mu      sync.Mutex
	mirror  string
	version int

	diagMu sync.Mutex
	diags  []lsp.Diagnostic
}

// Open starts a language server and opens a session with it.
func Open(cfg Config) (*Session, error) {
	serverPath := cfg.ServerPath
	if serverPath == "" {
		p, err := toolchain.FindLanguageServer(cfg.SwiftPath)
		if err != nil {
			return nil, &lspclient.LaunchError{Path: "sourcekit-lsp", Err: err}
		}
		serverPath = p
	}
	environ := cfg.Env
	if environ == nil {
		environ = os.Environ()
	}
	// The server finds swiftc through PATH.
	environ = toolchain.WithPathPrefix(environ, filepath.Dir(serverPath))

	root := cfg.ToolchainRoot
	if root == "" {
		root = toolchain.InferRoot(serverPath)
	}
	var args []string
	if root != "" {
		args = []string{"-Xswiftc", "-sdk", "-Xswiftc", root}
	}
	client, err := lspclient.Start(lspclient.Command{
		Path: serverPath, Args: args, Env: environ, Dir: cfg.Dir})
	if err != nil {
		return nil, err
	}
	s, err := New(client, cfg)
	if err != nil {
		client.Stop()
		return nil, err
	}
	return s, nil
}

// New opens a session over an existing client: it performs the initialize
// handshake and opens the empty virtual document.
func New(client *lspclient.Client, cfg Config) (*Session, error) {
	s := &Session{
		client:   client,
		uri:      lspclient.FileURI(filepath.Join(cfg.Dir, DocumentName)),
		timeouts: cfg.Timeouts,
	}
	client.SetDiagnosticsHandler(s.onDiagnostics)
	if _, err := client.Initialize(cfg.Dir, cfg.Timeouts.Initialize); err != nil {
		return nil, err
	}
	s.version = 1
	err := client.Notify("textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI: s.uri, LanguageID: "swift", Version: s.version, Text: ""},
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("code intelligence session open", "uri", s.uri)
	return s, nil
}

// URI returns the URI of the virtual document.
func (s *Session) URI() lsp.DocumentURI { return s.uri }

// Text returns the text of the virtual document.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

// Commit appends evaluated source to the virtual document.
func (s *Session) Commit(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror += code + "\n"
	s.change(s.mirror)
}

// Reset clears the virtual document.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = ""
	s.change("")
	s.diagMu.Lock()
	s.diags = nil
	s.diagMu.Unlock()
}

// Must be called with s.mu held.
func (s *Session) change(text string) {
	s.version++
	err := s.client.Notify("textDocument/didChange", lsp.DidChangeTextDocumentParams{
		TextDocument: lsp.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: lsp.TextDocumentIdentifier{URI: s.uri},
			Version:                s.version,
		},
		ContentChanges: []lsp.TextDocumentContentChangeEvent{{Text: text}},
	})
	if err != nil {
		logger.Warnw("didChange failed", "err", err)
	}
}

// Calls f with the position of the cursor in the virtual document with code
// appended temporarily. Must be called with s.mu held.
func (s *Session) withCell(code string, cursor int, f func(lsp.TextDocumentPositionParams)) {
	byteIdx, _ := byteIdxFromRuneIdx(code, cursor)
	full := s.mirror + code
	s.change(full)
	defer s.change(s.mirror)
	f(lsp.TextDocumentPositionParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: s.uri},
		Position:     lspPositionFromIdx(full, len(s.mirror)+byteIdx),
	})
}

// Close stops the language server.
func (s *Session) Close() error {
	return s.client.Stop()
}

func (s *Session) onDiagnostics(p lsp.PublishDiagnosticsParams) {
	if p.URI != s.uri {
		return
	}
	s.diagMu.Lock()
	s.diags = p.Diagnostics
	s.diagMu.Unlock()
	if len(p.Diagnostics) > 0 {
		logger.Infow("received diagnostics", "count", len(p.Diagnostics))
	}
}

func unmarshalOrNil(raw json.RawMessage, v any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Warnw("malformed result", "err", err)
		return false
	}
	return true
}
