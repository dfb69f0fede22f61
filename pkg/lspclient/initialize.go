package lspclient

import (
	"os"
	"time"

	lsp "github.com/sourcegraph/go-lsp"
)

// The client capabilities sent with initialize. lsp.ClientCapabilities has no
// field for publishDiagnostics, so the capabilities are spelled out here.
type initializeParams struct {
	ProcessID    int                `json:"processId"`
	RootURI      lsp.DocumentURI    `json:"rootUri"`
	Capabilities clientCapabilities `json:"capabilities"`
}

type clientCapabilities struct {
	TextDocument textDocumentCapabilities `json:"textDocument"`
}

type textDocumentCapabilities struct {
	Completion struct {
		CompletionItem struct {
			SnippetSupport bool `json:"snippetSupport"`
		} `json:"completionItem"`
	} `json:"completion"`
	Hover struct {
		ContentFormat []string `json:"contentFormat"`
	} `json:"hover"`
	PublishDiagnostics struct {
		RelatedInformation bool `json:"relatedInformation"`
		TagSupport         struct {
			ValueSet []int `json:"valueSet"`
		} `json:"tagSupport"`
		VersionSupport bool `json:"versionSupport"`
	} `json:"publishDiagnostics"`
	Synchronization struct {
		DynamicRegistration bool `json:"dynamicRegistration"`
		WillSave            bool `json:"willSave"`
		WillSaveWaitUntil   bool `json:"willSaveWaitUntil"`
		DidSave             bool `json:"didSave"`
	} `json:"synchronization"`
}

func defaultCapabilities() clientCapabilities {
	var caps clientCapabilities
	td := &caps.TextDocument
	td.Hover.ContentFormat = []string{"markdown", "plaintext"}
	td.PublishDiagnostics.RelatedInformation = true
	// Unnecessary (1) and deprecated (2).
	td.PublishDiagnostics.TagSupport.ValueSet = []int{1, 2}
	td.PublishDiagnostics.VersionSupport = true
	return caps
}

// Initialize performs the initialize handshake, using rootDir as the
// workspace root, and sends the initialized notification.
func (c *Client) Initialize(rootDir string, timeout time.Duration) (*lsp.InitializeResult, error) {
	params := initializeParams{
		ProcessID:    os.Getpid(),
		RootURI:      FileURI(rootDir),
		Capabilities: defaultCapabilities(),
	}
	var result lsp.InitializeResult
	if err := c.Call("initialize", params, &result, timeout); err != nil {
		return nil, err
	}
	if err := c.Notify("initialized", struct{}{}); err != nil {
		return nil, err
	}
	return &result, nil
}

// FileURI returns the file:// URI of an absolute path.
func FileURI(path string) lsp.DocumentURI {
	return lsp.DocumentURI("file://" + path)
}
