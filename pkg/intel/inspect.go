package intel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"
)

// Inspect returns the hover text at the rune offset cursor of code, a cell
// that has not been evaluated, in Markdown. The second return value is false
// if there is nothing to show.
func (s *Session) Inspect(code string, cursor int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var hoverRaw, defRaw json.RawMessage
	var err error
	s.withCell(code, cursor, func(pos lsp.TextDocumentPositionParams) {
		hoverRaw, err = s.client.Request("textDocument/hover", pos, s.timeouts.Hover)
		if err != nil {
			return
		}
		var defErr error
		defRaw, defErr = s.client.Request("textDocument/definition", pos, s.timeouts.Definition)
		if defErr != nil {
			logger.Debugw("definition failed", "err", defErr)
		}
	})
	if err != nil {
		logger.Warnw("hover failed", "err", err)
		return "", false
	}

	text := hoverText(hoverRaw)
	if text == "" {
		return "", false
	}
	if loc, ok := firstLocation(defRaw); ok {
		text += fmt.Sprintf("\n\n*Defined at line %d*", loc.Range.Start.Line+1)
	}
	return text, true
}

// Hover contents may be a string, a MarkedString, a list of either, or a
// MarkupContent object. lsp.Hover only decodes lists, so the contents are
// decoded here.
func hoverText(raw json.RawMessage) string {
	var hover struct {
		Contents json.RawMessage `json:"contents"`
	}
	if !unmarshalOrNil(raw, &hover) {
		return ""
	}
	contents := bytes.TrimSpace(hover.Contents)
	if len(contents) == 0 {
		return ""
	}
	if contents[0] != '[' {
		return markedText(contents)
	}
	var parts []json.RawMessage
	if json.Unmarshal(contents, &parts) != nil {
		return ""
	}
	var texts []string
	for _, part := range parts {
		if t := markedText(part); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}

func markedText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Kind     string  `json:"kind"`
		Language *string `json:"language"`
		Value    string  `json:"value"`
	}
	if json.Unmarshal(raw, &obj) != nil {
		return ""
	}
	if obj.Language != nil && obj.Kind == "" {
		return fmt.Sprintf("```%s\n%s\n```", *obj.Language, obj.Value)
	}
	return obj.Value
}

// The definition result is a Location, a list of them, or null.
func firstLocation(raw json.RawMessage) (lsp.Location, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var locs []lsp.Location
		if !unmarshalOrNil(trimmed, &locs) || len(locs) == 0 {
			return lsp.Location{}, false
		}
		return locs[0], true
	}
	var loc lsp.Location
	if !unmarshalOrNil(trimmed, &loc) || loc.URI == "" {
		return lsp.Location{}, false
	}
	return loc, true
}
