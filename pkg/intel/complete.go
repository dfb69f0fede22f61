package intel

import (
	"bytes"
	"regexp"
	"unicode/utf8"

	lsp "github.com/sourcegraph/go-lsp"
)

// Completion is the result of a completion query. Offsets are in runes.
type Completion struct {
	Matches     []string
	CursorStart int
	CursorEnd   int
}

var identPrefix = regexp.MustCompile(`[\w.]+$`)

// Complete returns completions at the rune offset cursor of code, a cell
// that has not been evaluated. The cursor is clamped to [0, len(code)].
// Failures are logged and yield no matches.
func (s *Session) Complete(code string, cursor int) Completion {
	byteIdx, cursor := byteIdxFromRuneIdx(code, cursor)
	result := Completion{CursorStart: cursor, CursorEnd: cursor}

	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	var err error
	s.withCell(code, cursor, func(pos lsp.TextDocumentPositionParams) {
		raw, err = s.client.Request("textDocument/completion",
			lsp.CompletionParams{TextDocumentPositionParams: pos}, s.timeouts.Completion)
	})
	if err != nil {
		logger.Warnw("completion failed", "err", err)
		return result
	}
	result.Matches = completionLabels(raw)
	if prefix := identPrefix.FindString(code[:byteIdx]); prefix != "" {
		result.CursorStart = cursor - utf8.RuneCountInString(prefix)
	}
	logger.Debugw("completion", "cursor", cursor, "matches", len(result.Matches))
	return result
}

// The result is either a CompletionList or a list of CompletionItem.
func completionLabels(raw []byte) []string {
	var items []lsp.CompletionItem
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if !unmarshalOrNil(trimmed, &items) {
			return nil
		}
	} else {
		var list lsp.CompletionList
		if !unmarshalOrNil(trimmed, &list) {
			return nil
		}
		items = list.Items
	}
	var labels []string
	for _, item := range items {
		if item.Label != "" {
			labels = append(labels, item.Label)
		}
	}
	return labels
}
