package intel

import (
	"fmt"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"
)

// Diagnostics returns the latest batch of diagnostics for the virtual
// document.
func (s *Session) Diagnostics() []lsp.Diagnostic {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return append([]lsp.Diagnostic(nil), s.diags...)
}

// FormatDiagnostics renders the latest diagnostics, one per line. It returns
// "" if there are none.
func (s *Session) FormatDiagnostics() string {
	return FormatDiagnostics(s.Diagnostics())
}

// FormatDiagnostics renders diagnostics as "[Severity] Line L, col C: message",
// with 1-based lines.
func FormatDiagnostics(diags []lsp.Diagnostic) string {
	var sb strings.Builder
	for i, d := range diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%s] Line %d, col %d: %s",
			severityName(d.Severity), d.Range.Start.Line+1, d.Range.Start.Character, d.Message)
	}
	return sb.String()
}

func severityName(s lsp.DiagnosticSeverity) string {
	switch s {
	case lsp.Error:
		return "Error"
	case lsp.Warning:
		return "Warning"
	case lsp.Information:
		return "Info"
	case lsp.Hint:
		return "Hint"
	default:
		return "Unknown"
	}
}
