package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"src.swiftkernel.dev/pkg/directive"
	"src.swiftkernel.dev/pkg/intel"
	"src.swiftkernel.dev/pkg/store"
	"src.swiftkernel.dev/pkg/toolchain"
)

var rule = strings.Repeat("━", 60) + "\n"

// Handles a cell directive. It returns the code to evaluate, or an outcome
// that ends the submission.
func (e *execution) cellDirective(c *directive.Cell, code string) (string, *Outcome) {
	switch c.Kind {
	case directive.Who:
		e.who()
	case directive.Reset:
		if !c.Quiet {
			e.stdout("🔄 Restarting Swift kernel...\n")
		}
		if err := e.k.reset(); err != nil {
			logger.Warnw("error closing REPL", "err", err)
		}
		if !c.Quiet {
			e.stdout("✅ Kernel reset. All variables cleared.\n")
		}
	case directive.Timeit:
		return code, nil
	case directive.Help:
		e.stdout(directive.HelpText)
	case directive.Lsmagic:
		e.stdout(directive.MagicList)
	case directive.Env:
		e.env(c.Arg)
	case directive.SwiftVersion:
		e.swiftVersion()
	case directive.Load:
		return e.load(c.Arg), nil
	case directive.Save:
		e.save(c.Arg)
	case directive.History:
		e.history(c.N)
	}
	return "", nil
}

func (e *execution) who() {
	if e.k.controller() == nil {
		e.stdout("Swift not initialized yet. Run some code first.\n")
		return
	}
	e.stdout("Interactive variable listing:\n" +
		"  Note: Swift REPL doesn't provide direct variable introspection.\n" +
		"  Variables defined: Check your code history above\n" +
		"\n" +
		"💡 Tip: Use %help to see all available magic commands\n")
}

var envAssignment = regexp.MustCompile(`^(\w+)=(.*)$`)

const maxEnvValue = 50

func (e *execution) env(arg string) {
	if arg == "" {
		environ := os.Environ()
		sort.Strings(environ)
		var sb strings.Builder
		sb.WriteString("Environment Variables:\n" + rule)
		for _, kv := range environ {
			key, value, _ := strings.Cut(kv, "=")
			fmt.Fprintf(&sb, "  %s=%s\n", key, truncate(value, maxEnvValue))
		}
		sb.WriteString(rule)
		fmt.Fprintf(&sb, "Total: %d variables\n", len(environ))
		e.stdout(sb.String())
		return
	}
	if strings.Contains(arg, "=") {
		m := envAssignment.FindStringSubmatch(arg)
		if m == nil {
			e.stderr("Invalid format. Use: %env VAR=VALUE\n")
			return
		}
		if err := os.Setenv(m[1], m[2]); err != nil {
			e.stderr(fmt.Sprintf("Cannot set %s: %v\n", m[1], err))
			return
		}
		e.stdout(fmt.Sprintf("✅ Set %s=%s\n", m[1], m[2]))
		return
	}
	if value, ok := os.LookupEnv(arg); ok {
		e.stdout(fmt.Sprintf("%s=%s\n", arg, value))
	} else {
		e.stderr(fmt.Sprintf("Environment variable '%s' not found\n", arg))
	}
}

// Truncates s to at most n characters, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func (e *execution) swiftVersion() {
	k := e.k
	var sb strings.Builder
	sb.WriteString("Swift Toolchain Information\n" + rule + "\n")
	if k.swiftPath == "" {
		sb.WriteString("⚠️  Swift not found in PATH\n\n")
	} else {
		fmt.Fprintf(&sb, "📍 Swift binary: %s\n\n", k.swiftPath)
		if out, err := toolchain.Version(e.ctx, k.swiftPath); err == nil {
			sb.WriteString("📋 Version:\n")
			for _, line := range strings.Split(out, "\n") {
				fmt.Fprintf(&sb, "   %s\n", line)
			}
			sb.WriteString("\n")
		} else {
			fmt.Fprintf(&sb, "⚠️  Could not get version: %v\n\n", err)
		}
		if info, err := toolchain.QueryTargetInfo(e.ctx, k.swiftPath); err == nil {
			sb.WriteString("🎯 Target:\n")
			fmt.Fprintf(&sb, "   Triple: %s\n", orUnknown(info.Target.Triple))
			fmt.Fprintf(&sb, "   Module Triple: %s\n", orUnknown(info.Target.ModuleTriple))
			if paths := info.Paths.RuntimeLibraryPaths; len(paths) > 0 {
				fmt.Fprintf(&sb, "   Runtime Path: %s\n", paths[0])
			}
		}
	}

	debugger := "unknown"
	if ctrl := k.controller(); ctrl != nil {
		debugger = ctrl.DebuggerVersion()
	}
	fmt.Fprintf(&sb, "\n🔧 LLDB:\n   Version: %s\n", debugger)

	sb.WriteString("\n🔌 Kernel Environment:\n")
	fmt.Fprintf(&sb, "   SWIFT_BUILD_PATH: %s\n", orNotSet(k.cfg.SwiftBuildPath))
	fmt.Fprintf(&sb, "   SWIFT_PACKAGE_PATH: %s\n", orNotSet(k.cfg.SwiftPackagePath))
	sb.WriteString("\n" + rule)
	e.stdout(sb.String())
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Returns the content of a file to evaluate, or "" if it cannot be read.
func (e *execution) load(path string) string {
	path = expandHome(path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		e.stderr(fmt.Sprintf("File not found: %s\n", path))
		return ""
	}
	if !strings.HasSuffix(path, ".swift") {
		e.stdout(fmt.Sprintf("⚠️  Warning: %s doesn't have .swift extension\n", path))
	}
	if err != nil {
		e.stderr(fmt.Sprintf("Error loading file: %v\n", err))
		return ""
	}
	content := string(data)
	e.stdout(fmt.Sprintf("📂 Loaded %s (%d chars)\n", path, utf8.RuneCountInString(content)))
	return content
}

// Returns the cells recorded by this kernel, at most n of them if n > 0, and
// the total number of such cells. The Seq field of each cell is renumbered to
// start from 1 for this kernel.
func (k *Kernel) sessionCells(n int) ([]store.Cell, int, error) {
	count, err := k.store.CellCount()
	if err != nil {
		return nil, 0, err
	}
	total := count - k.historyStart
	from := k.historyStart + 1
	if n > 0 && total > n {
		from = count - n + 1
	}
	cells, err := k.store.Cells(from, count+1)
	if err != nil {
		return nil, 0, err
	}
	for i := range cells {
		cells[i].Seq -= k.historyStart
	}
	return cells, total, nil
}

func (e *execution) save(path string) {
	path = expandHome(path)
	if !strings.HasSuffix(path, ".swift") {
		path += ".swift"
	}
	cells, _, err := e.k.sessionCells(0)
	if err != nil {
		e.stderr(fmt.Sprintf("Error reading history: %v\n", err))
		return
	}
	if len(cells) == 0 {
		e.stderr("No execution history to save.\n")
		return
	}
	var sb strings.Builder
	sb.WriteString("// Swift Jupyter Session Export\n")
	fmt.Fprintf(&sb, "// Saved at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "// Cells: %d\n\n", len(cells))
	for i, cell := range cells {
		fmt.Fprintf(&sb, "// === Cell %d ===\n", i+1)
		sb.WriteString(cell.Code)
		if !strings.HasSuffix(cell.Code, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		e.stderr(fmt.Sprintf("Error saving file: %v\n", err))
		return
	}
	e.stdout(fmt.Sprintf("💾 Saved %d cells to %s\n", len(cells), path))
}

const maxPreview = 60

func (e *execution) history(n int) {
	cells, total, err := e.k.sessionCells(n)
	if err != nil {
		e.stderr(fmt.Sprintf("Error reading history: %v\n", err))
		return
	}
	if len(cells) == 0 {
		e.stdout("No execution history yet.\n")
		return
	}
	var sb strings.Builder
	sb.WriteString("Execution History\n" + rule + "\n")
	for _, cell := range cells {
		preview := truncate(strings.TrimSpace(cell.Code), maxPreview)
		preview = strings.ReplaceAll(preview, "\n", "↵ ")
		fmt.Fprintf(&sb, "[%d] %s\n", cell.Seq, preview)
	}
	sb.WriteString("\n" + rule)
	fmt.Fprintf(&sb, "Showing %d of %d entries\n", len(cells), total)
	sb.WriteString("Use %history -n N to show more entries\n")
	e.stdout(sb.String())
}

var directivePrefix = regexp.MustCompile(`^\s*%[\w-]*$`)

// Completes directive names when the cursor ends a line that only has a
// directive name so far.
func completeDirective(code string, cursor int) (intel.Completion, bool) {
	runes := []rune(code)
	cursor = max(0, min(cursor, len(runes)))
	before := string(runes[:cursor])
	lineStart := strings.LastIndexByte(before, '\n') + 1
	line := before[lineStart:]
	if !directivePrefix.MatchString(line) {
		return intel.Completion{}, false
	}
	word := strings.TrimLeft(line, " \t")
	var matches []string
	for _, name := range directive.Names() {
		if strings.HasPrefix(name, word) {
			matches = append(matches, name)
		}
	}
	start := cursor - utf8.RuneCountInString(word)
	return intel.Completion{Matches: matches, CursorStart: start, CursorEnd: cursor}, true
}
