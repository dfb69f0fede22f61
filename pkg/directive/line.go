package directive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var (
	includeLine           = regexp.MustCompile(`^\s*%include (.*)$`)
	includeName           = regexp.MustCompile(`^\s*"([^"]+)"\s*$`)
	enableCompletionLine  = regexp.MustCompile(`^\s*%(?:enableCompletion|enable_completion)\s*$`)
	disableCompletionLine = regexp.MustCompile(`^\s*%(?:disableCompletion|disable_completion)\s*$`)
)

// Parses one line for line directives, and returns what replaces it.
func (sub *Submission) parseLine(line string, lineno int, opts Options) (string, error) {
	if m := includeLine.FindStringSubmatch(line); m != nil {
		return include(m[1], lineno, opts)
	}
	if enableCompletionLine.MatchString(line) {
		sub.CompletionToggles = append(sub.CompletionToggles, true)
		return "", nil
	}
	if disableCompletionLine.MatchString(line) {
		sub.CompletionToggles = append(sub.CompletionToggles, false)
		return "", nil
	}
	return line, nil
}

// Returns the content of an included file, surrounded by #sourceLocation
// directives. The directive after the content makes the line after the
// %include line keep its line number.
func include(arg string, lineno int, opts Options) (string, error) {
	m := includeName.FindStringSubmatch(arg)
	if m == nil {
		return "", errorf(lineno, "%%include must be followed by a name in quotes")
	}
	name := m[1]
	for _, dir := range opts.IncludePaths {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		return fmt.Sprintf("#sourceLocation(file: \"%s\", line: 1)\n%s\n#sourceLocation(file: \"%s\", line: %d)\n",
			name, content, opts.CellFile, lineno), nil
	}
	return "", errorf(lineno, "could not find %q; searched %q", name, opts.IncludePaths)
}
