package directive

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"
)

// Kind is the kind of a cell directive.
type Kind int

// Cell directive kinds.
const (
	Who Kind = iota
	Reset
	Timeit
	Help
	Lsmagic
	Env
	SwiftVersion
	Load
	Save
	History
)

var kindNames = [...]string{
	"%who", "%reset", "%timeit", "%help", "%lsmagic", "%env",
	"%swift-version", "%load", "%save", "%history"}

func (k Kind) String() string {
	if 0 <= k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "%unknown"
}

// Cell is a directive that consumes a whole submission.
type Cell struct {
	Kind Kind
	// Argument of %timeit, %env, %load and %save.
	Arg string
	// %reset -q.
	Quiet bool
	// %history -n.
	N int
}

// DefaultHistoryEntries is the number of entries %history shows by default.
const DefaultHistoryEntries = 10

var cellKinds = map[string]Kind{
	"%who":           Who,
	"%reset":         Reset,
	"%timeit":        Timeit,
	"%help":          Help,
	"%lsmagic":       Lsmagic,
	"%env":           Env,
	"%swift-version": SwiftVersion,
	"%swift_version": SwiftVersion,
	"%load":          Load,
	"%save":          Save,
	"%history":       History,
}

var (
	resetOptions   = []*optionSpec{{Short: 'q', Long: "quiet"}}
	historyOptions = []*optionSpec{{Short: 'n', HasArg: true}}
)

// Parses a cell directive from code with surrounding space removed. Returns
// nil if code is not a cell directive.
func parseCell(code string) (*Cell, error) {
	name, rest := code, ""
	if i := strings.IndexFunc(code, unicode.IsSpace); i != -1 {
		name, rest = code[:i], strings.TrimSpace(code[i:])
	}
	kind, ok := cellKinds[name]
	if !ok {
		return nil, nil
	}
	cell := &Cell{Kind: kind}
	switch kind {
	case Who, Help, Lsmagic, SwiftVersion:
		if rest != "" {
			return nil, errorf(0, "%s takes no arguments", name)
		}
	case Timeit, Load, Save:
		if rest == "" {
			return nil, errorf(0, "usage: %s %s", name, usageArg[kind])
		}
		cell.Arg = rest
	case Env:
		cell.Arg = rest
	case Reset:
		opts, err := parseCellOptions(name, rest, resetOptions)
		if err != nil {
			return nil, err
		}
		cell.Quiet = len(opts) > 0
	case History:
		opts, err := parseCellOptions(name, rest, historyOptions)
		if err != nil {
			return nil, err
		}
		cell.N = DefaultHistoryEntries
		for _, opt := range opts {
			n, err := strconv.Atoi(opt.Argument)
			if err != nil || n <= 0 {
				return nil, errorf(0, "%s: -n must be a positive integer, got %q", name, opt.Argument)
			}
			cell.N = n
		}
	}
	return cell, nil
}

var usageArg = map[Kind]string{Timeit: "CODE", Load: "FILE", Save: "FILE"}

func parseCellOptions(name, rest string, specs []*optionSpec) ([]*option, error) {
	words, err := shlex.Split(rest)
	if err != nil {
		return nil, errorf(0, "%s: %v", name, err)
	}
	opts, args, err := parseOptions(words, specs)
	if err != nil {
		return nil, errorf(0, "%s: %v", name, err)
	}
	if len(args) > 0 {
		return nil, errorf(0, "%s: unexpected argument %q", name, args[0])
	}
	return opts, nil
}
