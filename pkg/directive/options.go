package directive

import (
	"fmt"
	"strings"
)

// An option of a cell directive.
type optionSpec struct {
	// Set to 0 for long-only.
	Short rune
	// Set to "" for short-only.
	Long   string
	HasArg bool
}

// A parsed option.
type option struct {
	Spec     *optionSpec
	Argument string
}

// Parses options in the style of GNU getopt_long. Short options can be
// chained (-qn5), arguments can follow a short option directly (-n5) or as
// the next word (-n 5), and long options take arguments as --name=value or
// --name value. Parsing stops after "--".
func parseOptions(args []string, specs []*optionSpec) ([]*option, []string, error) {
	var (
		opts    []*option
		nonOpts []string
		// Set when the last option still needs its argument.
		pending *option
		stopped bool
	)
	for _, arg := range args {
		switch {
		case pending != nil:
			pending.Argument = arg
			opts = append(opts, pending)
			pending = nil
		case stopped:
			nonOpts = append(nonOpts, arg)
		case arg == "--":
			stopped = true
		case strings.HasPrefix(arg, "--"):
			opt, needArg, err := parseLong(arg[2:], specs)
			if err != nil {
				return nil, nil, err
			}
			if needArg {
				pending = opt
			} else {
				opts = append(opts, opt)
			}
		case strings.HasPrefix(arg, "-") && arg != "-":
			newOpts, needArg, err := parseShort(arg[1:], specs)
			if err != nil {
				return nil, nil, err
			}
			if needArg {
				pending = newOpts[len(newOpts)-1]
				newOpts = newOpts[:len(newOpts)-1]
			}
			opts = append(opts, newOpts...)
		default:
			nonOpts = append(nonOpts, arg)
		}
	}
	if pending != nil {
		return nil, nil, fmt.Errorf("missing argument for %s", optionName(pending.Spec))
	}
	return opts, nonOpts, nil
}

func optionName(spec *optionSpec) string {
	if spec.Long != "" {
		return "--" + spec.Long
	}
	return "-" + string(spec.Short)
}

func parseShort(s string, specs []*optionSpec) ([]*option, bool, error) {
	var opts []*option
	for i, r := range s {
		spec := findShort(r, specs)
		if spec == nil {
			return nil, false, fmt.Errorf("unknown option -%c", r)
		}
		if !spec.HasArg {
			opts = append(opts, &option{Spec: spec})
			continue
		}
		opt := &option{Spec: spec, Argument: s[i+len(string(r)):]}
		return append(opts, opt), opt.Argument == "", nil
	}
	return opts, false, nil
}

func findShort(r rune, specs []*optionSpec) *optionSpec {
	for _, spec := range specs {
		if r == spec.Short {
			return spec
		}
	}
	return nil
}

func parseLong(s string, specs []*optionSpec) (*option, bool, error) {
	name, arg, hasEq := strings.Cut(s, "=")
	for _, spec := range specs {
		if name != spec.Long {
			continue
		}
		switch {
		case hasEq && !spec.HasArg:
			return nil, false, fmt.Errorf("option --%s takes no argument", name)
		case hasEq:
			return &option{Spec: spec, Argument: arg}, false, nil
		default:
			return &option{Spec: spec}, spec.HasArg, nil
		}
	}
	return nil, false, fmt.Errorf("unknown option --%s", name)
}
