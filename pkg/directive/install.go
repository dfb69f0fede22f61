package directive

import (
	"fmt"
	"regexp"

	"github.com/google/shlex"
)

// InstallSpec is a package to install.
type InstallSpec struct {
	// A SwiftPM dependency descriptor, such as
	// .package(url: "https://github.com/x/y", from: "1.0.0").
	Spec string
	// Products to link.
	Products []string
}

// Install holds the install directives of a submission.
type Install struct {
	Packages             []InstallSpec
	SwiftPMFlags         []string
	ExtraIncludeCommands []string
	// Empty if not set. If set more than once, the last one wins.
	Location string
	// Shell commands from %system, in order.
	SystemCommands []string
}

// Requested reports whether a package build is needed.
func (in *Install) Requested() bool {
	return len(in.Packages) > 0 || len(in.SwiftPMFlags) > 0
}

// Empty reports whether there are no install directives at all.
func (in *Install) Empty() bool {
	return !in.Requested() && len(in.ExtraIncludeCommands) == 0 &&
		in.Location == "" && len(in.SystemCommands) == 0
}

var (
	systemLine       = regexp.MustCompile(`^\s*%system (.*)$`)
	locationLine     = regexp.MustCompile(`^\s*%install-location (.*)$`)
	swiftPMFlagsLine = regexp.MustCompile(`^\s*%install-swiftpm-flags (.*)$`)
	installLine      = regexp.MustCompile(`^\s*%install (.*)$`)
	extraIncludeLine = regexp.MustCompile(`^\s*%install-extra-include-command (.*)$`)
)

// Parses one line for install directives, and reports whether the line was
// consumed.
func (in *Install) parseLine(line string, lineno int, cwd string) (bool, error) {
	if m := systemLine.FindStringSubmatch(line); m != nil {
		in.SystemCommands = append(in.SystemCommands, m[1])
		return true, nil
	}
	if m := locationLine.FindStringSubmatch(line); m != nil {
		location, err := expandCwd(m[1], cwd)
		if err != nil {
			return false, &Error{lineno, err.Error()}
		}
		in.Location = location
		return true, nil
	}
	if m := swiftPMFlagsLine.FindStringSubmatch(line); m != nil {
		flags, err := shlex.Split(m[1])
		if err != nil {
			return false, errorf(lineno, "%%install-swiftpm-flags: %v", err)
		}
		in.SwiftPMFlags = append(in.SwiftPMFlags, flags...)
		return true, nil
	}
	if m := installLine.FindStringSubmatch(line); m != nil {
		words, err := shlex.Split(m[1])
		if err != nil || len(words) < 2 {
			return false, errorf(lineno, "%%install usage: SPEC PRODUCT [PRODUCT ...]")
		}
		spec, err := expandCwd(words[0], cwd)
		if err != nil {
			return false, &Error{lineno, err.Error()}
		}
		in.Packages = append(in.Packages, InstallSpec{spec, words[1:]})
		return true, nil
	}
	if m := extraIncludeLine.FindStringSubmatch(line); m != nil {
		in.ExtraIncludeCommands = append(in.ExtraIncludeCommands, m[1])
		return true, nil
	}
	return false, nil
}

var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|())`)

// Substitutes $cwd and ${cwd} in s. "$$" stands for a literal "$". Any other
// placeholder is an error.
func expandCwd(s, cwd string) (string, error) {
	var b []byte
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(s, -1) {
		b = append(b, s[last:m[0]]...)
		last = m[1]
		var name string
		switch {
		case m[2] != -1:
			b = append(b, '$')
			continue
		case m[4] != -1:
			name = s[m[4]:m[5]]
		case m[6] != -1:
			name = s[m[6]:m[7]]
		default:
			return "", fmt.Errorf("invalid placeholder at column %d", m[0]+1)
		}
		if name != "cwd" {
			return "", fmt.Errorf("invalid template argument %q", name)
		}
		b = append(b, cwd...)
	}
	return string(append(b, s[last:]...)), nil
}
