package repl

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule produces a remediation hint for an error message. Match reports
// whether the rule applies to the lowercased message; Hint builds the hint
// from the original message.
type Rule struct {
	Name  string
	Match func(lower string) bool
	Hint  func(msg string) []string
}

// RuleTable is an ordered list of rules. The first matching rule wins.
type RuleTable []Rule

// Hint returns the hint of the first rule matching msg, or "" if no rule
// matches or the matching rule has nothing to add.
func (t RuleTable) Hint(msg string) string {
	lower := strings.ToLower(msg)
	for _, r := range t {
		if r.Match(lower) {
			return strings.Join(r.Hint(msg), "\n")
		}
	}
	return ""
}

func containsAll(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if !strings.Contains(s, sub) {
				return false
			}
		}
		return true
	}
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func fixed(lines ...string) func(string) []string {
	return func(string) []string { return lines }
}

var (
	letConstantPattern = regexp.MustCompile(`'(\w+)' is a 'let' constant`)
	identifierPattern  = regexp.MustCompile(`identifier '(\w+)'`)
)

// Rules is the table used by EvalError.HelpfulMessage.
var Rules = RuleTable{
	{
		Name:  "let-constant",
		Match: containsAll("cannot assign to value:", "is a 'let' constant"),
		Hint: func(msg string) []string {
			var tip string
			if m := letConstantPattern.FindStringSubmatch(msg); m != nil {
				tip = fmt.Sprintf("💡 Tip: Change 'let %s' to 'var %s' to make it mutable", m[1], m[1])
			} else {
				tip = "💡 Tip: Use 'var' instead of 'let' to declare mutable variables"
			}
			return []string{tip,
				"📖 Learn more: https://docs.swift.org/swift-book/LanguageGuide/TheBasics.html#ID310"}
		},
	},
	{
		Name:  "unresolved-identifier",
		Match: containsAny("use of unresolved identifier", "use of undeclared identifier"),
		Hint: func(msg string) []string {
			m := identifierPattern.FindStringSubmatch(msg)
			if m == nil {
				return []string{"💡 Tip: Make sure the identifier is defined before using it"}
			}
			return []string{
				fmt.Sprintf("💡 Tip: Make sure '%s' is defined before using it", m[1]),
				"   • Check for typos in the variable name",
				"   • Ensure the variable was declared in a previous cell",
			}
		},
	},
	{
		Name:  "type-conversion",
		Match: containsAny("cannot convert value of type"),
		Hint: fixed(
			"💡 Tip: Check the types of your values",
			"   • You may need to convert between types explicitly",
			"   • Example: String(intValue) or Int(stringValue)"),
	},
	{
		Name:  "missing-return",
		Match: containsAny("missing return"),
		Hint: fixed(
			"💡 Tip: All code paths in this function must return a value",
			"   • Add a return statement to every branch (if/else, switch cases)",
			"   • Or use 'return' with a default value at the end"),
	},
	{
		Name: "optional-unwrap",
		Match: func(s string) bool {
			return strings.Contains(s, "value of optional type") &&
				containsAny("must be unwrapped", "not unwrapped")(s)
		},
		Hint: func(msg string) []string {
			// The compiler's own fix-its are better than a generic tip.
			if strings.Contains(msg, "coalesce using '??'") || strings.Contains(msg, "force-unwrap using '!'") {
				return nil
			}
			return []string{
				"💡 Tip: Optional values must be unwrapped before use",
				"   • Safe unwrapping: if let value = optional { ... }",
				"   • Guard: guard let value = optional else { return }",
				"   • Nil coalescing: optional ?? defaultValue",
				"   • Force unwrap (risky): optional! - only if you're certain it's not nil",
				"📖 Learn more: https://docs.swift.org/swift-book/LanguageGuide/TheBasics.html#ID330",
			}
		},
	},
	{
		Name:  "unexpected-nil",
		Match: containsAny("unexpectedly found nil"),
		Hint: fixed(
			"💡 Tip: An optional value was nil when it shouldn't be",
			"   • Use nil coalescing: value ?? defaultValue",
			"   • Or check for nil: if value != nil { ... }"),
	},
	{
		Name:  "non-function-call",
		Match: containsAny("cannot call value of non-function type"),
		Hint: fixed(
			"💡 Tip: You're trying to call something that isn't a function",
			"   • Check that you're using () on functions, not properties",
			"   • Make sure the function name is spelled correctly"),
	},
	{
		Name:  "consecutive-statements",
		Match: containsAny("consecutive statements on a line must be separated by"),
		Hint: fixed(
			"💡 Tip: Put each statement on its own line or separate with semicolons",
			"   • Each statement should be on a new line",
			"   • Or use semicolons: let x = 1; let y = 2"),
	},
	{
		Name:  "expected-expression",
		Match: containsAny("expected expression"),
		Hint: fixed(
			"💡 Tip: Swift expected a value or expression here",
			"   • Check for missing values after operators",
			"   • Make sure all parentheses and brackets are balanced"),
	},
	{
		Name:  "missing-argument",
		Match: containsAny("missing argument", "requires that"),
		Hint: fixed(
			"💡 Tip: This initializer or function needs more arguments",
			"   • Check the function signature to see what parameters are required",
			"   • Provide all required arguments or use default values"),
	},
}
