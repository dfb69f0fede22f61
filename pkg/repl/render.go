package repl

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// Kind classifies a value for rendering.
type Kind int

// Kinds of values.
const (
	KindScalar Kind = iota
	KindArray
	KindDictionary
	KindStruct
)

var kindNames = [...]string{"scalar", "array", "dictionary", "struct"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Limits of table rendering.
const (
	maxCollectionRows = 100
	maxStructFields   = 50
)

// Display is the rendered form of a value.
type Display struct {
	Kind Kind
	// Text is the value without debugger decoration, such as "42" for
	// "(Int) $R0 = 42".
	Text string
	// Table is a plain text table of the children. It is empty for scalars
	// and for collections too large to tabulate.
	Table string
}

type renderer func(v Value) string

var renderers = map[Kind]renderer{
	KindArray:      renderArray,
	KindDictionary: renderDictionary,
	KindStruct:     renderStruct,
}

// Render renders a value.
func Render(v Value) Display {
	kind := Classify(v)
	d := Display{Kind: kind, Text: FormattedValue(v)}
	if r, ok := renderers[kind]; ok {
		d.Table = r(v)
	}
	return d
}

// Classify determines the kind of a value from its type name and number of
// children.
func Classify(v Value) Kind {
	t := v.TypeName()
	switch {
	case isDictionaryType(t):
		return KindDictionary
	case isArrayType(t):
		return KindArray
	case v.ChildCount() > 1 && v.ChildCount() <= maxStructFields:
		return KindStruct
	default:
		return KindScalar
	}
}

func isDictionaryType(t string) bool {
	if strings.Contains(t, "Dictionary<") {
		return true
	}
	return isBracketed(t) && topLevelColon(t[1:len(t)-1])
}

func isArrayType(t string) bool {
	return strings.Contains(t, "Array<") || strings.Contains(t, "ArraySlice<") || isBracketed(t)
}

func isBracketed(t string) bool {
	return len(t) >= 2 && t[0] == '[' && t[len(t)-1] == ']'
}

// Reports whether s has a colon outside brackets, angle brackets and
// parentheses, as in "String: [Int]".
func topLevelColon(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '[', '<', '(':
			depth++
		case ']', '>', ')':
			depth--
		case ':':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// FormattedValue returns the value part of the description, falling back to
// the summary, the scalar value and the full description in that order.
func FormattedValue(v Value) string {
	desc := v.PlainDescription()
	if _, after, ok := strings.Cut(desc, "="); ok {
		return strings.TrimSpace(after)
	}
	if s := v.Summary(); s != "" {
		return strings.Trim(s, `"`)
	}
	if s := v.ScalarValue(); s != "" {
		return s
	}
	return desc
}

func childText(v Value, missing string) string {
	s := v.ScalarValue()
	if s == "" {
		s = v.Summary()
	}
	if s == "" {
		return missing
	}
	return strings.Trim(s, `"`)
}

func renderArray(v Value) string {
	n := v.ChildCount()
	if n == 0 {
		return "[]"
	}
	if n > maxCollectionRows {
		return ""
	}
	return table(fmt.Sprintf("Array (%d elements)", n), []string{"Index", "Value"}, n,
		func(i int) []string {
			return []string{fmt.Sprint(i), childText(v.Child(i), "nil")}
		})
}

func renderDictionary(v Value) string {
	n := v.ChildCount()
	if n == 0 {
		return "[:]"
	}
	if n > maxCollectionRows {
		return ""
	}
	return table(fmt.Sprintf("Dictionary (%d entries)", n), []string{"Key", "Value"}, n,
		func(i int) []string {
			entry := v.Child(i)
			key, value := memberNamed(entry, "key"), memberNamed(entry, "value")
			if key == nil || value == nil {
				return []string{fmt.Sprint(i), childText(entry, "nil")}
			}
			return []string{childText(key, "nil"), childText(value, "nil")}
		})
}

func renderStruct(v Value) string {
	n := v.ChildCount()
	title := v.TypeName()
	if i := strings.LastIndexByte(title, '.'); i >= 0 {
		title = title[i+1:]
	}
	if title == "" {
		title = "Object"
	}
	return table(title, []string{"Property", "Type", "Value"}, n,
		func(i int) []string {
			child := v.Child(i)
			name := child.Name()
			if name == "" {
				name = fmt.Sprintf("[%d]", i)
			}
			return []string{name, child.TypeName(), childText(child, "<nil>")}
		})
}

func memberNamed(v Value, name string) Value {
	for i := 0; i < v.ChildCount(); i++ {
		if c := v.Child(i); c.Name() == name {
			return c
		}
	}
	return nil
}

func table(title string, header []string, rows int, row func(int) []string) string {
	var sb strings.Builder
	sb.WriteString(title + "\n")
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i := 0; i < rows; i++ {
		fmt.Fprintln(w, strings.Join(row(i), "\t"))
	}
	w.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
