package repl

// Value is a value produced by an evaluation, as exposed by the debugger.
type Value interface {
	// TypeName returns the name of the value's type, such as "Array<Int>".
	TypeName() string
	// Name returns the variable or member name, such as "$R0" or "x".
	Name() string
	ChildCount() int
	// Child returns the i-th child, 0 <= i < ChildCount().
	Child(i int) Value
	// PlainDescription returns the debugger's description, such as
	// "(Int) $R0 = 42".
	PlainDescription() string
	// Summary returns the debugger's summary, such as "\"hello\"", or "".
	Summary() string
	// ScalarValue returns the value of a scalar, such as "42", or "".
	ScalarValue() string
}

// ValueNode is a Value held in memory. It is the form in which values cross
// the debugger host boundary.
type ValueNode struct {
	Type        string       `json:"type"`
	VarName     string       `json:"name"`
	Description string       `json:"description"`
	SummaryText string       `json:"summary,omitempty"`
	Scalar      string       `json:"value,omitempty"`
	Children    []*ValueNode `json:"children,omitempty"`
	// Number of children, which may exceed len(Children) when the host
	// truncates them.
	NumChildren int `json:"numChildren"`
}

var _ Value = (*ValueNode)(nil)

func (v *ValueNode) TypeName() string         { return v.Type }
func (v *ValueNode) Name() string             { return v.VarName }
func (v *ValueNode) PlainDescription() string { return v.Description }
func (v *ValueNode) Summary() string          { return v.SummaryText }
func (v *ValueNode) ScalarValue() string      { return v.Scalar }

func (v *ValueNode) ChildCount() int {
	if v.NumChildren > len(v.Children) {
		return v.NumChildren
	}
	return len(v.Children)
}

// Child returns an empty node for children the host did not send.
func (v *ValueNode) Child(i int) Value {
	if i < len(v.Children) {
		return v.Children[i]
	}
	return &ValueNode{}
}
