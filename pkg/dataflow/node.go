package dataflow

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a dataflow tree node. A nil Node means "absent": in a Branch arm
// it means the destination keeps its previous value.
type Node interface {
	implDFNode()
	// String returns the dump form, which is also the node's identity
	String() string
	// ToCode renders the node as a Verilog expression
	ToCode() string
}

// Terminal references a term by its scope-qualified name
type Terminal struct {
	Name ScopeChain
}

// IntConst is an integer literal in source form
type IntConst struct {
	Literal string
}

// FloatConst is a real literal in source form
type FloatConst struct {
	Literal string
}

// StringConst is a string literal
type StringConst struct {
	Value string
}

// Undefined is a vector of unknown value; Width 0 means unknown width
type Undefined struct {
	Width int
}

// HighImpedance is a tri-stated vector
type HighImpedance struct {
	Width int
}

// Operator applies Op to one or two operands
type Operator struct {
	Op       Op
	Operands []Node
}

// Branch selects True when Cond holds, else False; nil arms hold the old value
type Branch struct {
	Cond  Node
	True  Node
	False Node
}

// Concat is a bit concatenation, most significant part first
type Concat struct {
	Nodes []Node
}

// Partselect extracts Var[MSB:LSB]
type Partselect struct {
	Var Node
	MSB Node
	LSB Node
}

// Pointer is array element or single bit access Var[Ptr]
type Pointer struct {
	Var Node
	Ptr Node
}

// Syscall is a system function call such as $signed
type Syscall struct {
	Name string // without the leading '$'
	Args []Node
}

// Delay wraps a value assigned after a #delay
type Delay struct {
	Inner Node
}

func (Terminal) implDFNode()      {}
func (IntConst) implDFNode()      {}
func (FloatConst) implDFNode()    {}
func (StringConst) implDFNode()   {}
func (EvalValue) implDFNode()     {}
func (Undefined) implDFNode()     {}
func (HighImpedance) implDFNode() {}
func (Operator) implDFNode()      {}
func (Branch) implDFNode()        {}
func (Concat) implDFNode()        {}
func (Partselect) implDFNode()    {}
func (Pointer) implDFNode()       {}
func (Syscall) implDFNode()       {}
func (Delay) implDFNode()         {}

// Key returns the dump form of n, "None" for an absent node
func Key(n Node) string {
	if n == nil {
		return "None"
	}
	return n.String()
}

// Equal compares two nodes by value
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Code renders n as Verilog, "'bx" for an absent node
func Code(n Node) string {
	if n == nil {
		return "'bx"
	}
	return n.ToCode()
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = Key(n)
	}
	return strings.Join(parts, ",")
}

func joinCode(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = Code(n)
	}
	return strings.Join(parts, ", ")
}

func (t Terminal) String() string      { return "(Terminal " + t.Name.String() + ")" }
func (c IntConst) String() string      { return "(IntConst " + c.Literal + ")" }
func (c FloatConst) String() string    { return "(FloatConst " + c.Literal + ")" }
func (c StringConst) String() string   { return "(StringConst " + strconv.Quote(c.Value) + ")" }
func (u Undefined) String() string     { return widthDump("Undefined", u.Width) }
func (h HighImpedance) String() string { return widthDump("HighImpedance", h.Width) }

func widthDump(kind string, width int) string {
	if width == 0 {
		return "(" + kind + ")"
	}
	return fmt.Sprintf("(%s width:%d)", kind, width)
}

func (o Operator) String() string {
	return fmt.Sprintf("(Operator %s Next:%s)", o.Op, joinNodes(o.Operands))
}

func (b Branch) String() string {
	return fmt.Sprintf("(Branch Cond:%s True:%s False:%s)", Key(b.Cond), Key(b.True), Key(b.False))
}

func (c Concat) String() string {
	return "(Concat Next:" + joinNodes(c.Nodes) + ")"
}

func (p Partselect) String() string {
	return fmt.Sprintf("(Partselect Var:%s MSB:%s LSB:%s)", Key(p.Var), Key(p.MSB), Key(p.LSB))
}

func (p Pointer) String() string {
	return fmt.Sprintf("(Pointer Var:%s PTR:%s)", Key(p.Var), Key(p.Ptr))
}

func (s Syscall) String() string {
	return fmt.Sprintf("(SystemCall %s Next:%s)", s.Name, joinNodes(s.Args))
}

func (d Delay) String() string {
	return "(Delay " + Key(d.Inner) + ")"
}

func (t Terminal) ToCode() string    { return t.Name.Flat() }
func (c IntConst) ToCode() string    { return c.Literal }
func (c FloatConst) ToCode() string  { return c.Literal }
func (c StringConst) ToCode() string { return strconv.Quote(c.Value) }

func (u Undefined) ToCode() string {
	if u.Width == 0 {
		return "'bx"
	}
	return fmt.Sprintf("%d'bx", u.Width)
}

func (h HighImpedance) ToCode() string {
	if h.Width == 0 {
		return "'bz"
	}
	return fmt.Sprintf("%d'bz", h.Width)
}

func (o Operator) ToCode() string {
	if len(o.Operands) == 1 {
		return o.Op.Symbol() + Code(o.Operands[0])
	}
	parts := make([]string, len(o.Operands))
	for i, n := range o.Operands {
		parts[i] = Code(n)
	}
	return "(" + strings.Join(parts, " "+o.Op.Symbol()+" ") + ")"
}

func (b Branch) ToCode() string {
	return fmt.Sprintf("(%s ? %s : %s)", Code(b.Cond), Code(b.True), Code(b.False))
}

func (c Concat) ToCode() string {
	return "{" + joinCode(c.Nodes) + "}"
}

func (p Partselect) ToCode() string {
	return fmt.Sprintf("%s[%s:%s]", Code(p.Var), Code(p.MSB), Code(p.LSB))
}

func (p Pointer) ToCode() string {
	return fmt.Sprintf("%s[%s]", Code(p.Var), Code(p.Ptr))
}

func (s Syscall) ToCode() string {
	if len(s.Args) == 0 {
		return "$" + s.Name
	}
	return "$" + s.Name + "(" + joinCode(s.Args) + ")"
}

func (d Delay) ToCode() string {
	return Code(d.Inner)
}

// Children returns the direct operands of n in a fixed order
func Children(n Node) []Node {
	switch x := n.(type) {
	case Operator:
		return x.Operands
	case Branch:
		return []Node{x.Cond, x.True, x.False}
	case Concat:
		return x.Nodes
	case Partselect:
		return []Node{x.Var, x.MSB, x.LSB}
	case Pointer:
		return []Node{x.Var, x.Ptr}
	case Syscall:
		return x.Args
	case Delay:
		return []Node{x.Inner}
	}
	return nil
}

// Terminals returns every terminal name referenced under n, in first-seen order
func Terminals(n Node) []ScopeChain {
	var out []ScopeChain
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		if t, ok := n.(Terminal); ok {
			k := t.Name.String()
			if !seen[k] {
				seen[k] = true
				out = append(out, t.Name)
			}
			return
		}
		for _, c := range Children(n) {
			walk(c)
		}
	}
	walk(n)
	return out
}
