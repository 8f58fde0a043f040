package dataflow

import (
	"fmt"
	"strings"
)

// TermType is a set of signal type tags
type TermType uint32

const (
	TypeInput TermType = 1 << iota
	TypeOutput
	TypeInout
	TypeWire
	TypeReg
	TypeTri
	TypeInteger
	TypeReal
	TypeParameter
	TypeLocalparam
	TypeSupply0
	TypeSupply1
	TypeGenvar
	TypeFunction
	TypeTask
	TypeRename
)

var termTypeNames = []string{
	"input", "output", "inout", "wire", "reg", "tri", "integer", "real",
	"parameter", "localparam", "supply0", "supply1", "genvar", "function", "task", "rename",
}

// Has reports whether every tag in o is present
func (t TermType) Has(o TermType) bool {
	return t&o == o
}

// Any reports whether at least one tag in o is present
func (t TermType) Any(o TermType) bool {
	return t&o != 0
}

// Names returns the tag names in canonical order
func (t TermType) Names() []string {
	var out []string
	for i, n := range termTypeNames {
		if t&(1<<i) != 0 {
			out = append(out, n)
		}
	}
	return out
}

func (t TermType) String() string {
	return "[" + strings.Join(t.Names(), ",") + "]"
}

// ParseTermType returns the tag for a name
func ParseTermType(name string) (TermType, bool) {
	for i, n := range termTypeNames {
		if n == name {
			return 1 << i, true
		}
	}
	return 0, false
}

// IsRegister reports whether a value written to the term is held
func (t TermType) IsRegister() bool {
	return t.Any(TypeReg | TypeInteger | TypeReal)
}

// IsConstant reports whether the term is a compile-time constant
func (t TermType) IsConstant() bool {
	return t.Any(TypeParameter | TypeLocalparam | TypeGenvar)
}

// Dim is one unpacked array dimension
type Dim struct {
	MSB Node
	LSB Node
}

// Term describes one fully-qualified signal
type Term struct {
	Name   ScopeChain
	Types  TermType
	MSB    Node // nil when the term has no declared range
	LSB    Node
	Dims   []Dim
	Signed bool
}

func (t *Term) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(Term name:%s type:%s", t.Name, t.Types)
	if t.MSB != nil || t.LSB != nil {
		fmt.Fprintf(&sb, " msb:%s lsb:%s", Key(t.MSB), Key(t.LSB))
	}
	for _, d := range t.Dims {
		fmt.Fprintf(&sb, " dim:%s..%s", Key(d.MSB), Key(d.LSB))
	}
	if t.Signed {
		sb.WriteString(" signed")
	}
	sb.WriteString(")")
	return sb.String()
}

// ToCode renders the term as a Verilog declaration
func (t *Term) ToCode() string {
	var kinds []string
	for _, n := range t.Types.Names() {
		switch n {
		case "rename":
			kinds = append(kinds, "wire")
		case "function", "task", "genvar":
			continue
		default:
			kinds = append(kinds, n)
		}
	}
	if len(kinds) == 0 {
		kinds = []string{"wire"}
	}
	var sb strings.Builder
	sb.WriteString(strings.Join(kinds, " "))
	if t.Signed {
		sb.WriteString(" signed")
	}
	if t.MSB != nil && t.LSB != nil {
		fmt.Fprintf(&sb, " [%s:%s]", Code(t.MSB), Code(t.LSB))
	}
	sb.WriteString(" " + t.Name.Flat())
	for _, d := range t.Dims {
		fmt.Fprintf(&sb, " [%s:%s]", Code(d.MSB), Code(d.LSB))
	}
	sb.WriteString(";")
	return sb.String()
}
