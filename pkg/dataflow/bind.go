package dataflow

import (
	"fmt"
	"strings"
)

// BindKind tags where a bind came from
type BindKind int

const (
	BindNone BindKind = iota
	BindAssign
	BindParameter
	BindLocalparam
	BindBlocking
	BindNonblocking
)

var bindKindNames = []string{"", "assign", "parameter", "localparam", "blocking", "nonblocking"}

func (k BindKind) String() string {
	if int(k) < len(bindKindNames) {
		return bindKindNames[k]
	}
	return "?"
}

// Edge is a clock or reset edge
type Edge int

const (
	NoEdge Edge = iota
	Posedge
	Negedge
)

func (e Edge) String() string {
	switch e {
	case Posedge:
		return "posedge"
	case Negedge:
		return "negedge"
	}
	return ""
}

// SensEntry is one leftover sensitivity list entry
type SensEntry struct {
	Edge Edge
	Name ScopeChain
}

// AlwaysInfo describes the process that produced a bind
type AlwaysInfo struct {
	ClockName     ScopeChain
	ClockEdge     Edge
	ClockBit      Node // bit select on the clock, nil when whole signal
	ResetName     ScopeChain
	ResetEdge     Edge
	ResetBit      Node
	SensList      []SensEntry
	Combinational bool // @* or a level-sensitive list
}

// IsClockEdge reports whether the process is edge triggered
func (a *AlwaysInfo) IsClockEdge() bool {
	return a != nil && a.ClockEdge != NoEdge
}

// IsCombination reports whether the process is level sensitive
func (a *AlwaysInfo) IsCombination() bool {
	return a != nil && !a.IsClockEdge()
}

func edgeCode(e Edge, name ScopeChain, bit Node) string {
	s := e.String() + " " + name.Flat()
	if bit != nil {
		s += "[" + Code(bit) + "]"
	}
	return s
}

// Sensitivity renders the event control of the process
func (a *AlwaysInfo) Sensitivity() string {
	if a.IsCombination() {
		if a.Combinational || len(a.SensList) == 0 {
			return "@*"
		}
	}
	var parts []string
	if a.ClockEdge != NoEdge {
		parts = append(parts, edgeCode(a.ClockEdge, a.ClockName, a.ClockBit))
	}
	if a.ResetEdge != NoEdge {
		parts = append(parts, edgeCode(a.ResetEdge, a.ResetName, a.ResetBit))
	}
	for _, s := range a.SensList {
		if s.Edge == NoEdge {
			parts = append(parts, s.Name.Flat())
		} else {
			parts = append(parts, s.Edge.String()+" "+s.Name.Flat())
		}
	}
	return "@(" + strings.Join(parts, " or ") + ")"
}

func (a *AlwaysInfo) String() string {
	var sb strings.Builder
	sb.WriteString("(Always")
	if a.ClockEdge != NoEdge {
		fmt.Fprintf(&sb, " clock:%s %s", a.ClockEdge, a.ClockName)
		if a.ClockBit != nil {
			fmt.Fprintf(&sb, "[%s]", Code(a.ClockBit))
		}
	}
	if a.ResetEdge != NoEdge {
		fmt.Fprintf(&sb, " reset:%s %s", a.ResetEdge, a.ResetName)
		if a.ResetBit != nil {
			fmt.Fprintf(&sb, "[%s]", Code(a.ResetBit))
		}
	}
	if a.IsCombination() {
		sb.WriteString(" combinational")
	}
	for _, s := range a.SensList {
		fmt.Fprintf(&sb, " sens:%s", s.Name)
	}
	sb.WriteString(")")
	return sb.String()
}

// Bind assigns the value of Tree to Dest, or to the slice Dest[MSB:LSB] / Dest[Ptr]
type Bind struct {
	Dest   ScopeChain
	MSB    Node
	LSB    Node
	Ptr    Node
	Tree   Node
	Always *AlwaysInfo
	Kind   BindKind
}

// SameTarget reports whether two binds write the same destination slice
func (b *Bind) SameTarget(o *Bind) bool {
	return b.Dest.Equal(o.Dest) && Equal(b.MSB, o.MSB) && Equal(b.LSB, o.LSB) && Equal(b.Ptr, o.Ptr)
}

// IsFullWidth reports whether the bind writes the whole destination
func (b *Bind) IsFullWidth() bool {
	return b.MSB == nil && b.LSB == nil && b.Ptr == nil
}

func (b *Bind) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(Bind dest:%s", b.Dest)
	if b.MSB != nil || b.LSB != nil {
		fmt.Fprintf(&sb, " msb:%s lsb:%s", Key(b.MSB), Key(b.LSB))
	}
	if b.Ptr != nil {
		fmt.Fprintf(&sb, " ptr:%s", Key(b.Ptr))
	}
	fmt.Fprintf(&sb, " tree:%s", Key(b.Tree))
	if b.Always != nil {
		sb.WriteString(" " + b.Always.String())
	}
	if b.Kind != BindNone {
		fmt.Fprintf(&sb, " kind:%s", b.Kind)
	}
	sb.WriteString(")")
	return sb.String()
}

// Target renders the left-hand side of the assignment
func (b *Bind) Target() string {
	s := b.Dest.Flat()
	if b.Ptr != nil {
		s += "[" + Code(b.Ptr) + "]"
	}
	if b.MSB != nil && b.LSB != nil {
		s += "[" + Code(b.MSB) + ":" + Code(b.LSB) + "]"
	}
	return s
}

// ToCode renders the bind as a Verilog assignment or process
func (b *Bind) ToCode() string {
	switch {
	case b.Kind == BindParameter:
		return fmt.Sprintf("parameter %s = %s;\n", b.Dest.Flat(), Code(b.Tree))
	case b.Kind == BindLocalparam:
		return fmt.Sprintf("localparam %s = %s;\n", b.Dest.Flat(), Code(b.Tree))
	case b.Always == nil:
		return fmt.Sprintf("assign %s = %s;\n", b.Target(), Code(b.Tree))
	}
	op := "<="
	if b.Kind == BindBlocking || b.Always.IsCombination() {
		op = "="
	}
	return fmt.Sprintf("always %s begin\n  %s %s %s;\nend\n", b.Always.Sensitivity(), b.Target(), op, Code(b.Tree))
}
