// Package dataflow defines the data model shared by every elaboration pass:
// scope chains, dataflow trees, terms, binds and the result tables.
package dataflow

import (
	"fmt"
	"strings"
)

// ScopeKind classifies a scope label
type ScopeKind int

const (
	KindModule ScopeKind = iota
	KindBlock
	KindIf
	KindFor
	KindWhile
	KindAlways
	KindInitial
	KindGenerate
	KindFunction
	KindTask
	KindFunctionCall
	KindTaskCall
	KindSignal
	KindAny // wildcard, matches every kind
)

var scopeKindNames = []string{
	"module", "block", "if", "for", "while", "always", "initial", "generate",
	"function", "task", "functioncall", "taskcall", "signal", "any",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) {
		return scopeKindNames[k]
	}
	return "?"
}

// ScopeLabel is one component of a scope chain
type ScopeLabel struct {
	Name    string
	Kind    ScopeKind
	Loop    int  // iteration value for loop scopes
	HasLoop bool // Loop is meaningful
}

// String returns the printable label: name, or name[loop] for loop iterations
func (l ScopeLabel) String() string {
	if l.HasLoop {
		return fmt.Sprintf("%s[%d]", l.Name, l.Loop)
	}
	return l.Name
}

// Flat returns the label as a plain identifier
func (l ScopeLabel) Flat() string {
	if l.HasLoop {
		return fmt.Sprintf("%s_%d", l.Name, l.Loop)
	}
	return l.Name
}

// Equal compares names, loop values and kinds; KindAny matches any kind
func (l ScopeLabel) Equal(o ScopeLabel) bool {
	if l.Name != o.Name || l.HasLoop != o.HasLoop || (l.HasLoop && l.Loop != o.Loop) {
		return false
	}
	return l.Kind == o.Kind || l.Kind == KindAny || o.Kind == KindAny
}

// ScopeChain is the path of labels from the top module to a scope or signal
type ScopeChain []ScopeLabel

// NewChain builds a chain from labels
func NewChain(labels ...ScopeLabel) ScopeChain {
	return append(ScopeChain(nil), labels...)
}

// Append returns a new chain with l added; the receiver is not modified
func (c ScopeChain) Append(l ScopeLabel) ScopeChain {
	out := make(ScopeChain, len(c)+1)
	copy(out, c)
	out[len(c)] = l
	return out
}

// Signal returns the chain naming signal name declared in scope c
func (c ScopeChain) Signal(name string) ScopeChain {
	return c.Append(ScopeLabel{Name: name, Kind: KindSignal})
}

// Concat returns c followed by other
func (c ScopeChain) Concat(other ScopeChain) ScopeChain {
	out := make(ScopeChain, 0, len(c)+len(other))
	out = append(out, c...)
	return append(out, other...)
}

// Slice returns a copy of c[i:j]
func (c ScopeChain) Slice(i, j int) ScopeChain {
	return append(ScopeChain(nil), c[i:j]...)
}

// Parent returns the chain without its last label
func (c ScopeChain) Parent() ScopeChain {
	if len(c) == 0 {
		return nil
	}
	return c.Slice(0, len(c)-1)
}

// Last returns the final label
func (c ScopeChain) Last() ScopeLabel {
	return c[len(c)-1]
}

// String joins the printable labels with '.'; it is also the table key
func (c ScopeChain) String() string {
	parts := make([]string, len(c))
	for i, l := range c {
		parts[i] = l.String()
	}
	return strings.Join(parts, ".")
}

// Flat joins the labels with '_' to form a synthesizable identifier
func (c ScopeChain) Flat() string {
	parts := make([]string, len(c))
	for i, l := range c {
		parts[i] = l.Flat()
	}
	return strings.Join(parts, "_")
}

// Equal compares two chains label by label
func (c ScopeChain) Equal(o ScopeChain) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if !c[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is a prefix of c
func (c ScopeChain) HasPrefix(p ScopeChain) bool {
	return len(p) <= len(c) && c.Slice(0, len(p)).Equal(p)
}
