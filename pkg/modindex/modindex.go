// Package modindex builds the module table: one entry per module definition
// with its port order, parameter order, signal declarations and constants.
package modindex

import (
	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/vast"
)

// Signal is one top-level signal declaration of a module
type Signal struct {
	Name   string
	Kinds  []vast.DeclKind
	Signed bool
	Range  *vast.Range
	Dims   []vast.Range
}

// HasKind reports whether the declaration carries kind k
func (s Signal) HasKind(k vast.DeclKind) bool {
	for _, kk := range s.Kinds {
		if kk == k {
			return true
		}
	}
	return false
}

// Definition is the index entry for one module
type Definition struct {
	Module  *vast.Module
	Ports   []string
	Params  []string // overridable parameters in declaration order
	Signals []Signal
	Consts  []vast.ParamDecl
}

// Table maps module names to definitions, remembering source order
type Table struct {
	defs  map[string]*Definition
	order []string
}

// Build indexes every module of every source. A module defined twice is a
// DefinitionError.
func Build(sources ...*vast.Source) (*Table, error) {
	t := &Table{defs: make(map[string]*Definition)}
	for _, src := range sources {
		for _, m := range src.Modules {
			if _, dup := t.defs[m.Name]; dup {
				return nil, dataflow.Definitionf("module %s is already defined", m.Name)
			}
			t.defs[m.Name] = index(m)
			t.order = append(t.order, m.Name)
		}
	}
	return t, nil
}

func index(m *vast.Module) *Definition {
	d := &Definition{Module: m, Ports: append([]string(nil), m.Ports...)}
	for _, p := range m.Params {
		d.Consts = append(d.Consts, p)
		if !p.Local {
			d.Params = append(d.Params, p.Name)
		}
	}
	// function, task and process bodies are not scanned
	for _, item := range m.Items {
		switch it := item.(type) {
		case vast.Decl:
			for _, n := range it.Names {
				d.Signals = append(d.Signals, Signal{
					Name: n.Name, Kinds: it.Kinds, Signed: it.Signed, Range: it.Range, Dims: n.Dims,
				})
			}
		case vast.ParamDecl:
			d.Consts = append(d.Consts, it)
			// a body parameter is overridable only without a header list
			if !it.Local && len(m.Params) == 0 {
				d.Params = append(d.Params, it.Name)
			}
		}
	}
	return d
}

// GetDefinition returns the AST of a module
func (t *Table) GetDefinition(name string) (*vast.Module, bool) {
	d, ok := t.defs[name]
	if !ok {
		return nil, false
	}
	return d.Module, true
}

// GetIOPorts returns the port names of a module in header order
func (t *Table) GetIOPorts(name string) []string {
	if d, ok := t.defs[name]; ok {
		return d.Ports
	}
	return nil
}

// GetParamNames returns the overridable parameter names, for positional overrides
func (t *Table) GetParamNames(name string) []string {
	if d, ok := t.defs[name]; ok {
		return d.Params
	}
	return nil
}

// GetSignals returns the module-level signal declarations
func (t *Table) GetSignals(name string) []Signal {
	if d, ok := t.defs[name]; ok {
		return d.Signals
	}
	return nil
}

// GetConsts returns the parameter and localparam declarations
func (t *Table) GetConsts(name string) []vast.ParamDecl {
	if d, ok := t.defs[name]; ok {
		return d.Consts
	}
	return nil
}

// GetModuleNames returns every module name in source order
func (t *Table) GetModuleNames() []string {
	return append([]string(nil), t.order...)
}

// PortDirection returns the direction of a port of a module. The merged
// kinds of every declaration of the name are consulted, so non-ANSI
// `output x; reg x;` pairs work.
func (t *Table) PortDirection(module, port string) (vast.DeclKind, bool) {
	for _, s := range t.GetSignals(module) {
		if s.Name != port {
			continue
		}
		for _, k := range s.Kinds {
			if k.IsPort() {
				return k, true
			}
		}
	}
	return 0, false
}
