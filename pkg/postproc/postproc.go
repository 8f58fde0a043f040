// Package postproc puts resolved binds into canonical form: branches are
// lifted above every operator, concatenation, part-select and pointer, and
// undefined leaves become references to the destination's previous value.
package postproc

import "github.com/raymyers/vflow/pkg/dataflow"

// Reorder lifts every Branch that sits below an Operator, Concat, Partselect
// or Pointer: Op(Branch(c, t, f), y) becomes Branch(c, Op(t, y), Op(f, y)).
func Reorder(n dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case dataflow.Branch:
		return dataflow.Branch{Cond: Reorder(x.Cond), True: Reorder(x.True), False: Reorder(x.False)}
	case dataflow.Operator, dataflow.Concat, dataflow.Partselect, dataflow.Pointer:
		children := dataflow.Children(x)
		kids := make([]dataflow.Node, len(children))
		for i, c := range children {
			kids[i] = Reorder(c)
		}
		for i, c := range kids {
			b, ok := c.(dataflow.Branch)
			if !ok {
				continue
			}
			t := withChild(x, kids, i, hold(b.True))
			f := withChild(x, kids, i, hold(b.False))
			return dataflow.Branch{Cond: b.Cond, True: Reorder(t), False: Reorder(f)}
		}
		return rebuild(x, kids)
	case dataflow.Syscall:
		args := make([]dataflow.Node, len(x.Args))
		for i, a := range x.Args {
			args[i] = Reorder(a)
		}
		return dataflow.Syscall{Name: x.Name, Args: args}
	case dataflow.Delay:
		return dataflow.Delay{Inner: Reorder(x.Inner)}
	}
	return n
}

// hold stands in for an absent arm once it becomes an operand
func hold(n dataflow.Node) dataflow.Node {
	if n == nil {
		return dataflow.Undefined{}
	}
	return n
}

func withChild(n dataflow.Node, kids []dataflow.Node, i int, c dataflow.Node) dataflow.Node {
	cp := append([]dataflow.Node(nil), kids...)
	cp[i] = c
	return rebuild(n, cp)
}

func rebuild(n dataflow.Node, kids []dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case dataflow.Operator:
		return dataflow.Operator{Op: x.Op, Operands: kids}
	case dataflow.Concat:
		return dataflow.Concat{Nodes: kids}
	case dataflow.Partselect:
		return dataflow.Partselect{Var: kids[0], MSB: kids[1], LSB: kids[2]}
	case dataflow.Pointer:
		return dataflow.Pointer{Var: kids[0], Ptr: kids[1]}
	}
	dataflow.Fail(dataflow.Implementationf("reorder: cannot rebuild %T", n))
	return nil
}

// IsCanonical reports whether no Branch sits below a combinator
func IsCanonical(n dataflow.Node) bool {
	return canonical(n, false)
}

func canonical(n dataflow.Node, under bool) bool {
	switch x := n.(type) {
	case nil:
		return true
	case dataflow.Branch:
		if under {
			return false
		}
		return canonical(x.Cond, false) && canonical(x.True, false) && canonical(x.False, false)
	case dataflow.Operator, dataflow.Concat, dataflow.Partselect, dataflow.Pointer:
		for _, c := range dataflow.Children(x) {
			if !canonical(c, true) {
				return false
			}
		}
		return true
	}
	for _, c := range dataflow.Children(n) {
		if !canonical(c, under) {
			return false
		}
	}
	return true
}

// ReorderBinds applies Reorder to the tree of every bind
func ReorderBinds(binds *dataflow.BindTable) {
	for _, b := range binds.All() {
		b.Tree = Reorder(b.Tree)
	}
}

// ReplaceUndefined turns every Undefined leaf of the bind's tree into a
// reference to the slice the bind writes, the value the destination held
// before
func ReplaceUndefined(b *dataflow.Bind) {
	self := selfRef(b)
	b.Tree = replace(b.Tree, self)
}

// ReplaceBinds applies ReplaceUndefined to every bind
func ReplaceBinds(binds *dataflow.BindTable) {
	for _, b := range binds.All() {
		ReplaceUndefined(b)
	}
}

func selfRef(b *dataflow.Bind) dataflow.Node {
	var n dataflow.Node = dataflow.Terminal{Name: b.Dest}
	if b.Ptr != nil {
		n = dataflow.Pointer{Var: n, Ptr: b.Ptr}
	}
	if b.MSB != nil && b.LSB != nil {
		n = dataflow.Partselect{Var: n, MSB: b.MSB, LSB: b.LSB}
	}
	return n
}

func replace(n dataflow.Node, self dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case dataflow.Undefined:
		return self
	case dataflow.Operator:
		ops := make([]dataflow.Node, len(x.Operands))
		for i, a := range x.Operands {
			ops[i] = replace(a, self)
		}
		return dataflow.Operator{Op: x.Op, Operands: ops}
	case dataflow.Branch:
		return dataflow.Branch{Cond: replace(x.Cond, self), True: replace(x.True, self), False: replace(x.False, self)}
	case dataflow.Concat:
		nodes := make([]dataflow.Node, len(x.Nodes))
		for i, c := range x.Nodes {
			nodes[i] = replace(c, self)
		}
		return dataflow.Concat{Nodes: nodes}
	case dataflow.Partselect:
		return dataflow.Partselect{Var: replace(x.Var, self), MSB: x.MSB, LSB: x.LSB}
	case dataflow.Pointer:
		return dataflow.Pointer{Var: replace(x.Var, self), Ptr: replace(x.Ptr, self)}
	case dataflow.Syscall:
		args := make([]dataflow.Node, len(x.Args))
		for i, a := range x.Args {
			args[i] = replace(a, self)
		}
		return dataflow.Syscall{Name: x.Name, Args: args}
	case dataflow.Delay:
		return dataflow.Delay{Inner: replace(x.Inner, self)}
	}
	return n
}
