package optimizer

import "github.com/raymyers/vflow/pkg/dataflow"

// layout maps the select indices of a node to bit positions counted from
// the least significant bit. Terminals and array elements are indexed by
// their declared range; every other node is indexed from zero.
type layout struct {
	lsb int64
	asc bool
}

func (l layout) bit(idx int64) int64 {
	if l.asc {
		return l.lsb - idx
	}
	return idx - l.lsb
}

func (l layout) index(bit int64) int64 {
	if l.asc {
		return l.lsb - bit
	}
	return l.lsb + bit
}

func (l layout) zero() bool { return l == layout{} }

func (o *Optimizer) layoutOf(n dataflow.Node) layout {
	var t dataflow.Terminal
	switch x := n.(type) {
	case dataflow.Terminal:
		t = x
	case dataflow.Pointer:
		v, ok := x.Var.(dataflow.Terminal)
		if !ok {
			return layout{}
		}
		if term, ok := o.terms.Get(v.Name); !ok || len(term.Dims) == 0 {
			return layout{}
		}
		t = v
	default:
		return layout{}
	}
	term, ok := o.terms.Get(t.Name)
	if !ok || term.MSB == nil || term.LSB == nil {
		return layout{}
	}
	msb, ok1 := o.EvalInt(term.MSB)
	lsb, ok2 := o.EvalInt(term.LSB)
	if !ok1 || !ok2 {
		return layout{}
	}
	return layout{lsb: lsb, asc: msb < lsb}
}

func indexValue(v int64) dataflow.Node {
	return dataflow.IntValue(v, dataflow.DefaultWidth, true)
}

// rebase rewrites a select index written against from so it addresses the
// same bit under to
func rebase(from, to layout, idx dataflow.Node) dataflow.Node {
	if from == to || idx == nil {
		return idx
	}
	if v, ok := constOf(idx); ok {
		return indexValue(to.index(from.bit(v.Int64())))
	}
	bit := idx
	if !from.zero() {
		if from.asc {
			bit = dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{indexValue(from.lsb), idx}}
		} else {
			bit = dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{idx, indexValue(from.lsb)}}
		}
	}
	if to.zero() {
		return bit
	}
	if to.asc {
		return dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{indexValue(to.lsb), bit}}
	}
	return dataflow.Operator{Op: dataflow.Plus, Operands: []dataflow.Node{bit, indexValue(to.lsb)}}
}

// BitSelect selects bits hi..lo of v, counted from its least significant
// bit, written in the index space of v
func (o *Optimizer) BitSelect(v dataflow.Node, hi, lo int64) dataflow.Node {
	l := o.layoutOf(v)
	return dataflow.Partselect{Var: v, MSB: indexValue(l.index(hi)), LSB: indexValue(l.index(lo))}
}

// Ascending reports whether n is indexed by an ascending declared range
func (o *Optimizer) Ascending(n dataflow.Node) bool {
	return o.layoutOf(n).asc
}
