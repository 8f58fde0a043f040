// Package optimizer reduces dataflow trees: constant folding against the
// constant table, structural simplification by rewrite rules, bit-width
// computation, and resolution of rename chains and single-driver nets.
package optimizer

import (
	"math/big"

	"github.com/raymyers/vflow/pkg/dataflow"
)

// Optimizer folds and simplifies trees against a term and constant table
type Optimizer struct {
	terms  *dataflow.TermTable
	consts *dataflow.ConstTable
	// Level is the minimum number of fold + simplify rounds
	Level int
}

// New creates an optimizer. Either table may be nil.
func New(terms *dataflow.TermTable, consts *dataflow.ConstTable) *Optimizer {
	if terms == nil {
		terms = dataflow.NewTermTable()
	}
	if consts == nil {
		consts = dataflow.NewConstTable()
	}
	return &Optimizer{terms: terms, consts: consts, Level: 2}
}

// maxRounds caps the outer fixpoint loop
const maxRounds = 16

// Optimize runs fold and simplify rounds until the tree stops changing
func (o *Optimizer) Optimize(n dataflow.Node) dataflow.Node {
	prev := dataflow.Key(n)
	for i := 0; i < maxRounds; i++ {
		n = o.Simplify(o.Fold(n))
		cur := dataflow.Key(n)
		if i+1 >= o.Level && cur == prev {
			break
		}
		prev = cur
	}
	return n
}

// Eval folds n and reports its value when it is a constant
func (o *Optimizer) Eval(n dataflow.Node) (dataflow.EvalValue, bool) {
	v, ok := o.Fold(n).(dataflow.EvalValue)
	return v, ok
}

// EvalInt folds n to an int64
func (o *Optimizer) EvalInt(n dataflow.Node) (int64, bool) {
	v, ok := o.Eval(n)
	if !ok || v.IsString {
		return 0, false
	}
	return v.Int64(), true
}

// Fold is the constant folding pass
func (o *Optimizer) Fold(n dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case nil:
		return nil
	case dataflow.EvalValue, dataflow.Undefined, dataflow.HighImpedance:
		return x
	case dataflow.IntConst:
		v, err := dataflow.ParseIntLiteral(x.Literal)
		if err != nil {
			return x
		}
		return v
	case dataflow.FloatConst:
		v, err := dataflow.ParseFloatLiteral(x.Literal)
		if err != nil {
			return x
		}
		return v
	case dataflow.StringConst:
		return dataflow.StringValue(x.Value)
	case dataflow.Terminal:
		return o.foldTerminal(x)
	case dataflow.Operator:
		return o.foldOperator(x)
	case dataflow.Branch:
		cond := o.Fold(x.Cond)
		if v, ok := cond.(dataflow.EvalValue); ok {
			if v.IsTrue() {
				return o.Fold(x.True)
			}
			return o.Fold(x.False)
		}
		return dataflow.Branch{Cond: cond, True: o.Fold(x.True), False: o.Fold(x.False)}
	case dataflow.Concat:
		return o.foldConcat(x)
	case dataflow.Partselect:
		return o.foldPartselect(x)
	case dataflow.Pointer:
		return o.foldPointer(x)
	case dataflow.Syscall:
		return o.foldSyscall(x)
	case dataflow.Delay:
		return dataflow.Delay{Inner: o.Fold(x.Inner)}
	}
	dataflow.Fail(dataflow.Implementationf("fold: unexpected node %T", n))
	return nil
}

func (o *Optimizer) foldTerminal(t dataflow.Terminal) dataflow.Node {
	v, st := o.consts.Lookup(t.Name)
	if st != dataflow.Known {
		return t
	}
	term, ok := o.terms.Get(t.Name)
	if !ok || v.IsFloat || v.IsString {
		return v
	}
	if w, ok := o.rangeWidth(term); ok {
		return v.Resize(w, term.Signed)
	}
	if term.Types.Any(dataflow.TypeInteger) {
		return v.Resize(dataflow.DefaultWidth, true)
	}
	return v
}

func (o *Optimizer) foldOperator(x dataflow.Operator) dataflow.Node {
	ops := make([]dataflow.Node, len(x.Operands))
	vals := make([]dataflow.EvalValue, len(x.Operands))
	all := true
	for i, a := range x.Operands {
		ops[i] = o.Fold(a)
		v, ok := ops[i].(dataflow.EvalValue)
		vals[i] = v
		all = all && ok
	}
	if all {
		var r dataflow.Node
		ok := false
		switch {
		case len(vals) == 1:
			r, ok = evalUnary(x.Op, vals[0])
		case len(vals) == 2:
			r, ok = evalBinary(x.Op, vals[0], vals[1])
		}
		if ok {
			return r
		}
	}
	return dataflow.Operator{Op: x.Op, Operands: ops}
}

func (o *Optimizer) foldConcat(x dataflow.Concat) dataflow.Node {
	nodes := make([]dataflow.Node, len(x.Nodes))
	vals := make([]dataflow.EvalValue, len(x.Nodes))
	all := true
	for i, c := range x.Nodes {
		nodes[i] = o.Fold(c)
		v, ok := nodes[i].(dataflow.EvalValue)
		vals[i] = v
		all = all && ok && !v.IsFloat
	}
	if all && len(vals) > 0 {
		return concatValues(vals)
	}
	return dataflow.Concat{Nodes: nodes}
}

func (o *Optimizer) foldPartselect(x dataflow.Partselect) dataflow.Node {
	from := o.layoutOf(x.Var)
	v := o.Fold(x.Var)
	msb, lsb := o.Fold(x.MSB), o.Fold(x.LSB)
	val, ok := v.(dataflow.EvalValue)
	m, okm := msb.(dataflow.EvalValue)
	l, okl := lsb.(dataflow.EvalValue)
	if ok && okm && okl && !val.IsFloat {
		return selectBits(val, from.bit(m.Int64()), from.bit(l.Int64()))
	}
	to := o.layoutOf(v)
	return dataflow.Partselect{Var: v, MSB: o.Fold(rebase(from, to, msb)), LSB: o.Fold(rebase(from, to, lsb))}
}

func (o *Optimizer) foldPointer(x dataflow.Pointer) dataflow.Node {
	if t, ok := x.Var.(dataflow.Terminal); ok {
		if term, ok := o.terms.Get(t.Name); ok && len(term.Dims) > 0 {
			// array element: the target stays a signal
			return dataflow.Pointer{Var: x.Var, Ptr: o.Fold(x.Ptr)}
		}
	}
	from := o.layoutOf(x.Var)
	v := o.Fold(x.Var)
	ptr := o.Fold(x.Ptr)
	val, ok := v.(dataflow.EvalValue)
	p, okp := ptr.(dataflow.EvalValue)
	if ok && okp && !val.IsFloat {
		b := from.bit(p.Int64())
		return selectBits(val, b, b)
	}
	return dataflow.Pointer{Var: v, Ptr: o.Fold(rebase(from, o.layoutOf(v), ptr))}
}

func (o *Optimizer) foldSyscall(x dataflow.Syscall) dataflow.Node {
	args := make([]dataflow.Node, len(x.Args))
	for i, a := range x.Args {
		args[i] = o.Fold(a)
	}
	if len(args) != 1 {
		return dataflow.Syscall{Name: x.Name, Args: args}
	}
	v, ok := args[0].(dataflow.EvalValue)
	if !ok || v.IsFloat || v.IsString {
		return dataflow.Syscall{Name: x.Name, Args: args}
	}
	switch x.Name {
	case "signed":
		return dataflow.NewValue(v.Unsigned(), v.Width, true)
	case "unsigned":
		return dataflow.NewValue(v.Unsigned(), v.Width, false)
	case "clog2":
		return dataflow.NewValue(big.NewInt(clog2(v.Unsigned())), dataflow.DefaultWidth, true)
	}
	return dataflow.Syscall{Name: x.Name, Args: args}
}
