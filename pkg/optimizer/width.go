package optimizer

import "github.com/raymyers/vflow/pkg/dataflow"

// rangeWidth returns the width of a term's declared [msb:lsb] range
func (o *Optimizer) rangeWidth(term *dataflow.Term) (int, bool) {
	if term.MSB == nil || term.LSB == nil {
		return 0, false
	}
	msb, ok1 := o.EvalInt(term.MSB)
	lsb, ok2 := o.EvalInt(term.LSB)
	if !ok1 || !ok2 {
		return 0, false
	}
	if msb < lsb {
		msb, lsb = lsb, msb
	}
	return int(msb - lsb + 1), true
}

// TermWidth returns the bit width of a term: its declared range, 32 for
// integers, 64 for reals, the value width for constants, else one bit
func (o *Optimizer) TermWidth(term *dataflow.Term) int {
	if w, ok := o.rangeWidth(term); ok {
		return w
	}
	switch {
	case term.Types.Any(dataflow.TypeInteger):
		return dataflow.DefaultWidth
	case term.Types.Any(dataflow.TypeReal):
		return 64
	case term.Types.IsConstant():
		if v, st := o.consts.Lookup(term.Name); st == dataflow.Known {
			return v.Width
		}
		return dataflow.DefaultWidth
	}
	return 1
}

// Width returns the bit width of a node, 0 when it cannot be determined
func (o *Optimizer) Width(n dataflow.Node) int {
	switch x := n.(type) {
	case nil:
		return 0
	case dataflow.EvalValue:
		return x.Width
	case dataflow.IntConst:
		if v, err := dataflow.ParseIntLiteral(x.Literal); err == nil {
			return o.Width(v)
		}
		return 0
	case dataflow.FloatConst:
		return 64
	case dataflow.StringConst:
		return dataflow.StringValue(x.Value).Width
	case dataflow.Undefined:
		return x.Width
	case dataflow.HighImpedance:
		return x.Width
	case dataflow.Terminal:
		if term, ok := o.terms.Get(x.Name); ok {
			return o.TermWidth(term)
		}
		if v, st := o.consts.Lookup(x.Name); st == dataflow.Known {
			return v.Width
		}
		return 1
	case dataflow.Operator:
		switch {
		case x.Op.IsComparison(), x.Op.IsLogical(), x.Op.IsReduction():
			return 1
		case x.Op.IsUnary(), x.Op.IsShift(), x.Op == dataflow.Power:
			return o.Width(x.Operands[0])
		}
		w := 0
		for _, a := range x.Operands {
			aw := o.Width(a)
			if aw == 0 {
				return 0
			}
			w = max(w, aw)
		}
		return w
	case dataflow.Branch:
		return max(o.Width(x.True), o.Width(x.False))
	case dataflow.Concat:
		w := 0
		for _, c := range x.Nodes {
			cw := o.Width(c)
			if cw == 0 {
				return 0
			}
			w += cw
		}
		return w
	case dataflow.Partselect:
		msb, ok1 := o.EvalInt(x.MSB)
		lsb, ok2 := o.EvalInt(x.LSB)
		if !ok1 || !ok2 {
			return 0
		}
		if msb < lsb {
			msb, lsb = lsb, msb
		}
		return int(msb - lsb + 1)
	case dataflow.Pointer:
		if t, ok := x.Var.(dataflow.Terminal); ok {
			if term, ok := o.terms.Get(t.Name); ok && len(term.Dims) > 0 {
				return o.TermWidth(term)
			}
		}
		return 1
	case dataflow.Syscall:
		switch x.Name {
		case "signed", "unsigned":
			if len(x.Args) == 1 {
				return o.Width(x.Args[0])
			}
		case "clog2":
			return dataflow.DefaultWidth
		}
		return 0
	case dataflow.Delay:
		return o.Width(x.Inner)
	}
	return 0
}

// Signed reports whether a node evaluates as a signed quantity
func (o *Optimizer) Signed(n dataflow.Node) bool {
	switch x := n.(type) {
	case dataflow.EvalValue:
		return x.Signed
	case dataflow.IntConst:
		if v, err := dataflow.ParseIntLiteral(x.Literal); err == nil {
			if ev, ok := v.(dataflow.EvalValue); ok {
				return ev.Signed
			}
		}
	case dataflow.Terminal:
		if term, ok := o.terms.Get(x.Name); ok {
			return term.Signed || (term.MSB == nil && term.Types.Any(dataflow.TypeInteger))
		}
	case dataflow.Syscall:
		return x.Name == "signed"
	case dataflow.Operator:
		if x.Op.IsComparison() || x.Op.IsLogical() || x.Op.IsReduction() {
			return false
		}
		if x.Op.IsShift() || x.Op == dataflow.Power {
			return o.Signed(x.Operands[0])
		}
		for _, a := range x.Operands {
			if !o.Signed(a) {
				return false
			}
		}
		return true
	case dataflow.Branch:
		return o.Signed(x.True) && o.Signed(x.False)
	}
	return false
}
