package optimizer

import (
	"math/big"
	"sort"

	"github.com/raymyers/vflow/pkg/dataflow"
)

// rule rewrites a node whose children are already simplified; it returns
// false when the pattern does not apply
type rule func(o *Optimizer, n dataflow.Node) (dataflow.Node, bool)

// rules are dispatched by the outermost node kind and tried in order
var (
	operatorRules = []rule{
		ruleShiftForPower,
		ruleIdempotent,
		ruleComplement,
		ruleIdentity,
		ruleDoubleNegation,
		ruleLogicalChain,
	}
	branchRules = []rule{
		ruleSameArms,
		ruleRedundantInner,
	}
	concatRules = []rule{
		ruleFlattenConcat,
		ruleMergeSelects,
		ruleConcatBranches,
		ruleSingleConcat,
	}
	partselectRules = []rule{
		ruleSelectConcat,
		ruleSelectOfSelect,
		ruleFullSelect,
	}
	pointerRules = []rule{
		rulePointerConcat,
	}
)

// Simplify is the structural pass: children first, then the rule table for
// the node kind until no rule applies
func (o *Optimizer) Simplify(n dataflow.Node) dataflow.Node {
	n = o.simplifyChildren(n)
	for {
		var rules []rule
		switch n.(type) {
		case dataflow.Operator:
			rules = operatorRules
		case dataflow.Branch:
			rules = branchRules
		case dataflow.Concat:
			rules = concatRules
		case dataflow.Partselect:
			rules = partselectRules
		case dataflow.Pointer:
			rules = pointerRules
		}
		changed := false
		for _, r := range rules {
			if out, ok := r(o, n); ok {
				n = o.simplifyChildren(out)
				changed = true
				break
			}
		}
		if !changed {
			return n
		}
	}
}

func (o *Optimizer) simplifyChildren(n dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case dataflow.Operator:
		ops := make([]dataflow.Node, len(x.Operands))
		for i, a := range x.Operands {
			ops[i] = o.Simplify(a)
		}
		return dataflow.Operator{Op: x.Op, Operands: ops}
	case dataflow.Branch:
		return dataflow.Branch{Cond: o.Simplify(x.Cond), True: o.Simplify(x.True), False: o.Simplify(x.False)}
	case dataflow.Concat:
		nodes := make([]dataflow.Node, len(x.Nodes))
		for i, c := range x.Nodes {
			nodes[i] = o.Simplify(c)
		}
		return dataflow.Concat{Nodes: nodes}
	case dataflow.Partselect:
		v := o.Simplify(x.Var)
		from, to := o.layoutOf(x.Var), o.layoutOf(v)
		return dataflow.Partselect{Var: v, MSB: rebase(from, to, o.Simplify(x.MSB)), LSB: rebase(from, to, o.Simplify(x.LSB))}
	case dataflow.Pointer:
		v := o.Simplify(x.Var)
		return dataflow.Pointer{Var: v, Ptr: rebase(o.layoutOf(x.Var), o.layoutOf(v), o.Simplify(x.Ptr))}
	case dataflow.Syscall:
		args := make([]dataflow.Node, len(x.Args))
		for i, a := range x.Args {
			args[i] = o.Simplify(a)
		}
		return dataflow.Syscall{Name: x.Name, Args: args}
	case dataflow.Delay:
		return dataflow.Delay{Inner: o.Simplify(x.Inner)}
	}
	return n
}

// --- helpers ---

func constOf(n dataflow.Node) (dataflow.EvalValue, bool) {
	v, ok := n.(dataflow.EvalValue)
	if !ok || v.IsFloat || v.IsString {
		return v, false
	}
	return v, true
}

func isZero(n dataflow.Node) bool {
	v, ok := constOf(n)
	return ok && v.Value.Sign() == 0
}

func isOne(n dataflow.Node) bool {
	v, ok := constOf(n)
	return ok && v.Value.Cmp(big.NewInt(1)) == 0
}

// log2Exact returns k when n is the constant 2^k with k > 0
func log2Exact(n dataflow.Node) (int, bool) {
	v, ok := constOf(n)
	if !ok || v.Value.Sign() <= 0 {
		return 0, false
	}
	k := v.Value.BitLen() - 1
	if k == 0 || v.Value.Cmp(new(big.Int).Lsh(big.NewInt(1), uint(k))) != 0 {
		return 0, false
	}
	return k, true
}

func negationOf(a, b dataflow.Node, op dataflow.Op) bool {
	if x, ok := b.(dataflow.Operator); ok && x.Op == op && len(x.Operands) == 1 {
		return dataflow.Equal(x.Operands[0], a)
	}
	return false
}

func (o *Optimizer) zeroOf(n dataflow.Node) dataflow.Node {
	w := o.Width(n)
	if w == 0 {
		w = 1
	}
	return dataflow.IntValue(0, w, false)
}

func binary(n dataflow.Node) (dataflow.Operator, dataflow.Node, dataflow.Node, bool) {
	x, ok := n.(dataflow.Operator)
	if !ok || len(x.Operands) != 2 {
		return x, nil, nil, false
	}
	return x, x.Operands[0], x.Operands[1], true
}

// --- operator rules ---

// x * 2^k => x << k, x / 2^k => x >>> k (x >> k when x is unsigned)
func ruleShiftForPower(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, a, b, ok := binary(n)
	if !ok {
		return nil, false
	}
	shift := func(op dataflow.Op, v dataflow.Node, k int) dataflow.Node {
		return dataflow.Operator{Op: op, Operands: []dataflow.Node{v, dataflow.IntValue(int64(k), dataflow.DefaultWidth, false)}}
	}
	switch x.Op {
	case dataflow.Times:
		if _, isConst := constOf(a); isConst {
			a, b = b, a
		}
		if _, isConst := constOf(a); isConst {
			return nil, false
		}
		if k, ok := log2Exact(b); ok {
			return shift(dataflow.Sll, a, k), true
		}
	case dataflow.Divide:
		if _, isConst := constOf(a); isConst {
			return nil, false
		}
		if k, ok := log2Exact(b); ok {
			if o.Signed(a) {
				return shift(dataflow.Sra, a, k), true
			}
			return shift(dataflow.Srl, a, k), true
		}
	}
	return nil, false
}

// x & x, x | x, x && x, x || x => x
func ruleIdempotent(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, a, b, ok := binary(n)
	if !ok || !dataflow.Equal(a, b) {
		return nil, false
	}
	switch x.Op {
	case dataflow.And, dataflow.Or:
		return a, true
	case dataflow.Land, dataflow.Lor:
		if o.Width(a) == 1 {
			return a, true
		}
	case dataflow.Xor, dataflow.Minus:
		return o.zeroOf(a), true
	case dataflow.Eq, dataflow.Eql, dataflow.LessEq, dataflow.GreaterEq:
		return dataflow.IntValue(1, 1, false), true
	case dataflow.NotEq, dataflow.NotEql, dataflow.LessThan, dataflow.GreaterThan:
		return dataflow.IntValue(0, 1, false), true
	}
	return nil, false
}

// x & ~x => 0, x | ~x => all ones, x && !x => 0, x || !x => 1
func ruleComplement(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, a, b, ok := binary(n)
	if !ok {
		return nil, false
	}
	switch x.Op {
	case dataflow.And, dataflow.Or:
		var base dataflow.Node
		switch {
		case negationOf(a, b, dataflow.Unot):
			base = a
		case negationOf(b, a, dataflow.Unot):
			base = b
		default:
			return nil, false
		}
		w := o.Width(base)
		if w == 0 {
			return nil, false
		}
		if x.Op == dataflow.And {
			return dataflow.IntValue(0, w, false), true
		}
		return dataflow.NewValue(dataflow.Mask(w), w, false), true
	case dataflow.Land, dataflow.Lor:
		if !negationOf(a, b, dataflow.Ulnot) && !negationOf(b, a, dataflow.Ulnot) {
			return nil, false
		}
		return boolValue(x.Op == dataflow.Lor), true
	}
	return nil, false
}

// identity and annihilator constants
func ruleIdentity(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, a, b, ok := binary(n)
	if !ok {
		return nil, false
	}
	commutes := x.Op.IsCommutative()
	try := func(v, c dataflow.Node) (dataflow.Node, bool) {
		switch x.Op {
		case dataflow.Plus, dataflow.Or, dataflow.Xor:
			if isZero(c) {
				return v, true
			}
		case dataflow.Times:
			if isOne(c) {
				return v, true
			}
			if isZero(c) {
				return o.zeroOf(n), true
			}
		case dataflow.And:
			if isZero(c) {
				return o.zeroOf(n), true
			}
		case dataflow.Land:
			if isZero(c) {
				return boolValue(false), true
			}
			if _, ok := constOf(c); ok && o.Width(v) == 1 {
				return v, true
			}
		case dataflow.Lor:
			if cv, ok := constOf(c); ok && cv.IsTrue() {
				return boolValue(true), true
			}
			if isZero(c) && o.Width(v) == 1 {
				return v, true
			}
		}
		return nil, false
	}
	if out, ok := try(a, b); ok {
		return out, true
	}
	if commutes {
		if out, ok := try(b, a); ok {
			return out, true
		}
	}
	switch x.Op {
	case dataflow.Minus, dataflow.Sll, dataflow.Srl, dataflow.Sla, dataflow.Sra:
		if isZero(b) {
			return a, true
		}
	case dataflow.Divide:
		if isOne(b) {
			return a, true
		}
	}
	return nil, false
}

// ~~x => x, !!x => x for one-bit x
func ruleDoubleNegation(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, ok := n.(dataflow.Operator)
	if !ok || len(x.Operands) != 1 || (x.Op != dataflow.Unot && x.Op != dataflow.Ulnot) {
		return nil, false
	}
	inner, ok := x.Operands[0].(dataflow.Operator)
	if !ok || inner.Op != x.Op || len(inner.Operands) != 1 {
		return nil, false
	}
	if x.Op == dataflow.Ulnot && o.Width(inner.Operands[0]) != 1 {
		return nil, false
	}
	return inner.Operands[0], true
}

func flattenLogical(op dataflow.Op, n dataflow.Node, out []dataflow.Node) []dataflow.Node {
	if x, ok := n.(dataflow.Operator); ok && x.Op == op && len(x.Operands) == 2 {
		out = flattenLogical(op, x.Operands[0], out)
		return flattenLogical(op, x.Operands[1], out)
	}
	return append(out, n)
}

// ruleLogicalChain canonicalises nested && / || trees: operands are
// deduplicated, sorted by printed form descending and rebuilt right-leaning
func ruleLogicalChain(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	x, ok := n.(dataflow.Operator)
	if !ok || (x.Op != dataflow.Land && x.Op != dataflow.Lor) || len(x.Operands) != 2 {
		return nil, false
	}
	flat := flattenLogical(x.Op, n, nil)
	seen := map[string]bool{}
	var uniq []dataflow.Node
	for _, f := range flat {
		k := dataflow.Key(f)
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, f)
		}
	}
	for _, f := range uniq {
		if neg, ok := f.(dataflow.Operator); ok && neg.Op == dataflow.Ulnot && seen[dataflow.Key(neg.Operands[0])] {
			return boolValue(x.Op == dataflow.Lor), true
		}
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		return dataflow.Key(uniq[i]) > dataflow.Key(uniq[j])
	})
	var out dataflow.Node
	if len(uniq) == 1 {
		if o.Width(uniq[0]) != 1 {
			return nil, false
		}
		out = uniq[0]
	} else {
		out = uniq[len(uniq)-1]
		for i := len(uniq) - 2; i >= 0; i-- {
			out = dataflow.Operator{Op: x.Op, Operands: []dataflow.Node{uniq[i], out}}
		}
	}
	if dataflow.Equal(out, n) {
		return nil, false
	}
	return out, true
}

// --- branch rules ---

// Branch(c, t, t) => t
func ruleSameArms(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	b := n.(dataflow.Branch)
	if dataflow.Equal(b.True, b.False) {
		return b.True, true
	}
	return nil, false
}

// Branch(c, t, Branch(c, tt, ff)) => Branch(c, t, ff) and the mirror image
func ruleRedundantInner(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	b := n.(dataflow.Branch)
	if inner, ok := b.False.(dataflow.Branch); ok && dataflow.Equal(inner.Cond, b.Cond) {
		return dataflow.Branch{Cond: b.Cond, True: b.True, False: inner.False}, true
	}
	if inner, ok := b.True.(dataflow.Branch); ok && dataflow.Equal(inner.Cond, b.Cond) {
		return dataflow.Branch{Cond: b.Cond, True: inner.True, False: b.False}, true
	}
	return nil, false
}

// --- concat rules ---

func ruleFlattenConcat(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	c := n.(dataflow.Concat)
	nested := false
	for _, x := range c.Nodes {
		if _, ok := x.(dataflow.Concat); ok {
			nested = true
		}
	}
	if !nested {
		return nil, false
	}
	var out []dataflow.Node
	for _, x := range c.Nodes {
		if inner, ok := x.(dataflow.Concat); ok {
			out = append(out, inner.Nodes...)
		} else {
			out = append(out, x)
		}
	}
	return dataflow.Concat{Nodes: out}, true
}

// selectRange views a part-select or bit-select with constant bounds as
// (var, hi, lo) with hi and lo counted from the least significant bit of var
func (o *Optimizer) selectRange(n dataflow.Node) (dataflow.Node, int64, int64, bool) {
	switch x := n.(type) {
	case dataflow.Partselect:
		m, ok1 := constOf(x.MSB)
		l, ok2 := constOf(x.LSB)
		if ok1 && ok2 {
			lay := o.layoutOf(x.Var)
			hi, lo := lay.bit(m.Int64()), lay.bit(l.Int64())
			return x.Var, max(hi, lo), min(hi, lo), true
		}
	case dataflow.Pointer:
		if t, ok := x.Var.(dataflow.Terminal); ok {
			if term, ok := o.terms.Get(t.Name); ok && len(term.Dims) > 0 {
				return nil, 0, 0, false
			}
		}
		if p, ok := constOf(x.Ptr); ok {
			b := o.layoutOf(x.Var).bit(p.Int64())
			return x.Var, b, b, true
		}
	}
	return nil, 0, 0, false
}

// {a[7:4], a[3:0]} => a[7:0]; adjacent constants are joined
func ruleMergeSelects(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	c := n.(dataflow.Concat)
	for i := 0; i+1 < len(c.Nodes); i++ {
		var merged dataflow.Node
		if v1, m1, l1, ok := o.selectRange(c.Nodes[i]); ok {
			if v2, m2, l2, ok := o.selectRange(c.Nodes[i+1]); ok && dataflow.Equal(v1, v2) && l1 == m2+1 {
				merged = o.BitSelect(v1, m1, l2)
			}
		}
		a, ok1 := constOf(c.Nodes[i])
		b, ok2 := constOf(c.Nodes[i+1])
		if ok1 && ok2 {
			merged = concatValues([]dataflow.EvalValue{a, b})
		}
		if merged != nil {
			out := append([]dataflow.Node(nil), c.Nodes[:i]...)
			out = append(out, merged)
			out = append(out, c.Nodes[i+2:]...)
			return dataflow.Concat{Nodes: out}, true
		}
	}
	return nil, false
}

// {Branch(c, a, b), Branch(c, d, e)} => Branch(c, {a, d}, {b, e})
func ruleConcatBranches(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	c := n.(dataflow.Concat)
	if len(c.Nodes) < 2 {
		return nil, false
	}
	var cond dataflow.Node
	var ts, fs []dataflow.Node
	for _, x := range c.Nodes {
		b, ok := x.(dataflow.Branch)
		if !ok || b.True == nil || b.False == nil {
			return nil, false
		}
		if cond == nil {
			cond = b.Cond
		} else if !dataflow.Equal(cond, b.Cond) {
			return nil, false
		}
		ts = append(ts, b.True)
		fs = append(fs, b.False)
	}
	return dataflow.Branch{Cond: cond, True: dataflow.Concat{Nodes: ts}, False: dataflow.Concat{Nodes: fs}}, true
}

func ruleSingleConcat(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	c := n.(dataflow.Concat)
	if len(c.Nodes) == 1 {
		return c.Nodes[0], true
	}
	return nil, false
}

// --- select rules ---

// {a, b}[m:l] => the overlapping parts of a and b, padded with x beyond the top
func ruleSelectConcat(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	p := n.(dataflow.Partselect)
	c, ok := p.Var.(dataflow.Concat)
	if !ok {
		return nil, false
	}
	mv, ok1 := constOf(p.MSB)
	lv, ok2 := constOf(p.LSB)
	if !ok1 || !ok2 {
		return nil, false
	}
	msb, lsb := mv.Int64(), lv.Int64()
	if msb < lsb || lsb < 0 {
		return nil, false
	}
	widths := make([]int64, len(c.Nodes))
	var total int64
	for i, x := range c.Nodes {
		w := o.Width(x)
		if w == 0 {
			return nil, false
		}
		widths[i] = int64(w)
		total += int64(w)
	}
	var parts []dataflow.Node
	if msb >= total {
		parts = append(parts, dataflow.Undefined{Width: int(msb - max(total, lsb) + 1)})
	}
	off := total
	for i, x := range c.Nodes {
		hi := off - 1
		lo := off - widths[i]
		off = lo
		top, bot := min(hi, msb), max(lo, lsb)
		if top < bot {
			continue
		}
		if top == hi && bot == lo {
			parts = append(parts, x)
		} else {
			parts = append(parts, o.BitSelect(x, top-lo, bot-lo))
		}
	}
	if len(parts) == 1 {
		return parts[0], true
	}
	return dataflow.Concat{Nodes: parts}, true
}

// a[15:8][3:0] => a[11:8], the outer bounds counted from the inner slice
func ruleSelectOfSelect(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	p := n.(dataflow.Partselect)
	inner, ok := p.Var.(dataflow.Partselect)
	if !ok {
		return nil, false
	}
	v, hi, lo, ok := o.selectRange(inner)
	m, ok1 := constOf(p.MSB)
	l, ok2 := constOf(p.LSB)
	if !ok || !ok1 || !ok2 {
		return nil, false
	}
	top, bot := max(m.Int64(), l.Int64()), min(m.Int64(), l.Int64())
	if bot < 0 || lo+top > hi {
		return nil, false
	}
	return o.BitSelect(v, lo+top, lo+bot), true
}

// x[msb:lsb] over the whole declared range of x => x
func ruleFullSelect(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	p := n.(dataflow.Partselect)
	t, ok := p.Var.(dataflow.Terminal)
	if !ok {
		return nil, false
	}
	term, ok := o.terms.Get(t.Name)
	if !ok || len(term.Dims) > 0 {
		return nil, false
	}
	m, ok1 := constOf(p.MSB)
	l, ok2 := constOf(p.LSB)
	if !ok1 || !ok2 {
		return nil, false
	}
	if term.MSB == nil {
		if m.Int64() == 0 && l.Int64() == 0 && o.TermWidth(term) == 1 {
			return t, true
		}
		return nil, false
	}
	tm, ok1 := o.EvalInt(term.MSB)
	tl, ok2 := o.EvalInt(term.LSB)
	if ok1 && ok2 && tm == m.Int64() && tl == l.Int64() {
		return t, true
	}
	return nil, false
}

// {a, b}[k] => {a, b}[k:k]
func rulePointerConcat(o *Optimizer, n dataflow.Node) (dataflow.Node, bool) {
	p := n.(dataflow.Pointer)
	if _, ok := p.Var.(dataflow.Concat); !ok {
		return nil, false
	}
	k, ok := constOf(p.Ptr)
	if !ok {
		return nil, false
	}
	return o.BitSelect(p.Var, k.Int64(), k.Int64()), true
}
