package elab

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/vast"
)

// target is one destination slice of an assignment with the part of the
// right-hand side it receives
type target struct {
	dest dataflow.ScopeChain
	msb  dataflow.Node
	lsb  dataflow.Node
	ptr  dataflow.Node
	tree dataflow.Node
}

func (t target) bind(always *dataflow.AlwaysInfo, kind dataflow.BindKind) *dataflow.Bind {
	return &dataflow.Bind{Dest: t.dest, MSB: t.msb, LSB: t.lsb, Ptr: t.ptr, Tree: t.tree, Always: always, Kind: kind}
}

func (t target) fullWidth() bool {
	return t.msb == nil && t.lsb == nil && t.ptr == nil
}

func unparen(x vast.Expr) vast.Expr {
	for {
		p, ok := x.(vast.Paren)
		if !ok {
			return x
		}
		x = p.X
	}
}

// targets splits an assignment into destination slices. A concatenation on
// the left hands each element its bits of tree, least significant last.
func (e *Elaborator) targets(lhs vast.Expr, tree dataflow.Node) []target {
	switch l := unparen(lhs).(type) {
	case vast.Ident, vast.HierRef:
		return []target{{dest: e.destName(l), tree: tree}}
	case vast.Index:
		if inner, ok := unparen(l.X).(vast.Index); ok {
			// mem[i][b]: a bit of an array element
			bit := e.opt.Optimize(e.expr(l.Index))
			return []target{{dest: e.destName(inner.X), ptr: e.opt.Optimize(e.expr(inner.Index)), msb: bit, lsb: bit, tree: tree}}
		}
		return []target{{dest: e.destName(l.X), ptr: e.opt.Optimize(e.expr(l.Index)), tree: tree}}
	case vast.PartSelect:
		t := target{msb: e.opt.Optimize(e.expr(l.MSB)), lsb: e.opt.Optimize(e.expr(l.LSB)), tree: tree}
		if inner, ok := unparen(l.X).(vast.Index); ok {
			t.dest, t.ptr = e.destName(inner.X), e.opt.Optimize(e.expr(inner.Index))
		} else {
			t.dest = e.destName(l.X)
		}
		return []target{t}
	case vast.IndexedPartSelect:
		msb, lsb := e.indexedRange(l)
		return []target{{dest: e.destName(l.X), msb: e.opt.Optimize(msb), lsb: e.opt.Optimize(lsb), tree: tree}}
	case vast.Concat:
		var out []target
		cursor := 0
		for i := len(l.Items) - 1; i >= 0; i-- {
			item := l.Items[i]
			w := e.opt.Width(e.expr(item))
			if w == 0 {
				dataflow.Fail(dataflow.Formatf("cannot determine the width of %s in %s", vast.ExprString(item), vast.ExprString(lhs)))
			}
			part := e.opt.Optimize(e.opt.BitSelect(tree, int64(cursor+w-1), int64(cursor)))
			out = append(e.targets(item, part), out...)
			cursor += w
		}
		return out
	}
	dataflow.Fail(dataflow.Formatf("illegal assignment target %s", vast.ExprString(lhs)))
	return nil
}

func (e *Elaborator) destName(x vast.Expr) dataflow.ScopeChain {
	switch n := unparen(x).(type) {
	case vast.Ident:
		if chain, ok := e.frames.Lookup(e.cur, n.Name); ok {
			return chain
		}
		return e.implicitNet(n.Name)
	case vast.HierRef:
		return e.hierName(n)
	}
	dataflow.Fail(dataflow.Formatf("illegal assignment target %s", vast.ExprString(x)))
	return nil
}

// --- procedural assignment ---

// assign elaborates a procedural assignment in the current frame
func (e *Elaborator) assign(lhs, rhs, delay vast.Expr, blocking bool) {
	proc := e.frames.ProcessOf(e.cur)
	if !blocking && proc != nil && proc.Kind == frames.FunctionCall {
		dataflow.Fail(dataflow.Formatf("non-blocking assignment to %s in a function", vast.ExprString(lhs)))
	}
	tree := e.expr(rhs)
	if delay != nil {
		tree = dataflow.Delay{Inner: tree}
	}
	for _, t := range e.targets(lhs, tree) {
		e.assignTarget(t, blocking)
	}
}

// assignTarget records one procedural write. Integer and genvar variables,
// and every variable of a function body, are tracked as constants while
// their value folds, so loops unroll and constant functions evaluate.
func (e *Elaborator) assignTarget(t target, blocking bool) {
	term, _ := e.terms.Get(t.dest)
	if blocking && t.fullWidth() && e.tracked(t.dest, term) {
		v, ok := e.opt.Eval(t.tree)
		if ok && len(e.frames.Conditions(e.cur)) == 0 {
			e.setProcConst(t.dest, e.sizeTo(v, term))
			e.frames.DropRename(e.cur, t.dest.String())
			return
		}
		e.setProcUnknown(t.dest)
	}
	if !e.bind {
		return
	}
	e.emit(t, term, blocking)
}

func (e *Elaborator) tracked(dest dataflow.ScopeChain, term *dataflow.Term) bool {
	if term == nil {
		return false
	}
	if term.Types.Any(dataflow.TypeInteger | dataflow.TypeGenvar) {
		return true
	}
	proc := e.frames.ProcessOf(e.cur)
	if proc == nil || proc.Kind != frames.FunctionCall {
		return false
	}
	return dest.HasPrefix(proc.Name)
}

func (e *Elaborator) sizeTo(v dataflow.EvalValue, term *dataflow.Term) dataflow.EvalValue {
	if v.IsFloat || v.IsString || term == nil {
		return v
	}
	if term.Types.Any(dataflow.TypeReal) {
		return v
	}
	return v.Resize(e.opt.TermWidth(term), term.Signed)
}

func (e *Elaborator) setProcConst(chain dataflow.ScopeChain, v dataflow.EvalValue) {
	e.saveProcConst(chain)
	e.consts.Set(chain, v)
}

func (e *Elaborator) setProcUnknown(chain dataflow.ScopeChain) {
	if _, st := e.consts.Lookup(chain); st == dataflow.Absent && e.procSaved == nil {
		return
	}
	e.saveProcConst(chain)
	e.consts.SetUnknown(chain)
}

func (e *Elaborator) saveProcConst(chain dataflow.ScopeChain) {
	if e.procSaved == nil {
		return
	}
	key := chain.String()
	if _, ok := e.procSaved[key]; ok {
		return
	}
	v, st := e.consts.LookupKey(key)
	e.procSaved[key] = savedConst{value: v, state: st}
}

func (e *Elaborator) restoreProcConsts() {
	for key, s := range e.procSaved {
		e.consts.Restore(key, s.value, s.state)
	}
}

// emit merges a write into the pending bind of its process. The pending
// tree holds one branch level per enclosing condition, so successive writes
// under different conditions share a single canonical bind.
func (e *Elaborator) emit(t target, term *dataflow.Term, blocking bool) {
	proc := e.frames.ProcessOf(e.cur)
	if proc == nil {
		e.binds.Add(t.bind(nil, dataflow.BindAssign))
		return
	}
	kind := dataflow.BindNonblocking
	if blocking {
		kind = dataflow.BindBlocking
	}
	var always *dataflow.AlwaysInfo
	if proc.Kind != frames.FunctionCall {
		always = proc.Always
	}
	conds := e.frames.Conditions(e.cur)
	b := t.bind(always, kind)
	var prev dataflow.Node
	if p := proc.Pending(b); p != nil {
		prev = p.Tree
	}
	b.Tree = mergeBranch(prev, conds, t.tree)
	proc.SetPending(b)
	if blocking {
		e.rename(t, term, conds, always, proc)
	}
}

// mergeBranch places tree under the condition path conds inside prev. Where
// prev already branches on the next condition the walk descends into the
// matching arm; elsewhere a new branch keeps prev as the other arm.
func mergeBranch(prev dataflow.Node, conds []frames.Condition, tree dataflow.Node) dataflow.Node {
	if len(conds) == 0 {
		return tree
	}
	c := conds[0]
	if b, ok := prev.(dataflow.Branch); ok && dataflow.Equal(b.Cond, c.Cond) {
		if c.True {
			return dataflow.Branch{Cond: b.Cond, True: mergeBranch(b.True, conds[1:], tree), False: b.False}
		}
		return dataflow.Branch{Cond: b.Cond, True: b.True, False: mergeBranch(b.False, conds[1:], tree)}
	}
	if c.True {
		return dataflow.Branch{Cond: c.Cond, True: mergeBranch(prev, conds[1:], tree), False: prev}
	}
	return dataflow.Branch{Cond: c.Cond, True: prev, False: mergeBranch(prev, conds[1:], tree)}
}

// wrapBranch is the value after a conditional write: tree on the
// condition path, old everywhere else
func wrapBranch(conds []frames.Condition, tree, old dataflow.Node) dataflow.Node {
	if len(conds) == 0 {
		return tree
	}
	c := conds[0]
	inner := wrapBranch(conds[1:], tree, old)
	if c.True {
		return dataflow.Branch{Cond: c.Cond, True: inner, False: old}
	}
	return dataflow.Branch{Cond: c.Cond, True: old, False: inner}
}

// rename gives the value after a blocking write its own term, which later
// reads in the same process refer to
func (e *Elaborator) rename(t target, term *dataflow.Term, conds []frames.Condition, always *dataflow.AlwaysInfo, proc *frames.Frame) {
	key := t.dest.String()
	if term != nil && len(term.Dims) > 0 {
		log.Warnf("blocking write to array %s is not renamed; later reads see the stored element", t.dest)
		return
	}
	if !t.fullWidth() {
		e.frames.DropRename(e.cur, key)
		return
	}
	var old dataflow.Node = dataflow.Terminal{Name: t.dest}
	if r, ok := e.frames.ReadRename(e.cur, key); ok {
		old = dataflow.Terminal{Name: r}
	}
	name := t.dest.Parent().Signal(fmt.Sprintf("%s_rn%d", t.dest.Last().Name, e.renames))
	e.renames++
	rn := &dataflow.Term{Name: name, Types: dataflow.TypeRename}
	if term != nil {
		rn.MSB, rn.LSB, rn.Signed = term.MSB, term.LSB, term.Signed
		if term.MSB == nil && term.Types.Any(dataflow.TypeInteger) {
			rn.MSB = dataflow.IntValue(dataflow.DefaultWidth-1, dataflow.DefaultWidth, true)
			rn.LSB = dataflow.IntValue(0, dataflow.DefaultWidth, true)
		}
	}
	e.terms.Add(rn)
	table := e.binds
	if proc.Kind == frames.Initial {
		table = e.initials
	}
	table.Add(&dataflow.Bind{Dest: name, Tree: wrapBranch(conds, t.tree, old), Always: always, Kind: dataflow.BindBlocking})
	e.cur.Renames[key] = name
}
