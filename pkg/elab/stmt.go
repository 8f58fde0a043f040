package elab

import (
	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/vast"
)

func (e *Elaborator) always(a vast.Always) {
	var info *dataflow.AlwaysInfo
	if e.bind {
		info = e.alwaysInfo(a)
	} else {
		e.checkSens(a)
	}
	label := dataflow.ScopeLabel{Name: e.cur.NextLabel("always"), Kind: dataflow.KindAlways}
	f, parent := e.enter(label, frames.Always)
	f.Always = info
	e.process(f, a.Body)
	e.leave(f, parent)
}

func (e *Elaborator) initial(in vast.Initial) {
	label := dataflow.ScopeLabel{Name: e.cur.NextLabel("initial"), Kind: dataflow.KindInitial}
	f, parent := e.enter(label, frames.Initial)
	e.process(f, in.Body)
	e.leave(f, parent)
}

// process walks the body of a process frame that is already current and
// hands its pending binds to the result
func (e *Elaborator) process(f *frames.Frame, body vast.Stmt) {
	saved := e.procSaved
	e.procSaved = make(map[string]savedConst)
	e.stmt(body)
	e.flush(f)
	e.restoreProcConsts()
	e.procSaved = saved
}

func (e *Elaborator) flush(f *frames.Frame) {
	table := e.binds
	if f.Kind == frames.Initial {
		table = e.initials
	}
	for _, b := range f.TakePending() {
		table.Add(b)
	}
}

func (e *Elaborator) stmts(list []vast.Stmt) {
	for _, s := range list {
		e.stmt(s)
	}
}

func (e *Elaborator) stmt(s vast.Stmt) {
	switch x := s.(type) {
	case nil, vast.NullStmt:
	case vast.Block:
		e.block(x)
	case vast.If:
		var els func()
		if x.Else != nil {
			els = func() { e.stmt(x.Else) }
		}
		e.branch(e.expr(x.Cond), func() { e.stmt(x.Then) }, els)
	case vast.Case:
		e.caseStmt(x)
	case vast.For:
		e.forStmt(x)
	case vast.While:
		e.whileStmt(x)
	case vast.RepeatStmt:
		e.repeatStmt(x)
	case vast.BlockingAssign:
		e.assign(x.LHS, x.RHS, x.Delay, true)
	case vast.NonblockingAssign:
		e.assign(x.LHS, x.RHS, x.Delay, false)
	case vast.DelayStmt:
		e.stmt(x.Body)
	case vast.EventStmt:
		e.stmt(x.Body)
	case vast.TaskCall:
		e.taskCall(x)
	case vast.SysTaskCall:
		log.Debugf("system task %s ignored", x.Name)
	case vast.Forever, vast.Wait, vast.Fork, vast.Disable:
		if e.bind {
			log.Debugf("%T statement in %s ignored", x, e.cur.Name)
		}
	default:
		dataflow.Fail(dataflow.Implementationf("unexpected statement %T", s))
	}
}

// block opens a scope for named blocks and blocks with local declarations;
// a plain begin ... end only sequences its statements
func (e *Elaborator) block(b vast.Block) {
	if b.Name == "" && len(b.Decls) == 0 {
		e.stmts(b.Stmts)
		return
	}
	name := b.Name
	if name == "" {
		name = e.cur.NextLabel("block")
	}
	f, parent := e.enter(dataflow.ScopeLabel{Name: name, Kind: dataflow.KindBlock}, frames.Block)
	e.declareItems(b.Decls)
	e.resolveItems(b.Decls)
	e.stmts(b.Stmts)
	e.leave(f, parent)
}

// branch walks then and els under cond. A condition that folds to a
// constant selects its arm directly.
func (e *Elaborator) branch(cond dataflow.Node, then, els func()) {
	if v, ok := e.opt.Eval(cond); ok {
		switch {
		case v.IsTrue():
			then()
		case els != nil:
			els()
		}
		return
	}
	name := e.cur.NextLabel("if")
	f, parent := e.enter(dataflow.ScopeLabel{Name: name, Kind: dataflow.KindIf}, frames.IfThen)
	f.Cond = cond
	then()
	e.leave(f, parent)
	if els == nil {
		return
	}
	f, parent = e.enter(dataflow.ScopeLabel{Name: name + "_ELSE", Kind: dataflow.KindIf}, frames.IfElse)
	f.Cond = cond
	els()
	e.leave(f, parent)
}

// caseStmt becomes a chain of branches comparing the case expression with
// each arm's labels; the default arm is the final else wherever it appears
func (e *Elaborator) caseStmt(c vast.Case) {
	disc := e.expr(c.Expr)
	var arms []vast.CaseItem
	var dflt vast.Stmt
	hasDefault := false
	for _, arm := range c.Items {
		if arm.Exprs == nil {
			dflt, hasDefault = arm.Body, true
			continue
		}
		arms = append(arms, arm)
	}
	if c.Kind != vast.CaseNormal && e.bind {
		log.Debugf("%s in %s compared as case equality", c.Kind, e.cur.Name)
	}
	e.caseArms(disc, arms, dflt, hasDefault)
}

func (e *Elaborator) caseArms(disc dataflow.Node, arms []vast.CaseItem, dflt vast.Stmt, hasDefault bool) {
	if len(arms) == 0 {
		if hasDefault {
			e.stmt(dflt)
		}
		return
	}
	arm := arms[0]
	var cond dataflow.Node
	for _, x := range arm.Exprs {
		eq := dataflow.Operator{Op: dataflow.Eq, Operands: []dataflow.Node{disc, e.expr(x)}}
		if cond == nil {
			cond = eq
			continue
		}
		cond = dataflow.Operator{Op: dataflow.Lor, Operands: []dataflow.Node{cond, eq}}
	}
	var els func()
	if len(arms) > 1 || hasDefault {
		els = func() { e.caseArms(disc, arms[1:], dflt, hasDefault) }
	}
	e.branch(cond, func() { e.stmt(arm.Body) }, els)
}

// loopAssign runs a for-loop header assignment, whose value must fold
func (e *Elaborator) loopAssign(a vast.Assignment) {
	if a.Nonblocking {
		dataflow.Fail(dataflow.Formatf("non-blocking assignment in for statement: %s", vast.ExprString(a.LHS)))
	}
	chain := e.loopVar(a.LHS)
	v, ok := e.opt.Eval(e.expr(a.RHS))
	if !ok {
		dataflow.Fail(dataflow.Formatf("for statement assigns a non-constant value to %s", chain))
	}
	term, _ := e.terms.Get(chain)
	e.setProcConst(chain, e.sizeTo(v, term))
	e.frames.DropRename(e.cur, chain.String())
}

func (e *Elaborator) loopCond(cond vast.Expr, what string) bool {
	v, ok := e.opt.Eval(e.expr(cond))
	if !ok {
		dataflow.Fail(dataflow.Formatf("%s condition is not constant: %s", what, vast.ExprString(cond)))
	}
	return v.IsTrue()
}

// forStmt unrolls a procedural for loop; each iteration is a scope labelled
// with the loop variable's value
func (e *Elaborator) forStmt(s vast.For) {
	if s.Init.Nonblocking || s.Step.Nonblocking {
		dataflow.Fail(dataflow.Formatf("non-blocking assignment in for statement"))
	}
	e.loopAssign(s.Init)
	chain := e.loopVar(s.Init.LHS)
	name := e.cur.NextLabel("for")
	for iter := 0; e.loopCond(s.Cond, "for"); iter++ {
		if iter >= maxUnroll {
			dataflow.Fail(dataflow.Formatf("for loop over %s does not terminate", chain))
		}
		v, _ := e.consts.Lookup(chain)
		label := dataflow.ScopeLabel{Name: name, Kind: dataflow.KindFor, Loop: int(v.Int64()), HasLoop: true}
		f, parent := e.enter(label, frames.For)
		f.Iter = chain
		e.stmt(s.Body)
		e.leave(f, parent)
		e.loopAssign(s.Step)
	}
}

func (e *Elaborator) whileStmt(s vast.While) {
	name := e.cur.NextLabel("while")
	for iter := 0; e.loopCond(s.Cond, "while"); iter++ {
		if iter >= maxUnroll {
			dataflow.Fail(dataflow.Formatf("while loop in %s does not terminate", e.cur.Name))
		}
		label := dataflow.ScopeLabel{Name: name, Kind: dataflow.KindWhile, Loop: iter, HasLoop: true}
		f, parent := e.enter(label, frames.While)
		e.stmt(s.Body)
		e.leave(f, parent)
	}
}

func (e *Elaborator) repeatStmt(s vast.RepeatStmt) {
	n, ok := e.opt.EvalInt(e.expr(s.Count))
	if !ok {
		if e.bind {
			log.Warnf("repeat count %s in %s is not constant; body ignored", vast.ExprString(s.Count), e.cur.Name)
		}
		return
	}
	if n > maxUnroll {
		dataflow.Fail(dataflow.Formatf("repeat count %d in %s is too large", n, e.cur.Name))
	}
	name := e.cur.NextLabel("repeat")
	for i := 0; i < int(n); i++ {
		label := dataflow.ScopeLabel{Name: name, Kind: dataflow.KindWhile, Loop: i, HasLoop: true}
		f, parent := e.enter(label, frames.While)
		e.stmt(s.Body)
		e.leave(f, parent)
	}
}
