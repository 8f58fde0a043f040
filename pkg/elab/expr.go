package elab

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/vast"
)

var unaryOps = map[vast.UnaryOp]dataflow.Op{
	vast.OpPlus:    dataflow.Uplus,
	vast.OpNeg:     dataflow.Uminus,
	vast.OpLNot:    dataflow.Ulnot,
	vast.OpNot:     dataflow.Unot,
	vast.OpRedAnd:  dataflow.Uand,
	vast.OpRedNand: dataflow.Unand,
	vast.OpRedOr:   dataflow.Uor,
	vast.OpRedNor:  dataflow.Unor,
	vast.OpRedXor:  dataflow.Uxor,
	vast.OpRedXnor: dataflow.Uxnor,
}

var binaryOps = map[vast.BinaryOp]dataflow.Op{
	vast.OpPower:  dataflow.Power,
	vast.OpMul:    dataflow.Times,
	vast.OpDiv:    dataflow.Divide,
	vast.OpMod:    dataflow.Mod,
	vast.OpAdd:    dataflow.Plus,
	vast.OpSub:    dataflow.Minus,
	vast.OpShl:    dataflow.Sll,
	vast.OpShr:    dataflow.Srl,
	vast.OpAShl:   dataflow.Sla,
	vast.OpAShr:   dataflow.Sra,
	vast.OpLt:     dataflow.LessThan,
	vast.OpGt:     dataflow.GreaterThan,
	vast.OpLe:     dataflow.LessEq,
	vast.OpGe:     dataflow.GreaterEq,
	vast.OpEq:     dataflow.Eq,
	vast.OpNe:     dataflow.NotEq,
	vast.OpCaseEq: dataflow.Eql,
	vast.OpCaseNe: dataflow.NotEql,
	vast.OpAnd:    dataflow.And,
	vast.OpXor:    dataflow.Xor,
	vast.OpXnor:   dataflow.Xnor,
	vast.OpOr:     dataflow.Or,
	vast.OpLAnd:   dataflow.Land,
	vast.OpLOr:    dataflow.Lor,
}

// expr translates an expression in the current scope
func (e *Elaborator) expr(x vast.Expr) dataflow.Node {
	switch x := x.(type) {
	case nil:
		return nil
	case vast.Paren:
		return e.expr(x.X)
	case vast.Ident:
		return e.ident(x.Name)
	case vast.HierRef:
		return e.reference(e.hierName(x))
	case vast.IntConst:
		return dataflow.IntConst{Literal: x.Literal}
	case vast.FloatConst:
		return dataflow.FloatConst{Literal: x.Literal}
	case vast.StringConst:
		return dataflow.StringConst{Value: x.Value}
	case vast.Unary:
		return dataflow.Operator{Op: unaryOps[x.Op], Operands: []dataflow.Node{e.expr(x.X)}}
	case vast.Binary:
		return dataflow.Operator{Op: binaryOps[x.Op], Operands: []dataflow.Node{e.expr(x.X), e.expr(x.Y)}}
	case vast.Cond:
		return dataflow.Branch{Cond: e.expr(x.Cond), True: e.expr(x.Then), False: e.expr(x.Else)}
	case vast.Concat:
		return dataflow.Concat{Nodes: e.exprs(x.Items)}
	case vast.Repeat:
		n, ok := e.opt.EvalInt(e.expr(x.Count))
		if !ok || n < 0 {
			dataflow.Fail(dataflow.Formatf("replication count is not constant: %s", vast.ExprString(x.Count)))
		}
		items := e.exprs(x.Items)
		nodes := make([]dataflow.Node, 0, int(n)*len(items))
		for i := int64(0); i < n; i++ {
			nodes = append(nodes, items...)
		}
		return dataflow.Concat{Nodes: nodes}
	case vast.Index:
		return dataflow.Pointer{Var: e.expr(x.X), Ptr: e.expr(x.Index)}
	case vast.PartSelect:
		return dataflow.Partselect{Var: e.expr(x.X), MSB: e.expr(x.MSB), LSB: e.expr(x.LSB)}
	case vast.IndexedPartSelect:
		msb, lsb := e.indexedRange(x)
		return dataflow.Partselect{Var: e.expr(x.X), MSB: msb, LSB: lsb}
	case vast.Call:
		return e.functionCall(x)
	case vast.SysCall:
		return dataflow.Syscall{Name: strings.TrimPrefix(x.Name, "$"), Args: e.exprs(x.Args)}
	}
	dataflow.Fail(dataflow.Implementationf("unexpected expression %T", x))
	return nil
}

func (e *Elaborator) exprs(xs []vast.Expr) []dataflow.Node {
	out := make([]dataflow.Node, len(xs))
	for i, x := range xs {
		out[i] = e.expr(x)
	}
	return out
}

// indexedRange turns base +: width into msb and lsb
func (e *Elaborator) indexedRange(x vast.IndexedPartSelect) (dataflow.Node, dataflow.Node) {
	base := e.expr(x.Base)
	span := dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{
		e.expr(x.Width), dataflow.IntValue(1, dataflow.DefaultWidth, true),
	}}
	var hi, lo dataflow.Node
	if x.Down {
		hi, lo = base, dataflow.Operator{Op: dataflow.Minus, Operands: []dataflow.Node{base, span}}
	} else {
		hi, lo = dataflow.Operator{Op: dataflow.Plus, Operands: []dataflow.Node{base, span}}, base
	}
	// on an ascending range the lower index is the more significant
	if e.opt.Ascending(e.expr(x.X)) {
		return lo, hi
	}
	return hi, lo
}

func (e *Elaborator) ident(name string) dataflow.Node {
	chain, ok := e.frames.Lookup(e.cur, name)
	if !ok {
		chain = e.implicitNet(name)
	}
	return e.reference(chain)
}

// reference reads a signal: the latest blocking rename in the current
// process, a tracked procedural constant, or the signal itself
func (e *Elaborator) reference(chain dataflow.ScopeChain) dataflow.Node {
	if r, ok := e.frames.ReadRename(e.cur, chain.String()); ok {
		return dataflow.Terminal{Name: r}
	}
	t := dataflow.Terminal{Name: chain}
	term, ok := e.terms.Get(chain)
	if !ok || term.Types.Any(dataflow.TypeParameter|dataflow.TypeLocalparam) {
		return t
	}
	if _, st := e.consts.Lookup(chain); st == dataflow.Known {
		return e.opt.Fold(t)
	}
	return t
}

// implicitNet handles a name with no declaration: outside the declaration
// walk it becomes a one-bit wire of the module, unless the module disabled
// implicit nets
func (e *Elaborator) implicitNet(name string) dataflow.ScopeChain {
	m := e.frames.ModuleOf(e.cur)
	chain := m.Name.Signal(name)
	if !e.bind {
		return chain
	}
	if m.Nettype == "none" {
		dataflow.Fail(dataflow.Definitionf("%s is not declared in %s", name, m.Name))
	}
	log.Warnf("%s is not declared; assuming an implicit wire", chain)
	e.terms.Add(&dataflow.Term{Name: chain, Types: dataflow.TypeWire})
	m.Declare(name)
	return chain
}

// hierName resolves a dotted reference against the frames enclosing the
// current one
func (e *Elaborator) hierName(h vast.HierRef) dataflow.ScopeChain {
	rel := make(dataflow.ScopeChain, 0, len(h.Parts))
	for i, p := range h.Parts {
		label := dataflow.ScopeLabel{Name: p.Name, Kind: dataflow.KindAny}
		if i == len(h.Parts)-1 {
			label.Kind = dataflow.KindSignal
		}
		if p.Index != nil {
			n, ok := e.opt.EvalInt(e.expr(p.Index))
			if !ok {
				dataflow.Fail(dataflow.Formatf("scope index is not constant in %s", vast.ExprString(h)))
			}
			label.Loop, label.HasLoop = int(n), true
		}
		rel = append(rel, label)
	}
	chain, ok := e.frames.Search(e.cur, rel, func(c dataflow.ScopeChain) bool {
		_, ok := e.terms.Get(c)
		return ok
	})
	if ok {
		return chain
	}
	if e.bind {
		dataflow.Fail(dataflow.Definitionf("%s is not declared", vast.ExprString(h)))
	}
	// declared further down the hierarchy, seen in the second walk
	return e.frames.ModuleOf(e.cur).Name.Concat(rel)
}

// --- subprograms ---

type port struct {
	name string
	dir  vast.DeclKind
}

func subprogramPorts(decls []vast.Decl) []port {
	var out []port
	for _, d := range decls {
		dir := vast.DeclInput
		for _, k := range d.Kinds {
			if k.IsPort() {
				dir = k
			}
		}
		for _, n := range d.Names {
			out = append(out, port{name: n.Name, dir: dir})
		}
	}
	return out
}

// functionCall elaborates a call in its own frame: arguments are assigned to
// the inputs, the body runs like a process, and the value of the return
// variable at the end is the result
func (e *Elaborator) functionCall(c vast.Call) dataflow.Node {
	fn, _, ok := e.frames.LookupFunction(e.cur, c.Name)
	if !ok {
		dataflow.Fail(dataflow.Definitionf("function %s is not declared", c.Name))
	}
	ports := subprogramPorts(fn.Ports)
	if len(ports) != len(c.Args) {
		dataflow.Fail(dataflow.Formatf("function %s takes %d arguments, %d given", c.Name, len(ports), len(c.Args)))
	}
	e.callDepth++
	defer func() { e.callDepth-- }()
	if e.callDepth > maxCallDepth {
		dataflow.Fail(dataflow.Formatf("calls of %s nest too deep", c.Name))
	}
	args := e.exprs(c.Args)

	label := dataflow.ScopeLabel{Name: e.cur.NextLabel(c.Name + "_call"), Kind: dataflow.KindFunctionCall}
	f, parent := e.enter(label, frames.FunctionCall)
	saved := e.procSaved
	e.procSaved = make(map[string]savedConst)

	ret := f.Name.Signal(fn.Name)
	rt := &dataflow.Term{Name: ret, Types: dataflow.TypeReg, Signed: fn.Signed}
	if fn.Integer {
		rt.Types, rt.Signed = dataflow.TypeInteger, true
	}
	if fn.Range != nil {
		rt.MSB, rt.LSB = e.constRange(*fn.Range)
	}
	e.terms.Add(rt)
	f.Declare(fn.Name)
	for _, d := range fn.Ports {
		e.declare(d)
	}
	e.declareItems(fn.Decls)
	e.resolveItems(fn.Decls)

	for i, p := range ports {
		e.assignTarget(target{dest: f.Name.Signal(p.name), tree: args[i]}, true)
	}
	e.stmt(fn.Body)
	result := e.reference(ret)

	e.flush(f)
	e.restoreProcConsts()
	e.procSaved = saved
	e.leave(f, parent)
	return result
}

// taskCall runs a task body in its own frame within the calling process;
// outputs are copied back to the connected arguments
func (e *Elaborator) taskCall(c vast.TaskCall) {
	tk, _, ok := e.frames.LookupTask(e.cur, c.Name)
	if !ok {
		dataflow.Fail(dataflow.Definitionf("task %s is not declared", c.Name))
	}
	ports := subprogramPorts(tk.Ports)
	if len(ports) != len(c.Args) {
		dataflow.Fail(dataflow.Formatf("task %s takes %d arguments, %d given", c.Name, len(ports), len(c.Args)))
	}
	e.callDepth++
	defer func() { e.callDepth-- }()
	if e.callDepth > maxCallDepth {
		dataflow.Fail(dataflow.Formatf("calls of %s nest too deep", c.Name))
	}
	args := make([]dataflow.Node, len(c.Args))
	for i, p := range ports {
		if p.dir != vast.DeclOutput {
			args[i] = e.expr(c.Args[i])
		}
	}

	label := dataflow.ScopeLabel{Name: e.cur.NextLabel(c.Name + "_call"), Kind: dataflow.KindTaskCall}
	f, parent := e.enter(label, frames.TaskCall)
	for _, d := range tk.Ports {
		e.declare(d)
	}
	e.declareItems(tk.Decls)
	e.resolveItems(tk.Decls)
	for i, p := range ports {
		if p.dir != vast.DeclOutput {
			e.assignTarget(target{dest: f.Name.Signal(p.name), tree: args[i]}, true)
		}
	}
	e.stmt(tk.Body)

	outs := make([]dataflow.Node, len(ports))
	for i, p := range ports {
		if p.dir != vast.DeclInput {
			outs[i] = e.reference(f.Name.Signal(p.name))
		}
	}
	e.leave(f, parent)
	for i, p := range ports {
		if p.dir == vast.DeclInput {
			continue
		}
		for _, t := range e.targets(c.Args[i], outs[i]) {
			e.assignTarget(t, true)
		}
	}
}
