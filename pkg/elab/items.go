package elab

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/vast"
)

// walkItems elaborates the items of the current scope in source order
func (e *Elaborator) walkItems(items []vast.Item) {
	for _, item := range items {
		e.item(item)
	}
}

func (e *Elaborator) item(item vast.Item) {
	switch it := item.(type) {
	case vast.Decl:
		e.declInit(it)
	case vast.ParamDecl, vast.Function, vast.Task:
		// handled when the scope was declared
	case vast.ContinuousAssign:
		e.continuousAssign(it)
	case vast.Always:
		e.always(it)
	case vast.Initial:
		e.initial(it)
	case vast.Instance:
		e.instance(it)
	case vast.Generate:
		e.walkItems(it.Items)
	case vast.GenBlock:
		e.genBlock(it, e.cur.NextLabel("genblk"))
	case vast.GenFor:
		e.genFor(it)
	case vast.GenIf:
		e.genIf(it)
	case vast.GenCase:
		e.genCase(it)
	case vast.Defparam:
		if e.bind {
			log.Warnf("defparam %s is not supported and is ignored", vast.ExprString(it.Target))
		}
	default:
		dataflow.Fail(dataflow.Implementationf("unexpected module item %T", item))
	}
}

// declInit turns declaration initializers into binds: nets get a continuous
// driver, variables an initial value
func (e *Elaborator) declInit(d vast.Decl) {
	if !e.bind {
		return
	}
	types := termTypes(d.Kinds)
	for _, n := range d.Names {
		chain := e.cur.Name.Signal(n.Name)
		if types.Any(dataflow.TypeSupply0 | dataflow.TypeSupply1) {
			e.binds.Add(&dataflow.Bind{Dest: chain, Tree: e.supplyValue(chain, types), Kind: dataflow.BindAssign})
			continue
		}
		if n.Init == nil {
			continue
		}
		tree := e.expr(n.Init)
		if types.IsRegister() {
			e.initials.Add(&dataflow.Bind{Dest: chain, Tree: tree, Kind: dataflow.BindBlocking})
			continue
		}
		e.binds.Add(&dataflow.Bind{Dest: chain, Tree: tree, Kind: dataflow.BindAssign})
	}
}

func (e *Elaborator) supplyValue(chain dataflow.ScopeChain, types dataflow.TermType) dataflow.Node {
	w := 1
	if term, ok := e.terms.Get(chain); ok {
		w = e.opt.TermWidth(term)
	}
	if types.Any(dataflow.TypeSupply1) {
		return dataflow.NewValue(dataflow.Mask(w), w, false)
	}
	return dataflow.IntValue(0, w, false)
}

func (e *Elaborator) continuousAssign(a vast.ContinuousAssign) {
	if !e.bind {
		return
	}
	tree := e.expr(a.RHS)
	if a.Delay != nil {
		tree = dataflow.Delay{Inner: tree}
	}
	for _, t := range e.targets(a.LHS, tree) {
		e.binds.Add(t.bind(nil, dataflow.BindAssign))
	}
}

// --- generate ---

func (e *Elaborator) genBlock(b vast.GenBlock, anon string) {
	name := b.Name
	if name == "" {
		name = anon
	}
	f, parent := e.enter(dataflow.ScopeLabel{Name: name, Kind: dataflow.KindGenerate}, frames.Generate)
	e.scope(b.Items)
	e.leave(f, parent)
}

func (e *Elaborator) constant(x vast.Expr, what string) dataflow.EvalValue {
	v, ok := e.opt.Eval(e.expr(x))
	if !ok {
		dataflow.Fail(dataflow.Formatf("%s is not constant: %s", what, vast.ExprString(x)))
	}
	return v
}

func (e *Elaborator) genIf(g vast.GenIf) {
	anon := e.cur.NextLabel("genblk")
	if e.constant(g.Cond, "generate if condition").IsTrue() {
		e.genBlock(g.Then, anon)
		return
	}
	if g.Else != nil {
		e.genBlock(*g.Else, anon)
	}
}

func (e *Elaborator) genCase(g vast.GenCase) {
	anon := e.cur.NextLabel("genblk")
	disc := e.constant(g.Expr, "generate case expression")
	var dflt *vast.GenBlock
	for i, arm := range g.Items {
		if arm.Exprs == nil {
			dflt = &g.Items[i].Body
			continue
		}
		for _, x := range arm.Exprs {
			if caseMatch(disc, e.constant(x, "generate case label")) {
				e.genBlock(arm.Body, anon)
				return
			}
		}
	}
	if dflt != nil {
		e.genBlock(*dflt, anon)
	}
}

func caseMatch(a, b dataflow.EvalValue) bool {
	if a.IsString || b.IsString {
		return a.Str == b.Str
	}
	return a.Unsigned().Cmp(b.Unsigned()) == 0
}

// genFor unrolls a generate loop; each iteration is a scope labelled with
// the block name and the genvar value
func (e *Elaborator) genFor(g vast.GenFor) {
	if g.Init.Nonblocking || g.Step.Nonblocking {
		dataflow.Fail(dataflow.Formatf("generate for uses a non-blocking assignment"))
	}
	genvar := e.loopVar(g.Init.LHS)
	name := g.Body.Name
	if name == "" {
		name = e.cur.NextLabel("for")
	}
	e.consts.Set(genvar, e.constant(g.Init.RHS, "generate for initial value").Resize(dataflow.DefaultWidth, true))
	for iter := 0; ; iter++ {
		if iter >= maxUnroll {
			dataflow.Fail(dataflow.Formatf("generate for over %s does not terminate", genvar))
		}
		if !e.constant(g.Cond, "generate for condition").IsTrue() {
			break
		}
		v, _ := e.consts.Lookup(genvar)
		label := dataflow.ScopeLabel{Name: name, Kind: dataflow.KindFor, Loop: int(v.Int64()), HasLoop: true}
		f, parent := e.enter(label, frames.For)
		f.Iter = genvar
		e.scope(g.Body.Items)
		e.leave(f, parent)
		e.consts.Set(genvar, e.constant(g.Step.RHS, "generate for step").Resize(dataflow.DefaultWidth, true))
	}
}

func (e *Elaborator) loopVar(lhs vast.Expr) dataflow.ScopeChain {
	id, ok := unparen(lhs).(vast.Ident)
	if !ok {
		dataflow.Fail(dataflow.Formatf("loop variable must be a plain name: %s", vast.ExprString(lhs)))
	}
	chain, ok := e.frames.Lookup(e.cur, id.Name)
	if !ok {
		dataflow.Fail(dataflow.Definitionf("loop variable %s is not declared", id.Name))
	}
	return chain
}

// --- instances ---

var primitives = map[string]bool{
	"and": true, "nand": true, "or": true, "nor": true, "xor": true, "xnor": true,
	"not": true, "buf": true, "bufif0": true, "bufif1": true, "notif0": true, "notif1": true,
}

func (e *Elaborator) instance(inst vast.Instance) {
	if primitives[inst.Module] {
		e.primitive(inst)
		return
	}
	def, ok := e.modules.GetDefinition(inst.Module)
	if !ok {
		dataflow.Fail(dataflow.Definitionf("module %s is not defined", inst.Module))
	}
	if inst.Name == "" {
		dataflow.Fail(dataflow.Formatf("instance of %s has no name", inst.Module))
	}
	if inst.Array == nil {
		e.instantiate(def, inst, dataflow.ScopeLabel{Name: inst.Name, Kind: dataflow.KindModule}, 0, 1)
		return
	}
	msb := e.constant(inst.Array.MSB, "instance array range").Int64()
	lsb := e.constant(inst.Array.LSB, "instance array range").Int64()
	lo, hi := min(msb, lsb), max(msb, lsb)
	for i := lo; i <= hi; i++ {
		label := dataflow.ScopeLabel{Name: inst.Name, Kind: dataflow.KindModule, Loop: int(i), HasLoop: true}
		e.instantiate(def, inst, label, int(i-lo), int(hi-lo+1))
	}
}

// instantiate elaborates one instance: index is its position in an instance
// array of count elements
func (e *Elaborator) instantiate(def *vast.Module, inst vast.Instance, label dataflow.ScopeLabel, index, count int) {
	e.instDepth++
	defer func() { e.instDepth-- }()
	if e.instDepth > maxInstDepth {
		dataflow.Fail(dataflow.Formatf("instantiation of %s nests too deep", def.Name))
	}

	parent := e.cur
	child := e.frames.Enter(parent, label, frames.Module)
	child.ModuleName, child.Nettype = def.Name, def.DefaultNettype

	e.overrideParams(def, inst, child)

	e.cur = child
	items := headerItems(def)
	e.declareItems(items)
	e.resolveItems(items)
	if e.bind {
		e.connectPorts(def, inst, parent, child, index, count)
	}
	e.walkItems(items)
	e.frames.Leave(child)
	e.cur = parent
}

// overrideParams evaluates #(...) arguments in the instantiating scope
func (e *Elaborator) overrideParams(def *vast.Module, inst vast.Instance, child *frames.Frame) {
	names := e.modules.GetParamNames(def.Name)
	declared := map[string]bool{}
	for _, p := range e.modules.GetConsts(def.Name) {
		declared[p.Name] = true
	}
	for i, arg := range inst.Params {
		name := arg.Name
		switch {
		case name == "" && i >= len(names):
			dataflow.Fail(dataflow.Formatf("too many parameter overrides for %s %s", def.Name, inst.Name))
		case name == "":
			name = names[i]
		case !declared[name]:
			dataflow.Fail(dataflow.Formatf("module %s has no parameter %s", def.Name, name))
		}
		if arg.Value == nil {
			continue
		}
		chain := child.Name.Signal(name)
		tree := e.expr(arg.Value)
		e.overridden[chain.String()] = true
		if e.bind {
			e.binds.Add(&dataflow.Bind{Dest: chain, Tree: tree, Kind: dataflow.BindParameter})
			continue
		}
		v, ok := e.opt.Eval(tree)
		if !ok {
			log.Debugf("override of %s is not constant", chain)
			e.consts.SetUnknown(chain)
			continue
		}
		e.consts.Set(chain, v)
	}
}

// connectPorts binds ports: inputs take the connected expression, outputs
// drive the connected target, inouts do both
func (e *Elaborator) connectPorts(def *vast.Module, inst vast.Instance, parent, child *frames.Frame, index, count int) {
	ports := e.modules.GetIOPorts(def.Name)
	known := map[string]bool{}
	for _, p := range ports {
		known[p] = true
	}
	for i, arg := range inst.Ports {
		name := arg.Name
		switch {
		case name == "" && i >= len(ports):
			dataflow.Fail(dataflow.Formatf("too many port connections for %s %s", def.Name, inst.Name))
		case name == "":
			name = ports[i]
		case !known[name]:
			dataflow.Fail(dataflow.Formatf("module %s has no port %s", def.Name, name))
		}
		if arg.Value == nil {
			continue
		}
		dir, _ := e.modules.PortDirection(def.Name, name)
		inner := child.Name.Signal(name)

		e.cur = parent
		outer := e.portSlice(arg.Value, inner, index, count)
		if dir == vast.DeclInput || dir == vast.DeclInout {
			e.binds.Add(&dataflow.Bind{Dest: inner, Tree: e.expr(outer), Kind: dataflow.BindAssign})
		}
		if dir == vast.DeclOutput || dir == vast.DeclInout {
			for _, t := range e.targets(outer, dataflow.Terminal{Name: inner}) {
				e.binds.Add(t.bind(nil, dataflow.BindAssign))
			}
		}
		e.cur = child
	}
}

// portSlice picks the part of a connection that belongs to one element of
// an instance array. A connection exactly count times the port width is
// sliced, anything else is broadcast to every element.
func (e *Elaborator) portSlice(x vast.Expr, inner dataflow.ScopeChain, index, count int) vast.Expr {
	if count <= 1 {
		return x
	}
	term, ok := e.terms.Get(inner)
	if !ok {
		return x
	}
	pw := e.opt.TermWidth(term)
	aw := e.opt.Width(e.expr(x))
	if aw != pw*count {
		if aw != pw && aw != 0 {
			log.Warnf("connection %s of width %d is broadcast to %s", vast.ExprString(x), aw, inner)
		}
		return x
	}
	lo := int64(index * pw)
	hi := lo + int64(pw) - 1
	if id, ok := unparen(x).(vast.Ident); ok {
		if chain, ok := e.frames.Lookup(e.cur, id.Name); ok {
			if t, ok := e.terms.Get(chain); ok && t.LSB != nil {
				msb, _ := e.opt.EvalInt(t.MSB)
				lsb, _ := e.opt.EvalInt(t.LSB)
				if msb < lsb {
					hi, lo = lsb-hi, lsb-lo
				} else {
					hi, lo = lsb+hi, lsb+lo
				}
			}
		}
	}
	return vast.PartSelect{
		X:   x,
		MSB: vast.IntConst{Literal: fmt.Sprint(hi)},
		LSB: vast.IntConst{Literal: fmt.Sprint(lo)},
	}
}

// primitive binds a gate: the first terminal is the output and the rest are
// inputs, except for buf and not whose last terminal is the single input
func (e *Elaborator) primitive(inst vast.Instance) {
	if !e.bind {
		return
	}
	if len(inst.Ports) < 2 {
		dataflow.Fail(dataflow.Formatf("primitive %s %s needs an output and an input", inst.Module, inst.Name))
	}
	args := make([]vast.Expr, len(inst.Ports))
	for i, p := range inst.Ports {
		if p.Value == nil {
			dataflow.Fail(dataflow.Formatf("primitive %s %s has an unconnected terminal", inst.Module, inst.Name))
		}
		args[i] = p.Value
	}

	var outs []vast.Expr
	var tree dataflow.Node
	switch inst.Module {
	case "buf", "not":
		outs = args[:len(args)-1]
		tree = e.expr(args[len(args)-1])
		if inst.Module == "not" {
			tree = dataflow.Operator{Op: dataflow.Unot, Operands: []dataflow.Node{tree}}
		}
	case "and", "nand", "or", "nor", "xor", "xnor":
		outs = args[:1]
		tree = e.gate(inst.Module, args[1:])
	default:
		// tri-state drivers pass their data input through
		outs = args[:1]
		tree = e.expr(args[1])
		if inst.Module == "notif0" || inst.Module == "notif1" {
			tree = dataflow.Operator{Op: dataflow.Unot, Operands: []dataflow.Node{tree}}
		}
	}
	for _, out := range outs {
		for _, t := range e.targets(out, tree) {
			e.binds.Add(t.bind(nil, dataflow.BindAssign))
		}
	}
}

var gateOps = map[string]dataflow.Op{
	"and": dataflow.And, "nand": dataflow.And,
	"or": dataflow.Or, "nor": dataflow.Or,
	"xor": dataflow.Xor, "xnor": dataflow.Xnor,
}

func (e *Elaborator) gate(kind string, ins []vast.Expr) dataflow.Node {
	op := gateOps[kind]
	tree := e.expr(ins[0])
	for _, in := range ins[1:] {
		tree = dataflow.Operator{Op: op, Operands: []dataflow.Node{tree, e.expr(in)}}
	}
	if kind == "nand" || kind == "nor" {
		tree = dataflow.Operator{Op: dataflow.Unot, Operands: []dataflow.Node{tree}}
	}
	return tree
}
