// Package elab elaborates a module hierarchy into dataflow. It walks the
// design twice from the top module: the first walk declares every term,
// resolves parameters and builds the frame tree, the second walk translates
// assignments into binds. Both walks run the same code, so labels of
// anonymous scopes come out identical.
package elab

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/modindex"
	"github.com/raymyers/vflow/pkg/optimizer"
	"github.com/raymyers/vflow/pkg/vast"
)

// Options tune elaboration
type Options struct {
	// ClockNames and ResetNames are matched case-insensitively as a prefix
	// or suffix of edge-sensitive signal names
	ClockNames []string
	ResetNames []string
	// NoBind stops after the declaration walk
	NoBind bool
	// Level is the minimum number of simplifier rounds; zero keeps the
	// optimizer's default
	Level int
}

// DefaultOptions returns the usual clock and reset name patterns
func DefaultOptions() Options {
	return Options{
		ClockNames: []string{"clk", "clock"},
		ResetNames: []string{"rst", "reset"},
	}
}

// Result holds everything elaboration produced
type Result struct {
	Terms    *dataflow.TermTable
	Binds    *dataflow.BindTable
	Initials *dataflow.BindTable
	Consts   *dataflow.ConstTable
	Frames   *frames.Table
}

const (
	maxUnroll    = 1 << 16
	maxCallDepth = 64
	maxInstDepth = 256
)

type savedConst struct {
	value dataflow.EvalValue
	state dataflow.ConstState
}

// Elaborator holds the state of one elaboration run
type Elaborator struct {
	opts    Options
	modules *modindex.Table

	frames   *frames.Table
	terms    *dataflow.TermTable
	binds    *dataflow.BindTable
	initials *dataflow.BindTable
	consts   *dataflow.ConstTable
	opt      *optimizer.Optimizer

	cur        *frames.Frame
	bind       bool // second walk: emit binds
	overridden map[string]bool
	renames    int
	callDepth  int
	instDepth  int
	// procedural constants touched by the current process, with the value
	// they had before it started
	procSaved map[string]savedConst
}

// New creates an elaborator over an indexed set of modules
func New(modules *modindex.Table, opts Options) *Elaborator {
	terms := dataflow.NewTermTable()
	consts := dataflow.NewConstTable()
	opt := optimizer.New(terms, consts)
	if opts.Level > 0 {
		opt.Level = opts.Level
	}
	return &Elaborator{
		opts:       opts,
		modules:    modules,
		frames:     frames.NewTable(),
		terms:      terms,
		binds:      dataflow.NewBindTable(),
		initials:   dataflow.NewBindTable(),
		consts:     consts,
		opt:        opt,
		overridden: make(map[string]bool),
	}
}

// Elaborate walks the hierarchy below top
func (e *Elaborator) Elaborate(top string) (res *Result, err error) {
	defer dataflow.Recover(&err)

	m, ok := e.modules.GetDefinition(top)
	if !ok {
		return nil, dataflow.Definitionf("top module %s is not defined", top)
	}
	log.Debugf("elaborating %s: declarations", top)
	e.top(m)
	if !e.opts.NoBind {
		log.Debugf("elaborating %s: binds", top)
		e.frames.ResetCounters()
		e.renames = 0
		e.bind = true
		e.top(m)
	}
	return &Result{
		Terms:    e.terms,
		Binds:    e.binds,
		Initials: e.initials,
		Consts:   e.consts,
		Frames:   e.frames,
	}, nil
}

func (e *Elaborator) top(m *vast.Module) {
	f := e.frames.Enter(nil, dataflow.ScopeLabel{Name: m.Name, Kind: dataflow.KindModule}, frames.Module)
	f.ModuleName, f.Nettype = m.Name, m.DefaultNettype
	e.cur = f
	items := headerItems(m)
	e.declareItems(items)
	e.resolveItems(items)
	e.walkItems(items)
	e.frames.Leave(f)
	e.cur = nil
}

// headerItems returns the module body with the header parameter list in
// front of it
func headerItems(m *vast.Module) []vast.Item {
	items := make([]vast.Item, 0, len(m.Params)+len(m.Items))
	for _, p := range m.Params {
		items = append(items, p)
	}
	return append(items, m.Items...)
}

// scope declares, resolves and walks the items of a generate scope that is
// already current
func (e *Elaborator) scope(items []vast.Item) {
	e.declareItems(items)
	e.resolveItems(items)
	e.walkItems(items)
}

// enter makes a new child frame current and returns the previous one
func (e *Elaborator) enter(label dataflow.ScopeLabel, kind frames.Kind) (*frames.Frame, *frames.Frame) {
	parent := e.cur
	f := e.frames.Enter(parent, label, kind)
	e.cur = f
	return f, parent
}

func (e *Elaborator) leave(f, parent *frames.Frame) {
	e.frames.Leave(f)
	e.cur = parent
}

// --- declarations ---

var declTypes = map[vast.DeclKind]dataflow.TermType{
	vast.DeclInput:   dataflow.TypeInput,
	vast.DeclOutput:  dataflow.TypeOutput,
	vast.DeclInout:   dataflow.TypeInout,
	vast.DeclWire:    dataflow.TypeWire,
	vast.DeclReg:     dataflow.TypeReg,
	vast.DeclTri:     dataflow.TypeTri,
	vast.DeclInteger: dataflow.TypeInteger,
	vast.DeclReal:    dataflow.TypeReal,
	vast.DeclSupply0: dataflow.TypeSupply0,
	vast.DeclSupply1: dataflow.TypeSupply1,
	vast.DeclGenvar:  dataflow.TypeGenvar,
}

func termTypes(kinds []vast.DeclKind) dataflow.TermType {
	var t dataflow.TermType
	for _, k := range kinds {
		t |= declTypes[k]
	}
	return t
}

// declareItems registers the signals, functions and tasks of a scope. Items
// of a generate region belong to the enclosing scope.
func (e *Elaborator) declareItems(items []vast.Item) {
	for _, item := range items {
		switch it := item.(type) {
		case vast.Decl:
			e.declare(it)
		case vast.Function:
			e.cur.AddFunction(it)
		case vast.Task:
			e.cur.AddTask(it)
		case vast.Generate:
			e.declareItems(it.Items)
		}
	}
}

func (e *Elaborator) declare(d vast.Decl) {
	types := termTypes(d.Kinds)
	for _, n := range d.Names {
		term := &dataflow.Term{
			Name:   e.cur.Name.Signal(n.Name),
			Types:  types,
			Signed: d.Signed || types.Any(dataflow.TypeInteger),
		}
		if d.Range != nil {
			term.MSB, term.LSB = e.constRange(*d.Range)
		}
		for _, r := range n.Dims {
			msb, lsb := e.constRange(r)
			term.Dims = append(term.Dims, dataflow.Dim{MSB: msb, LSB: lsb})
		}
		e.terms.Add(term)
		e.cur.Declare(n.Name)
	}
}

func (e *Elaborator) constRange(r vast.Range) (dataflow.Node, dataflow.Node) {
	return e.opt.Optimize(e.expr(r.MSB)), e.opt.Optimize(e.expr(r.LSB))
}

// resolveItems evaluates the parameters of a scope. Parameters may refer to
// each other in any order, so evaluation repeats until nothing changes.
// Overridden parameters keep the value the instantiation gave them.
func (e *Elaborator) resolveItems(items []vast.Item) {
	var params []vast.ParamDecl
	collectParams(items, &params)
	if len(params) == 0 {
		return
	}
	f := e.cur
	var pending []vast.ParamDecl
	for _, p := range params {
		if !f.DeclareConst(p.Name) && !e.bind {
			dataflow.Fail(dataflow.Formatf("%s is already defined in %s", p.Name, f.Name))
		}
		chain := f.Name.Signal(p.Name)
		types := dataflow.TypeParameter
		if p.Local {
			types = dataflow.TypeLocalparam
		}
		term := &dataflow.Term{Name: chain, Types: types, Signed: p.Signed || p.Integer}
		if p.Range != nil {
			term.MSB, term.LSB = e.constRange(*p.Range)
		}
		e.terms.Add(term)
		if e.overridden[chain.String()] && !p.Local {
			e.sizeOverride(chain, p)
			continue
		}
		if e.bind {
			kind := dataflow.BindParameter
			if p.Local {
				kind = dataflow.BindLocalparam
			}
			e.binds.Add(&dataflow.Bind{Dest: chain, Tree: e.expr(p.Value), Kind: kind})
			continue
		}
		pending = append(pending, p)
	}

	for len(pending) > 0 {
		var next []vast.ParamDecl
		for _, p := range pending {
			v, ok := e.evalParam(p)
			if !ok {
				next = append(next, p)
				continue
			}
			e.consts.Set(f.Name.Signal(p.Name), v)
		}
		if len(next) == len(pending) {
			for _, p := range next {
				log.Debugf("parameter %s is not constant", f.Name.Signal(p.Name))
			}
			break
		}
		pending = next
	}
}

func collectParams(items []vast.Item, out *[]vast.ParamDecl) {
	for _, item := range items {
		switch it := item.(type) {
		case vast.ParamDecl:
			*out = append(*out, it)
		case vast.Generate:
			collectParams(it.Items, out)
		}
	}
}

func (e *Elaborator) evalParam(p vast.ParamDecl) (dataflow.EvalValue, bool) {
	v, ok := e.opt.Eval(e.expr(p.Value))
	if !ok {
		return v, false
	}
	return e.sizeParam(v, p), true
}

// sizeParam applies the declared type of a parameter to its value
func (e *Elaborator) sizeParam(v dataflow.EvalValue, p vast.ParamDecl) dataflow.EvalValue {
	if v.IsFloat || v.IsString {
		return v
	}
	switch {
	case p.Range != nil:
		msb, ok1 := e.opt.EvalInt(e.expr(p.Range.MSB))
		lsb, ok2 := e.opt.EvalInt(e.expr(p.Range.LSB))
		if ok1 && ok2 {
			return v.Resize(int(max(msb, lsb)-min(msb, lsb)+1), p.Signed)
		}
	case p.Integer:
		return v.Resize(dataflow.DefaultWidth, true)
	case p.Signed:
		return v.Resize(v.Width, true)
	}
	return v
}

func (e *Elaborator) sizeOverride(chain dataflow.ScopeChain, p vast.ParamDecl) {
	if v, st := e.consts.Lookup(chain); st == dataflow.Known {
		e.consts.Set(chain, e.sizeParam(v, p))
	}
}

// --- names ---

func (e *Elaborator) matches(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasPrefix(lower, p) || strings.HasSuffix(lower, p) {
			return true
		}
	}
	return false
}

func (e *Elaborator) isClock(name string) bool { return e.matches(name, e.opts.ClockNames) }

func (e *Elaborator) isReset(name string) bool { return e.matches(name, e.opts.ResetNames) }
