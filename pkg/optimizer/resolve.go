package optimizer

import "github.com/raymyers/vflow/pkg/dataflow"

// resolver inlines the trees of renames and single-driver nets
type resolver struct {
	o        *Optimizer
	tables   []*dataflow.BindTable
	done     map[string]dataflow.Node
	visiting map[string]bool
}

// Resolve rewrites every bind: renames and nets with exactly one full-width
// continuous driver are replaced by that driver's tree, then the tree is
// optimized and constant trees are sized to their destination. Drivers are
// looked up across all given tables. Renames that nothing refers to any more
// are removed from the term table and from every bind table.
func (o *Optimizer) Resolve(tables ...*dataflow.BindTable) {
	r := &resolver{
		o:        o,
		tables:   tables,
		done:     make(map[string]dataflow.Node),
		visiting: make(map[string]bool),
	}
	for _, binds := range tables {
		for _, b := range binds.All() {
			b.Tree = o.fit(b, o.Optimize(r.inline(b.Tree)))
			b.Ptr = o.Optimize(r.inline(b.Ptr))
			b.MSB = o.Optimize(r.inline(b.MSB))
			b.LSB = o.Optimize(r.inline(b.LSB))
		}
	}
	o.dropRenames(tables)
}

// ResolveTerms folds the ranges and dimensions of every term
func (o *Optimizer) ResolveTerms() {
	for _, t := range o.terms.Terms() {
		t.MSB = o.Optimize(t.MSB)
		t.LSB = o.Optimize(t.LSB)
		for i := range t.Dims {
			t.Dims[i].MSB = o.Optimize(t.Dims[i].MSB)
			t.Dims[i].LSB = o.Optimize(t.Dims[i].LSB)
		}
	}
}

func (r *resolver) inlinable(name dataflow.ScopeChain) (*dataflow.Bind, bool) {
	term, ok := r.o.terms.Get(name)
	if !ok {
		return nil, false
	}
	var binds []*dataflow.Bind
	for _, t := range r.tables {
		binds = append(binds, t.Get(name.String())...)
	}
	if len(binds) != 1 || !binds[0].IsFullWidth() {
		return nil, false
	}
	b := binds[0]
	if term.Types.Has(dataflow.TypeRename) {
		return b, true
	}
	if term.Types.IsRegister() || term.Types.IsConstant() || b.Always != nil {
		return nil, false
	}
	if b.Kind == dataflow.BindParameter || b.Kind == dataflow.BindLocalparam {
		return nil, false
	}
	return b, true
}

func (r *resolver) inline(n dataflow.Node) dataflow.Node {
	switch x := n.(type) {
	case nil:
		return nil
	case dataflow.Terminal:
		return r.terminal(x)
	case dataflow.Operator:
		ops := make([]dataflow.Node, len(x.Operands))
		for i, a := range x.Operands {
			ops[i] = r.inline(a)
		}
		return dataflow.Operator{Op: x.Op, Operands: ops}
	case dataflow.Branch:
		return dataflow.Branch{Cond: r.inline(x.Cond), True: r.inline(x.True), False: r.inline(x.False)}
	case dataflow.Concat:
		nodes := make([]dataflow.Node, len(x.Nodes))
		for i, c := range x.Nodes {
			nodes[i] = r.inline(c)
		}
		return dataflow.Concat{Nodes: nodes}
	case dataflow.Partselect:
		// an inlined tree is indexed in its own bit layout
		v := r.inline(x.Var)
		from, to := r.o.layoutOf(x.Var), r.o.layoutOf(v)
		return dataflow.Partselect{Var: v, MSB: rebase(from, to, r.inline(x.MSB)), LSB: rebase(from, to, r.inline(x.LSB))}
	case dataflow.Pointer:
		// array elements are storage, only the index is inlined
		if t, ok := x.Var.(dataflow.Terminal); ok {
			if term, ok := r.o.terms.Get(t.Name); ok && len(term.Dims) > 0 {
				return dataflow.Pointer{Var: x.Var, Ptr: r.inline(x.Ptr)}
			}
		}
		v := r.inline(x.Var)
		return dataflow.Pointer{Var: v, Ptr: rebase(r.o.layoutOf(x.Var), r.o.layoutOf(v), r.inline(x.Ptr))}
	case dataflow.Syscall:
		args := make([]dataflow.Node, len(x.Args))
		for i, a := range x.Args {
			args[i] = r.inline(a)
		}
		return dataflow.Syscall{Name: x.Name, Args: args}
	case dataflow.Delay:
		return dataflow.Delay{Inner: r.inline(x.Inner)}
	}
	return n
}

func (r *resolver) terminal(t dataflow.Terminal) dataflow.Node {
	key := t.Name.String()
	if n, ok := r.done[key]; ok {
		return n
	}
	b, ok := r.inlinable(t.Name)
	if !ok || r.visiting[key] || b.Tree == nil {
		return t
	}
	r.visiting[key] = true
	tree := r.inline(b.Tree)
	delete(r.visiting, key)

	term, _ := r.o.terms.Get(t.Name)
	if w, tw := r.o.Width(tree), r.o.TermWidth(term); w > tw && tw > 0 {
		tree = r.o.BitSelect(tree, int64(tw-1), 0)
	}
	r.done[key] = tree
	return tree
}

// destWidth is the width of the slice a bind writes
func (o *Optimizer) destWidth(b *dataflow.Bind) (int, bool) {
	term, ok := o.terms.Get(b.Dest)
	if !ok {
		return 0, false
	}
	switch {
	case b.MSB != nil && b.LSB != nil:
		w := o.Width(dataflow.Partselect{Var: dataflow.Terminal{Name: b.Dest}, MSB: b.MSB, LSB: b.LSB})
		return w, w > 0
	case b.Ptr != nil && len(term.Dims) > 0:
		return o.TermWidth(term), true
	case b.Ptr != nil:
		return 1, true
	}
	return o.TermWidth(term), true
}

// fit sizes a constant tree to the destination slice
func (o *Optimizer) fit(b *dataflow.Bind, tree dataflow.Node) dataflow.Node {
	v, ok := tree.(dataflow.EvalValue)
	if !ok || v.IsFloat || v.IsString {
		return tree
	}
	w, ok := o.destWidth(b)
	if !ok {
		return tree
	}
	term, _ := o.terms.Get(b.Dest)
	if term.Types.IsConstant() && term.MSB == nil {
		return tree
	}
	return v.Resize(w, term.Signed)
}

func (o *Optimizer) dropRenames(tables []*dataflow.BindTable) {
	used := map[string]bool{}
	for _, binds := range tables {
		for _, b := range binds.All() {
			for _, n := range []dataflow.Node{b.Tree, b.Ptr, b.MSB, b.LSB} {
				for _, name := range dataflow.Terminals(n) {
					used[name.String()] = true
				}
			}
		}
	}
	for _, t := range o.terms.Terms() {
		key := t.Name.String()
		if !t.Types.Has(dataflow.TypeRename) || used[key] {
			continue
		}
		o.terms.Delete(key)
		for _, binds := range tables {
			binds.Delete(key)
		}
	}
}
