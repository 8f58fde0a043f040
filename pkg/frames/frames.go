// Package frames holds the scope state used while elaborating: one Frame per
// module instance, generate block, loop iteration, branch, named block,
// process and subprogram call. Frames live in a Table arena and refer to
// each other by index.
package frames

import (
	"fmt"

	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/vast"
)

// Kind is the kind of a frame
type Kind int

const (
	Module Kind = iota
	Generate
	For
	While
	IfThen
	IfElse
	Block
	Always
	Initial
	FunctionCall
	TaskCall
)

var kindNames = []string{
	"module", "generate", "for", "while", "ifthen", "ifelse", "block",
	"always", "initial", "functioncall", "taskcall",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "?"
}

// IsProcess reports whether the frame starts a new procedural context:
// blocking renames and pending binds do not cross it.
func (k Kind) IsProcess() bool {
	return k == Always || k == Initial || k == FunctionCall
}

// Condition is one entry of the condition stack above an assignment
type Condition struct {
	Cond dataflow.Node
	True bool
}

// Frame is the elaboration state of one scope
type Frame struct {
	ID      int
	Name    dataflow.ScopeChain
	Kind    Kind
	Prev    int // -1 for the root
	Next    []int
	Always  *dataflow.AlwaysInfo
	Cond    dataflow.Node // guarding condition of IfThen / IfElse frames
	Loop    int
	HasLoop bool
	Iter    dataflow.ScopeChain // loop variable of For / While frames

	// Module frames only
	ModuleName string
	Nettype    string

	signals   map[string]bool
	consts    map[string]bool
	functions map[string]vast.Function
	tasks     map[string]vast.Task
	counters  map[string]int

	// Renames maps an original signal key to the rename that holds its
	// value after the latest blocking assignment in this frame.
	Renames map[string]dataflow.ScopeChain

	pending    []*dataflow.Bind
	pendingIdx map[string]int
}

func newFrame(id int, name dataflow.ScopeChain, kind Kind, prev int) *Frame {
	return &Frame{
		ID:         id,
		Name:       name,
		Kind:       kind,
		Prev:       prev,
		signals:    make(map[string]bool),
		consts:     make(map[string]bool),
		functions:  make(map[string]vast.Function),
		tasks:      make(map[string]vast.Task),
		counters:   make(map[string]int),
		Renames:    make(map[string]dataflow.ScopeChain),
		pendingIdx: make(map[string]int),
	}
}

// NextLabel returns prefix followed by a per-frame counter: if0, if1, ...
func (f *Frame) NextLabel(prefix string) string {
	n := f.counters[prefix]
	f.counters[prefix] = n + 1
	return fmt.Sprintf("%s%d", prefix, n)
}

// Declare records a signal declared in this scope
func (f *Frame) Declare(name string) { f.signals[name] = true }

// DeclareConst records a parameter, localparam or genvar; it returns false
// when the name was already declared as a constant here
func (f *Frame) DeclareConst(name string) bool {
	if f.consts[name] {
		return false
	}
	f.consts[name] = true
	return true
}

// HasSignal reports whether name is declared directly in this scope
func (f *Frame) HasSignal(name string) bool {
	return f.signals[name] || f.consts[name]
}

// AddFunction registers a function declaration
func (f *Frame) AddFunction(fn vast.Function) { f.functions[fn.Name] = fn }

// AddTask registers a task declaration
func (f *Frame) AddTask(t vast.Task) { f.tasks[t.Name] = t }

func targetKey(b *dataflow.Bind) string {
	return b.Dest.String() + "|" + dataflow.Key(b.MSB) + "|" + dataflow.Key(b.LSB) + "|" + dataflow.Key(b.Ptr)
}

// Pending returns the bind of this process writing the same target as b
func (f *Frame) Pending(b *dataflow.Bind) *dataflow.Bind {
	if i, ok := f.pendingIdx[targetKey(b)]; ok {
		return f.pending[i]
	}
	return nil
}

// SetPending stores or replaces a pending bind of this process
func (f *Frame) SetPending(b *dataflow.Bind) {
	key := targetKey(b)
	if i, ok := f.pendingIdx[key]; ok {
		f.pending[i] = b
		return
	}
	f.pendingIdx[key] = len(f.pending)
	f.pending = append(f.pending, b)
}

// TakePending returns the pending binds in first-write order and clears them
func (f *Frame) TakePending() []*dataflow.Bind {
	out := f.pending
	f.pending = nil
	f.pendingIdx = make(map[string]int)
	return out
}

// Table is the frame arena
type Table struct {
	frames []*Frame
	byName map[string]int
}

// NewTable creates an empty arena
func NewTable() *Table {
	return &Table{byName: make(map[string]int)}
}

// Len returns the number of frames
func (t *Table) Len() int { return len(t.frames) }

// Frame returns the frame with the given index
func (t *Table) Frame(id int) *Frame { return t.frames[id] }

// Get returns the frame for a chain
func (t *Table) Get(name dataflow.ScopeChain) (*Frame, bool) {
	id, ok := t.byName[name.String()]
	if !ok {
		return nil, false
	}
	return t.frames[id], true
}

// Parent returns the enclosing frame, nil for the root
func (t *Table) Parent(f *Frame) *Frame {
	if f.Prev < 0 {
		return nil
	}
	return t.frames[f.Prev]
}

// Enter returns the child frame of parent with the given label, creating it
// on first use. A frame entered again in a later pass keeps its declarations
// and counters restart from zero through ResetCounters.
func (t *Table) Enter(parent *Frame, label dataflow.ScopeLabel, kind Kind) *Frame {
	var name dataflow.ScopeChain
	prev := -1
	if parent != nil {
		name = parent.Name.Append(label)
		prev = parent.ID
	} else {
		name = dataflow.NewChain(label)
	}
	if id, ok := t.byName[name.String()]; ok {
		f := t.frames[id]
		f.Renames = make(map[string]dataflow.ScopeChain)
		f.TakePending()
		return f
	}
	f := newFrame(len(t.frames), name, kind, prev)
	f.Loop, f.HasLoop = label.Loop, label.HasLoop
	t.frames = append(t.frames, f)
	t.byName[name.String()] = f.ID
	if parent != nil {
		parent.Next = append(parent.Next, f.ID)
	}
	return f
}

// Leave hands the blocking renames of f to its parent, so later statements
// of the same process read them. Process frames drop them.
func (t *Table) Leave(f *Frame) {
	parent := t.Parent(f)
	if parent != nil && !f.Kind.IsProcess() && f.Kind != Module {
		for k, v := range f.Renames {
			parent.Renames[k] = v
		}
	}
	f.Renames = make(map[string]dataflow.ScopeChain)
}

// ResetCounters restarts every label counter, so a second walk over the
// same source produces the same labels
func (t *Table) ResetCounters() {
	for _, f := range t.frames {
		f.counters = make(map[string]int)
	}
}

// ModuleOf returns the module frame enclosing f
func (t *Table) ModuleOf(f *Frame) *Frame {
	for cur := f; cur != nil; cur = t.Parent(cur) {
		if cur.Kind == Module {
			return cur
		}
	}
	return nil
}

// ProcessOf returns the process frame enclosing f, nil outside processes
func (t *Table) ProcessOf(f *Frame) *Frame {
	for cur := f; cur != nil && cur.Kind != Module; cur = t.Parent(cur) {
		if cur.Kind.IsProcess() {
			return cur
		}
	}
	return nil
}

// Outward iterates from f to its module frame; subprogram call frames do not
// stop the walk
func (t *Table) Outward(f *Frame, fn func(*Frame) bool) {
	for cur := f; cur != nil; cur = t.Parent(cur) {
		if !fn(cur) || cur.Kind == Module {
			return
		}
	}
}

// Lookup resolves a signal or constant name from f outward to the module
// frame, returning its scope-qualified chain
func (t *Table) Lookup(f *Frame, name string) (dataflow.ScopeChain, bool) {
	var found dataflow.ScopeChain
	t.Outward(f, func(cur *Frame) bool {
		if cur.HasSignal(name) {
			found = cur.Name.Signal(name)
			return false
		}
		return true
	})
	return found, found != nil
}

// LookupFunction finds a function declaration visible from f
func (t *Table) LookupFunction(f *Frame, name string) (vast.Function, *Frame, bool) {
	var fn vast.Function
	var where *Frame
	t.Outward(f, func(cur *Frame) bool {
		if d, ok := cur.functions[name]; ok {
			fn, where = d, cur
			return false
		}
		return true
	})
	return fn, where, where != nil
}

// LookupTask finds a task declaration visible from f
func (t *Table) LookupTask(f *Frame, name string) (vast.Task, *Frame, bool) {
	var tk vast.Task
	var where *Frame
	t.Outward(f, func(cur *Frame) bool {
		if d, ok := cur.tasks[name]; ok {
			tk, where = d, cur
			return false
		}
		return true
	})
	return tk, where, where != nil
}

// ReadRename returns the rename visible from f for the signal key, searching
// up to the enclosing process frame
func (t *Table) ReadRename(f *Frame, key string) (dataflow.ScopeChain, bool) {
	for cur := f; cur != nil && cur.Kind != Module; cur = t.Parent(cur) {
		if r, ok := cur.Renames[key]; ok {
			return r, true
		}
		if cur.Kind.IsProcess() {
			break
		}
	}
	return nil, false
}

// DropRename forgets every rename of key visible from f
func (t *Table) DropRename(f *Frame, key string) {
	for cur := f; cur != nil && cur.Kind != Module; cur = t.Parent(cur) {
		delete(cur.Renames, key)
		if cur.Kind.IsProcess() {
			break
		}
	}
}

// Conditions returns the condition stack above f, outermost first. The walk
// stops at a function call, whose body does not depend on the caller's
// branch; task calls inherit it.
func (t *Table) Conditions(f *Frame) []Condition {
	var rev []Condition
	for cur := f; cur != nil && cur.Kind != Module; cur = t.Parent(cur) {
		switch cur.Kind {
		case IfThen:
			rev = append(rev, Condition{Cond: cur.Cond, True: true})
		case IfElse:
			rev = append(rev, Condition{Cond: cur.Cond, True: false})
		}
		if cur.Kind.IsProcess() {
			break
		}
	}
	out := make([]Condition, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

// AlwaysOf returns the always-info of the process enclosing f
func (t *Table) AlwaysOf(f *Frame) *dataflow.AlwaysInfo {
	if p := t.ProcessOf(f); p != nil {
		return p.Always
	}
	return nil
}

// Search resolves a hierarchical reference. rel is the path below some
// enclosing scope; each scope from f outward to the root is tried as the
// base, then rel on its own as an absolute path. exists reports whether a
// candidate names a declared term. Labels compare by their printable form,
// so the kinds in rel do not matter.
func (t *Table) Search(f *Frame, rel dataflow.ScopeChain, exists func(dataflow.ScopeChain) bool) (dataflow.ScopeChain, bool) {
	for cur := f; cur != nil; cur = t.Parent(cur) {
		cand := cur.Name.Concat(rel)
		if t.scopeKnown(cand.Parent()) && exists(cand) {
			return t.canonical(cand), true
		}
	}
	if t.scopeKnown(rel.Parent()) && exists(rel) {
		return t.canonical(rel), true
	}
	return nil, false
}

func (t *Table) scopeKnown(scope dataflow.ScopeChain) bool {
	if len(scope) == 0 {
		return false
	}
	_, ok := t.byName[scope.String()]
	return ok
}

// canonical replaces the labels of a searched chain with the frame's own
// labels, which carry the right kinds
func (t *Table) canonical(c dataflow.ScopeChain) dataflow.ScopeChain {
	scope, _ := t.Get(c.Parent())
	return scope.Name.Signal(c.Last().Name)
}
