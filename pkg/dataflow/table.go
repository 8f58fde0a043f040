package dataflow

// ordered is a string-keyed map that remembers insertion order
type ordered[V any] struct {
	keys   []string
	values map[string]V
}

func newOrdered[V any]() ordered[V] {
	return ordered[V]{values: make(map[string]V)}
}

func (o *ordered[V]) get(key string) (V, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *ordered[V]) set(key string, v V) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *ordered[V]) remove(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order
func (o *ordered[V]) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of entries
func (o *ordered[V]) Len() int {
	return len(o.keys)
}

// TermTable maps scope-qualified names to terms
type TermTable struct {
	ordered[*Term]
}

// NewTermTable creates an empty term table
func NewTermTable() *TermTable {
	return &TermTable{newOrdered[*Term]()}
}

// Add registers a term. A second declaration of the same name accumulates
// type tags; range, dimensions and signedness are kept from the first one
// that set them.
func (t *TermTable) Add(term *Term) *Term {
	key := term.Name.String()
	if old, ok := t.get(key); ok {
		old.Types |= term.Types
		if old.MSB == nil && old.LSB == nil {
			old.MSB, old.LSB = term.MSB, term.LSB
		}
		if len(old.Dims) == 0 {
			old.Dims = term.Dims
		}
		old.Signed = old.Signed || term.Signed
		return old
	}
	t.set(key, term)
	return term
}

// Get returns the term for a chain
func (t *TermTable) Get(name ScopeChain) (*Term, bool) {
	return t.get(name.String())
}

// Lookup returns the term for a key
func (t *TermTable) Lookup(key string) (*Term, bool) {
	return t.get(key)
}

// Set stores a term, replacing any previous entry
func (t *TermTable) Set(term *Term) {
	t.set(term.Name.String(), term)
}

// Delete removes a term
func (t *TermTable) Delete(key string) {
	t.remove(key)
}

// Terms returns the terms in insertion order
func (t *TermTable) Terms() []*Term {
	out := make([]*Term, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.values[k])
	}
	return out
}

// BindTable maps destination names to their binds
type BindTable struct {
	ordered[[]*Bind]
}

// NewBindTable creates an empty bind table
func NewBindTable() *BindTable {
	return &BindTable{newOrdered[[]*Bind]()}
}

// Add appends a bind, or supersedes the bind with the same target slice
func (t *BindTable) Add(b *Bind) {
	key := b.Dest.String()
	list, _ := t.get(key)
	for i, old := range list {
		if old.SameTarget(b) {
			list[i] = b
			return
		}
	}
	t.set(key, append(list, b))
}

// Find returns the stored bind writing the same target slice as b
func (t *BindTable) Find(b *Bind) *Bind {
	list, _ := t.get(b.Dest.String())
	for _, old := range list {
		if old.SameTarget(b) {
			return old
		}
	}
	return nil
}

// Get returns the binds for a destination key
func (t *BindTable) Get(key string) []*Bind {
	list, _ := t.get(key)
	return list
}

// Set replaces the binds for a destination key
func (t *BindTable) Set(key string, binds []*Bind) {
	t.set(key, binds)
}

// Delete removes every bind for a destination key
func (t *BindTable) Delete(key string) {
	t.remove(key)
}

// All returns every bind in key order
func (t *BindTable) All() []*Bind {
	var out []*Bind
	for _, k := range t.keys {
		out = append(out, t.values[k]...)
	}
	return out
}

// ConstState is the state of a constant table entry
type ConstState int

const (
	Absent ConstState = iota
	Known
	Unknown
)

// ConstEntry is a constant table entry
type ConstEntry struct {
	State ConstState
	Value EvalValue
}

// ConstTable maps scope-qualified names to constant values
type ConstTable struct {
	ordered[ConstEntry]
}

// NewConstTable creates an empty constant table
func NewConstTable() *ConstTable {
	return &ConstTable{newOrdered[ConstEntry]()}
}

// Set records a known value
func (t *ConstTable) Set(name ScopeChain, v EvalValue) {
	t.set(name.String(), ConstEntry{State: Known, Value: v})
}

// SetUnknown marks a name as no longer constant
func (t *ConstTable) SetUnknown(name ScopeChain) {
	t.set(name.String(), ConstEntry{State: Unknown})
}

// Lookup returns the value and state for a chain
func (t *ConstTable) Lookup(name ScopeChain) (EvalValue, ConstState) {
	return t.LookupKey(name.String())
}

// LookupKey returns the value and state for a key
func (t *ConstTable) LookupKey(key string) (EvalValue, ConstState) {
	e, ok := t.get(key)
	if !ok {
		return EvalValue{}, Absent
	}
	return e.Value, e.State
}

// Restore puts back an entry saved with LookupKey
func (t *ConstTable) Restore(key string, v EvalValue, state ConstState) {
	if state == Absent {
		t.remove(key)
		return
	}
	t.set(key, ConstEntry{State: state, Value: v})
}

// Remove deletes an entry
func (t *ConstTable) Remove(key string) {
	t.remove(key)
}

// KnownKeys returns the keys of known constants in insertion order
func (t *ConstTable) KnownKeys() []string {
	var out []string
	for _, k := range t.keys {
		if t.values[k].State == Known {
			out = append(out, k)
		}
	}
	return out
}
