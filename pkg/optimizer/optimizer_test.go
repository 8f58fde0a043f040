package optimizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raymyers/vflow/pkg/dataflow"
)

func chain(names ...string) dataflow.ScopeChain {
	c := dataflow.NewChain(dataflow.ScopeLabel{Name: names[0], Kind: dataflow.KindModule})
	for _, n := range names[1:] {
		c = c.Signal(n)
	}
	return c
}

func term(name string, width int, types dataflow.TermType) *dataflow.Term {
	t := &dataflow.Term{Name: chain("top", name), Types: types}
	if width > 1 {
		t.MSB = dataflow.IntValue(int64(width-1), dataflow.DefaultWidth, true)
		t.LSB = dataflow.IntValue(0, dataflow.DefaultWidth, true)
	}
	return t
}

func ref(name string) dataflow.Terminal {
	return dataflow.Terminal{Name: chain("top", name)}
}

func lit(s string) dataflow.IntConst {
	return dataflow.IntConst{Literal: s}
}

func op(o dataflow.Op, args ...dataflow.Node) dataflow.Operator {
	return dataflow.Operator{Op: o, Operands: args}
}

// fixture declares an 8-bit wire a, a 4-bit wire b, one-bit wires c and d
// and an 8-bit register r
func fixture() (*Optimizer, *dataflow.TermTable) {
	terms := dataflow.NewTermTable()
	terms.Add(term("a", 8, dataflow.TypeWire))
	terms.Add(term("b", 4, dataflow.TypeWire))
	terms.Add(term("c", 1, dataflow.TypeWire))
	terms.Add(term("d", 1, dataflow.TypeWire))
	terms.Add(term("r", 8, dataflow.TypeReg))
	return New(terms, nil), terms
}

func TestFold_Arithmetic(t *testing.T) {
	o, _ := fixture()
	tests := []struct {
		name string
		in   dataflow.Node
		want string
	}{
		{"sized add", op(dataflow.Plus, lit("8'd3"), lit("8'd5")), "(EvalValue 8 width:8)"},
		{"wraps to width", op(dataflow.Plus, lit("4'hf"), lit("4'd1")), "(EvalValue 0 width:4)"},
		{"widest operand", op(dataflow.Plus, lit("4'd1"), lit("8'd255")), "(EvalValue 0 width:8)"},
		{"plain integers are signed", op(dataflow.Minus, lit("1"), lit("3")), "(EvalValue -2 width:32 signed)"},
		{"mixed signedness is unsigned", op(dataflow.Minus, lit("4'd1"), lit("3")), "(EvalValue 4294967294 width:32)"},
		{"divide by zero", op(dataflow.Divide, lit("8'd3"), lit("8'd0")), "(Undefined width:8)"},
		{"shift keeps left width", op(dataflow.Sll, lit("4'b0011"), lit("2")), "(EvalValue 12 width:4)"},
		{"arithmetic right shift", op(dataflow.Sra, op(dataflow.Uminus, lit("8")), lit("1")), "(EvalValue -4 width:32 signed)"},
		{"comparison is one bit", op(dataflow.LessThan, lit("3"), lit("5")), "(EvalValue 1 width:1)"},
		{"reduction and", op(dataflow.Uand, lit("4'b1111")), "(EvalValue 1 width:1)"},
		{"reduction xnor", op(dataflow.Uxnor, lit("4'b0111")), "(EvalValue 0 width:1)"},
		{"power", op(dataflow.Power, lit("2"), lit("10")), "(EvalValue 1024 width:32 signed)"},
		{"bitwise not", op(dataflow.Unot, lit("4'b0101")), "(EvalValue 10 width:4)"},
		{"concat", dataflow.Concat{Nodes: []dataflow.Node{lit("4'ha"), lit("4'h5")}}, "(EvalValue 165 width:8)"},
		{"part-select", dataflow.Partselect{Var: lit("8'hf0"), MSB: lit("7"), LSB: lit("4")}, "(EvalValue 15 width:4)"},
		{"bit-select", dataflow.Pointer{Var: lit("8'h80"), Ptr: lit("7")}, "(EvalValue 1 width:1)"},
		{"select out of range", dataflow.Partselect{Var: lit("4'hf"), MSB: lit("5"), LSB: lit("2")}, "(Undefined width:4)"},
		{"clog2", dataflow.Syscall{Name: "clog2", Args: []dataflow.Node{lit("9")}}, "(EvalValue 4 width:32 signed)"},
		{"constant branch", dataflow.Branch{Cond: lit("1'b0"), True: lit("1"), False: lit("2")}, "(EvalValue 2 width:32 signed)"},
		{"non-constant stays", op(dataflow.Plus, ref("a"), lit("8'd1")), "(Operator Plus Next:(Terminal top.a),(EvalValue 1 width:8))"},
		{"x digits", lit("4'bx01x"), "(Undefined width:4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataflow.Key(o.Fold(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fold mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFold_ConstTerminal(t *testing.T) {
	terms := dataflow.NewTermTable()
	terms.Add(term("W", 1, dataflow.TypeParameter))
	p := term("N", 4, dataflow.TypeParameter)
	terms.Add(p)
	consts := dataflow.NewConstTable()
	consts.Set(chain("top", "W"), dataflow.IntValue(8, dataflow.DefaultWidth, true))
	consts.Set(chain("top", "N"), dataflow.IntValue(18, dataflow.DefaultWidth, true))
	o := New(terms, consts)

	if got := dataflow.Key(o.Fold(ref("W"))); got != "(EvalValue 8 width:32 signed)" {
		t.Errorf("W folds to %s", got)
	}
	// a ranged parameter is sized to its range
	if got := dataflow.Key(o.Fold(ref("N"))); got != "(EvalValue 2 width:4)" {
		t.Errorf("N folds to %s", got)
	}
	consts.SetUnknown(chain("top", "W"))
	if got := dataflow.Key(o.Fold(ref("W"))); got != "(Terminal top.W)" {
		t.Errorf("unknown W folds to %s", got)
	}
}

func TestSimplify_Rules(t *testing.T) {
	o, _ := fixture()
	a, b, c, d := ref("a"), ref("b"), ref("c"), ref("d")
	tests := []struct {
		name string
		in   dataflow.Node
		want string
	}{
		{"add zero", op(dataflow.Plus, dataflow.IntValue(0, 8, false), a), "(Terminal top.a)"},
		{"times one", op(dataflow.Times, a, dataflow.IntValue(1, 8, false)), "(Terminal top.a)"},
		{"times zero", op(dataflow.Times, a, dataflow.IntValue(0, 8, false)), "(EvalValue 0 width:8)"},
		{"times power of two", op(dataflow.Times, a, dataflow.IntValue(4, 8, false)),
			"(Operator Sll Next:(Terminal top.a),(EvalValue 2 width:32))"},
		{"divide power of two", op(dataflow.Divide, a, dataflow.IntValue(2, 8, false)),
			"(Operator Srl Next:(Terminal top.a),(EvalValue 1 width:32))"},
		{"times keeps order", op(dataflow.Times, op(dataflow.Plus, a, b), dataflow.IntValue(3, 32, true)),
			"(Operator Times Next:(Operator Plus Next:(Terminal top.a),(Terminal top.b)),(EvalValue 3 width:32 signed))"},
		{"idempotent and", op(dataflow.And, a, a), "(Terminal top.a)"},
		{"xor self", op(dataflow.Xor, b, b), "(EvalValue 0 width:4)"},
		{"complement and", op(dataflow.And, b, op(dataflow.Unot, b)), "(EvalValue 0 width:4)"},
		{"complement or", op(dataflow.Or, op(dataflow.Unot, b), b), "(EvalValue 15 width:4)"},
		{"excluded middle", op(dataflow.Lor, c, op(dataflow.Ulnot, c)), "(EvalValue 1 width:1)"},
		{"double negation", op(dataflow.Unot, op(dataflow.Unot, a)), "(Terminal top.a)"},
		{"logical chain sorted", op(dataflow.Land, c, op(dataflow.Land, d, c)),
			"(Operator Land Next:(Terminal top.d),(Terminal top.c))"},
		{"same arms", dataflow.Branch{Cond: c, True: a, False: a}, "(Terminal top.a)"},
		{"redundant inner", dataflow.Branch{Cond: c, True: a, False: dataflow.Branch{Cond: c, True: b, False: d}},
			"(Branch Cond:(Terminal top.c) True:(Terminal top.a) False:(Terminal top.d))"},
		{"full select", dataflow.Partselect{Var: a, MSB: dataflow.IntValue(7, 32, true), LSB: dataflow.IntValue(0, 32, true)},
			"(Terminal top.a)"},
		{"select of select", dataflow.Partselect{
			Var: dataflow.Partselect{Var: a, MSB: dataflow.IntValue(7, 32, true), LSB: dataflow.IntValue(4, 32, true)},
			MSB: dataflow.IntValue(1, 32, true), LSB: dataflow.IntValue(0, 32, true)},
			"(Partselect Var:(Terminal top.a) MSB:(EvalValue 5 width:32 signed) LSB:(EvalValue 4 width:32 signed))"},
		{"merge adjacent selects", dataflow.Concat{Nodes: []dataflow.Node{
			dataflow.Partselect{Var: a, MSB: dataflow.IntValue(7, 32, true), LSB: dataflow.IntValue(4, 32, true)},
			dataflow.Partselect{Var: a, MSB: dataflow.IntValue(3, 32, true), LSB: dataflow.IntValue(0, 32, true)},
		}}, "(Terminal top.a)"},
		{"select from concat", dataflow.Partselect{
			Var: dataflow.Concat{Nodes: []dataflow.Node{a, b}},
			MSB: dataflow.IntValue(3, 32, true), LSB: dataflow.IntValue(0, 32, true)},
			"(Terminal top.b)"},
		{"flatten concat", dataflow.Concat{Nodes: []dataflow.Node{c, dataflow.Concat{Nodes: []dataflow.Node{d, a}}}},
			"(Concat Next:(Terminal top.c),(Terminal top.d),(Terminal top.a))"},
		{"concat of branches", dataflow.Concat{Nodes: []dataflow.Node{
			dataflow.Branch{Cond: c, True: a, False: b},
			dataflow.Branch{Cond: c, True: b, False: a},
		}}, "(Branch Cond:(Terminal top.c) True:(Concat Next:(Terminal top.a),(Terminal top.b)) False:(Concat Next:(Terminal top.b),(Terminal top.a)))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataflow.Key(o.Optimize(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Optimize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWidth(t *testing.T) {
	o, _ := fixture()
	a, b, c := ref("a"), ref("b"), ref("c")
	tests := []struct {
		name string
		in   dataflow.Node
		want int
	}{
		{"terminal", a, 8},
		{"one-bit wire", c, 1},
		{"undeclared", ref("nothere"), 1},
		{"widest operand", op(dataflow.Plus, a, b), 8},
		{"comparison", op(dataflow.Eq, a, b), 1},
		{"shift keeps left", op(dataflow.Sll, b, a), 4},
		{"concat sums", dataflow.Concat{Nodes: []dataflow.Node{a, b, c}}, 13},
		{"part-select", dataflow.Partselect{Var: a, MSB: lit("5"), LSB: lit("2")}, 4},
		{"bit-select", dataflow.Pointer{Var: a, Ptr: lit("1")}, 1},
		{"branch takes wider arm", dataflow.Branch{Cond: c, True: a, False: b}, 8},
		{"unknown select bounds", dataflow.Partselect{Var: a, MSB: b, LSB: lit("0")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.Width(tt.in); got != tt.want {
				t.Errorf("Width(%s) = %d, want %d", dataflow.Key(tt.in), got, tt.want)
			}
		})
	}
}

func TestResolve_InlinesRenamesAndNets(t *testing.T) {
	o, terms := fixture()
	terms.Add(term("n", 8, dataflow.TypeWire))
	terms.Add(term("r_rn0", 8, dataflow.TypeRename))
	always := &dataflow.AlwaysInfo{Combinational: true}

	binds := dataflow.NewBindTable()
	// n is a net with one continuous driver
	binds.Add(&dataflow.Bind{Dest: chain("top", "n"), Tree: op(dataflow.Plus, ref("a"), dataflow.IntValue(0, 8, false)), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{Dest: chain("top", "r_rn0"), Tree: op(dataflow.And, ref("n"), ref("a")), Always: always, Kind: dataflow.BindBlocking})
	binds.Add(&dataflow.Bind{Dest: chain("top", "r"), Tree: ref("r_rn0"), Always: always, Kind: dataflow.BindBlocking})

	o.Resolve(binds)

	got := binds.Get("top.r")
	if len(got) != 1 {
		t.Fatalf("got %d binds for top.r, want 1", len(got))
	}
	if diff := cmp.Diff("(Terminal top.a)", dataflow.Key(got[0].Tree)); diff != "" {
		t.Errorf("r tree mismatch (-want +got):\n%s", diff)
	}
	if _, ok := terms.Lookup("top.r_rn0"); ok {
		t.Error("unused rename top.r_rn0 should be removed")
	}
	if len(binds.Get("top.r_rn0")) != 0 {
		t.Error("binds of the removed rename should be dropped")
	}
}

func TestResolve_RegisterNotInlined(t *testing.T) {
	o, terms := fixture()
	terms.Add(term("y", 8, dataflow.TypeWire))
	binds := dataflow.NewBindTable()
	binds.Add(&dataflow.Bind{Dest: chain("top", "r"), Tree: ref("a"), Always: &dataflow.AlwaysInfo{ClockEdge: dataflow.Posedge}, Kind: dataflow.BindNonblocking})
	binds.Add(&dataflow.Bind{Dest: chain("top", "y"), Tree: ref("r"), Kind: dataflow.BindAssign})

	o.Resolve(binds)

	if got := dataflow.Key(binds.Get("top.y")[0].Tree); got != "(Terminal top.r)" {
		t.Errorf("y tree = %s, want the register itself", got)
	}
}

func TestResolve_FitsConstants(t *testing.T) {
	o, _ := fixture()
	binds := dataflow.NewBindTable()
	binds.Add(&dataflow.Bind{Dest: chain("top", "b"), Tree: lit("1"), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{
		Dest: chain("top", "a"), Tree: lit("3"), Kind: dataflow.BindAssign,
		MSB: lit("7"), LSB: lit("6"),
	})

	o.Resolve(binds)

	if got := dataflow.Key(binds.Get("top.b")[0].Tree); got != "(EvalValue 1 width:4)" {
		t.Errorf("b tree = %s", got)
	}
	if got := dataflow.Key(binds.Get("top.a")[0].Tree); got != "(EvalValue 3 width:2)" {
		t.Errorf("a[7:6] tree = %s", got)
	}
}

func TestResolve_SelfLoopTerminates(t *testing.T) {
	o, terms := fixture()
	terms.Add(term("p", 8, dataflow.TypeWire))
	terms.Add(term("q", 8, dataflow.TypeWire))
	binds := dataflow.NewBindTable()
	binds.Add(&dataflow.Bind{Dest: chain("top", "p"), Tree: op(dataflow.Xor, ref("q"), ref("a")), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{Dest: chain("top", "q"), Tree: op(dataflow.Xor, ref("p"), ref("a")), Kind: dataflow.BindAssign})

	o.Resolve(binds)

	if len(binds.All()) != 2 {
		t.Errorf("got %d binds, want 2", len(binds.All()))
	}
}

func ranged(name string, msb, lsb int64) *dataflow.Term {
	return &dataflow.Term{
		Name:  chain("top", name),
		Types: dataflow.TypeWire,
		MSB:   dataflow.IntValue(msb, dataflow.DefaultWidth, true),
		LSB:   dataflow.IntValue(lsb, dataflow.DefaultWidth, true),
	}
}

func idx(v int64) dataflow.EvalValue {
	return dataflow.IntValue(v, dataflow.DefaultWidth, true)
}

func sel(v dataflow.Node, msb, lsb int64) dataflow.Partselect {
	return dataflow.Partselect{Var: v, MSB: idx(msb), LSB: idx(lsb)}
}

func selKey(name string, msb, lsb int64) string {
	return dataflow.Key(sel(ref(name), msb, lsb))
}

// e is declared [8:1] and f [0:7]
func TestSimplify_DeclaredRanges(t *testing.T) {
	o, terms := fixture()
	terms.Add(ranged("e", 8, 1))
	terms.Add(ranged("f", 0, 7))
	c, e, f := ref("c"), ref("e"), ref("f")
	ec := dataflow.Concat{Nodes: []dataflow.Node{e, c}}
	fc := dataflow.Concat{Nodes: []dataflow.Node{f, c}}
	tests := []struct {
		name string
		in   dataflow.Node
		want string
	}{
		{"high part of concat", sel(ec, 8, 3), selKey("e", 8, 3)},
		{"low part of concat", sel(ec, 2, 0),
			"(Concat Next:" + selKey("e", 2, 1) + ",(Terminal top.c))"},
		{"ascending part of concat", sel(fc, 8, 5), selKey("f", 0, 3)},
		{"bit of concat", dataflow.Pointer{Var: ec, Ptr: idx(1)}, selKey("e", 1, 1)},
		{"select of select", sel(sel(e, 8, 5), 1, 0), selKey("e", 6, 5)},
		{"select of ascending select", sel(sel(f, 4, 7), 3, 2), selKey("f", 4, 5)},
		{"merge ascending selects", dataflow.Concat{Nodes: []dataflow.Node{sel(f, 0, 3), sel(f, 4, 7)}}, "(Terminal top.f)"},
		{"merge offset selects", dataflow.Concat{Nodes: []dataflow.Node{sel(e, 8, 5), sel(e, 4, 1)}}, "(Terminal top.e)"},
		{"full ascending select", sel(f, 0, 7), "(Terminal top.f)"},
		{"branch collapsing to a terminal", sel(dataflow.Branch{Cond: c, True: e, False: e}, 3, 0), selKey("e", 4, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataflow.Key(o.Optimize(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Optimize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFold_DeclaredRanges(t *testing.T) {
	terms := dataflow.NewTermTable()
	p := ranged("P", 8, 1)
	p.Types = dataflow.TypeParameter
	q := ranged("Q", 0, 7)
	q.Types = dataflow.TypeParameter
	terms.Add(p)
	terms.Add(q)
	consts := dataflow.NewConstTable()
	consts.Set(chain("top", "P"), dataflow.IntValue(0xf0, 8, false))
	consts.Set(chain("top", "Q"), dataflow.IntValue(0x0f, 8, false))
	o := New(terms, consts)

	tests := []struct {
		name string
		in   dataflow.Node
		want string
	}{
		{"offset high nibble", sel(ref("P"), 8, 5), "(EvalValue 15 width:4)"},
		{"offset low nibble", sel(ref("P"), 4, 1), "(EvalValue 0 width:4)"},
		{"offset bit", dataflow.Pointer{Var: ref("P"), Ptr: idx(8)}, "(EvalValue 1 width:1)"},
		{"ascending high nibble", sel(ref("Q"), 0, 3), "(EvalValue 0 width:4)"},
		{"ascending low nibble", sel(ref("Q"), 4, 7), "(EvalValue 15 width:4)"},
		{"ascending bit", dataflow.Pointer{Var: ref("Q"), Ptr: idx(7)}, "(EvalValue 1 width:1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataflow.Key(o.Fold(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fold mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_DeclaredRanges(t *testing.T) {
	o, terms := fixture()
	terms.Add(ranged("e", 8, 1))
	terms.Add(term("n", 4, dataflow.TypeWire))
	terms.Add(term("m", 4, dataflow.TypeWire))
	terms.Add(ranged("p", 4, 1))
	terms.Add(term("y", 2, dataflow.TypeWire))
	binds := dataflow.NewBindTable()
	// n truncates e; p is e's top nibble and y reads p[2:1]
	binds.Add(&dataflow.Bind{Dest: chain("top", "n"), Tree: ref("e"), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{Dest: chain("top", "m"), Tree: ref("n"), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{Dest: chain("top", "p"), Tree: sel(ref("e"), 8, 5), Kind: dataflow.BindAssign})
	binds.Add(&dataflow.Bind{Dest: chain("top", "y"), Tree: sel(ref("p"), 2, 1), Kind: dataflow.BindAssign})

	o.Resolve(binds)

	if diff := cmp.Diff(selKey("e", 4, 1), dataflow.Key(binds.Get("top.m")[0].Tree)); diff != "" {
		t.Errorf("m tree mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(selKey("e", 6, 5), dataflow.Key(binds.Get("top.y")[0].Tree)); diff != "" {
		t.Errorf("y tree mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	o, terms := fixture()
	terms.Add(ranged("e", 8, 1))
	terms.Add(ranged("f", 0, 7))
	a, b, c, d, e, f := ref("a"), ref("b"), ref("c"), ref("d"), ref("e"), ref("f")
	inputs := []dataflow.Node{
		op(dataflow.Times, op(dataflow.Plus, a, dataflow.IntValue(0, 8, false)), dataflow.IntValue(4, 8, false)),
		op(dataflow.Land, c, op(dataflow.Land, d, op(dataflow.Lor, c, op(dataflow.Ulnot, c)))),
		dataflow.Branch{Cond: c, True: a, False: dataflow.Branch{Cond: c, True: b, False: d}},
		dataflow.Concat{Nodes: []dataflow.Node{sel(a, 7, 4), sel(a, 3, 0), dataflow.Concat{Nodes: []dataflow.Node{c, d}}}},
		sel(dataflow.Concat{Nodes: []dataflow.Node{e, c, f}}, 12, 2),
		sel(sel(f, 2, 7), 3, 1),
		dataflow.Pointer{Var: dataflow.Concat{Nodes: []dataflow.Node{a, b}}, Ptr: idx(5)},
		op(dataflow.Unot, op(dataflow.Unot, op(dataflow.Xor, b, b))),
	}
	for _, in := range inputs {
		once := o.Optimize(in)
		twice := o.Optimize(once)
		if diff := cmp.Diff(dataflow.Key(once), dataflow.Key(twice)); diff != "" {
			t.Errorf("Optimize(%s) is not a fixpoint (-once +twice):\n%s", dataflow.Key(in), diff)
		}
	}
}
