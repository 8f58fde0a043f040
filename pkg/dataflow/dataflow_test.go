package dataflow

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func top() ScopeChain {
	return NewChain(ScopeLabel{Name: "top", Kind: KindModule})
}

func TestScopeChain_StringAndFlat(t *testing.T) {
	c := top().Append(ScopeLabel{Name: "gen", Kind: KindFor, Loop: 2, HasLoop: true}).Signal("x")
	if got := c.String(); got != "top.gen[2].x" {
		t.Errorf("String() = %q, want %q", got, "top.gen[2].x")
	}
	if got := c.Flat(); got != "top_gen_2_x" {
		t.Errorf("Flat() = %q, want %q", got, "top_gen_2_x")
	}
	if got := c.Parent().String(); got != "top.gen[2]" {
		t.Errorf("Parent() = %q", got)
	}
	if c.Last().Kind != KindSignal {
		t.Errorf("Last().Kind = %s, want signal", c.Last().Kind)
	}
}

func TestScopeChain_AppendDoesNotAlias(t *testing.T) {
	base := make(ScopeChain, 1, 8)
	base[0] = ScopeLabel{Name: "top", Kind: KindModule}
	a := base.Signal("a")
	b := base.Signal("b")
	if a.String() != "top.a" || b.String() != "top.b" {
		t.Errorf("got %q and %q", a, b)
	}
}

func TestScopeLabel_AnyMatches(t *testing.T) {
	block := ScopeLabel{Name: "inst", Kind: KindModule}
	wild := ScopeLabel{Name: "inst", Kind: KindAny}
	other := ScopeLabel{Name: "inst", Kind: KindBlock}
	if !block.Equal(wild) || !wild.Equal(other) {
		t.Error("KindAny should match every kind")
	}
	if block.Equal(other) {
		t.Error("module and block labels should differ")
	}
	loop := ScopeLabel{Name: "inst", Kind: KindAny, Loop: 1, HasLoop: true}
	if loop.Equal(block) {
		t.Error("loop label should not match a plain label")
	}
}

func TestScopeChain_HasPrefix(t *testing.T) {
	c := top().Append(ScopeLabel{Name: "u0", Kind: KindModule}).Signal("x")
	if !c.HasPrefix(top()) {
		t.Error("expected top to be a prefix")
	}
	if c.HasPrefix(NewChain(ScopeLabel{Name: "u0", Kind: KindModule})) {
		t.Error("u0 is not a prefix")
	}
}

func TestParseIntLiteral(t *testing.T) {
	tests := []struct {
		lit  string
		dump string
	}{
		{"42", "(EvalValue 42 width:32 signed)"},
		{"8'hFF", "(EvalValue 255 width:8)"},
		{"8'hff", "(EvalValue 255 width:8)"},
		{"4'sb1111", "(EvalValue -1 width:4 signed)"},
		{"4'b1_010", "(EvalValue 10 width:4)"},
		{"'d7", "(EvalValue 7 width:32)"},
		{"3'd9", "(EvalValue 1 width:3)"},
		{"'1", "(EvalValue 1 width:1)"},
		{"'0", "(EvalValue 0 width:1)"},
		{"8'bx1", "(Undefined width:8)"},
		{"4'bz", "(HighImpedance width:4)"},
		{"4'b??01", "(HighImpedance width:4)"},
		{"'x", "(Undefined width:1)"},
		{"12'o17", "(EvalValue 15 width:12)"},
	}
	for _, tt := range tests {
		t.Run(tt.lit, func(t *testing.T) {
			n, err := ParseIntLiteral(tt.lit)
			if err != nil {
				t.Fatalf("ParseIntLiteral(%q): %v", tt.lit, err)
			}
			if n.String() != tt.dump {
				t.Errorf("ParseIntLiteral(%q) = %s, want %s", tt.lit, n, tt.dump)
			}
		})
	}
}

func TestParseIntLiteral_Errors(t *testing.T) {
	for _, lit := range []string{"8'q1", "0'd1", "8'b102", "x"} {
		if _, err := ParseIntLiteral(lit); err == nil {
			t.Errorf("ParseIntLiteral(%q): expected error", lit)
		}
	}
}

func TestEvalValue_Normalize(t *testing.T) {
	v := IntValue(-3, 8, false)
	if v.Value.Int64() != 253 {
		t.Errorf("unsigned -3 in 8 bits = %s, want 253", v.Value)
	}
	s := IntValue(253, 8, true)
	if s.Value.Int64() != -3 {
		t.Errorf("signed 253 in 8 bits = %s, want -3", s.Value)
	}
	if got := s.ToCode(); got != "-8'sd3" {
		t.Errorf("ToCode() = %q", got)
	}
	if got := s.Unsigned().Int64(); got != 253 {
		t.Errorf("Unsigned() = %d, want 253", got)
	}
	if got := v.Resize(4, false).Value.Int64(); got != 13 {
		t.Errorf("Resize(4) = %d, want 13", got)
	}
}

func TestStringValue(t *testing.T) {
	v := StringValue("AB")
	if v.Width != 16 || v.Value.Int64() != 0x4142 {
		t.Errorf("StringValue(AB) = %s width %d", v.Value, v.Width)
	}
}

func TestNode_Dump(t *testing.T) {
	a := Terminal{Name: top().Signal("a")}
	c := Terminal{Name: top().Signal("c")}
	tests := []struct {
		name string
		node Node
		dump string
		code string
	}{
		{
			"operator",
			Operator{Op: Plus, Operands: []Node{a, IntConst{Literal: "1"}}},
			"(Operator Plus Next:(Terminal top.a),(IntConst 1))",
			"(top_a + 1)",
		},
		{
			"unary",
			Operator{Op: Unot, Operands: []Node{a}},
			"(Operator Unot Next:(Terminal top.a))",
			"~top_a",
		},
		{
			"branch with hold",
			Branch{Cond: c, True: IntConst{Literal: "1"}},
			"(Branch Cond:(Terminal top.c) True:(IntConst 1) False:None)",
			"(top_c ? 1 : 'bx)",
		},
		{
			"partselect",
			Partselect{Var: a, MSB: IntConst{Literal: "3"}, LSB: IntConst{Literal: "0"}},
			"(Partselect Var:(Terminal top.a) MSB:(IntConst 3) LSB:(IntConst 0))",
			"top_a[3:0]",
		},
		{
			"pointer",
			Pointer{Var: a, Ptr: c},
			"(Pointer Var:(Terminal top.a) PTR:(Terminal top.c))",
			"top_a[top_c]",
		},
		{
			"concat",
			Concat{Nodes: []Node{a, c}},
			"(Concat Next:(Terminal top.a),(Terminal top.c))",
			"{top_a, top_c}",
		},
		{
			"syscall",
			Syscall{Name: "signed", Args: []Node{a}},
			"(SystemCall signed Next:(Terminal top.a))",
			"$signed(top_a)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.String(); got != tt.dump {
				t.Errorf("String() = %s, want %s", got, tt.dump)
			}
			if got := tt.node.ToCode(); got != tt.code {
				t.Errorf("ToCode() = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestNode_EqualAndTerminals(t *testing.T) {
	a := Terminal{Name: top().Signal("a")}
	b := Terminal{Name: top().Signal("b")}
	x := Operator{Op: And, Operands: []Node{a, Branch{Cond: b, True: a, False: b}}}
	y := Operator{Op: And, Operands: []Node{a, Branch{Cond: b, True: a, False: b}}}
	if !Equal(x, y) {
		t.Error("structurally equal trees should compare equal")
	}
	if Equal(x, nil) || !Equal(nil, nil) {
		t.Error("nil handling in Equal is wrong")
	}
	var names []string
	for _, n := range Terminals(x) {
		names = append(names, n.String())
	}
	if diff := cmp.Diff([]string{"top.a", "top.b"}, names); diff != "" {
		t.Errorf("Terminals() mismatch (-want +got):\n%s", diff)
	}
}

func TestTermTable_AddMergesTypes(t *testing.T) {
	tt := NewTermTable()
	name := top().Signal("LED")
	tt.Add(&Term{Name: name, Types: TypeOutput, MSB: IntConst{Literal: "7"}, LSB: IntConst{Literal: "0"}})
	tt.Add(&Term{Name: name, Types: TypeReg, MSB: IntConst{Literal: "3"}, LSB: IntConst{Literal: "0"}})
	term, ok := tt.Get(name)
	if !ok {
		t.Fatal("term not found")
	}
	if !term.Types.Has(TypeOutput | TypeReg) {
		t.Errorf("types = %s, want output and reg", term.Types)
	}
	if Key(term.MSB) != "(IntConst 7)" {
		t.Errorf("MSB changed to %s", Key(term.MSB))
	}
	if got := term.ToCode(); got != "output reg [7:0] top_LED;" {
		t.Errorf("ToCode() = %q", got)
	}
	if tt.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tt.Len())
	}
}

func TestTermType_Names(t *testing.T) {
	ty := TypeInput | TypeWire
	if ty.String() != "[input,wire]" {
		t.Errorf("String() = %s", ty)
	}
	got, ok := ParseTermType("localparam")
	if !ok || got != TypeLocalparam {
		t.Errorf("ParseTermType(localparam) = %v, %v", got, ok)
	}
	if !TypeInteger.IsRegister() || TypeWire.IsRegister() {
		t.Error("IsRegister is wrong")
	}
}

func TestBindTable_Supersede(t *testing.T) {
	bt := NewBindTable()
	dest := top().Signal("x")
	bt.Add(&Bind{Dest: dest, Tree: IntConst{Literal: "1"}})
	bt.Add(&Bind{Dest: dest, Tree: IntConst{Literal: "2"}})
	bt.Add(&Bind{Dest: dest, MSB: IntConst{Literal: "3"}, LSB: IntConst{Literal: "0"}, Tree: IntConst{Literal: "3"}})
	binds := bt.Get(dest.String())
	if len(binds) != 2 {
		t.Fatalf("got %d binds, want 2", len(binds))
	}
	if Key(binds[0].Tree) != "(IntConst 2)" {
		t.Errorf("first bind tree = %s, want the later assignment", Key(binds[0].Tree))
	}
	if len(bt.All()) != 2 {
		t.Errorf("All() = %d binds", len(bt.All()))
	}
}

func TestBind_ToCode(t *testing.T) {
	clk := top().Signal("CLK")
	rst := top().Signal("RST_X")
	b := &Bind{
		Dest: top().Signal("LED"),
		Tree: IntConst{Literal: "0"},
		Kind: BindNonblocking,
		Always: &AlwaysInfo{
			ClockName: clk, ClockEdge: Posedge,
			ResetName: rst, ResetEdge: Negedge,
		},
	}
	want := "always @(posedge top_CLK or negedge top_RST_X) begin\n  top_LED <= 0;\nend\n"
	if got := b.ToCode(); got != want {
		t.Errorf("ToCode() = %q, want %q", got, want)
	}

	comb := &Bind{Dest: top().Signal("y"), Tree: Terminal{Name: top().Signal("a")}, Kind: BindBlocking,
		Always: &AlwaysInfo{Combinational: true}}
	want = "always @* begin\n  top_y = top_a;\nend\n"
	if got := comb.ToCode(); got != want {
		t.Errorf("ToCode() = %q, want %q", got, want)
	}

	assign := &Bind{Dest: top().Signal("y"), Ptr: IntConst{Literal: "2"}, Tree: IntConst{Literal: "1"}, Kind: BindAssign}
	if got := assign.ToCode(); got != "assign top_y[2] = 1;\n" {
		t.Errorf("ToCode() = %q", got)
	}
}

func TestConstTable_States(t *testing.T) {
	ct := NewConstTable()
	i := top().Signal("i")
	if _, st := ct.Lookup(i); st != Absent {
		t.Fatalf("state = %v, want Absent", st)
	}
	ct.Set(i, IntValue(3, 32, true))
	v, st := ct.Lookup(i)
	if st != Known || v.Int64() != 3 {
		t.Fatalf("got %v %v, want Known 3", v, st)
	}
	saved, savedState := ct.LookupKey(i.String())
	ct.SetUnknown(i)
	if _, st := ct.Lookup(i); st != Unknown {
		t.Fatalf("state = %v, want Unknown", st)
	}
	ct.Restore(i.String(), saved, savedState)
	if v, st := ct.Lookup(i); st != Known || v.Int64() != 3 {
		t.Errorf("restore failed: %v %v", v, st)
	}
	ct.Restore(i.String(), EvalValue{}, Absent)
	if ct.Len() != 0 {
		t.Errorf("Len() = %d after removing", ct.Len())
	}
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		Fail(Formatf("bad %s", "thing"))
		return nil
	}
	err := run()
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T", err)
	}
	if fe.Msg != "bad thing" {
		t.Errorf("Msg = %q", fe.Msg)
	}
}

func TestRecover_RepanicsForeignPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	func() (err error) {
		defer Recover(&err)
		panic("boom")
	}()
}
