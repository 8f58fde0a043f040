package elab

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/frames"
	"github.com/raymyers/vflow/pkg/lexer"
	"github.com/raymyers/vflow/pkg/modindex"
	"github.com/raymyers/vflow/pkg/optimizer"
	"github.com/raymyers/vflow/pkg/parser"
)

func build(t *testing.T, src string) *modindex.Table {
	t.Helper()
	p := parser.New(lexer.New(src))
	ast := p.ParseSource()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %s", strings.Join(errs, "; "))
	}
	mods, err := modindex.Build(ast)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	return mods
}

func elaborate(t *testing.T, src, top string) *Result {
	t.Helper()
	res, err := New(build(t, src), DefaultOptions()).Elaborate(top)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	return res
}

// resolved runs the optimizer over the binds the way the analyzer does
func resolved(res *Result) *Result {
	o := optimizer.New(res.Terms, res.Consts)
	o.ResolveTerms()
	o.Resolve(res.Binds, res.Initials)
	return res
}

func onlyBind(t *testing.T, res *Result, key string) *dataflow.Bind {
	t.Helper()
	binds := res.Binds.Get(key)
	if len(binds) != 1 {
		t.Fatalf("%s: want 1 bind, got %d: %v", key, len(binds), binds)
	}
	return binds[0]
}

const counterSrc = `
module top(input CLK, input RST, output reg [7:0] LED);
  reg [7:0] count;
  always @(posedge CLK) begin
    if (RST) begin
      count <= 0;
      LED <= 0;
    end else begin
      if (count == 99) begin
        count <= 0;
        LED <= LED + 1;
      end else begin
        count <= count + 1;
      end
    end
  end
endmodule
`

func TestElaborate_Counter(t *testing.T) {
	res := elaborate(t, counterSrc, "top")

	count := onlyBind(t, res, "top.count")
	want := "(Branch Cond:(Terminal top.RST) True:(IntConst 0) " +
		"False:(Branch Cond:(Operator Eq Next:(Terminal top.count),(IntConst 99)) True:(IntConst 0) " +
		"False:(Operator Plus Next:(Terminal top.count),(IntConst 1))))"
	if diff := cmp.Diff(want, dataflow.Key(count.Tree)); diff != "" {
		t.Errorf("count tree mismatch (-want +got):\n%s", diff)
	}
	if count.Kind != dataflow.BindNonblocking {
		t.Errorf("count kind = %s", count.Kind)
	}
	if count.Always == nil || count.Always.ClockName.String() != "top.CLK" || count.Always.ClockEdge != dataflow.Posedge {
		t.Errorf("count always = %v", count.Always)
	}

	led := onlyBind(t, res, "top.LED")
	want = "(Branch Cond:(Terminal top.RST) True:(IntConst 0) " +
		"False:(Branch Cond:(Operator Eq Next:(Terminal top.count),(IntConst 99)) " +
		"True:(Operator Plus Next:(Terminal top.LED),(IntConst 1)) False:None))"
	if diff := cmp.Diff(want, dataflow.Key(led.Tree)); diff != "" {
		t.Errorf("LED tree mismatch (-want +got):\n%s", diff)
	}

	term, ok := res.Terms.Lookup("top.LED")
	if !ok {
		t.Fatal("top.LED not declared")
	}
	if !term.Types.Has(dataflow.TypeOutput | dataflow.TypeReg) {
		t.Errorf("LED types = %s", term.Types)
	}
}

func TestElaborate_GenerateFor(t *testing.T) {
	res := elaborate(t, `
module sub(input a, output b);
  assign b = ~a;
endmodule
module top(input [3:0] in, output [3:0] out);
  genvar i;
  generate
    for (i = 0; i < 4; i = i + 1) begin : g
      sub inst(.a(in[i]), .b(out[i]));
    end
  endgenerate
endmodule
`, "top")

	for _, key := range []string{"top.g[0].inst.a", "top.g[3].inst.b"} {
		if _, ok := res.Terms.Lookup(key); !ok {
			t.Errorf("term %s missing", key)
		}
	}
	a2 := onlyBind(t, res, "top.g[2].inst.a")
	want := "(Pointer Var:(Terminal top.in) PTR:(EvalValue 2 width:32 signed))"
	if diff := cmp.Diff(want, dataflow.Key(a2.Tree)); diff != "" {
		t.Errorf("port bind mismatch (-want +got):\n%s", diff)
	}
	outs := res.Binds.Get("top.out")
	if len(outs) != 4 {
		t.Fatalf("want 4 binds on top.out, got %d", len(outs))
	}
	if got := dataflow.Key(outs[1].Ptr); got != "(EvalValue 1 width:32 signed)" {
		t.Errorf("second out bind ptr = %s", got)
	}
	b1 := onlyBind(t, res, "top.g[1].inst.b")
	if got := dataflow.Key(b1.Tree); got != "(Operator Unot Next:(Terminal top.g[1].inst.a))" {
		t.Errorf("inner assign = %s", got)
	}
	if _, st := res.Consts.Lookup(dataflow.NewChain(
		dataflow.ScopeLabel{Name: "top"}, dataflow.ScopeLabel{Name: "i", Kind: dataflow.KindSignal},
	)); st != dataflow.Known {
		t.Errorf("genvar state = %v", st)
	}
}

func TestElaborate_FunctionCall(t *testing.T) {
	res := resolved(elaborate(t, `
module top(input [7:0] a, output [7:0] y);
  function [7:0] inc;
    input [7:0] v;
    begin
      inc = v + 8'd1;
    end
  endfunction
  assign y = inc(a);
endmodule
`, "top"))

	y := onlyBind(t, res, "top.y")
	want := "(Operator Plus Next:(Terminal top.a),(EvalValue 1 width:8))"
	if diff := cmp.Diff(want, dataflow.Key(y.Tree)); diff != "" {
		t.Errorf("y tree mismatch (-want +got):\n%s", diff)
	}
	ret := onlyBind(t, res, "top.inc_call0.inc")
	if diff := cmp.Diff(want, dataflow.Key(ret.Tree)); diff != "" {
		t.Errorf("return value mismatch (-want +got):\n%s", diff)
	}
	for _, term := range res.Terms.Terms() {
		if term.Types.Has(dataflow.TypeRename) {
			t.Errorf("rename %s survived resolution", term.Name)
		}
	}
}

func TestElaborate_ConstantFunction(t *testing.T) {
	res := elaborate(t, `
module top(output [7:0] y);
  function integer clog2x;
    input integer value;
    begin
      value = value - 1;
      for (clog2x = 0; value > 0; clog2x = clog2x + 1)
        value = value >> 1;
    end
  endfunction
  localparam W = clog2x(16);
  assign y = W;
endmodule
`, "top")

	v, st := res.Consts.Lookup(dataflow.NewChain(
		dataflow.ScopeLabel{Name: "top"}, dataflow.ScopeLabel{Name: "W", Kind: dataflow.KindSignal},
	))
	if st != dataflow.Known || v.Int64() != 4 {
		t.Errorf("W = %v (state %v), want 4", v, st)
	}
}

func TestElaborate_BlockingRename(t *testing.T) {
	res := resolved(elaborate(t, `
module top(input [7:0] a, input [7:0] b, output reg [7:0] x, output reg [7:0] y);
  always @* begin
    x = a + b;
    y = x * 3;
  end
endmodule
`, "top"))

	y := onlyBind(t, res, "top.y")
	want := "(Operator Times Next:(Operator Plus Next:(Terminal top.a),(Terminal top.b)),(EvalValue 3 width:32 signed))"
	if diff := cmp.Diff(want, dataflow.Key(y.Tree)); diff != "" {
		t.Errorf("y tree mismatch (-want +got):\n%s", diff)
	}
	if y.Kind != dataflow.BindBlocking || y.Always == nil || !y.Always.Combinational {
		t.Errorf("y bind = %s", y)
	}
	x := onlyBind(t, res, "top.x")
	if got := dataflow.Key(x.Tree); got != "(Operator Plus Next:(Terminal top.a),(Terminal top.b))" {
		t.Errorf("x tree = %s", got)
	}
}

func TestElaborate_Case(t *testing.T) {
	res := elaborate(t, `
module top(input [1:0] s, input a, input b, input c, output reg y);
  always @* begin
    case (s)
      default: y = c;
      2'd0: y = a;
      2'd1, 2'd2: y = b;
    endcase
  end
endmodule
`, "top")

	y := onlyBind(t, res, "top.y")
	want := "(Branch Cond:(Operator Eq Next:(Terminal top.s),(IntConst 2'd0)) True:(Terminal top.a) " +
		"False:(Branch Cond:(Operator Lor Next:(Operator Eq Next:(Terminal top.s),(IntConst 2'd1))," +
		"(Operator Eq Next:(Terminal top.s),(IntConst 2'd2))) True:(Terminal top.b) False:(Terminal top.c)))"
	if diff := cmp.Diff(want, dataflow.Key(y.Tree)); diff != "" {
		t.Errorf("case tree mismatch (-want +got):\n%s", diff)
	}
}

func TestElaborate_LoopUnroll(t *testing.T) {
	res := elaborate(t, `
module top(input [3:0] a, output reg [3:0] y);
  integer i;
  always @* begin
    for (i = 0; i < 4; i = i + 1)
      y[i] = a[3 - i];
  end
endmodule
`, "top")

	ys := res.Binds.Get("top.y")
	if len(ys) != 4 {
		t.Fatalf("want 4 binds on top.y, got %d", len(ys))
	}
	if got := dataflow.Key(ys[3].Ptr); got != "(EvalValue 3 width:32 signed)" {
		t.Errorf("last ptr = %s", got)
	}
	if got := res.Binds.Get("top.i"); len(got) != 0 {
		t.Errorf("loop variable has binds: %v", got)
	}
	if _, st := res.Consts.LookupKey("top.i"); st != dataflow.Absent {
		t.Errorf("loop variable state after the process = %v", st)
	}
}

func TestElaborate_TaskCall(t *testing.T) {
	res := resolved(elaborate(t, `
module top(input [3:0] a, output reg [3:0] y);
  task twice;
    input [3:0] i;
    output [3:0] o;
    begin
      o = i + i;
    end
  endtask
  always @* begin
    twice(a, y);
  end
endmodule
`, "top"))

	y := onlyBind(t, res, "top.y")
	if got := dataflow.Key(y.Tree); got != "(Operator Plus Next:(Terminal top.a),(Terminal top.a))" {
		t.Errorf("y tree = %s", got)
	}
}

func TestElaborate_Parameters(t *testing.T) {
	res := elaborate(t, `
module sub #(parameter W = 4) (input [W-1:0] d, output [W-1:0] q);
  localparam D = W * 2;
  localparam B = A + 1;
  localparam A = 3;
  assign q = d;
endmodule
module top(input [7:0] d, output [7:0] q);
  sub #(.W(8)) u(.d(d), .q(q));
endmodule
`, "top")

	tests := []struct {
		key  string
		want int64
	}{
		{"top.u.W", 8},
		{"top.u.D", 16},
		{"top.u.A", 3},
		{"top.u.B", 4},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, st := res.Consts.LookupKey(tt.key)
			if st != dataflow.Known || v.Int64() != tt.want {
				t.Errorf("%s = %v (state %v), want %d", tt.key, v, st, tt.want)
			}
		})
	}

	term, ok := res.Terms.Lookup("top.u.d")
	if !ok {
		t.Fatal("top.u.d not declared")
	}
	if w := optimizer.New(res.Terms, res.Consts).TermWidth(term); w != 8 {
		t.Errorf("port width = %d, want 8", w)
	}
	w := onlyBind(t, res, "top.u.W")
	if w.Kind != dataflow.BindParameter || dataflow.Key(w.Tree) != "(IntConst 8)" {
		t.Errorf("override bind = %s", w)
	}
	q := onlyBind(t, res, "top.q")
	if got := dataflow.Key(q.Tree); got != "(Terminal top.u.q)" {
		t.Errorf("output port bind = %s", got)
	}
}

func TestElaborate_Sensitivity(t *testing.T) {
	tests := []struct {
		name  string
		sens  string
		clock string
		reset string
		comb  bool
	}{
		{"clock and active-low reset", "posedge clk or negedge rst_n", "top.clk", "top.rst_n", false},
		{"names decide over order", "negedge RST or posedge CLK", "top.CLK", "top.RST", false},
		{"single edge is the clock", "posedge a", "top.a", "", false},
		{"lone reset becomes the clock", "posedge reset", "top.reset", "", false},
		{"level list", "a or b", "", "", true},
		{"star", "*", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "module top(input clk, input rst_n, input CLK, input RST, input reset, input a, input b, output reg y);\n" +
				"  always @(" + tt.sens + ") y <= a;\nendmodule\n"
			res := elaborate(t, src, "top")
			info := onlyBind(t, res, "top.y").Always
			if info == nil {
				t.Fatal("no always info")
			}
			if got := info.ClockName.String(); got != tt.clock {
				t.Errorf("clock = %q, want %q", got, tt.clock)
			}
			if got := info.ResetName.String(); got != tt.reset {
				t.Errorf("reset = %q, want %q", got, tt.reset)
			}
			if info.Combinational != tt.comb {
				t.Errorf("combinational = %v", info.Combinational)
			}
		})
	}
}

func TestElaborate_ImplicitNet(t *testing.T) {
	res := elaborate(t, `
module top(input a, output y);
  assign w = a;
  assign y = w;
endmodule
`, "top")
	term, ok := res.Terms.Lookup("top.w")
	if !ok || !term.Types.Has(dataflow.TypeWire) {
		t.Fatalf("implicit net missing: %v", term)
	}
	if got := dataflow.Key(onlyBind(t, res, "top.y").Tree); got != "(Terminal top.w)" {
		t.Errorf("y tree = %s", got)
	}
}

func TestElaborate_Errors(t *testing.T) {
	var format *dataflow.FormatError
	var definition *dataflow.DefinitionError
	tests := []struct {
		name   string
		src    string
		target any
	}{
		{"mixed sensitivity", `
module top(input clk, input a, output reg y);
  always @(posedge clk or a) y <= a;
endmodule`, &format},
		{"non-constant generate if", `
module top(input a, output y);
  generate if (a) begin : g assign y = 1; end endgenerate
endmodule`, &format},
		{"undefined module", `
module top(input a);
  nothere u(.a(a));
endmodule`, &definition},
		{"function arity", `
module top(input a, output y);
  function f; input x; input z; f = x & z; endfunction
  assign y = f(a);
endmodule`, &format},
		{"non-blocking in function", `
module top(input a, output y);
  function f; input x; f <= x; endfunction
  assign y = f(a);
endmodule`, &format},
		{"duplicate parameter", `
module top(output y);
  localparam P = 1;
  localparam P = 2;
  assign y = P;
endmodule`, &format},
		{"unknown parameter override", `
module sub #(parameter W = 1) (input a);
endmodule
module top(input a);
  sub #(.NOPE(2)) u(.a(a));
endmodule`, &format},
		{"undeclared with nettype none", "`default_nettype none\n" + `
module top(input a, output y);
  assign y = w;
endmodule`, &definition},
		{"non-blocking for init", `
module top(input a, output reg y);
  integer i;
  always @* for (i <= 0; i < 2; i = i + 1) y = a;
endmodule`, &format},
		{"non-constant for condition", `
module top(input [3:0] a, output reg y);
  integer i;
  always @* for (i = 0; i < a; i = i + 1) y = a[0];
endmodule`, &format},
		{"instance without a name", `
module sub(input a);
endmodule
module top(input a);
  sub (.a(a));
endmodule`, &format},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(build(t, tt.src), DefaultOptions()).Elaborate("top")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.As(err, tt.target) {
				t.Errorf("error %v (%T) has the wrong kind", err, err)
			}
		})
	}
}

func TestElaborate_NoBindChecksSensitivity(t *testing.T) {
	src := `
module top(input clk, input a, output reg y);
  always @(posedge clk or a) y <= a;
endmodule`
	opts := DefaultOptions()
	opts.NoBind = true
	_, err := New(build(t, src), opts).Elaborate("top")
	var format *dataflow.FormatError
	if !errors.As(err, &format) {
		t.Fatalf("expected a format error without binds, got %v", err)
	}
}

func TestElaborate_MissingTop(t *testing.T) {
	_, err := New(build(t, "module a; endmodule\n"), DefaultOptions()).Elaborate("b")
	var definition *dataflow.DefinitionError
	if !errors.As(err, &definition) {
		t.Fatalf("got %v", err)
	}
}

func TestMergeBranch(t *testing.T) {
	c := dataflow.Terminal{Name: dataflow.NewChain(dataflow.ScopeLabel{Name: "c"})}
	d := dataflow.Terminal{Name: dataflow.NewChain(dataflow.ScopeLabel{Name: "d"})}
	one := dataflow.IntConst{Literal: "1"}
	two := dataflow.IntConst{Literal: "2"}

	tree := mergeBranch(nil, []frames.Condition{{Cond: c, True: true}}, one)
	tree = mergeBranch(tree, []frames.Condition{{Cond: c, True: false}, {Cond: d, True: true}}, two)
	want := "(Branch Cond:(Terminal c) True:(IntConst 1) False:(Branch Cond:(Terminal d) True:(IntConst 2) False:None))"
	if diff := cmp.Diff(want, dataflow.Key(tree)); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}
	if got := dataflow.Key(mergeBranch(tree, nil, two)); got != "(IntConst 2)" {
		t.Errorf("unconditional write = %s", got)
	}
}
