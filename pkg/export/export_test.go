package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/vflow/pkg/analyzer"
)

const regSrc = `
module top(input clk, input rst, input [3:0] d, output reg [3:0] q);
  localparam INIT = 4'd5;
  reg [7:0] mem [0:3];
  initial q = INIT;
  always @(posedge clk or posedge rst) begin
    if (rst) q <= INIT;
    else q <= d;
  end
endmodule
`

func result(t *testing.T) *analyzer.Result {
	t.Helper()
	res, err := analyzer.AnalyzeString(regSrc, "top.v", analyzer.Options{Top: "top"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return res
}

func TestBuild(t *testing.T) {
	doc := Build(result(t))
	if doc.Top != "top" {
		t.Errorf("top = %q", doc.Top)
	}

	var q *Bind
	for i := range doc.Binds {
		if doc.Binds[i].Dest == "top.q" {
			q = &doc.Binds[i]
		}
	}
	if q == nil {
		t.Fatal("no bind for top.q")
	}
	wantClock := &Edge{Name: "top.clk", Edge: "posedge"}
	if diff := cmp.Diff(wantClock, q.Clock); diff != "" {
		t.Errorf("clock mismatch (-want +got):\n%s", diff)
	}
	wantReset := &Edge{Name: "top.rst", Edge: "posedge"}
	if diff := cmp.Diff(wantReset, q.Reset); diff != "" {
		t.Errorf("reset mismatch (-want +got):\n%s", diff)
	}
	if q.Kind != "nonblocking" || q.Combinational {
		t.Errorf("q bind = %+v", q)
	}
	if !strings.HasPrefix(q.Code, "always @(posedge top_clk or posedge top_rst) begin") {
		t.Errorf("q code = %q", q.Code)
	}

	var mem *Term
	for i := range doc.Terms {
		if doc.Terms[i].Name == "top.mem" {
			mem = &doc.Terms[i]
		}
	}
	if mem == nil {
		t.Fatal("no term top.mem")
	}
	if mem.Width != 8 || len(mem.Dims) != 1 {
		t.Errorf("mem term = %+v", mem)
	}

	initial := false
	for _, b := range doc.Initials {
		if b.Dest == "top.q" && b.Tree == "(EvalValue 5 width:4)" {
			initial = true
		}
	}
	if !initial {
		t.Errorf("no initial value for top.q in %+v", doc.Initials)
	}

	found := false
	for _, c := range doc.Consts {
		if c.Name == "top.INIT" {
			found = true
			if c.Value != "4'd5" || c.Width != 4 {
				t.Errorf("INIT = %+v", c)
			}
		}
	}
	if !found {
		t.Error("constant top.INIT missing")
	}
}

func TestValidator_AcceptsBuiltDocuments(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	if err := v.Validate(Build(result(t))); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidator_Rejects(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", `{"top":"t","terms":[],"binds":[],"consts":[],"extra":1}`},
		{"empty top", `{"top":"","terms":[],"binds":[],"consts":[]}`},
		{"bad term type", `{"top":"t","terms":[{"name":"t.a","types":["latch"],"code":""}],"binds":[],"consts":[]}`},
		{"bad edge", `{"top":"t","terms":[],"binds":[{"dest":"t.q","tree":"x","code":"x","clock":{"name":"t.c","edge":"rising"}}],"consts":[]}`},
		{"zero width constant", `{"top":"t","terms":[],"binds":[],"consts":[{"name":"t.P","value":"0","width":0}]}`},
		{"not json", `{"top":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateJSON([]byte(tt.doc)); err == nil {
				t.Errorf("expected %s to be rejected", tt.doc)
			}
		})
	}
}

func TestWrite_Formats(t *testing.T) {
	res := result(t)

	var buf bytes.Buffer
	if err := Write(&buf, res, "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	var fromJSON Document
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("decoding json output: %v", err)
	}

	buf.Reset()
	if err := Write(&buf, res, "yaml"); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML Document
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decoding yaml output: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Errorf("json and yaml disagree (-json +yaml):\n%s", diff)
	}

	buf.Reset()
	if err := Write(&buf, res, "text"); err != nil {
		t.Fatalf("text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Term:\n", "Bind:\n", "Initial:\n", "(Term name:top.q ", "(Bind dest:top.q "} {
		if !strings.Contains(out, want) {
			t.Errorf("text output lacks %q:\n%s", want, out)
		}
	}

	if err := Write(&buf, res, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
