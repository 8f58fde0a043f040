// Package export renders analysis results as text dumps or as JSON and YAML
// documents checked against an embedded CUE schema.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/vflow/pkg/analyzer"
	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/optimizer"
)

// Document is the serialized form of a Result
type Document struct {
	Top      string  `json:"top" yaml:"top"`
	Terms    []Term  `json:"terms" yaml:"terms"`
	Binds    []Bind  `json:"binds" yaml:"binds"`
	Initials []Bind  `json:"initials,omitempty" yaml:"initials,omitempty"`
	Consts   []Const `json:"consts" yaml:"consts"`
}

// Range is an unpacked dimension
type Range struct {
	MSB string `json:"msb" yaml:"msb"`
	LSB string `json:"lsb" yaml:"lsb"`
}

// Term is one declared signal
type Term struct {
	Name   string   `json:"name" yaml:"name"`
	Types  []string `json:"types" yaml:"types"`
	MSB    string   `json:"msb,omitempty" yaml:"msb,omitempty"`
	LSB    string   `json:"lsb,omitempty" yaml:"lsb,omitempty"`
	Dims   []Range  `json:"dims,omitempty" yaml:"dims,omitempty"`
	Width  int      `json:"width,omitempty" yaml:"width,omitempty"`
	Signed bool     `json:"signed,omitempty" yaml:"signed,omitempty"`
	Code   string   `json:"code" yaml:"code"`
}

// Edge names a clock or reset signal and its active edge
type Edge struct {
	Name string `json:"name" yaml:"name"`
	Edge string `json:"edge" yaml:"edge"`
	Bit  string `json:"bit,omitempty" yaml:"bit,omitempty"`
}

// Bind is one assignment. Tree is the dump form, Code the Verilog form.
type Bind struct {
	Dest          string `json:"dest" yaml:"dest"`
	Kind          string `json:"kind,omitempty" yaml:"kind,omitempty"`
	MSB           string `json:"msb,omitempty" yaml:"msb,omitempty"`
	LSB           string `json:"lsb,omitempty" yaml:"lsb,omitempty"`
	Ptr           string `json:"ptr,omitempty" yaml:"ptr,omitempty"`
	Tree          string `json:"tree" yaml:"tree"`
	Code          string `json:"code" yaml:"code"`
	Clock         *Edge  `json:"clock,omitempty" yaml:"clock,omitempty"`
	Reset         *Edge  `json:"reset,omitempty" yaml:"reset,omitempty"`
	Combinational bool   `json:"combinational,omitempty" yaml:"combinational,omitempty"`
}

// Const is a known constant value
type Const struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Width  int    `json:"width" yaml:"width"`
	Signed bool   `json:"signed,omitempty" yaml:"signed,omitempty"`
}

func code(n dataflow.Node) string {
	if n == nil {
		return ""
	}
	return dataflow.Code(n)
}

func edge(e dataflow.Edge, name dataflow.ScopeChain, bit dataflow.Node) *Edge {
	if e == dataflow.NoEdge {
		return nil
	}
	return &Edge{Name: name.String(), Edge: e.String(), Bit: code(bit)}
}

func bindDoc(b *dataflow.Bind) Bind {
	out := Bind{
		Dest: b.Dest.String(),
		Kind: b.Kind.String(),
		MSB:  code(b.MSB),
		LSB:  code(b.LSB),
		Ptr:  code(b.Ptr),
		Tree: dataflow.Key(b.Tree),
		Code: b.ToCode(),
	}
	if a := b.Always; a != nil {
		out.Clock = edge(a.ClockEdge, a.ClockName, a.ClockBit)
		out.Reset = edge(a.ResetEdge, a.ResetName, a.ResetBit)
		out.Combinational = a.IsCombination()
	}
	return out
}

func bindDocs(table *dataflow.BindTable) []Bind {
	out := []Bind{}
	for _, b := range table.All() {
		out = append(out, bindDoc(b))
	}
	return out
}

// Build converts a Result into a Document
func Build(res *analyzer.Result) *Document {
	opt := optimizer.New(res.Terms, res.Consts)
	doc := &Document{Top: res.Top, Terms: []Term{}, Consts: []Const{}}
	for _, t := range res.Terms.Terms() {
		term := Term{
			Name:   t.Name.String(),
			Types:  t.Types.Names(),
			MSB:    code(t.MSB),
			LSB:    code(t.LSB),
			Width:  opt.TermWidth(t),
			Signed: t.Signed,
			Code:   t.ToCode(),
		}
		if term.Types == nil {
			term.Types = []string{}
		}
		for _, d := range t.Dims {
			term.Dims = append(term.Dims, Range{MSB: code(d.MSB), LSB: code(d.LSB)})
		}
		doc.Terms = append(doc.Terms, term)
	}
	doc.Binds = bindDocs(res.Binds)
	if res.Initials.Len() > 0 {
		doc.Initials = bindDocs(res.Initials)
	}
	for _, key := range res.Consts.KnownKeys() {
		v, _ := res.Consts.LookupKey(key)
		doc.Consts = append(doc.Consts, Const{Name: key, Value: v.ToCode(), Width: v.Width, Signed: v.Signed})
	}
	return doc
}

// WriteText prints the Term: and Bind: dumps
func WriteText(w io.Writer, res *analyzer.Result) error {
	if _, err := fmt.Fprintln(w, "Term:"); err != nil {
		return err
	}
	for _, t := range res.Terms.Terms() {
		if _, err := fmt.Fprintln(w, t); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "Bind:"); err != nil {
		return err
	}
	for _, b := range res.Binds.All() {
		if _, err := fmt.Fprintln(w, b); err != nil {
			return err
		}
	}
	if res.Initials.Len() > 0 {
		if _, err := fmt.Fprintln(w, "Initial:"); err != nil {
			return err
		}
		for _, b := range res.Initials.All() {
			if _, err := fmt.Fprintln(w, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write renders res in the given format: text, json or yaml. Documents are
// validated before anything is written.
func Write(w io.Writer, res *analyzer.Result, format string) error {
	if format == "" || format == "text" {
		return WriteText(w, res)
	}
	doc := Build(res)
	v, err := NewValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(doc); err != nil {
		return err
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}
