// Package analyzer runs the whole dataflow pipeline over Verilog sources:
// preprocessing, parsing, module indexing, elaboration, simplification and
// post-processing.
package analyzer

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/raymyers/vflow/pkg/config"
	"github.com/raymyers/vflow/pkg/dataflow"
	"github.com/raymyers/vflow/pkg/elab"
	"github.com/raymyers/vflow/pkg/lexer"
	"github.com/raymyers/vflow/pkg/modindex"
	"github.com/raymyers/vflow/pkg/optimizer"
	"github.com/raymyers/vflow/pkg/parser"
	"github.com/raymyers/vflow/pkg/postproc"
	"github.com/raymyers/vflow/pkg/preproc"
	"github.com/raymyers/vflow/pkg/vast"
)

// Options configures one analysis run
type Options struct {
	Files        []string
	Top          string
	IncludePaths []string
	Defines      map[string]string
	// NoBind stops after declarations; the result has terms and constants
	// but no binds
	NoBind bool
	// NoReorder skips lifting branches above combinators
	NoReorder bool
	// External preprocesses with iverilog -E instead of the built-in
	// preprocessor
	External bool
	// Config supplies naming conventions and defaults; nil means
	// config.DefaultConfig()
	Config *config.Config
}

// Result is the output of the pipeline
type Result struct {
	Top      string
	Terms    *dataflow.TermTable
	Binds    *dataflow.BindTable
	Initials *dataflow.BindTable
	Consts   *dataflow.ConstTable
}

func (o *Options) config() *config.Config {
	if o.Config == nil {
		return config.DefaultConfig()
	}
	return o.Config
}

// PreprocOptions merges the configured includes and defines with the ones
// given in o; o wins on conflicting defines
func (o *Options) PreprocOptions() *preproc.Options {
	cfg := o.config()
	defines := make(map[string]string, len(cfg.Define)+len(o.Defines))
	for k, v := range cfg.Define {
		defines[k] = v
	}
	for k, v := range o.Defines {
		defines[k] = v
	}
	return &preproc.Options{
		IncludePaths: append(append([]string(nil), o.IncludePaths...), cfg.Include...),
		Defines:      defines,
		UseExternal:  o.External,
	}
}

// Analyze preprocesses and analyzes the files named in opts
func Analyze(opts Options) (*Result, error) {
	if len(opts.Files) == 0 {
		return nil, errors.New("no input files")
	}
	st := newStats()
	sources, err := preproc.Preprocess(opts.Files, opts.PreprocOptions())
	if err != nil {
		return nil, err
	}
	st.log("preprocessing")
	return run(sources, opts)
}

// AnalyzeString analyzes Verilog text held in memory
func AnalyzeString(text, filename string, opts Options) (*Result, error) {
	pp, err := preproc.PreprocessString(text, filename, opts.PreprocOptions())
	if err != nil {
		return nil, err
	}
	return run([]preproc.Source{{Filename: filename, Text: pp}}, opts)
}

// Parse parses preprocessed sources. Errors of every file are collected
// into one error.
func Parse(sources []preproc.Source, nettype string) ([]*vast.Source, error) {
	var asts []*vast.Source
	var errs []error
	for _, src := range sources {
		p := parser.New(lexer.New(src.Text))
		p.SetDefaultNettype(nettype)
		ast := p.ParseSource()
		for _, msg := range p.Errors() {
			errs = append(errs, fmt.Errorf("%s: %s", src.Filename, msg))
		}
		asts = append(asts, ast)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("parse errors:\n%w", errors.Join(errs...))
	}
	return asts, nil
}

func run(sources []preproc.Source, opts Options) (*Result, error) {
	cfg := opts.config()

	st := newStats()
	asts, err := Parse(sources, cfg.DefaultNettype)
	if err != nil {
		return nil, err
	}
	st.log("parsing")

	mods, err := modindex.Build(asts...)
	if err != nil {
		return nil, err
	}
	top := opts.Top
	if top == "" {
		if top, err = guessTop(mods); err != nil {
			return nil, err
		}
	}

	st = newStats()
	e := elab.New(mods, elab.Options{
		ClockNames: cfg.ClockNames,
		ResetNames: cfg.ResetNames,
		NoBind:     opts.NoBind,
		Level:      cfg.Level,
	})
	er, err := e.Elaborate(top)
	if err != nil {
		return nil, err
	}
	st.log("elaboration")

	res := &Result{Top: top, Terms: er.Terms, Binds: er.Binds, Initials: er.Initials, Consts: er.Consts}
	if err := res.optimize(cfg.Level, !opts.NoReorder); err != nil {
		return nil, err
	}
	log.Debugf("%s: %d frames, %d terms, %d bind targets, %d constants",
		top, er.Frames.Len(), res.Terms.Len(), res.Binds.Len(), len(res.Consts.KnownKeys()))
	return res, nil
}

// optimize resolves terms and binds and puts every tree in canonical form
func (r *Result) optimize(level int, reorder bool) (err error) {
	defer dataflow.Recover(&err)
	st := newStats()
	o := optimizer.New(r.Terms, r.Consts)
	o.Level = level
	o.ResolveTerms()
	o.Resolve(r.Binds, r.Initials)
	st.log("optimization")
	if reorder {
		postproc.ReorderBinds(r.Binds)
		postproc.ReorderBinds(r.Initials)
	}
	postproc.ReplaceBinds(r.Binds)
	postproc.ReplaceBinds(r.Initials)
	return nil
}

// guessTop picks the only module that no other module instantiates
func guessTop(mods *modindex.Table) (string, error) {
	used := map[string]bool{}
	for _, name := range mods.GetModuleNames() {
		def, _ := mods.GetDefinition(name)
		for _, inst := range instancesOf(def.Items) {
			used[inst] = true
		}
	}
	var roots []string
	for _, name := range mods.GetModuleNames() {
		if !used[name] {
			roots = append(roots, name)
		}
	}
	if len(roots) != 1 {
		return "", fmt.Errorf("cannot infer the top module (candidates: %s); use -t", strings.Join(roots, ", "))
	}
	log.Debugf("top module %s inferred", roots[0])
	return roots[0], nil
}

func instancesOf(items []vast.Item) []string {
	var out []string
	for _, item := range items {
		switch it := item.(type) {
		case vast.Instance:
			out = append(out, it.Module)
		case vast.Generate:
			out = append(out, instancesOf(it.Items)...)
		case vast.GenBlock:
			out = append(out, instancesOf(it.Items)...)
		case vast.GenFor:
			out = append(out, instancesOf(it.Body.Items)...)
		case vast.GenIf:
			out = append(out, instancesOf(it.Then.Items)...)
			if it.Else != nil {
				out = append(out, instancesOf(it.Else.Items)...)
			}
		case vast.GenCase:
			for _, arm := range it.Items {
				out = append(out, instancesOf(arm.Body.Items)...)
			}
		}
	}
	return out
}

// Filter keeps the terms, binds and constants named by one of targets or
// declared below one of them
func (r *Result) Filter(targets []string) {
	if len(targets) == 0 {
		return
	}
	keep := func(key string) bool {
		for _, t := range targets {
			if key == t || strings.HasPrefix(key, t+".") {
				return true
			}
		}
		return false
	}
	for _, key := range r.Terms.Keys() {
		if !keep(key) {
			r.Terms.Delete(key)
		}
	}
	for _, table := range []*dataflow.BindTable{r.Binds, r.Initials} {
		for _, key := range table.Keys() {
			if !keep(key) {
				table.Delete(key)
			}
		}
	}
	for _, key := range r.Consts.KnownKeys() {
		if !keep(key) {
			r.Consts.Remove(key)
		}
	}
}
