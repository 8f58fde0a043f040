// Package preproc handles Verilog preprocessing.
// It provides both an internal preprocessor implementation and fallback
// to an external system preprocessor (iverilog -E).
package preproc

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/raymyers/vflow/pkg/vpp"
)

// Options configures the preprocessing step
type Options struct {
	IncludePaths []string          // -I directories
	Defines      map[string]string // -D macros (name -> value, empty string for simple define)
	UseExternal  bool              // Force use of external preprocessor
}

// Source is one preprocessed compilation input
type Source struct {
	Filename string
	Text     string
}

// Preprocess runs the Verilog preprocessor over the given files in order.
// Macros defined in earlier files remain visible in later ones.
// By default, it uses the internal preprocessor. Set UseExternal option
// to force use of iverilog.
func Preprocess(filenames []string, opts *Options) ([]Source, error) {
	if opts != nil && opts.UseExternal {
		return preprocessExternal(filenames, opts)
	}
	return preprocessInternal(filenames, opts)
}

func defineList(opts *Options) []string {
	if opts == nil {
		return nil
	}
	var out []string
	for name, value := range opts.Defines {
		if value == "" {
			out = append(out, name)
		} else {
			out = append(out, name+"="+value)
		}
	}
	sort.Strings(out)
	return out
}

// preprocessInternal uses our internal pkg/vpp preprocessor
func preprocessInternal(filenames []string, opts *Options) ([]Source, error) {
	ppOpts := vpp.PreprocessorOptions{Defines: defineList(opts)}
	if opts != nil {
		ppOpts.IncludePaths = opts.IncludePaths
	}

	pp := vpp.NewPreprocessor(ppOpts)
	out := make([]Source, 0, len(filenames))
	for _, f := range filenames {
		text, err := pp.PreprocessFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, Source{Filename: f, Text: text})
	}
	return out, nil
}

// preprocessExternal uses iverilog -E, which joins all inputs into one stream
func preprocessExternal(filenames []string, opts *Options) ([]Source, error) {
	tool, err := exec.LookPath("iverilog")
	if err != nil {
		return nil, fmt.Errorf("no Verilog preprocessor found (tried: iverilog)")
	}

	tmp, err := os.CreateTemp("", "vflow-*.v")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %v", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	args := []string{"-E", "-o", tmp.Name()}
	for _, path := range opts.IncludePaths {
		args = append(args, "-I"+path)
	}
	for _, d := range defineList(opts) {
		args = append(args, "-D"+d)
	}
	for _, f := range filenames {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		args = append(args, f)
	}

	cmd := exec.Command(tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if len(filenames) > 0 {
		// Set the working directory to the first file's directory for relative includes
		cmd.Dir = filepath.Dir(args[len(args)-len(filenames)])
	}

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("preprocessing failed: %v\n%s", err, stderr.String())
	}
	text, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	return []Source{{Filename: "preprocessed.v", Text: string(text)}}, nil
}

// PreprocessString preprocesses Verilog source provided as a string.
func PreprocessString(source, filename string, opts *Options) (string, error) {
	ppOpts := vpp.PreprocessorOptions{Defines: defineList(opts)}
	if opts != nil {
		ppOpts.IncludePaths = opts.IncludePaths
	}
	return vpp.NewPreprocessor(ppOpts).PreprocessString(source, filename)
}
