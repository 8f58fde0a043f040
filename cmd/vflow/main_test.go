package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const hierarchySrc = `module leaf(input a, output y);
  assign y = a;
endmodule
module mid(input a, output y);
  leaf l(.a(a), .y(y));
endmodule
module top(input a, output y);
  mid m(.a(a), .y(y));
endmodule
`

// isolate runs the test in an empty directory so no config file is found
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdirTest(t, dir)
	t.Setenv("HOME", dir)
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	expectedFlags := []string{
		"top", "include", "define", "nobind", "noreorder", "search",
		"preprocess", "dparse", "format", "config", "external-pp", "verbose",
	}
	for _, flagName := range expectedFlags {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
	for short, long := range map[string]string{"t": "top", "I": "include", "D": "define", "s": "search", "E": "preprocess", "v": "verbose"} {
		if f := cmd.Flags().ShorthandLookup(short); f == nil || f.Name != long {
			t.Errorf("-%s should be short for --%s", short, long)
		}
	}
}

func TestNoArgsPrintsHelp(t *testing.T) {
	isolate(t)
	out, _, err := execute(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Errorf("expected usage, got %q", out)
	}
}

func TestAnalyzeText(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)

	out, _, err := execute(t, file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Term:\n", "Bind:\n", "(Term name:top.m.l.a ", "(Bind dest:top.y tree:(Terminal top.a) kind:assign)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestSearchFilter(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)

	out, _, err := execute(t, "-t", "top", "-s", "top.m.l", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "(Term name:top.m.l.y ") {
		t.Errorf("filtered output lacks top.m.l.y:\n%s", out)
	}
	if strings.Contains(out, "(Term name:top.a ") {
		t.Errorf("filtered output still has top.a:\n%s", out)
	}
}

func TestFormatJSON(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)

	out, _, err := execute(t, "--format", "json", "--nobind", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc struct {
		Top   string            `json:"top"`
		Binds []json.RawMessage `json:"binds"`
		Terms []struct {
			Name string `json:"name"`
		} `json:"terms"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if doc.Top != "top" || len(doc.Binds) != 0 || len(doc.Terms) == 0 {
		t.Errorf("unexpected document %+v", doc)
	}
}

func TestUnknownFormat(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)
	if _, _, err := execute(t, "--format", "xml", file); err == nil {
		t.Error("expected an error for --format xml")
	}
}

func TestPreprocessOnly(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, "defs.vh", "`define W 4\n")
	file := writeFile(t, dir, "top.v", "`include \"defs.vh\"\nmodule top(input [`W-1:0] a);\n`ifdef SIM\nwire sim;\n`endif\nendmodule\n")

	out, _, err := execute(t, "-E", "-I", dir, "-D", "SIM", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "input [4-1:0] a") {
		t.Errorf("macro not expanded:\n%s", out)
	}
	if !strings.Contains(out, "wire sim;") {
		t.Errorf("-D SIM not honoured:\n%s", out)
	}
}

func TestDParse(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)

	out, _, err := execute(t, "--dparse", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"module leaf", "module mid", "module top", "endmodule"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestParseErrorFails(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "bad.v", "module top(input a;\nendmodule\n")
	_, _, err := execute(t, file)
	if err == nil || !strings.Contains(err.Error(), "parse errors") {
		t.Errorf("expected parse errors, got %v", err)
	}
}

func TestConfigFlag(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", "module top(output [`W-1:0] y);\n  assign y = 0;\nendmodule\n")
	cfg := writeFile(t, dir, "custom.yaml", "define:\n  W: \"3\"\n")

	out, _, err := execute(t, "--config", cfg, file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "(EvalValue 0 width:3)") {
		t.Errorf("config define not applied:\n%s", out)
	}

	bad := writeFile(t, dir, "bad.yaml", "default_nettype: reg\n")
	if _, _, err := execute(t, "--config", bad, file); err == nil {
		t.Error("expected an error for an invalid config file")
	}
}

func TestVerboseLogs(t *testing.T) {
	dir := isolate(t)
	file := writeFile(t, dir, "top.v", hierarchySrc)

	_, errOut, err := execute(t, "-v", file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(errOut, "level=debug") {
		t.Errorf("expected debug logging on stderr, got %q", errOut)
	}
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "single dash dparse",
			input:    []string{"-dparse", "test.v"},
			expected: []string{"--dparse", "test.v"},
		},
		{
			name:     "single dash nobind and noreorder",
			input:    []string{"-nobind", "-noreorder", "a.v", "b.v"},
			expected: []string{"--nobind", "--noreorder", "a.v", "b.v"},
		},
		{
			name:     "short flags untouched",
			input:    []string{"-t", "top", "-I", "inc", "-DW=8", "test.v"},
			expected: []string{"-t", "top", "-I", "inc", "-DW=8", "test.v"},
		},
		{
			name:     "empty args",
			input:    []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, normalizeFlags(tt.input)); diff != "" {
				t.Errorf("normalizeFlags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// chdirTest changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+)
func chdirTest(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
