package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// CLITestSpec represents a single end-to-end CLI test case
type CLITestSpec struct {
	Name         string   `yaml:"name"`
	Args         []string `yaml:"args"`
	Input        string   `yaml:"input"`
	Expect       []string `yaml:"expect"`        // Strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`  // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"` // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`    // Strings that must NOT appear in output
	Skip         string   `yaml:"skip,omitempty"`
}

// CLITestFile represents the cli.yaml file structure
type CLITestFile struct {
	Tests []CLITestSpec `yaml:"tests"`
}

func loadCLITests(t *testing.T) CLITestFile {
	t.Helper()
	data, err := os.ReadFile("../../testdata/cli.yaml")
	if err != nil {
		t.Fatalf("failed to read cli.yaml: %v", err)
	}
	var testFile CLITestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse cli.yaml: %v", err)
	}
	return testFile
}

func TestIntegrationCLI(t *testing.T) {
	testFile := loadCLITests(t)
	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}
			dir := isolate(t)
			file := writeFile(t, dir, "test.v", tc.Input)

			args := normalizeFlags(append(append([]string(nil), tc.Args...), file))
			output, errOutput, err := execute(t, args...)
			if err != nil {
				t.Fatalf("vflow failed: %v\nStderr: %s", err, errOutput)
			}

			for _, exp := range tc.Expect {
				if !strings.Contains(output, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, output)
				}
			}

			pos := 0
			for _, exp := range tc.ExpectOrder {
				idx := strings.Index(output[pos:], exp)
				if idx < 0 {
					t.Errorf("expected %q after offset %d\nGot:\n%s", exp, pos, output)
					break
				}
				pos += idx + len(exp)
			}

			for _, exp := range tc.ExpectUnique {
				if n := strings.Count(output, exp); n != 1 {
					t.Errorf("expected %q exactly once, found %d times\nGot:\n%s", exp, n, output)
				}
			}

			for _, notExp := range tc.ExpectNot {
				if strings.Contains(output, notExp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", notExp, output)
				}
			}
		})
	}
}

// TestIntegrationExternalPreprocessor compares the internal preprocessor
// with iverilog -E when iverilog is installed
func TestIntegrationExternalPreprocessor(t *testing.T) {
	if _, err := exec.LookPath("iverilog"); err != nil {
		t.Skip("iverilog not found in PATH")
	}
	dir := isolate(t)
	writeFile(t, dir, "defs.vh", "`define W 4\n")
	file := writeFile(t, dir, "top.v", "`include \"defs.vh\"\nmodule top(input [`W-1:0] a, output [`W-1:0] y);\n  assign y = a;\nendmodule\n")

	internal, _, err := execute(t, "-I", dir, file)
	if err != nil {
		t.Fatalf("internal preprocessor: %v", err)
	}
	external, errOut, err := execute(t, "--external-pp", "-I", filepath.Dir(file), file)
	if err != nil {
		t.Fatalf("external preprocessor: %v\nStderr: %s", err, errOut)
	}
	if internal != external {
		t.Errorf("outputs differ\n--- internal ---\n%s\n--- external ---\n%s", internal, external)
	}
}
