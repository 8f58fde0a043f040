package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("clock_names: [ck]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := DefaultConfig()
	want.ClockNames = []string{"ck"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_AllFields(t *testing.T) {
	src := `
clock_names: [clk]
reset_names: [rst_n, areset]
default_nettype: none
level: 4
include: [rtl/include]
define:
  WIDTH: "8"
  SIM: ""
`
	cfg, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &Config{
		ClockNames:     []string{"clk"},
		ResetNames:     []string{"rst_n", "areset"},
		DefaultNettype: "none",
		Level:          4,
		Include:        []string{"rtl/include"},
		Define:         map[string]string{"WIDTH": "8", "SIM": ""},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad nettype", "default_nettype: reg\n"},
		{"negative level", "level: -1\n"},
		{"not yaml", "clock_names: [\n"},
		{"wrong type", "level: many\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src)); err == nil {
				t.Errorf("expected an error for %q", tt.src)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vflow.yaml")
	if err := os.WriteFile(path, []byte("level: 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Level != 3 {
		t.Errorf("Level = %d, want 3", cfg.Level)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoad_SearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdirTest(t, dir)
	t.Setenv("HOME", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load without a file: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("expected defaults (-want +got):\n%s", diff)
	}

	if err := os.WriteFile(filepath.Join(dir, ".vflow.yaml"), []byte("reset_names: [clr]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"clr"}, cfg.ResetNames); diff != "" {
		t.Errorf("reset names mismatch (-want +got):\n%s", diff)
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
