// Include path handling for the Verilog preprocessor.
package vpp

import (
	"os"
	"path/filepath"
	"strings"
)

// MaxIncludeDepth is the maximum allowed include nesting.
const MaxIncludeDepth = 64

// IncludeResolver handles `include path resolution.
type IncludeResolver struct {
	UserPaths    []string // -I directories
	CurrentDir   string   // Directory of file currently being processed
	includeStack []string // Stack of included files for cycle detection
}

// NewIncludeResolver creates a new include resolver.
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{
		UserPaths: []string{},
	}
}

// AddUserPath adds a -I include directory.
func (r *IncludeResolver) AddUserPath(path string) {
	r.UserPaths = append(r.UserPaths, path)
}

// SetCurrentFile sets the current file being processed (for relative includes).
func (r *IncludeResolver) SetCurrentFile(filename string) {
	r.CurrentDir = filepath.Dir(filename)
}

// Resolve attempts to find the include file: the including file's directory
// first, then the -I paths in order.
func (r *IncludeResolver) Resolve(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", &IncludeError{Filename: filename}
	}

	var searchPaths []string
	if r.CurrentDir != "" {
		searchPaths = append(searchPaths, r.CurrentDir)
	}
	searchPaths = append(searchPaths, r.UserPaths...)

	for _, dir := range searchPaths {
		fullPath := filepath.Join(dir, filename)
		if _, err := os.Stat(fullPath); err == nil {
			absPath, err := filepath.Abs(fullPath)
			if err != nil {
				absPath = fullPath
			}
			return absPath, nil
		}
	}

	return "", &IncludeError{Filename: filename, Searched: searchPaths}
}

// PushFile pushes a file onto the include stack.
// Returns an error if the file is already in the stack (circular include).
func (r *IncludeResolver) PushFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	for _, f := range r.includeStack {
		if f == absPath {
			return &CircularIncludeError{Path: absPath, Stack: append([]string(nil), r.includeStack...)}
		}
	}
	if len(r.includeStack) >= MaxIncludeDepth {
		return &IncludeError{Filename: absPath, TooDeep: true}
	}

	r.includeStack = append(r.includeStack, absPath)
	return nil
}

// PopFile removes the current file from the include stack.
func (r *IncludeResolver) PopFile() {
	if len(r.includeStack) > 0 {
		r.includeStack = r.includeStack[:len(r.includeStack)-1]
	}
}

// IncludeDepth returns the current include nesting depth.
func (r *IncludeResolver) IncludeDepth() int {
	return len(r.includeStack)
}

// IncludeError indicates that an include file was not found.
type IncludeError struct {
	Filename string
	Searched []string
	TooDeep  bool
}

func (e *IncludeError) Error() string {
	if e.TooDeep {
		return "include nested too deeply: " + e.Filename
	}
	if len(e.Searched) == 0 {
		return "include file not found: " + e.Filename
	}
	return "include file not found: " + e.Filename + " (searched " + strings.Join(e.Searched, ", ") + ")"
}

// CircularIncludeError indicates a file includes itself directly or indirectly.
type CircularIncludeError struct {
	Path  string
	Stack []string
}

func (e *CircularIncludeError) Error() string {
	return "circular include: " + strings.Join(append(e.Stack, e.Path), " -> ")
}
