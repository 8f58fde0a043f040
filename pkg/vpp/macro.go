// macro.go implements the `define table and macro body substitution.
package vpp

import (
	"fmt"
	"sort"
	"strings"
)

// Macro is a text macro created by `define or -D.
type Macro struct {
	Name         string
	FunctionLike bool
	Params       []string
	Defaults     []string // default argument text, "" when none
	Body         string
}

// MacroTable holds the macros visible to the preprocessor.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable creates an empty macro table.
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Define adds or replaces a macro.
func (t *MacroTable) Define(m *Macro) {
	t.macros[m.Name] = m
}

// Undefine removes a macro.
func (t *MacroTable) Undefine(name string) {
	delete(t.macros, name)
}

// UndefineAll removes every macro.
func (t *MacroTable) UndefineAll() {
	t.macros = make(map[string]*Macro)
}

// IsDefined reports whether name is a defined macro.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// Lookup returns the macro for name, or nil.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.macros[name]
}

// Names returns the defined macro names in sorted order.
func (t *MacroTable) Names() []string {
	names := make([]string, 0, len(t.macros))
	for n := range t.macros {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyCmdlineDefines applies -D style definitions: NAME or NAME=VALUE.
func (t *MacroTable) ApplyCmdlineDefines(defines []string) {
	for _, d := range defines {
		name, value, found := strings.Cut(d, "=")
		if !found {
			value = "1"
		}
		t.Define(&Macro{Name: strings.TrimSpace(name), Body: value})
	}
}

// ParseDefine parses the text following `define: NAME[(params)] body.
func ParseDefine(text string) (*Macro, error) {
	i := 0
	for i < len(text) && isIdentChar(text[i]) {
		i++
	}
	if i == 0 {
		return nil, fmt.Errorf("`define: missing macro name")
	}
	m := &Macro{Name: text[:i]}
	rest := text[i:]

	// Parameters only when '(' immediately follows the name
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, fmt.Errorf("`define %s: unterminated parameter list", m.Name)
		}
		m.FunctionLike = true
		for _, p := range strings.Split(rest[1:end], ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			name, def, _ := strings.Cut(p, "=")
			m.Params = append(m.Params, strings.TrimSpace(name))
			m.Defaults = append(m.Defaults, strings.TrimSpace(def))
		}
		rest = rest[end+1:]
	}

	m.Body = strings.TrimSpace(rest)
	return m, nil
}

// Substitute replaces parameter names in the body with the given arguments.
func (m *Macro) Substitute(args []string) (string, error) {
	if !m.FunctionLike {
		return m.Body, nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) == "" && len(m.Params) == 0 {
		args = nil
	}
	if len(args) > len(m.Params) {
		return "", fmt.Errorf("macro %s: expected %d arguments, got %d", m.Name, len(m.Params), len(args))
	}
	values := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		switch {
		case i < len(args) && strings.TrimSpace(args[i]) != "":
			values[p] = strings.TrimSpace(args[i])
		case m.Defaults[i] != "":
			values[p] = m.Defaults[i]
		default:
			return "", fmt.Errorf("macro %s: missing argument %s", m.Name, p)
		}
	}

	var sb strings.Builder
	body := m.Body
	inString := false
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '"':
			inString = !inString
			sb.WriteByte(c)
			i++
		case !inString && strings.HasPrefix(body[i:], "``"):
			// token paste
			i += 2
		case !inString && isIdentStart(c):
			j := i
			for j < len(body) && isIdentChar(body[j]) {
				j++
			}
			word := body[i:j]
			if v, ok := values[word]; ok && (i == 0 || body[i-1] != '`') {
				sb.WriteString(v)
			} else {
				sb.WriteString(word)
			}
			i = j
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
