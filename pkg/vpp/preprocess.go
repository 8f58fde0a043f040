// preprocess.go implements the main preprocessor driver with include processing.
package vpp

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// maxExpansionDepth bounds nested macro expansion.
const maxExpansionDepth = 64

// Preprocessor is the main driver for Verilog preprocessing. Macros persist
// across files processed by the same instance, as in a single compilation unit.
type Preprocessor struct {
	macros      *MacroTable
	conditional *ConditionalProcessor
	resolver    *IncludeResolver
	opts        PreprocessorOptions
}

// PreprocessorOptions configures the preprocessor.
type PreprocessorOptions struct {
	Defines      []string // -D definitions, NAME or NAME=VALUE
	IncludePaths []string // -I directories
}

// directives that consume the rest of their line and produce no output
var lineDirectives = map[string]bool{
	"timescale":               true,
	"line":                    true,
	"pragma":                  true,
	"unconnected_drive":       true,
	"begin_keywords":          true,
	"default_decay_time":      true,
	"default_trireg_strength": true,
}

// directives without arguments that produce no output
var bareDirectives = map[string]bool{
	"celldefine":             true,
	"endcelldefine":          true,
	"resetall":               true,
	"nounconnected_drive":    true,
	"end_keywords":           true,
	"delay_mode_distributed": true,
	"delay_mode_path":        true,
	"delay_mode_unit":        true,
	"delay_mode_zero":        true,
}

// NewPreprocessor creates a new preprocessor instance.
func NewPreprocessor(opts PreprocessorOptions) *Preprocessor {
	macros := NewMacroTable()
	macros.ApplyCmdlineDefines(opts.Defines)

	resolver := NewIncludeResolver()
	for _, p := range opts.IncludePaths {
		resolver.AddUserPath(p)
	}

	return &Preprocessor{
		macros:      macros,
		conditional: NewConditionalProcessor(macros),
		resolver:    resolver,
		opts:        opts,
	}
}

// Macros returns the macro table.
func (p *Preprocessor) Macros() *MacroTable {
	return p.macros
}

// PreprocessFile preprocesses a file and returns the result.
func (p *Preprocessor) PreprocessFile(filename string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		absPath = filename
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}

	if err := p.resolver.PushFile(absPath); err != nil {
		return "", err
	}
	defer p.resolver.PopFile()

	return p.preprocessTop(string(content), filename, absPath)
}

// PreprocessString preprocesses a string with a given filename for error messages.
func (p *Preprocessor) PreprocessString(source, filename string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		absPath = filename
	}
	return p.preprocessTop(source, filename, absPath)
}

func (p *Preprocessor) preprocessTop(source, filename, absPath string) (string, error) {
	p.resolver.SetCurrentFile(absPath)
	out, err := p.preprocessContent(source, filename, 0)
	if err != nil {
		return "", err
	}
	if err := p.conditional.CheckBalanced(); err != nil {
		return "", fmt.Errorf("%s: %w", filename, err)
	}
	return out, nil
}

// ppState is the cursor over one piece of source text
type ppState struct {
	src      string
	pos      int
	line     int
	filename string
	out      strings.Builder
}

func (s *ppState) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: %s", s.filename, s.line, fmt.Sprintf(format, args...))
}

func (s *ppState) skipSpaces() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

func (s *ppState) readIdent() string {
	start := s.pos
	for s.pos < len(s.src) && isIdentChar(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// readLine consumes to end of line, joining backslash continuations; the
// newlines consumed are emitted so line numbers are preserved
func (s *ppState) readLine() string {
	var sb strings.Builder
	extra := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '\n' {
			sb.WriteByte(' ')
			s.pos += 2
			extra++
			continue
		}
		if c == '\n' {
			break
		}
		sb.WriteByte(c)
		s.pos++
	}
	for i := 0; i < extra; i++ {
		s.out.WriteByte('\n')
	}
	s.line += extra
	return stripLineComment(sb.String())
}

// stripLineComment removes a trailing // comment that is not inside a string
func stripLineComment(text string) string {
	inString := false
	for i := 0; i+1 < len(text); i++ {
		switch {
		case text[i] == '"':
			inString = !inString
		case !inString && text[i] == '/' && text[i+1] == '/':
			return strings.TrimSpace(text[:i])
		}
	}
	return strings.TrimSpace(text)
}

// preprocessContent is the main preprocessing loop.
func (p *Preprocessor) preprocessContent(source, filename string, depth int) (string, error) {
	s := &ppState{src: source, line: 1, filename: filename}
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		active := p.conditional.IsActive()
		switch {
		case c == '\n':
			s.out.WriteByte('\n')
			s.line++
			s.pos++
		case strings.HasPrefix(s.src[s.pos:], "//"):
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case strings.HasPrefix(s.src[s.pos:], "/*"):
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				return "", s.errorf("unterminated comment")
			}
			comment := s.src[s.pos : s.pos+2+end+2]
			n := strings.Count(comment, "\n")
			s.out.WriteString(strings.Repeat("\n", n))
			if n == 0 && active {
				s.out.WriteByte(' ')
			}
			s.line += n
			s.pos += len(comment)
		case c == '"':
			start := s.pos
			s.pos++
			for s.pos < len(s.src) && s.src[s.pos] != '"' && s.src[s.pos] != '\n' {
				if s.src[s.pos] == '\\' {
					s.pos++
				}
				s.pos++
			}
			if s.pos < len(s.src) && s.src[s.pos] == '"' {
				s.pos++
			}
			if active {
				s.out.WriteString(s.src[start:s.pos])
			}
		case c == '`':
			s.pos++
			if err := p.processDirective(s, s.readIdent(), depth); err != nil {
				return "", err
			}
		default:
			if active {
				s.out.WriteByte(c)
			}
			s.pos++
		}
	}
	return s.out.String(), nil
}

// processDirective handles one `name occurrence
func (p *Preprocessor) processDirective(s *ppState, name string, depth int) error {
	active := p.conditional.IsActive()
	switch name {
	case "":
		return s.errorf("stray backquote")
	case "define":
		s.skipSpaces()
		text := s.readLine()
		if !active {
			return nil
		}
		m, err := ParseDefine(text)
		if err != nil {
			return s.errorf("%v", err)
		}
		if p.macros.IsDefined(m.Name) {
			log.Debugf("%s:%d: redefining macro %s", s.filename, s.line, m.Name)
		}
		p.macros.Define(m)
	case "undef":
		s.skipSpaces()
		id := s.readIdent()
		if active {
			p.macros.Undefine(id)
		}
	case "undefineall":
		if active {
			p.macros.UndefineAll()
		}
	case "ifdef", "ifndef", "elsif":
		s.skipSpaces()
		id := s.readIdent()
		if id == "" {
			return s.errorf("`%s: missing macro name", name)
		}
		switch name {
		case "ifdef":
			p.conditional.ProcessIfdef(id)
		case "ifndef":
			p.conditional.ProcessIfndef(id)
		default:
			if err := p.conditional.ProcessElsif(id); err != nil {
				return s.errorf("%v", err)
			}
		}
	case "else":
		if err := p.conditional.ProcessElse(); err != nil {
			return s.errorf("%v", err)
		}
	case "endif":
		if err := p.conditional.ProcessEndif(); err != nil {
			return s.errorf("%v", err)
		}
	case "include":
		s.skipSpaces()
		text := s.readLine()
		if !active {
			return nil
		}
		return p.processInclude(s, text, depth)
	case "default_nettype":
		text := s.readLine()
		if active {
			s.out.WriteString("`default_nettype " + text)
		}
	case "__FILE__":
		if active {
			s.out.WriteString(strconv.Quote(s.filename))
		}
	case "__LINE__":
		if active {
			s.out.WriteString(strconv.Itoa(s.line))
		}
	default:
		if lineDirectives[name] {
			s.readLine()
			return nil
		}
		if bareDirectives[name] || !active {
			return nil
		}
		return p.expandMacro(s, name, depth)
	}
	return nil
}

func (p *Preprocessor) processInclude(s *ppState, text string, depth int) error {
	if len(text) < 2 || !(text[0] == '"' && text[len(text)-1] == '"' || text[0] == '<' && text[len(text)-1] == '>') {
		return s.errorf("`include expects \"filename\"")
	}
	path, err := p.resolver.Resolve(text[1 : len(text)-1])
	if err != nil {
		return s.errorf("%v", err)
	}
	if err := p.resolver.PushFile(path); err != nil {
		return s.errorf("%v", err)
	}
	defer p.resolver.PopFile()

	content, err := os.ReadFile(path)
	if err != nil {
		return s.errorf("reading %s: %v", path, err)
	}

	saved := p.resolver.CurrentDir
	p.resolver.SetCurrentFile(path)
	defer func() { p.resolver.CurrentDir = saved }()

	log.Debugf("including %s", path)
	out, err := p.preprocessContent(string(content), path, depth)
	if err != nil {
		return err
	}
	s.out.WriteString(strings.TrimRight(out, "\n"))
	return nil
}

// expandMacro substitutes a macro use and preprocesses the result again
func (p *Preprocessor) expandMacro(s *ppState, name string, depth int) error {
	m := p.macros.Lookup(name)
	if m == nil {
		return s.errorf("undefined macro `%s", name)
	}
	if depth >= maxExpansionDepth {
		return s.errorf("macro `%s expands too deeply", name)
	}

	var args []string
	newlines := 0
	if m.FunctionLike {
		save := s.pos
		for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
			s.pos++
		}
		if s.pos >= len(s.src) || s.src[s.pos] != '(' {
			s.pos = save
			return s.errorf("macro `%s requires arguments", name)
		}
		var err error
		args, newlines, err = s.readArgs()
		if err != nil {
			return err
		}
	}

	text, err := m.Substitute(args)
	if err != nil {
		return s.errorf("%v", err)
	}
	expanded, err := p.preprocessContent(text, s.filename, depth+1)
	if err != nil {
		return err
	}
	s.out.WriteString(expanded)
	s.out.WriteString(strings.Repeat("\n", newlines))
	s.line += newlines
	return nil
}

// readArgs reads a parenthesized, comma separated argument list with nesting
func (s *ppState) readArgs() ([]string, int, error) {
	s.pos++ // consume '('
	var args []string
	var cur strings.Builder
	level := 0
	newlines := 0
	inString := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		if c == '\n' {
			newlines++
			cur.WriteByte(' ')
			continue
		}
		if inString {
			cur.WriteByte(c)
			if c == '\\' && s.pos < len(s.src) {
				cur.WriteByte(s.src[s.pos])
				s.pos++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(', '[', '{':
			level++
		case ')', ']', '}':
			if level == 0 && c == ')' {
				args = append(args, cur.String())
				return args, newlines, nil
			}
			level--
		case ',':
			if level == 0 {
				args = append(args, cur.String())
				cur.Reset()
				continue
			}
		}
		cur.WriteByte(c)
	}
	return nil, newlines, s.errorf("unterminated macro argument list")
}
