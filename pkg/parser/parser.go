// Package parser implements a recursive descent parser for Verilog
package parser

import (
	"fmt"
	"strings"

	"github.com/raymyers/vflow/pkg/lexer"
	"github.com/raymyers/vflow/pkg/vast"
)

// Parser parses Verilog source code into a vast AST
type Parser struct {
	l              *lexer.Lexer
	curToken       lexer.Token
	peekToken      lexer.Token
	errors         []string
	defaultNettype string // current `default_nettype
}

// New creates a new Parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:              l,
		defaultNettype: "wire",
	}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// SetDefaultNettype seeds the net type used for modules parsed before any directive
func (p *Parser) SetDefaultNettype(kind string) {
	if kind != "" {
		p.defaultNettype = kind
	}
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	for p.peekToken.Type == lexer.TokenDirective {
		p.applyDirective(p.peekToken.Literal)
		p.peekToken = p.l.NextToken()
	}
}

func (p *Parser) applyDirective(lit string) {
	fields := strings.Fields(lit)
	if len(fields) == 2 && fields[0] == "default_nettype" {
		p.defaultNettype = fields[1]
	}
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

// skipTo advances past the next occurrence of t (or to EOF)
func (p *Parser) skipTo(t lexer.TokenType) {
	for !p.curTokenIs(t) && !p.curTokenIs(lexer.TokenEOF) {
		p.nextToken()
	}
	if p.curTokenIs(t) {
		p.nextToken()
	}
}

func (p *Parser) ident() string {
	if !p.curTokenIs(lexer.TokenIdent) {
		p.addError(fmt.Sprintf("expected identifier, got %s", p.curToken.Type))
		return ""
	}
	name := p.curToken.Literal
	p.nextToken()
	return name
}

// ParseSource parses every module in the input
func (p *Parser) ParseSource() *vast.Source {
	src := &vast.Source{}
	for !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenModule) {
			if m := p.parseModule(); m != nil {
				src.Modules = append(src.Modules, m)
			}
			continue
		}
		p.addError(fmt.Sprintf("expected module, got %s", p.curToken.Type))
		p.nextToken()
	}
	return src
}

func (p *Parser) parseModule() *vast.Module {
	m := &vast.Module{DefaultNettype: p.defaultNettype}
	p.nextToken() // consume 'module'
	m.Name = p.ident()
	if m.Name == "" {
		p.skipTo(lexer.TokenEndmodule)
		return nil
	}

	if p.curTokenIs(lexer.TokenHash) {
		p.nextToken()
		if !p.expect(lexer.TokenLParen) {
			p.skipTo(lexer.TokenEndmodule)
			return nil
		}
		m.Params = p.parseParamList(lexer.TokenRParen)
		p.expect(lexer.TokenRParen)
	}

	if p.curTokenIs(lexer.TokenLParen) {
		p.nextToken()
		p.parsePortList(m)
		p.expect(lexer.TokenRParen)
	}
	p.expect(lexer.TokenSemicolon)

	for !p.curTokenIs(lexer.TokenEndmodule) && !p.curTokenIs(lexer.TokenEOF) {
		m.Items = append(m.Items, p.parseItem()...)
	}
	p.expect(lexer.TokenEndmodule)
	return m
}

// parseParamList parses comma separated parameter assignments; the keyword may be
// omitted after a comma, in which case the previous attributes carry over
func (p *Parser) parseParamList(end lexer.TokenType) []vast.ParamDecl {
	var out []vast.ParamDecl
	proto := vast.ParamDecl{}
	for !p.curTokenIs(end) && !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenParameter) || p.curTokenIs(lexer.TokenLocalparam) {
			proto = vast.ParamDecl{Local: p.curTokenIs(lexer.TokenLocalparam)}
			p.nextToken()
			p.parseParamType(&proto)
		}
		pd := proto
		pd.Name = p.ident()
		if pd.Name == "" {
			p.skipTo(end)
			return out
		}
		if !p.expect(lexer.TokenAssignOp) {
			return out
		}
		pd.Value = p.ParseExpression()
		out = append(out, pd)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	return out
}

func (p *Parser) parseParamType(pd *vast.ParamDecl) {
	for {
		switch p.curToken.Type {
		case lexer.TokenInteger:
			pd.Integer = true
			p.nextToken()
			continue
		case lexer.TokenSigned:
			pd.Signed = true
			p.nextToken()
			continue
		case lexer.TokenUnsigned, lexer.TokenRealKw:
			p.nextToken()
			continue
		case lexer.TokenLBracket:
			r := p.parseRange()
			pd.Range = &r
			continue
		}
		return
	}
}

func isDirection(t lexer.TokenType) bool {
	return t == lexer.TokenInput || t == lexer.TokenOutput || t == lexer.TokenInout
}

// parsePortList handles both ANSI and non-ANSI module headers
func (p *Parser) parsePortList(m *vast.Module) {
	if p.curTokenIs(lexer.TokenRParen) {
		return
	}
	if !isDirection(p.curToken.Type) {
		for {
			if p.curTokenIs(lexer.TokenDot) {
				p.addError("explicit port expressions are not supported")
				p.skipTo(lexer.TokenRParen)
				return
			}
			name := p.ident()
			if name == "" {
				return
			}
			m.Ports = append(m.Ports, name)
			if !p.curTokenIs(lexer.TokenComma) {
				return
			}
			p.nextToken()
		}
	}

	for isDirection(p.curToken.Type) {
		d := p.parseDeclHead()
		for {
			name := p.ident()
			if name == "" {
				return
			}
			dn := vast.DeclName{Name: name}
			for p.curTokenIs(lexer.TokenLBracket) {
				dn.Dims = append(dn.Dims, p.parseRange())
			}
			if p.curTokenIs(lexer.TokenAssignOp) {
				p.nextToken()
				dn.Init = p.ParseExpression()
			}
			d.Names = append(d.Names, dn)
			m.Ports = append(m.Ports, name)
			if !p.curTokenIs(lexer.TokenComma) || !p.peekTokenIs(lexer.TokenIdent) {
				break
			}
			p.nextToken()
		}
		m.Items = append(m.Items, d)
		if !p.curTokenIs(lexer.TokenComma) {
			return
		}
		p.nextToken()
	}
}

func declKind(t lexer.TokenType) (vast.DeclKind, bool) {
	switch t {
	case lexer.TokenInput:
		return vast.DeclInput, true
	case lexer.TokenOutput:
		return vast.DeclOutput, true
	case lexer.TokenInout:
		return vast.DeclInout, true
	case lexer.TokenWire:
		return vast.DeclWire, true
	case lexer.TokenReg, lexer.TokenLogic:
		return vast.DeclReg, true
	case lexer.TokenTri:
		return vast.DeclTri, true
	case lexer.TokenInteger:
		return vast.DeclInteger, true
	case lexer.TokenRealKw:
		return vast.DeclReal, true
	case lexer.TokenSupply0:
		return vast.DeclSupply0, true
	case lexer.TokenSupply1:
		return vast.DeclSupply1, true
	case lexer.TokenGenvar:
		return vast.DeclGenvar, true
	}
	return 0, false
}

// parseDeclHead parses kinds, signedness and packed range of a declaration
func (p *Parser) parseDeclHead() vast.Decl {
	var d vast.Decl
	for {
		if k, ok := declKind(p.curToken.Type); ok {
			d.Kinds = append(d.Kinds, k)
			p.nextToken()
			continue
		}
		switch p.curToken.Type {
		case lexer.TokenSigned:
			d.Signed = true
			p.nextToken()
			continue
		case lexer.TokenUnsigned:
			p.nextToken()
			continue
		case lexer.TokenLBracket:
			r := p.parseRange()
			d.Range = &r
			continue
		case lexer.TokenHash:
			p.nextToken()
			p.parseDelayValue()
			continue
		}
		return d
	}
}

func (p *Parser) parseRange() vast.Range {
	p.nextToken() // consume '['
	msb := p.ParseExpression()
	var lsb vast.Expr
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		lsb = p.ParseExpression()
	} else {
		lsb = msb
	}
	p.expect(lexer.TokenRBracket)
	return vast.Range{MSB: msb, LSB: lsb}
}

func (p *Parser) parseDecl() vast.Decl {
	d := p.parseDeclHead()
	for {
		name := p.ident()
		if name == "" {
			p.skipTo(lexer.TokenSemicolon)
			return d
		}
		dn := vast.DeclName{Name: name}
		for p.curTokenIs(lexer.TokenLBracket) {
			dn.Dims = append(dn.Dims, p.parseRange())
		}
		if p.curTokenIs(lexer.TokenAssignOp) {
			p.nextToken()
			dn.Init = p.ParseExpression()
		}
		d.Names = append(d.Names, dn)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return d
}

func (p *Parser) parseParamDecls() []vast.Item {
	params := p.parseParamList(lexer.TokenSemicolon)
	p.expect(lexer.TokenSemicolon)
	items := make([]vast.Item, len(params))
	for i, pd := range params {
		items[i] = pd
	}
	return items
}

// parseItem parses one module item; some constructs expand to several items
func (p *Parser) parseItem() []vast.Item {
	if _, ok := declKind(p.curToken.Type); ok {
		return []vast.Item{p.parseDecl()}
	}
	switch p.curToken.Type {
	case lexer.TokenParameter, lexer.TokenLocalparam:
		return p.parseParamDecls()
	case lexer.TokenAssign:
		return p.parseContinuousAssign()
	case lexer.TokenAlways, lexer.TokenAlwaysFF, lexer.TokenAlwaysComb, lexer.TokenAlwaysLatch:
		return []vast.Item{p.parseAlways()}
	case lexer.TokenInitial:
		p.nextToken()
		return []vast.Item{vast.Initial{Body: p.parseStatement()}}
	case lexer.TokenGenerate:
		p.nextToken()
		gen := vast.Generate{}
		for !p.curTokenIs(lexer.TokenEndgenerate) && !p.curTokenIs(lexer.TokenEOF) {
			gen.Items = append(gen.Items, p.parseItem()...)
		}
		p.expect(lexer.TokenEndgenerate)
		return []vast.Item{gen}
	case lexer.TokenFor:
		return []vast.Item{p.parseGenFor()}
	case lexer.TokenIf:
		return []vast.Item{p.parseGenIf()}
	case lexer.TokenCase:
		return []vast.Item{p.parseGenCase()}
	case lexer.TokenBegin:
		return []vast.Item{p.parseGenBody()}
	case lexer.TokenFunction:
		return []vast.Item{p.parseFunction()}
	case lexer.TokenTask:
		return []vast.Item{p.parseTask()}
	case lexer.TokenDefparam:
		return p.parseDefparam()
	case lexer.TokenGate, lexer.TokenOr:
		return p.parseInstances()
	case lexer.TokenIdent:
		return p.parseInstances()
	case lexer.TokenSemicolon:
		p.nextToken()
		return nil
	}
	p.addError(fmt.Sprintf("unexpected token in module item: %s", p.curToken.Type))
	p.skipTo(lexer.TokenSemicolon)
	return nil
}

func (p *Parser) parseContinuousAssign() []vast.Item {
	p.nextToken() // consume 'assign'
	var delay vast.Expr
	if p.curTokenIs(lexer.TokenHash) {
		p.nextToken()
		delay = p.parseDelayValue()
	}
	var items []vast.Item
	for {
		lhs := p.parseLValue()
		if !p.expect(lexer.TokenAssignOp) {
			p.skipTo(lexer.TokenSemicolon)
			return items
		}
		rhs := p.ParseExpression()
		items = append(items, vast.ContinuousAssign{Delay: delay, LHS: lhs, RHS: rhs})
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return items
}

func (p *Parser) parseAlways() vast.Item {
	a := vast.Always{}
	switch p.curToken.Type {
	case lexer.TokenAlwaysFF:
		a.Kind = vast.AlwaysFF
	case lexer.TokenAlwaysComb:
		a.Kind = vast.AlwaysComb
	case lexer.TokenAlwaysLatch:
		a.Kind = vast.AlwaysLatch
	}
	p.nextToken()
	if p.curTokenIs(lexer.TokenAt) {
		a.Sens = p.parseSensitivity()
	} else if a.Kind == vast.AlwaysComb || a.Kind == vast.AlwaysLatch {
		a.Sens = vast.SensList{List: []vast.Sens{{Edge: vast.EdgeAll}}}
	}
	a.Body = p.parseStatement()
	return a
}

// parseSensitivity parses @*, @(*), @sig and @(posedge a or negedge b, c)
func (p *Parser) parseSensitivity() vast.SensList {
	p.nextToken() // consume '@'
	all := vast.SensList{List: []vast.Sens{{Edge: vast.EdgeAll}}}
	if p.curTokenIs(lexer.TokenStar) {
		p.nextToken()
		return all
	}
	if !p.curTokenIs(lexer.TokenLParen) {
		return vast.SensList{List: []vast.Sens{{Edge: vast.EdgeLevel, Sig: p.parsePrimary()}}}
	}
	p.nextToken()
	if p.curTokenIs(lexer.TokenStar) {
		p.nextToken()
		p.expect(lexer.TokenRParen)
		return all
	}
	var sl vast.SensList
	for {
		s := vast.Sens{Edge: vast.EdgeLevel}
		switch p.curToken.Type {
		case lexer.TokenPosedge:
			s.Edge = vast.EdgePos
			p.nextToken()
		case lexer.TokenNegedge:
			s.Edge = vast.EdgeNeg
			p.nextToken()
		}
		s.Sig = p.ParseExpression()
		sl.List = append(sl.List, s)
		if p.curTokenIs(lexer.TokenOr) || p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		break
	}
	p.expect(lexer.TokenRParen)
	return sl
}

func (p *Parser) parseDelayValue() vast.Expr {
	switch p.curToken.Type {
	case lexer.TokenLParen:
		p.nextToken()
		e := p.ParseExpression()
		// min:typ:max keeps the typical value
		if p.curTokenIs(lexer.TokenColon) {
			p.nextToken()
			e = p.ParseExpression()
			if p.curTokenIs(lexer.TokenColon) {
				p.nextToken()
				p.ParseExpression()
			}
		}
		p.expect(lexer.TokenRParen)
		return e
	case lexer.TokenNumber:
		e := vast.IntConst{Literal: p.curToken.Literal}
		p.nextToken()
		return e
	case lexer.TokenReal:
		e := vast.FloatConst{Literal: p.curToken.Literal}
		p.nextToken()
		return e
	case lexer.TokenIdent:
		e := vast.Ident{Name: p.curToken.Literal}
		p.nextToken()
		return e
	}
	p.addError(fmt.Sprintf("expected delay value, got %s", p.curToken.Type))
	return nil
}

// parseInstances parses module and gate instantiations
func (p *Parser) parseInstances() []vast.Item {
	module := p.curToken.Literal
	p.nextToken()

	var params []vast.ParamArg
	if p.curTokenIs(lexer.TokenHash) {
		p.nextToken()
		if p.curTokenIs(lexer.TokenLParen) {
			p.nextToken()
			params = p.parseParamArgs()
			p.expect(lexer.TokenRParen)
		} else {
			// gate delay
			p.parseDelayValue()
		}
	}

	var items []vast.Item
	for {
		inst := vast.Instance{Module: module, Params: params}
		if p.curTokenIs(lexer.TokenIdent) {
			inst.Name = p.curToken.Literal
			p.nextToken()
			if p.curTokenIs(lexer.TokenLBracket) {
				r := p.parseRange()
				inst.Array = &r
			}
		}
		if !p.expect(lexer.TokenLParen) {
			p.skipTo(lexer.TokenSemicolon)
			return items
		}
		inst.Ports = p.parsePortArgs()
		p.expect(lexer.TokenRParen)
		items = append(items, inst)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return items
}

func (p *Parser) parseParamArgs() []vast.ParamArg {
	var args []vast.ParamArg
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		if p.curTokenIs(lexer.TokenDot) {
			p.nextToken()
			name := p.ident()
			p.expect(lexer.TokenLParen)
			var val vast.Expr
			if !p.curTokenIs(lexer.TokenRParen) {
				val = p.ParseExpression()
			}
			p.expect(lexer.TokenRParen)
			args = append(args, vast.ParamArg{Name: name, Value: val})
		} else {
			args = append(args, vast.ParamArg{Value: p.ParseExpression()})
		}
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	return args
}

func (p *Parser) parsePortArgs() []vast.PortArg {
	var args []vast.PortArg
	if p.curTokenIs(lexer.TokenRParen) {
		return args
	}
	for {
		switch {
		case p.curTokenIs(lexer.TokenDot):
			p.nextToken()
			name := p.ident()
			var val vast.Expr
			if p.curTokenIs(lexer.TokenLParen) {
				p.nextToken()
				if !p.curTokenIs(lexer.TokenRParen) {
					val = p.ParseExpression()
				}
				p.expect(lexer.TokenRParen)
			} else {
				// .name shorthand
				val = vast.Ident{Name: name}
			}
			args = append(args, vast.PortArg{Name: name, Value: val})
		case p.curTokenIs(lexer.TokenComma), p.curTokenIs(lexer.TokenRParen):
			args = append(args, vast.PortArg{})
		default:
			args = append(args, vast.PortArg{Value: p.ParseExpression()})
		}
		if !p.curTokenIs(lexer.TokenComma) {
			return args
		}
		p.nextToken()
	}
}

func (p *Parser) parseDefparam() []vast.Item {
	p.nextToken() // consume 'defparam'
	var items []vast.Item
	for {
		target, ok := p.parsePrimary().(vast.HierRef)
		if !ok {
			p.addError("defparam target must be a hierarchical name")
			p.skipTo(lexer.TokenSemicolon)
			return items
		}
		p.expect(lexer.TokenAssignOp)
		items = append(items, vast.Defparam{Target: target, Value: p.ParseExpression()})
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return items
}

// --- Generate constructs ---

func (p *Parser) parseGenBody() vast.GenBlock {
	if !p.curTokenIs(lexer.TokenBegin) {
		return vast.GenBlock{Items: p.parseItem()}
	}
	p.nextToken() // consume 'begin'
	b := vast.GenBlock{}
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		b.Name = p.ident()
	}
	for !p.curTokenIs(lexer.TokenEnd) && !p.curTokenIs(lexer.TokenEOF) {
		b.Items = append(b.Items, p.parseItem()...)
	}
	p.expect(lexer.TokenEnd)
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		p.ident()
	}
	return b
}

func (p *Parser) parseForHeader() (vast.Assignment, vast.Expr, vast.Assignment) {
	p.nextToken() // consume 'for'
	p.expect(lexer.TokenLParen)
	if p.curTokenIs(lexer.TokenGenvar) || p.curTokenIs(lexer.TokenInteger) {
		p.nextToken()
	}
	init := p.parseForAssignment()
	p.expect(lexer.TokenSemicolon)
	cond := p.ParseExpression()
	p.expect(lexer.TokenSemicolon)
	step := p.parseForAssignment()
	p.expect(lexer.TokenRParen)
	return init, cond, step
}

func (p *Parser) parseForAssignment() vast.Assignment {
	lhs := p.parseLValue()
	switch p.curToken.Type {
	case lexer.TokenAssignOp:
		p.nextToken()
		return vast.Assignment{LHS: lhs, RHS: p.ParseExpression()}
	case lexer.TokenLe:
		p.nextToken()
		return vast.Assignment{LHS: lhs, RHS: p.ParseExpression(), Nonblocking: true}
	case lexer.TokenPlus, lexer.TokenMinus:
		// i++ / i--
		op := vast.OpAdd
		if p.curTokenIs(lexer.TokenMinus) {
			op = vast.OpSub
		}
		p.nextToken()
		p.nextToken()
		return vast.Assignment{LHS: lhs, RHS: vast.Binary{Op: op, X: lhs, Y: vast.IntConst{Literal: "1"}}}
	}
	p.addError(fmt.Sprintf("expected =, got %s", p.curToken.Type))
	return vast.Assignment{LHS: lhs}
}

func (p *Parser) parseGenFor() vast.Item {
	init, cond, step := p.parseForHeader()
	return vast.GenFor{Init: init, Cond: cond, Step: step, Body: p.parseGenBody()}
}

func (p *Parser) parseGenIf() vast.Item {
	p.nextToken() // consume 'if'
	p.expect(lexer.TokenLParen)
	cond := p.ParseExpression()
	p.expect(lexer.TokenRParen)
	g := vast.GenIf{Cond: cond, Then: p.parseGenBody()}
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		els := p.parseGenBody()
		g.Else = &els
	}
	return g
}

func (p *Parser) parseGenCase() vast.Item {
	p.nextToken() // consume 'case'
	p.expect(lexer.TokenLParen)
	g := vast.GenCase{Expr: p.ParseExpression()}
	p.expect(lexer.TokenRParen)
	for !p.curTokenIs(lexer.TokenEndcase) && !p.curTokenIs(lexer.TokenEOF) {
		labels := p.parseCaseLabels()
		g.Items = append(g.Items, vast.GenCaseItem{Exprs: labels, Body: p.parseGenBody()})
	}
	p.expect(lexer.TokenEndcase)
	return g
}

func (p *Parser) parseCaseLabels() []vast.Expr {
	if p.curTokenIs(lexer.TokenDefault) {
		p.nextToken()
		if p.curTokenIs(lexer.TokenColon) {
			p.nextToken()
		}
		return nil
	}
	labels := []vast.Expr{}
	for {
		labels = append(labels, p.ParseExpression())
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenColon)
	return labels
}

// --- Functions and tasks ---

func isSubroutineDecl(t lexer.TokenType) bool {
	_, ok := declKind(t)
	return ok || t == lexer.TokenParameter || t == lexer.TokenLocalparam
}

// parseSubroutinePorts parses an ANSI style (input a, input [3:0] b) list
func (p *Parser) parseSubroutinePorts() []vast.Decl {
	var out []vast.Decl
	p.nextToken() // consume '('
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		d := p.parseDeclHead()
		if len(d.Kinds) == 0 {
			if len(out) == 0 {
				d.Kinds = []vast.DeclKind{vast.DeclInput}
			} else {
				prev := out[len(out)-1]
				d.Kinds, d.Signed, d.Range = prev.Kinds, prev.Signed, prev.Range
			}
		}
		name := p.ident()
		if name == "" {
			p.skipTo(lexer.TokenRParen)
			return out
		}
		d.Names = []vast.DeclName{{Name: name}}
		out = append(out, d)
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenRParen)
	return out
}

// parseSubroutineBody parses declarations then statements up to the end keyword
func (p *Parser) parseSubroutineBody(end lexer.TokenType) ([]vast.Decl, []vast.Item, vast.Stmt) {
	var ports []vast.Decl
	var decls []vast.Item
	for isSubroutineDecl(p.curToken.Type) {
		if p.curTokenIs(lexer.TokenParameter) || p.curTokenIs(lexer.TokenLocalparam) {
			decls = append(decls, p.parseParamDecls()...)
			continue
		}
		d := p.parseDecl()
		if len(d.Kinds) > 0 && d.Kinds[0].IsPort() {
			ports = append(ports, d)
		} else {
			decls = append(decls, d)
		}
	}
	var stmts []vast.Stmt
	for !p.curTokenIs(end) && !p.curTokenIs(lexer.TokenEOF) {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	p.expect(end)
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		p.ident()
	}
	switch len(stmts) {
	case 0:
		return ports, decls, vast.NullStmt{}
	case 1:
		return ports, decls, stmts[0]
	}
	return ports, decls, vast.Block{Stmts: stmts}
}

func (p *Parser) parseFunction() vast.Item {
	p.nextToken() // consume 'function'
	f := vast.Function{}
	if p.curTokenIs(lexer.TokenAutomatic) {
		f.Automatic = true
		p.nextToken()
	}
	for {
		switch p.curToken.Type {
		case lexer.TokenInteger:
			f.Integer = true
			p.nextToken()
			continue
		case lexer.TokenSigned:
			f.Signed = true
			p.nextToken()
			continue
		case lexer.TokenReg, lexer.TokenLogic, lexer.TokenUnsigned:
			p.nextToken()
			continue
		case lexer.TokenLBracket:
			r := p.parseRange()
			f.Range = &r
			continue
		}
		break
	}
	f.Name = p.ident()
	var ansi []vast.Decl
	if p.curTokenIs(lexer.TokenLParen) {
		ansi = p.parseSubroutinePorts()
	}
	p.expect(lexer.TokenSemicolon)
	ports, decls, body := p.parseSubroutineBody(lexer.TokenEndfunction)
	f.Ports = append(ansi, ports...)
	f.Decls = decls
	f.Body = body
	return f
}

func (p *Parser) parseTask() vast.Item {
	p.nextToken() // consume 'task'
	t := vast.Task{}
	if p.curTokenIs(lexer.TokenAutomatic) {
		t.Automatic = true
		p.nextToken()
	}
	t.Name = p.ident()
	var ansi []vast.Decl
	if p.curTokenIs(lexer.TokenLParen) {
		ansi = p.parseSubroutinePorts()
	}
	p.expect(lexer.TokenSemicolon)
	ports, decls, body := p.parseSubroutineBody(lexer.TokenEndtask)
	t.Ports = append(ansi, ports...)
	t.Decls = decls
	t.Body = body
	return t
}

// --- Statements ---

// parseStatement parses one procedural statement; a lone ';' yields nil
func (p *Parser) parseStatement() vast.Stmt {
	switch p.curToken.Type {
	case lexer.TokenSemicolon:
		p.nextToken()
		return nil
	case lexer.TokenBegin:
		return p.parseBlock()
	case lexer.TokenIf:
		return p.parseIf()
	case lexer.TokenCase, lexer.TokenCasex, lexer.TokenCasez:
		return p.parseCase()
	case lexer.TokenFor:
		init, cond, step := p.parseForHeader()
		return vast.For{Init: init, Cond: cond, Step: step, Body: p.parseStatement()}
	case lexer.TokenWhile:
		p.nextToken()
		p.expect(lexer.TokenLParen)
		cond := p.ParseExpression()
		p.expect(lexer.TokenRParen)
		return vast.While{Cond: cond, Body: p.parseStatement()}
	case lexer.TokenRepeat:
		p.nextToken()
		p.expect(lexer.TokenLParen)
		count := p.ParseExpression()
		p.expect(lexer.TokenRParen)
		return vast.RepeatStmt{Count: count, Body: p.parseStatement()}
	case lexer.TokenForever:
		p.nextToken()
		return vast.Forever{Body: p.parseStatement()}
	case lexer.TokenWait:
		p.nextToken()
		p.expect(lexer.TokenLParen)
		cond := p.ParseExpression()
		p.expect(lexer.TokenRParen)
		return vast.Wait{Cond: cond, Body: p.parseStatement()}
	case lexer.TokenFork:
		p.nextToken()
		f := vast.Fork{}
		for !p.curTokenIs(lexer.TokenJoin) && !p.curTokenIs(lexer.TokenEOF) {
			if s := p.parseStatement(); s != nil {
				f.Stmts = append(f.Stmts, s)
			}
		}
		p.expect(lexer.TokenJoin)
		return f
	case lexer.TokenDisable:
		p.nextToken()
		name := p.ident()
		p.expect(lexer.TokenSemicolon)
		return vast.Disable{Name: name}
	case lexer.TokenHash:
		p.nextToken()
		delay := p.parseDelayValue()
		return vast.DelayStmt{Delay: delay, Body: p.parseStatement()}
	case lexer.TokenAt:
		sens := p.parseSensitivity()
		return vast.EventStmt{Sens: sens, Body: p.parseStatement()}
	case lexer.TokenSysIdent:
		name := p.curToken.Literal
		p.nextToken()
		var args []vast.Expr
		if p.curTokenIs(lexer.TokenLParen) {
			args = p.parseCallArgs()
		}
		p.expect(lexer.TokenSemicolon)
		return vast.SysTaskCall{Name: name, Args: args}
	case lexer.TokenIdent:
		if p.peekTokenIs(lexer.TokenSemicolon) || p.peekTokenIs(lexer.TokenLParen) {
			name := p.curToken.Literal
			p.nextToken()
			var args []vast.Expr
			if p.curTokenIs(lexer.TokenLParen) {
				args = p.parseCallArgs()
			}
			p.expect(lexer.TokenSemicolon)
			return vast.TaskCall{Name: name, Args: args}
		}
		return p.parseAssignment()
	case lexer.TokenLBrace:
		return p.parseAssignment()
	}
	p.addError(fmt.Sprintf("unexpected token in statement: %s", p.curToken.Type))
	p.skipTo(lexer.TokenSemicolon)
	return nil
}

func (p *Parser) parseBlock() vast.Stmt {
	p.nextToken() // consume 'begin'
	b := vast.Block{}
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		b.Name = p.ident()
	}
	for isSubroutineDecl(p.curToken.Type) {
		if p.curTokenIs(lexer.TokenParameter) || p.curTokenIs(lexer.TokenLocalparam) {
			b.Decls = append(b.Decls, p.parseParamDecls()...)
			continue
		}
		b.Decls = append(b.Decls, p.parseDecl())
	}
	for !p.curTokenIs(lexer.TokenEnd) && !p.curTokenIs(lexer.TokenEOF) {
		if s := p.parseStatement(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.expect(lexer.TokenEnd)
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		p.ident()
	}
	return b
}

func (p *Parser) parseIf() vast.Stmt {
	p.nextToken() // consume 'if'
	p.expect(lexer.TokenLParen)
	cond := p.ParseExpression()
	p.expect(lexer.TokenRParen)
	s := vast.If{Cond: cond, Then: p.parseStatement()}
	if p.curTokenIs(lexer.TokenElse) {
		p.nextToken()
		s.Else = p.parseStatement()
	}
	return s
}

func (p *Parser) parseCase() vast.Stmt {
	c := vast.Case{}
	switch p.curToken.Type {
	case lexer.TokenCasex:
		c.Kind = vast.CaseX
	case lexer.TokenCasez:
		c.Kind = vast.CaseZ
	}
	p.nextToken()
	p.expect(lexer.TokenLParen)
	c.Expr = p.ParseExpression()
	p.expect(lexer.TokenRParen)
	for !p.curTokenIs(lexer.TokenEndcase) && !p.curTokenIs(lexer.TokenEOF) {
		labels := p.parseCaseLabels()
		c.Items = append(c.Items, vast.CaseItem{Exprs: labels, Body: p.parseStatement()})
	}
	p.expect(lexer.TokenEndcase)
	return c
}

func (p *Parser) parseAssignment() vast.Stmt {
	lhs := p.parseLValue()
	nonblocking := false
	switch p.curToken.Type {
	case lexer.TokenAssignOp:
	case lexer.TokenLe:
		nonblocking = true
	default:
		p.addError(fmt.Sprintf("expected = or <=, got %s", p.curToken.Type))
		p.skipTo(lexer.TokenSemicolon)
		return nil
	}
	p.nextToken()
	var delay vast.Expr
	if p.curTokenIs(lexer.TokenHash) {
		p.nextToken()
		delay = p.parseDelayValue()
	}
	rhs := p.ParseExpression()
	p.expect(lexer.TokenSemicolon)
	if nonblocking {
		return vast.NonblockingAssign{LHS: lhs, RHS: rhs, Delay: delay}
	}
	return vast.BlockingAssign{LHS: lhs, RHS: rhs, Delay: delay}
}

// parseLValue parses an assignment target: a name with selects or a concatenation
func (p *Parser) parseLValue() vast.Expr {
	if p.curTokenIs(lexer.TokenIdent) || p.curTokenIs(lexer.TokenLBrace) {
		return p.parsePrimary()
	}
	p.addError(fmt.Sprintf("expected lvalue, got %s", p.curToken.Type))
	return nil
}

// --- Expressions ---

// ParseExpression parses a full expression including the conditional operator
func (p *Parser) ParseExpression() vast.Expr {
	cond := p.parseBinary(1)
	if !p.curTokenIs(lexer.TokenQuestion) {
		return cond
	}
	p.nextToken()
	then := p.ParseExpression()
	p.expect(lexer.TokenColon)
	els := p.ParseExpression()
	return vast.Cond{Cond: cond, Then: then, Else: els}
}

var binaryOps = map[lexer.TokenType]vast.BinaryOp{
	lexer.TokenPower:     vast.OpPower,
	lexer.TokenStar:      vast.OpMul,
	lexer.TokenSlash:     vast.OpDiv,
	lexer.TokenPercent:   vast.OpMod,
	lexer.TokenPlus:      vast.OpAdd,
	lexer.TokenMinus:     vast.OpSub,
	lexer.TokenShl:       vast.OpShl,
	lexer.TokenShr:       vast.OpShr,
	lexer.TokenAShl:      vast.OpAShl,
	lexer.TokenAShr:      vast.OpAShr,
	lexer.TokenLt:        vast.OpLt,
	lexer.TokenGt:        vast.OpGt,
	lexer.TokenLe:        vast.OpLe,
	lexer.TokenGe:        vast.OpGe,
	lexer.TokenEq:        vast.OpEq,
	lexer.TokenNe:        vast.OpNe,
	lexer.TokenCaseEq:    vast.OpCaseEq,
	lexer.TokenCaseNe:    vast.OpCaseNe,
	lexer.TokenAmpersand: vast.OpAnd,
	lexer.TokenCaret:     vast.OpXor,
	lexer.TokenXnor:      vast.OpXnor,
	lexer.TokenPipe:      vast.OpOr,
	lexer.TokenLAnd:      vast.OpLAnd,
	lexer.TokenLOr:       vast.OpLOr,
}

// parseBinary implements precedence climbing; ** is right associative
func (p *Parser) parseBinary(minPrec int) vast.Expr {
	left := p.parseUnary()
	for {
		op, ok := binaryOps[p.curToken.Type]
		if !ok || op.Precedence() < minPrec {
			return left
		}
		p.nextToken()
		next := op.Precedence() + 1
		if op == vast.OpPower {
			next = op.Precedence()
		}
		right := p.parseBinary(next)
		left = vast.Binary{Op: op, X: left, Y: right}
	}
}

var unaryOps = map[lexer.TokenType]vast.UnaryOp{
	lexer.TokenPlus:      vast.OpPlus,
	lexer.TokenMinus:     vast.OpNeg,
	lexer.TokenNot:       vast.OpLNot,
	lexer.TokenTilde:     vast.OpNot,
	lexer.TokenAmpersand: vast.OpRedAnd,
	lexer.TokenNand:      vast.OpRedNand,
	lexer.TokenPipe:      vast.OpRedOr,
	lexer.TokenNor:       vast.OpRedNor,
	lexer.TokenCaret:     vast.OpRedXor,
	lexer.TokenXnor:      vast.OpRedXnor,
}

func (p *Parser) parseUnary() vast.Expr {
	if op, ok := unaryOps[p.curToken.Type]; ok {
		p.nextToken()
		return vast.Unary{Op: op, X: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *Parser) parseCallArgs() []vast.Expr {
	p.nextToken() // consume '('
	var args []vast.Expr
	for !p.curTokenIs(lexer.TokenRParen) && !p.curTokenIs(lexer.TokenEOF) {
		args = append(args, p.ParseExpression())
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenRParen)
	return args
}

func (p *Parser) parsePrimary() vast.Expr {
	switch p.curToken.Type {
	case lexer.TokenNumber:
		e := vast.IntConst{Literal: p.curToken.Literal}
		p.nextToken()
		return e
	case lexer.TokenReal:
		e := vast.FloatConst{Literal: p.curToken.Literal}
		p.nextToken()
		return e
	case lexer.TokenString:
		e := vast.StringConst{Value: p.curToken.Literal}
		p.nextToken()
		return e
	case lexer.TokenSysIdent:
		name := p.curToken.Literal
		p.nextToken()
		var args []vast.Expr
		if p.curTokenIs(lexer.TokenLParen) {
			args = p.parseCallArgs()
		}
		return vast.SysCall{Name: name, Args: args}
	case lexer.TokenLParen:
		p.nextToken()
		e := p.ParseExpression()
		p.expect(lexer.TokenRParen)
		return vast.Paren{X: e}
	case lexer.TokenLBrace:
		return p.parseConcat()
	case lexer.TokenIdent:
		return p.parseName()
	}
	p.addError(fmt.Sprintf("expected expression, got %s", p.curToken.Type))
	p.nextToken()
	return nil
}

func (p *Parser) parseConcat() vast.Expr {
	p.nextToken() // consume '{'
	first := p.ParseExpression()
	if p.curTokenIs(lexer.TokenLBrace) {
		p.nextToken()
		var items []vast.Expr
		for {
			items = append(items, p.ParseExpression())
			if !p.curTokenIs(lexer.TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(lexer.TokenRBrace)
		p.expect(lexer.TokenRBrace)
		return vast.Repeat{Count: first, Items: items}
	}
	items := []vast.Expr{first}
	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		items = append(items, p.ParseExpression())
	}
	p.expect(lexer.TokenRBrace)
	return vast.Concat{Items: items}
}

// parseName parses identifiers with selects, hierarchical paths and function calls
func (p *Parser) parseName() vast.Expr {
	name := p.curToken.Literal
	p.nextToken()
	if p.curTokenIs(lexer.TokenLParen) {
		return vast.Call{Name: name, Args: p.parseCallArgs()}
	}

	parts := []vast.HierPart{{Name: name}}
	var expr vast.Expr = vast.Ident{Name: name}
	for {
		switch {
		case p.curTokenIs(lexer.TokenLBracket):
			expr = p.parseSelect(expr)
		case p.curTokenIs(lexer.TokenDot) && p.peekTokenIs(lexer.TokenIdent):
			switch e := expr.(type) {
			case vast.Ident, vast.HierRef:
			case vast.Index:
				parts[len(parts)-1].Index = e.Index
			default:
				p.addError("unsupported select in hierarchical name")
			}
			p.nextToken()
			parts = append(parts, vast.HierPart{Name: p.curToken.Literal})
			p.nextToken()
			expr = vast.HierRef{Parts: append([]vast.HierPart(nil), parts...)}
		default:
			return expr
		}
	}
}

func (p *Parser) parseSelect(x vast.Expr) vast.Expr {
	p.nextToken() // consume '['
	first := p.ParseExpression()
	var e vast.Expr
	switch p.curToken.Type {
	case lexer.TokenColon:
		p.nextToken()
		e = vast.PartSelect{X: x, MSB: first, LSB: p.ParseExpression()}
	case lexer.TokenPlusColon:
		p.nextToken()
		e = vast.IndexedPartSelect{X: x, Base: first, Width: p.ParseExpression()}
	case lexer.TokenMinusColon:
		p.nextToken()
		e = vast.IndexedPartSelect{X: x, Base: first, Width: p.ParseExpression(), Down: true}
	default:
		e = vast.Index{X: x, Index: first}
	}
	p.expect(lexer.TokenRBracket)
	return e
}
