package lexer

import (
	"strings"
	"unicode"
)

// Lexer tokenizes preprocessed Verilog source code
type Lexer struct {
	input    string
	pos      int  // current position in input
	readPos  int  // next reading position
	ch       byte // current character
	line     int
	column   int
	lastType TokenType // type of the previously returned token
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0, lastType: TokenIllegal}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekCharAt(offset int) byte {
	if l.readPos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.readPos+offset]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	tok := l.nextToken()
	l.lastType = tok.Type
	return tok
}

func (l *Lexer) nextToken() Token {
	for {
		l.skipWhitespace()
		if l.skipComments() {
			continue
		}
		if l.skipAttribute() {
			continue
		}
		break
	}

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		tok.Literal = ""
		return tok
	case '+':
		if l.peekChar() == ':' {
			return l.twoCharToken(TokenPlusColon)
		}
		tok = l.newToken(TokenPlus, l.ch)
	case '-':
		if l.peekChar() == ':' {
			return l.twoCharToken(TokenMinusColon)
		}
		tok = l.newToken(TokenMinus, l.ch)
	case '*':
		if l.peekChar() == '*' {
			return l.twoCharToken(TokenPower)
		}
		tok = l.newToken(TokenStar, l.ch)
	case '/':
		tok = l.newToken(TokenSlash, l.ch)
	case '%':
		tok = l.newToken(TokenPercent, l.ch)
	case '=':
		if l.peekChar() == '=' {
			if l.peekCharAt(1) == '=' {
				return l.threeCharToken(TokenCaseEq)
			}
			return l.twoCharToken(TokenEq)
		}
		tok = l.newToken(TokenAssignOp, l.ch)
	case '!':
		if l.peekChar() == '=' {
			if l.peekCharAt(1) == '=' {
				return l.threeCharToken(TokenCaseNe)
			}
			return l.twoCharToken(TokenNe)
		}
		tok = l.newToken(TokenNot, l.ch)
	case '<':
		switch {
		case l.peekChar() == '<' && l.peekCharAt(1) == '<':
			return l.threeCharToken(TokenAShl)
		case l.peekChar() == '<':
			return l.twoCharToken(TokenShl)
		case l.peekChar() == '=':
			return l.twoCharToken(TokenLe)
		}
		tok = l.newToken(TokenLt, l.ch)
	case '>':
		switch {
		case l.peekChar() == '>' && l.peekCharAt(1) == '>':
			return l.threeCharToken(TokenAShr)
		case l.peekChar() == '>':
			return l.twoCharToken(TokenShr)
		case l.peekChar() == '=':
			return l.twoCharToken(TokenGe)
		}
		tok = l.newToken(TokenGt, l.ch)
	case '&':
		if l.peekChar() == '&' {
			return l.twoCharToken(TokenLAnd)
		}
		tok = l.newToken(TokenAmpersand, l.ch)
	case '|':
		if l.peekChar() == '|' {
			return l.twoCharToken(TokenLOr)
		}
		tok = l.newToken(TokenPipe, l.ch)
	case '^':
		if l.peekChar() == '~' {
			return l.twoCharToken(TokenXnor)
		}
		tok = l.newToken(TokenCaret, l.ch)
	case '~':
		switch l.peekChar() {
		case '&':
			return l.twoCharToken(TokenNand)
		case '|':
			return l.twoCharToken(TokenNor)
		case '^':
			return l.twoCharToken(TokenXnor)
		}
		tok = l.newToken(TokenTilde, l.ch)
	case '?':
		tok = l.newToken(TokenQuestion, l.ch)
	case ':':
		tok = l.newToken(TokenColon, l.ch)
	case '(':
		tok = l.newToken(TokenLParen, l.ch)
	case ')':
		tok = l.newToken(TokenRParen, l.ch)
	case '{':
		tok = l.newToken(TokenLBrace, l.ch)
	case '}':
		tok = l.newToken(TokenRBrace, l.ch)
	case '[':
		tok = l.newToken(TokenLBracket, l.ch)
	case ']':
		tok = l.newToken(TokenRBracket, l.ch)
	case ';':
		tok = l.newToken(TokenSemicolon, l.ch)
	case ',':
		tok = l.newToken(TokenComma, l.ch)
	case '.':
		tok = l.newToken(TokenDot, l.ch)
	case '#':
		tok = l.newToken(TokenHash, l.ch)
	case '@':
		tok = l.newToken(TokenAt, l.ch)
	case '"':
		tok.Type = TokenString
		tok.Literal = l.readString()
		return tok
	case '`':
		return l.readDirective(tok)
	case '\\':
		tok.Type = TokenIdent
		tok.Literal = l.readEscapedIdentifier()
		return tok
	case '$':
		tok.Type = TokenSysIdent
		l.readChar() // consume $
		tok.Literal = "$" + l.readIdentifier()
		return tok
	case '\'':
		tok.Type = TokenNumber
		tok.Literal = l.readBasedNumber("")
		return tok
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Literal, tok.Type = l.readNumber()
			return tok
		}
		tok = l.newToken(TokenIllegal, l.ch)
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, ch byte) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

func (l *Lexer) twoCharToken(tokenType TokenType) Token {
	tok := Token{Type: tokenType, Line: l.line, Column: l.column}
	tok.Literal = l.input[l.pos : l.pos+2]
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) threeCharToken(tokenType TokenType) Token {
	tok := Token{Type: tokenType, Line: l.line, Column: l.column}
	tok.Literal = l.input[l.pos : l.pos+3]
	l.readChar()
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
		l.readChar()
	}
}

// skipComments consumes one comment and reports whether it did
func (l *Lexer) skipComments() bool {
	if l.ch != '/' {
		return false
	}
	if l.peekChar() == '/' {
		// Single-line comment
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		return true
	}
	if l.peekChar() == '*' {
		// Multi-line comment
		l.readChar() // consume /
		l.readChar() // consume *
		for {
			if l.ch == 0 {
				break
			}
			if l.ch == '*' && l.peekChar() == '/' {
				l.readChar() // consume *
				l.readChar() // consume /
				break
			}
			l.readChar()
		}
		return true
	}
	return false
}

// skipAttribute consumes a (* ... *) attribute instance. The event control
// "@(*)" is left alone.
func (l *Lexer) skipAttribute() bool {
	if l.ch != '(' || l.peekChar() != '*' || l.peekCharAt(1) == ')' || l.lastType == TokenAt {
		return false
	}
	l.readChar() // consume (
	l.readChar() // consume *
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == ')' {
			l.readChar()
			l.readChar()
			break
		}
		l.readChar()
	}
	return true
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '$' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

func (l *Lexer) readEscapedIdentifier() string {
	l.readChar() // consume backslash
	pos := l.pos
	for l.ch != 0 && l.ch != ' ' && l.ch != '\t' && l.ch != '\n' && l.ch != '\r' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readDirective handles compiler directives that survive preprocessing.
// `default_nettype keeps its argument; every other directive is dropped
// together with the rest of its line.
func (l *Lexer) readDirective(tok Token) Token {
	l.readChar() // consume `
	name := l.readIdentifier()
	if name == "default_nettype" {
		for l.ch == ' ' || l.ch == '\t' {
			l.readChar()
		}
		tok.Type = TokenDirective
		tok.Literal = name + " " + l.readIdentifier()
		return tok
	}
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return l.nextToken()
}

// readNumber reads a decimal, real, or sized based literal
func (l *Lexer) readNumber() (string, TokenType) {
	pos := l.pos
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	size := l.input[pos:l.pos]

	// Real literal: 1.5, 1e3, 1.5e-3
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		l.readExponent()
		return l.input[pos:l.pos], TokenReal
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || ((l.peekChar() == '-' || l.peekChar() == '+') && isDigit(l.peekCharAt(1)))) {
		l.readExponent()
		return l.input[pos:l.pos], TokenReal
	}

	// Sized based literal, whitespace allowed before the apostrophe
	save := *l
	for l.ch == ' ' || l.ch == '\t' {
		l.readChar()
	}
	if l.ch == '\'' && isBaseChar(l.peekChar(), l.peekCharAt(1)) {
		return l.readBasedNumber(size), TokenNumber
	}
	*l = save
	return size, TokenNumber
}

func (l *Lexer) readExponent() {
	if l.ch != 'e' && l.ch != 'E' {
		return
	}
	l.readChar()
	if l.ch == '-' || l.ch == '+' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
}

// readBasedNumber reads 'b1010, 'sh7F, '0 and friends; size is the already
// consumed width prefix (may be empty)
func (l *Lexer) readBasedNumber(size string) string {
	var sb strings.Builder
	sb.WriteString(size)
	sb.WriteByte('\'')
	l.readChar() // consume '

	if l.ch == 's' || l.ch == 'S' {
		sb.WriteByte('s')
		l.readChar()
	}
	switch l.ch {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		sb.WriteByte(byte(unicode.ToLower(rune(l.ch))))
		l.readChar()
	default:
		// Unbased unsized literal: '0 '1 'x 'z
		sb.WriteByte(l.ch)
		l.readChar()
		return sb.String()
	}
	for l.ch == ' ' || l.ch == '\t' {
		l.readChar()
	}
	for isHexDigit(l.ch) || l.ch == '_' || l.ch == 'x' || l.ch == 'X' || l.ch == 'z' || l.ch == 'Z' || l.ch == '?' {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	return sb.String()
}

func (l *Lexer) readString() string {
	l.readChar() // consume opening quote
	pos := l.pos
	for l.ch != '"' && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar() // skip escape char
		}
		l.readChar()
	}
	str := l.input[pos:l.pos]
	l.readChar() // consume closing quote
	return str
}

func isBaseChar(ch, next byte) bool {
	switch ch {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H':
		return true
	case 's', 'S':
		return isBaseChar(next, 0)
	}
	return false
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}
