package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent     // foo, \escaped
	TokenSysIdent  // $display
	TokenNumber    // 42, 8'hFF, 'b0
	TokenReal      // 1.5, 2e3
	TokenString    // "hello"
	TokenDirective // `default_nettype

	// Keywords
	TokenModule
	TokenEndmodule
	TokenInput
	TokenOutput
	TokenInout
	TokenWire
	TokenReg
	TokenLogic
	TokenTri
	TokenInteger
	TokenRealKw
	TokenSupply0
	TokenSupply1
	TokenGenvar
	TokenParameter
	TokenLocalparam
	TokenDefparam
	TokenSigned
	TokenUnsigned
	TokenAssign
	TokenAlways
	TokenAlwaysFF
	TokenAlwaysComb
	TokenAlwaysLatch
	TokenInitial
	TokenBegin
	TokenEnd
	TokenIf
	TokenElse
	TokenCase
	TokenCasex
	TokenCasez
	TokenEndcase
	TokenDefault
	TokenFor
	TokenWhile
	TokenRepeat
	TokenForever
	TokenWait
	TokenFork
	TokenJoin
	TokenDisable
	TokenGenerate
	TokenEndgenerate
	TokenFunction
	TokenEndfunction
	TokenTask
	TokenEndtask
	TokenAutomatic
	TokenPosedge
	TokenNegedge
	TokenOr // the `or` keyword of sensitivity lists
	TokenGate

	// Operators
	TokenPlus       // +
	TokenMinus      // -
	TokenStar       // *
	TokenSlash      // /
	TokenPercent    // %
	TokenPower      // **
	TokenAssignOp   // =
	TokenLe         // <= (also non-blocking assignment)
	TokenEq         // ==
	TokenNe         // !=
	TokenCaseEq     // ===
	TokenCaseNe     // !==
	TokenLt         // <
	TokenGt         // >
	TokenGe         // >=
	TokenLAnd       // &&
	TokenLOr        // ||
	TokenNot        // !
	TokenAmpersand  // &
	TokenPipe       // |
	TokenCaret      // ^
	TokenTilde      // ~
	TokenNand       // ~&
	TokenNor        // ~|
	TokenXnor       // ~^ or ^~
	TokenShl        // <<
	TokenShr        // >>
	TokenAShl       // <<<
	TokenAShr       // >>>
	TokenQuestion   // ?
	TokenColon      // :
	TokenPlusColon  // +:
	TokenMinusColon // -:

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenHash      // #
	TokenAt        // @
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenIllegal:     "ILLEGAL",
	TokenIdent:       "IDENT",
	TokenSysIdent:    "SYSIDENT",
	TokenNumber:      "NUMBER",
	TokenReal:        "REAL",
	TokenString:      "STRING",
	TokenDirective:   "DIRECTIVE",
	TokenModule:      "module",
	TokenEndmodule:   "endmodule",
	TokenInput:       "input",
	TokenOutput:      "output",
	TokenInout:       "inout",
	TokenWire:        "wire",
	TokenReg:         "reg",
	TokenLogic:       "logic",
	TokenTri:         "tri",
	TokenInteger:     "integer",
	TokenRealKw:      "real",
	TokenSupply0:     "supply0",
	TokenSupply1:     "supply1",
	TokenGenvar:      "genvar",
	TokenParameter:   "parameter",
	TokenLocalparam:  "localparam",
	TokenDefparam:    "defparam",
	TokenSigned:      "signed",
	TokenUnsigned:    "unsigned",
	TokenAssign:      "assign",
	TokenAlways:      "always",
	TokenAlwaysFF:    "always_ff",
	TokenAlwaysComb:  "always_comb",
	TokenAlwaysLatch: "always_latch",
	TokenInitial:     "initial",
	TokenBegin:       "begin",
	TokenEnd:         "end",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenCase:        "case",
	TokenCasex:       "casex",
	TokenCasez:       "casez",
	TokenEndcase:     "endcase",
	TokenDefault:     "default",
	TokenFor:         "for",
	TokenWhile:       "while",
	TokenRepeat:      "repeat",
	TokenForever:     "forever",
	TokenWait:        "wait",
	TokenFork:        "fork",
	TokenJoin:        "join",
	TokenDisable:     "disable",
	TokenGenerate:    "generate",
	TokenEndgenerate: "endgenerate",
	TokenFunction:    "function",
	TokenEndfunction: "endfunction",
	TokenTask:        "task",
	TokenEndtask:     "endtask",
	TokenAutomatic:   "automatic",
	TokenPosedge:     "posedge",
	TokenNegedge:     "negedge",
	TokenOr:          "or",
	TokenGate:        "GATE",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenPower:       "**",
	TokenAssignOp:    "=",
	TokenLe:          "<=",
	TokenEq:          "==",
	TokenNe:          "!=",
	TokenCaseEq:      "===",
	TokenCaseNe:      "!==",
	TokenLt:          "<",
	TokenGt:          ">",
	TokenGe:          ">=",
	TokenLAnd:        "&&",
	TokenLOr:         "||",
	TokenNot:         "!",
	TokenAmpersand:   "&",
	TokenPipe:        "|",
	TokenCaret:       "^",
	TokenTilde:       "~",
	TokenNand:        "~&",
	TokenNor:         "~|",
	TokenXnor:        "~^",
	TokenShl:         "<<",
	TokenShr:         ">>",
	TokenAShl:        "<<<",
	TokenAShr:        ">>>",
	TokenQuestion:    "?",
	TokenColon:       ":",
	TokenPlusColon:   "+:",
	TokenMinusColon:  "-:",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenSemicolon:   ";",
	TokenComma:       ",",
	TokenDot:         ".",
	TokenHash:        "#",
	TokenAt:          "@",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// keywords maps keyword strings to token types
var keywords = map[string]TokenType{
	"module":       TokenModule,
	"macromodule":  TokenModule,
	"endmodule":    TokenEndmodule,
	"input":        TokenInput,
	"output":       TokenOutput,
	"inout":        TokenInout,
	"wire":         TokenWire,
	"wand":         TokenWire,
	"wor":          TokenWire,
	"reg":          TokenReg,
	"logic":        TokenLogic,
	"tri":          TokenTri,
	"tri0":         TokenTri,
	"tri1":         TokenTri,
	"integer":      TokenInteger,
	"real":         TokenRealKw,
	"supply0":      TokenSupply0,
	"supply1":      TokenSupply1,
	"genvar":       TokenGenvar,
	"parameter":    TokenParameter,
	"localparam":   TokenLocalparam,
	"defparam":     TokenDefparam,
	"signed":       TokenSigned,
	"unsigned":     TokenUnsigned,
	"assign":       TokenAssign,
	"always":       TokenAlways,
	"always_ff":    TokenAlwaysFF,
	"always_comb":  TokenAlwaysComb,
	"always_latch": TokenAlwaysLatch,
	"initial":      TokenInitial,
	"begin":        TokenBegin,
	"end":          TokenEnd,
	"if":           TokenIf,
	"else":         TokenElse,
	"case":         TokenCase,
	"casex":        TokenCasex,
	"casez":        TokenCasez,
	"endcase":      TokenEndcase,
	"default":      TokenDefault,
	"for":          TokenFor,
	"while":        TokenWhile,
	"repeat":       TokenRepeat,
	"forever":      TokenForever,
	"wait":         TokenWait,
	"fork":         TokenFork,
	"join":         TokenJoin,
	"disable":      TokenDisable,
	"generate":     TokenGenerate,
	"endgenerate":  TokenEndgenerate,
	"function":     TokenFunction,
	"endfunction":  TokenEndfunction,
	"task":         TokenTask,
	"endtask":      TokenEndtask,
	"automatic":    TokenAutomatic,
	"posedge":      TokenPosedge,
	"negedge":      TokenNegedge,
	"or":           TokenOr,
	"and":          TokenGate,
	"nand":         TokenGate,
	"nor":          TokenGate,
	"xor":          TokenGate,
	"xnor":         TokenGate,
	"not":          TokenGate,
	"buf":          TokenGate,
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
