// Package vast defines the abstract syntax tree for Verilog source.
// Every node kind is a closed variant: consumers dispatch with a type switch.
package vast

// Node is the base interface for all AST nodes
type Node interface {
	implVastNode()
}

// Expr is the interface for all expression nodes
type Expr interface {
	Node
	implVastExpr()
}

// Stmt is the interface for all procedural statement nodes
type Stmt interface {
	Node
	implVastStmt()
}

// Item is the interface for module items (declarations, processes, instances, generate constructs)
type Item interface {
	Node
	implVastItem()
}

// UnaryOp represents unary operators
type UnaryOp int

const (
	OpPlus   UnaryOp = iota // +
	OpNeg                   // -
	OpLNot                  // !
	OpNot                   // ~
	OpRedAnd                // &
	OpRedNand               // ~&
	OpRedOr                 // |
	OpRedNor                // ~|
	OpRedXor                // ^
	OpRedXnor               // ~^
)

func (op UnaryOp) String() string {
	names := []string{"+", "-", "!", "~", "&", "~&", "|", "~|", "^", "~^"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// BinaryOp represents binary operators
type BinaryOp int

const (
	OpPower BinaryOp = iota
	OpMul
	OpDiv
	OpMod
	OpAdd
	OpSub
	OpShl  // <<
	OpShr  // >>
	OpAShl // <<<
	OpAShr // >>>
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq
	OpNe
	OpCaseEq // ===
	OpCaseNe // !==
	OpAnd    // &
	OpXor    // ^
	OpXnor   // ~^
	OpOr     // |
	OpLAnd   // &&
	OpLOr    // ||
)

func (op BinaryOp) String() string {
	names := []string{"**", "*", "/", "%", "+", "-", "<<", ">>", "<<<", ">>>", "<", ">", "<=", ">=",
		"==", "!=", "===", "!==", "&", "^", "~^", "|", "&&", "||"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// Precedence returns the binding strength of a binary operator (higher binds tighter)
func (op BinaryOp) Precedence() int {
	switch op {
	case OpPower:
		return 12
	case OpMul, OpDiv, OpMod:
		return 11
	case OpAdd, OpSub:
		return 10
	case OpShl, OpShr, OpAShl, OpAShr:
		return 9
	case OpLt, OpGt, OpLe, OpGe:
		return 8
	case OpEq, OpNe, OpCaseEq, OpCaseNe:
		return 7
	case OpAnd:
		return 6
	case OpXor, OpXnor:
		return 5
	case OpOr:
		return 4
	case OpLAnd:
		return 3
	case OpLOr:
		return 2
	}
	return 0
}

// --- Expressions ---

// Ident is a simple identifier reference
type Ident struct {
	Name string
}

// HierPart is one component of a hierarchical reference, e.g. gen[2] in top.gen[2].sig
type HierPart struct {
	Name  string
	Index Expr // nil unless the component carries a generate index
}

// HierRef is a dotted cross-hierarchy reference: inst.sub.sig
type HierRef struct {
	Parts []HierPart
}

// IntConst is an integer literal kept in source form: 8'hFF, 'b0, 42
type IntConst struct {
	Literal string
}

// FloatConst is a real literal
type FloatConst struct {
	Literal string
}

// StringConst is a string literal
type StringConst struct {
	Value string
}

// Unary is a unary or reduction expression
type Unary struct {
	Op UnaryOp
	X  Expr
}

// Binary is a binary expression
type Binary struct {
	Op BinaryOp
	X  Expr
	Y  Expr
}

// Cond is the ternary operator: cond ? then : else
type Cond struct {
	Cond Expr
	Then Expr
	Else Expr
}

// Concat is a bit concatenation {a, b, c}
type Concat struct {
	Items []Expr
}

// Repeat is a replication {n{a, b}}
type Repeat struct {
	Count Expr
	Items []Expr
}

// Index is a bit-select or array element access: x[i]
type Index struct {
	X     Expr
	Index Expr
}

// PartSelect is a constant range select: x[msb:lsb]
type PartSelect struct {
	X   Expr
	MSB Expr
	LSB Expr
}

// IndexedPartSelect is x[base +: width] or x[base -: width]
type IndexedPartSelect struct {
	X     Expr
	Base  Expr
	Width Expr
	Down  bool // -:
}

// Call is a user function call
type Call struct {
	Name string
	Args []Expr
}

// SysCall is a system function call: $signed(x)
type SysCall struct {
	Name string
	Args []Expr
}

// Paren keeps source parentheses so the printer can reproduce them
type Paren struct {
	X Expr
}

// --- Statements ---

// Block is a begin ... end sequential block, optionally named
type Block struct {
	Name  string
	Decls []Item // declarations local to a named block
	Stmts []Stmt
}

// If is an if / else statement
type If struct {
	Cond Expr
	Then Stmt // nil for an empty branch
	Else Stmt // nil when there is no else
}

// CaseKind distinguishes case, casex and casez
type CaseKind int

const (
	CaseNormal CaseKind = iota
	CaseX
	CaseZ
)

func (k CaseKind) String() string {
	switch k {
	case CaseX:
		return "casex"
	case CaseZ:
		return "casez"
	}
	return "case"
}

// CaseItem is one arm of a case statement; Exprs is nil for default
type CaseItem struct {
	Exprs []Expr
	Body  Stmt
}

// Case is a case statement
type Case struct {
	Kind  CaseKind
	Expr  Expr
	Items []CaseItem
}

// Assignment is the variable = expression form used by for-loop headers
type Assignment struct {
	LHS         Expr
	RHS         Expr
	Nonblocking bool // written with <=, which elaboration rejects
}

// For is a for loop
type For struct {
	Init Assignment
	Cond Expr
	Step Assignment
	Body Stmt
}

// While is a while loop
type While struct {
	Cond Expr
	Body Stmt
}

// RepeatStmt is repeat (n) stmt
type RepeatStmt struct {
	Count Expr
	Body  Stmt
}

// Forever is forever stmt
type Forever struct {
	Body Stmt
}

// Wait is wait (cond) stmt
type Wait struct {
	Cond Expr
	Body Stmt
}

// Fork is fork ... join
type Fork struct {
	Stmts []Stmt
}

// Disable is disable name;
type Disable struct {
	Name string
}

// BlockingAssign is lhs = rhs
type BlockingAssign struct {
	LHS   Expr
	RHS   Expr
	Delay Expr // intra-assignment delay, nil if absent
}

// NonblockingAssign is lhs <= rhs
type NonblockingAssign struct {
	LHS   Expr
	RHS   Expr
	Delay Expr
}

// DelayStmt is #delay stmt
type DelayStmt struct {
	Delay Expr
	Body  Stmt
}

// EventStmt is @(sens) stmt inside a procedure
type EventStmt struct {
	Sens SensList
	Body Stmt
}

// SysTaskCall is a system task enable: $display(...);
type SysTaskCall struct {
	Name string
	Args []Expr
}

// TaskCall is a user task enable: t(a, b);
type TaskCall struct {
	Name string
	Args []Expr
}

// NullStmt is a lone semicolon
type NullStmt struct{}

// --- Sensitivity ---

// Edge is the edge qualifier of a sensitivity entry
type Edge int

const (
	EdgeLevel Edge = iota
	EdgePos
	EdgeNeg
	EdgeAll // @* / @(*)
)

func (e Edge) String() string {
	switch e {
	case EdgePos:
		return "posedge"
	case EdgeNeg:
		return "negedge"
	case EdgeAll:
		return "*"
	}
	return "level"
}

// Sens is one entry of a sensitivity list
type Sens struct {
	Edge Edge
	Sig  Expr // nil for EdgeAll
}

// SensList is the event expression of an always block
type SensList struct {
	List []Sens
}

// --- Module items ---

// DeclKind is one type tag of a signal declaration
type DeclKind int

const (
	DeclInput DeclKind = iota
	DeclOutput
	DeclInout
	DeclWire
	DeclReg
	DeclTri
	DeclInteger
	DeclReal
	DeclSupply0
	DeclSupply1
	DeclGenvar
)

func (k DeclKind) String() string {
	names := []string{"input", "output", "inout", "wire", "reg", "tri", "integer", "real", "supply0", "supply1", "genvar"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// IsPort reports whether the kind is a port direction
func (k DeclKind) IsPort() bool {
	return k == DeclInput || k == DeclOutput || k == DeclInout
}

// Range is a [msb:lsb] pair
type Range struct {
	MSB Expr
	LSB Expr
}

// DeclName is one declared name with its unpacked dimensions and initializer
type DeclName struct {
	Name string
	Dims []Range
	Init Expr // wire x = e; or reg x = e;
}

// Decl declares signals: output reg signed [7:0] a, b;
type Decl struct {
	Kinds  []DeclKind
	Signed bool
	Range  *Range
	Names  []DeclName
}

// ParamDecl declares a single parameter or localparam
type ParamDecl struct {
	Local   bool
	Signed  bool
	Integer bool
	Range   *Range
	Name    string
	Value   Expr
}

// ContinuousAssign is assign lhs = rhs;
type ContinuousAssign struct {
	Delay Expr
	LHS   Expr
	RHS   Expr
}

// AlwaysKind distinguishes always and the SystemVerilog variants
type AlwaysKind int

const (
	AlwaysPlain AlwaysKind = iota
	AlwaysFF
	AlwaysComb
	AlwaysLatch
)

func (k AlwaysKind) String() string {
	switch k {
	case AlwaysFF:
		return "always_ff"
	case AlwaysComb:
		return "always_comb"
	case AlwaysLatch:
		return "always_latch"
	}
	return "always"
}

// Always is an always process
type Always struct {
	Kind AlwaysKind
	Sens SensList // empty for always_comb
	Body Stmt
}

// Initial is an initial process
type Initial struct {
	Body Stmt
}

// ParamArg is one parameter override in an instantiation; Name is empty when positional
type ParamArg struct {
	Name  string
	Value Expr
}

// PortArg is one port connection; Name is empty when positional, Value nil when unconnected
type PortArg struct {
	Name  string
	Value Expr
}

// Instance is a single module or primitive instantiation
type Instance struct {
	Module string
	Name   string
	Array  *Range // non-nil for instance arrays
	Params []ParamArg
	Ports  []PortArg
}

// Generate is a generate ... endgenerate region
type Generate struct {
	Items []Item
}

// GenBlock is a (possibly named) begin ... end inside a generate region
type GenBlock struct {
	Name  string
	Items []Item
}

// GenFor is a generate for loop
type GenFor struct {
	Init Assignment
	Cond Expr
	Step Assignment
	Body GenBlock
}

// GenIf is a generate if; Else is nil when absent
type GenIf struct {
	Cond Expr
	Then GenBlock
	Else *GenBlock
}

// GenCaseItem is one arm of a generate case; Exprs is nil for default
type GenCaseItem struct {
	Exprs []Expr
	Body  GenBlock
}

// GenCase is a generate case
type GenCase struct {
	Expr  Expr
	Items []GenCaseItem
}

// Function is a function declaration
type Function struct {
	Name      string
	Automatic bool
	Signed    bool
	Integer   bool
	Range     *Range
	Ports     []Decl // input declarations in order
	Decls     []Item
	Body      Stmt
}

// Task is a task declaration
type Task struct {
	Name      string
	Automatic bool
	Ports     []Decl
	Decls     []Item
	Body      Stmt
}

// Defparam is defparam path = value; it is parsed but not elaborated
type Defparam struct {
	Target HierRef
	Value  Expr
}

// Module is a module definition
type Module struct {
	Name           string
	Params         []ParamDecl // #(parameter ...) header list
	Ports          []string    // port names in header order
	Items          []Item      // body items, ANSI port declarations first
	DefaultNettype string      // "wire" unless `default_nettype overrides it
}

// Source is the root of a parsed compilation unit
type Source struct {
	Modules []*Module
}

// Marker methods for interface implementation
func (Ident) implVastNode() {}
func (Ident) implVastExpr() {}

func (HierRef) implVastNode() {}
func (HierRef) implVastExpr() {}

func (IntConst) implVastNode() {}
func (IntConst) implVastExpr() {}

func (FloatConst) implVastNode() {}
func (FloatConst) implVastExpr() {}

func (StringConst) implVastNode() {}
func (StringConst) implVastExpr() {}

func (Unary) implVastNode() {}
func (Unary) implVastExpr() {}

func (Binary) implVastNode() {}
func (Binary) implVastExpr() {}

func (Cond) implVastNode() {}
func (Cond) implVastExpr() {}

func (Concat) implVastNode() {}
func (Concat) implVastExpr() {}

func (Repeat) implVastNode() {}
func (Repeat) implVastExpr() {}

func (Index) implVastNode() {}
func (Index) implVastExpr() {}

func (PartSelect) implVastNode() {}
func (PartSelect) implVastExpr() {}

func (IndexedPartSelect) implVastNode() {}
func (IndexedPartSelect) implVastExpr() {}

func (Call) implVastNode() {}
func (Call) implVastExpr() {}

func (SysCall) implVastNode() {}
func (SysCall) implVastExpr() {}

func (Paren) implVastNode() {}
func (Paren) implVastExpr() {}

func (Block) implVastNode() {}
func (Block) implVastStmt() {}

func (If) implVastNode() {}
func (If) implVastStmt() {}

func (Case) implVastNode() {}
func (Case) implVastStmt() {}

func (For) implVastNode() {}
func (For) implVastStmt() {}

func (While) implVastNode() {}
func (While) implVastStmt() {}

func (RepeatStmt) implVastNode() {}
func (RepeatStmt) implVastStmt() {}

func (Forever) implVastNode() {}
func (Forever) implVastStmt() {}

func (Wait) implVastNode() {}
func (Wait) implVastStmt() {}

func (Fork) implVastNode() {}
func (Fork) implVastStmt() {}

func (Disable) implVastNode() {}
func (Disable) implVastStmt() {}

func (BlockingAssign) implVastNode() {}
func (BlockingAssign) implVastStmt() {}

func (NonblockingAssign) implVastNode() {}
func (NonblockingAssign) implVastStmt() {}

func (DelayStmt) implVastNode() {}
func (DelayStmt) implVastStmt() {}

func (EventStmt) implVastNode() {}
func (EventStmt) implVastStmt() {}

func (SysTaskCall) implVastNode() {}
func (SysTaskCall) implVastStmt() {}

func (TaskCall) implVastNode() {}
func (TaskCall) implVastStmt() {}

func (NullStmt) implVastNode() {}
func (NullStmt) implVastStmt() {}

func (Decl) implVastNode() {}
func (Decl) implVastItem() {}

func (ParamDecl) implVastNode() {}
func (ParamDecl) implVastItem() {}

func (ContinuousAssign) implVastNode() {}
func (ContinuousAssign) implVastItem() {}

func (Always) implVastNode() {}
func (Always) implVastItem() {}

func (Initial) implVastNode() {}
func (Initial) implVastItem() {}

func (Instance) implVastNode() {}
func (Instance) implVastItem() {}

func (Generate) implVastNode() {}
func (Generate) implVastItem() {}

func (GenBlock) implVastNode() {}
func (GenBlock) implVastItem() {}

func (GenFor) implVastNode() {}
func (GenFor) implVastItem() {}

func (GenIf) implVastNode() {}
func (GenIf) implVastItem() {}

func (GenCase) implVastNode() {}
func (GenCase) implVastItem() {}

func (Function) implVastNode() {}
func (Function) implVastItem() {}

func (Task) implVastNode() {}
func (Task) implVastItem() {}

func (Defparam) implVastNode() {}
func (Defparam) implVastItem() {}

func (Module) implVastNode() {}
