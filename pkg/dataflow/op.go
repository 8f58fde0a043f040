package dataflow

// Op is the operator kind of an Operator node
type Op int

const (
	Uplus Op = iota
	Uminus
	Ulnot
	Unot
	Uand
	Unand
	Uor
	Unor
	Uxor
	Uxnor
	Power
	Times
	Divide
	Mod
	Plus
	Minus
	Sll
	Srl
	Sla
	Sra
	LessThan
	GreaterThan
	LessEq
	GreaterEq
	Eq
	NotEq
	Eql
	NotEql
	And
	Xor
	Xnor
	Or
	Land
	Lor
)

var opNames = []string{
	"Uplus", "Uminus", "Ulnot", "Unot", "Uand", "Unand", "Uor", "Unor", "Uxor", "Uxnor",
	"Power", "Times", "Divide", "Mod", "Plus", "Minus", "Sll", "Srl", "Sla", "Sra",
	"LessThan", "GreaterThan", "LessEq", "GreaterEq", "Eq", "NotEq", "Eql", "NotEql",
	"And", "Xor", "Xnor", "Or", "Land", "Lor",
}

var opSymbols = []string{
	"+", "-", "!", "~", "&", "~&", "|", "~|", "^", "~^",
	"**", "*", "/", "%", "+", "-", "<<", ">>", "<<<", ">>>",
	"<", ">", "<=", ">=", "==", "!=", "===", "!==",
	"&", "^", "~^", "|", "&&", "||",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "?"
}

// Symbol returns the Verilog spelling of the operator
func (op Op) Symbol() string {
	if int(op) < len(opSymbols) {
		return opSymbols[op]
	}
	return "?"
}

// IsUnary reports whether the operator takes one operand
func (op Op) IsUnary() bool {
	return op <= Uxnor
}

// IsReduction reports whether the operator reduces a vector to one bit
func (op Op) IsReduction() bool {
	return op >= Uand && op <= Uxnor
}

// IsComparison reports whether the operator yields a 1-bit comparison result
func (op Op) IsComparison() bool {
	return op >= LessThan && op <= NotEql
}

// IsLogical reports whether the operator is a 1-bit logical connective
func (op Op) IsLogical() bool {
	return op == Land || op == Lor || op == Ulnot
}

// IsShift reports whether the operator is a shift
func (op Op) IsShift() bool {
	return op >= Sll && op <= Sra
}

// IsCommutative reports whether operand order does not matter
func (op Op) IsCommutative() bool {
	switch op {
	case Times, Plus, Eq, NotEq, Eql, NotEql, And, Xor, Xnor, Or, Land, Lor:
		return true
	}
	return false
}
