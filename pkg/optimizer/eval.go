package optimizer

import (
	"math"
	"math/big"

	"github.com/raymyers/vflow/pkg/dataflow"
)

// shiftLimit bounds shift amounts; anything larger shifts every bit out
const shiftLimit = 1 << 16

// ext returns the operand as an integer ready for an operation of the given
// signedness: signed operations see the two's complement value, unsigned
// ones see the raw bit pattern
func ext(v dataflow.EvalValue, signed bool) *big.Int {
	if signed {
		return v.Value
	}
	return v.Unsigned()
}

func boolValue(b bool) dataflow.EvalValue {
	if b {
		return dataflow.IntValue(1, 1, false)
	}
	return dataflow.IntValue(0, 1, false)
}

func toFloat(v dataflow.EvalValue) float64 {
	if v.IsFloat {
		return v.Float
	}
	f, _ := new(big.Float).SetInt(v.Value).Float64()
	return f
}

// evalUnary applies a unary or reduction operator
func evalUnary(op dataflow.Op, x dataflow.EvalValue) (dataflow.Node, bool) {
	if x.IsFloat {
		switch op {
		case dataflow.Uplus:
			return x, true
		case dataflow.Uminus:
			return dataflow.FloatValue(-x.Float), true
		case dataflow.Ulnot:
			return boolValue(x.Float == 0), true
		}
		return nil, false
	}
	w := x.Width
	switch op {
	case dataflow.Uplus:
		return x, true
	case dataflow.Uminus:
		return dataflow.NewValue(new(big.Int).Neg(x.Value), w, x.Signed), true
	case dataflow.Ulnot:
		return boolValue(!x.IsTrue()), true
	case dataflow.Unot:
		return dataflow.NewValue(new(big.Int).Not(x.Value), w, x.Signed), true
	}
	bits := x.Unsigned()
	var r bool
	switch op {
	case dataflow.Uand, dataflow.Unand:
		r = bits.Cmp(dataflow.Mask(w)) == 0
	case dataflow.Uor, dataflow.Unor:
		r = bits.Sign() != 0
	case dataflow.Uxor, dataflow.Uxnor:
		n := 0
		for i := 0; i < bits.BitLen(); i++ {
			n += int(bits.Bit(i))
		}
		r = n%2 == 1
	default:
		return nil, false
	}
	if op == dataflow.Unand || op == dataflow.Unor || op == dataflow.Uxnor {
		r = !r
	}
	return boolValue(r), true
}

// evalBinary applies a binary operator with Verilog sizing: arithmetic and
// bitwise results take the wider operand width, shifts and power keep the
// left width, comparisons and logical connectives are one bit wide
func evalBinary(op dataflow.Op, x, y dataflow.EvalValue) (dataflow.Node, bool) {
	if x.IsFloat || y.IsFloat {
		return evalFloat(op, toFloat(x), toFloat(y))
	}
	w := max(x.Width, y.Width)
	signed := x.Signed && y.Signed

	switch op {
	case dataflow.Land:
		return boolValue(x.IsTrue() && y.IsTrue()), true
	case dataflow.Lor:
		return boolValue(x.IsTrue() || y.IsTrue()), true
	case dataflow.Sll, dataflow.Sla, dataflow.Srl, dataflow.Sra:
		return evalShift(op, x, y), true
	case dataflow.Power:
		return evalPower(x, y), true
	}

	a, b := ext(x, signed), ext(y, signed)
	switch op {
	case dataflow.Plus:
		return dataflow.NewValue(new(big.Int).Add(a, b), w, signed), true
	case dataflow.Minus:
		return dataflow.NewValue(new(big.Int).Sub(a, b), w, signed), true
	case dataflow.Times:
		return dataflow.NewValue(new(big.Int).Mul(a, b), w, signed), true
	case dataflow.Divide:
		if b.Sign() == 0 {
			return dataflow.Undefined{Width: w}, true
		}
		return dataflow.NewValue(new(big.Int).Quo(a, b), w, signed), true
	case dataflow.Mod:
		if b.Sign() == 0 {
			return dataflow.Undefined{Width: w}, true
		}
		return dataflow.NewValue(new(big.Int).Rem(a, b), w, signed), true
	case dataflow.And:
		return dataflow.NewValue(new(big.Int).And(a, b), w, signed), true
	case dataflow.Or:
		return dataflow.NewValue(new(big.Int).Or(a, b), w, signed), true
	case dataflow.Xor:
		return dataflow.NewValue(new(big.Int).Xor(a, b), w, signed), true
	case dataflow.Xnor:
		return dataflow.NewValue(new(big.Int).Not(new(big.Int).Xor(a, b)), w, signed), true
	case dataflow.LessThan:
		return boolValue(a.Cmp(b) < 0), true
	case dataflow.GreaterThan:
		return boolValue(a.Cmp(b) > 0), true
	case dataflow.LessEq:
		return boolValue(a.Cmp(b) <= 0), true
	case dataflow.GreaterEq:
		return boolValue(a.Cmp(b) >= 0), true
	case dataflow.Eq, dataflow.Eql:
		return boolValue(a.Cmp(b) == 0), true
	case dataflow.NotEq, dataflow.NotEql:
		return boolValue(a.Cmp(b) != 0), true
	}
	return nil, false
}

func evalFloat(op dataflow.Op, a, b float64) (dataflow.Node, bool) {
	switch op {
	case dataflow.Plus:
		return dataflow.FloatValue(a + b), true
	case dataflow.Minus:
		return dataflow.FloatValue(a - b), true
	case dataflow.Times:
		return dataflow.FloatValue(a * b), true
	case dataflow.Divide:
		if b == 0 {
			return dataflow.Undefined{Width: 64}, true
		}
		return dataflow.FloatValue(a / b), true
	case dataflow.Power:
		return dataflow.FloatValue(math.Pow(a, b)), true
	case dataflow.LessThan:
		return boolValue(a < b), true
	case dataflow.GreaterThan:
		return boolValue(a > b), true
	case dataflow.LessEq:
		return boolValue(a <= b), true
	case dataflow.GreaterEq:
		return boolValue(a >= b), true
	case dataflow.Eq, dataflow.Eql:
		return boolValue(a == b), true
	case dataflow.NotEq, dataflow.NotEql:
		return boolValue(a != b), true
	case dataflow.Land:
		return boolValue(a != 0 && b != 0), true
	case dataflow.Lor:
		return boolValue(a != 0 || b != 0), true
	}
	return nil, false
}

// evalShift reads the amount as unsigned in its own width, so a negative
// amount shifts every bit out
func evalShift(op dataflow.Op, x, y dataflow.EvalValue) dataflow.Node {
	w := x.Width
	amt := y.Unsigned()
	n := uint(shiftLimit)
	if amt.IsInt64() && amt.Int64() < shiftLimit {
		n = uint(amt.Int64())
	}
	switch op {
	case dataflow.Sll, dataflow.Sla:
		return dataflow.NewValue(new(big.Int).Lsh(x.Unsigned(), n), w, x.Signed)
	case dataflow.Sra:
		if x.Signed {
			return dataflow.NewValue(new(big.Int).Rsh(x.Value, n), w, true)
		}
	}
	return dataflow.NewValue(new(big.Int).Rsh(x.Unsigned(), n), w, x.Signed)
}

func evalPower(x, y dataflow.EvalValue) dataflow.Node {
	w := x.Width
	if y.Signed && y.Value.Sign() < 0 {
		switch {
		case x.Value.Sign() == 0:
			return dataflow.Undefined{Width: w}
		case x.Value.Cmp(big.NewInt(1)) == 0:
			return dataflow.NewValue(big.NewInt(1), w, x.Signed)
		case x.Signed && x.Value.Cmp(big.NewInt(-1)) == 0:
			if y.Value.Bit(0) == 0 {
				return dataflow.NewValue(big.NewInt(1), w, true)
			}
			return dataflow.NewValue(big.NewInt(-1), w, true)
		}
		return dataflow.NewValue(big.NewInt(0), w, x.Signed)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(w))
	r := new(big.Int).Exp(x.Unsigned(), y.Unsigned(), mod)
	return dataflow.NewValue(r, w, x.Signed)
}

// concatValues joins constant parts, most significant first
func concatValues(parts []dataflow.EvalValue) dataflow.EvalValue {
	v := new(big.Int)
	w := 0
	for _, p := range parts {
		v.Lsh(v, uint(p.Width))
		v.Or(v, p.Unsigned())
		w += p.Width
	}
	return dataflow.NewValue(v, w, false)
}

// selectBits extracts bits msb..lsb of v; bits beyond the value are undefined
func selectBits(v dataflow.EvalValue, msb, lsb int64) dataflow.Node {
	if msb < lsb {
		msb, lsb = lsb, msb
	}
	width := int(msb - lsb + 1)
	if lsb < 0 || msb >= int64(v.Width) {
		return dataflow.Undefined{Width: width}
	}
	r := new(big.Int).Rsh(v.Unsigned(), uint(lsb))
	return dataflow.NewValue(r, width, false)
}

// clog2 returns the ceiling of log2(v), 0 for v <= 1
func clog2(v *big.Int) int64 {
	if v.Cmp(big.NewInt(1)) <= 0 {
		return 0
	}
	return int64(new(big.Int).Sub(v, big.NewInt(1)).BitLen())
}
