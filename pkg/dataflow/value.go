package dataflow

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// DefaultWidth is the width of unsized literals and integer variables
const DefaultWidth = 32

// EvalValue is a fully evaluated constant. Integer values are kept normalized
// to their width: [0, 2^w) when unsigned, [-2^(w-1), 2^(w-1)) when signed.
// The *big.Int is never mutated after construction.
type EvalValue struct {
	Value    *big.Int
	Width    int
	Signed   bool
	IsFloat  bool
	Float    float64
	IsString bool
	Str      string
}

// NewValue returns v normalized to width bits
func NewValue(v *big.Int, width int, signed bool) EvalValue {
	if width <= 0 {
		width = DefaultWidth
	}
	mask := Mask(width)
	n := new(big.Int).And(v, mask)
	if signed && n.Bit(width-1) == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(width)))
	}
	return EvalValue{Value: n, Width: width, Signed: signed}
}

// IntValue is NewValue for small integers
func IntValue(v int64, width int, signed bool) EvalValue {
	return NewValue(big.NewInt(v), width, signed)
}

// FloatValue returns a real constant
func FloatValue(f float64) EvalValue {
	return EvalValue{IsFloat: true, Float: f, Width: 64, Value: big.NewInt(int64(f))}
}

// StringValue returns a string constant, eight bits per character
func StringValue(s string) EvalValue {
	v := new(big.Int)
	for i := 0; i < len(s); i++ {
		v.Lsh(v, 8)
		v.Or(v, big.NewInt(int64(s[i])))
	}
	w := 8 * len(s)
	if w == 0 {
		w = 8
	}
	return EvalValue{IsString: true, Str: s, Width: w, Value: v}
}

// Mask returns 2^width - 1
func Mask(width int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}

// Unsigned returns the value's bit pattern as a non-negative integer
func (v EvalValue) Unsigned() *big.Int {
	if v.Value.Sign() >= 0 {
		return v.Value
	}
	return new(big.Int).And(v.Value, Mask(v.Width))
}

// Int64 returns the value as an int64 (floats truncate)
func (v EvalValue) Int64() int64 {
	if v.IsFloat {
		return int64(v.Float)
	}
	return v.Value.Int64()
}

// IsTrue reports whether the value is non-zero
func (v EvalValue) IsTrue() bool {
	if v.IsFloat {
		return v.Float != 0
	}
	return v.Value.Sign() != 0
}

// Resize returns the value extended or truncated to width; sign extension
// follows the value's own signedness
func (v EvalValue) Resize(width int, signed bool) EvalValue {
	if v.IsFloat || v.IsString {
		return v
	}
	return NewValue(v.Value, width, signed)
}

func (v EvalValue) String() string {
	switch {
	case v.IsFloat:
		return fmt.Sprintf("(EvalValue %s float)", strconv.FormatFloat(v.Float, 'g', -1, 64))
	case v.IsString:
		return fmt.Sprintf("(EvalValue %q string)", v.Str)
	case v.Signed:
		return fmt.Sprintf("(EvalValue %s width:%d signed)", v.Value, v.Width)
	}
	return fmt.Sprintf("(EvalValue %s width:%d)", v.Value, v.Width)
}

// ToCode renders the value as a sized Verilog literal
func (v EvalValue) ToCode() string {
	switch {
	case v.IsFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case v.IsString:
		return strconv.Quote(v.Str)
	case v.Signed && v.Value.Sign() < 0:
		return fmt.Sprintf("-%d'sd%s", v.Width, new(big.Int).Neg(v.Value))
	case v.Signed:
		return fmt.Sprintf("%d'sd%s", v.Width, v.Value)
	}
	return fmt.Sprintf("%d'd%s", v.Width, v.Value)
}

// ParseIntLiteral converts a Verilog integer literal to an EvalValue, or to
// Undefined / HighImpedance when its digits contain x or z
func ParseIntLiteral(lit string) (Node, error) {
	s := strings.ReplaceAll(lit, "_", "")
	tick := strings.IndexByte(s, '\'')
	if tick < 0 {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer literal %q", lit)
		}
		width := DefaultWidth
		if v.BitLen()+1 > width {
			width = v.BitLen() + 1
		}
		return NewValue(v, width, true), nil
	}

	width := DefaultWidth
	if tick > 0 {
		w, err := strconv.Atoi(strings.TrimSpace(s[:tick]))
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid literal width in %q", lit)
		}
		width = w
	}
	rest := s[tick+1:]

	// unbased unsized fill literals
	switch strings.ToLower(rest) {
	case "0":
		return IntValue(0, 1, false), nil
	case "1":
		return IntValue(1, 1, false), nil
	case "x":
		return Undefined{Width: 1}, nil
	case "z":
		return HighImpedance{Width: 1}, nil
	}

	signed := false
	if rest != "" && (rest[0] == 's' || rest[0] == 'S') {
		signed = true
		rest = rest[1:]
	}
	if rest == "" {
		return nil, fmt.Errorf("invalid literal %q", lit)
	}
	base := 10
	switch rest[0] {
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	case 'd', 'D':
		base = 10
	case 'h', 'H':
		base = 16
	default:
		return nil, fmt.Errorf("invalid literal base in %q", lit)
	}
	digits := strings.ToLower(rest[1:])
	if strings.ContainsAny(digits, "x") {
		return Undefined{Width: width}, nil
	}
	if strings.ContainsAny(digits, "z?") {
		return HighImpedance{Width: width}, nil
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer literal %q", lit)
	}
	return NewValue(v, width, signed), nil
}

// ParseFloatLiteral converts a Verilog real literal to an EvalValue
func ParseFloatLiteral(lit string) (EvalValue, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(lit, "_", ""), 64)
	if err != nil {
		return EvalValue{}, fmt.Errorf("invalid real literal %q", lit)
	}
	return FloatValue(f), nil
}
