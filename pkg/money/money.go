// Package money implements fixed-point nano-USD arithmetic for billing.
//
// All monetary values are signed integers in nano-USD (10^-9 USD). Floats
// never enter the computation: multipliers are quantized to nine fractional
// digits before being folded into integer arithmetic, and division always
// truncates toward zero.
package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// ErrNotComputable is returned when a charge cannot be computed because an
// intermediate step overflowed the ledger's persisted range, or because the
// multiplier was not a finite, non-negative number.
var ErrNotComputable = errors.New("charge not computable")

// ErrInvalidFormat is returned by Parse when the input is not a valid
// nano-USD decimal literal.
var ErrInvalidFormat = errors.New("invalid nano-usd format")

// maxMagnitude bounds the absolute value of any Amount this package will
// produce or accept without reporting ErrNotComputable. It mirrors the
// "at least 128-bit range" floor in the spec: 2^127-1 is comfortably above
// any realistic charge, and gives the ledger column a fixed width to persist.
var maxMagnitude = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// nanoPerUnit is 10^9, the number of nano-USD units in one USD.
var nanoPerUnit = big.NewInt(1_000_000_000)

// Amount is a signed nano-USD quantity.
type Amount struct {
	v *big.Int
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{v: big.NewInt(0)} }

// FromNano builds an Amount directly from a nano-USD integer count.
func FromNano(nano int64) Amount { return Amount{v: big.NewInt(nano)} }

// FromBigNano builds an Amount from an arbitrary-precision nano-USD count.
// The big.Int is copied.
func FromBigNano(nano *big.Int) Amount { return Amount{v: new(big.Int).Set(nano)} }

func (a Amount) big() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

// Nano returns the amount as int64 nano-USD. If the value does not fit in
// an int64, ok is false.
func (a Amount) Nano() (n int64, ok bool) {
	if !a.big().IsInt64() {
		return 0, false
	}
	return a.big().Int64(), true
}

// BigNano returns a copy of the underlying nano-USD big.Int.
func (a Amount) BigNano() *big.Int { return new(big.Int).Set(a.big()) }

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int { return a.big().Sign() }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{v: new(big.Int).Sub(a.big(), b.big())}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{v: new(big.Int).Neg(a.big())}
}

// Cmp compares a to b: -1, 0, 1.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// withinRange reports whether v fits within [-maxMagnitude, maxMagnitude].
func withinRange(v *big.Int) bool {
	abs := new(big.Int).Abs(v)
	return abs.Cmp(maxMagnitude) <= 0
}

// checkedAdd adds a and b, returning ErrNotComputable on overflow.
func checkedAdd(a, b Amount) (Amount, error) {
	sum := new(big.Int).Add(a.big(), b.big())
	if !withinRange(sum) {
		return Amount{}, ErrNotComputable
	}
	return Amount{v: sum}, nil
}

// checkedMul multiplies a by an int64 scalar, returning ErrNotComputable on
// overflow.
func checkedMul(a Amount, scalar *big.Int) (Amount, error) {
	prod := new(big.Int).Mul(a.big(), scalar)
	if !withinRange(prod) {
		return Amount{}, ErrNotComputable
	}
	return Amount{v: prod}, nil
}

// Parse parses a nano-USD decimal literal: an optional leading sign, digits,
// an optional '.' followed by up to nine fractional digits. Anything else
// is rejected.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, ErrInvalidFormat
	}

	neg := false
	rest := s
	switch rest[0] {
	case '+':
		rest = rest[1:]
	case '-':
		neg = true
		rest = rest[1:]
	}
	if rest == "" {
		return Amount{}, ErrInvalidFormat
	}

	intPart := rest
	fracPart := ""
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		intPart = rest[:idx]
		fracPart = rest[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > 9 {
		return Amount{}, ErrInvalidFormat
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return Amount{}, ErrInvalidFormat
	}
	for len(fracPart) < 9 {
		fracPart += "0"
	}

	whole, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return Amount{}, ErrInvalidFormat
	}
	frac, ok := new(big.Int).SetString(fracPart, 10)
	if !ok {
		return Amount{}, ErrInvalidFormat
	}

	nano := new(big.Int).Mul(whole, nanoPerUnit)
	nano.Add(nano, frac)
	if neg {
		nano.Neg(nano)
	}
	if !withinRange(nano) {
		return Amount{}, ErrNotComputable
	}
	return Amount{v: nano}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String formats the amount as a decimal USD literal with trailing
// fractional zeros trimmed (but at least "0" after the decimal point is
// never printed when the fraction is exactly zero: "1" not "1.").
func (a Amount) String() string {
	v := a.big()
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)

	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(abs, nanoPerUnit, frac)

	fracStr := fmt.Sprintf("%09d", frac.Int64())
	fracStr = strings.TrimRight(fracStr, "0")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(whole.String())
	if fracStr != "" {
		sb.WriteByte('.')
		sb.WriteString(fracStr)
	}
	return sb.String()
}

// quantizeMultiplier converts a non-negative finite float multiplier into an
// integer count of nano-units (i.e. multiplier * 10^9, rounded to the
// nearest integer at the ninth fractional digit — the spec's "quantize to
// nine fractional digits" step).
func quantizeMultiplier(multiplier float64) (*big.Int, error) {
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, ErrNotComputable
	}
	if multiplier < 0 {
		return nil, ErrNotComputable
	}

	scaled := multiplier * 1_000_000_000
	if math.IsInf(scaled, 0) || scaled > math.MaxInt64 {
		return nil, ErrNotComputable
	}
	return big.NewInt(int64(math.Round(scaled))), nil
}

// MulFloatMultiplier scales base by multiplier: quantize multiplier to nine
// fractional digits, convert to nano units, multiply, then integer-divide
// by 10^9 truncating toward zero. Any overflow or non-finite/negative
// multiplier yields ErrNotComputable.
func MulFloatMultiplier(base Amount, multiplier float64) (Amount, error) {
	nanoMultiplier, err := quantizeMultiplier(multiplier)
	if err != nil {
		return Amount{}, err
	}

	scaled, err := checkedMul(base, nanoMultiplier)
	if err != nil {
		return Amount{}, err
	}

	// Integer division truncates toward zero in Go's big.Int.Quo, matching
	// the spec's required truncation semantics (as opposed to Div, which
	// floors).
	result := new(big.Int).Quo(scaled.big(), nanoPerUnit)
	if !withinRange(result) {
		return Amount{}, ErrNotComputable
	}
	return Amount{v: result}, nil
}

// CheckedAdd is the exported checked-overflow addition used by callers that
// need to detect overflow explicitly (e.g. the billing engine summing
// prompt and completion charges).
func CheckedAdd(a, b Amount) (Amount, error) { return checkedAdd(a, b) }
