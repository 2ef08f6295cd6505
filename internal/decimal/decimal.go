// Package decimal implements the fixed-point rational used for every price,
// amount, and balance in the engine. It wraps
// github.com/shopspring/decimal for the underlying big.Int-backed
// coefficient/exponent pair and layers on the two invariants the matching
// and clearing pipeline depends on: a hard 28-significant-digit ceiling
// (anything wider than a 96-bit coefficient is an Overflow) and explicit,
// named rounding directions instead of shopspring's default banker's
// rounding.
package decimal

import (
	"errors"
	"fmt"
	"math/big"

	shopspring "github.com/shopspring/decimal"
)

// MaxScale is the largest number of digits after the point any symbol or
// balance may declare (base_scale/quote_scale ≤ 18).
const MaxScale = 18

// MaxDigits is the significant-digit ceiling this package enforces. A
// 96-bit unsigned coefficient holds at most 28 full decimal digits (2^96 ≈
// 7.9e28), which is where the leaf encoding's 12-byte mantissa field comes
// from.
const MaxDigits = 28

// ErrOverflow is returned whenever an operation's result needs more than
// MaxDigits significant digits to represent exactly.
var ErrOverflow = errors.New("decimal: overflow beyond 28 significant digits")

// ErrBadScale is returned when a requested scale falls outside [0, MaxScale].
var ErrBadScale = errors.New("decimal: scale out of range")

// RoundMode selects how Rescale disposes of digits beyond the target scale.
type RoundMode int

const (
	// Truncate drops extra digits, rounding toward zero.
	Truncate RoundMode = iota
	// CeilAbs rounds away from zero (increases the magnitude) whenever any
	// digit would otherwise be dropped. Used for every charge against a
	// user (fees and reserve amounts) so the engine never rounds in the
	// user's favor.
	CeilAbs
	// FloorAbs rounds toward negative infinity. Distinct from Truncate
	// only for negative values; no balance in this engine is ever
	// negative, but the distinction is kept for operations where the sign
	// of the operand isn't guaranteed ahead of time.
	FloorAbs
)

// Decimal is an immutable fixed-point rational value.
type Decimal struct {
	d shopspring.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: shopspring.Zero}

// FromInt64 builds an integral Decimal (scale 0).
func FromInt64(v int64) Decimal {
	return Decimal{d: shopspring.NewFromInt(v)}
}

// Parse reads a decimal literal such as "10.5000". Returns ErrOverflow if
// the literal needs more than MaxDigits significant digits.
func Parse(s string) (Decimal, error) {
	d, err := shopspring.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimal: parse %q: %w", s, err)
	}
	out := Decimal{d: d}
	if err := out.checkOverflow(); err != nil {
		return Decimal{}, err
	}
	return out, nil
}

// MustParse panics on a malformed literal; used for constants in tests and
// symbol bootstrap data.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fromShopspring(d shopspring.Decimal) (Decimal, error) {
	out := Decimal{d: d}
	if err := out.checkOverflow(); err != nil {
		return Decimal{}, err
	}
	return out, nil
}

// checkOverflow enforces the 28-significant-digit / 96-bit-coefficient
// ceiling.
func (a Decimal) checkOverflow() error {
	coeff := a.d.Coefficient()
	if coeff.BitLen() > 96 {
		return ErrOverflow
	}
	digits := len(new(big.Int).Abs(coeff).String())
	if coeff.Sign() == 0 {
		digits = 1
	}
	if digits > MaxDigits {
		return ErrOverflow
	}
	return nil
}

// Scale returns the number of digits after the point in the value's
// current (not necessarily canonical) representation.
func (a Decimal) Scale() int32 {
	return -a.d.Exponent()
}

// Sign returns -1, 0, or 1.
func (a Decimal) Sign() int { return a.d.Sign() }

// IsZero reports whether the value is exactly zero.
func (a Decimal) IsZero() bool { return a.d.IsZero() }

// IsNeg reports whether the value is strictly negative.
func (a Decimal) IsNeg() bool { return a.d.Sign() < 0 }

// IsPos reports whether the value is strictly positive.
func (a Decimal) IsPos() bool { return a.d.Sign() > 0 }

// Cmp returns -1, 0, or 1 comparing a against b.
func (a Decimal) Cmp(b Decimal) int { return a.d.Cmp(b.d) }

// Equal reports whether a and b represent the same numeric value,
// regardless of trailing-zero scale differences.
func (a Decimal) Equal(b Decimal) bool { return a.d.Equal(b.d) }

// Add returns a+b at full precision, erroring on overflow.
func (a Decimal) Add(b Decimal) (Decimal, error) {
	return fromShopspring(a.d.Add(b.d))
}

// Sub returns a-b at full precision, erroring on overflow.
func (a Decimal) Sub(b Decimal) (Decimal, error) {
	return fromShopspring(a.d.Sub(b.d))
}

// Mul returns a*b at full intermediate precision (no rounding). Callers
// that need a bounded scale (e.g. price*amount -> quote value) must
// follow with Rescale: full intermediate precision, then a single
// rescale, never round-then-multiply.
func (a Decimal) Mul(b Decimal) (Decimal, error) {
	return fromShopspring(a.d.Mul(b.d))
}

// DivTrunc returns the quotient a/b truncated to scale digits after the
// point, rounding toward zero. Division by zero returns ErrDivideByZero.
var ErrDivideByZero = errors.New("decimal: division by zero")

func (a Decimal) DivTrunc(b Decimal, scale int32) (Decimal, error) {
	if b.IsZero() {
		return Decimal{}, ErrDivideByZero
	}
	// shopspring's DivRound with a generous working scale, then an exact
	// truncating Rescale: keeps the rounding direction explicit instead
	// of relying on DivRound's own (banker's) rounding.
	q := a.d.DivRound(b.d, int32(MaxDigits)+scale)
	out := Decimal{d: q}
	return out.Rescale(scale, Truncate)
}

// Rescale changes a's scale to the requested number of digits after the
// point, applying mode when digits must be dropped. scale must be in
// [0, MaxScale].
func (a Decimal) Rescale(scale int32, mode RoundMode) (Decimal, error) {
	if scale < 0 || scale > MaxScale {
		return Decimal{}, ErrBadScale
	}
	cur := a.Scale()
	if scale >= cur {
		// Expanding scale never loses information.
		return fromShopspring(a.d.Rescale(-scale))
	}

	drop := cur - scale
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(drop)), nil)
	coeff := a.d.Coefficient()

	quotient, remainder := new(big.Int).QuoRem(coeff, divisor, new(big.Int))
	if remainder.Sign() != 0 {
		switch mode {
		case Truncate:
			// quotient already truncated toward zero by QuoRem.
		case CeilAbs:
			if coeff.Sign() >= 0 {
				quotient.Add(quotient, big.NewInt(1))
			} else {
				quotient.Sub(quotient, big.NewInt(1))
			}
		case FloorAbs:
			if coeff.Sign() < 0 {
				quotient.Sub(quotient, big.NewInt(1))
			}
		}
	}

	out := Decimal{d: shopspring.NewFromBigInt(quotient, -scale)}
	if err := out.checkOverflow(); err != nil {
		return Decimal{}, err
	}
	return out, nil
}

// Neg returns -a.
func (a Decimal) Neg() Decimal {
	return Decimal{d: a.d.Neg()}
}

// Abs returns |a|.
func (a Decimal) Abs() Decimal {
	return Decimal{d: a.d.Abs()}
}

// String renders the value in its current scale, e.g. "10.5000".
func (a Decimal) String() string {
	return a.d.StringFixed(a.Scale())
}

// Shopspring exposes the underlying shopspring/decimal value for
// interop with JSON encoding at the ingress boundary.
func (a Decimal) Shopspring() shopspring.Decimal { return a.d }

// FromShopspring wraps a shopspring/decimal value, validating it against
// the overflow ceiling.
func FromShopspring(d shopspring.Decimal) (Decimal, error) {
	return fromShopspring(d)
}

// MarshalJSON renders the decimal as a JSON string (not a bare number) so
// precision survives round-tripping through the ingress codec.
func (a Decimal) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", a.String())), nil
}

// UnmarshalJSON parses a JSON string produced by MarshalJSON (or a bare
// numeric literal, for operator convenience).
func (a *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := Parse(s)
	if err != nil {
		return err
	}
	*a = d
	return nil
}
