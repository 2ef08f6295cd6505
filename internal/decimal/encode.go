package decimal

import (
	"fmt"
	"math/big"

	shopspring "github.com/shopspring/decimal"
)

// EncodedLen is the fixed width of the Decimal wire encoding: a sign byte,
// a scale byte, and a 96-bit (12-byte) mantissa, all little-endian.
const EncodedLen = 1 + 1 + 12

// Encode writes the fixed-width representation: sign byte (0x00 for
// non-negative, 0x01 for negative), scale byte, then the 12-byte
// little-endian unsigned coefficient. This exact byte layout feeds SMT
// leaf hashing and must never change without changing the state root.
func (a Decimal) Encode() [EncodedLen]byte {
	var out [EncodedLen]byte
	if a.IsNeg() {
		out[0] = 1
	}
	out[1] = byte(a.Scale())

	abs := new(big.Int).Abs(a.d.Coefficient())
	be := abs.Bytes() // big-endian, no leading zero padding
	for i, b := range be {
		pos := len(be) - 1 - i // little-endian position within the 12-byte field
		if pos >= 12 {
			continue // already rejected by checkOverflow at construction time
		}
		out[2+pos] = b
	}
	return out
}

// DecodeLeaf parses the fixed-width representation produced by Encode.
func DecodeLeaf(b []byte) (Decimal, error) {
	if len(b) != EncodedLen {
		return Decimal{}, fmt.Errorf("decimal: leaf encoding must be %d bytes, got %d", EncodedLen, len(b))
	}
	neg := b[0] == 1
	scale := int32(b[1])

	be := make([]byte, 12)
	for i := 0; i < 12; i++ {
		be[11-i] = b[2+i]
	}
	coeff := new(big.Int).SetBytes(be)
	if neg {
		coeff.Neg(coeff)
	}

	out, err := fromShopspring(shopspring.NewFromBigInt(coeff, -scale))
	if err != nil {
		return Decimal{}, err
	}
	return out, nil
}
