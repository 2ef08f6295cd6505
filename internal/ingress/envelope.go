package ingress

import (
	"encoding/hex"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

// Envelope is the wire shape of one command, plus an optional signature
// over the canonical body. Every field is a pointer or omittable so a
// given cmd only needs to populate what it actually requires; Validate
// checks the rest.
type Envelope struct {
	Cmd uint8 `json:"cmd"`

	Base  *uint32 `json:"base,omitempty"`
	Quote *uint32 `json:"quote,omitempty"`

	UserID  *string `json:"user_id,omitempty"` // hex, 32 bytes
	OrderID *uint64 `json:"order_id,omitempty"`

	Price  *decimal.Decimal `json:"price,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Vol    *decimal.Decimal `json:"vol,omitempty"`

	Currency *uint32 `json:"currency,omitempty"`

	BaseScale         *int32           `json:"base_scale,omitempty"`
	QuoteScale        *int32           `json:"quote_scale,omitempty"`
	TakerFee          *decimal.Decimal `json:"taker_fee,omitempty"`
	MakerFee          *decimal.Decimal `json:"maker_fee,omitempty"`
	MinAmount         *decimal.Decimal `json:"min_amount,omitempty"`
	MinVol            *decimal.Decimal `json:"min_vol,omitempty"`
	EnableMarketOrder *bool            `json:"enable_market_order,omitempty"`

	// Signature is a hex-encoded 65-byte ECDSA signature (r||s||v) over
	// the canonical body (every field above except Signature itself,
	// re-marshaled with it omitted). Unsigned ingress (e.g. an operator
	// CLI talking to a trusted local engine) may leave it empty.
	Signature string `json:"signature,omitempty"`
}

func decodeUserID(hexStr string) (domain.UserID, error) {
	var id domain.UserID
	b, err := hex.DecodeString(trimHexPrefix(hexStr))
	if err != nil {
		return id, err
	}
	copy(id[32-len(b):], b)
	return id, nil
}

func encodeUserID(id domain.UserID) string {
	return "0x" + hex.EncodeToString(id[:])
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
