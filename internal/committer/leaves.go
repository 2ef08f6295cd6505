package committer

import (
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

// Leaf key tags distinguish the two leaf kinds so their key spaces never
// collide.
const (
	tagAccount byte = 0x01
	tagBook    byte = 0x02
)

// AcctLeafKey returns the canonical key for L_acct(user, currency).
func AcctLeafKey(user domain.UserID, currency domain.CurrencyID) []byte {
	key := make([]byte, 1+32+4)
	key[0] = tagAccount
	copy(key[1:33], user[:])
	putUint32(key[33:37], uint32(currency))
	return key
}

// AcctLeafValue serializes L_acct(user, currency) = (available, frozen)
// as two fixed-width encoded decimals, back to back.
func AcctLeafValue(available, frozen decimal.Decimal) []byte {
	a := available.Encode()
	f := frozen.Encode()
	out := make([]byte, 0, len(a)+len(f))
	out = append(out, a[:]...)
	out = append(out, f[:]...)
	return out
}

// BookLeafKey returns the canonical key for L_book(symbol).
func BookLeafKey(symbol domain.SymbolID) []byte {
	key := make([]byte, 1+4+4)
	key[0] = tagBook
	putUint32(key[1:5], uint32(symbol.Base))
	putUint32(key[5:9], uint32(symbol.Quote))
	return key
}

// BookLeafValue serializes L_book(symbol) = (best_bid_price, best_bid_size,
// best_ask_price, best_ask_size, maker_fee, taker_fee).
func BookLeafValue(bidPrice, bidSize, askPrice, askSize, makerFee, takerFee decimal.Decimal) []byte {
	fields := [6]decimal.Decimal{bidPrice, bidSize, askPrice, askSize, makerFee, takerFee}
	out := make([]byte, 0, len(fields)*decimal.EncodedLen)
	for _, f := range fields {
		enc := f.Encode()
		out = append(out, enc[:]...)
	}
	return out
}
