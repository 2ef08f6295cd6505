package domain

import "github.com/galois-labs/galois/internal/decimal"

// Match is one maker/taker pairing produced by the matcher.
type Match struct {
	Maker  *Order
	Taker  *Order
	Price  decimal.Decimal // the maker's price
	Amount decimal.Decimal // base units traded
	Vol    decimal.Decimal // quote value traded, rescale(price*amount, quote_scale, Truncate)

	// MakerFilled/MakerSelfTrade record the maker's disposition for this
	// single match so the clearer doesn't need to re-inspect the book.
	MakerFilled    bool
	MakerSelfTrade bool // maker was canceled outright under self-trade prevention; Amount/Vol/Price are zero
}

// TakerDisposition is the final outcome of the taker side of a MatchReport.
type TakerDisposition int

const (
	TakerFilled TakerDisposition = iota
	TakerPartiallyFilledResting
	TakerCanceledRemainder
)

// MatchReport is the matcher's output for one taker order.
type MatchReport struct {
	Matches     []Match
	Disposition TakerDisposition
}
