// Package domain holds the data model shared by the order book, matcher,
// clearer, and sequencer: symbols, orders, sides, and the command
// envelope. It carries no behavior beyond small invariant helpers; the
// logic that operates on this data lives in the packages that use it.
package domain

import "github.com/galois-labs/galois/internal/decimal"

// CurrencyID is a 32-bit currency identifier; base and quote are each one.
type CurrencyID uint32

// SymbolState is the lifecycle state of a trading pair.
type SymbolState int

const (
	SymbolOpen SymbolState = iota
	SymbolClosed
)

func (s SymbolState) String() string {
	if s == SymbolOpen {
		return "Open"
	}
	return "Closed"
}

// SymbolID names a symbol by its currency pair.
type SymbolID struct {
	Base  CurrencyID
	Quote CurrencyID
}

// Symbol is the full set of declared parameters for one trading pair.
// Amounts and prices submitted against this symbol are rounded to
// BaseScale/QuoteScale on input.
type Symbol struct {
	ID                SymbolID
	BaseScale         int32 // digits after the point for base-denominated amounts, ≤18
	QuoteScale        int32 // digits after the point for quote-denominated amounts/prices, ≤18
	TakerFee          decimal.Decimal
	MakerFee          decimal.Decimal
	MinAmount         decimal.Decimal // floor on a taker's original base amount
	MinVol            decimal.Decimal // floor on a taker's original quote volume
	EnableMarketOrder bool
	State             SymbolState
}

// IsOpen reports whether new orders may be accepted against this symbol.
func (s *Symbol) IsOpen() bool { return s.State == SymbolOpen }
