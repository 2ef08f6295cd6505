package domain

import "github.com/galois-labs/galois/internal/decimal"

// Side is which side of the book an order rests on.
type Side int

const (
	Ask Side = iota
	Bid
)

func (s Side) String() string {
	if s == Ask {
		return "Ask"
	}
	return "Bid"
}

// Opposite returns the side an order on s matches against.
func (s Side) Opposite() Side {
	if s == Ask {
		return Bid
	}
	return Ask
}

// Kind distinguishes a priced resting order from one that sweeps the book
// until exhausted; Market requires the symbol's EnableMarketOrder.
type Kind int

const (
	Limit Kind = iota
	Market
)

// Status is the lifecycle status recorded on a clearing row.
type Status int

const (
	Placed Status = iota
	PartiallyFilled
	Filled
	Canceled
)

func (s Status) String() string {
	switch s {
	case Placed:
		return "Placed"
	case PartiallyFilled:
		return "PartiallyFilled"
	case Filled:
		return "Filled"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// UserID is the 32-byte account identifier.
type UserID [32]byte

// Order is a single resting or in-flight order.
//
// AmountRemaining tracks the remaining base amount for every order kind
// except a BID_MARKET, whose budget is expressed in quote currency and
// tracked by VolRemaining instead: a market bid crosses until the book is
// empty or its quote budget is exhausted, so there is no fixed base
// amount to track down to zero.
type Order struct {
	OrderID  uint64
	UserID   UserID
	Symbol   SymbolID
	Side     Side
	Kind     Kind
	Price    decimal.Decimal // scale = quote_scale; meaningless for Market

	OriginalAmount decimal.Decimal // base units requested, for min-amount floor checks
	AmountRemaining decimal.Decimal // scale = base_scale; unused for BID_MARKET

	OriginalVol decimal.Decimal // quote budget requested, for BID_MARKET only
	VolRemaining decimal.Decimal // scale = quote_scale; unused except for BID_MARKET

	Frozen decimal.Decimal // currency-side amount locked against this order

	// QuoteReleased is the cumulative quote already released from Frozen
	// for a resting Bid maker, across every partial fill so far. Each fill
	// releases ceil(price*cumulative_filled, quote_scale) - QuoteReleased
	// rather than ceil(price*fill_amount, quote_scale): ceiling is
	// subadditive, so summing a fresh per-fill ceiling on every fill would
	// release more quote than FreezeResting ever reserved. FreezeResting
	// seeds it with ceil(price*amount_filled_before_resting, quote_scale),
	// since those taker fills were paid from available. Unused for Ask.
	QuoteReleased decimal.Decimal

	CreatedAt uint64 // event_id this order was accepted at

	// ListElement is set by the order book to an opaque handle (a
	// *list.Element in the price-level queue) enabling O(1) removal from
	// that queue by Book.Remove.
	ListElement interface{}
}

// IsBidMarket reports whether this order is a BID_MARKET, the one order
// shape whose remaining quantity is budget- rather than amount-tracked.
func (o *Order) IsBidMarket() bool {
	return o.Kind == Market && o.Side == Bid
}

// Active reports whether the order still has quantity left to match.
func (o *Order) Active() bool {
	if o.IsBidMarket() {
		return o.VolRemaining.IsPos()
	}
	return o.AmountRemaining.IsPos()
}

// RestingFrozenCurrency returns the currency this order's Frozen amount is
// denominated in: base for an Ask, quote for a Bid.
func (o *Order) RestingFrozenCurrency(sym *Symbol) CurrencyID {
	if o.Side == Ask {
		return sym.ID.Base
	}
	return sym.ID.Quote
}
