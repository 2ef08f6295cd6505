// Package matcher implements the price-time-priority matching algorithm:
// one side-generic loop over Decimal prices (rather than a hardcoded
// buy/sell pair of loops over integer prices), extended with self-trade
// prevention and Market-order budget semantics.
package matcher

import (
	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/orderbook"
)

// Match runs taker against book until it stops crossing, is exhausted, or
// (for a Limit order) would start resting. It mutates taker, every maker
// it touches, and book in place, and unfreezes any maker canceled under
// self-trade prevention directly on ledger. It never inserts the taker
// into the book itself: that, and freezing the taker's own remaining
// funds if it rests, is the caller's job, since it requires charging the
// taker's account, which is the clearer's concern, not the matcher's.
func Match(book *orderbook.Book, sym *domain.Symbol, taker *domain.Order, ledger *accounts.Ledger) (domain.MatchReport, error) {
	var report domain.MatchReport
	oppSide := taker.Side.Opposite()

	for taker.Active() {
		maker, ok := book.PeekBest(oppSide)
		if !ok {
			break
		}
		if !crosses(taker, maker) {
			break
		}

		if maker.UserID == taker.UserID {
			book.Remove(maker)
			refundCurrency := maker.RestingFrozenCurrency(sym)
			if err := ledger.Unfreeze(maker.UserID, refundCurrency, maker.Frozen); err != nil {
				return report, err
			}
			report.Matches = append(report.Matches, domain.Match{Maker: maker, Taker: taker, MakerSelfTrade: true})
			continue
		}

		amount, vol, err := computeTrade(sym, taker, maker)
		if err != nil {
			return report, err
		}
		if amount.IsZero() {
			// A BID_MARKET's remaining budget can't afford even the
			// smallest base-scale unit of the best maker. No partial
			// trade is possible; stop as if the book were exhausted.
			break
		}

		if err := applyTrade(taker, maker, amount, vol); err != nil {
			return report, err
		}

		makerFilled := maker.AmountRemaining.IsZero()
		report.Matches = append(report.Matches, domain.Match{
			Maker:       maker,
			Taker:       taker,
			Price:       maker.Price,
			Amount:      amount,
			Vol:         vol,
			MakerFilled: makerFilled,
		})

		if makerFilled {
			book.Remove(maker)
		}
	}

	report.Disposition = disposition(taker)
	return report, nil
}

func disposition(taker *domain.Order) domain.TakerDisposition {
	if !taker.Active() {
		return domain.TakerFilled
	}
	if taker.Kind == domain.Limit {
		return domain.TakerPartiallyFilledResting
	}
	return domain.TakerCanceledRemainder
}

// crosses reports whether taker's price (or unconditional Market sweep)
// crosses maker's resting price.
func crosses(taker, maker *domain.Order) bool {
	if taker.Kind == domain.Market {
		return true
	}
	if taker.Side == domain.Bid {
		return taker.Price.Cmp(maker.Price) >= 0
	}
	return taker.Price.Cmp(maker.Price) <= 0
}

// computeTrade returns the base amount and quote volume of the next trade
// step between taker and maker. For every order shape except BID_MARKET
// this is simply min(taker.AmountRemaining, maker.AmountRemaining); a
// BID_MARKET instead spends down a quote budget, so the amount it can
// afford from this maker may be less than the maker's full size (spec
// §4.3: "for Market: always crosses until book empty or quote budget
// exhausted").
func computeTrade(sym *domain.Symbol, taker, maker *domain.Order) (amount, vol decimal.Decimal, err error) {
	if !taker.IsBidMarket() {
		amount = minDecimal(taker.AmountRemaining, maker.AmountRemaining)
		vol, err = tradeVol(sym, maker.Price, amount)
		return amount, vol, err
	}

	fullVolRaw, err := maker.Price.Mul(maker.AmountRemaining)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	fullVol, err := fullVolRaw.Rescale(sym.QuoteScale, decimal.Truncate)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if fullVol.Cmp(taker.VolRemaining) <= 0 {
		return maker.AmountRemaining, fullVol, nil
	}

	amount, err = taker.VolRemaining.DivTrunc(maker.Price, sym.BaseScale)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if amount.IsZero() {
		return decimal.Zero, decimal.Zero, nil
	}
	vol, err = tradeVol(sym, maker.Price, amount)
	return amount, vol, err
}

func tradeVol(sym *domain.Symbol, price, amount decimal.Decimal) (decimal.Decimal, error) {
	raw, err := price.Mul(amount)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Rescale(sym.QuoteScale, decimal.Truncate)
}

func applyTrade(taker, maker *domain.Order, amount, vol decimal.Decimal) error {
	if taker.IsBidMarket() {
		rem, err := taker.VolRemaining.Sub(vol)
		if err != nil {
			return err
		}
		taker.VolRemaining = rem
	} else {
		rem, err := taker.AmountRemaining.Sub(amount)
		if err != nil {
			return err
		}
		taker.AmountRemaining = rem
	}

	makerRem, err := maker.AmountRemaining.Sub(amount)
	if err != nil {
		return err
	}
	if makerRem.IsNeg() {
		return errs.NewInvariantViolation("matcher.applyTrade", errOverfill)
	}
	maker.AmountRemaining = makerRem
	return nil
}

var errOverfill = errOverfillType{}

type errOverfillType struct{}

func (errOverfillType) Error() string { return "trade amount exceeds maker's remaining size" }

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
