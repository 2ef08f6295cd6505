// Package clearer turns a matcher.MatchReport into balance mutations and
// audit rows. It is the one place fees are computed and the one place a
// resting order's frozen reservation is ever released.
//
// A match is settled in one step, pairing a buy and a sell order and
// mutating both together, but "apply the balance side effects of a fill"
// is split into its own function per participant, since each side carries
// an independent fee schedule (maker/taker) and an independent settlement
// currency (base/quote).
package clearer

import (
	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

// Role is which side of a Match a clearing row describes.
type Role int

const (
	RoleMaker Role = iota
	RoleTaker
)

func (r Role) String() string {
	if r == RoleMaker {
		return "Maker"
	}
	return "Taker"
}

// Row is one participant's audit record for a single match.
// AvailableAfter/FrozenAfter report the post-balance of the currency the
// participant received and was charged its fee in (quote for an Ask, base
// for a Bid); the other leg's delta is still populated but its
// post-balance isn't, since a Row describes one settlement step, not a
// full account snapshot.
type Row struct {
	OrderID   uint64
	UserID    domain.UserID
	Role      Role
	Side      domain.Side
	Price     decimal.Decimal
	BaseDelta decimal.Decimal // +received / -given, base units
	QuoteDelta decimal.Decimal // +received / -given, quote units

	BaseCharge  decimal.Decimal // fee charged in base, if any
	QuoteCharge decimal.Decimal // fee charged in quote, if any

	AvailableAfter decimal.Decimal
	FrozenAfter    decimal.Decimal

	Status domain.Status
}

// Clear applies every match in report to ledger and returns one Row per
// participant per match, in match order. event_id is not stamped here:
// the sequencer owns event_id assignment and attaches it to each Row
// before persisting.
func Clear(report domain.MatchReport, sym *domain.Symbol, ledger *accounts.Ledger) ([]Row, error) {
	rows := make([]Row, 0, 2*len(report.Matches))

	for _, m := range report.Matches {
		if m.MakerSelfTrade {
			// Refund already happened in the matcher (it needed ledger
			// access to cancel the maker before matching could continue);
			// here we only record the disposition.
			rows = append(rows, Row{
				OrderID: m.Maker.OrderID,
				UserID:  m.Maker.UserID,
				Role:    RoleMaker,
				Side:    m.Maker.Side,
				Status:  domain.Canceled,
			})
			continue
		}

		makerRow, err := settle(sym, ledger, m.Maker, RoleMaker, sym.MakerFee, m.Price, m.Amount, m.Vol, m.MakerFilled)
		if err != nil {
			return nil, err
		}
		takerRow, err := settle(sym, ledger, m.Taker, RoleTaker, sym.TakerFee, m.Price, m.Amount, m.Vol, !m.Taker.Active())
		if err != nil {
			return nil, err
		}
		rows = append(rows, makerRow, takerRow)
	}

	return rows, nil
}

// settle applies one fill's balance side effects to o and returns its
// clearing row. A Maker debits from frozen (it reserved funds when it
// started resting); a Taker debits straight from available, since taker
// funds are never pre-frozen until the remainder starts resting; taker
// funds come directly from available.
func settle(sym *domain.Symbol, ledger *accounts.Ledger, o *domain.Order, role Role, feeRate, price, amount, vol decimal.Decimal, filled bool) (Row, error) {
	row := Row{OrderID: o.OrderID, UserID: o.UserID, Role: role, Side: o.Side, Price: price}

	if o.Side == domain.Ask {
		if err := debitGivenBase(ledger, o, role, amount); err != nil {
			return Row{}, err
		}
		fee, err := feeOf(vol, feeRate, sym.QuoteScale)
		if err != nil {
			return Row{}, err
		}
		net, err := vol.Sub(fee)
		if err != nil {
			return Row{}, err
		}
		if err := ledger.Credit(o.UserID, sym.ID.Quote, net); err != nil {
			return Row{}, err
		}
		if err := ledger.Credit(accounts.FeeAccount, sym.ID.Quote, fee); err != nil {
			return Row{}, err
		}
		row.BaseDelta = amount.Neg()
		row.QuoteDelta = net
		row.QuoteCharge = fee
		bal := ledger.Get(o.UserID, sym.ID.Quote)
		row.AvailableAfter, row.FrozenAfter = bal.Available, bal.Frozen
	} else {
		var release decimal.Decimal
		if role == RoleMaker {
			// Release the incremental quote owed since the last fill, not
			// a fresh per-fill ceiling: ceil is subadditive, so summing
			// ceil(price*fill_amount, quote_scale) across several partial
			// fills can exceed the single ceil(price*resting_amount,
			// quote_scale) FreezeResting reserved, draining Frozen before
			// the maker is actually fully filled.
			filledSoFar, err := o.OriginalAmount.Sub(o.AmountRemaining)
			if err != nil {
				return Row{}, err
			}
			cumulative, err := o.Price.Mul(filledSoFar)
			if err != nil {
				return Row{}, err
			}
			cumulative, err = cumulative.Rescale(sym.QuoteScale, decimal.CeilAbs)
			if err != nil {
				return Row{}, err
			}
			release, err = cumulative.Sub(o.QuoteReleased)
			if err != nil {
				return Row{}, err
			}
			o.QuoteReleased = cumulative
		}
		if err := debitGivenQuote(ledger, o, role, release, vol); err != nil {
			return Row{}, err
		}
		fee, err := feeOf(amount, feeRate, sym.BaseScale)
		if err != nil {
			return Row{}, err
		}
		net, err := amount.Sub(fee)
		if err != nil {
			return Row{}, err
		}
		if err := ledger.Credit(o.UserID, sym.ID.Base, net); err != nil {
			return Row{}, err
		}
		if err := ledger.Credit(accounts.FeeAccount, sym.ID.Base, fee); err != nil {
			return Row{}, err
		}
		row.BaseDelta = net
		if role == RoleMaker {
			row.QuoteDelta = release.Neg()
		} else {
			row.QuoteDelta = vol.Neg()
		}
		row.BaseCharge = fee
		bal := ledger.Get(o.UserID, sym.ID.Base)
		row.AvailableAfter, row.FrozenAfter = bal.Available, bal.Frozen
	}

	if role == RoleMaker {
		remaining, err := o.Frozen.Sub(releaseAmountOf(row))
		if err != nil {
			return Row{}, err
		}
		o.Frozen = remaining
		if filled {
			if err := refundResidual(ledger, sym, o); err != nil {
				return Row{}, err
			}
		}
	}

	row.Status = domain.PartiallyFilled
	if filled {
		row.Status = domain.Filled
	}
	return row, nil
}

// releaseAmountOf recovers the currency amount just debited from the
// maker's frozen reservation for this fill, so settle's single call site
// can decrement o.Frozen without threading an extra return value through
// the Ask/Bid branches above.
func releaseAmountOf(row Row) decimal.Decimal {
	if row.Side == domain.Ask {
		return row.BaseDelta.Neg()
	}
	return row.QuoteDelta.Neg()
}

// refundResidual releases whatever remains in a fully-filled maker's
// frozen reservation back to available. settle's incremental release
// already drives a Bid's Frozen to exactly zero on the fill that
// completes it, so this is a safety net against any stray rounding
// residual rather than the normal path.
func refundResidual(ledger *accounts.Ledger, sym *domain.Symbol, maker *domain.Order) error {
	if maker.Frozen.IsZero() {
		return nil
	}
	currency := maker.RestingFrozenCurrency(sym)
	if err := ledger.Unfreeze(maker.UserID, currency, maker.Frozen); err != nil {
		return err
	}
	maker.Frozen = decimal.Zero
	return nil
}

func debitGivenBase(ledger *accounts.Ledger, o *domain.Order, role Role, amount decimal.Decimal) error {
	if role == RoleMaker {
		return ledger.DebitFrozen(o.UserID, o.Symbol.Base, amount)
	}
	return ledger.Debit(o.UserID, o.Symbol.Base, amount)
}

func debitGivenQuote(ledger *accounts.Ledger, o *domain.Order, role Role, release, vol decimal.Decimal) error {
	if role == RoleMaker {
		return ledger.DebitFrozen(o.UserID, o.Symbol.Quote, release)
	}
	return ledger.Debit(o.UserID, o.Symbol.Quote, vol)
}

func feeOf(base, rate decimal.Decimal, scale int32) (decimal.Decimal, error) {
	raw, err := base.Mul(rate)
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Rescale(scale, decimal.CeilAbs)
}

// FreezeResting reserves a Limit taker's remaining funds when it stops
// matching and starts resting: the remaining funds are frozen atomically
// as part of the same step that inserts the order into the book.
func FreezeResting(ledger *accounts.Ledger, sym *domain.Symbol, o *domain.Order) error {
	currency := o.RestingFrozenCurrency(sym)
	var amount decimal.Decimal
	released := decimal.Zero
	if o.Side == domain.Ask {
		amount = o.AmountRemaining
	} else {
		raw, err := o.Price.Mul(o.AmountRemaining)
		if err != nil {
			return err
		}
		amount, err = raw.Rescale(sym.QuoteScale, decimal.CeilAbs)
		if err != nil {
			return err
		}
		// Fills taken as a taker were paid from available, not from this
		// reservation: count them as already released so settle's
		// cumulative release covers only the fills made while resting.
		filled, err := o.OriginalAmount.Sub(o.AmountRemaining)
		if err != nil {
			return err
		}
		if released, err = o.Price.Mul(filled); err != nil {
			return err
		}
		if released, err = released.Rescale(sym.QuoteScale, decimal.CeilAbs); err != nil {
			return err
		}
	}
	if err := ledger.Freeze(o.UserID, currency, amount); err != nil {
		return err
	}
	o.Frozen = amount
	o.QuoteReleased = released
	return nil
}
