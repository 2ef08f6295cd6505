package sequencer

import (
	"github.com/galois-labs/galois/internal/clearer"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/matcher"
	"github.com/galois-labs/galois/internal/orderbook"
)

// applyTrade validates and executes one of the four order-entry commands.
// The required up-front balance check below is what lets the matcher and
// clearer assume every input they see has already been validated.
func (s *Sequencer) applyTrade(cmd *domain.Command) ([]clearer.Row, *errs.ValidationError, error) {
	id := cmd.Symbol()
	sym, ok := s.symbols[id]
	if !ok {
		return nil, errs.NewValidation(errs.UnknownSymbol, "%d/%d", id.Base, id.Quote), nil
	}
	if !sym.IsOpen() {
		return nil, errs.NewValidation(errs.SymbolClosed, "%d/%d", id.Base, id.Quote), nil
	}

	kind := domain.Limit
	side := domain.Ask
	switch cmd.Cmd {
	case domain.CmdAskLimit:
		side, kind = domain.Ask, domain.Limit
	case domain.CmdBidLimit:
		side, kind = domain.Bid, domain.Limit
	case domain.CmdAskMarket:
		side, kind = domain.Ask, domain.Market
	case domain.CmdBidMarket:
		side, kind = domain.Bid, domain.Market
	}
	if kind == domain.Market && !sym.EnableMarketOrder {
		return nil, errs.NewValidation(errs.MarketOrdersDisabled, "%d/%d", id.Base, id.Quote), nil
	}

	key := orderKey{Symbol: id, OrderID: cmd.OrderID}
	if _, exists := s.orders[key]; exists {
		return nil, errs.NewValidation(errs.OrderIDExists, "order %d", cmd.OrderID), nil
	}

	order := &domain.Order{
		OrderID: cmd.OrderID,
		UserID:  cmd.UserID,
		Symbol:  id,
		Side:    side,
		Kind:    kind,
	}

	if kind == domain.Limit {
		price, err := cmd.Price.Rescale(sym.QuoteScale, decimal.Truncate)
		if err != nil {
			return nil, nil, err
		}
		amount, err := cmd.Amount.Rescale(sym.BaseScale, decimal.Truncate)
		if err != nil {
			return nil, nil, err
		}
		if !price.IsPos() || !amount.IsPos() {
			return nil, errs.NewValidation(errs.BadRequest, "price and amount must be positive"), nil
		}
		if amount.Cmp(sym.MinAmount) < 0 {
			return nil, errs.NewValidation(errs.BelowMinimum, "amount %s below min_amount %s", amount, sym.MinAmount), nil
		}
		order.Price = price
		order.OriginalAmount, order.AmountRemaining = amount, amount

		required, currency, err := requiredFunds(sym, side, price, amount)
		if err != nil {
			return nil, nil, err
		}
		if ve := checkAvailable(s, cmd.UserID, currency, required); ve != nil {
			return nil, ve, nil
		}
	} else if side == domain.Ask {
		amount, err := cmd.Amount.Rescale(sym.BaseScale, decimal.Truncate)
		if err != nil {
			return nil, nil, err
		}
		if !amount.IsPos() {
			return nil, errs.NewValidation(errs.BadRequest, "amount must be positive"), nil
		}
		if amount.Cmp(sym.MinAmount) < 0 {
			return nil, errs.NewValidation(errs.BelowMinimum, "amount %s below min_amount %s", amount, sym.MinAmount), nil
		}
		order.OriginalAmount, order.AmountRemaining = amount, amount
		if ve := checkAvailable(s, cmd.UserID, sym.ID.Base, amount); ve != nil {
			return nil, ve, nil
		}
	} else { // BID_MARKET
		vol, err := cmd.Vol.Rescale(sym.QuoteScale, decimal.Truncate)
		if err != nil {
			return nil, nil, err
		}
		if !vol.IsPos() {
			return nil, errs.NewValidation(errs.BadRequest, "vol must be positive"), nil
		}
		if vol.Cmp(sym.MinVol) < 0 {
			return nil, errs.NewValidation(errs.BelowMinimum, "vol %s below min_vol %s", vol, sym.MinVol), nil
		}
		order.OriginalVol, order.VolRemaining = vol, vol
		if ve := checkAvailable(s, cmd.UserID, sym.ID.Quote, vol); ve != nil {
			return nil, ve, nil
		}
	}

	book := s.bookFor(id)
	report, err := matcher.Match(book, sym, order, s.ledger)
	if err != nil {
		return nil, nil, err
	}
	rows, err := clearer.Clear(report, sym, s.ledger)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range report.Matches {
		if m.MakerFilled || m.MakerSelfTrade {
			delete(s.orders, orderKey{Symbol: id, OrderID: m.Maker.OrderID})
		}
	}

	switch report.Disposition {
	case domain.TakerPartiallyFilledResting:
		if err := clearer.FreezeResting(s.ledger, sym, order); err != nil {
			return nil, nil, err
		}
		if err := book.InsertResting(order); err != nil {
			return nil, nil, errs.NewInvariantViolation("sequencer.applyTrade", err)
		}
		s.orders[key] = order
	case domain.TakerCanceledRemainder:
		// Market orders never rest; any unfilled remainder is simply
		// dropped (there is no frozen reservation to refund, since
		// market-order funds were never frozen to begin with).
	}

	return rows, nil, nil
}

func requiredFunds(sym *domain.Symbol, side domain.Side, price, amount decimal.Decimal) (decimal.Decimal, domain.CurrencyID, error) {
	if side == domain.Ask {
		return amount, sym.ID.Base, nil
	}
	quote, err := price.Mul(amount)
	if err != nil {
		return decimal.Zero, 0, err
	}
	quote, err = quote.Rescale(sym.QuoteScale, decimal.CeilAbs)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return quote, sym.ID.Quote, nil
}

func checkAvailable(s *Sequencer, user domain.UserID, currency domain.CurrencyID, required decimal.Decimal) *errs.ValidationError {
	bal := s.ledger.Get(user, currency)
	if bal.Available.Cmp(required) < 0 {
		return errs.NewValidation(errs.InsufficientBalance, "user has %s available, needs %s", bal.Available, required)
	}
	return nil
}

func (s *Sequencer) bookFor(id domain.SymbolID) *orderbook.Book {
	book, ok := s.books[id]
	if !ok {
		book = orderbook.New(id)
		s.books[id] = book
	}
	return book
}

// applyCancel removes a resting order and refunds its frozen reservation.
func (s *Sequencer) applyCancel(cmd *domain.Command) (*errs.ValidationError, error) {
	id := cmd.Symbol()
	sym, ok := s.symbols[id]
	if !ok {
		return errs.NewValidation(errs.UnknownSymbol, "%d/%d", id.Base, id.Quote), nil
	}
	key := orderKey{Symbol: id, OrderID: cmd.OrderID}
	order, exists := s.orders[key]
	if !exists {
		return errs.NewValidation(errs.OrderIDUnknown, "order %d", cmd.OrderID), nil
	}
	if order.UserID != cmd.UserID {
		return errs.NewValidation(errs.NotOwner, "order %d", cmd.OrderID), nil
	}

	book := s.bookFor(id)
	if _, ok := book.Cancel(cmd.OrderID); !ok {
		return nil, errs.NewInvariantViolation("sequencer.applyCancel", errOrderIndexMismatch(cmd.OrderID))
	}
	currency := order.RestingFrozenCurrency(sym)
	if err := s.ledger.Unfreeze(order.UserID, currency, order.Frozen); err != nil {
		return nil, err
	}
	delete(s.orders, key)
	return nil, nil
}

type orderIndexMismatchError struct{ orderID uint64 }

func (e orderIndexMismatchError) Error() string {
	return "order tracked in sequencer index but missing from its book"
}

func errOrderIndexMismatch(orderID uint64) error {
	return orderIndexMismatchError{orderID: orderID}
}
