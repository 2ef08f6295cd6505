package sequencer

import (
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/orderbook"
)

func (s *Sequencer) applyToggle(cmd *domain.Command, want domain.SymbolState) (*errs.ValidationError, error) {
	id := cmd.Symbol()
	sym, ok := s.symbols[id]
	if !ok {
		return errs.NewValidation(errs.UnknownSymbol, "%d/%d", id.Base, id.Quote), nil
	}
	sym.State = want
	return nil, nil
}

func (s *Sequencer) applyTransferIn(cmd *domain.Command) (*errs.ValidationError, error) {
	if !cmd.Amount.IsPos() {
		return errs.NewValidation(errs.BadRequest, "amount must be positive"), nil
	}
	if err := s.ledger.Credit(cmd.UserID, cmd.Currency, cmd.Amount); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Sequencer) applyTransferOut(cmd *domain.Command) (*errs.ValidationError, error) {
	if !cmd.Amount.IsPos() {
		return errs.NewValidation(errs.BadRequest, "amount must be positive"), nil
	}
	if err := s.ledger.Debit(cmd.UserID, cmd.Currency, cmd.Amount); err != nil {
		if ve, ok := err.(*errs.ValidationError); ok {
			return ve, nil
		}
		return nil, err
	}
	return nil, nil
}

func (s *Sequencer) applyNewSymbol(cmd *domain.Command) (*errs.ValidationError, error) {
	id := cmd.Symbol()
	if id.Base == id.Quote {
		return errs.NewValidation(errs.DuplicateCurrency, "base and quote must differ"), nil
	}
	if _, exists := s.symbols[id]; exists {
		return errs.NewValidation(errs.BadRequest, "symbol %d/%d already exists", id.Base, id.Quote), nil
	}
	baseScale, quoteScale := int32(0), int32(0)
	if cmd.BaseScale != nil {
		baseScale = *cmd.BaseScale
	}
	if cmd.QuoteScale != nil {
		quoteScale = *cmd.QuoteScale
	}
	if !validScale(baseScale) || !validScale(quoteScale) {
		return errs.NewValidation(errs.BadScale, "base_scale=%d quote_scale=%d", baseScale, quoteScale), nil
	}

	sym := &domain.Symbol{
		ID:         id,
		BaseScale:  baseScale,
		QuoteScale: quoteScale,
		State:      domain.SymbolClosed,
	}
	if cmd.TakerFee != nil {
		sym.TakerFee = *cmd.TakerFee
	}
	if cmd.MakerFee != nil {
		sym.MakerFee = *cmd.MakerFee
	}
	if cmd.MinAmount != nil {
		sym.MinAmount = *cmd.MinAmount
	}
	if cmd.MinVol != nil {
		sym.MinVol = *cmd.MinVol
	}
	if cmd.EnableMarketOrder != nil {
		sym.EnableMarketOrder = *cmd.EnableMarketOrder
	}

	s.symbols[id] = sym
	return nil, nil
}

// applyUpdateSymbol rejects UPDATE_SYMBOL outright whenever the symbol's
// book is non-empty and the update touches a new-invalidating field
// (base_scale, quote_scale, min_amount, min_vol). Fee and
// enable_market_order changes never invalidate resting orders and are
// always allowed.
func (s *Sequencer) applyUpdateSymbol(cmd *domain.Command) (*errs.ValidationError, error) {
	id := cmd.Symbol()
	sym, ok := s.symbols[id]
	if !ok {
		return errs.NewValidation(errs.UnknownSymbol, "%d/%d", id.Base, id.Quote), nil
	}

	touchesInvalidating := cmd.BaseScale != nil || cmd.QuoteScale != nil || cmd.MinAmount != nil || cmd.MinVol != nil
	if touchesInvalidating && !bookEmpty(s.books[id]) {
		return errs.NewValidation(errs.BadRequest, "cannot change base_scale/quote_scale/min_amount/min_vol while orders are open"), nil
	}

	if cmd.BaseScale != nil {
		if !validScale(*cmd.BaseScale) {
			return errs.NewValidation(errs.BadScale, "base_scale=%d", *cmd.BaseScale), nil
		}
		sym.BaseScale = *cmd.BaseScale
	}
	if cmd.QuoteScale != nil {
		if !validScale(*cmd.QuoteScale) {
			return errs.NewValidation(errs.BadScale, "quote_scale=%d", *cmd.QuoteScale), nil
		}
		sym.QuoteScale = *cmd.QuoteScale
	}
	if cmd.TakerFee != nil {
		sym.TakerFee = *cmd.TakerFee
	}
	if cmd.MakerFee != nil {
		sym.MakerFee = *cmd.MakerFee
	}
	if cmd.MinAmount != nil {
		sym.MinAmount = *cmd.MinAmount
	}
	if cmd.MinVol != nil {
		sym.MinVol = *cmd.MinVol
	}
	if cmd.EnableMarketOrder != nil {
		sym.EnableMarketOrder = *cmd.EnableMarketOrder
	}
	return nil, nil
}

func validScale(scale int32) bool {
	return scale >= 0 && scale <= 18
}

func bookEmpty(book *orderbook.Book) bool {
	return book == nil || book.IsEmpty()
}
