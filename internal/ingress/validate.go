package ingress

import (
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// Validate checks e against the per-command required-field table. It only
// checks presence and sign/positivity of the fields that command kind
// requires; business-rule validation (unknown symbol, insufficient
// balance, and so on) happens inside the sequencer, which is the only
// thing that can see current state.
func Validate(e *Envelope) *errs.ValidationError {
	cmd := domain.CmdKind(e.Cmd)

	need := func(cond bool, field string) *errs.ValidationError {
		if !cond {
			return errs.NewValidation(errs.BadRequest, "missing or invalid field: %s", field)
		}
		return nil
	}

	switch cmd {
	case domain.CmdAskLimit, domain.CmdBidLimit:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.OrderID != nil, "order_id"); v != nil {
			return v
		}
		if v := need(e.Price != nil && e.Price.IsPos(), "price>0"); v != nil {
			return v
		}
		if v := need(e.Amount != nil && e.Amount.IsPos(), "amount>0"); v != nil {
			return v
		}

	case domain.CmdAskMarket:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.OrderID != nil, "order_id"); v != nil {
			return v
		}
		if v := need(e.Amount != nil && e.Amount.IsPos(), "amount>0"); v != nil {
			return v
		}

	case domain.CmdBidMarket:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.OrderID != nil, "order_id"); v != nil {
			return v
		}
		if v := need(e.Vol != nil && e.Vol.IsPos(), "vol>0"); v != nil {
			return v
		}

	case domain.CmdCancel:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.OrderID != nil, "order_id"); v != nil {
			return v
		}

	case domain.CmdOpen, domain.CmdClose:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}

	case domain.CmdTransferOut, domain.CmdTransferIn:
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.Currency != nil, "currency"); v != nil {
			return v
		}
		if v := need(e.Amount != nil && e.Amount.IsPos(), "amount>0"); v != nil {
			return v
		}

	case domain.CmdNewSymbol:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.BaseScale != nil, "base_scale"); v != nil {
			return v
		}
		if v := need(e.QuoteScale != nil, "quote_scale"); v != nil {
			return v
		}
		if v := need(e.TakerFee != nil, "taker_fee"); v != nil {
			return v
		}
		if v := need(e.MakerFee != nil, "maker_fee"); v != nil {
			return v
		}
		if v := need(e.MinAmount != nil, "min_amount"); v != nil {
			return v
		}
		if v := need(e.MinVol != nil, "min_vol"); v != nil {
			return v
		}
		if v := need(e.EnableMarketOrder != nil, "enable_market_order"); v != nil {
			return v
		}

	case domain.CmdUpdateSymbol:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		// Every other field is a subset of NEW_SYMBOL's fields and is
		// optional here; applyUpdateSymbol treats a nil pointer as "leave
		// unchanged".

	case domain.CmdQueryOrder:
		if v := need(e.Base != nil, "base"); v != nil {
			return v
		}
		if v := need(e.Quote != nil, "quote"); v != nil {
			return v
		}
		if v := need(e.OrderID != nil, "order_id"); v != nil {
			return v
		}

	case domain.CmdQueryBalance:
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}
		if v := need(e.Currency != nil, "currency"); v != nil {
			return v
		}

	case domain.CmdQueryAccount:
		if v := need(e.UserID != nil, "user_id"); v != nil {
			return v
		}

	case domain.CmdDump:
		// no required fields

	default:
		return errs.NewValidation(errs.BadRequest, "unrecognized cmd %d", e.Cmd)
	}

	return nil
}
