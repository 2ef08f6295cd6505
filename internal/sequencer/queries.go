package sequencer

import (
	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// applyQuery answers QUERY_ORDER/QUERY_BALANCE/QUERY_ACCOUNTS directly
// against current state, without consuming an event_id: queries bypass
// the log entirely and read a consistent snapshot taken between events.
func (s *Sequencer) applyQuery(cmd *domain.Command) (Outcome, error) {
	switch cmd.Cmd {
	case domain.CmdQueryOrder:
		id := cmd.Symbol()
		order, ok := s.orders[orderKey{Symbol: id, OrderID: cmd.OrderID}]
		if !ok {
			return Outcome{Status: Rejected, Reason: errs.OrderIDUnknown}, nil
		}
		return Outcome{Status: Accepted, Query: *order}, nil

	case domain.CmdQueryBalance:
		bal := s.ledger.Get(cmd.UserID, cmd.Currency)
		return Outcome{Status: Accepted, Query: bal}, nil

	case domain.CmdQueryAccount:
		entries := s.ledger.AccountsOf(cmd.UserID)
		return Outcome{Status: Accepted, Query: entries}, nil

	default:
		return Outcome{Status: Rejected, Reason: errs.BadRequest}, nil
	}
}

// QueryOrder, QueryBalance and QueryAccounts exist so callers outside this package can
// name the query result types without reaching into accounts/domain
// themselves for the common case of a direct (non-command) read, e.g.
// from an HTTP handler serving a GET rather than relaying a QUERY_* cmd.
func (s *Sequencer) QueryOrder(symbol domain.SymbolID, orderID uint64) (domain.Order, bool) {
	order, ok := s.orders[orderKey{Symbol: symbol, OrderID: orderID}]
	if !ok {
		return domain.Order{}, false
	}
	return *order, true
}

func (s *Sequencer) QueryBalance(user domain.UserID, currency domain.CurrencyID) accounts.Balance {
	return s.ledger.Get(user, currency)
}

func (s *Sequencer) QueryAccounts(user domain.UserID) []accounts.Entry {
	return s.ledger.AccountsOf(user)
}
