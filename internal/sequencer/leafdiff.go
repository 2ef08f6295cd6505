package sequencer

import (
	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/committer"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/orderbook"
)

// diffLedger compares two full-ledger snapshots and returns one
// committer.LeafUpdate per (user, currency) row whose balance actually
// changed. Diffing the whole ledger rather than tracking touched keys
// through the matcher/clearer keeps leaf-change detection in one place
// and correct for every command kind (trades, transfers, fee accrual)
// without the matcher or clearer needing to know anything about the SMT.
func diffLedger(before, after map[accounts.Key]accounts.Balance) []committer.LeafUpdate {
	seen := make(map[accounts.Key]struct{}, len(before)+len(after))
	for k := range before {
		seen[k] = struct{}{}
	}
	for k := range after {
		seen[k] = struct{}{}
	}

	var updates []committer.LeafUpdate
	for k := range seen {
		b := getOrZero(before, k)
		a := getOrZero(after, k)
		if b.Available.Equal(a.Available) && b.Frozen.Equal(a.Frozen) {
			continue
		}
		key := committer.AcctLeafKey(k.User, k.Currency)
		updates = append(updates, committer.LeafUpdate{
			Key:      key,
			OldValue: committer.AcctLeafValue(b.Available, b.Frozen),
			NewValue: committer.AcctLeafValue(a.Available, a.Frozen),
		})
	}
	return updates
}

func getOrZero(m map[accounts.Key]accounts.Balance, k accounts.Key) accounts.Balance {
	if b, ok := m[k]; ok {
		return b
	}
	return accounts.Balance{Available: decimal.Zero, Frozen: decimal.Zero}
}

// bookLeafUpdate returns the L_book leaf update for symbol if its best
// bid/ask summary changed this event, or nil if it didn't (a cancel below
// the top of either ladder changes accounts but leaves L_book untouched).
func (s *Sequencer) bookLeafUpdate(id domain.SymbolID, book *orderbook.Book) []committer.LeafUpdate {
	sym := s.symbols[id]
	if sym == nil {
		return nil
	}
	bidPrice, bidSize, askPrice, askSize := book.BestSummary()
	newVal := committer.BookLeafValue(bidPrice, bidSize, askPrice, askSize, sym.MakerFee, sym.TakerFee)
	key := committer.BookLeafKey(id)

	old, had := s.lastBookLeaf[id]
	if had && string(old) == string(newVal) {
		return nil
	}
	if s.lastBookLeaf == nil {
		s.lastBookLeaf = make(map[domain.SymbolID][]byte)
	}
	s.lastBookLeaf[id] = newVal
	return []committer.LeafUpdate{{Key: key, OldValue: old, NewValue: newVal}}
}
