package sequencer

import (
	"fmt"

	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/committer"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/orderbook"
)

// RestoreState rebuilds the sequencer's ledger, symbols, books, and SMT
// from a previously captured full-state dump. The SMT is not itself part
// of the dump: it is re-derived from the ledger and book state, because a
// sparse Merkle tree is content-addressed: replaying the same leaves
// from scratch always yields the same root regardless of how many times
// a leaf was overwritten historically. RestoreState returns the
// recomputed root so the caller can assert it against the root persisted
// alongside the dump; a mismatch between the two is fatal.
func (s *Sequencer) RestoreState(highWater uint64, ledgerRows map[accounts.Key]accounts.Balance, symbols map[domain.SymbolID]*domain.Symbol, restingOrders map[domain.SymbolID][]*domain.Order) ([32]byte, error) {
	s.ledger = accounts.NewLedger()
	s.ledger.Restore(ledgerRows)

	s.symbols = make(map[domain.SymbolID]*domain.Symbol, len(symbols))
	for id, sym := range symbols {
		cp := *sym
		s.symbols[id] = &cp
	}

	s.books = make(map[domain.SymbolID]*orderbook.Book, len(restingOrders))
	for id, orders := range restingOrders {
		book := orderbook.New(id)
		for _, o := range orders {
			fresh := *o
			fresh.ListElement = nil
			if err := book.InsertResting(&fresh); err != nil {
				return [32]byte{}, fmt.Errorf("restore book %v order %d: %w", id, o.OrderID, err)
			}
		}
		s.books[id] = book
	}

	s.tree = committer.NewTree()
	s.lastBookLeaf = make(map[domain.SymbolID][]byte)

	for k, b := range ledgerRows {
		key := committer.AcctLeafKey(k.User, k.Currency)
		val := committer.AcctLeafValue(b.Available, b.Frozen)
		s.tree.SetLeaf(committer.LeafPath(key), committer.LeafHash(key, val))
	}
	for id, sym := range s.symbols {
		book, ok := s.books[id]
		if !ok {
			continue
		}
		updates := s.bookLeafUpdate(id, book)
		for _, u := range updates {
			s.tree.SetLeaf(committer.LeafPath(u.Key), committer.LeafHash(u.Key, u.NewValue))
		}
		_ = sym
	}

	s.orders = make(map[orderKey]*domain.Order)
	for id, book := range s.books {
		for _, o := range book.AllOrders() {
			s.orders[orderKey{Symbol: id, OrderID: o.OrderID}] = o
		}
	}

	s.nextEventID = highWater + 1
	return s.tree.Root(), nil
}
