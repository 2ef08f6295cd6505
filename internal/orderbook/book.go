// Package orderbook is the per-symbol price-time-priority ladder. It
// holds only price structure and FIFO queues: no accounting, no fee
// logic, no self-trade checks. Those live in the matcher and clearer
// packages, keeping "data structure" and "algorithm" separate.
//
// A Book carries no internal locking: only accessed by a single matching
// goroutine, it is owned exclusively by the sequencer.
package orderbook

import (
	"container/list"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// Level is every resting order at one price, in time priority: within a
// price, strict FIFO.
type Level struct {
	Price  decimal.Decimal
	Orders *list.List // of *domain.Order
	Volume decimal.Decimal
}

// ladder is one side (bids or asks) of a Book: a red-black tree of price
// levels, ordered so the best price is always the tree's leftmost node.
// The tree is keyed directly on Decimal prices rather than a sharded
// integer bucket id, since a symbol's open price levels number in the
// thousands at most, not the millions a sharded index is built for.
type ladder struct {
	tree       *rbt.Tree[decimal.Decimal, *Level]
	descending bool
}

func newLadder(descending bool) *ladder {
	cmp := func(a, b decimal.Decimal) int {
		c := a.Cmp(b)
		if descending {
			return -c
		}
		return c
	}
	return &ladder{tree: rbt.NewWith[decimal.Decimal, *Level](cmp), descending: descending}
}

func (l *ladder) bestLevel() (*Level, bool) {
	node := l.tree.Left()
	if node == nil {
		return nil, false
	}
	return node.Value, true
}

func (l *ladder) levelAt(price decimal.Decimal) (*Level, bool) {
	return l.tree.Get(price)
}

func (l *ladder) insert(order *domain.Order) {
	level, ok := l.tree.Get(order.Price)
	if !ok {
		level = &Level{Price: order.Price, Orders: list.New(), Volume: decimal.Zero}
		l.tree.Put(order.Price, level)
	}
	elem := level.Orders.PushBack(order)
	order.ListElement = elem
	level.Volume = mustAdd(level.Volume, order.AmountRemaining)
}

// removeOrder drops order from its level's FIFO queue and, if the level
// is now empty, from the tree entirely.
func (l *ladder) removeOrder(order *domain.Order) {
	level, ok := l.tree.Get(order.Price)
	if !ok || order.ListElement == nil {
		return
	}
	elem := order.ListElement.(*list.Element)
	level.Orders.Remove(elem)
	order.ListElement = nil
	level.Volume = mustSub(level.Volume, order.AmountRemaining)
	if level.Orders.Len() == 0 {
		l.tree.Remove(order.Price)
	}
}

func mustAdd(a, b decimal.Decimal) decimal.Decimal {
	v, err := a.Add(b)
	if err != nil {
		panic(errs.NewInvariantViolation("ladder volume", err))
	}
	return v
}

func mustSub(a, b decimal.Decimal) decimal.Decimal {
	v, err := a.Sub(b)
	if err != nil {
		panic(errs.NewInvariantViolation("ladder volume", err))
	}
	return v
}

// indexEntry is the auxiliary order_id -> price index: Cancel uses it to
// find the order's price level in O(log P), then scans that level's FIFO
// queue for the order.
type indexEntry struct {
	side  domain.Side
	price decimal.Decimal
}

// Book is one symbol's bid and ask ladders.
type Book struct {
	Symbol domain.SymbolID
	bids   *ladder
	asks   *ladder
	index  map[uint64]*indexEntry
}

// New creates an empty book for symbol.
func New(symbol domain.SymbolID) *Book {
	return &Book{
		Symbol: symbol,
		bids:   newLadder(true),
		asks:   newLadder(false),
		index:  make(map[uint64]*indexEntry),
	}
}

func (b *Book) ladder(side domain.Side) *ladder {
	if side == domain.Bid {
		return b.bids
	}
	return b.asks
}

// InsertResting appends order to the tail of its price's FIFO queue.
// Returns an OrderIdExists ValidationError if order_id already rests in
// this book.
func (b *Book) InsertResting(order *domain.Order) error {
	if _, exists := b.index[order.OrderID]; exists {
		return errs.NewValidation(errs.OrderIDExists, "order %d already rests in book", order.OrderID)
	}
	lad := b.ladder(order.Side)
	lad.insert(order)
	b.index[order.OrderID] = &indexEntry{side: order.Side, price: order.Price}
	return nil
}

// Cancel removes and returns the resting order with orderID, or (nil,
// false) if it isn't present.
func (b *Book) Cancel(orderID uint64) (*domain.Order, bool) {
	entry, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	lad := b.ladder(entry.side)
	level, ok := lad.levelAt(entry.price)
	if !ok {
		delete(b.index, orderID)
		return nil, false
	}
	var found *domain.Order
	for e := level.Orders.Front(); e != nil; e = e.Next() {
		o := e.Value.(*domain.Order)
		if o.OrderID == orderID {
			found = o
			break
		}
	}
	if found == nil {
		delete(b.index, orderID)
		return nil, false
	}
	lad.removeOrder(found)
	delete(b.index, orderID)
	return found, true
}

// Remove drops order from the book under the assumption the caller
// already holds the order (e.g. the matcher just fully filled it). Unlike
// Cancel it skips the FIFO linear scan by going straight through
// order.ListElement.
func (b *Book) Remove(order *domain.Order) {
	lad := b.ladder(order.Side)
	lad.removeOrder(order)
	delete(b.index, order.OrderID)
}

// PeekBest returns the best resting order on side, without removing it.
func (b *Book) PeekBest(side domain.Side) (*domain.Order, bool) {
	level, ok := b.ladder(side).bestLevel()
	if !ok || level.Orders.Len() == 0 {
		return nil, false
	}
	return level.Orders.Front().Value.(*domain.Order), true
}

// BestPrice returns the best price on side, if any.
func (b *Book) BestPrice(side domain.Side) (decimal.Decimal, bool) {
	level, ok := b.ladder(side).bestLevel()
	if !ok {
		return decimal.Zero, false
	}
	return level.Price, true
}

// BestSummary returns the best-bid/best-ask price and aggregate size at
// that price, for the committer's L_book leaf.
func (b *Book) BestSummary() (bidPrice, bidSize, askPrice, askSize decimal.Decimal) {
	bidPrice, bidSize = decimal.Zero, decimal.Zero
	askPrice, askSize = decimal.Zero, decimal.Zero
	if lvl, ok := b.bids.bestLevel(); ok {
		bidPrice, bidSize = lvl.Price, lvl.Volume
	}
	if lvl, ok := b.asks.bestLevel(); ok {
		askPrice, askSize = lvl.Price, lvl.Volume
	}
	return
}

// IsEmpty reports whether the book has no resting orders on either side.
func (b *Book) IsEmpty() bool {
	return len(b.index) == 0
}

// PriceLevelSnapshot is one price level's aggregate state, for depth
// queries and snapshotting.
type PriceLevelSnapshot struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Orders []*domain.Order
}

// Depth returns up to maxLevels price levels on side, best-first.
func (b *Book) Depth(side domain.Side, maxLevels int) []PriceLevelSnapshot {
	lad := b.ladder(side)
	var out []PriceLevelSnapshot
	it := lad.tree.Iterator()
	for it.Next() && len(out) < maxLevels {
		lvl := it.Value()
		orders := make([]*domain.Order, 0, lvl.Orders.Len())
		for e := lvl.Orders.Front(); e != nil; e = e.Next() {
			orders = append(orders, e.Value.(*domain.Order))
		}
		out = append(out, PriceLevelSnapshot{Price: lvl.Price, Volume: lvl.Volume, Orders: orders})
	}
	return out
}

// AllOrders returns every resting order in the book, in no particular
// order, for snapshotting.
func (b *Book) AllOrders() []*domain.Order {
	out := make([]*domain.Order, 0, len(b.index))
	for _, side := range []domain.Side{domain.Bid, domain.Ask} {
		for _, lvl := range b.Depth(side, len(b.index)+1) {
			out = append(out, lvl.Orders...)
		}
	}
	return out
}
