// Package snapshot implements the periodic/DUMP-triggered full-state dump
// and replay-based recovery. It sits above internal/storage and
// internal/sequencer: storage gives it somewhere durable to put the dump
// and the log it replays, the sequencer gives it the live state to dump
// and the Apply loop to replay commands through.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/sequencer"
)

// OrderRecord is one resting order's persisted shape: everything on
// domain.Order except ListElement, which is a book-internal handle that
// has no meaning outside the ladder that produced it and is rebuilt by
// Book.InsertResting on restore.
type OrderRecord struct {
	OrderID         uint64
	UserID          domain.UserID
	Symbol          domain.SymbolID
	Side            domain.Side
	Kind            domain.Kind
	Price           decimal.Decimal
	OriginalAmount  decimal.Decimal
	AmountRemaining decimal.Decimal
	OriginalVol     decimal.Decimal
	VolRemaining    decimal.Decimal
	Frozen          decimal.Decimal
	QuoteReleased   decimal.Decimal
	CreatedAt       uint64
}

func recordFromOrder(o *domain.Order) OrderRecord {
	return OrderRecord{
		OrderID:         o.OrderID,
		UserID:          o.UserID,
		Symbol:          o.Symbol,
		Side:            o.Side,
		Kind:            o.Kind,
		Price:           o.Price,
		OriginalAmount:  o.OriginalAmount,
		AmountRemaining: o.AmountRemaining,
		OriginalVol:     o.OriginalVol,
		VolRemaining:    o.VolRemaining,
		Frozen:          o.Frozen,
		QuoteReleased:   o.QuoteReleased,
		CreatedAt:       o.CreatedAt,
	}
}

func (r OrderRecord) toOrder() *domain.Order {
	return &domain.Order{
		OrderID:         r.OrderID,
		UserID:          r.UserID,
		Symbol:          r.Symbol,
		Side:            r.Side,
		Kind:            r.Kind,
		Price:           r.Price,
		OriginalAmount:  r.OriginalAmount,
		AmountRemaining: r.AmountRemaining,
		OriginalVol:     r.OriginalVol,
		VolRemaining:    r.VolRemaining,
		Frozen:          r.Frozen,
		QuoteReleased:   r.QuoteReleased,
		CreatedAt:       r.CreatedAt,
	}
}

// LedgerRow is one (user, currency) balance, flattened out of
// accounts.Ledger's map for JSON serialization (map keys with struct
// types don't round-trip through encoding/json).
type LedgerRow struct {
	User      domain.UserID
	Currency  domain.CurrencyID
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// Blob is the full-state dump: (event_id_high_water, accounts_map,
// order_books_map, symbols_map, smt_root) serialized as one atomic
// artifact.
type Blob struct {
	HighWater uint64
	Ledger    []LedgerRow
	Symbols   []*domain.Symbol
	Orders    []OrderRecord
	SMTRoot   [32]byte
}

// Capture reads seq's current state into a Blob, ready to serialize.
func Capture(seq *sequencer.Sequencer) Blob {
	b := Blob{HighWater: seq.HighWaterMark(), SMTRoot: seq.Root()}

	for k, bal := range seq.Ledger().Snapshot() {
		b.Ledger = append(b.Ledger, LedgerRow{
			User: k.User, Currency: k.Currency,
			Available: bal.Available, Frozen: bal.Frozen,
		})
	}

	for _, sym := range seq.Symbols() {
		cp := *sym
		b.Symbols = append(b.Symbols, &cp)
	}

	for _, book := range seq.Books() {
		for _, o := range book.AllOrders() {
			b.Orders = append(b.Orders, recordFromOrder(o))
		}
	}

	return b
}

// Encode serializes a Blob as JSON. JSON (not gob) is used because
// Decimal's coefficient is unexported and round-trips only through its
// own MarshalJSON/UnmarshalJSON, not through gob's reflection-based
// encoder.
func (b Blob) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlob parses a Blob previously produced by Encode.
func DecodeBlob(raw []byte) (Blob, error) {
	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return Blob{}, fmt.Errorf("decode snapshot blob: %w", err)
	}
	return b, nil
}

// Restore rebuilds seq's entire state from b and returns the SMT root
// recomputed during rebuild, for the caller to assert against b.SMTRoot;
// a mismatch here means the dump or the log is corrupt and is fatal.
func Restore(seq *sequencer.Sequencer, b Blob) ([32]byte, error) {
	ledgerRows := make(map[accounts.Key]accounts.Balance, len(b.Ledger))
	for _, row := range b.Ledger {
		ledgerRows[accounts.Key{User: row.User, Currency: row.Currency}] = accounts.Balance{
			Available: row.Available, Frozen: row.Frozen,
		}
	}

	symbols := make(map[domain.SymbolID]*domain.Symbol, len(b.Symbols))
	for _, sym := range b.Symbols {
		symbols[sym.ID] = sym
	}

	orders := make(map[domain.SymbolID][]*domain.Order)
	for _, rec := range b.Orders {
		orders[rec.Symbol] = append(orders[rec.Symbol], rec.toOrder())
	}

	root, err := seq.RestoreState(b.HighWater, ledgerRows, symbols, orders)
	if err != nil {
		return [32]byte{}, fmt.Errorf("restore state: %w", err)
	}
	if root != b.SMTRoot {
		return root, fmt.Errorf("snapshot root mismatch: recomputed %x, dump says %x", root, b.SMTRoot)
	}
	return root, nil
}
