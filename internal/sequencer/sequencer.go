// Package sequencer is the single-writer state machine: it owns the
// accounts ledger, every symbol's order book, and the SMT, and is the
// only thing in the engine allowed to mutate any of them. Ingress
// parsing, persistence, and logging all live outside this package and
// call into it one command at a time, in event_id order; a single
// goroutine is the sole owner of every order book and consumes one
// command at a time off the ingress pipeline.
package sequencer

import (
	"go.uber.org/zap"

	"github.com/galois-labs/galois/internal/accounts"
	"github.com/galois-labs/galois/internal/clearer"
	"github.com/galois-labs/galois/internal/committer"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
	"github.com/galois-labs/galois/internal/orderbook"
)

type orderKey struct {
	Symbol  domain.SymbolID
	OrderID uint64
}

// Sequencer holds every piece of mutable engine state and applies
// commands to it one at a time.
type Sequencer struct {
	ledger  *accounts.Ledger
	books   map[domain.SymbolID]*orderbook.Book
	symbols map[domain.SymbolID]*domain.Symbol
	orders  map[orderKey]*domain.Order
	tree    *committer.Tree

	// lastBookLeaf caches each symbol's most recently committed L_book
	// value so bookLeafUpdate can tell whether this event actually moved
	// the top of book without re-deriving it from the SMT.
	lastBookLeaf map[domain.SymbolID][]byte

	nextEventID uint64
	log         *zap.Logger
}

// New creates a Sequencer with empty state, ready to replay from event_id 1.
func New(log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		ledger:      accounts.NewLedger(),
		books:       make(map[domain.SymbolID]*orderbook.Book),
		symbols:     make(map[domain.SymbolID]*domain.Symbol),
		orders:      make(map[orderKey]*domain.Order),
		tree:        committer.NewTree(),
		nextEventID: 1,
		log:         log,
	}
}

// Status is an Outcome's accept/reject disposition.
type Status int

const (
	Rejected Status = iota
	Accepted
)

// Outcome is what Apply returns for one command: a rejected command
// produces an empty state delta; an accepted command produces exactly
// one state delta and one proof.
type Outcome struct {
	EventID uint64
	Status  Status
	Reason  errs.Reason // populated only when Status == Rejected
	Detail  string

	Rows  []clearer.Row     // populated for trading commands
	Proof *committer.Bundle // populated for every accepted, non-query command

	Query any // populated for accepted QUERY_* commands; an unknown order or query kind is Rejected
}

// Apply validates and executes cmd against current state, returning its
// Outcome. A non-nil error is always fatal (PersistenceError or
// InvariantViolation) and the caller must halt the engine; ordinary
// command rejection is communicated through Outcome, not error.
func (s *Sequencer) Apply(cmd *domain.Command) (Outcome, error) {
	if cmd.Cmd.IsQuery() {
		return s.applyQuery(cmd)
	}

	var ve *errs.ValidationError
	var rows []clearer.Row
	var updates []committer.LeafUpdate
	var err error

	before := s.ledger.Snapshot()

	switch cmd.Cmd {
	case domain.CmdAskLimit, domain.CmdBidLimit, domain.CmdAskMarket, domain.CmdBidMarket:
		rows, ve, err = s.applyTrade(cmd)
	case domain.CmdCancel:
		ve, err = s.applyCancel(cmd)
	case domain.CmdOpen:
		ve, err = s.applyToggle(cmd, domain.SymbolOpen)
	case domain.CmdClose:
		ve, err = s.applyToggle(cmd, domain.SymbolClosed)
	case domain.CmdTransferIn:
		ve, err = s.applyTransferIn(cmd)
	case domain.CmdTransferOut:
		ve, err = s.applyTransferOut(cmd)
	case domain.CmdNewSymbol:
		ve, err = s.applyNewSymbol(cmd)
	case domain.CmdUpdateSymbol:
		ve, err = s.applyUpdateSymbol(cmd)
	case domain.CmdDump:
		// No state effect; the caller (snapshot package) reacts to this
		// Outcome by writing a snapshot artifact.
	default:
		ve = errs.NewValidation(errs.BadRequest, "unrecognized command %d", cmd.Cmd)
	}

	if err != nil {
		return Outcome{}, err
	}
	if ve != nil {
		return Outcome{Status: Rejected, Reason: ve.Reason, Detail: ve.Detail}, nil
	}

	after := s.ledger.Snapshot()
	updates = append(updates, diffLedger(before, after)...)
	if sym := symbolTouchedBy(cmd); sym != nil {
		if book, ok := s.books[*sym]; ok {
			updates = append(updates, s.bookLeafUpdate(*sym, book)...)
		}
	}

	eventID := s.nextEventID
	s.nextEventID++

	if key := (orderKey{Symbol: cmd.Symbol(), OrderID: cmd.OrderID}); !cmd.Cmd.IsQuery() {
		if order, ok := s.orders[key]; ok && order.CreatedAt == 0 {
			order.CreatedAt = eventID
		}
	}

	bundle := committer.Commit(s.tree, eventID, updates, cmd.Raw)

	s.log.Debug("event applied",
		zap.Uint64("event_id", eventID),
		zap.String("cmd", cmd.Cmd.String()),
		zap.Int("rows", len(rows)),
		zap.Int("leaves", len(updates)),
	)

	return Outcome{EventID: eventID, Status: Accepted, Rows: rows, Proof: &bundle}, nil
}

// HighWaterMark returns the event_id of the most recently applied event.
func (s *Sequencer) HighWaterMark() uint64 {
	if s.nextEventID == 0 {
		return 0
	}
	return s.nextEventID - 1
}

// Root returns the current SMT root.
func (s *Sequencer) Root() [32]byte { return s.tree.Root() }

// Ledger exposes the account ledger for the snapshot package's full-state
// dump. The sequencer remains the only writer; snapshot only reads
// through this accessor.
func (s *Sequencer) Ledger() *accounts.Ledger { return s.ledger }

// Symbols exposes every declared symbol's current parameters, keyed by
// symbol id, for the snapshot dump.
func (s *Sequencer) Symbols() map[domain.SymbolID]*domain.Symbol { return s.symbols }

// Books exposes every symbol's resting orders, keyed by symbol id, for
// the snapshot dump.
func (s *Sequencer) Books() map[domain.SymbolID]*orderbook.Book { return s.books }

func symbolTouchedBy(cmd *domain.Command) *domain.SymbolID {
	switch cmd.Cmd {
	case domain.CmdAskLimit, domain.CmdBidLimit, domain.CmdAskMarket, domain.CmdBidMarket,
		domain.CmdCancel, domain.CmdOpen, domain.CmdClose, domain.CmdNewSymbol, domain.CmdUpdateSymbol:
		sym := cmd.Symbol()
		return &sym
	default:
		return nil
	}
}
