package domain

import "github.com/galois-labs/galois/internal/decimal"

// CmdKind is the command discriminant carried in every envelope.
type CmdKind uint8

const (
	CmdAskLimit     CmdKind = 0
	CmdBidLimit     CmdKind = 1
	CmdAskMarket    CmdKind = 2
	CmdBidMarket    CmdKind = 3
	CmdCancel       CmdKind = 4
	CmdOpen         CmdKind = 5
	CmdClose        CmdKind = 6
	CmdTransferOut  CmdKind = 10
	CmdTransferIn   CmdKind = 11
	CmdNewSymbol    CmdKind = 12
	CmdUpdateSymbol CmdKind = 13
	CmdQueryOrder   CmdKind = 14
	CmdQueryBalance CmdKind = 15
	CmdQueryAccount CmdKind = 16
	CmdDump         CmdKind = 17
)

func (k CmdKind) String() string {
	switch k {
	case CmdAskLimit:
		return "ASK_LIMIT"
	case CmdBidLimit:
		return "BID_LIMIT"
	case CmdAskMarket:
		return "ASK_MARKET"
	case CmdBidMarket:
		return "BID_MARKET"
	case CmdCancel:
		return "CANCEL"
	case CmdOpen:
		return "OPEN"
	case CmdClose:
		return "CLOSE"
	case CmdTransferOut:
		return "TRANSFER_OUT"
	case CmdTransferIn:
		return "TRANSFER_IN"
	case CmdNewSymbol:
		return "NEW_SYMBOL"
	case CmdUpdateSymbol:
		return "UPDATE_SYMBOL"
	case CmdQueryOrder:
		return "QUERY_ORDER"
	case CmdQueryBalance:
		return "QUERY_BALANCE"
	case CmdQueryAccount:
		return "QUERY_ACCOUNTS"
	case CmdDump:
		return "DUMP"
	default:
		return "UNKNOWN"
	}
}

// IsQuery reports whether this command bypasses the log: the sequencer
// answers it from current state and never assigns it an event_id.
func (k CmdKind) IsQuery() bool {
	return k == CmdQueryOrder || k == CmdQueryBalance || k == CmdQueryAccount
}

// Command is the tagged sum over all 17 command shapes, dispatched with a
// single switch in the sequencer. All fields are optional except Cmd;
// which ones are required is determined by Cmd and checked by
// ingress.Validate, while the sequencer checks the business rules.
type Command struct {
	Cmd CmdKind

	// Raw is the canonical wire encoding this Command was decoded from,
	// carried through unchanged so the committer can embed it verbatim as
	// the event's canonical command body in the proof bundle.
	Raw []byte

	Base  CurrencyID
	Quote CurrencyID

	UserID  UserID
	OrderID uint64
	Price   decimal.Decimal
	Amount  decimal.Decimal
	Vol     decimal.Decimal

	Currency CurrencyID // TRANSFER_IN/OUT, QUERY_BALANCE

	// NEW_SYMBOL / UPDATE_SYMBOL fields. Pointers distinguish "not present"
	// from "zero value" for UPDATE_SYMBOL's partial-update semantics.
	BaseScale         *int32
	QuoteScale        *int32
	TakerFee          *decimal.Decimal
	MakerFee          *decimal.Decimal
	MinAmount         *decimal.Decimal
	MinVol            *decimal.Decimal
	EnableMarketOrder *bool
}

// Symbol returns the SymbolID this command targets.
func (c *Command) Symbol() SymbolID { return SymbolID{Base: c.Base, Quote: c.Quote} }
