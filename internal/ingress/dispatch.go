package ingress

import (
	"encoding/json"
	"fmt"

	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// Decode parses raw JSON bytes into an Envelope and runs field validation,
// returning a *errs.ValidationError (not a Go error) on a malformed or
// incomplete envelope, mirroring how domain-level rejections flow back to
// callers without treating them as fatal.
func Decode(raw []byte) (*Envelope, *errs.ValidationError) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.NewValidation(errs.BadRequest, "malformed envelope: %v", err)
	}
	if ve := Validate(&env); ve != nil {
		return nil, ve
	}
	return &env, nil
}

// ToCommand converts a validated Envelope into the domain.Command the
// sequencer consumes, setting Raw to the exact bytes received so the
// committer can embed the canonical command body verbatim in the event's
// proof bundle.
func ToCommand(env *Envelope, raw []byte) (*domain.Command, error) {
	cmd := &domain.Command{
		Cmd: domain.CmdKind(env.Cmd),
		Raw: raw,
	}

	if env.Base != nil {
		cmd.Base = domain.CurrencyID(*env.Base)
	}
	if env.Quote != nil {
		cmd.Quote = domain.CurrencyID(*env.Quote)
	}
	if env.Currency != nil {
		cmd.Currency = domain.CurrencyID(*env.Currency)
	}
	if env.OrderID != nil {
		cmd.OrderID = *env.OrderID
	}
	if env.Price != nil {
		cmd.Price = *env.Price
	}
	if env.Amount != nil {
		cmd.Amount = *env.Amount
	}
	if env.Vol != nil {
		cmd.Vol = *env.Vol
	}
	if env.UserID != nil {
		id, err := decodeUserID(*env.UserID)
		if err != nil {
			return nil, fmt.Errorf("decode user_id: %w", err)
		}
		cmd.UserID = id
	}

	cmd.BaseScale = env.BaseScale
	cmd.QuoteScale = env.QuoteScale
	cmd.TakerFee = env.TakerFee
	cmd.MakerFee = env.MakerFee
	cmd.MinAmount = env.MinAmount
	cmd.MinVol = env.MinVol
	cmd.EnableMarketOrder = env.EnableMarketOrder

	return cmd, nil
}

// FromCommand is the inverse of ToCommand: it renders a domain.Command
// back into wire shape, and is what CanonicalizeForLog marshals for a
// command built in-process rather than decoded off the wire. It populates
// exactly the fields cmd.Cmd's row in the
// envelope table defines, leaving the rest nil.
func FromCommand(cmd *domain.Command) *Envelope {
	env := &Envelope{Cmd: uint8(cmd.Cmd)}

	base, quote, currency, orderID := uint32(cmd.Base), uint32(cmd.Quote), uint32(cmd.Currency), cmd.OrderID
	userID := encodeUserID(cmd.UserID)
	price, amount, vol := cmd.Price, cmd.Amount, cmd.Vol

	switch cmd.Cmd {
	case domain.CmdAskLimit, domain.CmdBidLimit:
		env.Base, env.Quote, env.UserID, env.OrderID, env.Price, env.Amount = &base, &quote, &userID, &orderID, &price, &amount
	case domain.CmdAskMarket:
		env.Base, env.Quote, env.UserID, env.OrderID, env.Amount = &base, &quote, &userID, &orderID, &amount
	case domain.CmdBidMarket:
		env.Base, env.Quote, env.UserID, env.OrderID, env.Vol = &base, &quote, &userID, &orderID, &vol
	case domain.CmdCancel:
		env.Base, env.Quote, env.UserID, env.OrderID = &base, &quote, &userID, &orderID
	case domain.CmdOpen, domain.CmdClose:
		env.Base, env.Quote = &base, &quote
	case domain.CmdTransferIn, domain.CmdTransferOut:
		env.UserID, env.Currency, env.Amount = &userID, &currency, &amount
	case domain.CmdNewSymbol, domain.CmdUpdateSymbol:
		env.Base, env.Quote = &base, &quote
		env.BaseScale, env.QuoteScale = cmd.BaseScale, cmd.QuoteScale
		env.TakerFee, env.MakerFee = cmd.TakerFee, cmd.MakerFee
		env.MinAmount, env.MinVol = cmd.MinAmount, cmd.MinVol
		env.EnableMarketOrder = cmd.EnableMarketOrder
	case domain.CmdQueryOrder:
		env.Base, env.Quote, env.OrderID = &base, &quote, &orderID
	case domain.CmdQueryBalance:
		env.UserID, env.Currency = &userID, &currency
	case domain.CmdQueryAccount:
		env.UserID = &userID
	case domain.CmdDump:
		// no fields
	}

	return env
}

// CanonicalizeForLog renders cmd back into the envelope JSON an operator
// would have sent to produce it, for commands an operator tool issues
// directly (e.g. galoisd's symbol-seeding at startup) rather than
// receiving already-encoded over HTTP. The result is suitable for
// cmd.Raw, the bytes the committer embeds verbatim in the event's proof
// bundle.
func CanonicalizeForLog(cmd *domain.Command) ([]byte, error) {
	return json.Marshal(FromCommand(cmd))
}
