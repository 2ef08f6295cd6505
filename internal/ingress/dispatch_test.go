package ingress

import (
	"testing"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

func TestToCommandRoundTripsTradingFields(t *testing.T) {
	var uid domain.UserID
	uid[31] = 0x0a

	env := &Envelope{
		Cmd: uint8(domain.CmdBidLimit),
		Base: u32(101), Quote: u32(100),
		UserID: strp(encodeUserID(uid)),
		OrderID: u64(7), Price: dec("10.5"), Amount: dec("2"),
	}

	cmd, err := ToCommand(env, []byte(`{"cmd":1}`))
	if err != nil {
		t.Fatalf("ToCommand: %v", err)
	}
	if cmd.Cmd != domain.CmdBidLimit {
		t.Fatalf("cmd = %v, want BidLimit", cmd.Cmd)
	}
	if cmd.Base != 101 || cmd.Quote != 100 {
		t.Fatalf("symbol = %d/%d, want 101/100", cmd.Base, cmd.Quote)
	}
	if cmd.OrderID != 7 {
		t.Fatalf("order_id = %d, want 7", cmd.OrderID)
	}
	if !cmd.Price.Equal(decimal.MustParse("10.5")) {
		t.Fatalf("price = %s, want 10.5", cmd.Price)
	}
	if string(cmd.Raw) != `{"cmd":1}` {
		t.Fatalf("Raw not preserved: %s", cmd.Raw)
	}
}

func TestToCommandRejectsBadUserID(t *testing.T) {
	env := &Envelope{Cmd: uint8(domain.CmdCancel), Base: u32(1), Quote: u32(2), UserID: strp("not-hex"), OrderID: u64(1)}
	if _, err := ToCommand(env, nil); err == nil {
		t.Fatalf("expected error decoding invalid user_id")
	}
}

func TestFromCommandThenToCommandIsStable(t *testing.T) {
	var uid domain.UserID
	uid[31] = 0x0a

	orig := &domain.Command{
		Cmd: domain.CmdBidLimit, Base: 101, Quote: 100,
		UserID: uid, OrderID: 3,
		Price: decimal.MustParse("5"), Amount: decimal.MustParse("1"),
	}
	env := FromCommand(orig)
	back, err := ToCommand(env, nil)
	if err != nil {
		t.Fatalf("ToCommand: %v", err)
	}
	if back.Base != orig.Base || back.Quote != orig.Quote || back.OrderID != orig.OrderID {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, orig)
	}
	if back.UserID != orig.UserID {
		t.Fatalf("user_id round trip mismatch: %x vs %x", back.UserID, orig.UserID)
	}
	if !back.Price.Equal(orig.Price) || !back.Amount.Equal(orig.Amount) {
		t.Fatalf("price/amount round trip mismatch")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, ve := Decode([]byte("not json")); ve == nil {
		t.Fatalf("expected validation error for malformed envelope")
	}
}
