package sequencer

import (
	"testing"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

func userID(b byte) domain.UserID {
	var u domain.UserID
	u[0] = b
	return u
}

func ptr32(v int32) *int32            { return &v }
func ptrDec(v string) *decimal.Decimal { d := decimal.MustParse(v); return &d }
func ptrBool(v bool) *bool            { return &v }

func newSymbolCmd(sym domain.SymbolID) *domain.Command {
	return &domain.Command{
		Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
		BaseScale: ptr32(4), QuoteScale: ptr32(4),
		TakerFee: ptrDec("0.002"), MakerFee: ptrDec("0.002"),
		MinAmount: ptrDec("0.1"), MinVol: ptrDec("10"),
		EnableMarketOrder: ptrBool(false),
	}
}

// apply runs cmd against seq, fatals on any fatal error or unexpected
// rejection, and (for non-query commands) appends the Outcome to bundles
// so the caller can later check proof continuity.
func apply(t *testing.T, seq *Sequencer, bundles *[]Outcome, cmd *domain.Command) Outcome {
	t.Helper()
	out, err := seq.Apply(cmd)
	if err != nil {
		t.Fatalf("apply %s: %v", cmd.Cmd, err)
	}
	if out.Status != Accepted && !cmd.Cmd.IsQuery() {
		t.Fatalf("apply %s: rejected: %s %s", cmd.Cmd, out.Reason, out.Detail)
	}
	if !cmd.Cmd.IsQuery() {
		*bundles = append(*bundles, out)
	}
	return out
}

// TestScenariosS1ThroughS4 walks a symbol through open, a crossed limit
// trade, and a self-trade-prevented resting order, all in one continuous
// session, checking every resulting balance and book state.
func TestScenariosS1ThroughS4(t *testing.T) {
	seq := New(nil)
	userA, userB := userID(1), userID(2)
	sym := domain.SymbolID{Base: 101, Quote: 100}
	var bundles []Outcome
	a := func(cmd *domain.Command) Outcome { return apply(t, seq, &bundles, cmd) }

	// S1
	a(newSymbolCmd(sym))
	a(&domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote})
	if s := seq.symbols[sym]; s == nil || !s.IsOpen() {
		t.Fatalf("expected symbol %v open after S1", sym)
	}

	// S2
	a(&domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("1000")})
	a(&domain.Command{
		Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 1, Price: decimal.MustParse("10"), Amount: decimal.MustParse("2"),
	})
	balA100 := seq.QueryBalance(userA, sym.Quote)
	if !balA100.Available.Equal(decimal.MustParse("980")) || !balA100.Frozen.Equal(decimal.MustParse("20.0000")) {
		t.Fatalf("S2: expected A.100={980,20.0000}, got {%s,%s}", balA100.Available, balA100.Frozen)
	}
	resting, ok := seq.QueryOrder(sym, 1)
	if !ok || !resting.AmountRemaining.Equal(decimal.MustParse("2")) {
		t.Fatalf("S2: expected order 1 resting with unfilled=2, got %+v", resting)
	}

	// S3
	a(&domain.Command{Cmd: domain.CmdTransferIn, UserID: userB, Currency: sym.Base, Amount: decimal.MustParse("5")})
	a(&domain.Command{
		Cmd: domain.CmdAskLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userB, OrderID: 2, Price: decimal.MustParse("10"), Amount: decimal.MustParse("1"),
	})

	aQuote := seq.QueryBalance(userA, sym.Quote)
	if !aQuote.Available.Equal(decimal.MustParse("980")) || !aQuote.Frozen.Equal(decimal.MustParse("10")) {
		t.Fatalf("S3: expected A.100={980,10}, got {%s,%s}", aQuote.Available, aQuote.Frozen)
	}
	aBase := seq.QueryBalance(userA, sym.Base)
	if !aBase.Available.Equal(decimal.MustParse("0.998")) || !aBase.Frozen.IsZero() {
		t.Fatalf("S3: expected A.101={0.998,0}, got {%s,%s}", aBase.Available, aBase.Frozen)
	}
	bBase := seq.QueryBalance(userB, sym.Base)
	if !bBase.Available.Equal(decimal.MustParse("4")) || !bBase.Frozen.IsZero() {
		t.Fatalf("S3: expected B.101={4,0}, got {%s,%s}", bBase.Available, bBase.Frozen)
	}
	bQuote := seq.QueryBalance(userB, sym.Quote)
	if !bQuote.Available.Equal(decimal.MustParse("9.98")) || !bQuote.Frozen.IsZero() {
		t.Fatalf("S3: expected B.100={9.98,0}, got {%s,%s}", bQuote.Available, bQuote.Frozen)
	}

	// S4 - self-trade prevention. A needs base on hand to post the ASK
	// side of its own self-trade; top it up first.
	a(&domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Base, Amount: decimal.MustParse("10")})
	a(&domain.Command{
		Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 3, Price: decimal.MustParse("11"), Amount: decimal.MustParse("1"),
	})
	a(&domain.Command{
		Cmd: domain.CmdAskLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 4, Price: decimal.MustParse("10"), Amount: decimal.MustParse("1"),
	})
	if _, ok := seq.QueryOrder(sym, 3); ok {
		t.Fatalf("S4: expected order 3 canceled by self-trade prevention")
	}
	if o, ok := seq.QueryOrder(sym, 4); !ok || !o.AmountRemaining.Equal(decimal.MustParse("1")) {
		t.Fatalf("S4: expected order 4 resting unmatched, got %+v", o)
	}

	// Proof continuity holds across this whole run: root_old of event N
	// equals root_new of event N-1.
	for i := 1; i < len(bundles); i++ {
		if bundles[i].Proof.RootOld != bundles[i-1].Proof.RootNew {
			t.Fatalf("proof[%d].root_old != proof[%d].root_new", bundles[i].EventID, bundles[i-1].EventID)
		}
	}
}

// TestScenarioS5CancelFromS2 replays S1+S2 alone, then cancels order 1 -
// matching spec's S5, which is explicitly stated "from S2" (i.e. before
// S3 partially filled that same order in the combined walkthrough above).
func TestScenarioS5CancelFromS2(t *testing.T) {
	seq := New(nil)
	userA := userID(1)
	sym := domain.SymbolID{Base: 101, Quote: 100}
	var bundles []Outcome
	a := func(cmd *domain.Command) Outcome { return apply(t, seq, &bundles, cmd) }

	a(newSymbolCmd(sym))
	a(&domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote})
	a(&domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("1000")})
	a(&domain.Command{
		Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 1, Price: decimal.MustParse("10"), Amount: decimal.MustParse("2"),
	})

	a(&domain.Command{Cmd: domain.CmdCancel, Base: sym.Base, Quote: sym.Quote, UserID: userA, OrderID: 1})
	final := seq.QueryBalance(userA, sym.Quote)
	if !final.Available.Equal(decimal.MustParse("1000")) || !final.Frozen.IsZero() {
		t.Fatalf("S5: expected A.100={1000,0}, got {%s,%s}", final.Available, final.Frozen)
	}
	if _, ok := seq.QueryOrder(sym, 1); ok {
		t.Fatalf("S5: expected order 1 gone after cancel")
	}

	for i := 1; i < len(bundles); i++ {
		if bundles[i].Proof.RootOld != bundles[i-1].Proof.RootNew {
			t.Fatalf("proof[%d].root_old != proof[%d].root_new", bundles[i].EventID, bundles[i-1].EventID)
		}
	}
}
