package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/sequencer"
	"github.com/galois-labs/galois/internal/storage"
)

func ptr32(v int32) *int32            { return &v }
func ptrDec(v string) *decimal.Decimal { d := decimal.MustParse(v); return &d }
func ptrBool(v bool) *bool            { return &v }

func userID(b byte) domain.UserID {
	var u domain.UserID
	u[0] = b
	return u
}

// jsonEncode/jsonDecode stand in for the wire codec that a later ingress
// package owns; domain.Command's fields are all exported (decimal's own
// MarshalJSON/UnmarshalJSON handle the Decimal-typed ones), so plain
// encoding/json round-trips it without any custom logic.
func jsonEncode(t *testing.T, cmd *domain.Command) []byte {
	t.Helper()
	raw, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func jsonDecode(raw []byte) (*domain.Command, error) {
	var cmd domain.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

func applyAndPersist(t *testing.T, seq *sequencer.Sequencer, store *storage.Store, cmd *domain.Command) sequencer.Outcome {
	t.Helper()
	cmd.Raw = jsonEncode(t, cmd)
	out, err := seq.Apply(cmd)
	if err != nil {
		t.Fatalf("apply %s: %v", cmd.Cmd, err)
	}
	if out.Status != sequencer.Accepted {
		t.Fatalf("apply %s: rejected: %s %s", cmd.Cmd, out.Reason, out.Detail)
	}
	if err := storage.Persist(store, cmd, out); err != nil {
		t.Fatalf("persist: %v", err)
	}
	return out
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	seq := sequencer.New(nil)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	sym := domain.SymbolID{Base: 101, Quote: 100}
	userA := userID(1)

	applyAndPersist(t, seq, store, &domain.Command{
		Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
		BaseScale: ptr32(4), QuoteScale: ptr32(4),
		TakerFee: ptrDec("0.002"), MakerFee: ptrDec("0.002"),
		MinAmount: ptrDec("0.1"), MinVol: ptrDec("10"),
		EnableMarketOrder: ptrBool(false),
	})
	applyAndPersist(t, seq, store, &domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote})
	applyAndPersist(t, seq, store, &domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("1000")})
	applyAndPersist(t, seq, store, &domain.Command{
		Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 1, Price: decimal.MustParse("10"), Amount: decimal.MustParse("2"),
	})

	wantRoot := seq.Root()
	wantHighWater := seq.HighWaterMark()

	blob := Capture(seq)
	if blob.HighWater != wantHighWater {
		t.Fatalf("blob.HighWater = %d, want %d", blob.HighWater, wantHighWater)
	}

	raw, err := blob.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeBlob(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	fresh := sequencer.New(nil)
	root, err := Restore(fresh, decoded)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if root != wantRoot {
		t.Fatalf("restored root = %x, want %x", root, wantRoot)
	}
	if fresh.HighWaterMark() != wantHighWater {
		t.Fatalf("restored high_water = %d, want %d", fresh.HighWaterMark(), wantHighWater)
	}

	bal := fresh.QueryBalance(userA, sym.Quote)
	if !bal.Available.Equal(decimal.MustParse("980")) || !bal.Frozen.Equal(decimal.MustParse("20.0000")) {
		t.Fatalf("restored balance = {%s,%s}, want {980,20.0000}", bal.Available, bal.Frozen)
	}
	order, ok := fresh.QueryOrder(sym, 1)
	if !ok || !order.AmountRemaining.Equal(decimal.MustParse("2")) {
		t.Fatalf("restored order 1 missing or wrong: %+v ok=%v", order, ok)
	}

	// A fresh event applied post-restore must still chain proofs correctly.
	out, err := fresh.Apply(&domain.Command{Cmd: domain.CmdTransferIn, Raw: []byte("x"), UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("1")})
	if err != nil || out.Status != sequencer.Accepted {
		t.Fatalf("post-restore apply failed: out=%+v err=%v", out, err)
	}
	if out.Proof.RootOld != wantRoot {
		t.Fatalf("post-restore proof.RootOld = %x, want %x", out.Proof.RootOld, wantRoot)
	}
	if out.EventID != wantHighWater+1 {
		t.Fatalf("post-restore event_id = %d, want %d", out.EventID, wantHighWater+1)
	}
}

func TestManagerDumpOnDumpCommandAndInterval(t *testing.T) {
	seq := sequencer.New(nil)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	mgr := NewManager(store, 2)

	sym := domain.SymbolID{Base: 101, Quote: 100}
	userA := userID(1)

	run := func(cmd *domain.Command) {
		out := applyAndPersist(t, seq, store, cmd)
		if err := mgr.MaybeDump(seq, cmd, out); err != nil {
			t.Fatalf("MaybeDump: %v", err)
		}
	}

	run(&domain.Command{
		Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
		BaseScale: ptr32(4), QuoteScale: ptr32(4),
		TakerFee: ptrDec("0.002"), MakerFee: ptrDec("0.002"),
		MinAmount: ptrDec("0.1"), MinVol: ptrDec("10"),
		EnableMarketOrder: ptrBool(false),
	}) // event 1
	run(&domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote}) // event 2: interval hit

	if _, _, ok, err := store.LatestSnapshot(); err != nil || !ok {
		t.Fatalf("expected a snapshot after 2 events, ok=%v err=%v", ok, err)
	}

	run(&domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("5")}) // event 3
	run(&domain.Command{Cmd: domain.CmdDump}) // event 4: explicit dump regardless of interval

	id, _, ok, err := store.LatestSnapshot()
	if err != nil || !ok || id != 4 {
		t.Fatalf("expected snapshot at event 4 after DUMP, got id=%d ok=%v err=%v", id, ok, err)
	}
}

func TestRecoverReplaysLogAfterSnapshot(t *testing.T) {
	seq := sequencer.New(nil)
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	mgr := NewManager(store, 0)

	sym := domain.SymbolID{Base: 101, Quote: 100}
	userA := userID(1)

	applyAndPersist(t, seq, store, &domain.Command{
		Cmd: domain.CmdNewSymbol, Base: sym.Base, Quote: sym.Quote,
		BaseScale: ptr32(4), QuoteScale: ptr32(4),
		TakerFee: ptrDec("0.002"), MakerFee: ptrDec("0.002"),
		MinAmount: ptrDec("0.1"), MinVol: ptrDec("10"),
		EnableMarketOrder: ptrBool(false),
	})
	applyAndPersist(t, seq, store, &domain.Command{Cmd: domain.CmdOpen, Base: sym.Base, Quote: sym.Quote})
	applyAndPersist(t, seq, store, &domain.Command{Cmd: domain.CmdTransferIn, UserID: userA, Currency: sym.Quote, Amount: decimal.MustParse("1000")})
	if err := mgr.Dump(seq); err != nil {
		t.Fatalf("dump: %v", err)
	}
	applyAndPersist(t, seq, store, &domain.Command{
		Cmd: domain.CmdBidLimit, Base: sym.Base, Quote: sym.Quote,
		UserID: userA, OrderID: 1, Price: decimal.MustParse("10"), Amount: decimal.MustParse("2"),
	})
	applyAndPersist(t, seq, store, &domain.Command{Cmd: domain.CmdCancel, Base: sym.Base, Quote: sym.Quote, UserID: userA, OrderID: 1})

	wantRoot := seq.Root()
	wantHighWater := seq.HighWaterMark()

	recovered := sequencer.New(nil)
	if err := Recover(store, recovered, jsonDecode); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered.Root() != wantRoot {
		t.Fatalf("recovered root = %x, want %x", recovered.Root(), wantRoot)
	}
	if recovered.HighWaterMark() != wantHighWater {
		t.Fatalf("recovered high_water = %d, want %d", recovered.HighWaterMark(), wantHighWater)
	}
	if _, ok := recovered.QueryOrder(sym, 1); ok {
		t.Fatalf("expected order 1 canceled after replay")
	}
	bal := recovered.QueryBalance(userA, sym.Quote)
	if !bal.Available.Equal(decimal.MustParse("1000")) || !bal.Frozen.IsZero() {
		t.Fatalf("recovered balance = {%s,%s}, want {1000,0}", bal.Available, bal.Frozen)
	}
}
