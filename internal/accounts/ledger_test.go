package accounts

import (
	"testing"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
)

func user(b byte) domain.UserID {
	var u domain.UserID
	u[0] = b
	return u
}

func TestCreditThenDebit(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("50")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(u, 100, decimal.MustParse("20")); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal := l.Get(u, 100)
	if !bal.Available.Equal(decimal.MustParse("30")) {
		t.Fatalf("expected available 30, got %s", bal.Available)
	}
}

func TestDebitInsufficientBalanceRejected(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("10")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(u, 100, decimal.MustParse("20")); err == nil {
		t.Fatal("expected insufficient balance error")
	}
}

func TestFreezeThenUnfreezeRoundTrips(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("100")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Freeze(u, 100, decimal.MustParse("40")); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	bal := l.Get(u, 100)
	if !bal.Available.Equal(decimal.MustParse("60")) || !bal.Frozen.Equal(decimal.MustParse("40")) {
		t.Fatalf("after freeze: got {%s,%s}", bal.Available, bal.Frozen)
	}
	if err := l.Unfreeze(u, 100, decimal.MustParse("40")); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	bal = l.Get(u, 100)
	if !bal.Available.Equal(decimal.MustParse("100")) || !bal.Frozen.IsZero() {
		t.Fatalf("after unfreeze: got {%s,%s}", bal.Available, bal.Frozen)
	}
}

func TestFreezeInsufficientAvailableRejected(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("10")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Freeze(u, 100, decimal.MustParse("20")); err == nil {
		t.Fatal("expected insufficient balance error")
	}
}

func TestDebitFrozenDrainsReservation(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("50")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Freeze(u, 100, decimal.MustParse("50")); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := l.DebitFrozen(u, 100, decimal.MustParse("50")); err != nil {
		t.Fatalf("debit frozen: %v", err)
	}
	bal := l.Get(u, 100)
	if !bal.Frozen.IsZero() {
		t.Fatalf("expected zero frozen, got %s", bal.Frozen)
	}
}

func TestAccountsOfReturnsOnlyMatchingUser(t *testing.T) {
	l := NewLedger()
	u1, u2 := user(1), user(2)
	if err := l.Credit(u1, 100, decimal.MustParse("10")); err != nil {
		t.Fatalf("credit u1: %v", err)
	}
	if err := l.Credit(u1, 101, decimal.MustParse("5")); err != nil {
		t.Fatalf("credit u1/101: %v", err)
	}
	if err := l.Credit(u2, 100, decimal.MustParse("1")); err != nil {
		t.Fatalf("credit u2: %v", err)
	}
	entries := l.AccountsOf(u1)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for u1, got %d", len(entries))
	}
}

func TestSnapshotRestoreRoundTrips(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("42")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	snap := l.Snapshot()

	l2 := NewLedger()
	l2.Restore(snap)
	bal := l2.Get(u, 100)
	if !bal.Available.Equal(decimal.MustParse("42")) {
		t.Fatalf("restored balance mismatch: got %s", bal.Available)
	}
}

func TestSumCurrencyIncludesFeeAccount(t *testing.T) {
	l := NewLedger()
	u := user(1)
	if err := l.Credit(u, 100, decimal.MustParse("10")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Credit(FeeAccount, 100, decimal.MustParse("1")); err != nil {
		t.Fatalf("credit fee account: %v", err)
	}
	sum := l.SumCurrency(100)
	if !sum.Equal(decimal.MustParse("11")) {
		t.Fatalf("expected sum 11, got %s", sum)
	}
}
