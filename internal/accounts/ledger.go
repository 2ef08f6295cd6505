// Package accounts is the per-(user, currency) balance ledger. It is owned
// exclusively by the sequencer actor, only ever accessed by a single
// matching goroutine, so it carries no internal locking; nothing outside
// the sequencer goroutine ever touches it.
package accounts

import (
	"fmt"

	"github.com/galois-labs/galois/internal/decimal"
	"github.com/galois-labs/galois/internal/domain"
	"github.com/galois-labs/galois/internal/errs"
)

// FeeAccount is the reserved user id fees accrue to. All 0xFF bytes so it
// can never collide with a user-supplied id derived from a public key or
// hash.
var FeeAccount = func() domain.UserID {
	var u domain.UserID
	for i := range u {
		u[i] = 0xFF
	}
	return u
}()

// Key identifies one balance row.
type Key struct {
	User     domain.UserID
	Currency domain.CurrencyID
}

// Balance is a single (user, currency) row. Available and Frozen are each
// individually non-negative.
type Balance struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
}

// Total returns Available+Frozen, the user's full holdings of the
// currency.
func (b Balance) Total() decimal.Decimal {
	t, err := b.Available.Add(b.Frozen)
	if err != nil {
		// Both operands were already overflow-checked on the way in;
		// their sum overflowing means a genuine bug, not bad input.
		panic(errs.NewInvariantViolation("Balance.Total", err))
	}
	return t
}

// Ledger holds every account's balances across all currencies.
type Ledger struct {
	rows map[Key]*Balance
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{rows: make(map[Key]*Balance)}
}

func (l *Ledger) entry(k Key) *Balance {
	b, ok := l.rows[k]
	if !ok {
		b = &Balance{Available: decimal.Zero, Frozen: decimal.Zero}
		l.rows[k] = b
	}
	return b
}

// Get returns the balance for (user, currency), or the zero balance if no
// entry exists yet.
func (l *Ledger) Get(user domain.UserID, currency domain.CurrencyID) Balance {
	b, ok := l.rows[Key{User: user, Currency: currency}]
	if !ok {
		return Balance{Available: decimal.Zero, Frozen: decimal.Zero}
	}
	return *b
}

// Credit adds amount to available, creating the row if needed. amount must
// be non-negative.
func (l *Ledger) Credit(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errs.NewInvariantViolation("Ledger.Credit", fmt.Errorf("negative credit %s", amount))
	}
	b := l.entry(Key{User: user, Currency: currency})
	sum, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	b.Available = sum
	return nil
}

// Debit subtracts amount from available. Returns a ValidationError if the
// available balance is insufficient.
func (l *Ledger) Debit(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errs.NewInvariantViolation("Ledger.Debit", fmt.Errorf("negative debit %s", amount))
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Available.Cmp(amount) < 0 {
		return errs.NewValidation(errs.InsufficientBalance, "user has %s available, needs %s", b.Available, amount)
	}
	diff, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	b.Available = diff
	return nil
}

// Freeze moves amount from available to frozen, e.g. reserving funds
// behind a resting order.
func (l *Ledger) Freeze(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errs.NewInvariantViolation("Ledger.Freeze", fmt.Errorf("negative freeze %s", amount))
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Available.Cmp(amount) < 0 {
		return errs.NewValidation(errs.InsufficientBalance, "user has %s available, needs %s to freeze", b.Available, amount)
	}
	avail, err := b.Available.Sub(amount)
	if err != nil {
		return err
	}
	frozen, err := b.Frozen.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Frozen = avail, frozen
	return nil
}

// Unfreeze moves amount from frozen back to available, e.g. refunding a
// canceled order. A shortfall here is a bug, not a user error: the caller
// is always releasing an amount it previously froze.
func (l *Ledger) Unfreeze(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errs.NewInvariantViolation("Ledger.Unfreeze", fmt.Errorf("negative unfreeze %s", amount))
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Frozen.Cmp(amount) < 0 {
		return errs.NewInvariantViolation("Ledger.Unfreeze", fmt.Errorf("unfreeze %s exceeds frozen %s for %x/%d", amount, b.Frozen, user, currency))
	}
	frozen, err := b.Frozen.Sub(amount)
	if err != nil {
		return err
	}
	avail, err := b.Available.Add(amount)
	if err != nil {
		return err
	}
	b.Available, b.Frozen = avail, frozen
	return nil
}

// DebitFrozen consumes amount directly out of frozen without returning it
// to available, used when a match consumes a maker's reserved funds. A
// shortfall is a bug: frozen is only ever drawn down by exactly what was
// reserved for the order being filled.
func (l *Ledger) DebitFrozen(user domain.UserID, currency domain.CurrencyID, amount decimal.Decimal) error {
	if amount.IsNeg() {
		return errs.NewInvariantViolation("Ledger.DebitFrozen", fmt.Errorf("negative debit %s", amount))
	}
	b := l.entry(Key{User: user, Currency: currency})
	if b.Frozen.Cmp(amount) < 0 {
		return errs.NewInvariantViolation("Ledger.DebitFrozen", fmt.Errorf("debit %s exceeds frozen %s for %x/%d", amount, b.Frozen, user, currency))
	}
	frozen, err := b.Frozen.Sub(amount)
	if err != nil {
		return err
	}
	b.Frozen = frozen
	return nil
}

// Entry is one row returned by AccountsOf, for QUERY_ACCOUNTS.
type Entry struct {
	Currency domain.CurrencyID
	Balance  Balance
}

// AccountsOf returns every currency row held by user, for QUERY_ACCOUNTS.
func (l *Ledger) AccountsOf(user domain.UserID) []Entry {
	var out []Entry
	for k, b := range l.rows {
		if k.User == user {
			out = append(out, Entry{Currency: k.Currency, Balance: *b})
		}
	}
	return out
}

// SumCurrency totals Available+Frozen across every account holding
// currency, including the fee account. Used by conservation tests.
func (l *Ledger) SumCurrency(currency domain.CurrencyID) decimal.Decimal {
	sum := decimal.Zero
	for k, b := range l.rows {
		if k.Currency != currency {
			continue
		}
		var err error
		sum, err = sum.Add(b.Total())
		if err != nil {
			panic(errs.NewInvariantViolation("Ledger.SumCurrency", err))
		}
	}
	return sum
}

// Snapshot returns a deep copy of every row, keyed identically, for the
// periodic full-state dump.
func (l *Ledger) Snapshot() map[Key]Balance {
	out := make(map[Key]Balance, len(l.rows))
	for k, b := range l.rows {
		out[k] = *b
	}
	return out
}

// Restore replaces the ledger's contents with rows, for recovery.
func (l *Ledger) Restore(rows map[Key]Balance) {
	l.rows = make(map[Key]*Balance, len(rows))
	for k, b := range rows {
		cp := b
		l.rows[k] = &cp
	}
}
