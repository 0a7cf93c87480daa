// Package ledger defines the obligation ledger contract. The engine's
// algorithms run against this interface unmodified, whether the store is the
// embedded in-memory one (offline/local mode) or the durable sqlite one.
package ledger

import (
	"context"
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
)

// Scope narrows a query to a set of boards and, optionally, to one side of
// the obligation. Empty BoardIDs means every board visible to the caller.
type Scope struct {
	BoardIDs   []string
	DebtorID   string
	CreditorID string
}

// Window is a half-open [Start, End) time interval. A zero End means
// unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !t.Before(w.End) {
		return false
	}
	return true
}

// Matches reports whether the obligation satisfies the scope filters.
func (s Scope) Matches(o core.DebtObligation) bool {
	if s.DebtorID != "" && o.DebtorID != s.DebtorID {
		return false
	}
	if s.CreditorID != "" && o.CreditorID != s.CreditorID {
		return false
	}
	return s.matchesBoard(o.BoardID)
}

// MatchesExpense reports whether the expense falls inside the scope's
// boards. Debtor/creditor filters do not apply to expenses.
func (s Scope) MatchesExpense(e core.Expense) bool {
	return s.matchesBoard(e.BoardID)
}

func (s Scope) matchesBoard(boardID string) bool {
	if len(s.BoardIDs) == 0 {
		return true
	}
	for _, id := range s.BoardIDs {
		if id == boardID {
			return true
		}
	}
	return false
}

// Payment is one version-checked mutation of a single obligation. Amount is
// added to the obligation's paid total; ExpectedVersion must match the
// stored version or the whole batch fails with core.ErrConflict.
type Payment struct {
	ObligationID    string
	Amount          core.Money
	ExpectedVersion int64
}

// Store is the ledger: sole owner and sole mutator of obligation records.
// Every mutating method is atomic; a failed call leaves the store unchanged.
type Store interface {
	CreateBoard(ctx context.Context, b core.Board) error
	GetBoard(ctx context.Context, id string) (core.Board, error)
	BoardsForMember(ctx context.Context, userID string) ([]core.Board, error)

	// CreateExpense stores the expense and its obligations in one commit.
	CreateExpense(ctx context.Context, e core.Expense, obligations []core.DebtObligation) error

	GetObligation(ctx context.Context, id string) (core.DebtObligation, error)

	// OpenObligations returns unpaid obligations matching the scope, in no
	// particular order; callers sort.
	OpenObligations(ctx context.Context, scope Scope) ([]core.DebtObligation, error)

	// Obligations returns all obligations (paid and open) matching the scope
	// whose creation time falls inside the window.
	Obligations(ctx context.Context, scope Scope, window Window) ([]core.DebtObligation, error)

	Expenses(ctx context.Context, scope Scope, window Window) ([]core.Expense, error)

	// ApplyPayment adds amount to one obligation's paid total under an
	// optimistic version check and returns the updated record.
	ApplyPayment(ctx context.Context, id string, amount core.Money, expectedVersion int64) (core.DebtObligation, error)

	// ApplyPayments commits a batch of version-checked payments atomically.
	ApplyPayments(ctx context.Context, payments []Payment) error

	// Settlement returns a previously recorded settlement by idempotency
	// key, or core.ErrNotFound.
	Settlement(ctx context.Context, key string) (core.Settlement, error)

	// RecordSettlement commits the payments and the settlement record in
	// one transaction, so a retried idempotency key can never observe the
	// payments applied without the record.
	RecordSettlement(ctx context.Context, s core.Settlement, payments []Payment) error

	Close() error
}
