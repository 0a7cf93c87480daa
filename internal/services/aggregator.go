package services

import (
	"context"
	"fmt"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
)

// Aggregator is the read side of the engine: it only ever queries the ledger
// and produces summaries whose group sums partition their totals exactly.
type Aggregator struct {
	store ledger.Store
}

func NewAggregator(store ledger.Store) *Aggregator {
	return &Aggregator{store: store}
}

type ExpenseSummary struct {
	TotalAmount   core.Money
	TotalExpenses int
	ByCategory    map[string]core.Money
	ByBoard       map[string]core.Money
	ByMonth       map[string]core.Money
}

type DebtSummary struct {
	// TotalOwed sums remaining amounts where the caller is the debtor;
	// TotalOwedToMe where the caller is the creditor. TotalUnpaid and
	// TotalPaid cover both directions of the caller's obligations created
	// in the window, so unpaid + paid equals the original total.
	TotalOwed     core.Money
	TotalOwedToMe core.Money
	TotalUnpaid   core.Money
	TotalPaid     core.Money

	// Open obligations grouped by the other party, for the per-person
	// settle-up view.
	IOweByUser     map[string]core.Money
	OwedToMeByUser map[string]core.Money
}

// ExpenseSummary aggregates expenses over the caller's board scope and a
// half-open time window. An empty board scope means every board the caller
// belongs to.
func (a *Aggregator) ExpenseSummary(ctx context.Context, callerID string, boardIDs []string, window ledger.Window) (ExpenseSummary, error) {
	scope, err := a.resolveScope(ctx, callerID, boardIDs)
	if err != nil {
		return ExpenseSummary{}, err
	}

	expenses, err := a.store.Expenses(ctx, scope, window)
	if err != nil {
		return ExpenseSummary{}, fmt.Errorf("load expenses: %w", err)
	}

	summary := ExpenseSummary{
		ByCategory: make(map[string]core.Money),
		ByBoard:    make(map[string]core.Money),
		ByMonth:    make(map[string]core.Money),
	}
	for _, e := range expenses {
		summary.TotalAmount.Cents += e.Amount.Cents
		summary.TotalExpenses++
		addCents(summary.ByCategory, e.Category, e.Amount.Cents)
		addCents(summary.ByBoard, e.BoardID, e.Amount.Cents)
		addCents(summary.ByMonth, e.CreatedAt.UTC().Format("2006-01"), e.Amount.Cents)
	}
	return summary, nil
}

// DebtSummary aggregates the caller's obligations in both directions over the
// board scope and window.
func (a *Aggregator) DebtSummary(ctx context.Context, callerID string, boardIDs []string, window ledger.Window) (DebtSummary, error) {
	scope, err := a.resolveScope(ctx, callerID, boardIDs)
	if err != nil {
		return DebtSummary{}, err
	}

	debtorSide := scope
	debtorSide.DebtorID = callerID
	owed, err := a.store.Obligations(ctx, debtorSide, window)
	if err != nil {
		return DebtSummary{}, fmt.Errorf("load debtor obligations: %w", err)
	}

	creditorSide := scope
	creditorSide.CreditorID = callerID
	owedToMe, err := a.store.Obligations(ctx, creditorSide, window)
	if err != nil {
		return DebtSummary{}, fmt.Errorf("load creditor obligations: %w", err)
	}

	summary := DebtSummary{
		IOweByUser:     make(map[string]core.Money),
		OwedToMeByUser: make(map[string]core.Money),
	}
	for _, o := range owed {
		summary.TotalOwed.Cents += o.Remaining().Cents
		summary.TotalUnpaid.Cents += o.Remaining().Cents
		summary.TotalPaid.Cents += o.Paid.Cents
		if !o.IsPaid {
			addCents(summary.IOweByUser, o.CreditorID, o.Remaining().Cents)
		}
	}
	for _, o := range owedToMe {
		summary.TotalOwedToMe.Cents += o.Remaining().Cents
		summary.TotalUnpaid.Cents += o.Remaining().Cents
		summary.TotalPaid.Cents += o.Paid.Cents
		if !o.IsPaid {
			addCents(summary.OwedToMeByUser, o.DebtorID, o.Remaining().Cents)
		}
	}
	return summary, nil
}

func (a *Aggregator) resolveScope(ctx context.Context, callerID string, boardIDs []string) (ledger.Scope, error) {
	if len(boardIDs) > 0 {
		return ledger.Scope{BoardIDs: boardIDs}, nil
	}
	boards, err := a.store.BoardsForMember(ctx, callerID)
	if err != nil {
		return ledger.Scope{}, fmt.Errorf("boards for caller: %w", err)
	}
	ids := make([]string, 0, len(boards))
	for _, b := range boards {
		ids = append(ids, b.ID)
	}
	// A caller with no boards sees nothing rather than everything.
	if len(ids) == 0 {
		ids = []string{""}
	}
	return ledger.Scope{BoardIDs: ids}, nil
}

func addCents(m map[string]core.Money, key string, cents int64) {
	v := m[key]
	v.Cents += cents
	m[key] = v
}
