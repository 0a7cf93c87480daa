package services

import (
	"context"
	"testing"
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
	"github.com/zivstay/Homis-sub000/internal/ledger/memory"
)

func seedAggregatorStore(t *testing.T) (*memory.Store, *Engine) {
	t.Helper()
	store := memory.NewStore()
	engine := NewEngine(store, nil)
	ctx := context.Background()

	for _, b := range []core.Board{
		{ID: "flat", Name: "Flat", Currency: "EUR", Members: []string{"alice", "bob"}},
		{ID: "trip", Name: "Trip", Currency: "EUR", Members: []string{"alice", "bob", "carol"}},
	} {
		if err := store.CreateBoard(ctx, b); err != nil {
			t.Fatalf("CreateBoard %s: %v", b.ID, err)
		}
	}

	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	inputs := []RecordExpenseInput{
		{BoardID: "flat", PayerID: "bob", Amount: core.Money{Cents: 2000}, Category: "groceries", Participants: []string{"alice", "bob"}, Date: march},
		{BoardID: "flat", PayerID: "alice", Amount: core.Money{Cents: 1000}, Category: "utilities", Participants: []string{"alice", "bob"}, Date: april},
		{BoardID: "trip", PayerID: "carol", Amount: core.Money{Cents: 3000}, Category: "groceries", Participants: []string{"alice", "bob", "carol"}, Date: april},
	}
	for _, in := range inputs {
		if _, _, err := engine.RecordExpense(ctx, in); err != nil {
			t.Fatalf("RecordExpense: %v", err)
		}
	}
	return store, engine
}

func TestExpenseSummaryPartitionsTotals(t *testing.T) {
	store, _ := seedAggregatorStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	summary, err := agg.ExpenseSummary(ctx, "alice", nil, ledger.Window{})
	if err != nil {
		t.Fatalf("ExpenseSummary: %v", err)
	}

	if summary.TotalExpenses != 3 || summary.TotalAmount.Cents != 6000 {
		t.Fatalf("totals = %d expenses / %d cents, want 3 / 6000",
			summary.TotalExpenses, summary.TotalAmount.Cents)
	}

	// Every grouping must partition the same total exactly.
	for name, group := range map[string]map[string]core.Money{
		"category": summary.ByCategory,
		"board":    summary.ByBoard,
		"month":    summary.ByMonth,
	} {
		var sum int64
		for _, v := range group {
			sum += v.Cents
		}
		if sum != summary.TotalAmount.Cents {
			t.Errorf("by-%s sums to %d, want %d", name, sum, summary.TotalAmount.Cents)
		}
	}

	if summary.ByCategory["groceries"].Cents != 5000 {
		t.Errorf("groceries = %d, want 5000", summary.ByCategory["groceries"].Cents)
	}
	if summary.ByMonth["2026-03"].Cents != 2000 || summary.ByMonth["2026-04"].Cents != 4000 {
		t.Errorf("by month = %v", summary.ByMonth)
	}
}

func TestExpenseSummaryWindowIsHalfOpen(t *testing.T) {
	store, _ := seedAggregatorStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	// [march 10, april 2) excludes the two expenses created exactly at the
	// end bound.
	window := ledger.Window{
		Start: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
	}
	summary, err := agg.ExpenseSummary(ctx, "alice", nil, window)
	if err != nil {
		t.Fatalf("ExpenseSummary: %v", err)
	}
	if summary.TotalExpenses != 1 || summary.TotalAmount.Cents != 2000 {
		t.Fatalf("windowed totals = %d / %d, want 1 / 2000 (end bound must be exclusive)",
			summary.TotalExpenses, summary.TotalAmount.Cents)
	}
}

func TestExpenseSummaryBoardFilter(t *testing.T) {
	store, _ := seedAggregatorStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	summary, err := agg.ExpenseSummary(ctx, "alice", []string{"trip"}, ledger.Window{})
	if err != nil {
		t.Fatalf("ExpenseSummary: %v", err)
	}
	if summary.TotalExpenses != 1 || summary.TotalAmount.Cents != 3000 {
		t.Fatalf("trip totals = %d / %d, want 1 / 3000", summary.TotalExpenses, summary.TotalAmount.Cents)
	}
}

func TestDebtSummaryDirections(t *testing.T) {
	store, _ := seedAggregatorStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	// Ledger state for alice after seeding and synchronous netting:
	//   flat: alice->bob 1000 netted against bob->alice 500, leaving 500 open.
	//   trip: alice->carol 1000 open.
	summary, err := agg.DebtSummary(ctx, "alice", nil, ledger.Window{})
	if err != nil {
		t.Fatalf("DebtSummary: %v", err)
	}

	if summary.TotalOwed.Cents != 1500 {
		t.Fatalf("TotalOwed = %d, want 1500", summary.TotalOwed.Cents)
	}
	if summary.TotalOwedToMe.Cents != 0 {
		t.Fatalf("TotalOwedToMe = %d, want 0 (netting closed bob's debt)", summary.TotalOwedToMe.Cents)
	}
	if summary.IOweByUser["bob"].Cents != 500 || summary.IOweByUser["carol"].Cents != 1000 {
		t.Fatalf("IOweByUser = %v", summary.IOweByUser)
	}
	if len(summary.OwedToMeByUser) != 0 {
		t.Fatalf("OwedToMeByUser = %v, want empty", summary.OwedToMeByUser)
	}

	// Unpaid + paid must partition the original totals of both directions.
	var original int64
	obligations, err := store.Obligations(ctx, ledger.Scope{DebtorID: "alice"}, ledger.Window{})
	if err != nil {
		t.Fatalf("Obligations: %v", err)
	}
	reverse, err := store.Obligations(ctx, ledger.Scope{CreditorID: "alice"}, ledger.Window{})
	if err != nil {
		t.Fatalf("Obligations: %v", err)
	}
	for _, o := range append(obligations, reverse...) {
		original += o.Original.Cents
	}
	if summary.TotalUnpaid.Cents+summary.TotalPaid.Cents != original {
		t.Fatalf("unpaid %d + paid %d != original %d",
			summary.TotalUnpaid.Cents, summary.TotalPaid.Cents, original)
	}
}

func TestDebtSummaryCallerWithoutBoardsSeesNothing(t *testing.T) {
	store, _ := seedAggregatorStore(t)
	agg := NewAggregator(store)

	summary, err := agg.DebtSummary(context.Background(), "stranger", nil, ledger.Window{})
	if err != nil {
		t.Fatalf("DebtSummary: %v", err)
	}
	if summary.TotalOwed.Cents != 0 || summary.TotalOwedToMe.Cents != 0 || summary.TotalUnpaid.Cents != 0 {
		t.Fatalf("stranger sees data: %+v", summary)
	}
}
