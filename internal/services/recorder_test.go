package services

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
)

func testBoard(members ...string) core.Board {
	return core.Board{
		ID:       "board-1",
		Name:     "Flat 12",
		Currency: "EUR",
		Members:  members,
	}
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

func TestBuildObligationsSkipsPayer(t *testing.T) {
	board := testBoard("alice", "bob", "carol")
	expense := core.Expense{
		ID:           "exp-1",
		BoardID:      board.ID,
		PayerID:      "bob",
		Amount:       core.Money{Cents: 3000},
		Category:     "groceries",
		Participants: []string{"alice", "bob", "carol"},
		CreatedAt:    time.Now().UTC(),
	}

	obligations, err := BuildObligations(board, expense, sequentialIDs("o"))
	if err != nil {
		t.Fatalf("BuildObligations: %v", err)
	}

	if len(obligations) != 2 {
		t.Fatalf("got %d obligations, want 2 (payer share is not a debt)", len(obligations))
	}
	for _, o := range obligations {
		if o.DebtorID == "bob" {
			t.Fatalf("payer ended up as debtor: %+v", o)
		}
		if o.CreditorID != "bob" {
			t.Fatalf("creditor = %s, want bob", o.CreditorID)
		}
		if o.Original.Cents != 1000 {
			t.Fatalf("share = %d, want 1000", o.Original.Cents)
		}
	}
}

func TestBuildObligationsRemainderGoesToFirstParticipants(t *testing.T) {
	board := testBoard("alice", "bob", "carol")
	expense := core.Expense{
		ID:           "exp-1",
		BoardID:      board.ID,
		PayerID:      "carol",
		Amount:       core.Money{Cents: 100},
		Category:     "coffee",
		Participants: []string{"carol", "bob", "alice"}, // unsorted on purpose
		CreatedAt:    time.Now().UTC(),
	}

	obligations, err := BuildObligations(board, expense, sequentialIDs("o"))
	if err != nil {
		t.Fatalf("BuildObligations: %v", err)
	}

	// Sorted participant order is alice, bob, carol; 100/3 leaves one extra
	// cent on alice.
	shares := map[string]int64{}
	for _, o := range obligations {
		shares[o.DebtorID] = o.Original.Cents
	}
	if shares["alice"] != 34 || shares["bob"] != 33 {
		t.Fatalf("shares = %v, want alice=34 bob=33", shares)
	}
}

func TestBuildObligationsRejectsNonMembers(t *testing.T) {
	board := testBoard("alice", "bob")

	t.Run("payer outside board", func(t *testing.T) {
		expense := core.Expense{
			BoardID:      board.ID,
			PayerID:      "mallory",
			Amount:       core.Money{Cents: 1000},
			Category:     "rent",
			Participants: []string{"alice", "bob"},
		}
		_, err := BuildObligations(board, expense, sequentialIDs("o"))
		if !errors.Is(err, core.ErrNotBoardMember) {
			t.Fatalf("expected ErrNotBoardMember, got %v", err)
		}
	})

	t.Run("participant outside board", func(t *testing.T) {
		expense := core.Expense{
			BoardID:      board.ID,
			PayerID:      "alice",
			Amount:       core.Money{Cents: 1000},
			Category:     "rent",
			Participants: []string{"alice", "mallory"},
		}
		_, err := BuildObligations(board, expense, sequentialIDs("o"))
		if !errors.Is(err, core.ErrNotBoardMember) {
			t.Fatalf("expected ErrNotBoardMember, got %v", err)
		}
	})
}

func TestBuildObligationsSharesSumToAmount(t *testing.T) {
	board := testBoard("alice", "bob", "carol", "dave")
	expense := core.Expense{
		BoardID:      board.ID,
		PayerID:      "dave",
		Amount:       core.Money{Cents: 9999},
		Category:     "utilities",
		Participants: []string{"alice", "bob", "carol", "dave"},
		CreatedAt:    time.Now().UTC(),
	}

	obligations, err := BuildObligations(board, expense, sequentialIDs("o"))
	if err != nil {
		t.Fatalf("BuildObligations: %v", err)
	}

	var debts int64
	for _, o := range obligations {
		debts += o.Original.Cents
	}
	// Total debts plus the payer's own share must equal the expense amount.
	payerShare := expense.Amount.Cents - debts
	if payerShare < 2499 || payerShare > 2500 {
		t.Fatalf("payer share = %d, debts = %d; shares do not partition %d",
			payerShare, debts, expense.Amount.Cents)
	}
}
