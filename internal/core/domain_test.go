package core

import (
	"errors"
	"testing"
)

func TestMoneyValidate(t *testing.T) {
	cases := []struct {
		cents int64
		ok    bool
	}{
		{100, true},
		{1, true},
		{0, false},
		{-50, false},
	}
	for _, tc := range cases {
		err := Money{Cents: tc.cents}.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%d cents: unexpected error %v", tc.cents, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%d cents: expected ErrInvalidAmount, got %v", tc.cents, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		Amount:       Money{Cents: 1200},
		Category:     "groceries",
		Participants: []string{"alice", "bob"},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero amount", func(e *Expense) { e.Amount.Cents = 0 }, ErrInvalidAmount},
		{"no participants", func(e *Expense) { e.Participants = nil }, ErrNoParticipants},
		{"blank category", func(e *Expense) { e.Category = "  " }, ErrEmptyCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestObligationValidate(t *testing.T) {
	valid := DebtObligation{
		DebtorID:   "alice",
		CreditorID: "bob",
		Original:   Money{Cents: 500},
		Paid:       Money{Cents: 200},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid obligation rejected: %v", err)
	}

	t.Run("self debt", func(t *testing.T) {
		o := valid
		o.CreditorID = o.DebtorID
		if err := o.Validate(); !errors.Is(err, ErrSelfDebt) {
			t.Fatalf("expected ErrSelfDebt, got %v", err)
		}
	})

	t.Run("paid beyond original", func(t *testing.T) {
		o := valid
		o.Paid.Cents = 600
		if err := o.Validate(); err == nil {
			t.Fatal("expected error for overpaid obligation")
		}
	})

	t.Run("is_paid must track remaining", func(t *testing.T) {
		o := valid
		o.IsPaid = true // remaining is 300
		if err := o.Validate(); err == nil {
			t.Fatal("expected error for is_paid mismatch")
		}

		o.Paid = o.Original
		if err := o.Validate(); err != nil {
			t.Fatalf("fully paid obligation rejected: %v", err)
		}
	})
}

func TestRemaining(t *testing.T) {
	o := DebtObligation{Original: Money{Cents: 500}, Paid: Money{Cents: 180}}
	if got := o.Remaining().Cents; got != 320 {
		t.Fatalf("Remaining = %d, want 320", got)
	}
}

func TestIsValidation(t *testing.T) {
	for _, err := range []error{
		ErrInvalidAmount, ErrNoParticipants, ErrNotBoardMember,
		ErrEmptyCategory, ErrEmptyDescription, ErrSelfDebt, ErrMissingKey,
	} {
		if !IsValidation(err) {
			t.Errorf("%v should be a validation error", err)
		}
	}
	for _, err := range []error{ErrNotFound, ErrConflict, ErrAlreadyPaid, ErrScopeMismatch} {
		if IsValidation(err) {
			t.Errorf("%v should not be a validation error", err)
		}
	}
}
