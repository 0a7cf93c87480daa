package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// User is a participant in one or more boards. Identity and session
	// handling live outside the engine; only the id matters here.
	User struct {
		ID          string
		DisplayName string
	}

	// Board is a named group of users sharing expenses under one currency.
	Board struct {
		ID        string
		Name      string
		Currency  string
		Members   []string
		CreatedAt time.Time
	}

	// Expense is immutable once created. Splitting it into obligations is
	// the recorder's job; the expense itself only records what was paid.
	Expense struct {
		ID           string
		BoardID      string
		PayerID      string
		Description  string
		Amount       Money
		Category     string
		Participants []string
		CreatedAt    time.Time
	}

	// DebtObligation is a directed claim: debtor owes creditor within a
	// board. Original never changes after creation; Paid only grows.
	DebtObligation struct {
		ID          string
		BoardID     string
		DebtorID    string
		CreditorID  string
		Description string
		Original    Money
		Paid        Money
		IsPaid      bool
		Version     int64
		CreatedAt   time.Time
		SettledAt   *time.Time
	}

	// Settlement is the recorded outcome of applying one real-world payment
	// across a debtor's open obligations, keyed by the caller's idempotency
	// key so a network retry returns the stored result instead of paying twice.
	Settlement struct {
		Key        string
		DebtorID   string
		CreditorID string
		Amount     Money
		ClosedIDs  []string
		UpdatedID  string
		CreatedAt  time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNoParticipants   = errors.New("empty participant list")
	ErrNotBoardMember   = errors.New("user is not a board member")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
	ErrSelfDebt         = errors.New("debtor and creditor are the same user")
	ErrMissingKey       = errors.New("missing idempotency key")

	ErrNotFound          = errors.New("not found")
	ErrAlreadyPaid       = errors.New("obligation already paid")
	ErrAmountExceedsDebt = errors.New("amount exceeds open debt")
	ErrNoOpenDebt        = errors.New("no open debt")
	ErrConflict          = errors.New("concurrent modification")
	ErrScopeMismatch     = errors.New("board outside requested scope")
)

// IsValidation reports whether err belongs to the validation error family,
// as opposed to conflicts or missing records.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNoParticipants) ||
		errors.Is(err, ErrNotBoardMember) ||
		errors.Is(err, ErrEmptyCategory) ||
		errors.Is(err, ErrEmptyDescription) ||
		errors.Is(err, ErrSelfDebt) ||
		errors.Is(err, ErrMissingKey)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Board) HasMember(userID string) bool {
	for _, m := range b.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (b Board) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("empty board name")
	}
	if strings.TrimSpace(b.Currency) == "" {
		return errors.New("empty currency code")
	}
	if len(b.Members) == 0 {
		return ErrNoParticipants
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(e.Participants) == 0 {
		return ErrNoParticipants
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Remaining is the still-open part of the obligation.
func (o DebtObligation) Remaining() Money {
	return Money{Cents: o.Original.Cents - o.Paid.Cents}
}

// Validate checks the obligation invariants: paid stays within
// [0, original], is_paid tracks a zero remainder, and self-debts never exist.
func (o DebtObligation) Validate() error {
	if o.Original.Cents <= 0 {
		return ErrInvalidAmount
	}
	if o.Paid.Cents < 0 || o.Paid.Cents > o.Original.Cents {
		return errors.New("paid amount out of range")
	}
	if o.IsPaid != (o.Remaining().Cents == 0) {
		return errors.New("is_paid does not match remaining amount")
	}
	if o.DebtorID == o.CreditorID {
		return ErrSelfDebt
	}
	return nil
}
