// Package memory implements the ledger contract as an embedded in-process
// store. It backs the offline/local mode and the engine's tests; the
// algorithms above it never notice the difference from the sqlite store.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
)

type Store struct {
	mu          sync.RWMutex
	boards      map[string]core.Board
	expenses    map[string]core.Expense
	obligations map[string]core.DebtObligation
	settlements map[string]core.Settlement
}

var _ ledger.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		boards:      make(map[string]core.Board),
		expenses:    make(map[string]core.Expense),
		obligations: make(map[string]core.DebtObligation),
		settlements: make(map[string]core.Settlement),
	}
}

func (s *Store) CreateBoard(_ context.Context, b core.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.boards[b.ID]; exists {
		return errors.New("board id already exists")
	}
	s.boards[b.ID] = cloneBoard(b)
	return nil
}

func (s *Store) GetBoard(_ context.Context, id string) (core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[id]
	if !ok {
		return core.Board{}, core.ErrNotFound
	}
	return cloneBoard(b), nil
}

func (s *Store) BoardsForMember(_ context.Context, userID string) ([]core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Board
	for _, b := range s.boards {
		if b.HasMember(userID) {
			out = append(out, cloneBoard(b))
		}
	}
	return out, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense, obligations []core.DebtObligation) error {
	for _, o := range obligations {
		if err := o.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.expenses[e.ID]; exists {
		return errors.New("expense id already exists")
	}
	for _, o := range obligations {
		if _, exists := s.obligations[o.ID]; exists {
			return errors.New("obligation id already exists")
		}
	}

	s.expenses[e.ID] = e
	for _, o := range obligations {
		s.obligations[o.ID] = o
	}
	return nil
}

func (s *Store) GetObligation(_ context.Context, id string) (core.DebtObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.obligations[id]
	if !ok {
		return core.DebtObligation{}, core.ErrNotFound
	}
	return o, nil
}

func (s *Store) OpenObligations(_ context.Context, scope ledger.Scope) ([]core.DebtObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.DebtObligation
	for _, o := range s.obligations {
		if !o.IsPaid && scope.Matches(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) Obligations(_ context.Context, scope ledger.Scope, window ledger.Window) ([]core.DebtObligation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.DebtObligation
	for _, o := range s.obligations {
		if scope.Matches(o) && window.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) Expenses(_ context.Context, scope ledger.Scope, window ledger.Window) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Expense
	for _, e := range s.expenses {
		if scope.MatchesExpense(e) && window.Contains(e.CreatedAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ApplyPayment(_ context.Context, id string, amount core.Money, expectedVersion int64) (core.DebtObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.applyLocked(ledger.Payment{ObligationID: id, Amount: amount, ExpectedVersion: expectedVersion})
	if err != nil {
		return core.DebtObligation{}, err
	}
	s.obligations[id] = updated
	return updated, nil
}

func (s *Store) ApplyPayments(_ context.Context, payments []ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyBatchLocked(payments)
}

func (s *Store) Settlement(_ context.Context, key string) (core.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.settlements[key]
	if !ok {
		return core.Settlement{}, core.ErrNotFound
	}
	return st, nil
}

func (s *Store) RecordSettlement(_ context.Context, settlement core.Settlement, payments []ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.settlements[settlement.Key]; exists {
		return core.ErrConflict
	}
	if err := s.applyBatchLocked(payments); err != nil {
		return err
	}
	s.settlements[settlement.Key] = settlement
	return nil
}

func (s *Store) Close() error { return nil }

// applyBatchLocked validates every payment before touching state, so a bad
// entry anywhere in the batch leaves the store unchanged.
func (s *Store) applyBatchLocked(payments []ledger.Payment) error {
	staged := make([]core.DebtObligation, 0, len(payments))
	for _, p := range payments {
		updated, err := s.applyLocked(p)
		if err != nil {
			return err
		}
		staged = append(staged, updated)
	}
	for _, o := range staged {
		s.obligations[o.ID] = o
	}
	return nil
}

func (s *Store) applyLocked(p ledger.Payment) (core.DebtObligation, error) {
	o, ok := s.obligations[p.ObligationID]
	if !ok {
		return core.DebtObligation{}, core.ErrNotFound
	}
	if o.Version != p.ExpectedVersion {
		return core.DebtObligation{}, core.ErrConflict
	}
	if p.Amount.Cents <= 0 {
		return core.DebtObligation{}, core.ErrInvalidAmount
	}
	if p.Amount.Cents > o.Remaining().Cents {
		return core.DebtObligation{}, core.ErrAmountExceedsDebt
	}

	o.Paid.Cents += p.Amount.Cents
	o.Version++
	if o.Remaining().Cents == 0 {
		o.IsPaid = true
		now := time.Now().UTC()
		o.SettledAt = &now
	}
	return o, nil
}

func cloneBoard(b core.Board) core.Board {
	b.Members = append([]string(nil), b.Members...)
	return b
}
