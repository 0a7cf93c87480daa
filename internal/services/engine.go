package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
)

// Engine orchestrates the recorder, netting engine and settlement allocator
// over one ledger store. It holds no state beyond the store; every operation
// either fully applies or leaves the ledger unchanged.
type Engine struct {
	store  ledger.Store
	events EventPublisher
	now    func() time.Time
	newID  func() string
}

func NewEngine(store ledger.Store, events EventPublisher) *Engine {
	return &Engine{
		store:  store,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

type RecordExpenseInput struct {
	BoardID      string
	PayerID      string
	Description  string
	Amount       core.Money
	Category     string
	Participants []string
	Date         time.Time
}

// RecordExpense validates the input, writes the expense and its obligations
// atomically, then synchronously nets each debtor against the payer. The
// returned obligations reflect the post-netting state.
func (e *Engine) RecordExpense(ctx context.Context, in RecordExpenseInput) (core.Expense, []core.DebtObligation, error) {
	board, err := e.store.GetBoard(ctx, in.BoardID)
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("load board: %w", err)
	}

	createdAt := in.Date
	if createdAt.IsZero() {
		createdAt = e.now()
	}

	expense := core.Expense{
		ID:           e.newID(),
		BoardID:      in.BoardID,
		PayerID:      in.PayerID,
		Description:  strings.TrimSpace(in.Description),
		Amount:       in.Amount,
		Category:     strings.TrimSpace(in.Category),
		Participants: in.Participants,
		CreatedAt:    createdAt,
	}

	obligations, err := BuildObligations(board, expense, e.newID)
	if err != nil {
		return core.Expense{}, nil, err
	}

	if err := e.store.CreateExpense(ctx, expense, obligations); err != nil {
		return core.Expense{}, nil, fmt.Errorf("store expense: %w", err)
	}

	for _, o := range obligations {
		e.publishCreated(ctx, o)
	}

	for _, o := range obligations {
		if _, err := e.NetPair(ctx, in.BoardID, o.DebtorID, in.PayerID); err != nil {
			return core.Expense{}, nil, fmt.Errorf("net pair %s/%s: %w", o.DebtorID, in.PayerID, err)
		}
	}

	// Netting may have mutated the freshly created obligations.
	fresh := make([]core.DebtObligation, 0, len(obligations))
	for _, o := range obligations {
		current, err := e.store.GetObligation(ctx, o.ID)
		if err != nil {
			return core.Expense{}, nil, fmt.Errorf("reload obligation: %w", err)
		}
		fresh = append(fresh, current)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"expense_id", expense.ID,
		"board_id", expense.BoardID,
		"payer_id", expense.PayerID,
		"amount_cents", expense.Amount.Cents,
		"obligations", len(fresh))

	return expense, fresh, nil
}

// NetPair collapses mutual obligations between a and b inside one board by
// their common minimum. Running it on an already-netted pair is a no-op; a
// losing concurrent writer triggers one retry with fresh state.
func (e *Engine) NetPair(ctx context.Context, boardID, a, b string) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		aToB, err := e.store.OpenObligations(ctx, ledger.Scope{
			BoardIDs: []string{boardID}, DebtorID: a, CreditorID: b,
		})
		if err != nil {
			return 0, fmt.Errorf("open obligations %s->%s: %w", a, b, err)
		}
		bToA, err := e.store.OpenObligations(ctx, ledger.Scope{
			BoardIDs: []string{boardID}, DebtorID: b, CreditorID: a,
		})
		if err != nil {
			return 0, fmt.Errorf("open obligations %s->%s: %w", b, a, err)
		}

		plan, err := PlanNetting(aToB, bToA)
		if err != nil {
			return 0, fmt.Errorf("plan netting: %w", err)
		}
		if plan.NetCents == 0 {
			return 0, nil
		}

		err = e.store.ApplyPayments(ctx, plan.Payments)
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("apply netting payments: %w", err)
		}

		e.publishNetted(ctx, boardID, a, b, plan.NetCents)
		e.publishSettledByPayments(ctx, plan.Payments)

		slog.InfoContext(ctx, "Pair netted",
			"board_id", boardID, "user_a", a, "user_b", b, "net_cents", plan.NetCents)
		return plan.NetCents, nil
	}
	return 0, core.ErrConflict
}

// MarkObligationPaid closes a single obligation in full. Marking an already
// settled obligation reports ErrAlreadyPaid and changes nothing, so retries
// converge on the same state.
func (e *Engine) MarkObligationPaid(ctx context.Context, id string) (core.DebtObligation, error) {
	for attempt := 0; attempt < 2; attempt++ {
		o, err := e.store.GetObligation(ctx, id)
		if err != nil {
			return core.DebtObligation{}, err
		}
		if o.IsPaid {
			return o, core.ErrAlreadyPaid
		}

		updated, err := e.store.ApplyPayment(ctx, id, o.Remaining(), o.Version)
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return core.DebtObligation{}, fmt.Errorf("apply full payment: %w", err)
		}

		e.publishSettled(ctx, updated)
		return updated, nil
	}
	return core.DebtObligation{}, core.ErrConflict
}

type SettleInput struct {
	BoardIDs       []string
	DebtorID       string
	CreditorID     string
	Amount         core.Money
	IdempotencyKey string
}

type SettleResult struct {
	Closed  []core.DebtObligation
	Updated *core.DebtObligation
	// Replayed is set when the idempotency key matched a stored settlement
	// and no new mutation was performed.
	Replayed bool
}

// SettlePayment applies "creditor received Amount from debtor" across the
// debtor's open obligations in the requested board scope. A duplicate
// idempotency key replays the stored result; a concurrency conflict retries
// the whole operation once with fresh state.
func (e *Engine) SettlePayment(ctx context.Context, in SettleInput) (SettleResult, error) {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return SettleResult{}, core.ErrMissingKey
	}
	if err := in.Amount.Validate(); err != nil {
		return SettleResult{}, err
	}
	if in.DebtorID == in.CreditorID {
		return SettleResult{}, core.ErrSelfDebt
	}

	if prior, err := e.store.Settlement(ctx, in.IdempotencyKey); err == nil {
		return e.replaySettlement(ctx, prior)
	} else if !errors.Is(err, core.ErrNotFound) {
		return SettleResult{}, fmt.Errorf("lookup settlement: %w", err)
	}

	boardIDs, err := e.resolveScope(ctx, in.DebtorID, in.BoardIDs)
	if err != nil {
		return SettleResult{}, err
	}
	scope := ledger.Scope{BoardIDs: boardIDs, DebtorID: in.DebtorID, CreditorID: in.CreditorID}

	for attempt := 0; attempt < 2; attempt++ {
		open, err := e.store.OpenObligations(ctx, scope)
		if err != nil {
			return SettleResult{}, fmt.Errorf("open obligations: %w", err)
		}

		alloc, err := Allocate(open, in.Amount)
		if err != nil {
			return SettleResult{}, err
		}

		settlement := core.Settlement{
			Key:        in.IdempotencyKey,
			DebtorID:   in.DebtorID,
			CreditorID: in.CreditorID,
			Amount:     in.Amount,
			CreatedAt:  e.now(),
		}
		for _, o := range alloc.Closed {
			settlement.ClosedIDs = append(settlement.ClosedIDs, o.ID)
		}
		if alloc.Updated != nil {
			settlement.UpdatedID = alloc.Updated.ID
		}

		err = e.store.RecordSettlement(ctx, settlement, alloc.Payments)
		if errors.Is(err, core.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return SettleResult{}, fmt.Errorf("record settlement: %w", err)
		}

		for _, o := range alloc.Closed {
			e.publishSettled(ctx, o)
		}

		slog.InfoContext(ctx, "Settlement applied",
			"key", in.IdempotencyKey,
			"debtor_id", in.DebtorID,
			"creditor_id", in.CreditorID,
			"amount_cents", in.Amount.Cents,
			"closed", len(alloc.Closed),
			"partial", alloc.Updated != nil)

		return SettleResult{Closed: alloc.Closed, Updated: alloc.Updated}, nil
	}
	return SettleResult{}, core.ErrConflict
}

// CreateBoard persists a new board with its member set.
func (e *Engine) CreateBoard(ctx context.Context, name, currency string, members []string) (core.Board, error) {
	board := core.Board{
		ID:        e.newID(),
		Name:      strings.TrimSpace(name),
		Currency:  strings.ToUpper(strings.TrimSpace(currency)),
		Members:   members,
		CreatedAt: e.now(),
	}
	if err := e.store.CreateBoard(ctx, board); err != nil {
		return core.Board{}, fmt.Errorf("create board: %w", err)
	}
	slog.InfoContext(ctx, "Board created",
		"board_id", board.ID, "name", board.Name, "members", len(board.Members))
	return board, nil
}

// BoardsForMember lists the boards a user belongs to.
func (e *Engine) BoardsForMember(ctx context.Context, userID string) ([]core.Board, error) {
	return e.store.BoardsForMember(ctx, userID)
}

func (e *Engine) replaySettlement(ctx context.Context, prior core.Settlement) (SettleResult, error) {
	result := SettleResult{Replayed: true}
	for _, id := range prior.ClosedIDs {
		o, err := e.store.GetObligation(ctx, id)
		if err != nil {
			return SettleResult{}, fmt.Errorf("reload settled obligation: %w", err)
		}
		result.Closed = append(result.Closed, o)
	}
	if prior.UpdatedID != "" {
		o, err := e.store.GetObligation(ctx, prior.UpdatedID)
		if err != nil {
			return SettleResult{}, fmt.Errorf("reload updated obligation: %w", err)
		}
		result.Updated = &o
	}
	slog.InfoContext(ctx, "Settlement replayed from idempotency key", "key", prior.Key)
	return result, nil
}

// resolveScope expands an empty board scope to all of the debtor's boards
// and rejects explicit boards the debtor does not belong to.
func (e *Engine) resolveScope(ctx context.Context, debtorID string, requested []string) ([]string, error) {
	boards, err := e.store.BoardsForMember(ctx, debtorID)
	if err != nil {
		return nil, fmt.Errorf("boards for debtor: %w", err)
	}

	memberOf := make(map[string]bool, len(boards))
	for _, b := range boards {
		memberOf[b.ID] = true
	}

	if len(requested) == 0 {
		ids := make([]string, 0, len(boards))
		for _, b := range boards {
			ids = append(ids, b.ID)
		}
		return ids, nil
	}

	for _, id := range requested {
		if !memberOf[id] {
			return nil, fmt.Errorf("board %s: %w", id, core.ErrScopeMismatch)
		}
	}
	return requested, nil
}

func (e *Engine) publishCreated(ctx context.Context, o core.DebtObligation) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishObligationCreated(ctx, o); err != nil {
		slog.ErrorContext(ctx, "Failed to publish obligation created event",
			"obligation_id", o.ID, "error", err)
	}
}

func (e *Engine) publishSettled(ctx context.Context, o core.DebtObligation) {
	if e.events == nil || !o.IsPaid {
		return
	}
	if err := e.events.PublishObligationSettled(ctx, o); err != nil {
		slog.ErrorContext(ctx, "Failed to publish obligation settled event",
			"obligation_id", o.ID, "error", err)
	}
}

// publishSettledByPayments re-reads the obligations a netting pass touched
// and publishes settled events for the ones it closed.
func (e *Engine) publishSettledByPayments(ctx context.Context, payments []ledger.Payment) {
	if e.events == nil {
		return
	}
	for _, p := range payments {
		o, err := e.store.GetObligation(ctx, p.ObligationID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to reload obligation for event",
				"obligation_id", p.ObligationID, "error", err)
			continue
		}
		e.publishSettled(ctx, o)
	}
}

func (e *Engine) publishNetted(ctx context.Context, boardID, a, b string, netCents int64) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishPairNetted(ctx, boardID, a, b, netCents); err != nil {
		slog.ErrorContext(ctx, "Failed to publish pair netted event",
			"board_id", boardID, "error", err)
	}
}
