// Package sqlite implements the durable ledger store on an embedded sqlite
// database. All multi-row mutations run inside transactions; transient busy
// errors are retried with bounded backoff so only exhausted retries surface
// to the caller.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	busyRetries = 3
	busyBackoff = 50 * time.Millisecond
)

type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) CreateBoard(ctx context.Context, b core.Board) error {
	if err := b.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO boards (id, name, currency, created_at) VALUES (?, ?, ?, ?)`,
			b.ID, b.Name, b.Currency, b.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert board: %w", err)
		}
		for _, m := range b.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO board_members (board_id, user_id) VALUES (?, ?)`,
				b.ID, m); err != nil {
				return fmt.Errorf("insert board member: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) GetBoard(ctx context.Context, id string) (core.Board, error) {
	var b core.Board
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, currency, created_at FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Currency, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Board{}, core.ErrNotFound
	}
	if err != nil {
		return core.Board{}, fmt.Errorf("get board: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM board_members WHERE board_id = ? ORDER BY user_id`, id)
	if err != nil {
		return core.Board{}, fmt.Errorf("get board members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return core.Board{}, fmt.Errorf("scan board member: %w", err)
		}
		b.Members = append(b.Members, userID)
	}
	return b, rows.Err()
}

func (s *Store) BoardsForMember(ctx context.Context, userID string) ([]core.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT board_id FROM board_members WHERE user_id = ? ORDER BY board_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("boards for member: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan board id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	boards := make([]core.Board, 0, len(ids))
	for _, id := range ids {
		b, err := s.GetBoard(ctx, id)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func (s *Store) CreateExpense(ctx context.Context, e core.Expense, obligations []core.DebtObligation) error {
	for _, o := range obligations {
		if err := o.Validate(); err != nil {
			return err
		}
	}

	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, board_id, payer_id, description, amount_cents, category, participants, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.BoardID, e.PayerID, e.Description, e.Amount.Cents, e.Category, string(participants), e.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}

		for _, o := range obligations {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO obligations (id, board_id, debtor_id, creditor_id, description, original_cents, paid_cents, is_paid, version, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?)`,
				o.ID, o.BoardID, o.DebtorID, o.CreditorID, o.Description, o.Original.Cents, o.CreatedAt.UTC())
			if err != nil {
				return fmt.Errorf("insert obligation: %w", err)
			}
		}
		return nil
	})
}

const obligationColumns = `id, board_id, debtor_id, creditor_id, description,
	original_cents, paid_cents, is_paid, version, created_at, settled_at`

func scanObligation(row interface{ Scan(...any) error }) (core.DebtObligation, error) {
	var (
		o         core.DebtObligation
		settledAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.BoardID, &o.DebtorID, &o.CreditorID, &o.Description,
		&o.Original.Cents, &o.Paid.Cents, &o.IsPaid, &o.Version, &o.CreatedAt, &settledAt)
	if err != nil {
		return core.DebtObligation{}, err
	}
	if settledAt.Valid {
		t := settledAt.Time
		o.SettledAt = &t
	}
	return o, nil
}

func (s *Store) GetObligation(ctx context.Context, id string) (core.DebtObligation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, id)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DebtObligation{}, core.ErrNotFound
	}
	if err != nil {
		return core.DebtObligation{}, fmt.Errorf("get obligation: %w", err)
	}
	return o, nil
}

func (s *Store) OpenObligations(ctx context.Context, scope ledger.Scope) ([]core.DebtObligation, error) {
	where, args := scopeClauses(scope)
	where = append(where, "is_paid = 0")

	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE ` + strings.Join(where, " AND ")
	return s.queryObligations(ctx, query, args)
}

func (s *Store) Obligations(ctx context.Context, scope ledger.Scope, window ledger.Window) ([]core.DebtObligation, error) {
	where, args := scopeClauses(scope)
	where, args = windowClauses(where, args, window)

	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE ` + strings.Join(where, " AND ")
	return s.queryObligations(ctx, query, args)
}

func (s *Store) queryObligations(ctx context.Context, query string, args []any) ([]core.DebtObligation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query obligations: %w", err)
	}
	defer rows.Close()

	var out []core.DebtObligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) Expenses(ctx context.Context, scope ledger.Scope, window ledger.Window) ([]core.Expense, error) {
	where := []string{"1 = 1"}
	var args []any
	if len(scope.BoardIDs) > 0 {
		where = append(where, "board_id IN ("+placeholders(len(scope.BoardIDs))+")")
		for _, id := range scope.BoardIDs {
			args = append(args, id)
		}
	}
	where, args = windowClauses(where, args, window)

	query := `SELECT id, board_id, payer_id, description, amount_cents, category, participants, created_at
		FROM expenses WHERE ` + strings.Join(where, " AND ")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e            core.Expense
			participants string
		)
		if err := rows.Scan(&e.ID, &e.BoardID, &e.PayerID, &e.Description,
			&e.Amount.Cents, &e.Category, &participants, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if err := json.Unmarshal([]byte(participants), &e.Participants); err != nil {
			return nil, fmt.Errorf("unmarshal participants: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ApplyPayment(ctx context.Context, id string, amount core.Money, expectedVersion int64) (core.DebtObligation, error) {
	var updated core.DebtObligation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = applyPaymentTx(ctx, tx, ledger.Payment{
			ObligationID:    id,
			Amount:          amount,
			ExpectedVersion: expectedVersion,
		}, "")
		return err
	})
	if err != nil {
		return core.DebtObligation{}, err
	}
	return updated, nil
}

func (s *Store) ApplyPayments(ctx context.Context, payments []ledger.Payment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payments {
			if _, err := applyPaymentTx(ctx, tx, p, ""); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Settlement(ctx context.Context, key string) (core.Settlement, error) {
	var (
		st        core.Settlement
		closedIDs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, debtor_id, creditor_id, amount_cents, closed_ids, updated_id, created_at
		 FROM settlements WHERE key = ?`, key).
		Scan(&st.Key, &st.DebtorID, &st.CreditorID, &st.Amount.Cents, &closedIDs, &st.UpdatedID, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settlement{}, core.ErrNotFound
	}
	if err != nil {
		return core.Settlement{}, fmt.Errorf("get settlement: %w", err)
	}
	if err := json.Unmarshal([]byte(closedIDs), &st.ClosedIDs); err != nil {
		return core.Settlement{}, fmt.Errorf("unmarshal closed ids: %w", err)
	}
	return st, nil
}

func (s *Store) RecordSettlement(ctx context.Context, settlement core.Settlement, payments []ledger.Payment) error {
	closedIDs, err := json.Marshal(settlement.ClosedIDs)
	if err != nil {
		return fmt.Errorf("marshal closed ids: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range payments {
			if _, err := applyPaymentTx(ctx, tx, p, settlement.Key); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settlements (key, debtor_id, creditor_id, amount_cents, closed_ids, updated_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			settlement.Key, settlement.DebtorID, settlement.CreditorID, settlement.Amount.Cents,
			string(closedIDs), settlement.UpdatedID, settlement.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert settlement: %w", err)
		}
		return nil
	})
}

// PendingExports returns settled obligations the worker has not yet written
// to the external spreadsheet. Not part of the ledger contract; the export
// worker depends on this store directly.
func (s *Store) PendingExports(ctx context.Context, limit int) ([]core.DebtObligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations
		WHERE export_pending = 1 ORDER BY created_at LIMIT ?`
	return s.queryObligations(ctx, query, []any{limit})
}

// MarkExported clears the export flag after a successful spreadsheet append.
func (s *Store) MarkExported(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE obligations SET export_pending = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// applyPaymentTx advances one obligation's paid total under a version check
// and writes the matching audit row. The UPDATE re-checks the version so a
// concurrent writer loses with core.ErrConflict instead of silently stacking.
func applyPaymentTx(ctx context.Context, tx *sql.Tx, p ledger.Payment, settlementKey string) (core.DebtObligation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = ?`, p.ObligationID)
	o, err := scanObligation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DebtObligation{}, core.ErrNotFound
	}
	if err != nil {
		return core.DebtObligation{}, fmt.Errorf("load obligation: %w", err)
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
	exportPending := 0
	if o.Remaining().Cents == 0 {
		o.IsPaid = true
		now := time.Now().UTC()
		o.SettledAt = &now
		exportPending = 1
	}

	var settledAt any
	if o.SettledAt != nil {
		settledAt = *o.SettledAt
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE obligations
		 SET paid_cents = ?, is_paid = ?, version = ?, settled_at = ?, export_pending = ?
		 WHERE id = ? AND version = ?`,
		o.Paid.Cents, o.IsPaid, o.Version, settledAt, exportPending, o.ID, p.ExpectedVersion)
	if err != nil {
		return core.DebtObligation{}, fmt.Errorf("update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.DebtObligation{}, core.ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (obligation_id, amount_cents, settlement_key, created_at)
		 VALUES (?, ?, ?, ?)`,
		o.ID, p.Amount.Cents, settlementKey, time.Now().UTC())
	if err != nil {
		return core.DebtObligation{}, fmt.Errorf("insert payment: %w", err)
	}

	return o, nil
}

// withTx runs fn inside a transaction, retrying the whole transaction on
// transient sqlite busy errors with bounded backoff.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if attempt > 0 {
			slog.DebugContext(ctx, "Retrying busy transaction", "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(busyBackoff * time.Duration(attempt)):
			}
		}

		lastErr = s.runTx(ctx, fn)
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func scopeClauses(scope ledger.Scope) ([]string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if len(scope.BoardIDs) > 0 {
		where = append(where, "board_id IN ("+placeholders(len(scope.BoardIDs))+")")
		for _, id := range scope.BoardIDs {
			args = append(args, id)
		}
	}
	if scope.DebtorID != "" {
		where = append(where, "debtor_id = ?")
		args = append(args, scope.DebtorID)
	}
	if scope.CreditorID != "" {
		where = append(where, "creditor_id = ?")
		args = append(args, scope.CreditorID)
	}
	return where, args
}

func windowClauses(where []string, args []any, window ledger.Window) ([]string, []any) {
	if !window.Start.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, window.Start.UTC())
	}
	if !window.End.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, window.End.UTC())
	}
	return where, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
