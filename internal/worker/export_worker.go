// Package worker exports settled ledger activity to the group's shared
// spreadsheet. Events drive the fast path; a periodic sweep over the store's
// export queue recovers anything a lost message would have skipped.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zivstay/Homis-sub000/internal/amqp"
	"github.com/zivstay/Homis-sub000/internal/core"
)

// ExportStore is the slice of the ledger the worker needs: obligation lookup
// plus the export queue. The sqlite store satisfies it.
type ExportStore interface {
	GetObligation(ctx context.Context, id string) (core.DebtObligation, error)
	PendingExports(ctx context.Context, limit int) ([]core.DebtObligation, error)
	MarkExported(ctx context.Context, id string) error
}

// SettledAppender writes one settled obligation to the external record.
type SettledAppender interface {
	AppendSettled(ctx context.Context, o core.DebtObligation) error
}

type ExportWorker struct {
	store     ExportStore
	appender  SettledAppender
	batchSize int
}

func NewExportWorker(store ExportStore, appender SettledAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single ledger event. Only settled obligations are
// exported; other kinds are acknowledged and dropped.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if event.Kind != amqp.KindObligationSettled {
		slog.DebugContext(ctx, "Ignoring ledger event", "kind", event.Kind)
		return nil
	}

	obligation, err := w.store.GetObligation(ctx, event.ObligationID)
	if errors.Is(err, core.ErrNotFound) {
		// Memory-backend events reference nothing durable; drop them.
		slog.WarnContext(ctx, "Settled obligation not in store, dropping event",
			"obligation_id", event.ObligationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load obligation: %w", err)
	}

	return w.export(ctx, obligation)
}

// ProcessPending sweeps the export queue. This is the backup path for lost
// or never-published events.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("load pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, o := range pending {
		if err := w.export(ctx, o); err != nil {
			slog.ErrorContext(ctx, "Failed to export obligation",
				"obligation_id", o.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains a larger backlog once at boot, covering downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.PendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("load pending exports for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup", "count", len(pending))

	exported, failed := 0, 0
	for _, o := range pending {
		if err := w.export(ctx, o); err != nil {
			slog.ErrorContext(ctx, "Failed to export obligation during startup",
				"obligation_id", o.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending), "exported", exported, "errors", failed)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, o core.DebtObligation) error {
	if err := w.appender.AppendSettled(ctx, o); err != nil {
		return fmt.Errorf("append settled row: %w", err)
	}
	if err := w.store.MarkExported(ctx, o.ID); err != nil {
		// The row is already written; log and let the sweep retry the flag.
		slog.ErrorContext(ctx, "Failed to mark obligation exported",
			"obligation_id", o.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Exported settled obligation",
		"obligation_id", o.ID,
		"board_id", o.BoardID,
		"amount_cents", o.Original.Cents)
	return nil
}
