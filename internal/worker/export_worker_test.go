package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zivstay/Homis-sub000/internal/amqp"
	"github.com/zivstay/Homis-sub000/internal/core"
)

type fakeExportStore struct {
	obligations map[string]core.DebtObligation
	pending     []string
	exported    []string
	markErr     error
}

func (f *fakeExportStore) GetObligation(_ context.Context, id string) (core.DebtObligation, error) {
	o, ok := f.obligations[id]
	if !ok {
		return core.DebtObligation{}, core.ErrNotFound
	}
	return o, nil
}

func (f *fakeExportStore) PendingExports(_ context.Context, limit int) ([]core.DebtObligation, error) {
	var out []core.DebtObligation
	for _, id := range f.pending {
		if len(out) == limit {
			break
		}
		out = append(out, f.obligations[id])
	}
	return out, nil
}

func (f *fakeExportStore) MarkExported(_ context.Context, id string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.exported = append(f.exported, id)
	return nil
}

type fakeAppender struct {
	rows []string
	err  error
}

func (f *fakeAppender) AppendSettled(_ context.Context, o core.DebtObligation) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, o.ID)
	return nil
}

func settledObligation(id string) core.DebtObligation {
	now := time.Now().UTC()
	return core.DebtObligation{
		ID:         id,
		BoardID:    "board-1",
		DebtorID:   "alice",
		CreditorID: "bob",
		Original:   core.Money{Cents: 1000},
		Paid:       core.Money{Cents: 1000},
		IsPaid:     true,
		SettledAt:  &now,
	}
}

func TestHandleEventExportsSettledObligation(t *testing.T) {
	store := &fakeExportStore{
		obligations: map[string]core.DebtObligation{"o-1": settledObligation("o-1")},
	}
	appender := &fakeAppender{}
	w := NewExportWorker(store, appender, 10)

	err := w.HandleEvent(context.Background(), &amqp.LedgerEvent{
		Kind:         amqp.KindObligationSettled,
		ObligationID: "o-1",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(appender.rows) != 1 || appender.rows[0] != "o-1" {
		t.Fatalf("appended rows = %v, want [o-1]", appender.rows)
	}
	if len(store.exported) != 1 || store.exported[0] != "o-1" {
		t.Fatalf("marked exported = %v, want [o-1]", store.exported)
	}
}

func TestHandleEventIgnoresOtherKinds(t *testing.T) {
	store := &fakeExportStore{obligations: map[string]core.DebtObligation{}}
	appender := &fakeAppender{}
	w := NewExportWorker(store, appender, 10)

	for _, kind := range []string{amqp.KindObligationCreated, amqp.KindPairNetted} {
		err := w.HandleEvent(context.Background(), &amqp.LedgerEvent{Kind: kind, ObligationID: "o-1"})
		if err != nil {
			t.Fatalf("HandleEvent(%s): %v", kind, err)
		}
	}
	if len(appender.rows) != 0 {
		t.Fatalf("non-settled events exported rows: %v", appender.rows)
	}
}

func TestHandleEventDropsUnknownObligation(t *testing.T) {
	store := &fakeExportStore{obligations: map[string]core.DebtObligation{}}
	w := NewExportWorker(store, &fakeAppender{}, 10)

	// Unknown ids are dropped, not requeued forever.
	err := w.HandleEvent(context.Background(), &amqp.LedgerEvent{
		Kind:         amqp.KindObligationSettled,
		ObligationID: "ghost",
	})
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
}

func TestHandleEventPropagatesAppendFailure(t *testing.T) {
	store := &fakeExportStore{
		obligations: map[string]core.DebtObligation{"o-1": settledObligation("o-1")},
	}
	appender := &fakeAppender{err: errors.New("sheet unavailable")}
	w := NewExportWorker(store, appender, 10)

	err := w.HandleEvent(context.Background(), &amqp.LedgerEvent{
		Kind:         amqp.KindObligationSettled,
		ObligationID: "o-1",
	})
	if err == nil {
		t.Fatal("expected append failure to surface so the message is requeued")
	}
	if len(store.exported) != 0 {
		t.Fatalf("failed export still marked: %v", store.exported)
	}
}

func TestProcessPendingSweepsQueue(t *testing.T) {
	store := &fakeExportStore{
		obligations: map[string]core.DebtObligation{
			"o-1": settledObligation("o-1"),
			"o-2": settledObligation("o-2"),
		},
		pending: []string{"o-1", "o-2"},
	}
	appender := &fakeAppender{}
	w := NewExportWorker(store, appender, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(appender.rows) != 2 || len(store.exported) != 2 {
		t.Fatalf("exported %v / marked %v, want both obligations", appender.rows, store.exported)
	}
}

func TestExportSurvivesMarkFailure(t *testing.T) {
	store := &fakeExportStore{
		obligations: map[string]core.DebtObligation{"o-1": settledObligation("o-1")},
		pending:     []string{"o-1"},
		markErr:     errors.New("disk full"),
	}
	appender := &fakeAppender{}
	w := NewExportWorker(store, appender, 10)

	// The row is written; the flag failure is logged and retried by the
	// next sweep rather than failing the batch.
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if len(appender.rows) != 1 {
		t.Fatalf("appended rows = %v", appender.rows)
	}
}
