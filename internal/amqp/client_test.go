package amqp

import (
	"testing"
	"time"
)

func TestLedgerEventRoundTrip(t *testing.T) {
	event := &LedgerEvent{
		Kind:         KindObligationSettled,
		ObligationID: "o-1",
		BoardID:      "board-1",
		DebtorID:     "alice",
		CreditorID:   "bob",
		AmountCents:  1250,
		Timestamp:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	decoded, err := LedgerEventFromJSON(data)
	if err != nil {
		t.Fatalf("LedgerEventFromJSON: %v", err)
	}
	if *decoded != *event {
		t.Fatalf("round trip changed event:\n  in:  %+v\n  out: %+v", event, decoded)
	}
}

func TestLedgerEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
