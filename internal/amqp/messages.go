package amqp

import (
	"encoding/json"
	"time"
)

const (
	KindObligationCreated = "obligation.created"
	KindObligationSettled = "obligation.settled"
	KindPairNetted        = "pair.netted"
)

// LedgerEvent is the wire format for ledger activity. Consumers fetch full
// records from the store by id; the event only carries enough to route and
// display.
type LedgerEvent struct {
	Kind         string    `json:"kind"`
	ObligationID string    `json:"obligation_id,omitempty"`
	BoardID      string    `json:"board_id"`
	DebtorID     string    `json:"debtor_id,omitempty"`
	CreditorID   string    `json:"creditor_id,omitempty"`
	AmountCents  int64     `json:"amount_cents,omitempty"`
	NetCents     int64     `json:"net_cents,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
