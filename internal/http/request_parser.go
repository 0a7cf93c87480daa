package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zivstay/Homis-sub000/internal/ledger"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type createBoardRequest struct {
	Name     string   `json:"name"`
	Currency string   `json:"currency"`
	Members  []string `json:"members"`
}

type createExpenseRequest struct {
	BoardID      string   `json:"board_id"`
	PayerID      string   `json:"payer_id"`
	Description  string   `json:"description"`
	AmountCents  int64    `json:"amount_cents"`
	Category     string   `json:"category"`
	Participants []string `json:"participants"`
	Date         string   `json:"date,omitempty"`
}

type markPaidRequest struct {
	ObligationID string `json:"obligation_id"`
}

type settleRequest struct {
	BoardIDs       []string `json:"board_ids,omitempty"`
	DebtorID       string   `json:"debtor_id"`
	CreditorID     string   `json:"creditor_id"`
	AmountCents    int64    `json:"amount_cents"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. Empty means "now".
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want RFC 3339 or YYYY-MM-DD)", raw)
	}
	return t.UTC(), nil
}

// parseWindow reads optional start/end query parameters into a half-open
// window. Either bound may be omitted.
func parseWindow(r *http.Request) (ledger.Window, error) {
	var w ledger.Window

	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			return ledger.Window{}, err
		}
		w.Start = start
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := parseDate(raw)
		if err != nil {
			return ledger.Window{}, err
		}
		w.End = end
	}

	if !w.Start.IsZero() && !w.End.IsZero() && !w.Start.Before(w.End) {
		return ledger.Window{}, fmt.Errorf("start %s must be before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return w, nil
}

// parseBoardIDs reads the repeatable board_id query parameter.
func parseBoardIDs(r *http.Request) []string {
	raw := r.URL.Query()["board_id"]
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
