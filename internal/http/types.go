package http

import (
	"time"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/services"
)

type boardResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type expenseResponse struct {
	ID           string    `json:"id"`
	BoardID      string    `json:"board_id"`
	PayerID      string    `json:"payer_id"`
	Description  string    `json:"description,omitempty"`
	AmountCents  int64     `json:"amount_cents"`
	Category     string    `json:"category"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type obligationResponse struct {
	ID             string     `json:"id"`
	BoardID        string     `json:"board_id"`
	DebtorID       string     `json:"debtor_id"`
	CreditorID     string     `json:"creditor_id"`
	Description    string     `json:"description,omitempty"`
	OriginalCents  int64      `json:"original_cents"`
	PaidCents      int64      `json:"paid_cents"`
	RemainingCents int64      `json:"remaining_cents"`
	IsPaid         bool       `json:"is_paid"`
	CreatedAt      time.Time  `json:"created_at"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

type settleResponse struct {
	Closed   []obligationResponse `json:"closed"`
	Updated  *obligationResponse  `json:"updated,omitempty"`
	Replayed bool                 `json:"replayed,omitempty"`
}

type debtSummaryResponse struct {
	TotalOwedCents     int64            `json:"total_owed_cents"`
	TotalOwedToMeCents int64            `json:"total_owed_to_me_cents"`
	TotalUnpaidCents   int64            `json:"total_unpaid_cents"`
	TotalPaidCents     int64            `json:"total_paid_cents"`
	IOweByUser         map[string]int64 `json:"i_owe_by_user"`
	OwedToMeByUser     map[string]int64 `json:"owed_to_me_by_user"`
}

type expenseSummaryResponse struct {
	TotalAmountCents int64            `json:"total_amount_cents"`
	TotalExpenses    int              `json:"total_expenses"`
	ByCategory       map[string]int64 `json:"by_category"`
	ByBoard          map[string]int64 `json:"by_board"`
	ByMonth          map[string]int64 `json:"by_month"`
}

func toBoardResponse(b core.Board) boardResponse {
	return boardResponse{
		ID:        b.ID,
		Name:      b.Name,
		Currency:  b.Currency,
		Members:   b.Members,
		CreatedAt: b.CreatedAt,
	}
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:           e.ID,
		BoardID:      e.BoardID,
		PayerID:      e.PayerID,
		Description:  e.Description,
		AmountCents:  e.Amount.Cents,
		Category:     e.Category,
		Participants: e.Participants,
		CreatedAt:    e.CreatedAt,
	}
}

func toObligationResponse(o core.DebtObligation) obligationResponse {
	return obligationResponse{
		ID:             o.ID,
		BoardID:        o.BoardID,
		DebtorID:       o.DebtorID,
		CreditorID:     o.CreditorID,
		Description:    o.Description,
		OriginalCents:  o.Original.Cents,
		PaidCents:      o.Paid.Cents,
		RemainingCents: o.Remaining().Cents,
		IsPaid:         o.IsPaid,
		CreatedAt:      o.CreatedAt,
		SettledAt:      o.SettledAt,
	}
}

func toObligationResponses(obligations []core.DebtObligation) []obligationResponse {
	out := make([]obligationResponse, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, toObligationResponse(o))
	}
	return out
}

func toSettleResponse(result services.SettleResult) settleResponse {
	resp := settleResponse{
		Closed:   toObligationResponses(result.Closed),
		Replayed: result.Replayed,
	}
	if result.Updated != nil {
		u := toObligationResponse(*result.Updated)
		resp.Updated = &u
	}
	return resp
}

func toDebtSummaryResponse(s services.DebtSummary) debtSummaryResponse {
	return debtSummaryResponse{
		TotalOwedCents:     s.TotalOwed.Cents,
		TotalOwedToMeCents: s.TotalOwedToMe.Cents,
		TotalUnpaidCents:   s.TotalUnpaid.Cents,
		TotalPaidCents:     s.TotalPaid.Cents,
		IOweByUser:         toCentsMap(s.IOweByUser),
		OwedToMeByUser:     toCentsMap(s.OwedToMeByUser),
	}
}

func toExpenseSummaryResponse(s services.ExpenseSummary) expenseSummaryResponse {
	return expenseSummaryResponse{
		TotalAmountCents: s.TotalAmount.Cents,
		TotalExpenses:    s.TotalExpenses,
		ByCategory:       toCentsMap(s.ByCategory),
		ByBoard:          toCentsMap(s.ByBoard),
		ByMonth:          toCentsMap(s.ByMonth),
	}
}

func toCentsMap(m map[string]core.Money) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v.Cents
	}
	return out
}
