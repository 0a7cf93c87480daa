package services

import (
	"fmt"
	"sort"

	"github.com/zivstay/Homis-sub000/internal/core"
)

// BuildObligations splits an expense into one obligation per non-payer
// participant. Participants are ordered lexicographically before shares are
// assigned, so the remainder cents always land on the lexicographically-first
// participants and the shares sum exactly to the expense amount.
func BuildObligations(board core.Board, e core.Expense, newID func() string) ([]core.DebtObligation, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if !board.HasMember(e.PayerID) {
		return nil, fmt.Errorf("payer %s: %w", e.PayerID, core.ErrNotBoardMember)
	}

	participants := make([]string, len(e.Participants))
	copy(participants, e.Participants)
	sort.Strings(participants)

	for _, p := range participants {
		if !board.HasMember(p) {
			return nil, fmt.Errorf("participant %s: %w", p, core.ErrNotBoardMember)
		}
	}

	shares := core.EqualShares(e.Amount.Cents, len(participants))

	obligations := make([]core.DebtObligation, 0, len(participants))
	for i, p := range participants {
		if p == e.PayerID {
			// The payer's own share is not a debt.
			continue
		}
		obligations = append(obligations, core.DebtObligation{
			ID:          newID(),
			BoardID:     e.BoardID,
			DebtorID:    p,
			CreditorID:  e.PayerID,
			Description: e.Description,
			Original:    core.Money{Cents: shares[i]},
			CreatedAt:   e.CreatedAt,
		})
	}
	return obligations, nil
}
