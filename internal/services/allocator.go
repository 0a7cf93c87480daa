package services

import (
	"sort"

	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
)

// Allocation is the outcome of spreading one payment across a debtor's open
// obligations. Closed and Updated carry the post-payment state; Payments are
// the version-checked mutations the store must commit atomically.
type Allocation struct {
	Closed   []core.DebtObligation
	Updated  *core.DebtObligation
	Payments []ledger.Payment
}

// Allocate walks the open obligations in ascending remaining-amount order
// (created_at, then id, as tie-breaks) and greedily closes whole obligations
// while the payment covers them. At most one obligation ends partially paid.
// Closing the small line items first maximizes the number of fully settled
// records per unit of money repaid; no reordering search is performed.
func Allocate(open []core.DebtObligation, amount core.Money) (Allocation, error) {
	if len(open) == 0 {
		return Allocation{}, core.ErrNoOpenDebt
	}
	if amount.Cents <= 0 {
		return Allocation{}, core.ErrInvalidAmount
	}

	sorted := make([]core.DebtObligation, len(open))
	copy(sorted, open)
	sort.Slice(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Remaining().Cents, sorted[j].Remaining().Cents
		if ri != rj {
			return ri < rj
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var total int64
	for _, o := range sorted {
		total += o.Remaining().Cents
	}
	if amount.Cents > total {
		return Allocation{}, core.ErrAmountExceedsDebt
	}

	var alloc Allocation
	leftover := amount.Cents
	for _, o := range sorted {
		if leftover == 0 {
			break
		}

		remaining := o.Remaining().Cents
		if remaining <= leftover {
			alloc.Payments = append(alloc.Payments, ledger.Payment{
				ObligationID:    o.ID,
				Amount:          core.Money{Cents: remaining},
				ExpectedVersion: o.Version,
			})
			o.Paid = o.Original
			o.IsPaid = true
			o.Version++
			alloc.Closed = append(alloc.Closed, o)
			leftover -= remaining
			continue
		}

		alloc.Payments = append(alloc.Payments, ledger.Payment{
			ObligationID:    o.ID,
			Amount:          core.Money{Cents: leftover},
			ExpectedVersion: o.Version,
		})
		o.Paid.Cents += leftover
		o.Version++
		updated := o
		alloc.Updated = &updated
		leftover = 0
	}

	return alloc, nil
}
