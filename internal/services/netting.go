package services

import (
	"github.com/zivstay/Homis-sub000/internal/core"
	"github.com/zivstay/Homis-sub000/internal/ledger"
)

// NettingPlan holds the mutations that collapse a pair's mutual obligations
// by their common minimum. Both directions shrink by NetCents; the side with
// the larger total keeps only the unmatched remainder open.
type NettingPlan struct {
	NetCents int64
	Payments []ledger.Payment
}

// PlanNetting computes the offset between two opposite-direction obligation
// sets using the same greedy allocation as settlements. A zero net (one
// direction empty or already netted) yields an empty plan, which makes
// repeated netting of the same pair a no-op.
func PlanNetting(aToB, bToA []core.DebtObligation) (NettingPlan, error) {
	net := min(sumRemaining(aToB), sumRemaining(bToA))
	if net == 0 {
		return NettingPlan{}, nil
	}

	amount := core.Money{Cents: net}
	forward, err := Allocate(aToB, amount)
	if err != nil {
		return NettingPlan{}, err
	}
	backward, err := Allocate(bToA, amount)
	if err != nil {
		return NettingPlan{}, err
	}

	return NettingPlan{
		NetCents: net,
		Payments: append(forward.Payments, backward.Payments...),
	}, nil
}

func sumRemaining(obligations []core.DebtObligation) int64 {
	var total int64
	for _, o := range obligations {
		total += o.Remaining().Cents
	}
	return total
}
