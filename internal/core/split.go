package core

// EqualShares splits totalCents into n shares that sum exactly to totalCents.
// Division leftovers land on the earliest shares, one cent each, so callers
// decide who gets the extra cent by how they order participants.
func EqualShares(totalCents int64, n int) []int64 {
	if n <= 0 || totalCents <= 0 {
		return nil
	}

	base := totalCents / int64(n)
	remainder := totalCents % int64(n)

	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}
