// Package allocate distributes an aggregate overage amount across a set of
// item costs proportionally, using integer minor-unit (cent) arithmetic with
// an exact remainder correction so that no cent is lost or gained.
package allocate

import (
	"errors"
	"math"
)

// ErrInvalidTotal is returned when the total is below the sum of the item
// costs, which would require a negative overage.
var ErrInvalidTotal = errors.New("allocate: total is less than item subtotal")

// ErrNoItems is returned when the item cost vector is empty. Callers are
// expected to never produce empty item lists.
var ErrNoItems = errors.New("allocate: no items to allocate across")

// roundHalfAwayFromZero is the pinned rounding mode for per-item shares.
// Changing this to banker's rounding shifts the last-cent outcome in ties.
func roundHalfAwayFromZero(v float64) int64 {
	return int64(math.Round(v))
}

// Overage splits total-minus-subtotal proportionally across itemCosts and
// returns one share per item, in the same order. Shares sum exactly to the
// overage: the rounding drift is folded into the last item's share, which
// keeps the result deterministic across runs.
//
// The running subtotal and the final shares are pure integer arithmetic;
// floating point is used only for the per-item ratio.
func Overage(itemCosts []int64, total int64) ([]int64, error) {
	if len(itemCosts) == 0 {
		return nil, ErrNoItems
	}

	var subtotal int64
	for _, cost := range itemCosts {
		subtotal += cost
	}

	overage := total - subtotal
	if overage < 0 {
		return nil, ErrInvalidTotal
	}

	shares := make([]int64, len(itemCosts))
	if overage == 0 {
		return shares, nil
	}

	// A single item, or a zero subtotal, takes the whole overage. No ratio
	// can be computed against a zero subtotal.
	if len(itemCosts) == 1 || subtotal == 0 {
		shares[len(shares)-1] = overage
		return shares, nil
	}

	var allocated int64
	for i, cost := range itemCosts {
		share := roundHalfAwayFromZero(float64(cost) / float64(subtotal) * float64(overage))
		shares[i] = share
		allocated += share
	}

	// Fold the rounding drift into the last item.
	shares[len(shares)-1] += overage - allocated

	return shares, nil
}
