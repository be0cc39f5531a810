// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"
)

// TotalTries is the iteration bound of the branch-and-bound search. The
// search always returns within this many loop iterations regardless of
// pool size.
const TotalTries = 100_000

// SelectBnB performs a depth-first branch-and-bound search for a subset of
// the pool whose summed effective value lies within
// [target+notInputFees, target+notInputFees+costOfChange], minimizing the
// waste metric sum(fee-longTermFee) plus the excess over the target. The
// pool is sorted in place by effective value, descending; the returned
// coins identify themselves by outpoint so callers are unaffected by the
// reordering. The returned amount is the sum of the selected coins'
// nominal values.
//
// Every coin in the pool must have a positive effective value; callers are
// expected to pre-filter with EligibleCoins. ErrNoSolution is returned when
// no subset lands in the range.
func SelectBnB(pool []Coin, targetValue, costOfChange,
	notInputFees btcutil.Amount) ([]Coin, btcutil.Amount, error) {

	selected, total, _, err := selectBnB(
		pool, targetValue, costOfChange, notInputFees,
	)

	return selected, total, err
}

// selectBnB is the search itself, additionally reporting the number of
// loop iterations consumed so tests can pin the pruning behavior.
func selectBnB(pool []Coin, targetValue, costOfChange,
	notInputFees btcutil.Amount) ([]Coin, btcutil.Amount, int, error) {

	if len(pool) == 0 {
		return nil, 0, 0, ErrNoSolution
	}

	// Largest-first exploration finds large-coin solutions quickly and
	// makes the lookahead prune effective.
	sort.Slice(pool, func(i, j int) bool {
		return pool[i].EffectiveValue > pool[j].EffectiveValue
	})

	actualTarget := notInputFees + targetValue

	// currAvailableValue is the lookahead: the effective value still
	// reachable in the unexplored suffix of the pool on the current
	// path.
	var currAvailableValue btcutil.Amount
	for i := range pool {
		currAvailableValue += pool[i].EffectiveValue
	}
	if currAvailableValue < actualTarget {
		return nil, 0, 0, ErrNoSolution
	}

	var (
		// currSelection holds the inclusion flags of the ancestors of
		// the current node; its length is the current depth.
		currSelection = make([]bool, 0, len(pool))

		currValue btcutil.Amount
		currWaste btcutil.Amount

		found         bool
		bestSelection []bool
		bestWaste     = btcutil.Amount(btcutil.MaxSatoshi)
	)

	tries := 0
	for ; tries < TotalTries; tries++ {
		backtrack := false

		switch {
		// The remaining suffix cannot reach the target, the current
		// value overshot the acceptable window, or the accumulated
		// waste already exceeds the best solution while each further
		// inclusion can only add waste. The waste cut is only sound
		// when the fee delta of the largest coin is positive.
		case currValue+currAvailableValue < actualTarget,
			currValue > actualTarget+costOfChange,
			currWaste > bestWaste &&
				pool[0].Fee > pool[0].LongTermFee:

			backtrack = true

		// The selection is inside the window: score it against the
		// best seen, then backtrack to keep searching for a cheaper
		// one.
		case currValue >= actualTarget:
			excess := currValue - actualTarget

			currWaste += excess
			if currWaste <= bestWaste {
				bestSelection = make(
					[]bool, len(currSelection),
				)
				copy(bestSelection, currSelection)
				bestWaste = currWaste
				found = true
			}
			currWaste -= excess

			backtrack = true
		}

		if backtrack {
			// Walk back over excluded nodes, restoring their
			// effective value to the lookahead as each exclusion
			// is reverted.
			for len(currSelection) > 0 &&
				!currSelection[len(currSelection)-1] {

				currSelection =
					currSelection[:len(currSelection)-1]
				currAvailableValue +=
					pool[len(currSelection)].EffectiveValue
			}

			// Walked past the root: the tree is exhausted.
			if len(currSelection) == 0 {
				break
			}

			// Flip the deepest included node to excluded and
			// explore its other branch.
			last := len(currSelection) - 1
			utxo := &pool[last]
			currSelection[last] = false
			currValue -= utxo.EffectiveValue
			currWaste -= utxo.Fee - utxo.LongTermFee

			continue
		}

		// Descend by visiting the next coin. The lookahead shrinks
		// whether the coin is included or equivalence-skipped.
		utxo := &pool[len(currSelection)]
		currAvailableValue -= utxo.EffectiveValue

		// A coin equal in effective value and fee to an excluded
		// predecessor spans a subtree already explored; mark it
		// excluded immediately instead of descending into it twice.
		prev := len(currSelection) - 1
		if len(currSelection) > 0 && !currSelection[prev] &&
			utxo.EffectiveValue == pool[prev].EffectiveValue &&
			utxo.Fee == pool[prev].Fee {

			currSelection = append(currSelection, false)
		} else {
			currSelection = append(currSelection, true)
			currValue += utxo.EffectiveValue
			currWaste += utxo.Fee - utxo.LongTermFee
		}
	}

	if !found {
		return nil, 0, tries, ErrNoSolution
	}

	var (
		selected []Coin
		total    btcutil.Amount
	)
	for i, use := range bestSelection {
		if !use {
			continue
		}

		selected = append(selected, pool[i])
		total += pool[i].Amount()
	}

	return selected, total, tries, nil
}
