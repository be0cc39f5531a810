// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"math/rand"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// MinChange is the smallest change amount the knapsack selector aims
	// to create when an exact match cannot be found: one bitcent.
	MinChange = btcutil.Amount(btcutil.SatoshiPerBitcent)

	// DefaultKnapsackIterations is the repetition count of the
	// stochastic subset approximation.
	DefaultKnapsackIterations = 1000
)

// KnapsackConfig tunes the knapsack selector. The zero value selects the
// defaults: a fresh random seed per call and 1000 approximation rounds.
type KnapsackConfig struct {
	// Seed fixes the random source driving the shuffle and the subset
	// sampling. The randomness is deliberately non-cryptographic; it
	// exists to avoid degenerate selection patterns and for a mild
	// privacy benefit. Callers wanting reproducible selections supply a
	// seed; otherwise every call draws fresh randomness.
	Seed fn.Option[int64]

	// Iterations overrides the approximation repetition count when
	// positive.
	Iterations int
}

// newRand builds the selector's random source from the config.
func (cfg *KnapsackConfig) newRand() *rand.Rand {
	seed := cfg.Seed.UnwrapOr(time.Now().UnixNano())

	return rand.New(rand.NewSource(seed))
}

// iterations returns the configured repetition count.
func (cfg *KnapsackConfig) iterations() int {
	if cfg.Iterations > 0 {
		return cfg.Iterations
	}

	return DefaultKnapsackIterations
}

// SelectKnapsack chooses a subset of the pool summing to at least the
// target. A single coin equal to the target is taken alone, and the coins
// below target+MinChange are taken together when they sum to the target
// exactly. Otherwise the tightest subset the stochastic approximation finds
// competes with the smallest single coin at least MinChange above the
// target: that coin wins when the subset misses the target while leaving
// less than MinChange of change, or when the coin is no larger than the
// subset. A nil config selects the defaults. The pool
// itself is not reordered; the selector works on a shuffled copy.
// ErrNoSolution is returned when the pool cannot reach the target at all.
func SelectKnapsack(pool []Coin, targetValue btcutil.Amount,
	cfg *KnapsackConfig) ([]Coin, btcutil.Amount, error) {

	if cfg == nil {
		cfg = &KnapsackConfig{}
	}
	rng := cfg.newRand()

	// Shuffling first makes every scan order, and with it every
	// tie-break below, random.
	shuffled := make([]Coin, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	// Single scan: take an exact match immediately, gather coins below
	// target+MinChange as approximation candidates, and remember the
	// smallest coin at or above that bound as the fallback.
	var (
		lowestLarger *Coin
		lower        []Coin
		lowerTotal   btcutil.Amount
	)
	for i := range shuffled {
		coin := shuffled[i]

		switch {
		case coin.Amount() == targetValue:
			return []Coin{coin}, coin.Amount(), nil

		case coin.Amount() < targetValue+MinChange:
			lower = append(lower, coin)
			lowerTotal += coin.Amount()

		case lowestLarger == nil ||
			coin.Amount() < lowestLarger.Amount():

			lowestLarger = &shuffled[i]
		}
	}

	if lowerTotal == targetValue {
		return lower, lowerTotal, nil
	}

	if lowerTotal < targetValue {
		if lowestLarger == nil {
			return nil, 0, ErrNoSolution
		}

		return []Coin{*lowestLarger}, lowestLarger.Amount(), nil
	}

	// Solve subset sum by stochastic approximation, seeking the target
	// first and a target leaving room for a MinChange change output
	// second.
	sort.Slice(lower, func(i, j int) bool {
		return lower[i].Amount() > lower[j].Amount()
	})

	best, nBest := approximateBestSubset(
		rng, lower, lowerTotal, targetValue, cfg.iterations(),
	)
	if nBest != targetValue && lowerTotal >= targetValue+MinChange {
		best, nBest = approximateBestSubset(
			rng, lower, lowerTotal, targetValue+MinChange,
			cfg.iterations(),
		)
	}

	// Prefer the bigger coin when the approximation missed an exact
	// match while landing below the MinChange window, or when the
	// bigger coin is the closer fit.
	if lowestLarger != nil &&
		((nBest != targetValue && nBest < targetValue+MinChange) ||
			lowestLarger.Amount() <= nBest) {

		return []Coin{*lowestLarger}, lowestLarger.Amount(), nil
	}

	var (
		selected []Coin
		total    btcutil.Amount
	)
	for i := range lower {
		if !best[i] {
			continue
		}

		selected = append(selected, lower[i])
		total += lower[i].Amount()
	}

	log.Debugf("Knapsack chose %d of %d candidate coins, total %v "+
		"for target %v", len(selected), len(pool), total, targetValue)

	return selected, total, nil
}

// approximateBestSubset runs the randomized subset-sum search: each
// repetition makes two passes over the candidates, considering each coin
// with probability 1/2 on the first pass and considering every coin left
// out on the second. Whenever the running total reaches the target it is
// scored, the last coin is dropped, and the scan continues looking for a
// tighter fit. The search stops early on an exact hit.
func approximateBestSubset(rng *rand.Rand, coins []Coin,
	totalLower, targetValue btcutil.Amount,
	iterations int) ([]bool, btcutil.Amount) {

	best := make([]bool, len(coins))
	for i := range best {
		best[i] = true
	}
	nBest := totalLower

	included := make([]bool, len(coins))

	for rep := 0; rep < iterations && nBest != targetValue; rep++ {
		for i := range included {
			included[i] = false
		}

		var total btcutil.Amount
		reachedTarget := false

		for pass := 0; pass < 2 && !reachedTarget; pass++ {
			for i := range coins {
				// The random inclusion on the first pass
				// keeps repetitions independent; the second
				// pass sweeps up whatever the first left
				// out.
				var consider bool
				if pass == 0 {
					consider = rng.Intn(2) == 0
				} else {
					consider = !included[i]
				}
				if !consider {
					continue
				}

				total += coins[i].Amount()
				included[i] = true

				if total < targetValue {
					continue
				}

				reachedTarget = true
				if total < nBest {
					nBest = total
					copy(best, included)
				}

				// Drop the coin that crossed the line and
				// keep scanning for a tighter fit.
				total -= coins[i].Amount()
				included[i] = false
			}
		}
	}

	return best, nBest
}
