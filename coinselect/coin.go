// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinselect chooses transaction inputs from a pool of candidate
// unspent outputs. Two selectors are provided: a branch-and-bound search
// that looks for a changeless selection minimizing a fee-based waste
// metric, and a stochastic knapsack approximation with a next-larger-coin
// fallback.
package coinselect

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/btcsuite/walletkit/unit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNoSolution is returned when a selector finds no subset of the
	// pool meeting its target. It is the selector's "none" result rather
	// than a failure of the pool itself.
	ErrNoSolution = errors.New("no coin selection solution found")

	// ErrDuplicateCoin is returned when a candidate pool references the
	// same outpoint twice.
	ErrDuplicateCoin = errors.New("pool contains duplicate outpoint")
)

// Coin is one candidate input. Identity is the outpoint; the value fields
// carry the fee accounting the selectors optimize over.
type Coin struct {
	wire.TxOut
	wire.OutPoint

	// EffectiveValue is the nominal value minus the fee to spend this
	// input at the current fee rate. The branch-and-bound selector
	// requires this to be positive; see EligibleCoins.
	EffectiveValue btcutil.Amount

	// Fee is the cost of spending this input at the current fee rate.
	Fee btcutil.Amount

	// LongTermFee is the cost of spending this input at the wallet's
	// long-term fee estimate. The difference Fee-LongTermFee is this
	// input's contribution to the waste metric.
	LongTermFee btcutil.Amount
}

// Amount returns the coin's nominal value.
func (c *Coin) Amount() btcutil.Amount {
	return btcutil.Amount(c.TxOut.Value)
}

// NewCoin derives the fee fields of a candidate input from its output
// script: the input's minimum virtual size at the given current and
// long-term fee rates determines the spend fees and the effective value.
func NewCoin(outPoint wire.OutPoint, txOut wire.TxOut,
	feeRate, longTermFeeRate unit.SatPerKVByte) Coin {

	inputVSize := unit.VByte(
		txsizes.GetMinInputVirtualSize(txOut.PkScript),
	)

	fee := feeRate.FeeForVSize(inputVSize)
	longTermFee := longTermFeeRate.FeeForVSize(inputVSize)

	return Coin{
		TxOut:          txOut,
		OutPoint:       outPoint,
		EffectiveValue: btcutil.Amount(txOut.Value) - fee,
		Fee:            fee,
		LongTermFee:    longTermFee,
	}
}

// EligibleCoins filters a candidate pool down to the coins the selectors
// can work with: duplicates by outpoint are rejected, dust outputs at the
// relay fee rate are dropped, and coins whose effective value is not
// positive are dropped. Callers of SelectBnB are expected to pre-filter
// through this function.
func EligibleCoins(coins []Coin,
	relayFeePerKb btcutil.Amount) ([]Coin, error) {

	seen := fn.NewSet[wire.OutPoint]()

	eligible := make([]Coin, 0, len(coins))
	for i := range coins {
		coin := coins[i]

		if seen.Contains(coin.OutPoint) {
			return nil, ErrDuplicateCoin
		}
		seen.Add(coin.OutPoint)

		// An output that costs more to relay than it is worth can
		// never yield a useful input.
		if txrules.IsDustOutput(&coin.TxOut, relayFeePerKb) {
			continue
		}

		if coin.EffectiveValue <= 0 {
			continue
		}

		eligible = append(eligible, coin)
	}

	return eligible, nil
}
