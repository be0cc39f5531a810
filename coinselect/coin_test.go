// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinselect

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/walletkit/unit"
	"github.com/stretchr/testify/require"
)

// testP2WPKHScript is a syntactically valid pay-to-witness-pubkey-hash
// script for size estimation.
var testP2WPKHScript = append(
	[]byte{0x00, 0x14}, bytes.Repeat([]byte{0x11}, 20)...,
)

// TestNewCoin checks the fee and effective-value derivation from the
// output script and the two fee rates.
func TestNewCoin(t *testing.T) {
	t.Parallel()

	outPoint := wire.OutPoint{Hash: chainhash.Hash{0x03}, Index: 1}
	txOut := wire.TxOut{Value: 10_000, PkScript: testP2WPKHScript}

	feeRate := unit.SatPerKVByte(2_000)
	longTermFeeRate := unit.SatPerKVByte(1_000)

	c := NewCoin(outPoint, txOut, feeRate, longTermFeeRate)

	require.Equal(t, outPoint, c.OutPoint)
	require.EqualValues(t, 10_000, c.Amount())

	// The fee fields scale with their rates and the effective value is
	// the nominal value net of the current fee.
	require.Positive(t, c.Fee)
	require.Equal(t, c.Fee, 2*c.LongTermFee)
	require.Equal(t, c.Amount()-c.Fee, c.EffectiveValue)
}

// TestEligibleCoins checks duplicate rejection and the dust and
// effective-value filters.
func TestEligibleCoins(t *testing.T) {
	t.Parallel()

	feeRate := unit.SatPerKVByte(1_000)

	spendable := NewCoin(
		wire.OutPoint{Hash: chainhash.Hash{0x04}, Index: 0},
		wire.TxOut{Value: 50_000, PkScript: testP2WPKHScript},
		feeRate, feeRate,
	)

	// Worth less than its own dust threshold.
	dust := NewCoin(
		wire.OutPoint{Hash: chainhash.Hash{0x04}, Index: 1},
		wire.TxOut{Value: 100, PkScript: testP2WPKHScript},
		feeRate, feeRate,
	)

	// Worth less than the fee to spend it.
	unspendable := NewCoin(
		wire.OutPoint{Hash: chainhash.Hash{0x04}, Index: 2},
		wire.TxOut{Value: 50_000, PkScript: testP2WPKHScript},
		unit.SatPerKVByte(1_000_000), feeRate,
	)

	eligible, err := EligibleCoins(
		[]Coin{spendable, dust, unspendable},
		txrules.DefaultRelayFeePerKb,
	)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, spendable.OutPoint, eligible[0].OutPoint)

	_, err = EligibleCoins(
		[]Coin{spendable, spendable}, txrules.DefaultRelayFeePerKb,
	)
	require.ErrorIs(t, err, ErrDuplicateCoin)
}
