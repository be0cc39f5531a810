// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

// GlobalType is the set of recognized key types in the global section.
type GlobalType uint8

const (
	// UnsignedTxType is the global key carrying the serialized unsigned
	// transaction. Its key material must be empty.
	UnsignedTxType GlobalType = 0
)

// InputType is the set of recognized key types in a per-input section.
type InputType uint8

const (
	// NonWitnessUtxoType carries the full serialized previous
	// transaction of the outpoint being spent.
	NonWitnessUtxoType InputType = 0

	// WitnessUtxoType carries only the previous output being spent.
	WitnessUtxoType InputType = 1

	// PartialSigType carries a signature for the pubkey in its key
	// material.
	PartialSigType InputType = 2

	// SighashType carries the 32-bit little-endian sighash type the
	// signer of this input should use.
	SighashType InputType = 3

	// RedeemScriptInputType carries the redeem script needed to spend
	// the input.
	RedeemScriptInputType InputType = 4

	// WitnessScriptInputType carries the witness script needed to spend
	// the input.
	WitnessScriptInputType InputType = 5

	// Bip32DerivationInputType carries the master fingerprint and
	// derivation path of the pubkey in its key material.
	Bip32DerivationInputType InputType = 6

	// FinalScriptSigType carries the fully constructed signature script
	// of a finalized input.
	FinalScriptSigType InputType = 7

	// FinalScriptWitnessType carries the fully constructed witness stack
	// of a finalized input.
	FinalScriptWitnessType InputType = 8
)

// OutputType is the set of recognized key types in a per-output section.
type OutputType uint8

const (
	// RedeemScriptOutputType carries the redeem script of the output.
	RedeemScriptOutputType OutputType = 0

	// WitnessScriptOutputType carries the witness script of the output.
	WitnessScriptOutputType OutputType = 1

	// Bip32DerivationOutputType carries the master fingerprint and
	// derivation path of the pubkey in its key material.
	Bip32DerivationOutputType OutputType = 2
)
