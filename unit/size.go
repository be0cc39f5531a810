// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package unit provides the size and fee-rate units used when deriving the
// fee cost of spending a transaction input.
package unit

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
)

// VByte is a transaction size in virtual bytes.
type VByte int64

// ToWU converts the size to weight units.
func (v VByte) ToWU() WeightUnit {
	return WeightUnit(v * blockchain.WitnessScaleFactor)
}

// String returns a human-readable string of the size.
func (v VByte) String() string {
	return fmt.Sprintf("%d vb", int64(v))
}

// WeightUnit is a transaction size in weight units.
type WeightUnit int64

// ToVB converts the weight to virtual bytes, rounding up since a partial
// virtual byte still occupies a whole one in a block.
func (wu WeightUnit) ToVB() VByte {
	return VByte(
		(wu + blockchain.WitnessScaleFactor - 1) /
			blockchain.WitnessScaleFactor,
	)
}

// String returns a human-readable string of the weight.
func (wu WeightUnit) String() string {
	return fmt.Sprintf("%d wu", int64(wu))
}
