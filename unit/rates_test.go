// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package unit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRateConversions checks the conversions between the fee rate units.
func TestRateConversions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		vb          SatPerVByte
		expectedKVB SatPerKVByte
		expectedKW  SatPerKWeight
	}{{
		name:        "1 sat/vb",
		vb:          1,
		expectedKVB: 1000,
		expectedKW:  250,
	}, {
		name:        "25 sat/vb",
		vb:          25,
		expectedKVB: 25_000,
		expectedKW:  6_250,
	}, {
		name:        "zero",
		vb:          0,
		expectedKVB: 0,
		expectedKW:  0,
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			kvb := tc.vb.FeePerKVByte()
			require.Equal(t, tc.expectedKVB, kvb)
			require.Equal(t, tc.expectedKW, kvb.FeePerKWeight())
			require.Equal(
				t, tc.expectedKVB,
				kvb.FeePerKWeight().FeePerKVByte(),
			)
		})
	}
}

// TestFeeForSize checks fee computation for sizes in both units, including
// the round-down behavior.
func TestFeeForSize(t *testing.T) {
	t.Parallel()

	rate := SatPerKVByte(1000)
	require.EqualValues(t, 141, rate.FeeForVSize(VByte(141)))
	require.EqualValues(t, 0, SatPerKVByte(999).FeeForVSize(VByte(1)))

	kw := SatPerKWeight(250)
	require.EqualValues(t, 141, kw.FeeForWeight(VByte(141).ToWU()))
}

// TestSizeConversions checks vbyte/weight conversions round up partial
// virtual bytes.
func TestSizeConversions(t *testing.T) {
	t.Parallel()

	require.Equal(t, WeightUnit(400), VByte(100).ToWU())
	require.Equal(t, VByte(100), WeightUnit(400).ToVB())
	require.Equal(t, VByte(101), WeightUnit(401).ToVB())
}
