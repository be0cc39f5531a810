// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

var (
	// testPubKeyCompressed and testPubKeyCompressed2 are the serialized
	// generator point and its double, structurally valid compressed
	// keys.
	testPubKeyCompressed = hexToBytes("0279be667ef9dcbbac55a06295ce87" +
		"0b07029bfcdb2dce28d959f2815b16f81798")
	testPubKeyCompressed2 = hexToBytes("02c6047f9441ed7d6d3045406e95c0" +
		"7cd85c778e4b8cef3ca7abac09b95c709ee5")

	// testPubKeyUncompressed is the generator point in uncompressed
	// form.
	testPubKeyUncompressed = hexToBytes("0479be667ef9dcbbac55a06295ce8" +
		"70b07029bfcdb2dce28d959f2815b16f81798483ada7726a3c4655da4f" +
		"bfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")

	// testSig is a placeholder DER-shaped signature payload.
	testSig = hexToBytes("3044022001010101010101010101")

	// testScript is an arbitrary script payload.
	testScript = hexToBytes("0014010203040506070809000102030405060708" +
		"0900")
)

func hexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("invalid hex in test source: " + s)
	}

	return b
}

// testPrevTx returns a previous transaction with two spendable outputs.
func testPrevTx() *wire.MsgTx {
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 7},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	prevTx.AddTxOut(&wire.TxOut{Value: 100_000, PkScript: testScript})
	prevTx.AddTxOut(&wire.TxOut{Value: 250_000, PkScript: testScript})

	return prevTx
}

// testUnsignedTx returns an unsigned transaction spending the first output
// of the passed previous transaction to a single output.
func testUnsignedTx(prevTx *wire.MsgTx) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  prevTx.TxHash(),
			Index: 0,
		},
		Sequence: wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{Value: 90_000, PkScript: testScript})

	return tx
}

// testPacket returns a packet with a populated input and output section.
func testPacket(t *testing.T) *Packet {
	t.Helper()

	prevTx := testPrevTx()

	packet, err := NewFromUnsignedTx(testUnsignedTx(prevTx))
	require.NoError(t, err)

	packet.Inputs[0] = PInput{
		NonWitnessUtxo: prevTx,
		PartialSigs: []*PartialSig{{
			PubKey:    testPubKeyCompressed2,
			Signature: testSig,
		}, {
			PubKey:    testPubKeyCompressed,
			Signature: testSig,
		}},
		SighashType:   txscript.SigHashAll,
		RedeemScript:  testScript,
		WitnessScript: testScript,
		Bip32Derivation: []*Bip32Derivation{{
			PubKey:               testPubKeyCompressed,
			MasterKeyFingerprint: 0x01020304,
			Bip32Path:            []uint32{0x80000054, 0, 1},
		}},
	}
	packet.Outputs[0] = POutput{
		RedeemScript: testScript,
		Bip32Derivation: []*Bip32Derivation{{
			PubKey:               testPubKeyUncompressed,
			MasterKeyFingerprint: 0x0a0b0c0d,
			Bip32Path:            []uint32{5, 6},
		}},
	}

	return packet
}

// serializePacket is a test convenience returning the binary serialization.
func serializePacket(t *testing.T, packet *Packet) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, packet.Serialize(&buf))

	return buf.Bytes()
}

// rec describes one raw key-value record for hand-built streams.
type rec struct {
	keyType byte
	keyData []byte
	value   []byte
}

// buildRaw assembles a binary packet from raw sections. The unsigned tx
// record is emitted first unless tx is nil.
func buildRaw(t *testing.T, tx *wire.MsgTx, global []rec, inputs [][]rec,
	outputs [][]rec) []byte {

	t.Helper()

	var b bytes.Buffer
	_, err := b.Write(psbtMagic[:])
	require.NoError(t, err)

	if tx != nil {
		var txBuf bytes.Buffer
		require.NoError(t, tx.SerializeNoWitness(&txBuf))
		require.NoError(t, serializeKVPairWithType(
			&b, uint8(UnsignedTxType), nil, txBuf.Bytes(),
		))
	}
	for _, r := range global {
		require.NoError(t, serializeKVPairWithType(
			&b, r.keyType, r.keyData, r.value,
		))
	}
	_, err = b.Write(separator[:])
	require.NoError(t, err)

	writeSections := func(sections [][]rec) {
		for _, section := range sections {
			for _, r := range section {
				require.NoError(t, serializeKVPairWithType(
					&b, r.keyType, r.keyData, r.value,
				))
			}
			_, err := b.Write(separator[:])
			require.NoError(t, err)
		}
	}
	writeSections(inputs)
	writeSections(outputs)

	return b.Bytes()
}

// serializedTx returns the no-witness serialization of the passed tx.
func serializedTx(t *testing.T, tx *wire.MsgTx) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.SerializeNoWitness(&buf))

	return buf.Bytes()
}

// TestPacketRoundTrip decodes a serialized packet and checks the result
// matches the original field-wise, and that re-encoding reproduces the
// bytes exactly.
func TestPacketRoundTrip(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	raw := serializePacket(t, packet)

	decoded, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)

	require.Equal(
		t, packet.UnsignedTx.TxHash(), decoded.UnsignedTx.TxHash(),
	)

	in, decodedIn := &packet.Inputs[0], &decoded.Inputs[0]
	require.Equal(
		t, in.NonWitnessUtxo.TxHash(),
		decodedIn.NonWitnessUtxo.TxHash(),
	)
	require.Equal(t, in.PartialSigs, decodedIn.PartialSigs)
	require.Equal(t, in.SighashType, decodedIn.SighashType)
	require.Equal(t, in.RedeemScript, decodedIn.RedeemScript)
	require.Equal(t, in.WitnessScript, decodedIn.WitnessScript)
	require.Equal(t, in.Bip32Derivation, decodedIn.Bip32Derivation)

	require.Equal(t, packet.Outputs, decoded.Outputs)
	require.Empty(t, decoded.Unknowns)

	// Two decode->encode round trips on the same bytes must be byte
	// identical.
	require.Equal(t, raw, serializePacket(t, decoded))

	second, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Equal(t, raw, serializePacket(t, second))
}

// TestBase64RoundTrip checks the base64 interchange form.
func TestBase64RoundTrip(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)

	b64, err := packet.B64Encode()
	require.NoError(t, err)

	decoded, err := NewFromRawBytes(bytes.NewReader([]byte(b64)), true)
	require.NoError(t, err)

	require.Equal(t, serializePacket(t, packet),
		serializePacket(t, decoded))
}

// TestUnknownGlobalRoundTrip checks that an unrecognized global record
// survives a round trip byte-identically.
func TestUnknownGlobalRoundTrip(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	packet.Unknowns = []*Unknown{{
		Key:   []byte{0x99},
		Value: []byte{0x01, 0x02},
	}}

	raw := serializePacket(t, packet)

	decoded, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Equal(t, packet.Unknowns, decoded.Unknowns)
	require.Equal(t, raw, serializePacket(t, decoded))
}

// TestInvalidMagic checks that any header not beginning with the magic
// bytes is rejected.
func TestInvalidMagic(t *testing.T) {
	t.Parallel()

	raw := serializePacket(t, testPacket(t))
	raw[4] = 0xfe

	_, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, err = NewFromRawBytes(bytes.NewReader(raw[:3]), false)
	require.ErrorIs(t, err, ErrInvalidMagic)
}

// TestDuplicateRecords checks that a second occurrence of any recognized
// input record fails decoding, including per-pubkey duplication of keyed
// fields and duplicated unknown keys.
func TestDuplicateRecords(t *testing.T) {
	t.Parallel()

	prevTx := testPrevTx()
	tx := testUnsignedTx(prevTx)

	utxoValue := serializedTx(t, prevTx)
	derivation := SerializeBIP32Derivation(0x01020304, []uint32{0, 1})

	testCases := []struct {
		name string
		rec  rec
	}{{
		name: "non-witness utxo",
		rec:  rec{keyType: 0x00, value: utxoValue},
	}, {
		name: "sighash",
		rec:  rec{keyType: 0x03, value: []byte{1, 0, 0, 0}},
	}, {
		name: "redeem script",
		rec:  rec{keyType: 0x04, value: testScript},
	}, {
		name: "witness script",
		rec:  rec{keyType: 0x05, value: testScript},
	}, {
		name: "partial sig same pubkey",
		rec: rec{
			keyType: 0x02,
			keyData: testPubKeyCompressed,
			value:   testSig,
		},
	}, {
		name: "derivation same pubkey",
		rec: rec{
			keyType: 0x06,
			keyData: testPubKeyCompressed,
			value:   derivation,
		},
	}, {
		name: "final script sig",
		rec:  rec{keyType: 0x07, value: testScript},
	}, {
		name: "unknown",
		rec: rec{
			keyType: 0xab,
			keyData: []byte{0x01},
			value:   []byte{0x02},
		},
	}}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			raw := buildRaw(
				t, tx, nil,
				[][]rec{{tc.rec, tc.rec}},
				[][]rec{nil},
			)

			_, err := NewFromRawBytes(bytes.NewReader(raw), false)
			require.ErrorIs(t, err, ErrDuplicateKey)
		})
	}

	// Keyed fields are only duplicates per pubkey: the same record kind
	// under two different pubkeys must decode.
	raw := buildRaw(
		t, tx, nil,
		[][]rec{{
			{keyType: 0x00, value: utxoValue},
			{
				keyType: 0x02,
				keyData: testPubKeyCompressed,
				value:   testSig,
			},
			{
				keyType: 0x02,
				keyData: testPubKeyCompressed2,
				value:   testSig,
			},
		}},
		[][]rec{nil},
	)

	decoded, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Len(t, decoded.Inputs[0].PartialSigs, 2)
}

// TestInvalidPubkey checks structural pubkey validation of keyed fields.
func TestInvalidPubkey(t *testing.T) {
	t.Parallel()

	prevTx := testPrevTx()
	tx := testUnsignedTx(prevTx)

	badKeys := [][]byte{
		// Wrong length.
		testPubKeyCompressed[:32],
		// Right length, not a curve point.
		append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...),
	}

	for _, badKey := range badKeys {
		raw := buildRaw(
			t, tx, nil,
			[][]rec{{{
				keyType: 0x02,
				keyData: badKey,
				value:   testSig,
			}}},
			[][]rec{nil},
		)

		_, err := NewFromRawBytes(bytes.NewReader(raw), false)
		require.ErrorIs(t, err, ErrInvalidPubkey)
	}
}

// TestMalformedKeypath checks the 4-byte multiple rule for derivation
// values.
func TestMalformedKeypath(t *testing.T) {
	t.Parallel()

	prevTx := testPrevTx()
	tx := testUnsignedTx(prevTx)

	raw := buildRaw(
		t, tx, nil,
		[][]rec{{{
			keyType: 0x06,
			keyData: testPubKeyCompressed,
			value:   []byte{1, 2, 3, 4, 5, 6},
		}}},
		[][]rec{nil},
	)

	_, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.ErrorIs(t, err, ErrMalformedKeypath)
}

// TestMissingUnsignedTx checks that a global section without an unsigned
// transaction record is rejected.
func TestMissingUnsignedTx(t *testing.T) {
	t.Parallel()

	raw := buildRaw(
		t, nil,
		[]rec{{keyType: 0x42, value: []byte{0x01}}},
		nil, nil,
	)

	_, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.ErrorIs(t, err, ErrMissingUnsignedTx)
}

// TestUnsignedTxNotEmpty checks that a global transaction carrying a
// signature script is rejected.
func TestUnsignedTxNotEmpty(t *testing.T) {
	t.Parallel()

	prevTx := testPrevTx()
	tx := testUnsignedTx(prevTx)
	tx.TxIn[0].SignatureScript = testScript

	raw := buildRaw(t, tx, nil, [][]rec{nil}, [][]rec{nil})

	_, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.ErrorIs(t, err, ErrUnsignedTxNotEmpty)
}

// TestInputOutputCountMismatch checks the post-decode count rules in both
// directions: missing sections and trailing sections.
func TestInputOutputCountMismatch(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	raw := serializePacket(t, packet)

	// An extra trailing section.
	extra := append(append([]byte{}, raw...), 0x00)
	_, err := NewFromRawBytes(bytes.NewReader(extra), false)
	require.ErrorIs(t, err, ErrInputOutputCountMismatch)

	// A missing output section: strip the final separator.
	_, err = NewFromRawBytes(bytes.NewReader(raw[:len(raw)-1]), false)
	require.ErrorIs(t, err, ErrInputOutputCountMismatch)
}

// TestTruncatedRecord checks that a stream ending inside a record is
// rejected as truncated.
func TestTruncatedRecord(t *testing.T) {
	t.Parallel()

	raw := serializePacket(t, testPacket(t))

	// Cut inside the global unsigned tx record value.
	_, err := NewFromRawBytes(bytes.NewReader(raw[:12]), false)
	require.ErrorIs(t, err, ErrTruncated)
}

// TestUtxoMismatch checks that a non-witness UTXO whose hash does not
// match the outpoint txid is rejected, using a UTXO whose first output
// value was changed after the outpoint was built.
func TestUtxoMismatch(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)

	// Flip a byte of the previous transaction: its hash changes, the
	// outpoint reference does not.
	packet.Inputs[0].NonWitnessUtxo.TxOut[0].Value++

	raw := serializePacket(t, packet)

	_, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.ErrorIs(t, err, ErrUtxoMismatch)
}

// TestFinalizedProjection checks that a finalized input serializes only
// its final scripts, UTXO record and unknowns.
func TestFinalizedProjection(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	packet.Inputs[0].FinalScriptSig = testScript
	packet.Inputs[0].Unknowns = []*Unknown{{
		Key:   []byte{0xc7},
		Value: []byte{0x0f},
	}}

	raw := serializePacket(t, packet)

	decoded, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)

	in := decoded.Inputs[0]
	require.Equal(t, testScript, in.FinalScriptSig)
	require.NotNil(t, in.NonWitnessUtxo)
	require.Len(t, in.Unknowns, 1)

	// None of the signing-stage records survive the projection.
	require.Empty(t, in.PartialSigs)
	require.Zero(t, in.SighashType)
	require.Nil(t, in.RedeemScript)
	require.Nil(t, in.WitnessScript)
	require.Empty(t, in.Bip32Derivation)

	require.True(t, decoded.IsComplete())
}

// TestWitnessUtxoPreference checks that an input holding both UTXO forms
// emits only the non-witness form.
func TestWitnessUtxoPreference(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    100_000,
		PkScript: testScript,
	}

	raw := serializePacket(t, packet)

	decoded, err := NewFromRawBytes(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.NotNil(t, decoded.Inputs[0].NonWitnessUtxo)
	require.Nil(t, decoded.Inputs[0].WitnessUtxo)
}

// TestCreator checks the skeleton constructor's validation rules.
func TestCreator(t *testing.T) {
	t.Parallel()

	prevTx := testPrevTx()
	outPoint := &wire.OutPoint{Hash: prevTx.TxHash(), Index: 0}
	txOut := &wire.TxOut{Value: 90_000, PkScript: testScript}
	sequences := []uint32{wire.MaxTxInSequenceNum}

	packet, err := New(
		[]*wire.OutPoint{outPoint}, []*wire.TxOut{txOut}, 2, 0,
		sequences,
	)
	require.NoError(t, err)
	require.Len(t, packet.Inputs, 1)
	require.Len(t, packet.Outputs, 1)
	require.False(t, packet.IsComplete())

	_, err = New(
		[]*wire.OutPoint{outPoint}, []*wire.TxOut{txOut}, 3, 0,
		sequences,
	)
	require.ErrorIs(t, err, ErrInvalidTxVersion)

	_, err = New(
		[]*wire.OutPoint{outPoint}, []*wire.TxOut{txOut}, 2, 0, nil,
	)
	require.ErrorIs(t, err, ErrSequenceCountMismatch)
}

// TestGetTxFee checks fee computation from both UTXO record forms and the
// missing-info error.
func TestGetTxFee(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)

	fee, err := packet.GetTxFee()
	require.NoError(t, err)
	require.EqualValues(t, 10_000, fee)

	// The witness form alone is enough.
	packet.Inputs[0].NonWitnessUtxo = nil
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    100_000,
		PkScript: testScript,
	}
	fee, err = packet.GetTxFee()
	require.NoError(t, err)
	require.EqualValues(t, 10_000, fee)

	packet.Inputs[0].WitnessUtxo = nil
	_, err = packet.GetTxFee()
	require.ErrorIs(t, err, ErrMissingUtxoInfo)
}

// TestVerifyInputOutputLen checks the section alignment helper.
func TestVerifyInputOutputLen(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	require.NoError(t, VerifyInputOutputLen(packet, true, true))

	misaligned := testPacket(t)
	misaligned.Inputs = append(misaligned.Inputs, PInput{})
	require.ErrorIs(
		t, VerifyInputOutputLen(misaligned, false, false),
		ErrInputOutputCountMismatch,
	)

	require.ErrorIs(
		t, VerifyInputOutputLen(nil, false, false),
		ErrMissingUnsignedTx,
	)
}

// TestSigDataRoundTrip checks the signing projection and its merge back
// into the input.
func TestSigDataRoundTrip(t *testing.T) {
	t.Parallel()

	packet := testPacket(t)
	in := &packet.Inputs[0]

	sd := in.SigData()
	require.Equal(t, in.RedeemScript, sd.RedeemScript)
	require.Equal(t, in.SighashType, sd.SighashType)
	require.Len(t, sd.PartialSigs, 2)
	require.False(t, sd.Complete())

	// A signer contributes one new signature and the final script; the
	// existing signature for the same pubkey is not duplicated.
	sd.PartialSigs = append(sd.PartialSigs, &PartialSig{
		PubKey:    testPubKeyCompressed,
		Signature: testSig,
	})
	sd.FinalScriptWitness = testScript
	require.True(t, sd.Complete())

	in.MergeSigData(sd)
	require.Len(t, in.PartialSigs, 2)
	require.Equal(t, testScript, in.FinalScriptWitness)
	require.True(t, packet.IsComplete())
}
