// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package psbt implements the binary format for partially signed
// transactions: an unsigned transaction together with per-input and
// per-output metadata (UTXO references, partial signatures, scripts and
// BIP32 derivation paths) accumulated across a creator, updater, signer,
// combiner and finalizer pipeline. The serialization is bit-exact so that
// packets interoperate with external wallets and signers.
package psbt

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// psbtMagicLength is the length of the magic bytes used to signal the start
// of a serialized packet.
const psbtMagicLength = 5

// psbtMagic is the packet prefix: the ASCII bytes "psbt" followed by the
// 0xff separator.
var psbtMagic = [psbtMagicLength]byte{0x70, 0x73, 0x62, 0x74, 0xff}

// MaxPsbtValueLength is the size of the largest value that will be read from
// a serialized packet. This bounds the largest transaction serialization
// that can be carried in a non-witness UTXO field.
const MaxPsbtValueLength = 4000000

// MaxPsbtKeyLength is the length of the largest key that will be read from a
// serialized packet. Anything larger fails with ErrOverflow.
const MaxPsbtKeyLength = 10000

var (
	// ErrInvalidMagic is returned when a serialized packet does not begin
	// with the expected magic bytes.
	ErrInvalidMagic = errors.New("invalid magic bytes")

	// ErrTruncated is returned when the serialization ends in the middle
	// of a key-value record.
	ErrTruncated = errors.New("serialization truncated mid record")

	// ErrMalformedPrefix is returned when a compact-size length prefix
	// cannot be decoded.
	ErrMalformedPrefix = errors.New("malformed compact size prefix")

	// ErrOverflow is returned when a key or value length prefix exceeds
	// the maximum this package will read.
	ErrOverflow = errors.New("key or value length exceeds maximum")

	// ErrDuplicateKey is returned when the same key appears twice within
	// one section of a serialized packet.
	ErrDuplicateKey = errors.New("duplicate key within a section")

	// ErrInvalidKeyData is returned when a key-value record carries key
	// material that is not valid for its type, e.g. a non-empty key on a
	// record type that takes none.
	ErrInvalidKeyData = errors.New("invalid key data")

	// ErrInvalidPubkey is returned when the pubkey key material of a
	// partial signature or derivation record is not a structurally valid
	// compressed or uncompressed public key. A partial signature record
	// whose signature is shorter than the minimum DER length also fails
	// with this error.
	ErrInvalidPubkey = errors.New("invalid pubkey in key data")

	// ErrMalformedKeypath is returned when a BIP32 derivation value is
	// not a multiple of four bytes.
	ErrMalformedKeypath = errors.New("malformed BIP32 derivation path")

	// ErrSizeMismatch is returned when a value length does not match the
	// fixed-size payload it encloses.
	ErrSizeMismatch = errors.New("value length does not match payload")

	// ErrMissingUnsignedTx is returned when the global section closes
	// without an unsigned transaction record. A second unsigned
	// transaction record fails earlier with ErrDuplicateKey.
	ErrMissingUnsignedTx = errors.New("global section has no unsigned tx")

	// ErrUnsignedTxNotEmpty is returned when an input of the unsigned
	// transaction carries a signature script or witness.
	ErrUnsignedTxNotEmpty = errors.New("unsigned tx input is not empty")

	// ErrInputOutputCountMismatch is returned when the number of input or
	// output sections differs from the unsigned transaction's input or
	// output count.
	ErrInputOutputCountMismatch = errors.New("input/output section " +
		"count does not match unsigned tx")

	// ErrUtxoMismatch is returned when the hash of a non-witness UTXO
	// does not match the txid referenced by the corresponding input of
	// the unsigned transaction.
	ErrUtxoMismatch = errors.New("non-witness utxo does not match " +
		"input outpoint")

	// ErrMissingUtxoInfo is returned when a fee computation requires UTXO
	// information that an input does not carry.
	ErrMissingUtxoInfo = errors.New("input has no utxo information")

	// ErrInvalidTxVersion is returned by the creator when the requested
	// transaction version is not supported.
	ErrInvalidTxVersion = errors.New("invalid transaction version")

	// ErrSequenceCountMismatch is returned by the creator when the number
	// of sequence numbers differs from the number of inputs.
	ErrSequenceCountMismatch = errors.New("one sequence number required " +
		"per input")
)

// Unknown is a key-value pair whose key type is not recognized by this
// package. Unknown records are preserved verbatim for forward
// compatibility, in both the global section and the per-input and
// per-output sections.
type Unknown struct {
	Key   []byte
	Value []byte
}

// Packet is the in-memory form of a partially signed transaction: one
// global section holding the unsigned transaction, plus one metadata
// section per input and per output.
type Packet struct {
	// UnsignedTx is the transaction being signed. Its inputs must all
	// carry an empty signature script and empty witness.
	UnsignedTx *wire.MsgTx

	// Inputs holds the metadata for each transaction input, index
	// aligned with UnsignedTx.TxIn.
	Inputs []PInput

	// Outputs holds the metadata for each transaction output, index
	// aligned with UnsignedTx.TxOut.
	Outputs []POutput

	// Unknowns are unrecognized global records, kept in the order they
	// were added so re-encoding a decoded packet is byte identical.
	Unknowns []*Unknown
}

// validateUnsignedTx returns true if no input of the transaction carries a
// signature script or witness.
func validateUnsignedTx(tx *wire.MsgTx) bool {
	for _, tin := range tx.TxIn {
		if len(tin.SignatureScript) != 0 || len(tin.Witness) != 0 {
			return false
		}
	}

	return true
}

// NewFromUnsignedTx creates a Packet from the passed unsigned transaction.
// Only the global section is populated; the input and output sections are
// allocated empty, one per transaction input and output.
func NewFromUnsignedTx(tx *wire.MsgTx) (*Packet, error) {
	if !validateUnsignedTx(tx) {
		return nil, ErrUnsignedTxNotEmpty
	}

	return &Packet{
		UnsignedTx: tx,
		Inputs:     make([]PInput, len(tx.TxIn)),
		Outputs:    make([]POutput, len(tx.TxOut)),
		Unknowns:   make([]*Unknown, 0),
	}, nil
}

// New creates a minimal Packet from an outpoint and output skeleton. Only
// the txid:index of each input is populated, never any script or witness
// data. One sequence number is required per input.
func New(inputs []*wire.OutPoint, outputs []*wire.TxOut, version int32,
	nLockTime uint32, nSequences []uint32) (*Packet, error) {

	if version != 1 && version != 2 {
		return nil, ErrInvalidTxVersion
	}
	if len(nSequences) != len(inputs) {
		return nil, ErrSequenceCountMismatch
	}

	unsignedTx := wire.NewMsgTx(version)
	unsignedTx.LockTime = nLockTime
	for i, in := range inputs {
		unsignedTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: *in,
			Sequence:         nSequences[i],
		})
	}
	for _, out := range outputs {
		unsignedTx.AddTxOut(out)
	}

	return NewFromUnsignedTx(unsignedTx)
}

// NewFromRawBytes returns a Packet decoded from the passed reader. If b64
// is true the stream is base64 decoded first. All section, duplicate-key
// and consistency rules are enforced; on any failure no partial packet is
// returned.
func NewFromRawBytes(r io.Reader, b64 bool) (*Packet, error) {
	if b64 {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	// The magic bytes are not stored in the Packet; they must be present
	// or the serialization is rejected outright.
	var magic [psbtMagicLength]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrInvalidMagic
	}
	if magic != psbtMagic {
		return nil, ErrInvalidMagic
	}

	// Parse the global section: exactly one unsigned transaction record
	// must be observed before the separator, anything else with a
	// non-empty key is preserved as an unknown.
	var (
		msgTx      *wire.MsgTx
		unknowns   []*Unknown
		globalKeys = newKeySet()
	)
	for {
		kv, err := getKVPair(r)
		if err != nil {
			// A stream that ends before the global separator is
			// truncated, not merely missing sections.
			if err == io.EOF {
				return nil, ErrTruncated
			}

			return nil, err
		}

		// A zero-length key terminates the section.
		if kv == nil {
			break
		}

		if !globalKeys.addKey(kv.keyType, kv.keyData) {
			return nil, ErrDuplicateKey
		}

		switch GlobalType(kv.keyType) {
		case UnsignedTxType:
			if kv.keyData != nil {
				return nil, ErrInvalidKeyData
			}

			txReader := bytes.NewReader(kv.valueData)
			tx := wire.NewMsgTx(2)

			// The unsigned transaction is serialized without
			// witness data; its inputs must all be empty.
			err := tx.DeserializeNoWitness(txReader)
			if err != nil || txReader.Len() != 0 {
				return nil, ErrSizeMismatch
			}
			if !validateUnsignedTx(tx) {
				return nil, ErrUnsignedTxNotEmpty
			}

			msgTx = tx

		default:
			unknowns = append(unknowns, &Unknown{
				Key:   keyTypeAndData(kv),
				Value: kv.valueData,
			})
		}
	}

	if msgTx == nil {
		return nil, ErrMissingUnsignedTx
	}

	// One metadata section per transaction input.
	inSlice := make([]PInput, len(msgTx.TxIn))
	for i := range inSlice {
		if err := inSlice[i].deserialize(r); err != nil {
			return nil, sectionErr(err)
		}
	}

	// One metadata section per transaction output.
	outSlice := make([]POutput, len(msgTx.TxOut))
	for i := range outSlice {
		if err := outSlice[i].deserialize(r); err != nil {
			return nil, sectionErr(err)
		}
	}

	// The final output separator must be the last byte of the stream; a
	// trailing section means the counts do not line up.
	var trailing [1]byte
	if _, err := io.ReadFull(r, trailing[:]); err != io.EOF {
		return nil, ErrInputOutputCountMismatch
	}

	packet := &Packet{
		UnsignedTx: msgTx,
		Inputs:     inSlice,
		Outputs:    outSlice,
		Unknowns:   unknowns,
	}

	if err := packet.SanityCheck(); err != nil {
		return nil, err
	}

	return packet, nil
}

// sectionErr maps a clean end-of-stream between records of an input or
// output section onto the count-mismatch error: the unsigned transaction
// promised more sections than the serialization carries.
func sectionErr(err error) error {
	if err == io.EOF {
		return ErrInputOutputCountMismatch
	}

	return err
}

// Serialize writes the binary serialization of the packet: magic, global
// section, then each input and output section in order, each terminated by
// a separator byte. Recognized fields are emitted in type-tag order with
// keyed fields sorted by key bytes and unknowns in insertion order, so
// serializing a decoded packet reproduces the original bytes when those
// were written by this encoder.
func (p *Packet) Serialize(w io.Writer) error {
	if _, err := w.Write(psbtMagic[:]); err != nil {
		return err
	}

	// The unsigned transaction is the only recognized global record. It
	// is serialized in the old format, without witness data.
	serializedTx := bytes.NewBuffer(
		make([]byte, 0, p.UnsignedTx.SerializeSizeStripped()),
	)
	if err := p.UnsignedTx.SerializeNoWitness(serializedTx); err != nil {
		return err
	}

	err := serializeKVPairWithType(
		w, uint8(UnsignedTxType), nil, serializedTx.Bytes(),
	)
	if err != nil {
		return err
	}

	for _, kv := range p.Unknowns {
		if err := serializeKVpair(w, kv.Key, kv.Value); err != nil {
			return err
		}
	}

	if _, err := w.Write(separator[:]); err != nil {
		return err
	}

	for i := range p.Inputs {
		if err := p.Inputs[i].serialize(w); err != nil {
			return err
		}
	}

	for i := range p.Outputs {
		if err := p.Outputs[i].serialize(w); err != nil {
			return err
		}
	}

	return nil
}

// B64Encode returns the base64 encoding of the packet serialization, the
// conventional interchange form for text transports.
func (p *Packet) B64Encode() (string, error) {
	var b bytes.Buffer
	if err := p.Serialize(&b); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(b.Bytes()), nil
}

// SanityCheck verifies the cross-section consistency rules: the unsigned
// transaction must be unsigned, the section counts must match the
// transaction's input and output counts, and every non-witness UTXO must
// hash to the txid its input spends.
func (p *Packet) SanityCheck() error {
	if !validateUnsignedTx(p.UnsignedTx) {
		return ErrUnsignedTxNotEmpty
	}

	if len(p.Inputs) != len(p.UnsignedTx.TxIn) ||
		len(p.Outputs) != len(p.UnsignedTx.TxOut) {

		return ErrInputOutputCountMismatch
	}

	for i := range p.Inputs {
		pi := &p.Inputs[i]
		if pi.NonWitnessUtxo == nil {
			continue
		}

		txid := p.UnsignedTx.TxIn[i].PreviousOutPoint.Hash
		if pi.NonWitnessUtxo.TxHash() != txid {
			return ErrUtxoMismatch
		}
	}

	return nil
}

// IsComplete returns true only if every input is finalized, i.e. extraction
// of a fully signed transaction is possible.
func (p *Packet) IsComplete() bool {
	for i := range p.Inputs {
		if !p.Inputs[i].isFinalized() {
			return false
		}
	}

	return true
}

// VerifyInputOutputLen checks that a packet's sections are aligned with
// its unsigned transaction, and optionally that the transaction is
// non-trivial in each direction. Updater-style callers use this before
// touching a packet they did not decode themselves.
func VerifyInputOutputLen(packet *Packet, needInputs, needOutputs bool) error {
	if packet == nil || packet.UnsignedTx == nil {
		return ErrMissingUnsignedTx
	}

	if len(packet.Inputs) != len(packet.UnsignedTx.TxIn) ||
		len(packet.Outputs) != len(packet.UnsignedTx.TxOut) {

		return ErrInputOutputCountMismatch
	}

	if needInputs && len(packet.UnsignedTx.TxIn) == 0 {
		return ErrInputOutputCountMismatch
	}
	if needOutputs && len(packet.UnsignedTx.TxOut) == 0 {
		return ErrInputOutputCountMismatch
	}

	return nil
}

// SumUtxoInputValues attempts to extract the sum of all input values from
// the packet's UTXO records. An error is returned if an input carries
// neither a witness nor a non-witness UTXO.
func SumUtxoInputValues(packet *Packet) (int64, error) {
	if len(packet.Inputs) != len(packet.UnsignedTx.TxIn) {
		return 0, ErrInputOutputCountMismatch
	}

	var inputSum int64
	for idx := range packet.Inputs {
		in := &packet.Inputs[idx]

		switch {
		case in.WitnessUtxo != nil:
			// The witness UTXO is the previous output itself, so
			// we can take its value directly.
			inputSum += in.WitnessUtxo.Value

		case in.NonWitnessUtxo != nil:
			// The non-witness UTXO is the full previous
			// transaction; the spent output is addressed by the
			// outpoint index.
			prevIdx := packet.UnsignedTx.TxIn[idx].PreviousOutPoint.Index
			if prevIdx >= uint32(len(in.NonWitnessUtxo.TxOut)) {
				return 0, ErrUtxoMismatch
			}
			inputSum += in.NonWitnessUtxo.TxOut[prevIdx].Value

		default:
			return 0, ErrMissingUtxoInfo
		}
	}

	return inputSum, nil
}

// GetTxFee returns the fee of the transaction described by the packet: the
// input sum taken from the UTXO records minus the output sum of the
// unsigned transaction. An error is returned if any input lacks UTXO
// information.
func (p *Packet) GetTxFee() (btcutil.Amount, error) {
	sumInputs, err := SumUtxoInputValues(p)
	if err != nil {
		return 0, err
	}

	var sumOutputs int64
	for _, txOut := range p.UnsignedTx.TxOut {
		sumOutputs += txOut.Value
	}

	return btcutil.Amount(sumInputs - sumOutputs), nil
}
