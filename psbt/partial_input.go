// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// PInput is the metadata attached to one input of the packet: the UTXO
// being spent, any scripts and derivation hints an updater contributed,
// partial signatures from signers, and the final scripts once a finalizer
// has run.
type PInput struct {
	// NonWitnessUtxo is the full previous transaction containing the
	// spent output.
	NonWitnessUtxo *wire.MsgTx

	// WitnessUtxo is the spent output alone. Both UTXO forms may be held
	// in memory at once; the encoder prefers NonWitnessUtxo when both
	// are set.
	WitnessUtxo *wire.TxOut

	// PartialSigs holds one signature per signing pubkey.
	PartialSigs []*PartialSig

	// SighashType is the sighash the signers of this input should
	// commit to. Zero means unset and is not serialized.
	SighashType txscript.SigHashType

	// RedeemScript and WitnessScript are the spend scripts an updater
	// attached for script-hash outputs.
	RedeemScript  []byte
	WitnessScript []byte

	// Bip32Derivation holds the derivation hints, one per pubkey.
	Bip32Derivation []*Bip32Derivation

	// FinalScriptSig and FinalScriptWitness are populated by a
	// finalizer. Once either is set the input is finalized and only the
	// final scripts, the UTXO records and unknowns are serialized.
	FinalScriptSig     []byte
	FinalScriptWitness []byte

	// Unknowns are unrecognized records, preserved in insertion order.
	Unknowns []*Unknown
}

// NewPsbtInput creates a PInput given either a nonWitnessUtxo or a
// witnessUtxo; the other argument should be nil.
func NewPsbtInput(nonWitnessUtxo *wire.MsgTx,
	witnessUtxo *wire.TxOut) *PInput {

	return &PInput{
		NonWitnessUtxo:  nonWitnessUtxo,
		WitnessUtxo:     witnessUtxo,
		PartialSigs:     []*PartialSig{},
		Bip32Derivation: []*Bip32Derivation{},
	}
}

// isFinalized reports whether a finalizer has produced the final scripts
// for this input.
func (pi *PInput) isFinalized() bool {
	return pi.FinalScriptSig != nil || pi.FinalScriptWitness != nil
}

// deserialize reads one input section from the stream, up to and including
// its separator record.
func (pi *PInput) deserialize(r io.Reader) error {
	inputKeys := newKeySet()
	for {
		kv, err := getKVPair(r)
		if err != nil {
			return err
		}

		// A zero-length key terminates the section.
		if kv == nil {
			break
		}

		// The full key, type tag plus key material, must be unique
		// within one input section.
		if !inputKeys.addKey(kv.keyType, kv.keyData) {
			return ErrDuplicateKey
		}

		switch InputType(kv.keyType) {
		case NonWitnessUtxoType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}

			txReader := bytes.NewReader(kv.valueData)
			tx := wire.NewMsgTx(2)
			err := tx.Deserialize(txReader)
			if err != nil || txReader.Len() != 0 {
				return ErrSizeMismatch
			}
			pi.NonWitnessUtxo = tx

		case WitnessUtxoType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}

			txout, err := readTxOut(kv.valueData)
			if err != nil {
				return err
			}
			pi.WitnessUtxo = txout

		case PartialSigType:
			newPartialSig := PartialSig{
				PubKey:    kv.keyData,
				Signature: kv.valueData,
			}
			if !newPartialSig.checkValid() {
				return ErrInvalidPubkey
			}

			pi.PartialSigs = append(
				pi.PartialSigs, &newPartialSig,
			)

		case SighashType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}

			// The sighash type is a 32-bit little-endian integer.
			if len(kv.valueData) != 4 {
				return ErrSizeMismatch
			}

			pi.SighashType = txscript.SigHashType(
				binary.LittleEndian.Uint32(kv.valueData),
			)

		case RedeemScriptInputType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			pi.RedeemScript = kv.valueData

		case WitnessScriptInputType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			pi.WitnessScript = kv.valueData

		case Bip32DerivationInputType:
			if !validatePubkey(kv.keyData) {
				return ErrInvalidPubkey
			}

			master, derivationPath, err := ReadBip32Derivation(
				kv.valueData,
			)
			if err != nil {
				return err
			}

			pi.Bip32Derivation = append(
				pi.Bip32Derivation,
				&Bip32Derivation{
					PubKey:               kv.keyData,
					MasterKeyFingerprint: master,
					Bip32Path:            derivationPath,
				},
			)

		case FinalScriptSigType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			pi.FinalScriptSig = kv.valueData

		case FinalScriptWitnessType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			pi.FinalScriptWitness = kv.valueData

		default:
			// Unrecognized types are preserved verbatim; the
			// key-set check above already rejected duplicates.
			pi.Unknowns = append(pi.Unknowns, &Unknown{
				Key:   keyTypeAndData(kv),
				Value: kv.valueData,
			})
		}
	}

	return nil
}

// serialize writes one input section to the stream, terminated by the
// separator record. Recognized fields are emitted in type-tag order with
// keyed fields sorted by pubkey. For a finalized input only the UTXO
// records, the final scripts and unknowns are emitted.
func (pi *PInput) serialize(w io.Writer) error {
	// When both UTXO forms are held, the full previous transaction is
	// the canonical record to emit.
	if pi.NonWitnessUtxo != nil {
		var buf bytes.Buffer
		if err := pi.NonWitnessUtxo.Serialize(&buf); err != nil {
			return err
		}

		err := serializeKVPairWithType(
			w, uint8(NonWitnessUtxoType), nil, buf.Bytes(),
		)
		if err != nil {
			return err
		}
	} else if pi.WitnessUtxo != nil {
		var buf bytes.Buffer
		err := wire.WriteTxOut(&buf, 0, 0, pi.WitnessUtxo)
		if err != nil {
			return err
		}

		err = serializeKVPairWithType(
			w, uint8(WitnessUtxoType), nil, buf.Bytes(),
		)
		if err != nil {
			return err
		}
	}

	if !pi.isFinalized() {
		sort.Sort(PartialSigSorter(pi.PartialSigs))
		for _, ps := range pi.PartialSigs {
			err := serializeKVPairWithType(
				w, uint8(PartialSigType), ps.PubKey,
				ps.Signature,
			)
			if err != nil {
				return err
			}
		}

		if pi.SighashType != 0 {
			var shtBytes [4]byte
			binary.LittleEndian.PutUint32(
				shtBytes[:], uint32(pi.SighashType),
			)

			err := serializeKVPairWithType(
				w, uint8(SighashType), nil, shtBytes[:],
			)
			if err != nil {
				return err
			}
		}

		if pi.RedeemScript != nil {
			err := serializeKVPairWithType(
				w, uint8(RedeemScriptInputType), nil,
				pi.RedeemScript,
			)
			if err != nil {
				return err
			}
		}

		if pi.WitnessScript != nil {
			err := serializeKVPairWithType(
				w, uint8(WitnessScriptInputType), nil,
				pi.WitnessScript,
			)
			if err != nil {
				return err
			}
		}

		sort.Sort(Bip32Sorter(pi.Bip32Derivation))
		for _, kd := range pi.Bip32Derivation {
			err := serializeKVPairWithType(
				w, uint8(Bip32DerivationInputType),
				kd.PubKey,
				SerializeBIP32Derivation(
					kd.MasterKeyFingerprint,
					kd.Bip32Path,
				),
			)
			if err != nil {
				return err
			}
		}
	}

	if pi.FinalScriptSig != nil {
		err := serializeKVPairWithType(
			w, uint8(FinalScriptSigType), nil, pi.FinalScriptSig,
		)
		if err != nil {
			return err
		}
	}

	if pi.FinalScriptWitness != nil {
		err := serializeKVPairWithType(
			w, uint8(FinalScriptWitnessType), nil,
			pi.FinalScriptWitness,
		)
		if err != nil {
			return err
		}
	}

	for _, kv := range pi.Unknowns {
		if err := serializeKVpair(w, kv.Key, kv.Value); err != nil {
			return err
		}
	}

	if _, err := w.Write(separator[:]); err != nil {
		return err
	}

	return nil
}
