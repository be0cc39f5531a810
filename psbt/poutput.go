// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"io"
	"sort"
)

// POutput is the metadata attached to one output of the packet: the spend
// scripts and derivation hints a receiver needs to later claim the output.
type POutput struct {
	// RedeemScript is the redeem script of a script-hash output.
	RedeemScript []byte

	// WitnessScript is the witness script of a witness-script-hash
	// output.
	WitnessScript []byte

	// Bip32Derivation holds the derivation hints, one per pubkey.
	Bip32Derivation []*Bip32Derivation

	// Unknowns are unrecognized records, preserved in insertion order.
	Unknowns []*Unknown
}

// NewPsbtOutput creates an instance of POutput; the arguments to fields
// not yet known should be nil.
func NewPsbtOutput(redeemScript []byte, witnessScript []byte,
	bip32Derivation []*Bip32Derivation) *POutput {

	return &POutput{
		RedeemScript:    redeemScript,
		WitnessScript:   witnessScript,
		Bip32Derivation: bip32Derivation,
	}
}

// deserialize reads one output section from the stream, up to and
// including its separator record.
func (po *POutput) deserialize(r io.Reader) error {
	outputKeys := newKeySet()
	for {
		kv, err := getKVPair(r)
		if err != nil {
			return err
		}

		// A zero-length key terminates the section.
		if kv == nil {
			break
		}

		if !outputKeys.addKey(kv.keyType, kv.keyData) {
			return ErrDuplicateKey
		}

		switch OutputType(kv.keyType) {
		case RedeemScriptOutputType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			po.RedeemScript = kv.valueData

		case WitnessScriptOutputType:
			if kv.keyData != nil {
				return ErrInvalidKeyData
			}
			po.WitnessScript = kv.valueData

		case Bip32DerivationOutputType:
			if !validatePubkey(kv.keyData) {
				return ErrInvalidPubkey
			}

			master, derivationPath, err := ReadBip32Derivation(
				kv.valueData,
			)
			if err != nil {
				return err
			}

			po.Bip32Derivation = append(
				po.Bip32Derivation,
				&Bip32Derivation{
					PubKey:               kv.keyData,
					MasterKeyFingerprint: master,
					Bip32Path:            derivationPath,
				},
			)

		default:
			po.Unknowns = append(po.Unknowns, &Unknown{
				Key:   keyTypeAndData(kv),
				Value: kv.valueData,
			})
		}
	}

	return nil
}

// serialize writes one output section to the stream, terminated by the
// separator record, with fields in type-tag order and derivations sorted
// by pubkey.
func (po *POutput) serialize(w io.Writer) error {
	if po.RedeemScript != nil {
		err := serializeKVPairWithType(
			w, uint8(RedeemScriptOutputType), nil,
			po.RedeemScript,
		)
		if err != nil {
			return err
		}
	}

	if po.WitnessScript != nil {
		err := serializeKVPairWithType(
			w, uint8(WitnessScriptOutputType), nil,
			po.WitnessScript,
		)
		if err != nil {
			return err
		}
	}

	sort.Sort(Bip32Sorter(po.Bip32Derivation))
	for _, kd := range po.Bip32Derivation {
		err := serializeKVPairWithType(
			w, uint8(Bip32DerivationOutputType), kd.PubKey,
			SerializeBIP32Derivation(
				kd.MasterKeyFingerprint, kd.Bip32Path,
			),
		)
		if err != nil {
			return err
		}
	}

	for _, kv := range po.Unknowns {
		if err := serializeKVpair(w, kv.Key, kv.Value); err != nil {
			return err
		}
	}

	if _, err := w.Write(separator[:]); err != nil {
		return err
	}

	return nil
}
