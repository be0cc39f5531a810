// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// KeyProvider is the key-store contract consumed by external signers. The
// codec itself never signs; it only projects signing-relevant data out of a
// packet and merges the signer's results back in.
type KeyProvider interface {
	// GetScript returns the script with the given script hash.
	GetScript(scriptID []byte) ([]byte, error)

	// GetPubKey returns the public key with the given key ID.
	GetPubKey(keyID []byte) (*btcec.PublicKey, error)

	// GetKey returns the private key with the given key ID.
	GetKey(keyID []byte) (*btcec.PrivateKey, error)
}

// SignatureData is the signing-relevant projection of one packet input. A
// signer fills in partial signatures, or the final scripts once enough
// signatures exist, and the result is merged back into the input.
type SignatureData struct {
	// RedeemScript and WitnessScript mirror the input's spend scripts.
	RedeemScript  []byte
	WitnessScript []byte

	// SighashType is the digest commitment the signer should use. Zero
	// means the input did not constrain it.
	SighashType txscript.SigHashType

	// PartialSigs holds the signatures gathered so far.
	PartialSigs []*PartialSig

	// HDKeyPaths carries the derivation hints the signer may use to
	// locate its keys.
	HDKeyPaths []*Bip32Derivation

	// FinalScriptSig and FinalScriptWitness are set once the input is
	// fully signed.
	FinalScriptSig     []byte
	FinalScriptWitness []byte
}

// Complete reports whether the signature data describes a fully signed
// input.
func (sd *SignatureData) Complete() bool {
	return sd.FinalScriptSig != nil || sd.FinalScriptWitness != nil
}

// SigData projects the signing-relevant subset of the input into a
// SignatureData record. The slices are shared with the input, not copied;
// the record is a view handed to a signer, not an independent packet.
func (pi *PInput) SigData() *SignatureData {
	return &SignatureData{
		RedeemScript:       pi.RedeemScript,
		WitnessScript:      pi.WitnessScript,
		SighashType:        pi.SighashType,
		PartialSigs:        pi.PartialSigs,
		HDKeyPaths:         pi.Bip32Derivation,
		FinalScriptSig:     pi.FinalScriptSig,
		FinalScriptWitness: pi.FinalScriptWitness,
	}
}

// MergeSigData folds a signer-updated SignatureData record back into the
// input. Scripts and the sighash type are only adopted where the input had
// none, partial signatures are merged per pubkey, and final scripts always
// win.
func (pi *PInput) MergeSigData(sd *SignatureData) {
	if pi.RedeemScript == nil {
		pi.RedeemScript = sd.RedeemScript
	}
	if pi.WitnessScript == nil {
		pi.WitnessScript = sd.WitnessScript
	}
	if pi.SighashType == 0 {
		pi.SighashType = sd.SighashType
	}

	known := make(map[string]struct{}, len(pi.PartialSigs))
	for _, ps := range pi.PartialSigs {
		known[string(ps.PubKey)] = struct{}{}
	}
	for _, ps := range sd.PartialSigs {
		if _, ok := known[string(ps.PubKey)]; ok {
			continue
		}
		pi.PartialSigs = append(pi.PartialSigs, ps)
	}

	knownPaths := make(map[string]struct{}, len(pi.Bip32Derivation))
	for _, kd := range pi.Bip32Derivation {
		knownPaths[string(kd.PubKey)] = struct{}{}
	}
	for _, kd := range sd.HDKeyPaths {
		if _, ok := knownPaths[string(kd.PubKey)]; ok {
			continue
		}
		pi.Bip32Derivation = append(pi.Bip32Derivation, kd)
	}

	if sd.FinalScriptSig != nil {
		pi.FinalScriptSig = sd.FinalScriptSig
	}
	if sd.FinalScriptWitness != nil {
		pi.FinalScriptWitness = sd.FinalScriptWitness
	}
}
