// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PartialSig is a signature for the given pubkey over the transaction
// digest of one input. The pubkey is kept in its serialized form, either 33
// bytes compressed or 65 bytes uncompressed.
type PartialSig struct {
	PubKey    []byte
	Signature []byte
}

// PartialSigSorter implements sort.Interface, ordering partial signatures
// by their serialized pubkey bytes. Encode order over keyed fields is by
// key bytes so that re-encoding a decoded packet is deterministic.
type PartialSigSorter []*PartialSig

func (s PartialSigSorter) Len() int { return len(s) }

func (s PartialSigSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s PartialSigSorter) Less(i, j int) bool {
	return bytes.Compare(s[i].PubKey, s[j].PubKey) < 0
}

// validatePubkey returns true if the passed key material is a structurally
// valid serialized public key: 33 bytes compressed or 65 bytes
// uncompressed, and parseable as a curve point.
func validatePubkey(pubKey []byte) bool {
	switch len(pubKey) {
	case secp256k1PubKeyCompressedLength,
		secp256k1PubKeyUncompressedLength:

	default:
		return false
	}

	_, err := btcec.ParsePubKey(pubKey)

	return err == nil
}

const (
	// secp256k1PubKeyCompressedLength is the serialized length of a
	// compressed public key.
	secp256k1PubKeyCompressedLength = 33

	// secp256k1PubKeyUncompressedLength is the serialized length of an
	// uncompressed public key.
	secp256k1PubKeyUncompressedLength = 65

	// minSigLength is the shortest DER signature plus sighash byte this
	// package will accept in a partial signature record.
	minSigLength = 9
)

// checkValid checks that both the pubkey and the signature are sane. The
// signature is only checked for a plausible DER length, never
// cryptographically.
func (ps *PartialSig) checkValid() bool {
	return validatePubkey(ps.PubKey) && len(ps.Signature) >= minSigLength
}
