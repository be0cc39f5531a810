// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"
)

// Bip32Derivation carries the master key fingerprint and the derivation
// path needed to derive the given pubkey from a hierarchical wallet seed.
type Bip32Derivation struct {
	// PubKey is the serialized pubkey the path derives, 33 or 65 bytes.
	PubKey []byte

	// MasterKeyFingerprint is the first four bytes of the hash160 of the
	// master key the path starts from. The codec does not interpret it
	// beyond its position as the leading index.
	MasterKeyFingerprint uint32

	// Bip32Path is the derivation path, one 32-bit index per level,
	// hardened levels offset by 2^31.
	Bip32Path []uint32
}

// checkValid reports whether the derivation's pubkey is structurally valid.
func (pb *Bip32Derivation) checkValid() bool {
	return validatePubkey(pb.PubKey)
}

// Bip32Sorter implements sort.Interface, ordering derivations by their
// serialized pubkey bytes for deterministic encoding.
type Bip32Sorter []*Bip32Derivation

func (s Bip32Sorter) Len() int { return len(s) }

func (s Bip32Sorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s Bip32Sorter) Less(i, j int) bool {
	return bytes.Compare(s[i].PubKey, s[j].PubKey) < 0
}

// ReadBip32Derivation deserializes a BIP32 derivation value: a
// concatenation of 4-byte little-endian indices, the first of which is by
// convention the master key fingerprint. A value whose length is not a
// multiple of four fails with ErrMalformedKeypath.
func ReadBip32Derivation(path []byte) (uint32, []uint32, error) {
	if len(path) == 0 || len(path)%4 != 0 {
		return 0, nil, ErrMalformedKeypath
	}

	masterKeyInt := binary.LittleEndian.Uint32(path[:4])

	var paths []uint32
	for i := 4; i < len(path); i += 4 {
		paths = append(paths, binary.LittleEndian.Uint32(path[i:i+4]))
	}

	return masterKeyInt, paths, nil
}

// SerializeBIP32Derivation serializes a master key fingerprint and path to
// the wire form read back by ReadBip32Derivation.
func SerializeBIP32Derivation(masterKeyFingerprint uint32,
	bip32Path []uint32) []byte {

	var masterKeyBytes [4]byte
	binary.LittleEndian.PutUint32(masterKeyBytes[:], masterKeyFingerprint)

	derivationPath := make([]byte, 0, 4+4*len(bip32Path))
	derivationPath = append(derivationPath, masterKeyBytes[:]...)
	for _, path := range bip32Path {
		var pathBytes [4]byte
		binary.LittleEndian.PutUint32(pathBytes[:], path)
		derivationPath = append(derivationPath, pathBytes[:]...)
	}

	return derivationPath
}
