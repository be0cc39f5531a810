// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package psbt

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// separator terminates a section: it is a record with a zero-length key and
// no value.
var separator = [1]byte{0x00}

// kvPair is one decoded key-value record. The first byte of the key is
// split off as the type tag; any remaining key bytes are the type-specific
// key material, nil when the key is exactly one byte.
type kvPair struct {
	keyType   uint8
	keyData   []byte
	valueData []byte
}

// keyTypeAndData reassembles the full key bytes of a record, used to store
// unrecognized records verbatim.
func keyTypeAndData(kv *kvPair) []byte {
	return append([]byte{kv.keyType}, kv.keyData...)
}

// readCompactSize reads one compact-size length prefix and enforces the
// passed cap. Truncated or non-canonical prefixes fail with
// ErrMalformedPrefix, prefixes above the cap with ErrOverflow.
func readCompactSize(r io.Reader, maxAllowed uint64) (uint64, error) {
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		// A clean end of stream before the first prefix byte is left
		// for the caller to interpret; it marks a missing section
		// rather than a bad prefix.
		if err == io.EOF {
			return 0, io.EOF
		}

		return 0, ErrMalformedPrefix
	}
	if count > maxAllowed {
		return 0, ErrOverflow
	}

	return count, nil
}

// getKVPair reads one key-value record from the stream. A record with a
// zero-length key is the section separator, signalled by a nil return with
// no error.
func getKVPair(r io.Reader) (*kvPair, error) {
	keyLen, err := readCompactSize(r, MaxPsbtKeyLength)
	if err != nil {
		return nil, err
	}

	// A zero-length key is the separator; there is no value to read.
	if keyLen == 0 {
		return nil, nil
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, ErrTruncated
	}

	// The key has been read, so an end of stream here cuts the record
	// short.
	valueLen, err := readCompactSize(r, MaxPsbtValueLength)
	if err == io.EOF {
		return nil, ErrTruncated
	}
	if err != nil {
		return nil, err
	}

	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, ErrTruncated
	}

	pair := &kvPair{
		keyType:   key[0],
		valueData: value,
	}
	if keyLen > 1 {
		pair.keyData = key[1:]
	}

	return pair, nil
}

// serializeKVpair writes out the passed key and value with their
// compact-size length prefixes.
func serializeKVpair(w io.Writer, key []byte, value []byte) error {
	if err := wire.WriteVarInt(w, 0, uint64(len(key))); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, 0, uint64(len(value))); err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return err
	}

	return nil
}

// serializeKVPairWithType writes out a record whose key is the passed type
// tag followed by optional key material.
func serializeKVPairWithType(w io.Writer, kt uint8, keydata []byte,
	value []byte) error {

	serializedKey := append([]byte{kt}, keydata...)

	return serializeKVpair(w, serializedKey, value)
}

// readTxOut decodes a single wire.TxOut from the value of a witness UTXO
// record: an 8 byte little-endian value followed by a var-length pkScript.
func readTxOut(txout []byte) (*wire.TxOut, error) {
	if len(txout) < 10 {
		return nil, ErrSizeMismatch
	}

	valueSer := binary.LittleEndian.Uint64(txout[:8])

	scriptReader := bytes.NewReader(txout[8:])
	scriptPubKey, err := wire.ReadVarBytes(
		scriptReader, 0, txscript.MaxScriptSize, "pkScript",
	)
	if err != nil || scriptReader.Len() != 0 {
		return nil, ErrSizeMismatch
	}

	return &wire.TxOut{
		Value:    int64(valueSer),
		PkScript: scriptPubKey,
	}, nil
}

// keySet tracks the full keys seen within one section so duplicates can be
// rejected. Per the format rules, uniqueness is over the complete key
// bytes: per record kind for single-keyed fields, per pubkey for keyed
// fields, and over the verbatim key for unknown records.
type keySet struct {
	keys map[string]struct{}
}

func newKeySet() *keySet {
	return &keySet{keys: make(map[string]struct{})}
}

// addKey records the passed key and reports whether it was new.
func (s *keySet) addKey(keyType uint8, keyData []byte) bool {
	key := string(append([]byte{keyType}, keyData...))
	if _, ok := s.keys[key]; ok {
		return false
	}

	s.keys[key] = struct{}{}

	return true
}
