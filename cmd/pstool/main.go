// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// pstool decodes, inspects and round-trip checks serialized partially
// signed transactions, from a file or a base64 string.
package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/walletkit/psbt"
	"github.com/davecgh/go-spew/spew"
	flags "github.com/jessevdk/go-flags"
)

var log btclog.Logger

type config struct {
	File string `short:"f" long:"file" description:"Path of a file holding a binary serialized packet"`

	Base64 string `short:"b" long:"base64" description:"Base64 string holding a serialized packet"`

	Dump bool `long:"dump" description:"Dump the full decoded packet structure"`

	RoundTrip bool `long:"roundtrip" description:"Re-encode the decoded packet and verify byte identity"`

	Debug bool `long:"debug" description:"Enable debug logging"`
}

func main() {
	if err := run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	backend := btclog.NewBackend(os.Stderr)
	log = backend.Logger("PSTL")

	cfg := config{}
	if _, err := flags.Parse(&cfg); err != nil {
		os.Exit(1)
	}

	if cfg.Debug {
		log.SetLevel(btclog.LevelDebug)
	}

	raw, b64, err := packetBytes(&cfg)
	if err != nil {
		return err
	}

	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), b64)
	if err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	printSummary(packet)

	if cfg.Dump {
		fmt.Print(spew.Sdump(packet))
	}

	if cfg.RoundTrip {
		if err := checkRoundTrip(packet, raw, b64); err != nil {
			return err
		}
		fmt.Println("round trip: ok")
	}

	return nil
}

// packetBytes resolves the input source from the config and reports whether
// the bytes are base64 encoded.
func packetBytes(cfg *config) ([]byte, bool, error) {
	switch {
	case cfg.File != "" && cfg.Base64 != "":
		return nil, false, fmt.Errorf("only one of --file and " +
			"--base64 may be set")

	case cfg.Base64 != "":
		return []byte(strings.TrimSpace(cfg.Base64)), true, nil

	case cfg.File != "":
		raw, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, false, err
		}

		// Files may hold either form; sniff for the binary magic.
		b64 := len(raw) < 5 ||
			!bytes.Equal(raw[:4], []byte("psbt"))
		if b64 {
			raw = bytes.TrimSpace(raw)
		}

		return raw, b64, nil

	default:
		return nil, false, fmt.Errorf("one of --file or --base64 " +
			"is required")
	}
}

func printSummary(packet *psbt.Packet) {
	tx := packet.UnsignedTx

	fmt.Printf("txid:      %v\n", tx.TxHash())
	fmt.Printf("inputs:    %d\n", len(packet.Inputs))
	fmt.Printf("outputs:   %d\n", len(packet.Outputs))
	fmt.Printf("unknowns:  %d\n", len(packet.Unknowns))
	fmt.Printf("complete:  %v\n", packet.IsComplete())

	fee, err := packet.GetTxFee()
	if err != nil {
		log.Debugf("Fee not computable: %v", err)
		fmt.Printf("fee:       n/a\n")

		return
	}
	fmt.Printf("fee:       %v\n", fee)
}

// checkRoundTrip re-encodes the packet and compares it to the original
// serialization.
func checkRoundTrip(packet *psbt.Packet, raw []byte, b64 bool) error {
	original := raw
	if b64 {
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return err
		}
		original = decoded
	}

	var reencoded bytes.Buffer
	if err := packet.Serialize(&reencoded); err != nil {
		return err
	}

	if !bytes.Equal(original, reencoded.Bytes()) {
		return fmt.Errorf("round trip mismatch: %d byte original, "+
			"%d byte re-encoding", len(original), reencoded.Len())
	}

	return nil
}
