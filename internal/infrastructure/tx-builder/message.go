package txbuilder

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const messageSignatureHeader = "Bitcoin Signed Message:\n"

// VerifyMessage checks a base64 compact signature of message, as produced by
// the signmessage RPC, against a P2PKH or P2WPKH address.
func (b *txBuilder) VerifyMessage(address, message, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %s", err)
	}

	pubkey, compressed, err := ecdsa.RecoverCompact(sig, MessageHash(message))
	if err != nil {
		return fmt.Errorf("failed to recover public key: %s", err)
	}

	addr, err := btcutil.DecodeAddress(address, b.net)
	if err != nil {
		return fmt.Errorf("invalid address %s: %s", address, err)
	}

	var serialized []byte
	if compressed {
		serialized = pubkey.SerializeCompressed()
	} else {
		serialized = pubkey.SerializeUncompressed()
	}
	pubkeyHash := btcutil.Hash160(serialized)

	var expected []byte
	switch a := addr.(type) {
	case *btcutil.AddressWitnessPubKeyHash:
		if !compressed {
			return fmt.Errorf("segwit addresses require a compressed key")
		}
		expected = a.WitnessProgram()
	case *btcutil.AddressPubKeyHash:
		expected = a.Hash160()[:]
	default:
		return fmt.Errorf("unsupported address type %T", addr)
	}

	if !bytes.Equal(pubkeyHash, expected) {
		return fmt.Errorf("signature does not match address %s", address)
	}
	return nil
}

// MessageHash is the double sha256 of the prefixed message.
func MessageHash(message string) []byte {
	var buf bytes.Buffer
	// nolint:errcheck
	wire.WriteVarString(&buf, 0, messageSignatureHeader)
	// nolint:errcheck
	wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}
