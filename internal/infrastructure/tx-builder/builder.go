package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ark-network/coinjoin/internal/core/domain"
	"github.com/ark-network/coinjoin/internal/core/ports"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

type txBuilder struct {
	net *chaincfg.Params
}

func NewTxBuilder(net *chaincfg.Params) ports.TxBuilder {
	return &txBuilder{net}
}

func (b *txBuilder) GetTxOutput(txhex string, vout uint32) (*ports.TxOutput, error) {
	tx, err := decodeTx(txhex)
	if err != nil {
		return nil, err
	}
	if int(vout) >= len(tx.TxOut) {
		return nil, fmt.Errorf("output %d not found in tx %s", vout, tx.TxHash())
	}

	out := tx.TxOut[vout]
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, b.net)
	if err != nil {
		return nil, fmt.Errorf("failed to parse output script: %s", err)
	}
	if len(addresses) != 1 {
		return nil, fmt.Errorf("unsupported output script %x", out.PkScript)
	}

	return &ports.TxOutput{
		Value:   uint64(out.Value),
		Script:  hex.EncodeToString(out.PkScript),
		Address: addresses[0].EncodeAddress(),
	}, nil
}

func (b *txBuilder) ValidateAddress(address string) error {
	_, err := b.outputScript(address)
	return err
}

// BuildJointTx returns the unsigned mix tx in hex. Whatever exceeds the
// outputs amount goes to miners.
func (b *txBuilder) BuildJointTx(
	inputs []domain.RegisteredInput, outputs []string, denomination uint64,
) (string, error) {
	if len(inputs) <= 0 {
		return "", fmt.Errorf("missing inputs")
	}
	if len(inputs) != len(outputs) {
		return "", fmt.Errorf(
			"number of outputs %d does not match number of inputs %d",
			len(outputs), len(inputs),
		)
	}

	tx := wire.NewMsgTx(2)
	var inputAmount uint64
	for _, in := range inputs {
		hash, err := chainhash.NewHashFromStr(in.Outpoint.Txid)
		if err != nil {
			return "", fmt.Errorf("invalid input %s: %s", in.Outpoint, err)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, in.Outpoint.VOut), nil, nil))
		inputAmount += in.Value
	}

	for _, output := range outputs {
		script, err := b.outputScript(output)
		if err != nil {
			return "", fmt.Errorf("invalid output address %s: %s", output, err)
		}
		tx.AddTxOut(wire.NewTxOut(int64(denomination), script))
	}

	outputAmount := denomination * uint64(len(outputs))
	if inputAmount < outputAmount {
		return "", fmt.Errorf(
			"inputs amount %d is lower than outputs amount %d", inputAmount, outputAmount,
		)
	}

	return encodeTx(tx)
}

func (b *txBuilder) ApplyWitness(txhex string, inputIndex int, witness [][]byte) (string, error) {
	tx, err := decodeTx(txhex)
	if err != nil {
		return "", err
	}
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return "", fmt.Errorf("input %d not found", inputIndex)
	}
	tx.TxIn[inputIndex].Witness = wire.TxWitness(witness)
	return encodeTx(tx)
}

func (b *txBuilder) Verify(txhex string, prevouts []domain.RegisteredInput) error {
	tx, err := decodeTx(txhex)
	if err != nil {
		return err
	}
	if len(prevouts) != len(tx.TxIn) {
		return fmt.Errorf(
			"got %d prevouts for %d inputs", len(prevouts), len(tx.TxIn),
		)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	scripts := make([][]byte, 0, len(prevouts))
	for i, prevout := range prevouts {
		outpoint := tx.TxIn[i].PreviousOutPoint
		if outpoint.Hash.String() != prevout.Outpoint.Txid ||
			outpoint.Index != prevout.Outpoint.VOut {
			return fmt.Errorf("prevout %s does not match input %d", prevout.Outpoint, i)
		}
		script, err := hex.DecodeString(prevout.Script)
		if err != nil {
			return fmt.Errorf("invalid script for prevout %s: %s", prevout.Outpoint, err)
		}
		scripts = append(scripts, script)
		fetcher.AddPrevOut(outpoint, wire.NewTxOut(int64(prevout.Value), script))
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, prevout := range prevouts {
		engine, err := txscript.NewEngine(
			scripts[i], tx, i, txscript.StandardVerifyFlags, nil,
			sigHashes, int64(prevout.Value), fetcher,
		)
		if err != nil {
			return ports.InvalidWitnessError{InputIndex: i, Reason: err.Error()}
		}
		if err := engine.Execute(); err != nil {
			return ports.InvalidWitnessError{InputIndex: i, Reason: err.Error()}
		}
	}
	return nil
}

func (b *txBuilder) GetTxid(txhex string) (string, error) {
	tx, err := decodeTx(txhex)
	if err != nil {
		return "", err
	}
	return tx.TxHash().String(), nil
}

func decodeTx(txhex string) (*wire.MsgTx, error) {
	buf, err := hex.DecodeString(txhex)
	if err != nil {
		return nil, fmt.Errorf("invalid tx hex: %s", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("failed to decode tx: %s", err)
	}
	return &tx, nil
}

func encodeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("failed to encode tx: %s", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func (b *txBuilder) outputScript(address string) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, b.net)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(b.net) {
		return nil, fmt.Errorf("address is not for %s", b.net.Name)
	}
	return txscript.PayToAddrScript(addr)
}
