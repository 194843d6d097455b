package validation

import (
	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/utxo"
)

// AddTx validates tx against utxos in the context of block and, on
// success, appends tx to block.Txs and mutates utxos in place: removing
// each consumed entry and adding one new entry per output. A failure at
// any step leaves block and utxos untouched.
func AddTx(tx types.Transaction, block *types.Block, utxos *utxo.Set) error {
	if len(tx.Inputs) < 1 {
		return structuralf("transaction must have at least one input")
	}
	if len(tx.Outputs) < 1 || len(tx.Outputs) > 2 {
		return structuralf("transaction must have one or two outputs, got %d", len(tx.Outputs))
	}
	for _, in := range tx.Inputs {
		if !in.Hash.Valid() {
			return structuralf("input hash %q: wrong shape", in.Hash)
		}
		if in.Index != 0 && in.Index != 1 {
			return structuralf("input index must be 0 or 1, got %d", in.Index)
		}
		if !in.Signature.ValidShape() {
			return structuralf("input signature: wrong shape")
		}
	}
	for _, out := range tx.Outputs {
		if !out.PublicKey.ValidShape() {
			return structuralf("output public key %q: wrong shape", out.PublicKey)
		}
	}

	spent := make([]utxo.Entry, len(tx.Inputs))
	claimed := make(map[utxo.OutPoint]bool, len(tx.Inputs))
	var net int64

	for i, in := range tx.Inputs {
		point := utxo.OutPoint{Hash: in.Hash, Index: in.Index}
		if claimed[point] {
			return consistencyf("input %d double-spends (%s,%d) within this transaction", i, in.Hash, in.Index)
		}
		entry, ok := utxos.Get(in.Hash, in.Index)
		if !ok {
			return consistencyf("input %d references unknown or spent output (%s,%d)", i, in.Hash, in.Index)
		}
		claimed[point] = true
		spent[i] = entry
		net += entry.Amount
	}

	for _, out := range tx.Outputs {
		if _, err := crypto.ParsePublicKey(out.PublicKey); err != nil {
			return consistencyf("output public key %q: %v", out.PublicKey, err)
		}
		if out.Amount < 2 {
			return consistencyf("output amount %d below dust threshold of 2", out.Amount)
		}
		net -= out.Amount
	}

	if want := int64(len(tx.Inputs)) + 1; net != want {
		return consistencyf("net amount %d, want %d (one burn plus one fee per input)", net, want)
	}

	payload, err := tx.HashPayload()
	if err != nil {
		return consistencyf("failed to serialize transaction: %v", err)
	}
	wantHash := crypto.Sum256(payload)
	if tx.Hash != wantHash {
		return consistencyf("transaction hash mismatch: got %s, computed %s", tx.Hash, wantHash)
	}

	for i, in := range tx.Inputs {
		if !crypto.Verify(spent[i].PublicKey, tx.Hash, in.Signature) {
			return consistencyf("input %d: signature does not verify against %s", i, spent[i].PublicKey)
		}
	}

	// Commit.
	for _, in := range tx.Inputs {
		utxos.Remove(in.Hash, in.Index)
	}
	for i, out := range tx.Outputs {
		utxos.Put(utxo.Entry{Hash: tx.Hash, Index: i, PublicKey: out.PublicKey, Amount: out.Amount})
	}
	block.Txs = append(block.Txs, types.BlockEntryFromTx(tx))
	return nil
}

// AddCoinbase validates coinbase against the transactions already
// committed to block.Txs and, on success, appends it (as the block's
// final entry) and credits the miner's UTXO. Must be called exactly
// once per block, after every non-coinbase transaction.
func AddCoinbase(coinbase types.Coinbase, block *types.Block, utxos *utxo.Set) error {
	if len(coinbase.Outputs) != 1 {
		return structuralf("coinbase must have exactly one output, got %d", len(coinbase.Outputs))
	}
	out := coinbase.Outputs[0]
	if !out.PublicKey.ValidShape() {
		return structuralf("coinbase public key %q: wrong shape", out.PublicKey)
	}
	if _, err := crypto.ParsePublicKey(out.PublicKey); err != nil {
		return consistencyf("coinbase public key %q: %v", out.PublicKey, err)
	}

	var inputFees int64
	for _, entry := range block.Txs {
		inputFees += int64(len(entry.Inputs))
	}
	wantAmount := 10 + inputFees
	if out.Amount != wantAmount {
		return consistencyf("coinbase amount %d, want %d (10 plus %d input fees)", out.Amount, wantAmount, inputFees)
	}

	payload, err := coinbase.HashPayload()
	if err != nil {
		return consistencyf("failed to serialize coinbase: %v", err)
	}
	wantHash := crypto.Sum256Prefixed(timeDecimal(block.Time), payload)
	if coinbase.Hash != wantHash {
		return consistencyf("coinbase hash mismatch: got %s, computed %s", coinbase.Hash, wantHash)
	}

	utxos.Put(utxo.Entry{Hash: coinbase.Hash, Index: 0, PublicKey: out.PublicKey, Amount: out.Amount})
	block.Txs = append(block.Txs, types.BlockEntryFromCoinbase(coinbase))
	return nil
}
