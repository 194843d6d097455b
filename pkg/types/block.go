package types

import "encoding/json"

// BlockTx is the block-local representation of either a Transaction or
// the block's Coinbase. A committed transaction always has at least one
// input; the coinbase has none, and the omitempty tag drops the
// "inputs" key entirely for it so its canonical shape matches Coinbase
// ({outputs, hash}) rather than Transaction ({inputs, outputs, hash}).
type BlockTx struct {
	Inputs  []Input  `json:"inputs,omitempty"`
	Outputs []Output `json:"outputs"`
	Hash    Hash     `json:"hash"`
}

// IsCoinbase reports whether this entry has the coinbase shape.
func (e BlockTx) IsCoinbase() bool {
	return len(e.Inputs) == 0
}

// AsTransaction views the entry as a Transaction. Only meaningful when
// !IsCoinbase().
func (e BlockTx) AsTransaction() Transaction {
	return Transaction{Inputs: e.Inputs, Outputs: e.Outputs, Hash: e.Hash}
}

// AsCoinbase views the entry as a Coinbase. Only meaningful when
// IsCoinbase().
func (e BlockTx) AsCoinbase() Coinbase {
	return Coinbase{Outputs: e.Outputs, Hash: e.Hash}
}

// BlockEntryFromTx wraps a confirmed, non-coinbase transaction for
// inclusion in Block.Txs.
func BlockEntryFromTx(tx Transaction) BlockTx {
	return BlockTx{Inputs: tx.Inputs, Outputs: tx.Outputs, Hash: tx.Hash}
}

// BlockEntryFromCoinbase wraps a block's coinbase for inclusion in
// Block.Txs.
func BlockEntryFromCoinbase(cb Coinbase) BlockTx {
	return BlockTx{Outputs: cb.Outputs, Hash: cb.Hash}
}

// Block is one link in the chain: a non-negative time, an ordered list
// of transactions whose last element is the coinbase, a nonce, and a
// hash over the rest prefixed by the previous block's hash.
type Block struct {
	Time  int64     `json:"time"`
	Txs   []BlockTx `json:"txs"`
	Nonce int64     `json:"nonce"`
	Hash  Hash      `json:"hash"`
}

// blockHashPayload is the JSON shape hashed (after prefixing with the
// previous block's hash) to produce a Block's Hash.
type blockHashPayload struct {
	Time  int64     `json:"time"`
	Txs   []BlockTx `json:"txs"`
	Nonce int64     `json:"nonce"`
}

// HashPayload returns the canonical bytes hashed (with the previous
// block hash prefix applied by the caller) to produce b.Hash.
func (b *Block) HashPayload() ([]byte, error) {
	return json.Marshal(blockHashPayload{Time: b.Time, Txs: b.Txs, Nonce: b.Nonce})
}

// NonCoinbaseTxs returns every entry but the last, as Transactions.
func (b *Block) NonCoinbaseTxs() []Transaction {
	if len(b.Txs) == 0 {
		return nil
	}
	out := make([]Transaction, 0, len(b.Txs)-1)
	for _, e := range b.Txs[:len(b.Txs)-1] {
		out = append(out, e.AsTransaction())
	}
	return out
}

// Coinbase returns the block's final entry as a Coinbase.
func (b *Block) Coinbase() Coinbase {
	return b.Txs[len(b.Txs)-1].AsCoinbase()
}
