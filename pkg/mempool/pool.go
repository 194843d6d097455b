// Package mempool implements the pool of pending transactions: the
// first-accepted-wins admission rule and the eviction that follows a
// newly confirmed block.
package mempool

import (
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/utxo"
	"github.com/corwin-hale/minicoin/pkg/validation"
)

// Pool owns the ordered list of accepted pending transactions and the
// set of UTXOs claimed by their inputs. It never owns the canonical
// UTXO set itself — that belongs to the chain.
type Pool struct {
	txs       []types.Transaction
	usedUTXOs map[utxo.OutPoint]bool
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{usedUTXOs: make(map[utxo.OutPoint]bool)}
}

// Txs returns the pool's pending transactions in acceptance order. The
// slice is a copy; callers must not rely on it reflecting later
// mutation.
func (p *Pool) Txs() []types.Transaction {
	out := make([]types.Transaction, len(p.txs))
	copy(out, p.txs)
	return out
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	return len(p.txs)
}

// AddTx validates tx against a dry-run copy of utxos and, if it neither
// fails validation nor claims an input already claimed by another pool
// member, appends it to the pool. Returns true on acceptance; false
// covers both a failed validation and a silent double-claim rejection.
func (p *Pool) AddTx(tx types.Transaction, utxos *utxo.Set) bool {
	for _, in := range tx.Inputs {
		if p.usedUTXOs[utxo.OutPoint{Hash: in.Hash, Index: in.Index}] {
			return false
		}
	}

	dryRunUTXOs := utxos.Clone()
	syntheticBlock := &types.Block{}
	if err := validation.AddTx(tx, syntheticBlock, dryRunUTXOs); err != nil {
		return false
	}

	p.txs = append(p.txs, tx)
	for _, in := range tx.Inputs {
		p.usedUTXOs[utxo.OutPoint{Hash: in.Hash, Index: in.Index}] = true
	}
	return true
}

// FindTxIndex returns the index of the pool transaction that consumes
// entry as an input, or -1 if none does.
func (p *Pool) FindTxIndex(entry utxo.Entry) int {
	for i, tx := range p.txs {
		for _, in := range tx.Inputs {
			if in.Hash == entry.Hash && in.Index == entry.Index {
				return i
			}
		}
	}
	return -1
}

// RemoveBlockTxs evicts every pool entry that any non-coinbase
// transaction of block has just spent, releasing its input claims.
// Idempotent: eviction of one entry never disturbs the indices being
// walked by the caller's outer loop over block.Txs, since each inner
// lookup re-scans the live pool.
func (p *Pool) RemoveBlockTxs(block *types.Block) {
	for _, tx := range block.NonCoinbaseTxs() {
		for _, in := range tx.Inputs {
			idx := p.findIndexByOutPoint(in.Hash, in.Index)
			if idx < 0 {
				continue
			}
			p.removeAt(idx)
		}
	}
}

func (p *Pool) findIndexByOutPoint(hash types.Hash, index int) int {
	for i, tx := range p.txs {
		for _, in := range tx.Inputs {
			if in.Hash == hash && in.Index == index {
				return i
			}
		}
	}
	return -1
}

func (p *Pool) removeAt(i int) {
	evicted := p.txs[i]
	p.txs = append(p.txs[:i], p.txs[i+1:]...)
	for _, in := range evicted.Inputs {
		delete(p.usedUTXOs, utxo.OutPoint{Hash: in.Hash, Index: in.Index})
	}
}

// Clear empties the pool, used when a fork swap replaces the chain
// wholesale and every pending claim may now be stale.
func (p *Pool) Clear() {
	p.txs = nil
	p.usedUTXOs = make(map[utxo.OutPoint]bool)
}
