// Package utxo holds the canonical unspent-output set: the record of
// which prior outputs remain spendable.
package utxo

import "github.com/corwin-hale/minicoin/pkg/types"

// OutPoint uniquely identifies an output by the hash of the transaction
// that created it and its index within that transaction's outputs.
type OutPoint struct {
	Hash  types.Hash
	Index int
}

// Entry is an unspent output: an OutPoint plus the owner and amount.
type Entry struct {
	Hash      types.Hash
	Index     int
	PublicKey types.PublicKey
	Amount    int64
}

func (e Entry) outPoint() OutPoint {
	return OutPoint{Hash: e.Hash, Index: e.Index}
}

// Set is the UTXO set, keyed uniquely by (hash, index). An entry exists
// iff the referenced output has been confirmed into the chain and not
// yet spent.
type Set struct {
	entries map[OutPoint]Entry
}

// New returns an empty set.
func New() *Set {
	return &Set{entries: make(map[OutPoint]Entry)}
}

// Get returns the entry at (hash, index), if unspent.
func (s *Set) Get(hash types.Hash, index int) (Entry, bool) {
	e, ok := s.entries[OutPoint{Hash: hash, Index: index}]
	return e, ok
}

// Put records a new unspent output, overwriting any stale entry at the
// same OutPoint (which should never itself already exist).
func (s *Set) Put(e Entry) {
	s.entries[e.outPoint()] = e
}

// Remove marks (hash, index) spent.
func (s *Set) Remove(hash types.Hash, index int) {
	delete(s.entries, OutPoint{Hash: hash, Index: index})
}

// Len returns the number of unspent outputs.
func (s *Set) Len() int {
	return len(s.entries)
}

// ByPublicKey returns every unspent output owned by pk, in map iteration
// order (the wallet only needs "some order", not a specific one).
func (s *Set) ByPublicKey(pk types.PublicKey) []Entry {
	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.PublicKey == pk {
			out = append(out, e)
		}
	}
	return out
}

// All returns every unspent output. Used by CLI introspection (.utxos).
func (s *Set) All() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Clone returns an independent deep copy. addTx mutates its UTXO
// argument in place, so every dry run (mempool acceptance, chain
// rebuild during a fork swap) must validate against a Clone, never the
// live set.
func (s *Set) Clone() *Set {
	clone := New()
	for k, v := range s.entries {
		clone.entries[k] = v
	}
	return clone
}
