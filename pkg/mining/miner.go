// Package mining assembles a candidate block from the pool, appends a
// coinbase, and searches for a nonce satisfying the required
// difficulty.
package mining

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/mempool"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/validation"
	"github.com/corwin-hale/minicoin/pkg/wallet"
	"github.com/corwin-hale/minicoin/pkg/work"
)

// maxSafeNonce bounds the nonce draw to the 53-bit safe integer range
// shared with every other amount and index in this system.
const maxSafeNonce = int64(1) << 53

// Attempt makes a single mining try: it snapshots the pool and the
// chain tip, assembles a candidate block, appends a coinbase paying w,
// draws one random nonce, and returns the block if its hash meets the
// difficulty the chain currently requires. ok is false if this single
// draw missed; the caller re-schedules another Attempt.
func Attempt(pool *mempool.Pool, state *validation.State, w *wallet.Wallet, nowMillis int64) (block *types.Block, ok bool, err error) {
	tip := state.Tip()
	blockTime := tip.Time + 1
	if fromClock := (nowMillis + 999) / 1000; fromClock > blockTime {
		blockTime = fromClock
	}

	working := state.Utxos.Clone()
	candidate := &types.Block{Time: blockTime}

	for _, tx := range pool.Txs() {
		// A pool entry may have been invalidated since acceptance (a
		// concurrent chain swap, for instance); skip it for this
		// attempt rather than fail the whole block.
		_ = validation.AddTx(tx, candidate, working)
	}

	var inputFees int64
	for _, e := range candidate.Txs {
		inputFees += int64(len(e.Inputs))
	}
	reward := 10 + inputFees
	out := types.Output{PublicKey: w.PublicKey(), Amount: reward}
	cbPayload, err := (&types.Coinbase{Outputs: []types.Output{out}}).HashPayload()
	if err != nil {
		return nil, false, fmt.Errorf("serialize coinbase: %w", err)
	}
	coinbaseHash := crypto.Sum256Prefixed(fmt.Sprintf("%d", blockTime), cbPayload)
	coinbase := types.Coinbase{Outputs: []types.Output{out}, Hash: coinbaseHash}
	if err := validation.AddCoinbase(coinbase, candidate, working); err != nil {
		return nil, false, fmt.Errorf("assemble coinbase: %w", err)
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, false, fmt.Errorf("draw nonce: %w", err)
	}
	candidate.Nonce = nonce

	payload, err := candidate.HashPayload()
	if err != nil {
		return nil, false, fmt.Errorf("serialize block: %w", err)
	}
	hash := crypto.Sum256Prefixed(string(tip.Hash), payload)

	required := work.NextDifficulty(state.Blocks)
	if work.BlockDifficulty(hash) < required {
		return nil, false, nil
	}

	candidate.Hash = hash
	return candidate, true, nil
}

func randomNonce() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxSafeNonce))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}
