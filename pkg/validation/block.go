package validation

import (
	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/work"
)

const maxFutureDriftSeconds = 10

// AddBlock validates block against state and, on success, appends it to
// state.Blocks and replaces state.Utxos with the set the block implies.
// Any failure leaves state untouched.
func AddBlock(block *types.Block, state *State, now int64) error {
	if block.Time < 0 {
		return structuralf("block time %d is negative", block.Time)
	}
	if len(block.Txs) == 0 {
		return structuralf("block has no transactions")
	}
	if block.Nonce < 0 {
		return structuralf("block nonce %d is negative", block.Nonce)
	}
	if !block.Hash.Valid() {
		return structuralf("block hash %q: wrong shape", block.Hash)
	}

	tip := state.Tip()
	if block.Time <= tip.Time {
		return consistencyf("block time %d does not exceed previous block time %d", block.Time, tip.Time)
	}
	if block.Time > now+maxFutureDriftSeconds {
		return consistencyf("block time %d too far in the future (now=%d)", block.Time, now)
	}

	working := state.Utxos.Clone()
	validated := &types.Block{Time: block.Time}

	nonCoinbase := block.NonCoinbaseTxs()
	for _, tx := range nonCoinbase {
		if err := AddTx(tx, validated, working); err != nil {
			return err
		}
	}
	if err := AddCoinbase(block.Coinbase(), validated, working); err != nil {
		return err
	}

	validated.Nonce = block.Nonce
	payload, err := validated.HashPayload()
	if err != nil {
		return consistencyf("failed to serialize block: %v", err)
	}
	wantHash := crypto.Sum256Prefixed(string(tip.Hash), payload)
	if block.Hash != wantHash {
		return consistencyf("block hash mismatch: got %s, computed %s", block.Hash, wantHash)
	}

	required := work.NextDifficulty(state.Blocks)
	if got := work.BlockDifficulty(block.Hash); got < required {
		return consistencyf("insufficient difficulty: %d < %d required", got, required)
	}

	validated.Hash = block.Hash
	state.Blocks = append(state.Blocks, validated)
	state.Utxos = working
	return nil
}
