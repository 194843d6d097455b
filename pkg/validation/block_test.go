package validation

import (
	"encoding/json"
	"testing"

	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/work"
)

// mineBlock assembles a block at the given time with txs (non-coinbase)
// and a coinbase paying miner, then searches nonces until the
// difficulty required by state is met.
func mineBlock(t *testing.T, state *State, blockTime int64, txs []types.Transaction, miner types.PublicKey) *types.Block {
	t.Helper()
	tip := state.Tip()
	required := work.NextDifficulty(state.Blocks)

	for nonce := int64(0); nonce < 1_000_000; nonce++ {
		working := state.Utxos.Clone()
		validated := &types.Block{Time: blockTime}
		for _, tx := range txs {
			if err := AddTx(tx, validated, working); err != nil {
				t.Fatalf("test-built tx rejected: %v", err)
			}
		}
		cb := buildCoinbase(t, validated, miner)
		if err := AddCoinbase(cb, validated, working); err != nil {
			t.Fatalf("test-built coinbase rejected: %v", err)
		}
		validated.Nonce = nonce
		payload, err := validated.HashPayload()
		if err != nil {
			t.Fatalf("hash payload: %v", err)
		}
		hash := crypto.Sum256Prefixed(string(tip.Hash), payload)
		if work.BlockDifficulty(hash) >= required {
			validated.Hash = hash
			return validated
		}
	}
	t.Fatalf("failed to mine a block within the attempt budget")
	return nil
}

func TestAddBlock_MinedEmptyBlockExtendsChain(t *testing.T) {
	state := NewGenesisState()
	miner, _ := crypto.GenerateKeyPair()

	block := mineBlock(t, state, 1, nil, miner.PublicKey())
	if err := AddBlock(block, state, 100); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if len(state.Blocks) != 2 {
		t.Fatalf("chain length = %d, want 2", len(state.Blocks))
	}
	coinbase := state.Blocks[1].Coinbase()
	if coinbase.Outputs[0].Amount != 10 {
		t.Fatalf("coinbase amount = %d, want 10", coinbase.Outputs[0].Amount)
	}
}

func TestAddBlock_RejectsNonIncreasingTime(t *testing.T) {
	state := NewGenesisState()
	miner, _ := crypto.GenerateKeyPair()
	block := mineBlock(t, state, 0, nil, miner.PublicKey())
	if err := AddBlock(block, state, 100); err == nil {
		t.Fatalf("expected rejection: block time does not exceed genesis time")
	}
}

func TestAddBlock_RejectsFarFutureTimestamp(t *testing.T) {
	state := NewGenesisState()
	miner, _ := crypto.GenerateKeyPair()
	block := mineBlock(t, state, 100000, nil, miner.PublicKey())
	if err := AddBlock(block, state, 1); err == nil {
		t.Fatalf("expected rejection: block time too far in the future")
	}
}

func TestAddBlock_RoundTripThroughJSON(t *testing.T) {
	state := NewGenesisState()
	genesisKey := GenesisKeyPair()
	miner, _ := crypto.GenerateKeyPair()
	recipient, _ := crypto.GenerateKeyPair()

	spend := signedSpend(t, genesisKey, state.Blocks[0].Coinbase().Hash, 0, recipient.PublicKey(), 8)
	block := mineBlock(t, state, 1, []types.Transaction{spend}, miner.PublicKey())

	raw, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var reparsed types.Block
	if err := json.Unmarshal(raw, &reparsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	fresh := NewGenesisState()
	if err := AddBlock(&reparsed, fresh, 100); err != nil {
		t.Fatalf("round-tripped block rejected: %v", err)
	}

	mutated := NewGenesisState()
	mutated.Utxos.Remove(state.Blocks[0].Coinbase().Hash, 0)
	if err := AddBlock(&reparsed, mutated, 100); err == nil {
		t.Fatalf("expected rejection against a modified prior UTXO set")
	}
}

func TestAddBlock_InsufficientDifficultyRejected(t *testing.T) {
	state := NewGenesisState()
	miner, _ := crypto.GenerateKeyPair()

	// Two sub-5s intervals raise the required difficulty to 2.
	for _, ts := range []int64{1, 2} {
		block := mineBlock(t, state, ts, nil, miner.PublicKey())
		if err := AddBlock(block, state, 100); err != nil {
			t.Fatalf("AddBlock: %v", err)
		}
	}
	required := work.NextDifficulty(state.Blocks)
	if required < 2 {
		t.Fatalf("expected required difficulty >= 2 after two fast intervals, got %d", required)
	}

	// Assemble a candidate honestly, but probe nonces until one produces
	// a hash that fails the difficulty bar instead of meeting it.
	tip := state.Tip()
	for nonce := int64(0); nonce < 1_000_000; nonce++ {
		working := state.Utxos.Clone()
		validated := &types.Block{Time: tip.Time + 1}
		cb := buildCoinbase(t, validated, miner.PublicKey())
		if err := AddCoinbase(cb, validated, working); err != nil {
			t.Fatalf("coinbase: %v", err)
		}
		validated.Nonce = nonce
		payload, _ := validated.HashPayload()
		hash := crypto.Sum256Prefixed(string(tip.Hash), payload)
		if work.BlockDifficulty(hash) < required {
			validated.Hash = hash
			if err := AddBlock(validated, state, 100); err == nil {
				t.Fatalf("expected rejection of a block below the required difficulty")
			}
			return
		}
	}
	t.Fatalf("could not find a low-difficulty nonce to probe rejection")
}
