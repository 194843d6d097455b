package validation

import (
	"testing"

	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
)

// signedSpend builds and signs a one-input, one-output transaction
// spending (srcHash, srcIndex) owned by from, paying amount to to.
func signedSpend(t *testing.T, from *crypto.KeyPair, srcHash types.Hash, srcIndex int, to types.PublicKey, amount int64) types.Transaction {
	t.Helper()
	payload, err := (&types.Transaction{
		Inputs:  []types.Input{{Hash: srcHash, Index: srcIndex}},
		Outputs: []types.Output{{PublicKey: to, Amount: amount}},
	}).HashPayload()
	if err != nil {
		t.Fatalf("hash payload: %v", err)
	}
	hash := crypto.Sum256(payload)
	sig, err := from.Sign(hash)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return types.Transaction{
		Inputs:  []types.Input{{Hash: srcHash, Index: srcIndex, Signature: sig}},
		Outputs: []types.Output{{PublicKey: to, Amount: amount}},
		Hash:    hash,
	}
}

func TestAddTx_ValidSpendSucceeds(t *testing.T) {
	genesis := NewGenesisState()
	genesisKey := GenesisKeyPair()
	recipient, _ := crypto.GenerateKeyPair()

	tx := signedSpend(t, genesisKey, genesis.Blocks[0].Coinbase().Hash, 0, recipient.PublicKey(), 8)

	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err != nil {
		t.Fatalf("AddTx failed: %v", err)
	}
	if working.Len() != 1 {
		t.Fatalf("expected one surviving UTXO, got %d", working.Len())
	}
	if len(block.Txs) != 1 {
		t.Fatalf("expected tx appended to block")
	}
	if _, ok := working.Get(genesis.Blocks[0].Coinbase().Hash, 0); ok {
		t.Fatalf("spent input still present in UTXO set")
	}
}

func TestAddTx_MissingUTXORejected(t *testing.T) {
	genesis := NewGenesisState()
	recipient, _ := crypto.GenerateKeyPair()
	genesisKey := GenesisKeyPair()

	tx := signedSpend(t, genesisKey, types.Hash(zeros(64)), 0, recipient.PublicKey(), 8)

	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err == nil {
		t.Fatalf("expected failure spending a nonexistent UTXO")
	}
	if working.Len() != 1 {
		t.Fatalf("utxo set mutated on failed validation")
	}
}

func TestAddTx_DoubleSpendWithinTxRejected(t *testing.T) {
	genesis := NewGenesisState()
	genesisKey := GenesisKeyPair()
	recipient, _ := crypto.GenerateKeyPair()
	srcHash := genesis.Blocks[0].Coinbase().Hash

	payload, _ := (&types.Transaction{
		Inputs: []types.Input{
			{Hash: srcHash, Index: 0},
			{Hash: srcHash, Index: 0},
		},
		Outputs: []types.Output{{PublicKey: recipient.PublicKey(), Amount: 5}},
	}).HashPayload()
	hash := crypto.Sum256(payload)
	sig, _ := genesisKey.Sign(hash)

	tx := types.Transaction{
		Inputs: []types.Input{
			{Hash: srcHash, Index: 0, Signature: sig},
			{Hash: srcHash, Index: 0, Signature: sig},
		},
		Outputs: []types.Output{{PublicKey: recipient.PublicKey(), Amount: 5}},
		Hash:    hash,
	}

	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err == nil {
		t.Fatalf("expected rejection of a transaction double-spending its own input")
	}
}

func TestAddTx_BadSignatureRejected(t *testing.T) {
	genesis := NewGenesisState()
	genesisKey := GenesisKeyPair()
	recipient, _ := crypto.GenerateKeyPair()
	impostor, _ := crypto.GenerateKeyPair()
	srcHash := genesis.Blocks[0].Coinbase().Hash

	tx := signedSpend(t, genesisKey, srcHash, 0, recipient.PublicKey(), 8)
	badSig, _ := impostor.Sign(tx.Hash)
	tx.Inputs[0].Signature = badSig

	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err == nil {
		t.Fatalf("expected rejection of a transaction with a forged signature")
	}
}

func TestAddTx_DustOutputRejected(t *testing.T) {
	genesis := NewGenesisState()
	genesisKey := GenesisKeyPair()
	recipient, _ := crypto.GenerateKeyPair()
	srcHash := genesis.Blocks[0].Coinbase().Hash

	tx := signedSpend(t, genesisKey, srcHash, 0, recipient.PublicKey(), 1)
	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err == nil {
		t.Fatalf("expected rejection of a dust output")
	}
}

func TestAddCoinbase_RewardIncludesFees(t *testing.T) {
	genesis := NewGenesisState()
	genesisKey := GenesisKeyPair()
	recipient, _ := crypto.GenerateKeyPair()
	srcHash := genesis.Blocks[0].Coinbase().Hash

	tx := signedSpend(t, genesisKey, srcHash, 0, recipient.PublicKey(), 8)

	block := &types.Block{Time: 1}
	working := genesis.Utxos.Clone()
	if err := AddTx(tx, block, working); err != nil {
		t.Fatalf("AddTx: %v", err)
	}

	miner, _ := crypto.GenerateKeyPair()
	cb := buildCoinbase(t, block, miner.PublicKey())
	if err := AddCoinbase(cb, block, working); err != nil {
		t.Fatalf("AddCoinbase: %v", err)
	}
	if cb.Outputs[0].Amount != 11 {
		t.Fatalf("coinbase amount = %d, want 11 (10 + 1 input)", cb.Outputs[0].Amount)
	}
}

func buildCoinbase(t *testing.T, block *types.Block, minerKey types.PublicKey) types.Coinbase {
	t.Helper()
	var fees int64
	for _, e := range block.Txs {
		fees += int64(len(e.Inputs))
	}
	out := types.Output{PublicKey: minerKey, Amount: 10 + fees}
	payload, err := (&types.Coinbase{Outputs: []types.Output{out}}).HashPayload()
	if err != nil {
		t.Fatalf("coinbase payload: %v", err)
	}
	hash := crypto.Sum256Prefixed(timeDecimal(block.Time), payload)
	return types.Coinbase{Outputs: []types.Output{out}, Hash: hash}
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
