package validation

import (
	"math/big"

	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/utxo"
	"github.com/corwin-hale/minicoin/pkg/work"
)

// genesisSeedLiteral is the literal ASCII string hashed to derive the
// fixed genesis private key. Anyone can rederive it; that is the point
// of a deterministic genesis.
const genesisSeedLiteral = "Those who have not learned history are doomed to repeat it."

// State is the chain's block sequence together with the UTXO set it
// implies. The Chain component exclusively owns both; they are always
// replaced together on append or fork swap.
type State struct {
	Blocks []*types.Block
	Utxos  *utxo.Set
}

// Tip returns the most recently appended block.
func (s *State) Tip() *types.Block {
	return s.Blocks[len(s.Blocks)-1]
}

// Clone returns an independent deep-enough copy: a fresh Blocks slice
// (Block values themselves are treated as immutable once hashed, so
// pointers are reused) and a deep-copied UTXO set.
func (s *State) Clone() *State {
	blocks := make([]*types.Block, len(s.Blocks))
	copy(blocks, s.Blocks)
	return &State{Blocks: blocks, Utxos: s.Utxos.Clone()}
}

// GenesisKeyPair derives the fixed, publicly reproducible genesis
// keypair.
func GenesisKeyPair() *crypto.KeyPair {
	seed := crypto.Sum256Raw([]byte(genesisSeedLiteral))
	return crypto.KeyPairFromSeed(seed)
}

// NewGenesisState builds the fixed genesis block and the UTXO set it
// seeds: one output of amount 10 owned by GenesisKeyPair's public key.
func NewGenesisState() *State {
	pk := GenesisKeyPair().PublicKey()
	out := types.Output{PublicKey: pk, Amount: 10}

	txPayload, _ := (&types.Transaction{Outputs: []types.Output{out}}).HashPayload()
	txHash := crypto.Sum256Prefixed("0", txPayload)
	genesisTx := types.Transaction{Inputs: nil, Outputs: []types.Output{out}, Hash: txHash}

	block := &types.Block{
		Time:  0,
		Nonce: 0,
		Txs:   []types.BlockTx{types.BlockEntryFromTx(genesisTx)},
	}
	blockPayload, _ := block.HashPayload()
	block.Hash = crypto.Sum256(blockPayload)

	utxos := utxo.New()
	utxos.Put(utxo.Entry{Hash: txHash, Index: 0, PublicKey: pk, Amount: 10})

	return &State{Blocks: []*types.Block{block}, Utxos: utxos}
}

// SwapChains validates candidate by rebuilding it from genesis and, if
// its cumulative work strictly exceeds current's, atomically replaces
// current's contents with the rebuilt one. Returns the work delta
// (candidate - current); a zero or negative delta means no swap
// happened and current is unchanged.
func SwapChains(current *State, candidate []*types.Block, now int64) (*big.Int, error) {
	if len(candidate) == 0 || candidate[0].Hash != current.Blocks[0].Hash {
		return nil, consistencyf("candidate chain does not share our genesis")
	}

	rebuilt := NewGenesisState()
	for i := 1; i < len(candidate); i++ {
		if err := AddBlock(candidate[i], rebuilt, now); err != nil {
			return nil, consistencyf("candidate block %d: %v", i, err)
		}
	}

	delta := new(big.Int).Sub(work.ChainDifficulty(rebuilt.Blocks), work.ChainDifficulty(current.Blocks))
	if delta.Sign() > 0 {
		current.Blocks = rebuilt.Blocks
		current.Utxos = rebuilt.Utxos
	}
	return delta, nil
}
