// Package work implements the proof-of-work accounting: the actual
// difficulty of a mined block, the difficulty required of the next one,
// and the cumulative work used to choose between forks.
package work

import (
	"encoding/hex"
	"math/big"

	"github.com/corwin-hale/minicoin/pkg/types"
)

const (
	minDifficulty  = 0
	maxDifficulty  = 256
	fastInterval   = 5  // seconds; below this the next block must be harder
	slowInterval   = 20 // seconds; above this the next block may be easier
)

// BlockDifficulty counts the leading zero bits of block.Hash, read as a
// big-endian bit string over its hex->binary expansion.
func BlockDifficulty(hash types.Hash) int {
	raw, err := hex.DecodeString(string(hash))
	if err != nil {
		return 0
	}
	zeros := 0
	for _, b := range raw {
		if b == 0 {
			zeros += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) != 0 {
				return zeros
			}
			zeros++
		}
	}
	return zeros
}

// NextDifficulty walks the inter-block intervals of chain and returns
// the difficulty required of the block that would extend it: one point
// harder per interval under fastInterval seconds, one point easier per
// interval over slowInterval seconds, clamped to [0,256] at every step.
func NextDifficulty(blocks []*types.Block) int {
	d := 0
	for i := 1; i < len(blocks); i++ {
		interval := blocks[i].Time - blocks[i-1].Time
		switch {
		case interval < fastInterval:
			d++
		case interval > slowInterval:
			d--
		}
		if d < minDifficulty {
			d = minDifficulty
		}
		if d > maxDifficulty {
			d = maxDifficulty
		}
	}
	return d
}

// ChainDifficulty sums 2^BlockDifficulty(block) over every block in the
// chain using arbitrary precision, so fork comparisons stay exact well
// past the point where a float64 accumulator would lose bits.
func ChainDifficulty(blocks []*types.Block) *big.Int {
	total := new(big.Int)
	pow := new(big.Int)
	for _, b := range blocks {
		d := BlockDifficulty(b.Hash)
		pow.Lsh(big.NewInt(1), uint(d))
		total.Add(total, pow)
	}
	return total
}
