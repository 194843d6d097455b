// Package crypto is the black-box collaborator wrapping SHA-256 hashing
// and secp256k1 key derivation, signing and verification behind the
// types the rest of the node works with: hex hashes, hex public keys,
// hex DER signatures.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/corwin-hale/minicoin/pkg/types"
)

// Sum256 hashes data and returns the hex-encoded digest.
func Sum256(data []byte) types.Hash {
	digest := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(digest[:]))
}

// Sum256Prefixed hashes prefix||data, where prefix is appended as raw
// UTF-8 bytes with no separator. Used for the block-hash and
// coinbase-hash prefixing rules in spec section 6.
func Sum256Prefixed(prefix string, data []byte) types.Hash {
	buf := make([]byte, 0, len(prefix)+len(data))
	buf = append(buf, prefix...)
	buf = append(buf, data...)
	return Sum256(buf)
}

// Sum256Raw hashes data and returns the raw 32-byte digest, for use as a
// private key seed (the genesis key is derived this way).
func Sum256Raw(data []byte) [32]byte {
	return sha256.Sum256(data)
}
