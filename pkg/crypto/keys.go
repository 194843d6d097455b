package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"

	"github.com/corwin-hale/minicoin/pkg/types"
)

// KeyPair is a secp256k1 signing identity: the private scalar and its
// compressed public point.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeyPair draws a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromSeed derives a deterministic keypair from a 32-byte seed.
// Used to reconstruct the fixed genesis key.
func KeyPairFromSeed(seed [32]byte) *KeyPair {
	return &KeyPair{priv: secp256k1.PrivKeyFromBytes(seed[:])}
}

// PublicKey returns the compressed hex-encoded public key.
func (kp *KeyPair) PublicKey() types.PublicKey {
	compressed := kp.priv.PubKey().SerializeCompressed()
	return types.PublicKey(hex.EncodeToString(compressed))
}

// Sign signs a transaction hash (already a 32-byte digest, hex-encoded)
// and returns a DER-encoded hex signature.
func (kp *KeyPair) Sign(hash types.Hash) (types.Signature, error) {
	digest, err := decodeHash(hash)
	if err != nil {
		return "", err
	}
	sig := ecdsa.Sign(kp.priv, digest)
	return types.Signature(hex.EncodeToString(sig.Serialize())), nil
}

// ParsePublicKey decodes and validates a compressed secp256k1 point.
func ParsePublicKey(pk types.PublicKey) (*secp256k1.PublicKey, error) {
	if !pk.ValidShape() {
		return nil, fmt.Errorf("public key %q: wrong shape", pk)
	}
	raw, err := hex.DecodeString(string(pk))
	if err != nil {
		return nil, fmt.Errorf("public key %q: %w", pk, err)
	}
	point, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("public key %q: not on curve: %w", pk, err)
	}
	return point, nil
}

// Verify checks sig against hash under the public key pk.
func Verify(pk types.PublicKey, hash types.Hash, sig types.Signature) bool {
	point, err := ParsePublicKey(pk)
	if err != nil {
		return false
	}
	digest, err := decodeHash(hash)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(string(sig))
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, point)
}

// Address derives the short display form of a public key,
// RIPEMD160(SHA256(compressed pubkey)), hex-encoded. It is not part of
// the wire protocol or any hash payload — only a shorter identifier
// for humans, e.g. the CLI's `.key` command.
func Address(pk types.PublicKey) (string, error) {
	point, err := ParsePublicKey(pk)
	if err != nil {
		return "", err
	}
	sha := sha256.Sum256(point.SerializeCompressed())
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return hex.EncodeToString(ripe.Sum(nil)), nil
}

func decodeHash(h types.Hash) ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("hash %q: wrong shape", h)
	}
	return hex.DecodeString(string(h))
}
