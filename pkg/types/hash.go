// Package types defines the wire-level data model of the chain: hashes,
// keys, signatures, transactions and blocks, and the canonical JSON
// serialization used to compute every hash in the system.
package types

import "regexp"

// Hash is a 256-bit digest, rendered as 64 lowercase hex characters in
// every hashed payload and wire message.
type Hash string

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Valid reports whether h has the shape of a SHA-256 digest.
func (h Hash) Valid() bool {
	return hashPattern.MatchString(string(h))
}

// PublicKey is the 33-byte compressed secp256k1 point, as 66 hex
// characters.
type PublicKey string

var pubKeyPattern = regexp.MustCompile(`^[0-9a-f]{66}$`)

// ValidShape reports whether pk has the right length and alphabet for a
// compressed point. It does not check that the point lies on the curve;
// callers needing that use crypto.ParsePublicKey.
func (pk PublicKey) ValidShape() bool {
	return pubKeyPattern.MatchString(string(pk))
}

// Signature is a DER-encoded secp256k1 signature, as hex.
type Signature string

// ValidShape reports whether sig has a plausible DER-hex length. The
// authoritative check is crypto.Verify.
func (sig Signature) ValidShape() bool {
	n := len(sig)
	if n < 20 || n > 144 || n%2 != 0 {
		return false
	}
	for _, r := range sig {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}
