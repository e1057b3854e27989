// Package cid computes deterministic content identifiers for query payloads.
//
// The identifier is the Keccak-256 digest of the raw query bytes. It is the
// cross-system contract correlating a query with the payment and receipt
// records held by the downstream processor, so the algorithm and rendering
// must stay stable across processes and implementations.
package cid

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Size is the digest length in bytes.
const Size = 32

// CID is a content identifier derived from raw query bytes.
type CID [Size]byte

// Hash computes the content identifier for the given payload. Identical
// byte sequences always yield identical identifiers.
func Hash(data []byte) CID {
	h := sha3.NewLegacyKeccak256()
	// Write on a sha3 state never returns an error
	h.Write(data)

	var c CID
	h.Sum(c[:0])
	return c
}

// String renders the identifier as 0x-prefixed lowercase hex.
func (c CID) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// Bytes returns the digest as a byte slice.
func (c CID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, c[:])
	return out
}
