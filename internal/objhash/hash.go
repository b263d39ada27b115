// Package objhash implements the fixed-width content hash used to address
// trees and blobs in the object store. The engine treats it as an opaque,
// totally ordered 20-byte value; crypto/sha1 is the only thing that
// actually needs to know it's a SHA-1 digest.
package objhash

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"

	"github.com/auriora/edenfs/internal/fserrors"
)

// Size is the width of a Hash in bytes.
const Size = 20

// Hash is a 20-byte content identifier.
type Hash [Size]byte

// Zero is the all-zero hash, used as a sentinel in a few places (e.g. an
// empty tree's hash before it has ever been computed).
var Zero Hash

// FromBytes builds a Hash from a raw 20-byte slice.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fserrors.Newf(fserrors.CorruptSnapshot, "hash must be %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromHex parses a 40-character lowercase hex string.
func FromHex(s string) (Hash, error) {
	var h Hash
	if len(s) != Size*2 {
		return h, fserrors.Newf(fserrors.CorruptSnapshot, "hash hex must be %d characters, got %d", Size*2, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fserrors.Wrap(fserrors.CorruptSnapshot, err, "invalid hash hex")
	}
	copy(h[:], raw)
	return h, nil
}

// Sum computes the content hash of raw bytes.
func Sum(data []byte) Hash {
	return Hash(sha1.Sum(data))
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns the raw 20 bytes.
func (h Hash) Bytes() []byte {
	return h[:]
}

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool {
	return h == Zero
}

// Compare orders two hashes by byte sequence, returning -1, 0, or 1.
func Compare(a, b Hash) int {
	return bytes.Compare(a[:], b[:])
}

// Less reports whether a sorts before b.
func Less(a, b Hash) bool {
	return Compare(a, b) < 0
}

// MarshalText renders the hash as hex, so it round-trips cleanly through
// JSON-based overlay row serialization.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a hex-rendered hash.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
