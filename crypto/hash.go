// Package crypto provides the hashing, key, and signing primitives that the
// registry's log records and checkpoints are built from.
//
// Content digests are plain SHA-256. Checkpoints and per-record envelopes
// are both signed with ed25519 (stdlib crypto/ed25519) over their canonical
// JSON encoding; see Sign and Verify.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Algorithm identifies a supported hash algorithm.
type Algorithm string

// Sha256 is the only hash algorithm the registry currently mints, though
// Hash's wire format reserves room for others.
const Sha256 Algorithm = "sha256"

// Hash is a tagged byte string "<algo>:<hex>". Equality is bytewise;
// rendering is canonical lowercase hex.
type Hash struct {
	Algorithm Algorithm
	Bytes     []byte
}

// HashOf computes the SHA-256 digest of data and returns it as a Hash.
func HashOf(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash{Algorithm: Sha256, Bytes: sum[:]}
}

// String renders the hash in canonical "<algo>:<hex>" form.
func (h Hash) String() string {
	return fmt.Sprintf("%s:%s", h.Algorithm, hex.EncodeToString(h.Bytes))
}

// IsZero reports whether h is the zero value.
func (h Hash) IsZero() bool {
	return h.Algorithm == "" && len(h.Bytes) == 0
}

// Equal reports whether h and other denote the same digest.
func (h Hash) Equal(other Hash) bool {
	return h.Algorithm == other.Algorithm && string(h.Bytes) == string(other.Bytes)
}

// MarshalText implements encoding.TextMarshaler so Hash round-trips through
// the canonical JSON encoding used for signed content.
func (h Hash) MarshalText() ([]byte, error) {
	if h.IsZero() {
		return nil, errors.New("crypto: cannot marshal zero hash")
	}
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	s := string(text)
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return fmt.Errorf("crypto: invalid hash %q: missing algorithm tag", s)
	}
	algo := Algorithm(s[:idx])
	b, err := hex.DecodeString(s[idx+1:])
	if err != nil {
		return fmt.Errorf("crypto: invalid hash %q: %w", s, err)
	}
	*h = Hash{Algorithm: algo, Bytes: b}
	return nil
}

// ParseHash parses a canonical "<algo>:<hex>" string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}
