package crypto

import (
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeyID identifies a public key bound to a log by a prior entry (a key
// registration, or the init entry of an empty log). It is the base64 of the
// SHA-256 of the encoded public key, matching the registry protocol's
// key-identity scheme.
type KeyID string

// PublicKey verifies signatures produced by the matching PrivateKey.
type PublicKey struct {
	id  KeyID
	raw ed25519.PublicKey
}

// PrivateKey signs record and checkpoint content on behalf of a namespace
// owner, operator, or registry.
type PrivateKey struct {
	id  KeyID
	raw ed25519.PrivateKey
}

// GenerateKeyPair creates a new ed25519 signing key pair.
func GenerateKeyPair() (PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("crypto: generate key pair: %w", err)
	}
	id := keyIDOf(pub)
	return PrivateKey{id: id, raw: priv}, nil
}

func keyIDOf(pub ed25519.PublicKey) KeyID {
	h := HashOf(pub)
	return KeyID(base64.RawStdEncoding.EncodeToString(h.Bytes))
}

// PublicKey returns the public half of k.
func (k PrivateKey) PublicKey() PublicKey {
	pub := k.raw.Public().(ed25519.PublicKey)
	return PublicKey{id: k.id, raw: pub}
}

// KeyID returns the identifier used to bind this key to a log entry.
func (k PrivateKey) KeyID() KeyID { return k.id }

// KeyID returns the identifier used to bind this key to a log entry.
func (p PublicKey) KeyID() KeyID { return p.id }

// Sign signs msg, returning the raw signature bytes.
func (k PrivateKey) Sign(msg []byte) []byte {
	return ed25519.Sign(k.raw, msg)
}

// Verify reports whether sig is a valid signature of msg under p.
func (p PublicKey) Verify(msg, sig []byte) bool {
	return ed25519.Verify(p.raw, msg, sig)
}

// ParsePublicKey parses a base64-encoded raw ed25519 public key and derives
// its KeyID.
func ParsePublicKey(encoded string) (PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return PublicKey{}, fmt.Errorf("crypto: invalid public key encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("crypto: invalid public key length %d", len(raw))
	}
	pub := ed25519.PublicKey(raw)
	return PublicKey{id: keyIDOf(pub), raw: pub}, nil
}

// String renders the public key as base64 for storage in key-registration
// entries.
func (p PublicKey) String() string {
	return base64.StdEncoding.EncodeToString(p.raw)
}

// ParsePrivateKey parses a base64-encoded raw ed25519 private key, as
// written by String. Used by cmd/warg to load a signing key from a file
// instead of generating one per invocation.
func ParsePrivateKey(encoded string) (PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("crypto: invalid private key encoding: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return PrivateKey{}, fmt.Errorf("crypto: invalid private key length %d", len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	return PrivateKey{id: keyIDOf(priv.Public().(ed25519.PublicKey)), raw: priv}, nil
}

// String renders the private key as base64, the inverse of ParsePrivateKey.
func (k PrivateKey) String() string {
	return base64.StdEncoding.EncodeToString(k.raw)
}
