package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Signable is implemented by any record payload that can be canonically
// encoded and signed: operator records, package records, and checkpoints.
type Signable interface {
	// Encode returns the canonical byte representation that a signature
	// commits to.
	Encode() ([]byte, error)
}

// Encode canonically encodes v as compact JSON with sorted map keys. This is
// the registry's canonical encoding: deterministic across clients, which is
// required since two clients must derive the same RecordId for the same
// logical record.
func Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("crypto: encode: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("crypto: compact encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Sign canonically encodes v and signs it with key, returning the encoded
// content and the raw signature.
func Sign(key PrivateKey, v Signable) (content []byte, signature []byte, err error) {
	content, err = v.Encode()
	if err != nil {
		return nil, nil, err
	}
	return content, key.Sign(content), nil
}

// Verify reports whether sig is a valid signature of v's canonical encoding
// under key.
func Verify(key PublicKey, v Signable, sig []byte) error {
	content, err := v.Encode()
	if err != nil {
		return err
	}
	if !key.Verify(content, sig) {
		return fmt.Errorf("crypto: signature verification failed")
	}
	return nil
}
