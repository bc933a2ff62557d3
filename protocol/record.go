package protocol

import (
	"time"

	"github.com/wargproto/warg-go/crypto"
)

// RecordId is the hash of a record envelope's canonical-encoded contents. It
// uniquely identifies a record within its log.
type RecordId = crypto.Hash

// Envelope is the signed wrapper around a record's canonically-encoded
// contents, mirroring the registry protocol's Envelope<Contents>.
type Envelope[T crypto.Signable] struct {
	Contents  T
	KeyID     crypto.KeyID
	Signature []byte
}

// RecordId returns the hash identifying this envelope's contents.
func (e Envelope[T]) RecordId() (RecordId, error) {
	raw, err := e.Contents.Encode()
	if err != nil {
		return RecordId{}, err
	}
	return crypto.HashOf(raw), nil
}

// Verify checks that e.Signature is a valid signature of e.Contents under
// key. Callers are expected to have already resolved key from e.KeyID via a
// validator's PublicKey lookup.
func (e Envelope[T]) Verify(key crypto.PublicKey) error {
	return crypto.Verify(key, e.Contents, e.Signature)
}

// Published decorates an Envelope with the registry-assigned position and
// resume cursor it is given once accepted into the global log.
type Published[T crypto.Signable] struct {
	Envelope      Envelope[T]
	RegistryIndex uint64
	FetchToken    string
}

// Head identifies the latest validated record in a log: its RecordId and the
// digest of its canonically-encoded contents (the two coincide for the
// encodings used here, but are tracked separately to mirror the protocol's
// "head digest" terminology used by inclusion proofs).
type Head struct {
	RecordId RecordId
	Digest   crypto.Hash
}

// RecordHeader carries the fields common to every record payload (operator
// or package): the link to the previous record and the time and key that
// produced it. Entries live on the concrete record types.
type RecordHeader struct {
	// Prev is the previous record's id in the same log, or the zero value
	// for an init record.
	Prev      RecordId
	HasPrev   bool
	Timestamp time.Time
	KeyID     crypto.KeyID
}
