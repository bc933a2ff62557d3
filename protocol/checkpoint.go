package protocol

import (
	"fmt"
	"time"

	"github.com/wargproto/warg-go/crypto"
)

// RegistryLen is the number of records committed to by a checkpoint.
type RegistryLen = uint64

// Checkpoint is the registry's commitment to its global log length plus
// Merkle roots over the log and over the per-log map of heads.
//
// (log_length, log_root, map_root) is a function of log content: two
// checkpoints with equal log_length that disagree on either root are
// evidence of registry equivocation (spec invariant; enforced by the
// synchronizer, not here).
type Checkpoint struct {
	LogLength RegistryLen `json:"log_length"`
	LogRoot   crypto.Hash `json:"log_root"`
	MapRoot   crypto.Hash `json:"map_root"`
}

// Equal reports whether c and other commit to the same log state.
func (c Checkpoint) Equal(other Checkpoint) bool {
	return c.LogLength == other.LogLength && c.LogRoot.Equal(other.LogRoot) && c.MapRoot.Equal(other.MapRoot)
}

// TimestampedCheckpoint pairs a Checkpoint with the time the registry issued
// it.
type TimestampedCheckpoint struct {
	Checkpoint Checkpoint `json:"checkpoint"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Encode implements crypto.Signable with the registry's canonical JSON
// encoding; this is the content a checkpoint signature commits to.
func (c TimestampedCheckpoint) Encode() ([]byte, error) {
	return crypto.Encode(c)
}

// SignedEnvelope wraps content (typically a TimestampedCheckpoint) together
// with the key that signed it.
type SignedEnvelope[T crypto.Signable] struct {
	Content   T
	KeyID     crypto.KeyID
	Signature []byte
}

// Verify checks the envelope's signature against key, which the caller must
// have already resolved (for checkpoints, via the operator state's
// checkpoint-key binding).
func (e SignedEnvelope[T]) Verify(key crypto.PublicKey) error {
	if err := crypto.Verify(key, e.Content, e.Signature); err != nil {
		return fmt.Errorf("protocol: checkpoint signature verification failed: %w", err)
	}
	return nil
}
