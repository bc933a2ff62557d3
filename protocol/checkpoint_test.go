package protocol

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wargproto/warg-go/crypto"
)

func TestTimestampedCheckpointSignRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	tc := TimestampedCheckpoint{
		Checkpoint: Checkpoint{
			LogLength: 4,
			LogRoot:   crypto.HashOf([]byte("log-root")),
			MapRoot:   crypto.HashOf([]byte("map-root")),
		},
		Timestamp: time.Unix(0, 0).UTC(),
	}

	content, sig, err := crypto.Sign(key, tc)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	env := SignedEnvelope[TimestampedCheckpoint]{Content: tc, KeyID: key.KeyID(), Signature: sig}
	if err := env.Verify(key.PublicKey()); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}

	wantContent, err := tc.Encode()
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if diff := cmp.Diff(string(wantContent), string(content)); diff != "" {
		t.Errorf("Sign() content mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckpointEqual(t *testing.T) {
	a := Checkpoint{LogLength: 10, LogRoot: crypto.HashOf([]byte("a")), MapRoot: crypto.HashOf([]byte("b"))}
	b := a
	if !a.Equal(b) {
		t.Error("Equal() = false for identical checkpoints, want true")
	}
	b.LogRoot = crypto.HashOf([]byte("different"))
	if a.Equal(b) {
		t.Error("Equal() = true for checkpoints with different log roots, want false")
	}
}
