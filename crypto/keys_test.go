package crypto

import "testing"

func TestSignAndVerify(t *testing.T) {
	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	msg := []byte("hello registry")
	sig := key.Sign(msg)

	if !key.PublicKey().Verify(msg, sig) {
		t.Fatal("Verify() = false, want true for matching signature")
	}
	if key.PublicKey().Verify([]byte("tampered"), sig) {
		t.Fatal("Verify() = true, want false for tampered message")
	}
}

func TestParsePublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	encoded := key.PublicKey().String()
	parsed, err := ParsePublicKey(encoded)
	if err != nil {
		t.Fatalf("ParsePublicKey(%q) failed: %v", encoded, err)
	}
	if parsed.KeyID() != key.PublicKey().KeyID() {
		t.Fatalf("ParsePublicKey() KeyID = %v, want %v", parsed.KeyID(), key.PublicKey().KeyID())
	}
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	encoded := key.String()
	parsed, err := ParsePrivateKey(encoded)
	if err != nil {
		t.Fatalf("ParsePrivateKey(%q) failed: %v", encoded, err)
	}
	if parsed.KeyID() != key.KeyID() {
		t.Fatalf("ParsePrivateKey() KeyID = %v, want %v", parsed.KeyID(), key.KeyID())
	}

	msg := []byte("round tripped key still signs")
	sig := parsed.Sign(msg)
	if !key.PublicKey().Verify(msg, sig) {
		t.Fatal("signature from round-tripped key failed to verify")
	}
}

func TestHashRoundTrip(t *testing.T) {
	h := HashOf([]byte("content"))
	text, err := h.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() failed: %v", err)
	}

	var got Hash
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
	}
	if !got.Equal(h) {
		t.Fatalf("round-tripped hash = %v, want %v", got, h)
	}
}
