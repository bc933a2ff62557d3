package validator

import (
	"testing"
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

func signOperatorRecord(t *testing.T, key crypto.PrivateKey, record protocol.OperatorRecord) protocol.Envelope[protocol.OperatorRecord] {
	t.Helper()
	record.KeyID = key.KeyID()
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	return protocol.Envelope[protocol.OperatorRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
}

func TestOperatorValidateInitThenDefineNamespace(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	v := NewOperator()
	init := signOperatorRecord(t, key, protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: time.Unix(1, 0)},
		Entries:      []protocol.OperatorEntry{{Kind: protocol.OperatorEntryInit, Key: key.PublicKey()}},
	})
	if err := v.Validate(init); err != nil {
		t.Fatalf("Validate(init) failed: %v", err)
	}
	if v.Head() == nil {
		t.Fatal("Head() = nil after successful init, want non-nil")
	}

	head1 := *v.Head()
	next := signOperatorRecord(t, key, protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{Prev: head1.RecordId, HasPrev: true, Timestamp: time.Unix(2, 0)},
		Entries:      []protocol.OperatorEntry{{Kind: protocol.OperatorEntryImportNamespace, Namespace: "acme", Registry: "https://other.example"}},
	})
	if err := v.Validate(next); err != nil {
		t.Fatalf("Validate(import) failed: %v", err)
	}

	state := v.NamespaceState("acme")
	if !state.Imported || state.Registry != "https://other.example" {
		t.Errorf("NamespaceState(acme) = %+v, want Imported from https://other.example", state)
	}
}

func TestOperatorValidateRejectsBadPrev(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	v := NewOperator()
	init := signOperatorRecord(t, key, protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: time.Unix(1, 0)},
		Entries:      []protocol.OperatorEntry{{Kind: protocol.OperatorEntryInit, Key: key.PublicKey()}},
	})
	if err := v.Validate(init); err != nil {
		t.Fatalf("Validate(init) failed: %v", err)
	}

	bad := signOperatorRecord(t, key, protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{Prev: crypto.HashOf([]byte("wrong")), HasPrev: true, Timestamp: time.Unix(2, 0)},
		Entries:      []protocol.OperatorEntry{{Kind: protocol.OperatorEntryDefineNamespace, Namespace: "acme"}},
	})

	headBefore := *v.Head()
	if err := v.Validate(bad); err == nil {
		t.Fatal("Validate() succeeded with mismatched prev pointer, want error")
	}
	if !v.Head().RecordId.Equal(headBefore.RecordId) || !v.Head().Digest.Equal(headBefore.Digest) {
		t.Error("Validate() mutated state despite returning an error")
	}
}
