package validator

import (
	"testing"
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

func signPackageRecord(t *testing.T, key crypto.PrivateKey, record protocol.PackageRecord) protocol.Envelope[protocol.PackageRecord] {
	t.Helper()
	record.KeyID = key.KeyID()
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	return protocol.Envelope[protocol.PackageRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
}

func TestPackageValidateReleaseThenYank(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	digest := crypto.HashOf([]byte("tarball bytes"))

	v := NewPackage()
	init := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: time.Unix(1, 0)},
		Entries: []protocol.PackageEntry{
			{Kind: protocol.PackageEntryInit, Key: key.PublicKey()},
			{Kind: protocol.PackageEntryRelease, Version: "1.0.0", Content: digest},
		},
	})
	if err := v.Validate(init); err != nil {
		t.Fatalf("Validate(init+release) failed: %v", err)
	}

	release, ok := v.Release("1.0.0")
	if !ok || !release.HasContent() {
		t.Fatalf("Release(1.0.0) = %+v, %v, want a present, non-yanked release", release, ok)
	}

	head := *v.Head()
	yank := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Prev: head.RecordId, HasPrev: true, Timestamp: time.Unix(2, 0)},
		Entries:      []protocol.PackageEntry{{Kind: protocol.PackageEntryYank, Version: "1.0.0"}},
	})
	if err := v.Validate(yank); err != nil {
		t.Fatalf("Validate(yank) failed: %v", err)
	}

	if _, found := v.FindLatestRelease("*"); found {
		t.Error("FindLatestRelease(*) found a release after the only version was yanked, want none")
	}
}

func TestPackageFindLatestReleaseHonorsRequirement(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	v := NewPackage()
	init := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: time.Unix(1, 0)},
		Entries: []protocol.PackageEntry{
			{Kind: protocol.PackageEntryInit, Key: key.PublicKey()},
			{Kind: protocol.PackageEntryRelease, Version: "1.0.0", Content: crypto.HashOf([]byte("v1"))},
		},
	})
	if err := v.Validate(init); err != nil {
		t.Fatalf("Validate(init) failed: %v", err)
	}

	head := *v.Head()
	second := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Prev: head.RecordId, HasPrev: true, Timestamp: time.Unix(2, 0)},
		Entries:      []protocol.PackageEntry{{Kind: protocol.PackageEntryRelease, Version: "1.0.1", Content: crypto.HashOf([]byte("v1.0.1"))}},
	})
	if err := v.Validate(second); err != nil {
		t.Fatalf("Validate(second release) failed: %v", err)
	}

	latest, ok := v.FindLatestRelease("^1.0.0")
	if !ok || latest.Version != "1.0.1" {
		t.Errorf("FindLatestRelease(^1.0.0) = %+v, %v, want version 1.0.1", latest, ok)
	}

	exact, ok := v.Release("1.0.0")
	if !ok || exact.Version != "1.0.0" {
		t.Errorf("Release(1.0.0) = %+v, %v, want version 1.0.0", exact, ok)
	}
}

func TestPackageValidateRejectsDoubleRelease(t *testing.T) {
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}

	v := NewPackage()
	init := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: time.Unix(1, 0)},
		Entries: []protocol.PackageEntry{
			{Kind: protocol.PackageEntryInit, Key: key.PublicKey()},
			{Kind: protocol.PackageEntryRelease, Version: "1.0.0", Content: crypto.HashOf([]byte("v1"))},
		},
	})
	if err := v.Validate(init); err != nil {
		t.Fatalf("Validate(init) failed: %v", err)
	}

	head := *v.Head()
	dup := signPackageRecord(t, key, protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Prev: head.RecordId, HasPrev: true, Timestamp: time.Unix(2, 0)},
		Entries:      []protocol.PackageEntry{{Kind: protocol.PackageEntryRelease, Version: "1.0.0", Content: crypto.HashOf([]byte("different"))}},
	})
	if err := v.Validate(dup); err == nil {
		t.Fatal("Validate() succeeded re-releasing a non-yanked version, want error")
	}
}
