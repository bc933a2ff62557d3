package fsstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/storage"
)

func TestContentStoreDigestMismatchNotObservable(t *testing.T) {
	ctx := context.Background()
	c, res, err := TryLockContent(t.TempDir())
	if err != nil || !res.Acquired {
		t.Fatalf("TryLockContent() = %v, %v, %v, want acquired", c, res, err)
	}
	defer c.Close()

	data := []byte("tarball bytes")
	digest := crypto.HashOf(data)
	wrong := crypto.HashOf([]byte("other bytes"))

	if err := c.StoreContent(ctx, bytes.NewReader(data), &wrong); err == nil {
		t.Fatal("StoreContent() succeeded with mismatched digest, want error")
	}
	if _, ok := c.ContentLocation(wrong); ok {
		t.Error("ContentLocation(wrong) = found, want not found after a rejected write")
	}
	if _, ok := c.ContentLocation(digest); ok {
		t.Error("ContentLocation(digest) = found, want not found: digest was never requested")
	}

	if err := c.StoreContent(ctx, bytes.NewReader(data), &digest); err != nil {
		t.Fatalf("StoreContent() with correct digest failed: %v", err)
	}
	r, ok, err := c.LoadContent(ctx, digest)
	if err != nil || !ok {
		t.Fatalf("LoadContent() = %v, %v, %v, want present", r, ok, err)
	}
	r.Close()
}

func TestRegistryStoreRoundTripsAcrossLock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := LockRegistry(dir)
	if err != nil {
		t.Fatalf("LockRegistry() failed: %v", err)
	}
	info := storage.NewPackageInfo("example:bar")
	if err := r.StorePackage(ctx, "", info); err != nil {
		t.Fatalf("StorePackage() failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	r2, err := LockRegistry(dir)
	if err != nil {
		t.Fatalf("LockRegistry() (reopen) failed: %v", err)
	}
	defer r2.Close()

	got, err := r2.LoadPackage(ctx, "", "example:bar")
	if err != nil {
		t.Fatalf("LoadPackage() failed: %v", err)
	}
	if got == nil || got.Name != "example:bar" {
		t.Fatalf("LoadPackage() = %+v, want name example:bar", got)
	}
}

func TestTryLockRegistryFailsWhenHeld(t *testing.T) {
	dir := t.TempDir()
	r, err := LockRegistry(dir)
	if err != nil {
		t.Fatalf("LockRegistry() failed: %v", err)
	}
	defer r.Close()

	_, res, err := TryLockRegistry(dir)
	if err != nil {
		t.Fatalf("TryLockRegistry() unexpected error: %v", err)
	}
	if res.Acquired {
		t.Fatal("TryLockRegistry() acquired a lock already held by another handle")
	}
}
