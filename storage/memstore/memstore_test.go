package memstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/storage"
)

func TestContentStoreIdempotentAndDigestChecked(t *testing.T) {
	ctx := context.Background()
	c := NewContent()

	data := []byte("package tarball bytes")
	digest := crypto.HashOf(data)

	if err := c.StoreContent(ctx, bytes.NewReader(data), &digest); err != nil {
		t.Fatalf("StoreContent() failed: %v", err)
	}
	if _, ok := c.ContentLocation(digest); !ok {
		t.Fatal("ContentLocation() = not found after StoreContent, want found")
	}

	// Idempotent: storing the same bytes again succeeds.
	if err := c.StoreContent(ctx, bytes.NewReader(data), &digest); err != nil {
		t.Fatalf("StoreContent() second call failed: %v", err)
	}

	r, ok, err := c.LoadContent(ctx, digest)
	if err != nil || !ok {
		t.Fatalf("LoadContent() = %v, %v, %v, want present", r, ok, err)
	}
	defer r.Close()

	wrong := crypto.HashOf([]byte("not the real digest"))
	if err := c.StoreContent(ctx, bytes.NewReader(data), &wrong); err == nil {
		t.Fatal("StoreContent() succeeded with mismatched expected digest, want error")
	}
	if _, ok := c.ContentLocation(wrong); ok {
		t.Error("ContentLocation() found content for a digest that was never successfully stored")
	}
}

func TestRegistryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	info := storage.NewPackageInfo("example:foo")
	if err := r.StorePackage(ctx, "", info); err != nil {
		t.Fatalf("StorePackage() failed: %v", err)
	}

	got, err := r.LoadPackage(ctx, "", "example:foo")
	if err != nil {
		t.Fatalf("LoadPackage() failed: %v", err)
	}
	if got == nil || got.Name != "example:foo" {
		t.Fatalf("LoadPackage() = %+v, want name example:foo", got)
	}

	missing, err := r.LoadPackage(ctx, "", "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("LoadPackage(missing) = %+v, %v, want nil, nil", missing, err)
	}

	if err := r.Reset(ctx, true); err != nil {
		t.Fatalf("Reset() failed: %v", err)
	}
	got, err = r.LoadPackage(ctx, "", "example:foo")
	if err != nil || got != nil {
		t.Fatalf("LoadPackage() after Reset = %+v, %v, want nil, nil", got, err)
	}
}
