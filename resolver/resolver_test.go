package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
	"github.com/wargproto/warg-go/storage/memstore"
	"github.com/wargproto/warg-go/validator"
)

func operatorImporting(t *testing.T, ns, domain string) *validator.Operator {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	op := validator.NewOperator()
	record := protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{KeyID: key.KeyID()},
		Entries: []protocol.OperatorEntry{
			{Kind: protocol.OperatorEntryInit, KeyID: key.KeyID(), Key: key.PublicKey()},
			{Kind: protocol.OperatorEntryImportNamespace, Namespace: ns, Registry: domain},
		},
	}
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	env := protocol.Envelope[protocol.OperatorRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
	if err := op.Validate(env); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	return op
}

func TestPackageNamespaceDomain_OperatorImportWins(t *testing.T) {
	ctx := context.Background()
	registry := memstore.NewRegistry()

	op := operatorImporting(t, "acme", "https://other.example")
	if err := registry.StoreOperator(ctx, "", &storage.OperatorInfo{State: op}); err != nil {
		t.Fatalf("StoreOperator() failed: %v", err)
	}

	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, ".warg.json"), []byte(`{"acme":"https://wrong.example"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	domain, found, err := PackageNamespaceDomain(ctx, Deps{Registry: registry, WorkspaceRoot: dir}, "acme")
	if err != nil {
		t.Fatalf("PackageNamespaceDomain() failed: %v", err)
	}
	if !found || domain != "https://other.example" {
		t.Fatalf("PackageNamespaceDomain() = %q, %v, want https://other.example, true", domain, found)
	}
}

func TestPackageNamespaceDomain_DeepestWargJSONWins(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, ".warg.json"), []byte(`{"acme":"https://shallow.example"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	nested := filepath.Join(dir, "nested", "deeper")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, ".warg.json"), []byte(`{"acme":"https://deep.example"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	domain, found, err := PackageNamespaceDomain(ctx, Deps{WorkspaceRoot: dir}, "acme")
	if err != nil {
		t.Fatalf("PackageNamespaceDomain() failed: %v", err)
	}
	if !found || domain != "https://deep.example" {
		t.Fatalf("PackageNamespaceDomain() = %q, %v, want https://deep.example, true", domain, found)
	}
}

func operatorDefining(t *testing.T, ns string) *validator.Operator {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() failed: %v", err)
	}
	op := validator.NewOperator()
	record := protocol.OperatorRecord{
		RecordHeader: protocol.RecordHeader{KeyID: key.KeyID()},
		Entries: []protocol.OperatorEntry{
			{Kind: protocol.OperatorEntryInit, KeyID: key.KeyID(), Key: key.PublicKey()},
			{Kind: protocol.OperatorEntryDefineNamespace, Namespace: ns},
		},
	}
	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	env := protocol.Envelope[protocol.OperatorRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}
	if err := op.Validate(env); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
	return op
}

// TestPackageNamespaceDomain_DefinedSkipsLocalConfig covers the Open
// Question decision: when the operator log is present, step 2 (.warg.json)
// is skipped entirely for a namespace that is merely Defined (or
// undeclared), not just when it is Imported. Resolution must fall straight
// to the namespace map, never picking up a conflicting .warg.json entry.
func TestPackageNamespaceDomain_DefinedSkipsLocalConfig(t *testing.T) {
	ctx := context.Background()
	registry := memstore.NewRegistry()

	op := operatorDefining(t, "acme")
	if err := registry.StoreOperator(ctx, "", &storage.OperatorInfo{State: op}); err != nil {
		t.Fatalf("StoreOperator() failed: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".warg.json"), []byte(`{"acme":"https://wrong.example"}`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	nsMap := memstore.NewNamespaceMap()
	if err := nsMap.StoreNamespaceMap(ctx, storage.NamespaceMap{"acme": "https://map.example"}); err != nil {
		t.Fatalf("StoreNamespaceMap() failed: %v", err)
	}

	domain, found, err := PackageNamespaceDomain(ctx, Deps{Registry: registry, NamespaceMap: nsMap, WorkspaceRoot: dir}, "acme")
	if err != nil {
		t.Fatalf("PackageNamespaceDomain() failed: %v", err)
	}
	if !found || domain != "https://map.example" {
		t.Fatalf("PackageNamespaceDomain() = %q, %v, want https://map.example, true", domain, found)
	}
}

func TestPackageNamespaceDomain_FallsBackToNamespaceMap(t *testing.T) {
	ctx := context.Background()
	nsMap := memstore.NewNamespaceMap()
	if err := nsMap.StoreNamespaceMap(ctx, storage.NamespaceMap{"acme": "https://map.example"}); err != nil {
		t.Fatalf("StoreNamespaceMap() failed: %v", err)
	}

	domain, found, err := PackageNamespaceDomain(ctx, Deps{NamespaceMap: nsMap, WorkspaceRoot: t.TempDir()}, "acme")
	if err != nil {
		t.Fatalf("PackageNamespaceDomain() failed: %v", err)
	}
	if !found || domain != "https://map.example" {
		t.Fatalf("PackageNamespaceDomain() = %q, %v, want https://map.example, true", domain, found)
	}
}

func TestPackageNamespaceDomain_InvalidLocalConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".warg.json"), []byte(`not json`), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	_, _, err := PackageNamespaceDomain(context.Background(), Deps{WorkspaceRoot: dir}, "acme")
	if err == nil {
		t.Fatal("PackageNamespaceDomain() succeeded with invalid .warg.json, want error")
	}
	var resolverErr *Error
	if !errors.As(err, &resolverErr) || resolverErr.Kind != ErrInvalidLocalNamespaceConfig {
		t.Fatalf("PackageNamespaceDomain() error = %v, want InvalidLocalNamespaceConfig", err)
	}
}
