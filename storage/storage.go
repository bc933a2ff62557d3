// Package storage defines the storage contracts the client core relies on:
// a content-addressed blob store, a per-namespace-domain cache of operator
// and package logs plus checkpoints and pending publishes, and a
// client-wide namespace map. Concrete implementations live in the memstore
// and fsstore subpackages; this package specifies only the interfaces and
// the cached value shapes, per spec.md's "storage contracts ... specified
// only at the interface level".
package storage

import (
	"context"
	"io"
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/validator"
)

// PackageInfo is the cached, per-namespace-domain view of one package's log.
type PackageInfo struct {
	// Name is the package name.
	Name string
	// State is the validated reduction of the package's log so far.
	State *validator.Package
	// HeadRegistryIndex is the largest registry_index observed in this
	// log, or nil if nothing has been fetched yet.
	HeadRegistryIndex *uint64
	// HeadFetchToken is the opaque resume cursor for incremental fetch.
	HeadFetchToken *string
	// Checkpoint is the checkpoint under which the current head was last
	// proved included, or nil if the log has never been proved.
	Checkpoint *protocol.Checkpoint
}

// NewPackageInfo returns an empty PackageInfo for name, as used the first
// time a package is referenced.
func NewPackageInfo(name string) *PackageInfo {
	return &PackageInfo{Name: name, State: validator.NewPackage()}
}

// OperatorInfo is the cached view of the registry's singleton operator log.
type OperatorInfo struct {
	State             *validator.Operator
	HeadRegistryIndex *uint64
	HeadFetchToken    *string
}

// NewOperatorInfo returns an empty OperatorInfo, as used on first sync.
func NewOperatorInfo() *OperatorInfo {
	return &OperatorInfo{State: validator.NewOperator()}
}

// PublishInfo is a pending publish intent: the package being published to,
// the record id it is expected to build on, and the entries to include.
type PublishInfo struct {
	Name    string
	Head    *protocol.RecordId
	Entries []protocol.PackageEntry
}

// Initializing reports whether this publish intent starts a new package log
// (no head, and the first entry is an init entry).
func (p PublishInfo) Initializing() bool {
	return p.Head == nil && len(p.Entries) > 0 && p.Entries[0].Kind == protocol.PackageEntryInit
}

// Finalize builds the signed record envelope for this publish intent: prev
// is set to the current head (or absent, for an init record), the record is
// timestamped now, and signed with key.
func (p PublishInfo) Finalize(key crypto.PrivateKey, now time.Time) (protocol.Envelope[protocol.PackageRecord], error) {
	record := protocol.PackageRecord{
		RecordHeader: protocol.RecordHeader{Timestamp: now, KeyID: key.KeyID()},
		Entries:      p.Entries,
	}
	if p.Head != nil {
		record.Prev = *p.Head
		record.HasPrev = true
	}

	_, sig, err := crypto.Sign(key, record)
	if err != nil {
		return protocol.Envelope[protocol.PackageRecord]{}, err
	}
	return protocol.Envelope[protocol.PackageRecord]{Contents: record, KeyID: key.KeyID(), Signature: sig}, nil
}

// NamespaceMap is the client-wide, persistent mapping from namespace to the
// registry domain the user has chosen for it (storage.NamespaceMapStorage's
// backing value).
type NamespaceMap map[string]string

// ContentStorage is the content-addressed blob store (spec.md C2).
type ContentStorage interface {
	// ContentLocation returns a location identifier for digest if it is
	// already present, without performing any I/O beyond a metadata
	// check.
	ContentLocation(digest crypto.Hash) (string, bool)
	// StoreContent sinks r, computing the digest while writing. If
	// expectedDigest is non-nil and the computed digest differs, the
	// partially written blob must not become observable as present.
	// Storing content whose digest already exists is a no-op success.
	StoreContent(ctx context.Context, r io.Reader, expectedDigest *crypto.Hash) error
	// LoadContent opens a stream of the content for digest, or (nil,
	// false, nil) if absent.
	LoadContent(ctx context.Context, digest crypto.Hash) (io.ReadCloser, bool, error)
	// Clear drops all cached content.
	Clear(ctx context.Context) error
}

// RegistryStorage is the per-namespace-domain cache of operator/package
// logs, checkpoints, and pending publish (spec.md C3). domain is empty for
// the client's default registry.
type RegistryStorage interface {
	LoadOperator(ctx context.Context, domain string) (*OperatorInfo, error)
	StoreOperator(ctx context.Context, domain string, info *OperatorInfo) error

	LoadPackage(ctx context.Context, domain, name string) (*PackageInfo, error)
	StorePackage(ctx context.Context, domain string, info *PackageInfo) error
	LoadPackages(ctx context.Context, domain string) ([]*PackageInfo, error)

	LoadCheckpoint(ctx context.Context, domain string) (*protocol.SignedEnvelope[protocol.TimestampedCheckpoint], error)
	StoreCheckpoint(ctx context.Context, domain string, checkpoint protocol.SignedEnvelope[protocol.TimestampedCheckpoint]) error

	LoadPublish(ctx context.Context, domain string) (*PublishInfo, error)
	StorePublish(ctx context.Context, domain string, info *PublishInfo) error

	// Reset drops all cached state. If allRegistries is false, only the
	// default domain's state is dropped.
	Reset(ctx context.Context, allRegistries bool) error
}

// NamespaceMapStorage is the client-wide namespace preference store.
type NamespaceMapStorage interface {
	LoadNamespaceMap(ctx context.Context) (NamespaceMap, error)
	StoreNamespaceMap(ctx context.Context, m NamespaceMap) error
}
