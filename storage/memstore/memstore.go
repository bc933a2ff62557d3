// Package memstore is an in-process reference implementation of the
// storage interfaces, grounded on the original Rust crate's
// datastore::memory::MemoryDataStore: one mutex guards a single in-memory
// state, and nothing is persisted between process restarts. It backs the
// client's own tests and is suitable for short-lived tooling.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
)

type checkpointEnvelope = protocol.SignedEnvelope[protocol.TimestampedCheckpoint]

type registryState struct {
	operator   *storage.OperatorInfo
	packages   map[string]*storage.PackageInfo
	checkpoint *checkpointEnvelope
	publish    *storage.PublishInfo
}

func newRegistryState() *registryState {
	return &registryState{packages: make(map[string]*storage.PackageInfo)}
}

// Registry is an in-memory storage.RegistryStorage, keyed by namespace
// domain ("" denotes the default registry).
type Registry struct {
	mu    sync.RWMutex
	byDom map[string]*registryState
}

// NewRegistry returns an empty in-memory registry store.
func NewRegistry() *Registry {
	return &Registry{byDom: make(map[string]*registryState)}
}

func (r *Registry) state(domain string) *registryState {
	s, ok := r.byDom[domain]
	if !ok {
		s = newRegistryState()
		r.byDom[domain] = s
	}
	return s
}

func (r *Registry) LoadOperator(_ context.Context, domain string) (*storage.OperatorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byDom[domain]; ok {
		return s.operator, nil
	}
	return nil, nil
}

func (r *Registry) StoreOperator(_ context.Context, domain string, info *storage.OperatorInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(domain).operator = info
	return nil
}

func (r *Registry) LoadPackage(_ context.Context, domain, name string) (*storage.PackageInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byDom[domain]; ok {
		if p, ok := s.packages[name]; ok {
			return p, nil
		}
	}
	return nil, nil
}

func (r *Registry) StorePackage(_ context.Context, domain string, info *storage.PackageInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(domain).packages[info.Name] = info
	return nil
}

func (r *Registry) LoadPackages(_ context.Context, domain string) ([]*storage.PackageInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byDom[domain]
	if !ok {
		return nil, nil
	}
	out := make([]*storage.PackageInfo, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, p)
	}
	return out, nil
}

func (r *Registry) LoadCheckpoint(_ context.Context, domain string) (*checkpointEnvelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byDom[domain]; ok {
		return s.checkpoint, nil
	}
	return nil, nil
}

func (r *Registry) StoreCheckpoint(_ context.Context, domain string, checkpoint checkpointEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(domain).checkpoint = &checkpoint
	return nil
}

func (r *Registry) LoadPublish(_ context.Context, domain string) (*storage.PublishInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byDom[domain]; ok {
		return s.publish, nil
	}
	return nil, nil
}

func (r *Registry) StorePublish(_ context.Context, domain string, info *storage.PublishInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(domain).publish = info
	return nil
}

func (r *Registry) Reset(_ context.Context, allRegistries bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allRegistries {
		r.byDom = make(map[string]*registryState)
		return nil
	}
	delete(r.byDom, "")
	return nil
}

// Content is an in-memory storage.ContentStorage.
type Content struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewContent returns an empty in-memory content store.
func NewContent() *Content {
	return &Content{blobs: make(map[string][]byte)}
}

func (c *Content) ContentLocation(digest crypto.Hash) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.blobs[digest.String()]
	return digest.String(), ok
}

func (c *Content) StoreContent(_ context.Context, r io.Reader, expectedDigest *crypto.Hash) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("memstore: read content: %w", err)
	}
	digest := crypto.HashOf(data)
	if expectedDigest != nil && !digest.Equal(*expectedDigest) {
		return fmt.Errorf("memstore: content digest mismatch: got %s, want %s", digest, *expectedDigest)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[digest.String()] = data
	return nil
}

func (c *Content) LoadContent(_ context.Context, digest crypto.Hash) (io.ReadCloser, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.blobs[digest.String()]
	if !ok {
		return nil, false, nil
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

func (c *Content) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs = make(map[string][]byte)
	return nil
}

// NamespaceMap is an in-memory storage.NamespaceMapStorage.
type NamespaceMap struct {
	mu sync.RWMutex
	m  storage.NamespaceMap
}

// NewNamespaceMap returns an empty in-memory namespace map store.
func NewNamespaceMap() *NamespaceMap {
	return &NamespaceMap{}
}

func (n *NamespaceMap) LoadNamespaceMap(_ context.Context) (storage.NamespaceMap, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.m, nil
}

func (n *NamespaceMap) StoreNamespaceMap(_ context.Context, m storage.NamespaceMap) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m = m
	return nil
}
