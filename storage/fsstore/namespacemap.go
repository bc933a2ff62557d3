package fsstore

import (
	"context"
	"path/filepath"

	"github.com/wargproto/warg-go/storage"
)

// NamespaceMap is the filesystem-backed storage.NamespaceMapStorage: the
// client-wide namespace preference map lives as a single JSON file under
// the locked directory.
type NamespaceMap struct {
	dir  string
	lock *dirLock
}

var _ storage.NamespaceMapStorage = (*NamespaceMap)(nil)

// TryLockNamespaceMap attempts to acquire dir's advisory lock without
// blocking.
func TryLockNamespaceMap(dir string) (*NamespaceMap, LockResult, error) {
	l, res, err := tryLockDir(dir)
	if err != nil || !res.Acquired {
		return nil, res, err
	}
	return &NamespaceMap{dir: dir, lock: l}, res, nil
}

// LockNamespaceMap acquires dir's advisory lock, blocking until available.
func LockNamespaceMap(dir string) (*NamespaceMap, error) {
	l, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	return &NamespaceMap{dir: dir, lock: l}, nil
}

// Close releases the directory lock.
func (n *NamespaceMap) Close() error { return n.lock.Unlock() }

func (n *NamespaceMap) path() string {
	return filepath.Join(n.dir, "namespaces.json")
}

func (n *NamespaceMap) LoadNamespaceMap(_ context.Context) (storage.NamespaceMap, error) {
	m := storage.NamespaceMap{}
	ok, err := readJSON(n.path(), &m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return m, nil
}

func (n *NamespaceMap) StoreNamespaceMap(_ context.Context, m storage.NamespaceMap) error {
	return writeJSONAtomic(n.path(), m)
}
