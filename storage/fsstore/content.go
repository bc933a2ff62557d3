package fsstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/storage"
)

// Content is the filesystem-backed storage.ContentStorage. Blobs are named
// by their digest so ContentLocation is a pure path computation; writes go
// to a temporary file and are renamed into place only once the digest is
// confirmed, so a digest mismatch or a crash mid-write never leaves a
// blob observable at its final path.
type Content struct {
	dir  string
	lock *dirLock
}

var _ storage.ContentStorage = (*Content)(nil)

// TryLockContent attempts to acquire dir's advisory lock without blocking.
func TryLockContent(dir string) (*Content, LockResult, error) {
	l, res, err := tryLockDir(dir)
	if err != nil || !res.Acquired {
		return nil, res, err
	}
	return &Content{dir: dir, lock: l}, res, nil
}

// LockContent acquires dir's advisory lock, blocking until available.
func LockContent(dir string) (*Content, error) {
	l, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	return &Content{dir: dir, lock: l}, nil
}

// Close releases the directory lock.
func (c *Content) Close() error { return c.lock.Unlock() }

func (c *Content) pathFor(digest crypto.Hash) string {
	return filepath.Join(c.dir, string(digest.Algorithm), fmt.Sprintf("%x", digest.Bytes))
}

func (c *Content) ContentLocation(digest crypto.Hash) (string, bool) {
	path := c.pathFor(digest)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func (c *Content) StoreContent(_ context.Context, r io.Reader, expectedDigest *crypto.Hash) error {
	if expectedDigest != nil {
		if _, ok := c.ContentLocation(*expectedDigest); ok {
			_, _ = io.Copy(io.Discard, r)
			return nil
		}
	}

	dir := c.dir
	if expectedDigest != nil {
		dir = filepath.Join(c.dir, string(expectedDigest.Algorithm))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: create content dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "content-*.tmp")
	if err != nil {
		return fmt.Errorf("fsstore: create temp content file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed into place

	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("fsstore: write content: %w", copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("fsstore: close temp content file: %w", closeErr)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("fsstore: reread temp content file: %w", err)
	}
	digest := crypto.HashOf(data)
	if expectedDigest != nil && !digest.Equal(*expectedDigest) {
		return fmt.Errorf("fsstore: content digest mismatch: got %s, want %s", digest, *expectedDigest)
	}

	finalPath := c.pathFor(digest)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("fsstore: create content dir: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("fsstore: finalize content file: %w", err)
	}
	return nil
}

func (c *Content) LoadContent(_ context.Context, digest crypto.Hash) (io.ReadCloser, bool, error) {
	path, ok := c.ContentLocation(digest)
	if !ok {
		return nil, false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("fsstore: open content %q: %w", path, err)
	}
	return f, true, nil
}

func (c *Content) Clear(_ context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("fsstore: list content dir: %w", err)
	}
	for _, e := range entries {
		if e.Name() == ".lock" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("fsstore: clear content dir: %w", err)
		}
	}
	return nil
}
