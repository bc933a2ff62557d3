package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
	"github.com/wargproto/warg-go/storage"
	"github.com/wargproto/warg-go/validator"
)

// Registry is the filesystem-backed storage.RegistryStorage. One
// subdirectory per namespace domain holds that registry's operator log,
// package logs, checkpoint, and pending publish as JSON files; the
// directory's lock covers the lifetime of the Registry value, generalizing
// the teacher's single-process checkpoint file to the multi-domain case.
type Registry struct {
	dir  string
	lock *dirLock
}

var _ storage.RegistryStorage = (*Registry)(nil)

// TryLockRegistry attempts to acquire dir's advisory lock without blocking.
func TryLockRegistry(dir string) (*Registry, LockResult, error) {
	l, res, err := tryLockDir(dir)
	if err != nil || !res.Acquired {
		return nil, res, err
	}
	return &Registry{dir: dir, lock: l}, res, nil
}

// LockRegistry acquires dir's advisory lock, blocking until available.
func LockRegistry(dir string) (*Registry, error) {
	l, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	return &Registry{dir: dir, lock: l}, nil
}

// Close releases the directory lock.
func (r *Registry) Close() error { return r.lock.Unlock() }

func domainDir(root, domain string) string {
	if domain == "" {
		return filepath.Join(root, "_default")
	}
	return filepath.Join(root, fmt.Sprintf("%x", crypto.HashOf([]byte(domain)).Bytes))
}

func writeJSONAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("fsstore: create dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("fsstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	if encErr := enc.Encode(v); encErr != nil {
		tmp.Close()
		return fmt.Errorf("fsstore: encode %q: %w", path, encErr)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsstore: rename into %q: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("fsstore: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("fsstore: decode %q: %w", path, err)
	}
	return true, nil
}

type operatorInfoWire struct {
	State             validator.OperatorSnapshot `json:"state"`
	HeadRegistryIndex *uint64                    `json:"head_registry_index,omitempty"`
	HeadFetchToken    *string                    `json:"head_fetch_token,omitempty"`
}

func (r *Registry) operatorPath(domain string) string {
	return filepath.Join(domainDir(r.dir, domain), "operator.json")
}

func (r *Registry) LoadOperator(_ context.Context, domain string) (*storage.OperatorInfo, error) {
	var wire operatorInfoWire
	ok, err := readJSON(r.operatorPath(domain), &wire)
	if err != nil || !ok {
		return nil, err
	}
	state, err := validator.RestoreOperator(wire.State)
	if err != nil {
		return nil, fmt.Errorf("fsstore: restore operator state: %w", err)
	}
	return &storage.OperatorInfo{State: state, HeadRegistryIndex: wire.HeadRegistryIndex, HeadFetchToken: wire.HeadFetchToken}, nil
}

func (r *Registry) StoreOperator(_ context.Context, domain string, info *storage.OperatorInfo) error {
	wire := operatorInfoWire{State: info.State.Snapshot(), HeadRegistryIndex: info.HeadRegistryIndex, HeadFetchToken: info.HeadFetchToken}
	return writeJSONAtomic(r.operatorPath(domain), wire)
}

type packageInfoWire struct {
	Name              string                    `json:"name"`
	State             validator.PackageSnapshot `json:"state"`
	HeadRegistryIndex *uint64                   `json:"head_registry_index,omitempty"`
	HeadFetchToken    *string                   `json:"head_fetch_token,omitempty"`
	Checkpoint        *protocol.Checkpoint      `json:"checkpoint,omitempty"`
}

func packageFileName(name string) string {
	return fmt.Sprintf("%x.json", crypto.HashOf([]byte(name)).Bytes)
}

func (r *Registry) packagesDir(domain string) string {
	return filepath.Join(domainDir(r.dir, domain), "packages")
}

func (r *Registry) packagePath(domain, name string) string {
	return filepath.Join(r.packagesDir(domain), packageFileName(name))
}

func (r *Registry) LoadPackage(_ context.Context, domain, name string) (*storage.PackageInfo, error) {
	var wire packageInfoWire
	ok, err := readJSON(r.packagePath(domain, name), &wire)
	if err != nil || !ok {
		return nil, err
	}
	state, err := validator.RestorePackage(wire.State)
	if err != nil {
		return nil, fmt.Errorf("fsstore: restore package state: %w", err)
	}
	return &storage.PackageInfo{
		Name:              wire.Name,
		State:             state,
		HeadRegistryIndex: wire.HeadRegistryIndex,
		HeadFetchToken:    wire.HeadFetchToken,
		Checkpoint:        wire.Checkpoint,
	}, nil
}

func (r *Registry) StorePackage(_ context.Context, domain string, info *storage.PackageInfo) error {
	wire := packageInfoWire{
		Name:              info.Name,
		State:             info.State.Snapshot(),
		HeadRegistryIndex: info.HeadRegistryIndex,
		HeadFetchToken:    info.HeadFetchToken,
		Checkpoint:        info.Checkpoint,
	}
	return writeJSONAtomic(r.packagePath(domain, info.Name), wire)
}

func (r *Registry) LoadPackages(_ context.Context, domain string) ([]*storage.PackageInfo, error) {
	entries, err := os.ReadDir(r.packagesDir(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fsstore: list packages dir: %w", err)
	}
	out := make([]*storage.PackageInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var wire packageInfoWire
		ok, err := readJSON(filepath.Join(r.packagesDir(domain), e.Name()), &wire)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		state, err := validator.RestorePackage(wire.State)
		if err != nil {
			return nil, fmt.Errorf("fsstore: restore package state: %w", err)
		}
		out = append(out, &storage.PackageInfo{
			Name:              wire.Name,
			State:             state,
			HeadRegistryIndex: wire.HeadRegistryIndex,
			HeadFetchToken:    wire.HeadFetchToken,
			Checkpoint:        wire.Checkpoint,
		})
	}
	return out, nil
}

func (r *Registry) checkpointPath(domain string) string {
	return filepath.Join(domainDir(r.dir, domain), "checkpoint.json")
}

func (r *Registry) LoadCheckpoint(_ context.Context, domain string) (*protocol.SignedEnvelope[protocol.TimestampedCheckpoint], error) {
	var env protocol.SignedEnvelope[protocol.TimestampedCheckpoint]
	ok, err := readJSON(r.checkpointPath(domain), &env)
	if err != nil || !ok {
		return nil, err
	}
	return &env, nil
}

func (r *Registry) StoreCheckpoint(_ context.Context, domain string, checkpoint protocol.SignedEnvelope[protocol.TimestampedCheckpoint]) error {
	return writeJSONAtomic(r.checkpointPath(domain), checkpoint)
}

func (r *Registry) publishPath(domain string) string {
	return filepath.Join(domainDir(r.dir, domain), "publish.json")
}

func (r *Registry) LoadPublish(_ context.Context, domain string) (*storage.PublishInfo, error) {
	var info storage.PublishInfo
	ok, err := readJSON(r.publishPath(domain), &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

func (r *Registry) StorePublish(_ context.Context, domain string, info *storage.PublishInfo) error {
	if info == nil {
		if err := os.Remove(r.publishPath(domain)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("fsstore: clear publish: %w", err)
		}
		return nil
	}
	return writeJSONAtomic(r.publishPath(domain), info)
}

func (r *Registry) Reset(_ context.Context, allRegistries bool) error {
	if allRegistries {
		entries, err := os.ReadDir(r.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("fsstore: list registry dir: %w", err)
		}
		for _, e := range entries {
			if e.Name() == ".lock" {
				continue
			}
			if err := os.RemoveAll(filepath.Join(r.dir, e.Name())); err != nil {
				return fmt.Errorf("fsstore: reset registry dir: %w", err)
			}
		}
		return nil
	}
	if err := os.RemoveAll(domainDir(r.dir, "")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fsstore: reset default domain: %w", err)
	}
	return nil
}
