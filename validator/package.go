package validator

import (
	"fmt"
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

// PackageValidationError reports why a package record failed validation.
type PackageValidationError struct {
	Reason string
}

func (e *PackageValidationError) Error() string {
	return fmt.Sprintf("package record validation failed: %s", e.Reason)
}

func pkgErr(format string, args ...any) error {
	return &PackageValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Package is the pure state machine for one package's log: registered keys
// and the set of releases declared so far.
type Package struct {
	head     *protocol.Head
	headTime time.Time
	keys     map[crypto.KeyID]crypto.PublicKey
	releases map[string]protocol.Release
	// order preserves release insertion order so FindLatestRelease can
	// prefer the highest version deterministically without depending on Go
	// map iteration order.
	order []string
}

// NewPackage returns an empty package validator, as used for a log that has
// never been validated.
func NewPackage() *Package {
	return &Package{
		keys:     make(map[crypto.KeyID]crypto.PublicKey),
		releases: make(map[string]protocol.Release),
	}
}

// Head returns the latest validated record's identity, or nil if the log is
// still empty.
func (p *Package) Head() *protocol.Head { return p.head }

// PublicKey resolves a key previously registered for this package's log.
func (p *Package) PublicKey(id crypto.KeyID) (crypto.PublicKey, bool) {
	k, ok := p.keys[id]
	return k, ok
}

// Release returns the release record for version, or (_, false) if no such
// version has ever been released.
func (p *Package) Release(version string) (protocol.Release, bool) {
	r, ok := p.releases[version]
	return r, ok
}

// FindLatestRelease returns the highest version satisfying req among
// releases that have not been yanked, or (_, false) if none match.
func (p *Package) FindLatestRelease(req protocol.VersionReq) (protocol.Release, bool) {
	var best protocol.Release
	found := false
	for _, v := range p.order {
		r := p.releases[v]
		if !r.HasContent() {
			continue
		}
		if !req.Matches(r.Version) {
			continue
		}
		if !found || protocol.CompareVersions(r.Version, best.Version) > 0 {
			best = r
			found = true
		}
	}
	return best, found
}

// Validate checks envelope against the current state and, on success,
// advances it.
func (p *Package) Validate(envelope protocol.Envelope[protocol.PackageRecord]) error {
	record := envelope.Contents

	if p.head == nil {
		if record.HasPrev {
			return pkgErr("first record must not have a prev pointer")
		}
		if !record.IsInit() {
			return pkgErr("first record must begin with an init entry")
		}
	} else {
		if !record.HasPrev {
			return pkgErr("non-initial record must have a prev pointer")
		}
		if !record.Prev.Equal(p.head.RecordId) {
			return pkgErr("prev pointer %q does not match current head %q", record.Prev, p.head.RecordId)
		}
		if record.Timestamp.Before(p.headTime) {
			return pkgErr("timestamp must be non-decreasing")
		}
	}

	signingKey, err := p.resolveSigningKey(record, envelope.KeyID)
	if err != nil {
		return err
	}
	if err := envelope.Verify(signingKey); err != nil {
		return pkgErr("signature verification failed: %v", err)
	}

	newKeys := cloneKeys(p.keys)
	newReleases := make(map[string]protocol.Release, len(p.releases))
	for k, v := range p.releases {
		newReleases[k] = v
	}
	newOrder := append([]string(nil), p.order...)

	for _, entry := range record.Entries {
		switch entry.Kind {
		case protocol.PackageEntryInit:
			newKeys[entry.Key.KeyID()] = entry.Key
		case protocol.PackageEntryGrantKey:
			newKeys[entry.Key.KeyID()] = entry.Key
		case protocol.PackageEntryRevokeKey:
			if _, ok := newKeys[entry.KeyID]; !ok {
				return pkgErr("cannot revoke unknown key %q", entry.KeyID)
			}
			delete(newKeys, entry.KeyID)
		case protocol.PackageEntryRelease:
			if existing, ok := newReleases[entry.Version]; ok && !existing.Yanked {
				return pkgErr("version %q already has a non-yanked release", entry.Version)
			}
			if _, ok := newReleases[entry.Version]; !ok {
				newOrder = append(newOrder, entry.Version)
			}
			newReleases[entry.Version] = protocol.Release{Version: entry.Version, Content: entry.Content}
		case protocol.PackageEntryYank:
			existing, ok := newReleases[entry.Version]
			if !ok || existing.Yanked {
				return pkgErr("cannot yank version %q: no active release", entry.Version)
			}
			existing.Yanked = true
			existing.Content = crypto.Hash{}
			newReleases[entry.Version] = existing
		default:
			return pkgErr("unknown package entry kind %d", entry.Kind)
		}
	}

	recordID, err := envelope.RecordId()
	if err != nil {
		return pkgErr("failed to compute record id: %v", err)
	}

	p.keys = newKeys
	p.releases = newReleases
	p.order = newOrder
	p.head = &protocol.Head{RecordId: recordID, Digest: recordID}
	p.headTime = record.Timestamp
	return nil
}

func (p *Package) resolveSigningKey(record protocol.PackageRecord, keyID crypto.KeyID) (crypto.PublicKey, error) {
	if p.head == nil && record.IsInit() {
		return record.Entries[0].Key, nil
	}
	key, ok := p.keys[keyID]
	if !ok {
		return crypto.PublicKey{}, pkgErr("unknown signing key %q", keyID)
	}
	return key, nil
}
