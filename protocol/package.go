package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/wargproto/warg-go/crypto"
)

// PackageNamespace returns the namespace portion of a fully-qualified
// package name of the form "namespace:name" (e.g. "acme:x" -> "acme"),
// the unit C4's namespace resolver operates on. A name with no ":" is its
// own namespace.
func PackageNamespace(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

// PackageEntryKind discriminates the package log's entry variants.
type PackageEntryKind int

const (
	// PackageEntryInit marks the first entry of a package log.
	PackageEntryInit PackageEntryKind = iota
	// PackageEntryGrantKey registers an additional signing key scoped to
	// this package.
	PackageEntryGrantKey
	// PackageEntryRevokeKey revokes a package-scoped signing key.
	PackageEntryRevokeKey
	// PackageEntryRelease publishes a version, pointing it at a content
	// digest.
	PackageEntryRelease
	// PackageEntryYank marks a previously-released version as yanked.
	PackageEntryYank
)

// PackageEntry is one effect applied by a PackageRecord.
type PackageEntry struct {
	Kind    PackageEntryKind
	KeyID   crypto.KeyID
	Key     crypto.PublicKey
	Version string
	Content crypto.Hash
}

// PackageRecord is the semantic payload of one record in a package's log.
type PackageRecord struct {
	RecordHeader
	Entries []PackageEntry
}

type packageRecordWire struct {
	Prev      *string          `json:"prev,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	KeyID     crypto.KeyID     `json:"key_id"`
	Entries   []packageEntryWire `json:"entries"`
}

type packageEntryWire struct {
	Type    string `json:"type"`
	KeyID   string `json:"key_id,omitempty"`
	Key     string `json:"key,omitempty"`
	Version string `json:"version,omitempty"`
	Content string `json:"content,omitempty"`
}

var packageEntryTypeNames = map[PackageEntryKind]string{
	PackageEntryInit:      "init",
	PackageEntryGrantKey:  "grantKey",
	PackageEntryRevokeKey: "revokeKey",
	PackageEntryRelease:   "release",
	PackageEntryYank:      "yank",
}

// Encode implements crypto.Signable with the registry's canonical JSON
// encoding.
func (r PackageRecord) Encode() ([]byte, error) {
	wire := packageRecordWire{
		Timestamp: r.Timestamp,
		KeyID:     r.KeyID,
		Entries:   make([]packageEntryWire, len(r.Entries)),
	}
	if r.HasPrev {
		s := r.Prev.String()
		wire.Prev = &s
	}
	for i, e := range r.Entries {
		w := packageEntryWire{Type: packageEntryTypeNames[e.Kind], Version: e.Version}
		switch e.Kind {
		case PackageEntryInit:
			w.Key = e.Key.String()
		case PackageEntryGrantKey:
			w.KeyID = string(e.KeyID)
			w.Key = e.Key.String()
		case PackageEntryRevokeKey:
			w.KeyID = string(e.KeyID)
		case PackageEntryRelease:
			w.Content = e.Content.String()
		case PackageEntryYank:
		}
		wire.Entries[i] = w
	}
	return crypto.Encode(wire)
}

// IsInit reports whether r's first entry initializes the log.
func (r PackageRecord) IsInit() bool {
	return len(r.Entries) > 0 && r.Entries[0].Kind == PackageEntryInit
}

func (r PackageRecord) MarshalJSON() ([]byte, error) { return r.Encode() }

func (r *PackageRecord) UnmarshalJSON(data []byte) error {
	var wire packageRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Timestamp = wire.Timestamp
	r.KeyID = wire.KeyID
	if wire.Prev != nil {
		h, err := crypto.ParseHash(*wire.Prev)
		if err != nil {
			return err
		}
		r.Prev = h
		r.HasPrev = true
	}
	r.Entries = make([]PackageEntry, len(wire.Entries))
	for i, w := range wire.Entries {
		e := PackageEntry{Version: w.Version, KeyID: crypto.KeyID(w.KeyID)}
		for kind, name := range packageEntryTypeNames {
			if name == w.Type {
				e.Kind = kind
			}
		}
		if w.Key != "" {
			key, err := crypto.ParsePublicKey(w.Key)
			if err != nil {
				return err
			}
			e.Key = key
		}
		if w.Content != "" {
			h, err := crypto.ParseHash(w.Content)
			if err != nil {
				return err
			}
			e.Content = h
		}
		r.Entries[i] = e
	}
	return nil
}

// Release describes one version's currently-known state within a package's
// validated log.
type Release struct {
	Version string
	// Content is the release's content digest, or the zero Hash if the
	// release has been yanked.
	Content crypto.Hash
	Yanked  bool
}

// HasContent reports whether the release still has a content digest (i.e.
// has not been yanked).
func (r Release) HasContent() bool { return !r.Yanked && !r.Content.IsZero() }

// VersionReq is a package version requirement, e.g. "*", "=1.2.3", or
// "^1.2.0" (same major version, greater than or equal).
type VersionReq string

// Matches reports whether version satisfies the requirement.
func (req VersionReq) Matches(version string) bool {
	v := canonicalSemver(version)
	if v == "" {
		return false
	}
	s := strings.TrimSpace(string(req))
	switch {
	case s == "" || s == "*":
		return true
	case strings.HasPrefix(s, "="):
		return semver.Compare(v, canonicalSemver(s[1:])) == 0
	case strings.HasPrefix(s, "^"):
		want := canonicalSemver(s[1:])
		return semver.Major(v) == semver.Major(want) && semver.Compare(v, want) >= 0
	default:
		return semver.Compare(v, canonicalSemver(s)) == 0
	}
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// String implements fmt.Stringer.
func (req VersionReq) String() string { return string(req) }

// CompareVersions orders two version strings using semantic-version
// precedence. It panics-free on invalid input by treating it as less than
// any valid version.
func CompareVersions(a, b string) int {
	return semver.Compare(canonicalSemver(a), canonicalSemver(b))
}

// ErrNoMatchingRelease describes a release search that found nothing
// satisfying the given requirement. The validator's lookups (Release,
// FindLatestRelease) report a miss with a false result and do not return
// this error.
var ErrNoMatchingRelease = fmt.Errorf("protocol: no release satisfies requirement")
