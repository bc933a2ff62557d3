// Package protocol defines the wire- and storage-level data model for
// registry logs: log identity, signed record envelopes, the operator and
// package record payloads, and the checkpoints that commit to them.
//
// It is the Go-native reconstruction of the original Rust crate's
// warg_protocol, generalizing the teacher's single fixed firmware
// checkpoint format into the registry's per-log, per-record shapes.
package protocol

import "github.com/wargproto/warg-go/crypto"

// LogId is the opaque, deterministic identifier for a log: the operator log,
// or one package's log. It is derived from a canonical identity hash, never
// from anything positional, so two clients always agree on it.
type LogId struct {
	hash crypto.Hash
}

// operatorLogTag is the fixed identity hashed to produce the operator log's
// id; it never varies across registries, so all operator logs compare equal
// by id (there is exactly one operator log per registry, scoped by the
// client's namespace-domain selection instead).
const operatorLogTag = "warg:operator"

// OperatorLogId returns the fixed LogId for the registry's operator log.
func OperatorLogId() LogId {
	return LogId{hash: crypto.HashOf([]byte(operatorLogTag))}
}

// PackageLogId returns the deterministic LogId for the package named name.
func PackageLogId(name string) LogId {
	return LogId{hash: crypto.HashOf([]byte("warg:package:" + name))}
}

// String renders the LogId as canonical hash text, suitable for use as a map
// key or log line.
func (id LogId) String() string { return id.hash.String() }

// Equal reports whether id and other identify the same log.
func (id LogId) Equal(other LogId) bool { return id.hash.Equal(other.hash) }

// MarshalText implements encoding.TextMarshaler so LogId fields of records
// serialize to canonical hash text. LogId is not itself used as a Go map
// key anywhere in this module, since it wraps a variable-length Hash and so
// is not comparable; callers needing a map key use String() instead.
func (id LogId) MarshalText() ([]byte, error) { return id.hash.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *LogId) UnmarshalText(text []byte) error {
	var h crypto.Hash
	if err := h.UnmarshalText(text); err != nil {
		return err
	}
	id.hash = h
	return nil
}
