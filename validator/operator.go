// Package validator implements the per-log state machines that reduce a
// sequence of signed record envelopes into the current log head plus the
// policy state (registered keys, namespace ownership, releases) those
// records declare.
//
// Validators are pure: Validate either advances the state and returns nil,
// or leaves the state untouched and returns an error. Nothing here performs
// I/O; the synchronizer (package client) is responsible for fetching
// records and feeding them to a validator in order.
package validator

import (
	"fmt"
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

// OperatorValidationError reports why an operator record failed validation.
type OperatorValidationError struct {
	Reason string
}

func (e *OperatorValidationError) Error() string {
	return fmt.Sprintf("operator record validation failed: %s", e.Reason)
}

func opErr(format string, args ...any) error {
	return &OperatorValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Operator is the pure state machine for an operator log: registered keys
// and declared namespace ownership.
type Operator struct {
	head       *protocol.Head
	headTime   time.Time
	keys       map[crypto.KeyID]crypto.PublicKey
	namespaces map[string]protocol.NamespaceState
}

// NewOperator returns an empty operator validator, as used for a log that
// has never been validated.
func NewOperator() *Operator {
	return &Operator{
		keys:       make(map[crypto.KeyID]crypto.PublicKey),
		namespaces: make(map[string]protocol.NamespaceState),
	}
}

// Head returns the latest validated record's identity, or nil if the log is
// still empty.
func (o *Operator) Head() *protocol.Head { return o.head }

// PublicKey resolves a key previously registered (by an init or grantKey
// entry, and not since revoked) by its KeyID.
func (o *Operator) PublicKey(id crypto.KeyID) (crypto.PublicKey, bool) {
	k, ok := o.keys[id]
	return k, ok
}

// NamespaceState reports what the operator log has declared about namespace,
// or the zero value (neither Defined nor Imported) if nothing has been
// declared.
func (o *Operator) NamespaceState(namespace string) protocol.NamespaceState {
	return o.namespaces[namespace]
}

// Validate checks envelope against the current state and, on success,
// advances it. The envelope's signature must verify under a key already
// known to this validator (or, for an init record on an empty log, the
// key the init entry itself introduces).
func (o *Operator) Validate(envelope protocol.Envelope[protocol.OperatorRecord]) error {
	record := envelope.Contents

	if o.head == nil {
		if record.HasPrev {
			return opErr("first record must not have a prev pointer")
		}
		if !record.IsInit() {
			return opErr("first record must begin with an init entry")
		}
	} else {
		if !record.HasPrev {
			return opErr("non-initial record must have a prev pointer")
		}
		if !record.Prev.Equal(o.head.RecordId) {
			return opErr("prev pointer %q does not match current head %q", record.Prev, o.head.RecordId)
		}
		if record.Timestamp.Before(o.headTime) {
			return opErr("timestamp must be non-decreasing")
		}
	}

	signingKey, err := o.resolveSigningKey(record, envelope.KeyID)
	if err != nil {
		return err
	}
	if err := envelope.Verify(signingKey); err != nil {
		return opErr("signature verification failed: %v", err)
	}

	// Stage entry effects before committing so a mid-record failure leaves
	// the validator's observable state untouched.
	newKeys := cloneKeys(o.keys)
	newNamespaces := cloneNamespaces(o.namespaces)

	for _, entry := range record.Entries {
		switch entry.Kind {
		case protocol.OperatorEntryInit:
			newKeys[entry.Key.KeyID()] = entry.Key
		case protocol.OperatorEntryGrantKey:
			newKeys[entry.Key.KeyID()] = entry.Key
		case protocol.OperatorEntryRevokeKey:
			if _, ok := newKeys[entry.KeyID]; !ok {
				return opErr("cannot revoke unknown key %q", entry.KeyID)
			}
			delete(newKeys, entry.KeyID)
		case protocol.OperatorEntryDefineNamespace:
			if st, ok := newNamespaces[entry.Namespace]; ok && st.Imported {
				return opErr("namespace %q is already imported from %q", entry.Namespace, st.Registry)
			}
			newNamespaces[entry.Namespace] = protocol.NamespaceState{Defined: true}
		case protocol.OperatorEntryImportNamespace:
			if st, ok := newNamespaces[entry.Namespace]; ok && st.Defined {
				return opErr("namespace %q is already defined locally", entry.Namespace)
			}
			newNamespaces[entry.Namespace] = protocol.NamespaceState{Imported: true, Registry: entry.Registry}
		default:
			return opErr("unknown operator entry kind %d", entry.Kind)
		}
	}

	recordID, err := envelope.RecordId()
	if err != nil {
		return opErr("failed to compute record id: %v", err)
	}

	o.keys = newKeys
	o.namespaces = newNamespaces
	o.head = &protocol.Head{RecordId: recordID, Digest: recordID}
	o.headTime = record.Timestamp
	return nil
}

func (o *Operator) resolveSigningKey(record protocol.OperatorRecord, keyID crypto.KeyID) (crypto.PublicKey, error) {
	if o.head == nil && record.IsInit() {
		return record.Entries[0].Key, nil
	}
	key, ok := o.keys[keyID]
	if !ok {
		return crypto.PublicKey{}, opErr("unknown signing key %q", keyID)
	}
	return key, nil
}

func cloneKeys(m map[crypto.KeyID]crypto.PublicKey) map[crypto.KeyID]crypto.PublicKey {
	out := make(map[crypto.KeyID]crypto.PublicKey, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneNamespaces(m map[string]protocol.NamespaceState) map[string]protocol.NamespaceState {
	out := make(map[string]protocol.NamespaceState, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
