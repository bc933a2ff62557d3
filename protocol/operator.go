package protocol

import (
	"encoding/json"
	"time"

	"github.com/wargproto/warg-go/crypto"
)

// OperatorEntryKind discriminates the operator log's entry variants.
type OperatorEntryKind int

const (
	// OperatorEntryInit marks the first entry of an operator log; it
	// carries the initial signing key.
	OperatorEntryInit OperatorEntryKind = iota
	// OperatorEntryGrantKey registers an additional signing key.
	OperatorEntryGrantKey
	// OperatorEntryRevokeKey revokes a previously-registered signing key.
	OperatorEntryRevokeKey
	// OperatorEntryDefineNamespace declares a namespace as owned by this
	// registry directly.
	OperatorEntryDefineNamespace
	// OperatorEntryImportNamespace declares a namespace as owned by a
	// different registry domain.
	OperatorEntryImportNamespace
)

// OperatorEntry is one effect applied by an OperatorRecord. Only the fields
// whose comment names the entry's Kind are meaningful.
type OperatorEntry struct {
	Kind      OperatorEntryKind
	KeyID     crypto.KeyID   // GrantKey, RevokeKey
	Key       crypto.PublicKey // Init, GrantKey
	Namespace string         // DefineNamespace, ImportNamespace
	Registry  string         // ImportNamespace
}

// OperatorRecord is the semantic payload of one record in the operator log:
// a sequence of entries plus the bookkeeping common to every record.
type OperatorRecord struct {
	RecordHeader
	Entries []OperatorEntry
}

type operatorRecordWire struct {
	Prev      *string           `json:"prev,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	KeyID     crypto.KeyID      `json:"key_id"`
	Entries   []operatorEntryWire `json:"entries"`
}

type operatorEntryWire struct {
	Type      string `json:"type"`
	KeyID     string `json:"key_id,omitempty"`
	Key       string `json:"key,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Registry  string `json:"registry,omitempty"`
}

var operatorEntryTypeNames = map[OperatorEntryKind]string{
	OperatorEntryInit:            "init",
	OperatorEntryGrantKey:        "grantKey",
	OperatorEntryRevokeKey:       "revokeKey",
	OperatorEntryDefineNamespace: "defineNamespace",
	OperatorEntryImportNamespace: "importNamespace",
}

// Encode implements crypto.Signable with the registry's canonical JSON
// encoding.
func (r OperatorRecord) Encode() ([]byte, error) {
	wire := operatorRecordWire{
		Timestamp: r.Timestamp,
		KeyID:     r.KeyID,
		Entries:   make([]operatorEntryWire, len(r.Entries)),
	}
	if r.HasPrev {
		s := r.Prev.String()
		wire.Prev = &s
	}
	for i, e := range r.Entries {
		w := operatorEntryWire{Type: operatorEntryTypeNames[e.Kind]}
		switch e.Kind {
		case OperatorEntryInit:
			w.Key = e.Key.String()
		case OperatorEntryGrantKey:
			w.KeyID = string(e.KeyID)
			w.Key = e.Key.String()
		case OperatorEntryRevokeKey:
			w.KeyID = string(e.KeyID)
		case OperatorEntryDefineNamespace:
			w.Namespace = e.Namespace
		case OperatorEntryImportNamespace:
			w.Namespace = e.Namespace
			w.Registry = e.Registry
		}
		wire.Entries[i] = w
	}
	return crypto.Encode(wire)
}

// IsInit reports whether r's first entry initializes the log.
func (r OperatorRecord) IsInit() bool {
	return len(r.Entries) > 0 && r.Entries[0].Kind == OperatorEntryInit
}

// NamespaceState is the resolved ownership state of a namespace as declared
// by the operator log.
type NamespaceState struct {
	// Defined is true if the namespace is declared but owned by this
	// registry directly (no import).
	Defined bool
	// Imported is true if the namespace is owned by a different registry
	// domain, named by Registry.
	Imported bool
	Registry string
}

// MarshalJSON and UnmarshalJSON are provided so fixtures and fakes in tests
// can serialize operator records without hand-writing the wire struct.
func (r OperatorRecord) MarshalJSON() ([]byte, error) {
	enc, err := r.Encode()
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (r *OperatorRecord) UnmarshalJSON(data []byte) error {
	var wire operatorRecordWire
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
	r.Entries = make([]OperatorEntry, len(wire.Entries))
	for i, w := range wire.Entries {
		e := OperatorEntry{Namespace: w.Namespace, Registry: w.Registry, KeyID: crypto.KeyID(w.KeyID)}
		for kind, name := range operatorEntryTypeNames {
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
		r.Entries[i] = e
	}
	return nil
}
