package validator

import (
	"time"

	"github.com/wargproto/warg-go/crypto"
	"github.com/wargproto/warg-go/protocol"
)

// OperatorSnapshot is the serializable form of an Operator validator's
// state, used by storage implementations that need to persist it between
// process runs. Validators themselves never serialize: they are pure
// in-memory reductions, per spec.
type OperatorSnapshot struct {
	Head       *protocol.Head              `json:"head,omitempty"`
	HeadTime   time.Time                   `json:"head_time,omitempty"`
	Keys       map[crypto.KeyID]string     `json:"keys,omitempty"`
	Namespaces map[string]protocol.NamespaceState `json:"namespaces,omitempty"`
}

// Snapshot captures o's current state for persistence.
func (o *Operator) Snapshot() OperatorSnapshot {
	keys := make(map[crypto.KeyID]string, len(o.keys))
	for id, k := range o.keys {
		keys[id] = k.String()
	}
	return OperatorSnapshot{Head: o.head, HeadTime: o.headTime, Keys: keys, Namespaces: o.namespaces}
}

// RestoreOperator reconstructs an Operator from a previously captured
// snapshot.
func RestoreOperator(s OperatorSnapshot) (*Operator, error) {
	o := NewOperator()
	for id, encoded := range s.Keys {
		key, err := crypto.ParsePublicKey(encoded)
		if err != nil {
			return nil, err
		}
		o.keys[id] = key
	}
	for ns, state := range s.Namespaces {
		o.namespaces[ns] = state
	}
	o.head = s.Head
	o.headTime = s.HeadTime
	return o, nil
}

// PackageSnapshot is the serializable form of a Package validator's state.
type PackageSnapshot struct {
	Head     *protocol.Head          `json:"head,omitempty"`
	HeadTime time.Time               `json:"head_time,omitempty"`
	Keys     map[crypto.KeyID]string `json:"keys,omitempty"`
	Releases map[string]protocol.Release `json:"releases,omitempty"`
	Order    []string                `json:"order,omitempty"`
}

// Snapshot captures p's current state for persistence.
func (p *Package) Snapshot() PackageSnapshot {
	keys := make(map[crypto.KeyID]string, len(p.keys))
	for id, k := range p.keys {
		keys[id] = k.String()
	}
	return PackageSnapshot{Head: p.head, HeadTime: p.headTime, Keys: keys, Releases: p.releases, Order: p.order}
}

// RestorePackage reconstructs a Package from a previously captured
// snapshot.
func RestorePackage(s PackageSnapshot) (*Package, error) {
	p := NewPackage()
	for id, encoded := range s.Keys {
		key, err := crypto.ParsePublicKey(encoded)
		if err != nil {
			return nil, err
		}
		p.keys[id] = key
	}
	for v, r := range s.Releases {
		p.releases[v] = r
	}
	p.order = s.Order
	p.head = s.Head
	p.headTime = s.HeadTime
	return p, nil
}
