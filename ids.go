package ignite

import "github.com/google/uuid"

// DemanderID identifies the peer node asking for partitions. It wraps a
// UUID the same way the demand/supply protocol's wire identifiers do.
type DemanderID uuid.UUID

// NewDemanderID generates a fresh random demander identity, mostly useful in
// tests and fakes.
func NewDemanderID() DemanderID {
	return DemanderID(uuid.New())
}

// String renders the canonical UUID form.
func (d DemanderID) String() string {
	return uuid.UUID(d).String()
}

// contextKey is the composite key the context store is keyed by: a demander
// paired with one of its worker slots. At most one outstanding demand exists
// per key at any instant, which is what lets the demand handler skip
// per-context locking (see SupplyContextStore).
type contextKey struct {
	demander DemanderID
	slot     int
}
