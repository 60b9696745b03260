package ignite

import (
	"context"
	"time"
)

// AffinityOracle is the partition map and owner assignment collaborator.
type AffinityOracle interface {
	// CurrentTopologyVersion returns the cluster's current view.
	CurrentTopologyVersion() TopologyVersion

	// Belongs reports whether node is an owner of partition at the
	// given topology version.
	Belongs(node DemanderID, partition int32, version TopologyVersion) bool
}

// EntryIterator walks a snapshot of a partition's entries. Close is safe to
// call more than once.
type EntryIterator interface {
	// Next advances to the next entry, returning false when exhausted
	// or when the underlying store signals an error (retrievable via
	// Err).
	Next() bool
	Entry() EntryInfo
	Err() error
	Close() error
}

// OverflowIterator is the overflow-store counterpart of EntryIterator.
type OverflowIterator interface {
	Next() bool
	Entry() OverflowEntry
	Err() error
	Close() error
}

// Partition is a single local replica of a partition id.
type Partition interface {
	ID() int32
	State() PartitionState
	// Reserve takes a counted lease on the partition, returning false if
	// the partition cannot be reserved (e.g. it is being evicted).
	Reserve() bool
	Release()
	// Entries opens a fresh iterator over the partition's in-memory
	// entries (phase 1's source).
	Entries() EntryIterator
}

// PartitionStore is the local partition store collaborator.
type PartitionStore interface {
	// LocalPartition returns the local replica of part at version, or
	// nil if this node holds no replica of it.
	LocalPartition(part int32, version TopologyVersion) Partition
}

// PromotionEvent is what the overflow/off-heap listener channels deliver
// when an entry is promoted, evicted, or overwritten during phase 1.
type PromotionEvent struct {
	Partition int32
	Entry     EntryInfo
}

// OverflowListener receives promotion events; promotionListener is the
// concrete implementation the supply state machine registers.
type OverflowListener interface {
	OnPromotion(evt PromotionEvent)
}

// OverflowStore is the secondary (off-heap/on-disk) storage collaborator.
type OverflowStore interface {
	Enabled() bool
	// Iterator opens an iterator over part's overflow entries, or nil
	// if there is no overflow space allocated for it.
	Iterator(part int32) OverflowIterator

	AddOverflowListener(part int32, l OverflowListener)
	RemoveOverflowListener(part int32, l OverflowListener)
	AddPromotionListener(part int32, l OverflowListener)
	RemovePromotionListener(part int32, l OverflowListener)
}

// SendPolicy is the message bus's delivery-ordering/QoS knob; the supply
// engine always sends with OrderedReliable, but the type is a collaborator
// contract, not a supplier choice.
type SendPolicy uint8

const (
	OrderedReliable SendPolicy = iota
)

// MessageBus is the socket/framing collaborator. SendOrdered blocks until
// acknowledged, the context is done, or the timeout elapses; it returns
// ErrRecipientGone if the node has left the cluster.
type MessageBus interface {
	SendOrdered(ctx context.Context, node DemanderID, topic string, msg SupplyMessage, policy SendPolicy, timeout time.Duration) error
}

// DeploymentRegistry resolves class-loader ids to deployment info.
type DeploymentRegistry interface {
	ClassLoaderFor(id string) (DeploymentInfo, bool)
}

// MembershipEventType enumerates the cluster membership events the topology
// event subscriber cares about.
type MembershipEventType uint8

const (
	NodeLeft MembershipEventType = iota
	NodeFailed
	RebalanceStopped
)

// MembershipEvent carries the departed/stopped node id.
type MembershipEvent struct {
	Type MembershipEventType
	Node DemanderID
}

// ClusterMembership is the membership/event-distribution collaborator.
type ClusterMembership interface {
	Subscribe(handler func(MembershipEvent)) (unsubscribe func())
}
