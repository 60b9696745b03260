// Package ignite implements the partition supply side of cluster rebalance:
// streaming the contents of locally owned partitions to a demanding peer in
// bounded batches, resuming across repeated demands, and tearing down
// in-flight state cleanly when ownership or membership changes.
package ignite

import "time"

// TopologyVersion is a monotonically increasing, totally ordered tag stamped
// on every demand and every reply. Two values are equal iff they denote the
// same cluster view.
type TopologyVersion struct {
	Major int64
	Minor int32
}

// Less reports whether v denotes an older cluster view than other.
func (v TopologyVersion) Less(other TopologyVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// PartitionState is the subset of partition lifecycle states relevant to
// supply: either the local replica is the authoritative copy (Owning), or it
// is not a valid source for the partition.
type PartitionState uint8

const (
	// PartitionOther covers every non-owning state: moving, renting,
	// evicted, or simply absent.
	PartitionOther PartitionState = iota
	// PartitionOwning means the local node holds the authoritative copy.
	PartitionOwning
)

// EntryInfo is the transferable unit shipped to a demander. Version
// establishes a per-key total order the demander uses for conflict
// resolution. Entries with IsNew set are never shipped — they have never
// been committed.
type EntryInfo struct {
	KeyBytes         []byte
	ValueBytes       []byte
	Version          int64
	TTLMillis        int64
	ExpireTimeMillis int64
	IsNew            bool
}

// OverflowEntry is sourced from the overflow store. The class-loader ids are
// metadata used to attach deployment information to a batch exactly once.
type OverflowEntry struct {
	KeyBytes           []byte
	ValueBytes         []byte
	Version            int64
	TTL                time.Duration
	ExpireTime         time.Time
	KeyClassLoaderID   string
	ValueClassLoaderID string
}

// HasClassLoader reports whether the entry carries class-loader metadata
// that could resolve to deployment info.
func (e OverflowEntry) HasClassLoader() bool {
	return e.KeyClassLoaderID != "" || e.ValueClassLoaderID != ""
}

// DeploymentInfo is attached to a supply message at most once, the first
// time an overflow entry resolves a class loader during phase 2.
type DeploymentInfo struct {
	LoaderID     string
	ClassName    string
	UserVersion  string
	NodeOriginID string
}

// DemandMessage requests the contents of Partitions from the local node.
// WorkerSlot identifies a demander-side worker in [0, rebalanceThreadPoolSize);
// one (DemanderID, WorkerSlot) pair has at most one outstanding demand.
type DemandMessage struct {
	DemanderID      DemanderID
	WorkerSlot      int
	UpdateSequence  int64
	TopologyVersion TopologyVersion
	Partitions      []int32
	ReplyTopic      string
	Timeout         time.Duration
}

// SupplyMessage is the outbound reply. Missed[p] means "I am no longer a
// source for p"; Last[p] means "this batch is the terminal batch for p".
// Missed and Last never both hold for the same partition in the same
// stream: a partition either completes or is missed.
type SupplyMessage struct {
	UpdateSequence  int64
	TopologyVersion TopologyVersion
	Entries         map[int32][]EntryInfo
	Missed          map[int32]bool
	Last            map[int32]bool
	DeploymentInfo  *DeploymentInfo
}
