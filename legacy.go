package ignite

import "context"

// SupplyMessageV1 is the pre-versioned wire shape: no missed/last maps per
// partition, just a single terminal flag for the whole reply stream. This
// exists only to interoperate with demanders that predate the resumable
// protocol — it is not used by HandleDemand/runTurn at all.
type SupplyMessageV1 struct {
	UpdateSequence  int64
	TopologyVersion TopologyVersion
	Entries         map[int32][]EntryInfo
	Done            bool
}

// LegacyMessageBus is the v1 counterpart of MessageBus: same ordering and
// gone-recipient contract, different wire shape.
type LegacyMessageBus interface {
	SendOrderedV1(ctx context.Context, node DemanderID, topic string, msg SupplyMessageV1, policy SendPolicy) error
}

// LegacyDemandHandler streams a partition set to a pre-versioned demander
// without resumability: it never suspends, never stores a SupplyContext,
// and holds each partition's reservation only for the single call. It
// reuses the same collaborators as the resumable engine. Besides the wire
// shape and the absence of a turn budget, it checks ownership once per
// partition (skipping a non-owned one) rather than per entry, has no
// promotion-drain phase, attaches no deployment info, and does not apply a
// preload predicate.
type LegacyDemandHandler struct {
	Affinity   AffinityOracle
	Partitions PartitionStore
	Overflow   OverflowStore
	Bus        LegacyMessageBus
	BatchSize  int
}

// Handle streams every partition in d to completion in one call, ignoring
// d.WorkerSlot (the legacy protocol has no resumable worker-slot concept)
// and without ever touching a SupplyContextStore.
func (h *LegacyDemandHandler) Handle(ctx context.Context, d DemandMessage) error {
	entries := make(map[int32][]EntryInfo)
	size := 0

	flush := func(done bool) error {
		msg := SupplyMessageV1{
			UpdateSequence:  d.UpdateSequence,
			TopologyVersion: d.TopologyVersion,
			Entries:         entries,
			Done:            done,
		}
		err := h.Bus.SendOrderedV1(ctx, d.DemanderID, d.ReplyTopic, msg, OrderedReliable)
		entries = make(map[int32][]EntryInfo)
		size = 0
		return err
	}

	for _, partitionID := range d.Partitions {
		if !h.Affinity.Belongs(d.DemanderID, partitionID, d.TopologyVersion) {
			continue
		}
		part := h.Partitions.LocalPartition(partitionID, d.TopologyVersion)
		if part == nil || part.State() != PartitionOwning || !part.Reserve() {
			continue
		}

		err := h.drainPartition(partitionID, part, &entries, &size, flush)
		part.Release()
		if err != nil {
			return err
		}
	}

	return flush(true)
}

func (h *LegacyDemandHandler) drainPartition(partitionID int32, part Partition, entries *map[int32][]EntryInfo, size *int, flush func(bool) error) error {
	it := part.Entries()
	defer it.Close()

	for it.Next() {
		info := it.Entry()
		if info.IsNew {
			continue
		}
		if *size+entrySize(info) >= h.BatchSize {
			if err := flush(false); err != nil {
				return err
			}
		}
		(*entries)[partitionID] = append((*entries)[partitionID], info)
		*size += entrySize(info)
	}
	if err := it.Err(); err != nil {
		return err
	}

	if h.Overflow == nil || !h.Overflow.Enabled() {
		return nil
	}
	ofIt := h.Overflow.Iterator(partitionID)
	if ofIt == nil {
		return nil
	}
	defer ofIt.Close()

	for ofIt.Next() {
		info := overflowToEntryInfo(ofIt.Entry())
		if *size+entrySize(info) >= h.BatchSize {
			if err := flush(false); err != nil {
				return err
			}
		}
		(*entries)[partitionID] = append((*entries)[partitionID], info)
		*size += entrySize(info)
	}
	return ofIt.Err()
}
