package ignite

import (
	"context"
	"testing"
)

func TestLegacyDemandHandlerStreamsOwnedPartitionsToCompletion(t *testing.T) {
	affinity := newFakeAffinity(TopologyVersion{Major: 1})
	affinity.missed[2] = true // not owned; must be skipped entirely

	partitions := newFakePartitionStore()
	partitions.add(&fakePartition{id: 1, state: PartitionOwning, reserveOK: true, entries: []EntryInfo{
		{KeyBytes: []byte("k1"), ValueBytes: []byte("v1")},
	}})
	part2 := &fakePartition{id: 2, state: PartitionOwning, reserveOK: true, entries: []EntryInfo{
		{KeyBytes: []byte("k2"), ValueBytes: []byte("v2")},
	}}
	partitions.add(part2)

	bus := &fakeLegacyMessageBus{}
	h := &LegacyDemandHandler{
		Affinity:   affinity,
		Partitions: partitions,
		Bus:        bus,
		BatchSize:  1 << 20,
	}

	d := DemandMessage{
		DemanderID:      NewDemanderID(),
		TopologyVersion: TopologyVersion{Major: 1},
		Partitions:      []int32{1, 2},
		ReplyTopic:      "legacy-replies",
	}
	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs := bus.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected a single terminal message, got %d", len(msgs))
	}
	final := msgs[0]
	if !final.Done {
		t.Fatalf("expected the final message marked Done")
	}
	if len(final.Entries[1]) != 1 {
		t.Fatalf("expected partition 1's entry streamed, got %+v", final.Entries)
	}
	if _, present := final.Entries[2]; present {
		t.Fatalf("expected the non-owned partition 2 skipped entirely, got %+v", final.Entries)
	}
	if part2.reserved != 0 {
		t.Fatalf("a non-owned partition must never be reserved, got %d", part2.reserved)
	}
}

func TestLegacyDemandHandlerFlushesWhenBatchSizeIsExceeded(t *testing.T) {
	affinity := newFakeAffinity(TopologyVersion{Major: 1})
	key := make([]byte, 10)
	val := make([]byte, 10)
	e1 := EntryInfo{KeyBytes: key, ValueBytes: val}
	e2 := EntryInfo{KeyBytes: append([]byte(nil), key...), ValueBytes: append([]byte(nil), val...)}

	partitions := newFakePartitionStore()
	partitions.add(&fakePartition{id: 1, state: PartitionOwning, reserveOK: true, entries: []EntryInfo{e1, e2}})

	bus := &fakeLegacyMessageBus{}
	h := &LegacyDemandHandler{
		Affinity:   affinity,
		Partitions: partitions,
		Bus:        bus,
		BatchSize:  entrySize(e1) + 1,
	}

	d := DemandMessage{
		DemanderID:      NewDemanderID(),
		TopologyVersion: TopologyVersion{Major: 1},
		Partitions:      []int32{1},
		ReplyTopic:      "legacy-replies",
	}
	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs := bus.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected an intermediate flush plus a terminal message, got %d", len(msgs))
	}
	if msgs[0].Done {
		t.Fatalf("expected the first flush not marked Done")
	}
	if !msgs[1].Done {
		t.Fatalf("expected the final flush marked Done")
	}
	total := len(msgs[0].Entries[1]) + len(msgs[1].Entries[1])
	if total != 2 {
		t.Fatalf("expected both entries delivered exactly once across the two flushes, got %d", total)
	}
}

func TestLegacyDemandHandlerDrainsOverflowAfterMemory(t *testing.T) {
	affinity := newFakeAffinity(TopologyVersion{Major: 1})
	partitions := newFakePartitionStore()
	partitions.add(&fakePartition{id: 1, state: PartitionOwning, reserveOK: true, entries: []EntryInfo{
		{KeyBytes: []byte("mem")},
	}})
	overflow := newFakeOverflowStore()
	overflow.entries[1] = []OverflowEntry{{KeyBytes: []byte("overflow")}}

	bus := &fakeLegacyMessageBus{}
	h := &LegacyDemandHandler{
		Affinity:   affinity,
		Partitions: partitions,
		Overflow:   overflow,
		Bus:        bus,
		BatchSize:  1 << 20,
	}

	d := DemandMessage{
		DemanderID:      NewDemanderID(),
		TopologyVersion: TopologyVersion{Major: 1},
		Partitions:      []int32{1},
		ReplyTopic:      "legacy-replies",
	}
	if err := h.Handle(context.Background(), d); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs := bus.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one terminal message, got %d", len(msgs))
	}
	entries := msgs[0].Entries[1]
	if len(entries) != 2 || string(entries[0].KeyBytes) != "mem" || string(entries[1].KeyBytes) != "overflow" {
		t.Fatalf("expected memory entries before overflow entries, got %+v", entries)
	}
}
