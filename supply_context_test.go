package ignite

import "testing"

func TestSupplyContextNextPartitionResumesCurrentFirst(t *testing.T) {
	c := &SupplyContext{
		remainingPartitions: []int32{2, 3},
		currentPartition:    1,
		hasCurrentPartition: true,
	}

	p, ok := c.nextPartition()
	if !ok || p != 1 {
		t.Fatalf("expected resumed partition 1 first, got %d, %v", p, ok)
	}
	if c.hasCurrentPartition {
		t.Fatalf("hasCurrentPartition must be cleared once consumed")
	}

	p, ok = c.nextPartition()
	if !ok || p != 2 {
		t.Fatalf("expected partition 2 next, got %d, %v", p, ok)
	}
	p, ok = c.nextPartition()
	if !ok || p != 3 {
		t.Fatalf("expected partition 3 next, got %d, %v", p, ok)
	}
	if _, ok := c.nextPartition(); ok {
		t.Fatalf("expected exhaustion once both lists are drained")
	}
}

func TestSupplyContextCloseScanStateIsIdempotent(t *testing.T) {
	mem := &fakeEntryIterator{}
	of := &fakeOverflowIterator{}
	l := newPromotionListener()
	c := &SupplyContext{memIter: mem, ofIter: of, listener: l, promoBuf: []PromotionEvent{{}}}

	c.closeScanState()
	if mem.closed != 1 || of.closed != 1 {
		t.Fatalf("expected both iterators closed exactly once, got mem=%d of=%d", mem.closed, of.closed)
	}
	if c.memIter != nil || c.ofIter != nil || c.listener != nil || c.promoBuf != nil {
		t.Fatalf("closeScanState must clear all scan state, got %+v", c)
	}

	c.closeScanState() // must not panic or double-close
	if mem.closed != 1 || of.closed != 1 {
		t.Fatalf("a second closeScanState call must be a no-op, got mem=%d of=%d", mem.closed, of.closed)
	}
}

func TestSupplyContextEvictIsIdempotent(t *testing.T) {
	part := &fakePartition{id: 5, state: PartitionOwning, reserveOK: true}
	part.Reserve()
	c := &SupplyContext{reserved: part}

	c.evict()
	if part.released != 1 {
		t.Fatalf("expected Release called once, got %d", part.released)
	}
	if c.reserved != nil {
		t.Fatalf("evict must clear the reservation")
	}

	c.evict() // must not re-release
	if part.released != 1 {
		t.Fatalf("a second evict call must not re-release, got %d", part.released)
	}
}

func TestSupplyContextStorePutGetRemoveIf(t *testing.T) {
	s := NewSupplyContextStore()
	demander := NewDemanderID()
	part := &fakePartition{id: 1, state: PartitionOwning, reserveOK: true}
	part.Reserve()
	c := &SupplyContext{demander: demander, workerSlot: 0, reserved: part}

	s.Put(c)
	got, ok := s.Get(demander, 0)
	if !ok || got != c {
		t.Fatalf("expected to get back the same context pointer")
	}

	other := &SupplyContext{demander: demander, workerSlot: 0}
	if removed := s.RemoveIf(demander, 0, other); removed {
		t.Fatalf("RemoveIf must not remove on identity mismatch")
	}
	if removed := s.RemoveIf(demander, 0, c); !removed {
		t.Fatalf("RemoveIf must remove on identity match")
	}
	if part.released != 1 {
		t.Fatalf("RemoveIf must evict the removed context, got released=%d", part.released)
	}
	if removed := s.RemoveIf(demander, 0, c); removed {
		t.Fatalf("RemoveIf on an already-removed key must be a no-op")
	}
}

func TestSupplyContextStorePutIfAbsent(t *testing.T) {
	s := NewSupplyContextStore()
	demander := NewDemanderID()
	c1 := &SupplyContext{demander: demander, workerSlot: 2}
	c2 := &SupplyContext{demander: demander, workerSlot: 2}

	got := s.PutIfAbsent(c1)
	if got != c1 {
		t.Fatalf("expected c1 to be stored when nothing else was present")
	}
	got = s.PutIfAbsent(c2)
	if got != c1 {
		t.Fatalf("expected PutIfAbsent to return the pre-existing context, not overwrite it")
	}
}

func TestSupplyContextStoreRemove(t *testing.T) {
	s := NewSupplyContextStore()
	demander := NewDemanderID()
	part := &fakePartition{id: 9, state: PartitionOwning, reserveOK: true}
	part.Reserve()
	c := &SupplyContext{demander: demander, workerSlot: 1, reserved: part}
	s.Put(c)

	if removed := s.Remove(demander, 1); !removed {
		t.Fatalf("expected Remove to find and evict the stored context")
	}
	if part.released != 1 {
		t.Fatalf("Remove must evict (release the reservation), got released=%d", part.released)
	}
	if removed := s.Remove(demander, 1); removed {
		t.Fatalf("Remove on an empty key must report false")
	}
}
