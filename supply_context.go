package ignite

import "sync"

// cursorKind tags which of the three entry sources a supply context is
// resuming from. It doubles as the scan phase (none maps to the phase-0
// prologue, inMemory/overflow/promotion to phases 1-3) so there is exactly
// one piece of state to keep consistent, not two.
type cursorKind uint8

const (
	cursorNone cursorKind = iota
	cursorInMemory
	cursorOverflow
	cursorPromotion
)

// phase renders the cursor kind as a plain 0-3 integer, for invariant
// checks and tests.
func (k cursorKind) phase() int { return int(k) }

// SupplyContext is the sole resume state for one in-flight demand, keyed by
// (DemanderID, WorkerSlot). It is mutated only by the demand handler for its
// own key, and destroyed either by the handler (partition set exhausted) or
// by the topology event subscriber (demander lost, rebalance stopped, or
// topology advanced).
type SupplyContext struct {
	demander   DemanderID
	workerSlot int

	topologyVersion TopologyVersion

	// remainingPartitions holds partitions not yet started, in demand
	// order. currentPartition is the partition being scanned; when
	// hasCurrentPartition is set, nextPartition resumes it first, and it
	// is not present in remainingPartitions.
	remainingPartitions []int32
	currentPartition    int32
	hasCurrentPartition bool

	cursor     cursorKind
	memIter    EntryIterator
	memPending *EntryInfo
	ofIter     OverflowIterator
	ofPending  *OverflowEntry
	promoBuf   []PromotionEvent
	promoIdx   int

	listener *promotionListener
	overflow OverflowStore // the store listener was registered on, needed to remove it again
	reserved Partition     // the partition reservation this context is holding, if any

	deployAttached bool // mirrors the builder's first-wins latch across suspensions
}

// nextPartition pops the next partition to start, preferring a resumed
// currentPartition over advancing the remaining list. It returns false when
// both are exhausted.
func (c *SupplyContext) nextPartition() (int32, bool) {
	if c.hasCurrentPartition {
		c.hasCurrentPartition = false
		return c.currentPartition, true
	}
	if len(c.remainingPartitions) == 0 {
		return 0, false
	}
	p := c.remainingPartitions[0]
	c.remainingPartitions = c.remainingPartitions[1:]
	return p, true
}

// closeScanState tears down whatever phase 1/2/3 state is attached to the
// partition currently being abandoned (completed or missed), without
// touching the partition reservation itself — the caller releases that,
// since it already holds the Partition handle. Safe to call when nothing is
// open.
func (c *SupplyContext) closeScanState() {
	if c.listener != nil {
		c.listener.deregister()
		if c.overflow != nil {
			c.overflow.RemoveOverflowListener(c.currentPartition, c.listener)
			c.overflow.RemovePromotionListener(c.currentPartition, c.listener)
		}
		c.listener = nil
		c.overflow = nil
	}
	if c.memIter != nil {
		if err := c.memIter.Close(); err != nil {
			Logger.Errorw("closing in-memory iterator", "partition", c.currentPartition, "error", err)
		}
		c.memIter = nil
	}
	if c.ofIter != nil {
		if err := c.ofIter.Close(); err != nil {
			Logger.Errorw("closing overflow iterator", "partition", c.currentPartition, "error", err)
		}
		c.ofIter = nil
	}
	c.memPending = nil
	c.ofPending = nil
	c.promoBuf = nil
	c.promoIdx = 0
}

// evict releases every resource the context owns. It is safe to call more
// than once: closeScanState clears each iterator and the listener as it
// tears them down, and the reservation is cleared once released, so a
// second call finds nothing left to close or release.
func (c *SupplyContext) evict() {
	c.closeScanState()
	if c.reserved != nil {
		c.reserved.Release()
		c.reserved = nil
	}
}

// SupplyContextStore is the concurrent mapping (DemanderID, WorkerSlot) ->
// SupplyContext. It does not own iterators or listeners — the contained
// context does — but removal always runs the context's evict hook.
type SupplyContextStore struct {
	mu       sync.Mutex
	contexts map[contextKey]*SupplyContext
}

// NewSupplyContextStore returns an empty store.
func NewSupplyContextStore() *SupplyContextStore {
	return &SupplyContextStore{contexts: make(map[contextKey]*SupplyContext)}
}

// Get returns the context stored for (demander, slot), if any.
func (s *SupplyContextStore) Get(demander DemanderID, slot int) (*SupplyContext, bool) {
	key := contextKey{demander, slot}
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[key]
	return ctx, ok
}

// Put stores ctx for its own (demander, slot) key, replacing anything
// already there. The demand handler is the only writer of its own key, so
// this never races with another Put for the same key.
func (s *SupplyContextStore) Put(ctx *SupplyContext) {
	key := contextKey{ctx.demander, ctx.workerSlot}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[key] = ctx
}

// PutIfAbsent stores ctx only if no context is currently stored for its key,
// returning the context actually present (either the one just stored, or
// the pre-existing one).
func (s *SupplyContextStore) PutIfAbsent(ctx *SupplyContext) *SupplyContext {
	key := contextKey{ctx.demander, ctx.workerSlot}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.contexts[key]; ok {
		return existing
	}
	s.contexts[key] = ctx
	return ctx
}

// RemoveIf deletes and evicts the context at (demander, slot) if and only if
// the one currently stored is identical (by pointer) to expected; this
// guards eviction against racing with a newer context for the same key. It
// returns whether an eviction happened. Calling RemoveIf again for an
// already-removed key is a no-op, not an error.
func (s *SupplyContextStore) RemoveIf(demander DemanderID, slot int, expected *SupplyContext) bool {
	key := contextKey{demander, slot}
	s.mu.Lock()
	current, ok := s.contexts[key]
	if !ok || current != expected {
		s.mu.Unlock()
		return false
	}
	delete(s.contexts, key)
	s.mu.Unlock()

	current.evict()
	return true
}

// Remove deletes and evicts whatever context is stored at (demander, slot),
// regardless of identity. Used by the topology event subscriber, which has
// no particular context instance to compare against.
func (s *SupplyContextStore) Remove(demander DemanderID, slot int) bool {
	key := contextKey{demander, slot}
	s.mu.Lock()
	current, ok := s.contexts[key]
	if ok {
		delete(s.contexts, key)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	current.evict()
	return true
}
