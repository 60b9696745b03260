package ignite

import (
	"sync"

	"github.com/eapache/queue"
)

// promotionListener is registered on the overflow and off-heap listener
// channels of a partition from the phase-0 prologue until the start of
// phase 3, so it stays registered through phases 1 and 2. Whenever the
// underlying store promotes an entry (moves it from overflow to in-memory)
// or evicts/overwrites it, the listener captures the resulting EntryInfo
// into an append-only buffer, so that an entry racing between the phase-1
// and phase-2 snapshots is still shipped at least once.
//
// The buffer is backed by eapache/queue's ring buffer rather than a plain
// slice, since a promotion-heavy partition can make this buffer grow
// arbitrarily large before phase 3 ever drains it.
type promotionListener struct {
	mu           sync.Mutex
	buf          *queue.Queue
	deregistered bool
}

func newPromotionListener() *promotionListener {
	return &promotionListener{buf: queue.New()}
}

// OnPromotion implements OverflowListener. It is invoked concurrently with
// phases 1 and 2 by the overflow store, potentially from a different
// goroutine, hence the lock.
func (p *promotionListener) OnPromotion(evt PromotionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deregistered {
		// A listener can receive a straggling event after
		// deregistration races with a store-side dispatch; phase 3
		// has already taken its snapshot by then, so there is nowhere
		// left to deliver it.
		return
	}
	p.buf.Add(evt)
}

// entries returns the buffered sequence captured so far. It is read exactly
// once, in phase 3, strictly after deregister.
func (p *promotionListener) entries() []PromotionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PromotionEvent, p.buf.Length())
	for i := range out {
		out[i] = p.buf.Get(i).(PromotionEvent)
	}
	return out
}

// deregister marks the listener inert. Safe to call more than once — the
// listener is deregistered from two code paths (the phase-2→3 transition,
// and closeScanState when runTurn finishes or abandons a partition or the
// context is evicted) and neither needs to know whether the other already
// ran.
func (p *promotionListener) deregister() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deregistered = true
}
