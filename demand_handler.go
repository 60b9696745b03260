package ignite

import "context"

// HandleDemand is the entry point for a demand message: a thin driver that
// checks preconditions, looks up or invalidates any existing context, and
// delegates to the supply state machine. Internal failures are logged and
// swallowed rather than propagated, since this runs on a background
// goroutine the caller does not block on.
func (e *Engine) HandleDemand(ctx context.Context, d DemandMessage) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorw("panic handling demand",
				"demander", d.DemanderID, "workerSlot", d.WorkerSlot, "recovered", r)
		}
	}()

	current := e.Affinity.CurrentTopologyVersion()
	if d.TopologyVersion != current {
		// Stale topology: dropped silently, no outbound messages, and
		// any context stored for this key is left untouched.
		return
	}

	existing, found := e.Contexts.Get(d.DemanderID, d.WorkerSlot)
	if found && existing.topologyVersion != d.TopologyVersion {
		e.Contexts.RemoveIf(d.DemanderID, d.WorkerSlot, existing)
		existing = nil
		found = false
	}

	if !found && len(d.Partitions) == 0 {
		return
	}

	var resumed *SupplyContext
	if found {
		resumed = existing
		// The context we resume from is no longer the one stored;
		// runTurn will re-Put it (or not) once the turn concludes. We
		// remove it from the store now so a second demand racing in
		// on the same key (which should not normally happen, but costs
		// nothing to guard) can't observe a context actively being
		// mutated. It is taken out without evicting it: the turn resumes
		// from its open iterators, listener and reservation.
		e.Contexts.mu.Lock()
		delete(e.Contexts.contexts, contextKey{d.DemanderID, d.WorkerSlot})
		e.Contexts.mu.Unlock()
	}

	e.runTurn(ctx, d, resumed)
}
