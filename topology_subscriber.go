package ignite

import "golang.org/x/sync/errgroup"

// TopologyEventSubscriber reacts to NODE_LEFT, NODE_FAILED, or
// REBALANCE_STOPPED events: it evicts and closes every supply context
// belonging to the affected node, across all of its worker slots.
type TopologyEventSubscriber struct {
	contexts       *SupplyContextStore
	threadPoolSize int
	unsubscribe    func()
}

// SubscribeTopologyEvents registers the subscriber on membership and
// returns it; call Close to unsubscribe.
func SubscribeTopologyEvents(membership ClusterMembership, contexts *SupplyContextStore, threadPoolSize int) *TopologyEventSubscriber {
	s := &TopologyEventSubscriber{
		contexts:       contexts,
		threadPoolSize: threadPoolSize,
	}
	s.unsubscribe = membership.Subscribe(s.onEvent)
	return s
}

// Close unsubscribes from membership events. It does not evict any
// contexts; departed-node events that already fired have already done so.
func (s *TopologyEventSubscriber) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *TopologyEventSubscriber) onEvent(evt MembershipEvent) {
	switch evt.Type {
	case NodeLeft, NodeFailed, RebalanceStopped:
	default:
		return
	}
	s.evictNode(evt.Node)
}

// evictNode removes and evicts the context at every worker slot for node,
// fanning the eviction out the same way a fixed worker pool would process
// them concurrently. Eviction errors are logged inside SupplyContext.evict
// and never stop the sweep — a slot with no context is simply a no-op.
func (s *TopologyEventSubscriber) evictNode(node DemanderID) {
	var g errgroup.Group
	for slot := 0; slot < s.threadPoolSize; slot++ {
		slot := slot
		g.Go(func() error {
			s.contexts.Remove(node, slot)
			return nil
		})
	}
	_ = g.Wait() // the worker functions never return an error; Wait only joins them
}
