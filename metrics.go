package ignite

import metrics "github.com/rcrowley/go-metrics"

// supplyMetrics tracks the supply engine's own counters: how many entries
// left through each phase, how big batches end up, and how often partitions
// are missed.
type supplyMetrics struct {
	inMemoryEntries  metrics.Counter
	overflowEntries  metrics.Counter
	promotedEntries  metrics.Counter
	batchSizeHist    metrics.Histogram
	missedMeter      metrics.Meter
	lastMeter        metrics.Meter
	suspendedCounter metrics.Counter
}

func newSupplyMetrics(r metrics.Registry) *supplyMetrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	m := &supplyMetrics{
		inMemoryEntries:  metrics.GetOrRegisterCounter("ignite.supply.entries.in-memory", r),
		overflowEntries:  metrics.GetOrRegisterCounter("ignite.supply.entries.overflow", r),
		promotedEntries:  metrics.GetOrRegisterCounter("ignite.supply.entries.promotion", r),
		batchSizeHist:    metrics.GetOrRegisterHistogram("ignite.supply.batch-size", r, metrics.NewUniformSample(1028)),
		missedMeter:      metrics.GetOrRegisterMeter("ignite.supply.missed", r),
		lastMeter:        metrics.GetOrRegisterMeter("ignite.supply.last", r),
		suspendedCounter: metrics.GetOrRegisterCounter("ignite.supply.suspended-turns", r),
	}
	return m
}

func (m *supplyMetrics) recordEntry(source entrySource) {
	switch source {
	case sourceInMemory:
		m.inMemoryEntries.Inc(1)
	case sourceOverflow:
		m.overflowEntries.Inc(1)
	case sourcePromotion:
		m.promotedEntries.Inc(1)
	}
}
