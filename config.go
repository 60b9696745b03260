package ignite

import (
	"fmt"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// PreloadPredicate filters entries out of the in-memory, overflow and
// promotion-drain scans (phases 1-3) before they reach the builder. A nil
// predicate admits everything.
type PreloadPredicate func(partition int32, info EntryInfo) bool

// Config bundles the supply engine's tunables. It is constructed with
// NewConfig, mutated by the caller, then validated once with Validate
// before use.
type Config struct {
	Rebalance struct {
		// BatchSize is the byte ceiling a supplyMessageBuilder enforces
		// before each entry is added: when the next entry would bring
		// the batch to or past it, the batch is transmitted first and
		// the entry goes into the next one. An entry is never added on
		// top of a batch when that would push it past the limit; only
		// an entry that alone reaches BatchSize yields a batch at or
		// over it.
		BatchSize int

		// BatchesCount bounds how many batches a fresh demand may
		// stream in one turn before a context is stored and the
		// handler yields.
		BatchesCount int

		// Throttle is slept between successfully sent batches within
		// a turn. It is never applied after the final batch of a
		// turn.
		Throttle time.Duration

		// ThreadPoolSize is the number of demander-side worker slots,
		// i.e. the upper bound on WorkerSlot in a DemandMessage. The
		// topology event subscriber sweeps exactly this many slots
		// per departed node.
		ThreadPoolSize int
	}

	// Preload, if set, filters entries in phases 1-3.
	Preload PreloadPredicate

	// MetricRegistry is threaded into the supply engine's counters. A
	// nil registry gets a private one.
	MetricRegistry metrics.Registry
}

// NewConfig returns a Config with conservative defaults, meant to be tuned
// by the caller before Validate.
func NewConfig() *Config {
	c := &Config{}
	c.Rebalance.BatchSize = 512 * 1024
	c.Rebalance.BatchesCount = 1
	c.Rebalance.Throttle = 0
	c.Rebalance.ThreadPoolSize = 1
	c.MetricRegistry = metrics.NewRegistry()
	return c
}

// ConfigurationError reports which field of Config failed validation.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("ignite: invalid configuration (%s)", string(e))
}

// Validate bounds-checks the numeric knobs. It must be called once, after
// construction and any overrides, before the Config is used.
func (c *Config) Validate() error {
	switch {
	case c.Rebalance.BatchSize <= 0:
		return ConfigurationError("Rebalance.BatchSize must be > 0")
	case c.Rebalance.BatchesCount <= 0:
		return ConfigurationError("Rebalance.BatchesCount must be > 0")
	case c.Rebalance.Throttle < 0:
		return ConfigurationError("Rebalance.Throttle must be >= 0")
	case c.Rebalance.ThreadPoolSize <= 0:
		return ConfigurationError("Rebalance.ThreadPoolSize must be > 0")
	}
	if c.MetricRegistry == nil {
		c.MetricRegistry = metrics.NewRegistry()
	}
	return nil
}
