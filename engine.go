package ignite

// Engine wires the supply pipeline together: it holds the collaborators,
// the context store, and is the receiver for the demand handler and the
// supply state machine.
type Engine struct {
	Affinity   AffinityOracle
	Partitions PartitionStore
	Overflow   OverflowStore // may be nil if overflow is disabled entirely
	Bus        MessageBus
	Deployment DeploymentRegistry

	Contexts *SupplyContextStore

	cfg     *Config
	metrics *supplyMetrics
}

// NewEngine validates cfg and assembles an Engine ready to handle demands.
func NewEngine(cfg *Config, affinity AffinityOracle, partitions PartitionStore, overflow OverflowStore, bus MessageBus, deployment DeploymentRegistry) (*Engine, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		Affinity:   affinity,
		Partitions: partitions,
		Overflow:   overflow,
		Bus:        bus,
		Deployment: deployment,
		Contexts:   NewSupplyContextStore(),
		cfg:        cfg,
		metrics:    newSupplyMetrics(cfg.MetricRegistry),
	}, nil
}
