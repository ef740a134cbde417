package platform

// Factory builds platform adapters. DryRun forces every platform onto the
// DryRunAdapter regardless of Name — used in tests and whenever
// OptimizationConfig.UseDryRunExecution is set.
type Factory struct {
	DryRun bool
	Meta   *MetaAdapter
}

// NewFactory builds a Factory; meta may be nil when only dry-run execution
// is configured.
func NewFactory(dryRun bool, meta *MetaAdapter) *Factory {
	return &Factory{DryRun: dryRun, Meta: meta}
}

// Adapter returns the adapter for name. When dry-run mode is on, every
// platform is routed to the in-memory simulator.
func (f *Factory) Adapter(name Name) Adapter {
	if f.DryRun {
		return NewDryRunAdapter()
	}

	switch name {
	case Meta:
		if f.Meta != nil {
			return f.Meta
		}
	}
	return NewDryRunAdapter()
}
