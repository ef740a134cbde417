package methods

// BuildDefaultRegistry registers the three built-in methods in priority
// order: the reactive CPA spike responder runs first so it can react to
// acute problems before the proactive rebalancers consider a healthy spend
// pattern.
func BuildDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewCPASpike())
	r.Register(NewBudgetReallocation())
	r.Register(NewCreativeFatigue())
	return r
}
