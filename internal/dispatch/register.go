package dispatch

// registerHandlers wires every themed group of handlers into d.handlers
// (spec.md §4.7 table).
func (d *Dispatcher) registerHandlers() {
	d.registerLifecycleHandlers()
	d.registerDiscoveryHandlers()
	d.registerSessionHandlers()
	d.registerTableHandlers()
	d.registerCatalogHandlers()
	d.registerScriptHandlers()
	d.registerPQHandlers()
}
