package dispatch

import "context"

func (d *Dispatcher) registerLifecycleHandlers() {
	// reload acquires the registry replacement lock path, invokes
	// C1.reload then C6.replace_from_config, and returns success even if
	// subsequent lazy builds later fail (spec.md §4.7).
	d.register("reload", func(ctx context.Context, args map[string]any) Envelope {
		if err := d.Reload(ctx); err != nil {
			return Fail(err)
		}
		return Ok(nil)
	})
}
