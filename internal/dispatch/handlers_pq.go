package dispatch

import (
	"context"

	"github.com/enginemcp/broker/internal/enterprise"
	"github.com/enginemcp/broker/internal/pq"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/model"
)

func (d *Dispatcher) registerPQHandlers() {
	d.register("pq_list", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, ok := argString(args, "system_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "system_name is required"))
		}
		sub, err := d.pqSubsystem(ctx, systemKey)
		if err != nil {
			return Fail(err)
		}
		snap := sub.Snapshot()
		list := make([]map[string]any, 0, len(snap.ByName))
		for _, desc := range snap.ByName {
			list = append(list, pqDescriptorToMap(desc))
		}
		return Ok(map[string]any{"pqs": list})
	})

	d.register("pq_details", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, ok := argString(args, "system_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "system_name is required"))
		}
		name, ok := argString(args, "name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "name is required"))
		}
		sub, err := d.pqSubsystem(ctx, systemKey)
		if err != nil {
			return Fail(err)
		}
		desc, err := sub.ByName(ctx, name)
		if err != nil {
			return Fail(err)
		}
		return Ok(pqDescriptorToMap(desc))
	})

	d.register("pq_name_to_id", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, ok := argString(args, "system_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "system_name is required"))
		}
		name, ok := argString(args, "name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "name is required"))
		}
		sub, err := d.pqSubsystem(ctx, systemKey)
		if err != nil {
			return Fail(err)
		}
		desc, err := sub.ByName(ctx, name)
		if err != nil {
			return Fail(err)
		}
		return Ok(map[string]any{"serial": desc.Serial})
	})

	d.register("pq_create", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, ok := argString(args, "system_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "system_name is required"))
		}
		name, ok := argString(args, "session_name")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_name is required"))
		}
		sys, err := d.reg.EnterpriseSystem(systemKey)
		if err != nil {
			return Fail(err)
		}
		if sys.Session(name) != nil {
			return Fail(brokererr.New(brokererr.InvalidArgument, "PQ %q already exists on system %q", name, systemKey))
		}
		controller, err := sys.Controller(ctx)
		if err != nil {
			return Fail(err)
		}
		sub, err := d.pqSubsystem(ctx, systemKey)
		if err != nil {
			return Fail(err)
		}

		sm := enterprise.NewSessionManager(systemKey, name)
		sys.AdoptSession(name, sm)
		params := buildCreateParams(args)
		if err := sm.Create(ctx, controller, sub, params, sys.Config().SessionCreation); err != nil {
			sys.DropSession(name)
			return Fail(err)
		}

		id := model.SessionID{Kind: model.KindEnterprise, Source: systemKey, Name: name}
		return Ok(map[string]any{"session_id": id.String(), "serial": sm.Serial()})
	})

	d.register("pq_modify", func(ctx context.Context, args map[string]any) Envelope {
		// PQ configuration is immutable once created in this controller
		// model; "modify" is implemented as stop, delete, recreate by the
		// caller. Advertise that explicitly rather than silently no-op.
		return Fail(brokererr.New(brokererr.Unsupported, "pq_modify is unsupported; delete and recreate the PQ instead"))
	})

	d.register("pq_start", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, name, err := requireSystemAndName(args)
		if err != nil {
			return Fail(err)
		}
		sys, sub, desc, err := d.lookupPQ(ctx, systemKey, name)
		if err != nil {
			return Fail(err)
		}
		controller, err := sys.Controller(ctx)
		if err != nil {
			return Fail(err)
		}
		if err := controller.StartQuery(ctx, desc.Serial); err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "start_query for PQ %q", name))
		}
		timeout := timeoutOrDefault(args, enterprise.StartWaitTimeout)
		final, err := sub.WaitFor(ctx, desc.Serial, timeout, func(s model.PQState) bool { return s == model.PQRunning })
		if err != nil {
			return Fail(err)
		}
		if final != model.PQRunning {
			return Fail(brokererr.New(brokererr.Timeout, "PQ %q settled in state %s, not RUNNING", name, final))
		}
		return Ok(map[string]any{"state": string(final)})
	})

	d.register("pq_stop", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, name, err := requireSystemAndName(args)
		if err != nil {
			return Fail(err)
		}
		sys, sub, desc, err := d.lookupPQ(ctx, systemKey, name)
		if err != nil {
			return Fail(err)
		}
		controller, err := sys.Controller(ctx)
		if err != nil {
			return Fail(err)
		}
		if err := controller.StopQuery(ctx, desc.Serial); err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "stop_query for PQ %q", name))
		}
		timeout := timeoutOrDefault(args, enterprise.StartWaitTimeout)
		final, err := sub.WaitFor(ctx, desc.Serial, timeout, func(s model.PQState) bool { return s.Terminal() })
		if err != nil {
			return Fail(err)
		}
		return Ok(map[string]any{"state": string(final)})
	})

	d.register("pq_restart", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, name, err := requireSystemAndName(args)
		if err != nil {
			return Fail(err)
		}
		sys, sub, desc, err := d.lookupPQ(ctx, systemKey, name)
		if err != nil {
			return Fail(err)
		}
		controller, err := sys.Controller(ctx)
		if err != nil {
			return Fail(err)
		}
		timeout := timeoutOrDefault(args, enterprise.StartWaitTimeout)

		if err := controller.StopQuery(ctx, desc.Serial); err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "stop_query for PQ %q", name))
		}
		if _, err := sub.WaitFor(ctx, desc.Serial, timeout, func(s model.PQState) bool { return s.Terminal() }); err != nil {
			return Fail(err)
		}
		if err := controller.StartQuery(ctx, desc.Serial); err != nil {
			return Fail(brokererr.Wrap(brokererr.RemoteRejected, err, "start_query for PQ %q", name))
		}
		final, err := sub.WaitFor(ctx, desc.Serial, timeout, func(s model.PQState) bool { return s == model.PQRunning })
		if err != nil {
			return Fail(err)
		}
		if final != model.PQRunning {
			return Fail(brokererr.New(brokererr.Timeout, "PQ %q settled in state %s, not RUNNING after restart", name, final))
		}
		return Ok(map[string]any{"state": string(final)})
	})

	d.register("pq_delete", func(ctx context.Context, args map[string]any) Envelope {
		systemKey, name, err := requireSystemAndName(args)
		if err != nil {
			return Fail(err)
		}
		sys, err := d.reg.EnterpriseSystem(systemKey)
		if err != nil {
			return Fail(err)
		}
		sm := sys.Session(name)
		if sm == nil {
			// Idempotent by effect (spec.md §4.8).
			return Ok(map[string]any{"note": "PQ did not exist"})
		}
		controller, err := sys.Controller(ctx)
		if err != nil {
			return Fail(err)
		}
		if err := sm.Delete(ctx, controller); err != nil {
			return Fail(err)
		}
		sys.DropSession(name)
		return Ok(nil)
	})
}

func requireSystemAndName(args map[string]any) (string, string, error) {
	systemKey, ok := argString(args, "system_name")
	if !ok {
		return "", "", brokererr.New(brokererr.InvalidArgument, "system_name is required")
	}
	name, ok := argString(args, "session_name")
	if !ok {
		name, ok = argString(args, "name")
	}
	if !ok {
		return "", "", brokererr.New(brokererr.InvalidArgument, "session_name is required")
	}
	return systemKey, name, nil
}

// lookupPQ resolves the system manager, its PQ subsystem, and the named
// PQ's current descriptor in one shot, the common prefix of
// pq_start/pq_stop/pq_restart.
func (d *Dispatcher) lookupPQ(ctx context.Context, systemKey, name string) (*enterprise.SystemManager, *pq.Subsystem, model.PQDescriptor, error) {
	sys, err := d.reg.EnterpriseSystem(systemKey)
	if err != nil {
		return nil, nil, model.PQDescriptor{}, err
	}
	sub, err := d.pqSubsystem(ctx, systemKey)
	if err != nil {
		return nil, nil, model.PQDescriptor{}, err
	}
	desc, err := sub.ByName(ctx, name)
	if err != nil {
		return nil, nil, model.PQDescriptor{}, err
	}
	return sys, sub, desc, nil
}

func pqDescriptorToMap(p model.PQDescriptor) map[string]any {
	return map[string]any{
		"serial":              p.Serial,
		"name":                p.Name,
		"state":               string(p.State),
		"heap_gb":             p.HeapGB,
		"language":            string(p.Language),
		"jvm_args":            p.JVMArgs,
		"env_vars":            p.EnvVars,
		"admin_groups":        p.AdminGroups,
		"viewer_groups":       p.ViewerGroups,
		"auto_delete_timeout": p.AutoDeleteTimeout,
		"created_at":          p.CreatedAt,
		"updated_at":          p.UpdatedAt,
	}
}
