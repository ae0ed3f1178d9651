package dispatch

import (
	"context"

	"github.com/enginemcp/broker/internal/enterprise"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/model"
)

func (d *Dispatcher) registerSessionHandlers() {
	d.register("session_community_create", func(ctx context.Context, args map[string]any) Envelope {
		key, ok := argString(args, "source")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "source is required"))
		}
		mgr, err := d.reg.Community(key)
		if err != nil {
			return Fail(err)
		}
		if _, err := mgr.Get(ctx); err != nil {
			return Fail(err)
		}
		id := model.SessionID{Kind: model.KindCommunity, Source: key, Name: key}
		return Ok(map[string]any{"session_id": id.String()})
	})

	d.register("session_community_delete", func(ctx context.Context, args map[string]any) Envelope {
		key, ok := argString(args, "source")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "source is required"))
		}
		mgr, err := d.reg.Community(key)
		if err != nil {
			return Fail(err)
		}
		if err := mgr.Close(ctx); err != nil {
			return Fail(err)
		}
		return Ok(nil)
	})

	d.register("session_community_credentials", func(ctx context.Context, args map[string]any) Envelope {
		key, ok := argString(args, "source")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "source is required"))
		}
		mgr, err := d.reg.Community(key)
		if err != nil {
			return Fail(err)
		}
		// Never echo credential material (spec.md §4.2): report only the
		// source key and the manager's lifecycle state.
		return Ok(map[string]any{"source": key, "state": string(mgr.State())})
	})

	d.register("session_enterprise_create", func(ctx context.Context, args map[string]any) Envelope {
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
			return Fail(brokererr.New(brokererr.InvalidArgument, "enterprise session %q already exists on system %q", name, systemKey))
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
		return Ok(map[string]any{"session_id": id.String(), "pq_serial": sm.Serial()})
	})

	d.register("session_enterprise_delete", func(ctx context.Context, args map[string]any) Envelope {
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
		sm := sys.Session(name)
		if sm == nil {
			// Idempotent by effect (spec.md §4.8 note applies to C5 deletes too).
			return Ok(map[string]any{"note": "session did not exist"})
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

func buildCreateParams(args map[string]any) enterprise.CreateParams {
	p := enterprise.CreateParams{
		Server:               firstString(args, "server"),
		Engine:               firstString(args, "engine"),
		ExtraJVMArgs:         argStringSlice(args, "extra_jvm_args"),
		ExtraEnvironmentVars: argStringSlice(args, "extra_environment_vars"),
		AdminGroups:          argStringSlice(args, "admin_groups"),
		ViewerGroups:         argStringSlice(args, "viewer_groups"),
	}
	if lang, ok := argString(args, "programming_language"); ok {
		p.ProgrammingLanguage = model.SessionLanguage(lang)
	}
	if v, ok := argFloat(args, "heap_size_gb"); ok {
		p.HeapSizeGB = v
	}
	if v, ok := argInt(args, "auto_delete_timeout"); ok {
		p.AutoDeleteTimeout = &v
	}
	if v, ok := argFloat(args, "timeout_seconds"); ok {
		p.TimeoutSeconds = v
	}
	if v, ok := args["session_arguments"].(map[string]any); ok {
		p.SessionArguments = v
	}
	return p
}

func firstString(args map[string]any, key string) string {
	s, _ := argString(args, key)
	return s
}
