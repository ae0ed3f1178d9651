package dispatch

import (
	"context"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/model"
)

func (d *Dispatcher) registerDiscoveryHandlers() {
	d.register("list_sessions", func(ctx context.Context, args map[string]any) Envelope {
		listing := d.reg.ListAll()
		sessions := make([]map[string]any, 0, len(listing))
		for _, l := range listing {
			sessions = append(sessions, map[string]any{
				"session_id": l.SessionID.String(),
				"kind":       string(l.Kind),
				"source":     l.Source,
				"name":       l.Name,
				"state":      string(l.State),
			})
		}
		return Ok(map[string]any{"sessions": sessions})
	})

	d.register("session_details", func(ctx context.Context, args map[string]any) Envelope {
		raw, ok := argString(args, "session_id")
		if !ok {
			return Fail(brokererr.New(brokererr.InvalidArgument, "session_id is required"))
		}
		id, err := model.ParseSessionID(raw)
		if err != nil {
			return Fail(brokererr.Wrap(brokererr.InvalidArgument, err, "parsing session_id"))
		}

		attemptConnect := argBool(args, "attempt_to_connect", false)

		switch id.Kind {
		case model.KindCommunity:
			mgr, err := d.reg.Community(id.Source)
			if err != nil {
				return Fail(err)
			}
			if id.Name != id.Source {
				return Fail(brokererr.New(brokererr.UnknownSession, "unknown community session %q on source %q", id.Name, id.Source))
			}
			state := string(mgr.State())
			if attemptConnect {
				if _, err := mgr.Get(ctx); err != nil {
					return Fail(err)
				}
				state = string(mgr.State())
			}
			return Ok(map[string]any{"session_id": id.String(), "kind": string(id.Kind), "state": state})

		case model.KindEnterprise:
			sm, err := d.reg.EnterpriseSession(ctx, id.Source, id.Name)
			if err != nil {
				return Fail(err)
			}
			return Ok(map[string]any{
				"session_id": id.String(),
				"kind":       string(id.Kind),
				"state":      string(sm.State()),
				"pq_serial":  sm.Serial(),
			})

		default:
			return Fail(brokererr.New(brokererr.InvalidArgument, "unknown session kind %q", id.Kind))
		}
	})

	d.register("enterprise_systems_status", func(ctx context.Context, args map[string]any) Envelope {
		probe := argBool(args, "probe", false)
		systemKey, hasKey := argString(args, "system_name")

		statuses := map[string]any{}
		if hasKey {
			sys, err := d.reg.EnterpriseSystem(systemKey)
			if err != nil {
				return Fail(err)
			}
			status, detail := sys.Status(ctx, probe)
			statuses[systemKey] = map[string]any{"status": string(status), "detail": detail}
			return Ok(map[string]any{"systems": statuses})
		}

		for _, key := range d.reg.SystemKeys() {
			sys, err := d.reg.EnterpriseSystem(key)
			if err != nil {
				continue
			}
			status, detail := sys.Status(ctx, probe)
			statuses[key] = map[string]any{"status": string(status), "detail": detail}
		}
		return Ok(map[string]any{"systems": statuses})
	})
}
