package dispatch

import (
	"context"

	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
)

// resolveClient maps a session_id argument to a live community-shaped
// client, regardless of whether it names a community or enterprise
// session, both satisfy contracts.CommunityClient once connected
// (spec.md §4.7: handlers are pure consumers of the core).
func (d *Dispatcher) resolveClient(ctx context.Context, rawID string) (contracts.CommunityClient, model.Kind, error) {
	id, err := model.ParseSessionID(rawID)
	if err != nil {
		return nil, "", brokererr.Wrap(brokererr.InvalidArgument, err, "parsing session_id")
	}

	switch id.Kind {
	case model.KindCommunity:
		mgr, err := d.reg.Community(id.Source)
		if err != nil {
			return nil, "", err
		}
		if id.Name != id.Source {
			return nil, "", brokererr.New(brokererr.UnknownSession, "unknown community session %q on source %q", id.Name, id.Source)
		}
		client, err := mgr.Get(ctx)
		if err != nil {
			return nil, "", err
		}
		return client, model.KindCommunity, nil

	case model.KindEnterprise:
		sm, err := d.reg.EnterpriseSession(ctx, id.Source, id.Name)
		if err != nil {
			return nil, "", err
		}
		client, err := sm.Client()
		if err != nil {
			return nil, "", err
		}
		return client, model.KindEnterprise, nil

	default:
		return nil, "", brokererr.New(brokererr.InvalidArgument, "unknown session kind %q", id.Kind)
	}
}
