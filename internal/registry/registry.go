// Package registry implements the Resource Registry (C6): the keyed cache
// of community and enterprise-system managers, with per-key build
// delegation and a single writer-exclusive replacement lock.
package registry

import (
	"context"
	"sync"

	"github.com/enginemcp/broker/internal/community"
	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/enterprise"
	"github.com/enginemcp/broker/internal/metrics"
	"github.com/enginemcp/broker/pkg/brokererr"
	"github.com/enginemcp/broker/pkg/contracts"
	"github.com/enginemcp/broker/pkg/model"
	"github.com/rs/zerolog/log"
)

// Registry holds the two keyed manager maps and the replacement lock
// guarding map identity (spec.md §4.6). Per-key builds are delegated to
// the manager's own build lock; the registry never holds replaceMu across
// a build.
type Registry struct {
	communityFactory   contracts.CommunityClientFactory
	enterpriseFactory  contracts.EnterpriseSystemFactory

	replaceMu sync.RWMutex
	community map[string]*community.Manager
	systems   map[string]*enterprise.SystemManager
}

// New constructs an empty Registry. Call ReplaceFromConfig to populate it.
func New(communityFactory contracts.CommunityClientFactory, enterpriseFactory contracts.EnterpriseSystemFactory) *Registry {
	return &Registry{
		communityFactory:  communityFactory,
		enterpriseFactory: enterpriseFactory,
		community:         map[string]*community.Manager{},
		systems:           map[string]*enterprise.SystemManager{},
	}
}

// Community looks up a community manager by key.
func (r *Registry) Community(key string) (*community.Manager, error) {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()
	m, ok := r.community[key]
	if !ok {
		return nil, brokererr.New(brokererr.UnknownSource, "unknown community source %q", key)
	}
	return m, nil
}

// EnterpriseSystem looks up an enterprise system manager by key.
func (r *Registry) EnterpriseSystem(key string) (*enterprise.SystemManager, error) {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()
	m, ok := r.systems[key]
	if !ok {
		return nil, brokererr.New(brokererr.UnknownSource, "unknown enterprise system %q", key)
	}
	return m, nil
}

// EnterpriseSession returns the named session from the system's child map,
// or UnknownSession if it is not there; it does not build a missing session.
func (r *Registry) EnterpriseSession(ctx context.Context, systemKey, name string) (*enterprise.SessionManager, error) {
	sys, err := r.EnterpriseSystem(systemKey)
	if err != nil {
		return nil, err
	}
	if sm := sys.Session(name); sm != nil {
		return sm, nil
	}
	return nil, brokererr.New(brokererr.UnknownSession, "unknown enterprise session %q on system %q", name, systemKey)
}

// SystemKeys lists every configured enterprise system key, independent of
// whether it has any sessions yet, used by handlers that enumerate
// systems themselves (e.g. enterprise_systems_status with no filter).
func (r *Registry) SystemKeys() []string {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()
	out := make([]string, 0, len(r.systems))
	for key := range r.systems {
		out = append(out, key)
	}
	return out
}

// CommunityManagers returns a snapshot of the actual community manager
// references, keyed by source, for callers that need to act on the manager
// itself (e.g. the reconciliation janitor's liveness sweep) rather than the
// cheap metadata ListAll reports.
func (r *Registry) CommunityManagers() map[string]*community.Manager {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()
	out := make(map[string]*community.Manager, len(r.community))
	for key, m := range r.community {
		out[key] = m
	}
	return out
}

// EnterpriseSystemManagers returns a snapshot of the actual enterprise
// system manager references, keyed by system key, for the same reason
// CommunityManagers exists.
func (r *Registry) EnterpriseSystemManagers() map[string]*enterprise.SystemManager {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()
	out := make(map[string]*enterprise.SystemManager, len(r.systems))
	for key, sys := range r.systems {
		out[key] = sys
	}
	return out
}

// ListAll returns cheap metadata for every configured session, it never
// touches a manager's client (spec.md §4.6).
func (r *Registry) ListAll() []model.SessionListing {
	r.replaceMu.RLock()
	defer r.replaceMu.RUnlock()

	out := make([]model.SessionListing, 0, len(r.community)+len(r.systems))
	for key, m := range r.community {
		out = append(out, model.SessionListing{
			SessionID: model.SessionID{Kind: model.KindCommunity, Source: key, Name: key},
			Kind:      model.KindCommunity,
			Source:    key,
			Name:      key,
			State:     m.State(),
		})
	}
	for sysKey, sys := range r.systems {
		for name, sm := range sys.EnterpriseSessions() {
			out = append(out, model.SessionListing{
				SessionID: model.SessionID{Kind: model.KindEnterprise, Source: sysKey, Name: name},
				Kind:      model.KindEnterprise,
				Source:    sysKey,
				Name:      name,
				State:     sm.State(),
			})
		}
	}
	return out
}

// CloseAll takes the replacement lock, walks both maps closing every
// manager, and clears them. Individual close errors are logged and
// aggregated but never abort the walk (spec.md §4.6).
func (r *Registry) CloseAll(ctx context.Context) error {
	r.replaceMu.Lock()
	defer r.replaceMu.Unlock()
	return r.closeAllLocked(ctx)
}

func (r *Registry) closeAllLocked(ctx context.Context) error {
	var firstErr error
	for key, m := range r.community {
		result := "ok"
		if err := m.Close(ctx); err != nil {
			log.Warn().Err(err).Str("source", key).Msg("registry: error closing community manager")
			result = "error"
			if firstErr == nil {
				firstErr = err
			}
		}
		metrics.RegistryCloseTotal.WithLabelValues("community", key, result).Inc()
	}
	for key, sys := range r.systems {
		result := "ok"
		if err := sys.Close(ctx); err != nil {
			log.Warn().Err(err).Str("system", key).Msg("registry: error closing enterprise system manager")
			result = "error"
			if firstErr == nil {
				firstErr = err
			}
		}
		metrics.RegistryCloseTotal.WithLabelValues("enterprise_system", key, result).Inc()
	}
	r.community = map[string]*community.Manager{}
	r.systems = map[string]*enterprise.SystemManager{}
	return firstErr
}

// ReplaceFromConfig closes every current manager, then installs fresh
// UNINITIALIZED skeleton managers for every key in snap, all under the
// replacement lock so no caller ever observes a mix of old and new keys
// (Testable Property #2).
func (r *Registry) ReplaceFromConfig(ctx context.Context, snap *config.Snapshot) error {
	r.replaceMu.Lock()
	defer r.replaceMu.Unlock()

	closeErr := r.closeAllLocked(ctx)

	communityManagers := make(map[string]*community.Manager, len(snap.Community.Sessions))
	for key, cfg := range snap.Community.Sessions {
		communityManagers[key] = community.New(key, cfg, r.communityFactory)
	}

	systemManagers := make(map[string]*enterprise.SystemManager, len(snap.Enterprise.Systems))
	for key, cfg := range snap.Enterprise.Systems {
		systemManagers[key] = enterprise.NewSystemManager(key, cfg, r.enterpriseFactory)
	}

	r.community = communityManagers
	r.systems = systemManagers

	return closeErr
}
