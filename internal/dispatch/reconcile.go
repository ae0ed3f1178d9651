package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/pkg/model"
)

// ReconcileExpiredSessions walks every enterprise session currently bound to
// a PQ and deletes any whose auto_delete_timeout has elapsed since the
// controller last reported it, using the same disconnect-then-delete_query
// path session_enterprise_delete uses. Returns the number of sessions
// deleted. Called by the reconciliation janitor (C15); the broker's own
// bookkeeping must not outlive a PQ the controller already considers expired.
func (d *Dispatcher) ReconcileExpiredSessions(ctx context.Context) int {
	deleted := 0
	for _, systemKey := range d.reg.SystemKeys() {
		sys, err := d.reg.EnterpriseSystem(systemKey)
		if err != nil {
			continue
		}
		sub, err := d.pqSubsystem(ctx, systemKey)
		if err != nil {
			log.Warn().Err(err).Str("system", systemKey).Msg("reconcile: could not reach PQ subsystem for expiry sweep")
			continue
		}

		for name, sm := range sys.EnterpriseSessions() {
			desc, err := sub.ByName(ctx, name)
			if err != nil {
				continue
			}
			if !pqExpired(desc) {
				continue
			}

			controller, err := sys.Controller(ctx)
			if err != nil {
				log.Warn().Err(err).Str("system", systemKey).Str("session", name).Msg("reconcile: could not reach controller to delete expired PQ")
				continue
			}
			if err := sm.Delete(ctx, controller); err != nil {
				log.Warn().Err(err).Str("system", systemKey).Str("session", name).Msg("reconcile: expiring session_enterprise_delete failed")
				continue
			}
			sys.DropSession(name)
			deleted++
			log.Info().Str("system", systemKey).Str("session", name).Msg("reconcile: deleted session past its auto_delete_timeout")
		}
	}
	return deleted
}

// pqExpired reports whether a PQ's auto_delete_timeout has elapsed since the
// controller's last reported update for it. A zero timeout means auto-delete
// is disabled for that PQ.
func pqExpired(desc model.PQDescriptor) bool {
	if desc.AutoDeleteTimeout <= 0 {
		return false
	}
	deadline := desc.UpdatedAt.Add(time.Duration(desc.AutoDeleteTimeout) * time.Second)
	return time.Now().After(deadline)
}
