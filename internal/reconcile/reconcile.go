// Package reconcile implements the Reconciliation Janitor (C15): a
// periodic background sweep that probes manager liveness and expires PQs
// past their auto_delete_timeout. It is explicitly NOT a correctness
// mechanism, acquisition-time staleness handling (community.Manager.Get,
// enterprise system ensure) remains authoritative; this janitor only
// shortens the window before a dead resource is noticed.
package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/internal/dispatch"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/pkg/model"
)

// Janitor runs a periodic sweep over the registry's live managers, probing
// each READY one and expiring enterprise sessions past their PQ's
// auto_delete_timeout. It never replaces a manager or rebuilds state itself,
// registry replacement and PQ deletion remain the registry's and the
// dispatcher's own concerns; this janitor only drives their existing
// liveness/delete paths on a schedule.
type Janitor struct {
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	interval   time.Duration
	cron       *cron.Cron
	entryID    cron.EntryID
}

// New constructs a Janitor that sweeps every interval. Call Start to begin
// and Stop to halt it.
func New(reg *registry.Registry, d *dispatch.Dispatcher, interval time.Duration) *Janitor {
	return &Janitor{reg: reg, dispatcher: d, interval: interval, cron: cron.New()}
}

// Start schedules the sweep and returns immediately; the cron scheduler
// runs its own goroutine.
func (j *Janitor) Start(ctx context.Context) error {
	spec := "@every " + j.interval.String()
	id, err := j.cron.AddFunc(spec, func() { j.sweep(ctx) })
	if err != nil {
		return err
	}
	j.entryID = id
	j.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
}

func (j *Janitor) sweep(ctx context.Context) {
	probed, unhealthy := j.probeLiveness(ctx)
	expired := j.dispatcher.ReconcileExpiredSessions(ctx)

	if unhealthy > 0 || expired > 0 {
		log.Info().Int("probed", probed).Int("unhealthy", unhealthy).Int("expired", expired).Msg("reconcile: sweep found work")
	} else {
		log.Debug().Int("probed", probed).Msg("reconcile: sweep complete, nothing stale")
	}
}

// probeLiveness calls the cheap liveness check on every READY manager:
// community.Manager.IsAlive (an RPC ping) and enterprise.SystemManager's
// non-probing Status (its own cached READY/FAILED/CLOSED view). Neither
// rebuilds or closes anything, a failed probe here only shortens the window
// before the next acquisition notices and rebuilds on its own.
func (j *Janitor) probeLiveness(ctx context.Context) (probed, unhealthy int) {
	for key, m := range j.reg.CommunityManagers() {
		if m.State() != model.StateReady {
			continue
		}
		probed++
		if !m.IsAlive(ctx) {
			unhealthy++
			log.Warn().Str("source", key).Msg("reconcile: community session failed its liveness probe")
		}
	}

	for key, sys := range j.reg.EnterpriseSystemManagers() {
		if sys.State() != model.StateReady {
			continue
		}
		probed++
		if status, detail := sys.Status(ctx, false); status != model.StatusOnline {
			unhealthy++
			log.Warn().Str("system", key).Str("status", string(status)).Str("detail", detail).Msg("reconcile: enterprise system reported unhealthy")
		}
	}

	return probed, unhealthy
}
