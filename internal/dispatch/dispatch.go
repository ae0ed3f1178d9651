package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enginemcp/broker/internal/config"
	"github.com/enginemcp/broker/internal/pq"
	"github.com/enginemcp/broker/internal/registry"
	"github.com/enginemcp/broker/internal/respfmt"
	"github.com/enginemcp/broker/pkg/brokererr"
)

// Handler is one tool's implementation. Inputs are validated structurally
// before any side effect; handlers never panic across the tool boundary;
// Dispatcher.Handle recovers and converts any escaping panic into an
// Internal-kind failure envelope.
type Handler func(ctx context.Context, args map[string]any) Envelope

// Dispatcher maps tool_name → Handler and holds the shared collaborators
// every handler needs: the config store, the resource registry, and one PQ
// subsystem per enterprise system (built lazily, one subscription each).
type Dispatcher struct {
	cfg              *config.Store
	reg              *registry.Registry
	maxResponseBytes int64

	pqMu  sync.Mutex
	pqSys map[string]*pq.Subsystem

	handlers map[string]Handler
}

// New constructs a Dispatcher and registers every enumerated handler
// (spec.md §4.7 table).
func New(cfg *config.Store, reg *registry.Registry, maxResponseBytes int64) *Dispatcher {
	if maxResponseBytes <= 0 {
		maxResponseBytes = respfmt.DefaultMaxResponseBytes
	}
	d := &Dispatcher{
		cfg:              cfg,
		reg:              reg,
		maxResponseBytes: maxResponseBytes,
		pqSys:            map[string]*pq.Subsystem{},
		handlers:         map[string]Handler{},
	}
	d.registerHandlers()
	return d
}

// Names lists every registered tool name, for the /tools discovery endpoint.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	return names
}

// Handle looks up and invokes a handler, converting any panic into an
// Internal failure envelope so nothing ever raises through the tool
// boundary (spec.md §4.7).
func (d *Dispatcher) Handle(ctx context.Context, toolName string, args map[string]any) (env Envelope) {
	h, ok := d.handlers[toolName]
	if !ok {
		return Fail(brokererr.New(brokererr.InvalidArgument, "unknown tool %q", toolName))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("tool", toolName).Msg("dispatch: handler panicked")
			env = Fail(brokererr.New(brokererr.Internal, "handler for %q panicked", toolName))
		}
	}()

	return h(ctx, args)
}

func (d *Dispatcher) register(name string, h Handler) {
	d.handlers[name] = h
}

// PQSubsystem exposes the lazily-built PQ subsystem for an enterprise
// system to collaborators outside this package (the SSE event feed in
// internal/httpapi). Identical to the internal lookup used by pq_* handlers.
func (d *Dispatcher) PQSubsystem(ctx context.Context, systemKey string) (*pq.Subsystem, error) {
	return d.pqSubsystem(ctx, systemKey)
}

// pqSubsystem returns the (lazily built) PQ subsystem for an enterprise
// system, creating its controller subscription on first use.
func (d *Dispatcher) pqSubsystem(ctx context.Context, systemKey string) (*pq.Subsystem, error) {
	d.pqMu.Lock()
	if sub, ok := d.pqSys[systemKey]; ok {
		d.pqMu.Unlock()
		return sub, nil
	}
	d.pqMu.Unlock()

	sys, err := d.reg.EnterpriseSystem(systemKey)
	if err != nil {
		return nil, err
	}
	controller, err := sys.Controller(ctx)
	if err != nil {
		return nil, err
	}

	d.pqMu.Lock()
	defer d.pqMu.Unlock()
	if sub, ok := d.pqSys[systemKey]; ok {
		return sub, nil
	}
	sub, err := pq.New(ctx, systemKey, controller)
	if err != nil {
		return nil, err
	}
	d.pqSys[systemKey] = sub
	return sub, nil
}

// Reload acquires the registry replacement lock path via
// config.Reload + registry.ReplaceFromConfig, then drops every cached PQ
// subsystem since their underlying controller clients are gone.
func (d *Dispatcher) Reload(ctx context.Context) error {
	snap, err := d.cfg.Reload()
	if err != nil {
		return err
	}
	if err := d.reg.ReplaceFromConfig(ctx, snap); err != nil {
		log.Warn().Err(err).Msg("dispatch: reload encountered manager close errors")
	}

	d.pqMu.Lock()
	for key, sub := range d.pqSys {
		sub.Close()
		delete(d.pqSys, key)
	}
	d.pqMu.Unlock()
	return nil
}

func argString(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func argBool(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func argInt(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func argFloat(args map[string]any, key string) (*float64, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	switch n := v.(type) {
	case float64:
		return &n, true
	case int:
		f := float64(n)
		return &f, true
	default:
		return nil, false
	}
}

func argStringSlice(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func timeoutOrDefault(args map[string]any, def time.Duration) time.Duration {
	if v, ok := argFloat(args, "timeout_seconds"); ok && v != nil && *v > 0 {
		return time.Duration(*v * float64(time.Second))
	}
	return def
}
