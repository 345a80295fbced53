package machine

import (
	"sync"

	"github.com/marcusklein/windowtrader/backend/clock"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

// Registry maps instrument keys to Symbol Machines, creating them lazily
// on first use per spec.md §3's Lifecycle ("A Symbol Machine is created
// on first signal or subscription for that instrument and lives for the
// process lifetime"). Registry methods assume the caller is already on
// the shared executor, same as Machine itself.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	hub      *tickhub.Hub
	broker   Broker
	sizer    Sizer
	recorder Recorder
	machines map[string]*Machine
}

// NewRegistry returns a Registry that lazily builds machines sharing cfg,
// clk, hub, broker, and sizer.
func NewRegistry(cfg Config, clk clock.Clock, hub *tickhub.Hub, broker Broker, sizer Sizer) *Registry {
	return &Registry{
		cfg:      cfg,
		clk:      clk,
		hub:      hub,
		broker:   broker,
		sizer:    sizer,
		machines: make(map[string]*Machine),
	}
}

// SetRecorder attaches a metrics/telemetry Recorder that every
// subsequently-created machine will use, and retroactively attaches it to
// machines already created. Call before the registry starts handling
// signals in production; tests may leave it unset.
func (r *Registry) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
	for _, m := range r.machines {
		m.SetRecorder(rec)
	}
}

// Get returns the machine for sym, creating it if this is the first use.
func (r *Registry) Get(sym string) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.machines[sym]
	if !ok {
		m = New(sym, r.cfg, r.clk, r.hub, r.broker, r.sizer)
		m.SetRecorder(r.recorder)
		r.machines[sym] = m
	}
	return m
}

// Restore creates (if needed) the machine for snap.Sym and loads snap
// into it, for resuming persisted state at startup per spec.md §6.7.
func (r *Registry) Restore(snap Snapshot) {
	r.Get(snap.Sym).Restore(snap)
}

// All returns a snapshot slice of every machine created so far, in no
// particular order. Used by HTTP status endpoints and persistence.
func (r *Registry) All() []*Machine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Machine, 0, len(r.machines))
	for _, m := range r.machines {
		out = append(out, m)
	}
	return out
}
