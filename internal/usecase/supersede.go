package usecase

import (
	"context"
	"sync"
)

// QueryGate cancels an in-flight computation when a newer one starts for the
// same key, so a client's latest request always wins.
type QueryGate struct {
	mu       sync.Mutex
	inflight map[string]*gateEntry
	seq      uint64
}

type gateEntry struct {
	id     uint64
	cancel context.CancelFunc
}

// NewQueryGate creates an empty gate.
func NewQueryGate() *QueryGate {
	return &QueryGate{inflight: make(map[string]*gateEntry)}
}

// Begin derives a context that is cancelled when another Begin for key runs.
// The returned done func must be called when the work finishes.
// An empty key is never superseded.
func (g *QueryGate) Begin(ctx context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if key == "" {
		return ctx, cancel
	}

	g.mu.Lock()
	g.seq++
	id := g.seq
	if prev, ok := g.inflight[key]; ok {
		prev.cancel()
	}
	g.inflight[key] = &gateEntry{id: id, cancel: cancel}
	g.mu.Unlock()

	return ctx, func() {
		cancel()
		g.mu.Lock()
		if cur, ok := g.inflight[key]; ok && cur.id == id {
			delete(g.inflight, key)
		}
		g.mu.Unlock()
	}
}

// InFlight returns the number of keys with running work.
func (g *QueryGate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}
