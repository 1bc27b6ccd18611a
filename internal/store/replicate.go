package store

import (
	"context"
	"sync"
	"time"

	"fleetdesk.org/internal/obs"
)

// Replicator pushes a snapshot of one key to a remote document store.
// Implementations must be safe for concurrent use.
type Replicator interface {
	TrySync(ctx context.Context, key string, snapshot []byte) error
}

// Multi fans one snapshot out to several replicators. The first failure is
// returned; later targets are still attempted.
type Multi []Replicator

func (m Multi) TrySync(ctx context.Context, key string, snapshot []byte) error {
	var first error
	for _, r := range m {
		if err := r.TrySync(ctx, key, snapshot); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// AuthGate reports whether the request context carries an authenticated
// actor. Replication only fires for authenticated sessions.
type AuthGate func(ctx context.Context) bool

// Replicated decorates a local Store with asynchronous best-effort
// replication. The local write is synchronous and authoritative; the remote
// sync is fire-and-forget, its failures are logged and swallowed.
type Replicated struct {
	Store

	repl    Replicator
	gate    AuthGate
	timeout time.Duration

	inflight sync.WaitGroup
}

// NewReplicated wraps local. A nil replicator or gate disables replication.
func NewReplicated(local Store, repl Replicator, gate AuthGate) *Replicated {
	return &Replicated{
		Store:   local,
		repl:    repl,
		gate:    gate,
		timeout: 5 * time.Second,
	}
}

func (r *Replicated) Write(ctx context.Context, key string, value []byte) error {
	if err := r.Store.Write(ctx, key, value); err != nil {
		return err
	}
	if r.repl == nil || r.gate == nil || !r.gate(ctx) {
		return nil
	}

	snapshot := make([]byte, len(value))
	copy(snapshot, value)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		sctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		err := r.repl.TrySync(sctx, key, snapshot)
		obs.ObserveReplication(key, err)
		if err != nil {
			obs.Warn("remote sync failed for "+key, err)
		}
	}()
	return nil
}

// Flush blocks until all in-flight replications finish. Called on shutdown
// and by tests; domain code never waits on replication.
func (r *Replicated) Flush() {
	r.inflight.Wait()
}
