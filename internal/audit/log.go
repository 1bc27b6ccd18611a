package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/ids"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/store"
)

const (
	// maxEntries caps the retained log; older entries age out on save.
	maxEntries = 1000
	// remoteSlice is how many of the newest entries replicate remotely.
	remoteSlice = 100
)

// Entry is an immutable audit record. The log is ordered newest-first.
type Entry struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	ActionName string          `json:"actionName"`
	Details    json.RawMessage `json:"details,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Actor      auth.Actor      `json:"actor"`
	Timestamp  time.Time       `json:"timestamp"`
	UserAgent  string          `json:"userAgent,omitempty"`
}

// Log appends and queries audit entries. Recording never fails the caller:
// persistence and replication problems degrade to warnings.
type Log struct {
	mu        sync.Mutex
	store     store.Store
	repl      store.Replicator
	resolve   auth.Resolver
	now       func() time.Time
	cap       int
	userAgent string
}

// Option configures a Log.
type Option func(*Log)

// WithCap overrides the retained-entry cap. Used by tests.
func WithCap(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.cap = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithReplicator enables best-effort remote sync of the newest entries.
func WithReplicator(r store.Replicator) Option {
	return func(l *Log) { l.repl = r }
}

// WithUserAgent stamps entries with the recording client description.
func WithUserAgent(ua string) Option {
	return func(l *Log) { l.userAgent = ua }
}

// New creates a Log over the given store. The resolver supplies the acting
// identity; when it yields nothing the anonymous placeholder is used.
func New(s store.Store, resolve auth.Resolver, opts ...Option) *Log {
	l := &Log{
		store:   s,
		resolve: resolve,
		now:     func() time.Time { return time.Now().UTC() },
		cap:     maxEntries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry for action and returns it. The entry is prepended
// (newest-first), persisted, and the newest slice is replicated best-effort.
func (l *Log) Record(ctx context.Context, action Action, details Details, notes string) Entry {
	actor := auth.Anonymous
	if l.resolve != nil {
		if a, ok := l.resolve(ctx); ok {
			actor = a
		}
	}

	var payload json.RawMessage
	if details != nil {
		raw, err := json.Marshal(details)
		if err == nil {
			payload = raw
		}
	}

	entry := Entry{
		ID:         ids.New(),
		Action:     action,
		ActionName: action.Name(),
		Details:    payload,
		Notes:      notes,
		Actor:      actor,
		Timestamp:  l.now(),
		UserAgent:  l.userAgent,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.loadLocked(ctx)
	entries = append([]Entry{entry}, entries...)
	l.saveLocked(ctx, entries)
	return entry
}

// RecordVehicleChange diffs two versions of a vehicle record field by field
// and logs the change list with a snapshot of the newest available state.
func (l *Log) RecordVehicleChange(ctx context.Context, action Action, vehicleID string, oldData, newData map[string]any, notes string) Entry {
	var changes []FieldChange
	if oldData != nil && newData != nil {
		for key, newVal := range newData {
			oldRaw, _ := json.Marshal(oldData[key])
			newRaw, _ := json.Marshal(newVal)
			if string(oldRaw) != string(newRaw) {
				changes = append(changes, FieldChange{Field: key, OldValue: oldData[key], NewValue: newVal})
			}
		}
	}
	snapshot := newData
	if snapshot == nil {
		snapshot = oldData
	}
	return l.Record(ctx, action, VehicleChange{
		VehicleID: vehicleID,
		Changes:   changes,
		Snapshot:  snapshot,
	}, notes)
}

// Entries returns the full retained log, newest first.
func (l *Log) Entries(ctx context.Context) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(ctx)
}

// ByAction filters the log to one action kind.
func (l *Log) ByAction(ctx context.Context, action Action) []Entry {
	return l.filter(ctx, func(e Entry) bool { return e.Action == action })
}

// ByActor filters the log to entries recorded by the given actor id.
func (l *Log) ByActor(ctx context.Context, actorID string) []Entry {
	return l.filter(ctx, func(e Entry) bool { return e.Actor.ID == actorID })
}

// ByDateRange returns entries with from <= timestamp <= to.
func (l *Log) ByDateRange(ctx context.Context, from, to time.Time) []Entry {
	return l.filter(ctx, func(e Entry) bool {
		return !e.Timestamp.Before(from) && !e.Timestamp.After(to)
	})
}

// VehicleHistory returns entries whose details reference the vehicle.
func (l *Log) VehicleHistory(ctx context.Context, vehicleID string) []Entry {
	return l.filter(ctx, func(e Entry) bool {
		if len(e.Details) == 0 {
			return false
		}
		var probe struct {
			VehicleID string `json:"vehicleId"`
		}
		if err := json.Unmarshal(e.Details, &probe); err != nil {
			return false
		}
		return probe.VehicleID == vehicleID
	})
}

// Prune drops entries older than daysToKeep and reports how many were
// removed.
func (l *Log) Prune(ctx context.Context, daysToKeep int) int {
	cutoff := l.now().AddDate(0, 0, -daysToKeep)

	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.loadLocked(ctx)
	kept := entries[:0:0]
	for _, e := range entries {
		// An entry stamped exactly at the cutoff is not older than it.
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(entries) - len(kept)
	if removed > 0 {
		l.saveLocked(ctx, kept)
	}
	return removed
}

func (l *Log) filter(ctx context.Context, keep func(Entry) bool) []Entry {
	l.mu.Lock()
	entries := l.loadLocked(ctx)
	l.mu.Unlock()

	var out []Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// loadLocked reads the persisted log. A missing or malformed document reads
// as an empty log.
func (l *Log) loadLocked(ctx context.Context) []Entry {
	var entries []Entry
	store.ReadJSON(ctx, l.store, store.KeyAuditLog, &entries)
	return entries
}

// saveLocked caps and persists the log, then replicates the newest slice.
func (l *Log) saveLocked(ctx context.Context, entries []Entry) {
	if len(entries) > l.cap {
		entries = entries[:l.cap]
	}
	if err := store.WriteJSON(ctx, l.store, store.KeyAuditLog, entries); err != nil {
		obs.Warn("audit log save failed", err)
	}
	if l.repl == nil {
		return
	}
	recent := entries
	if len(recent) > remoteSlice {
		recent = recent[:remoteSlice]
	}
	snapshot, err := json.Marshal(recent)
	if err != nil {
		return
	}
	go func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := l.repl.TrySync(sctx, store.KeyAuditLog, snapshot)
		obs.ObserveReplication(store.KeyAuditLog, err)
		if err != nil {
			obs.Warn("audit log remote sync failed", err)
		}
	}()
}
