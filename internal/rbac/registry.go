package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/store"
)

const (
	statusActive = "active"
)

// Assignment is the persisted mapping of one actor id to a role. At most one
// assignment exists per actor; absence means the actor has never been seen.
type Assignment struct {
	Role              RoleID    `json:"role"`
	AssignedWarehouse string    `json:"assignedWarehouse,omitempty"`
	Email             string    `json:"email,omitempty"`
	Name              string    `json:"name,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	AssignedAt        time.Time `json:"assignedAt"`
	AssignedBy        string    `json:"assignedBy,omitempty"`
	Status            string    `json:"status,omitempty"`
}

// UserDraft carries the fields accepted when creating or updating a user.
type UserDraft struct {
	Role      RoleID
	Warehouse string
	Email     string
	Name      string
	Phone     string
	Status    string
}

// Registry resolves roles for actors and manages user/role assignments.
// Every mutating operation is permission-gated and audited; failures are
// reported as false results, never as panics or exceptions.
type Registry struct {
	mu      sync.Mutex
	store   store.Store
	log     *audit.Log
	resolve auth.Resolver
	now     func() time.Time
}

// NewRegistry wires a Registry with its injected collaborators.
func NewRegistry(s store.Store, log *audit.Log, resolve auth.Resolver) *Registry {
	return &Registry{
		store:   s,
		log:     log,
		resolve: resolve,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// ResolveCurrentRole returns the role of the current session: the actor's
// cached role when set, else the actor's persisted assignment (defaulting
// to viewer), else admin when no actor is authenticated at all. The admin
// fallback covers the single local operator with no auth configured. The
// cache is keyed by actor id so concurrent sessions never see each other's
// role.
func (r *Registry) ResolveCurrentRole(ctx context.Context) RoleID {
	actor, ok := r.currentActor(ctx)
	if !ok {
		return RoleAdmin
	}
	if cached := r.loadRoleCache(ctx)[actor.ID]; cached != "" {
		return RoleID(cached)
	}
	assignments := r.load(ctx)
	if a, ok := assignments[actor.ID]; ok {
		return a.Role
	}
	return RoleViewer
}

// SetCurrentRole caches the session role for the current actor and merges
// it into the actor's assignment record.
func (r *Registry) SetCurrentRole(ctx context.Context, role RoleID) {
	actor, ok := r.currentActor(ctx)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheRoleLocked(ctx, actor.ID, role)
	assignments := r.load(ctx)
	a := assignments[actor.ID]
	a.Role = role
	a.Email = actor.Email
	a.Name = actor.Name
	if a.Status == "" {
		a.Status = statusActive
	}
	a.AssignedAt = r.now()
	assignments[actor.ID] = a
	r.save(ctx, assignments)
}

// HasPermission reports whether the current session's role grants perm.
// Pure membership test over the static permission table.
func (r *Registry) HasPermission(ctx context.Context, perm Permission) bool {
	role, ok := Lookup(r.ResolveCurrentRole(ctx))
	if !ok {
		return false
	}
	return role.Has(perm)
}

// HasAnyPermission reports whether any of the given permissions is granted.
func (r *Registry) HasAnyPermission(ctx context.Context, perms ...Permission) bool {
	for _, p := range perms {
		if r.HasPermission(ctx, p) {
			return true
		}
	}
	return false
}

// EnsureActor bootstraps an assignment for a newly seen actor. The very
// first actor ever seen becomes admin; every later unseen actor becomes
// viewer. The resolved role is cached for the session and a login entry is
// recorded.
func (r *Registry) EnsureActor(ctx context.Context) {
	actor, ok := r.currentActor(ctx)
	if !ok {
		return
	}

	r.mu.Lock()
	assignments := r.load(ctx)
	a, seen := assignments[actor.ID]
	if !seen {
		role := RoleViewer
		if len(assignments) == 0 {
			role = RoleAdmin
		}
		a = Assignment{
			Role:       role,
			Email:      actor.Email,
			Name:       actor.Name,
			AssignedAt: r.now(),
			Status:     statusActive,
		}
		assignments[actor.ID] = a
		r.save(ctx, assignments)
	}
	r.cacheRoleLocked(ctx, actor.ID, a.Role)
	r.mu.Unlock()

	if !seen && r.log != nil {
		r.log.Record(ctx, audit.ActionUserLogin, audit.UserEvent{UserID: actor.ID, Email: actor.Email}, "first sign-in")
	}
}

// AssignRole writes or merges the role assignment for userID. The caller
// must hold manage_roles; unknown roles are rejected.
func (r *Registry) AssignRole(ctx context.Context, userID string, role RoleID, warehouse string) bool {
	if !r.HasPermission(ctx, PermManageRoles) {
		return false
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	if _, ok := Lookup(role); !ok {
		return false
	}

	assignedBy := "system"
	if actor, ok := r.currentActor(ctx); ok {
		assignedBy = actor.ID
	}

	r.mu.Lock()
	assignments := r.load(ctx)
	a := assignments[userID]
	a.Role = role
	a.AssignedWarehouse = warehouse
	a.AssignedAt = r.now()
	a.AssignedBy = assignedBy
	if a.Status == "" {
		a.Status = statusActive
	}
	assignments[userID] = a
	r.save(ctx, assignments)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Record(ctx, audit.ActionRoleAssigned, audit.RoleEvent{
			UserID:    userID,
			NewRole:   string(role),
			Warehouse: warehouse,
		}, "")
	}
	return true
}

// AddUser registers a user with an explicit assignment. Requires
// manage_users; an already known user id is rejected.
func (r *Registry) AddUser(ctx context.Context, userID string, draft UserDraft) bool {
	if !r.HasPermission(ctx, PermManageUsers) {
		return false
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	role := draft.Role
	if role == "" {
		role = RoleViewer
	}
	if _, ok := Lookup(role); !ok {
		return false
	}

	assignedBy := "system"
	if actor, ok := r.currentActor(ctx); ok {
		assignedBy = actor.ID
	}

	r.mu.Lock()
	assignments := r.load(ctx)
	if _, exists := assignments[userID]; exists {
		r.mu.Unlock()
		return false
	}
	status := draft.Status
	if status == "" {
		status = statusActive
	}
	assignments[userID] = Assignment{
		Role:              role,
		AssignedWarehouse: draft.Warehouse,
		Email:             strings.TrimSpace(strings.ToLower(draft.Email)),
		Name:              strings.TrimSpace(draft.Name),
		Phone:             strings.TrimSpace(draft.Phone),
		AssignedAt:        r.now(),
		AssignedBy:        assignedBy,
		Status:            status,
	}
	r.save(ctx, assignments)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Record(ctx, audit.ActionUserAdded, audit.UserEvent{UserID: userID, Email: draft.Email}, "")
	}
	return true
}

// UpdateUser merges non-empty draft fields into an existing assignment.
// Requires manage_users; unknown targets report false.
func (r *Registry) UpdateUser(ctx context.Context, userID string, draft UserDraft) bool {
	if !r.HasPermission(ctx, PermManageUsers) {
		return false
	}

	r.mu.Lock()
	assignments := r.load(ctx)
	a, exists := assignments[userID]
	if !exists {
		r.mu.Unlock()
		return false
	}
	if draft.Role != "" {
		if _, ok := Lookup(draft.Role); !ok {
			r.mu.Unlock()
			return false
		}
		a.Role = draft.Role
	}
	if draft.Warehouse != "" {
		a.AssignedWarehouse = draft.Warehouse
	}
	if draft.Email != "" {
		a.Email = strings.TrimSpace(strings.ToLower(draft.Email))
	}
	if draft.Name != "" {
		a.Name = strings.TrimSpace(draft.Name)
	}
	if draft.Phone != "" {
		a.Phone = strings.TrimSpace(draft.Phone)
	}
	if draft.Status != "" {
		a.Status = draft.Status
	}
	assignments[userID] = a
	r.save(ctx, assignments)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Record(ctx, audit.ActionUserUpdated, audit.UserEvent{UserID: userID, Email: a.Email}, "")
	}
	return true
}

// DeleteUser removes an assignment. Requires manage_users and always
// refuses to delete the caller's own id.
func (r *Registry) DeleteUser(ctx context.Context, userID string) bool {
	if !r.HasPermission(ctx, PermManageUsers) {
		return false
	}
	if actor, ok := r.currentActor(ctx); ok && actor.ID == userID {
		return false
	}

	r.mu.Lock()
	assignments := r.load(ctx)
	a, exists := assignments[userID]
	if !exists {
		r.mu.Unlock()
		return false
	}
	delete(assignments, userID)
	r.save(ctx, assignments)
	r.evictRoleLocked(ctx, userID)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Record(ctx, audit.ActionUserDeleted, audit.UserEvent{UserID: userID, Email: a.Email}, "")
	}
	return true
}

// AssignedWarehouse returns the warehouse bound to userID, if any.
func (r *Registry) AssignedWarehouse(ctx context.Context, userID string) string {
	assignments := r.load(ctx)
	return assignments[userID].AssignedWarehouse
}

// Users returns all persisted assignments keyed by actor id, with ids
// sorted for deterministic listings.
func (r *Registry) Users(ctx context.Context) ([]string, map[string]Assignment) {
	assignments := r.load(ctx)
	idList := make([]string, 0, len(assignments))
	for id := range assignments {
		idList = append(idList, id)
	}
	sort.Strings(idList)
	return idList, assignments
}

func (r *Registry) currentActor(ctx context.Context) (auth.Actor, bool) {
	if r.resolve == nil {
		return auth.Actor{}, false
	}
	return r.resolve(ctx)
}

// loadRoleCache reads the per-actor session role cache. A missing or
// malformed document reads as empty.
func (r *Registry) loadRoleCache(ctx context.Context) map[string]string {
	cache := make(map[string]string)
	store.ReadJSON(ctx, r.store, store.KeyCurrentUserRole, &cache)
	return cache
}

func (r *Registry) cacheRoleLocked(ctx context.Context, actorID string, role RoleID) {
	cache := r.loadRoleCache(ctx)
	cache[actorID] = string(role)
	if err := store.WriteJSON(ctx, r.store, store.KeyCurrentUserRole, cache); err != nil {
		obs.Warn("role cache write failed", err)
	}
}

func (r *Registry) evictRoleLocked(ctx context.Context, actorID string) {
	cache := r.loadRoleCache(ctx)
	if _, ok := cache[actorID]; !ok {
		return
	}
	delete(cache, actorID)
	if err := store.WriteJSON(ctx, r.store, store.KeyCurrentUserRole, cache); err != nil {
		obs.Warn("role cache write failed", err)
	}
}

func (r *Registry) load(ctx context.Context) map[string]Assignment {
	assignments := make(map[string]Assignment)
	store.ReadJSON(ctx, r.store, store.KeyUsersRoles, &assignments)
	return assignments
}

func (r *Registry) save(ctx context.Context, assignments map[string]Assignment) {
	if err := store.WriteJSON(ctx, r.store, store.KeyUsersRoles, assignments); err != nil {
		obs.Warn("user assignments save failed", err)
	}
}
