package rbac

import (
	"context"
	"testing"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *audit.Log, store.Store) {
	t.Helper()
	s := store.NewMemory()
	log := audit.New(s, auth.ActorFromContext)
	return NewRegistry(s, log, auth.ActorFromContext), log, s
}

func asActor(id, name string) context.Context {
	return auth.ContextWithActor(context.Background(), auth.Actor{ID: id, Name: name, Email: id + "@example.com"})
}

func TestBootstrapFirstActorBecomesAdmin(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	first := asActor("u-first", "First")
	reg.EnsureActor(first)
	if got := reg.ResolveCurrentRole(first); got != RoleAdmin {
		t.Fatalf("first actor should be admin, got %s", got)
	}

	second := asActor("u-second", "Second")
	reg.EnsureActor(second)
	ids, assignments := reg.Users(second)
	if len(ids) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(ids))
	}
	if assignments["u-second"].Role != RoleViewer {
		t.Fatalf("later actor should default to viewer, got %s", assignments["u-second"].Role)
	}
}

func TestResolveOrderCachedThenAssignmentThenDefaults(t *testing.T) {
	reg, _, s := newTestRegistry(t)
	ctx := asActor("u1", "Uma")

	// No cache, no assignment, actor present: viewer.
	if got := reg.ResolveCurrentRole(ctx); got != RoleViewer {
		t.Fatalf("expected viewer, got %s", got)
	}

	// No actor at all: admin bootstrap.
	if got := reg.ResolveCurrentRole(context.Background()); got != RoleAdmin {
		t.Fatalf("expected admin for unauthenticated local session, got %s", got)
	}

	// Cached role wins over everything.
	if err := store.WriteJSON(ctx, s, store.KeyCurrentUserRole, map[string]string{"u1": string(RoleInventoryStaff)}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if got := reg.ResolveCurrentRole(ctx); got != RoleInventoryStaff {
		t.Fatalf("cached role should win, got %s", got)
	}

	// Another actor's cache entry is invisible to this one.
	if got := reg.ResolveCurrentRole(asActor("u2", "Vic")); got != RoleViewer {
		t.Fatalf("cache must not leak across actors, got %s", got)
	}
}

func TestRoleCacheIsScopedPerActor(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	// A later actor signing in must not displace the admin's session role.
	staff := asActor("u-staff", "Staff")
	reg.EnsureActor(staff)
	if got := reg.ResolveCurrentRole(admin); got != RoleAdmin {
		t.Fatalf("admin session lost its role after another sign-in: %s", got)
	}
	if got := reg.ResolveCurrentRole(staff); got != RoleViewer {
		t.Fatalf("expected viewer for second actor, got %s", got)
	}

	// Deleting a user also drops their cached session role.
	reg.SetCurrentRole(staff, RoleInventoryStaff)
	if got := reg.ResolveCurrentRole(staff); got != RoleInventoryStaff {
		t.Fatalf("expected cached inventory_staff, got %s", got)
	}
	if !reg.DeleteUser(admin, "u-staff") {
		t.Fatal("DeleteUser failed")
	}
	if got := reg.ResolveCurrentRole(staff); got != RoleViewer {
		t.Fatalf("deleted actor should fall back to viewer, got %s", got)
	}
}

func TestAssignRoleRequiresManageRoles(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	staff := asActor("u-staff", "Staff")
	reg.EnsureActor(staff)

	// Viewer cannot hand out roles. The viewer's own session cache must be
	// active for the check to see their role.
	reg.SetCurrentRole(staff, RoleViewer)
	if reg.AssignRole(staff, "u-admin", RoleViewer, "") {
		t.Fatal("viewer must not assign roles")
	}

	// Admin can.
	reg.SetCurrentRole(admin, RoleAdmin)
	if !reg.AssignRole(admin, "u-staff", RoleInventoryStaff, "WH001") {
		t.Fatal("admin failed to assign role")
	}
	_, assignments := reg.Users(admin)
	a := assignments["u-staff"]
	if a.Role != RoleInventoryStaff || a.AssignedWarehouse != "WH001" {
		t.Fatalf("assignment not merged: %+v", a)
	}
	if a.AssignedBy != "u-admin" {
		t.Fatalf("assignedBy not stamped: %+v", a)
	}
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	if reg.AssignRole(admin, "u-x", "owner", "") {
		t.Fatal("unknown role must be rejected")
	}
}

func TestUserLifecycle(t *testing.T) {
	reg, log, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	if !reg.AddUser(admin, "u-new", UserDraft{Role: RoleInventoryStaff, Email: "New@Example.com", Name: "New User"}) {
		t.Fatal("AddUser failed")
	}
	if reg.AddUser(admin, "u-new", UserDraft{}) {
		t.Fatal("duplicate AddUser should fail")
	}

	if !reg.UpdateUser(admin, "u-new", UserDraft{Phone: "555-0100", Role: RoleWarehouseManager}) {
		t.Fatal("UpdateUser failed")
	}
	_, assignments := reg.Users(admin)
	a := assignments["u-new"]
	if a.Role != RoleWarehouseManager || a.Phone != "555-0100" {
		t.Fatalf("update not merged: %+v", a)
	}
	if a.Email != "new@example.com" {
		t.Fatalf("email not normalised: %q", a.Email)
	}

	if reg.UpdateUser(admin, "u-ghost", UserDraft{Name: "Ghost"}) {
		t.Fatal("updating a missing user should fail")
	}

	if !reg.DeleteUser(admin, "u-new") {
		t.Fatal("DeleteUser failed")
	}
	if reg.DeleteUser(admin, "u-new") {
		t.Fatal("deleting a missing user should fail")
	}

	// user_added, user_updated, user_deleted are all on the audit trail.
	for _, action := range []audit.Action{audit.ActionUserAdded, audit.ActionUserUpdated, audit.ActionUserDeleted} {
		if got := log.ByAction(admin, action); len(got) != 1 {
			t.Fatalf("expected one %s entry, got %d", action, len(got))
		}
	}
}

func TestDeleteUserSelfGuard(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	if reg.DeleteUser(admin, "u-admin") {
		t.Fatal("self-deletion must be refused")
	}
	ids, _ := reg.Users(admin)
	if len(ids) != 1 {
		t.Fatalf("assignment table changed by refused delete: %v", ids)
	}
}

func TestUserManagementRequiresManageUsers(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)
	viewer := asActor("u-viewer", "Viewer")
	reg.EnsureActor(viewer)
	reg.SetCurrentRole(viewer, RoleViewer)

	if reg.AddUser(viewer, "u-x", UserDraft{}) {
		t.Fatal("viewer must not add users")
	}
	if reg.UpdateUser(viewer, "u-admin", UserDraft{Name: "Hax"}) {
		t.Fatal("viewer must not update users")
	}
	if reg.DeleteUser(viewer, "u-admin") {
		t.Fatal("viewer must not delete users")
	}
}

func TestAssignedWarehouse(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)
	reg.AssignRole(admin, "u-wm", RoleWarehouseManager, "WH002")

	if got := reg.AssignedWarehouse(admin, "u-wm"); got != "WH002" {
		t.Fatalf("unexpected warehouse: %q", got)
	}
	if got := reg.AssignedWarehouse(admin, "u-none"); got != "" {
		t.Fatalf("expected empty warehouse for unknown user, got %q", got)
	}
}

func TestHasAnyPermission(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	admin := asActor("u-admin", "Admin")
	reg.EnsureActor(admin)

	if !reg.HasAnyPermission(admin, PermDeleteAllData, PermConductInventory) {
		t.Fatal("admin should match at least one permission")
	}
	if reg.HasAnyPermission(admin, PermConductInventory) {
		t.Fatal("admin does not hold conduct_inventory")
	}
}
