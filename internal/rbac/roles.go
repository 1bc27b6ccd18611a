package rbac

// RoleID names one of the four built-in roles.
type RoleID string

const (
	RoleAdmin            RoleID = "admin"
	RoleWarehouseManager RoleID = "warehouse_manager"
	RoleInventoryStaff   RoleID = "inventory_staff"
	RoleViewer           RoleID = "viewer"
)

// Permission is an atomic capability key granted through role membership.
type Permission string

const (
	PermViewAllVehicles          Permission = "view_all_vehicles"
	PermViewOwnWarehouseVehicles Permission = "view_own_warehouse_vehicles"
	PermAddVehicle               Permission = "add_vehicle"
	PermEditVehicle              Permission = "edit_vehicle"
	PermDeleteVehicle            Permission = "delete_vehicle"
	PermViewAllWarehouses        Permission = "view_all_warehouses"
	PermViewOwnWarehouse         Permission = "view_own_warehouse"
	PermAddWarehouse             Permission = "add_warehouse"
	PermEditWarehouse            Permission = "edit_warehouse"
	PermDeleteWarehouse          Permission = "delete_warehouse"
	PermTransferVehicle          Permission = "transfer_vehicle"
	PermViewAllReports           Permission = "view_all_reports"
	PermViewOwnReports           Permission = "view_own_reports"
	PermExportReports            Permission = "export_reports"
	PermManageUsers              Permission = "manage_users"
	PermManageRoles              Permission = "manage_roles"
	PermViewAuditLog             Permission = "view_audit_log"
	PermManageCampaigns          Permission = "manage_inventory_campaigns"
	PermConductInventory         Permission = "conduct_inventory"
	PermApproveInventory         Permission = "approve_inventory"
	PermDeleteAllData            Permission = "delete_all_data"
	PermSystemSettings           Permission = "system_settings"
)

// Role is an immutable role definition. Roles are configuration, not data:
// only the assignment of a role to a user is persisted.
type Role struct {
	ID          RoleID
	DisplayName string
	Permissions map[Permission]struct{}
}

// Has reports membership of perm in the role's static permission set.
func (r Role) Has(perm Permission) bool {
	_, ok := r.Permissions[perm]
	return ok
}

var roles = map[RoleID]Role{
	RoleAdmin: newRole(RoleAdmin, "System Admin",
		PermViewAllVehicles,
		PermAddVehicle,
		PermEditVehicle,
		PermDeleteVehicle,
		PermViewAllWarehouses,
		PermAddWarehouse,
		PermEditWarehouse,
		PermDeleteWarehouse,
		PermTransferVehicle,
		PermViewAllReports,
		PermExportReports,
		PermManageUsers,
		PermManageRoles,
		PermViewAuditLog,
		PermManageCampaigns,
		PermApproveInventory,
		PermDeleteAllData,
		PermSystemSettings,
	),
	RoleWarehouseManager: newRole(RoleWarehouseManager, "Warehouse Manager",
		PermViewOwnWarehouseVehicles,
		PermAddVehicle,
		PermEditVehicle,
		PermViewOwnWarehouse,
		PermTransferVehicle,
		PermViewOwnReports,
		PermExportReports,
		PermManageCampaigns,
		PermViewAuditLog,
	),
	RoleInventoryStaff: newRole(RoleInventoryStaff, "Inventory Staff",
		PermViewAllVehicles,
		PermAddVehicle,
		PermEditVehicle,
		PermViewAllWarehouses,
		PermViewOwnReports,
		PermConductInventory,
	),
	RoleViewer: newRole(RoleViewer, "Viewer",
		PermViewAllVehicles,
		PermViewAllWarehouses,
		PermViewOwnReports,
	),
}

func newRole(id RoleID, name string, perms ...Permission) Role {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Role{ID: id, DisplayName: name, Permissions: set}
}

// Lookup returns the static definition for id.
func Lookup(id RoleID) (Role, bool) {
	r, ok := roles[id]
	return r, ok
}

// AllRoles lists every built-in role.
func AllRoles() []Role {
	out := make([]Role, 0, len(roles))
	for _, id := range []RoleID{RoleAdmin, RoleWarehouseManager, RoleInventoryStaff, RoleViewer} {
		out = append(out, roles[id])
	}
	return out
}
