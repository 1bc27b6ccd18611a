package audit

// Action identifies what kind of operation an audit entry records.
type Action string

const (
	ActionVehicleCreated     Action = "vehicle_created"
	ActionVehicleUpdated     Action = "vehicle_updated"
	ActionVehicleDeleted     Action = "vehicle_deleted"
	ActionVehicleTransferred Action = "vehicle_transferred"

	ActionWarehouseCreated Action = "warehouse_created"
	ActionWarehouseUpdated Action = "warehouse_updated"
	ActionWarehouseDeleted Action = "warehouse_deleted"

	ActionUserLogin    Action = "user_login"
	ActionUserLogout   Action = "user_logout"
	ActionRoleAssigned Action = "role_assigned"
	ActionUserAdded    Action = "user_added"
	ActionUserUpdated  Action = "user_updated"
	ActionUserDeleted  Action = "user_deleted"

	ActionCampaignCreated   Action = "campaign_created"
	ActionCampaignStarted   Action = "campaign_started"
	ActionCampaignCompleted Action = "campaign_completed"
	ActionCampaignApproved  Action = "campaign_approved"
	ActionCampaignCancelled Action = "campaign_cancelled"
	ActionInventoryRecorded Action = "inventory_recorded"

	ActionDataExported    Action = "data_exported"
	ActionDataImported    Action = "data_imported"
	ActionBulkDelete      Action = "bulk_delete"
	ActionSettingsChanged Action = "settings_changed"
	ActionBackupCreated   Action = "backup_created"
)

var actionNames = map[Action]string{
	ActionVehicleCreated:     "Vehicle created",
	ActionVehicleUpdated:     "Vehicle updated",
	ActionVehicleDeleted:     "Vehicle deleted",
	ActionVehicleTransferred: "Vehicle transferred",
	ActionWarehouseCreated:   "Warehouse created",
	ActionWarehouseUpdated:   "Warehouse updated",
	ActionWarehouseDeleted:   "Warehouse deleted",
	ActionUserLogin:          "User signed in",
	ActionUserLogout:         "User signed out",
	ActionRoleAssigned:       "Role assigned",
	ActionUserAdded:          "User added",
	ActionUserUpdated:        "User updated",
	ActionUserDeleted:        "User deleted",
	ActionCampaignCreated:    "Inventory campaign created",
	ActionCampaignStarted:    "Inventory campaign started",
	ActionCampaignCompleted:  "Inventory campaign completed",
	ActionCampaignApproved:   "Inventory campaign approved",
	ActionCampaignCancelled:  "Inventory campaign cancelled",
	ActionInventoryRecorded:  "Inventory result recorded",
	ActionDataExported:       "Data exported",
	ActionDataImported:       "Data imported",
	ActionBulkDelete:         "Bulk delete",
	ActionSettingsChanged:    "Settings changed",
	ActionBackupCreated:      "Backup created",
}

// Name returns the human-readable display name for the action. Unknown
// actions fall back to the raw key so free-form events still render.
func (a Action) Name() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return string(a)
}

// Details is the per-action payload attached to an entry. Each action family
// has one concrete payload shape; the marker method keeps arbitrary maps out
// of the log.
type Details interface {
	isDetails()
}

// FieldChange records one field-level difference between two record versions.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// VehicleChange is the payload for vehicle_* actions.
type VehicleChange struct {
	VehicleID string         `json:"vehicleId"`
	Changes   []FieldChange  `json:"changes,omitempty"`
	Snapshot  map[string]any `json:"snapshot,omitempty"`
}

// CampaignEvent is the payload for campaign_* actions.
type CampaignEvent struct {
	CampaignID string `json:"campaignId"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ResultEvent is the payload for inventory_recorded.
type ResultEvent struct {
	CampaignID string `json:"campaignId"`
	VehicleID  string `json:"vehicleId"`
	Status     string `json:"status"`
}

// RoleEvent is the payload for role_assigned.
type RoleEvent struct {
	UserID    string `json:"userId"`
	NewRole   string `json:"newRole"`
	Warehouse string `json:"assignedWarehouse,omitempty"`
}

// UserEvent is the payload for user_* management actions.
type UserEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// SystemEvent is the payload for data and settings actions.
type SystemEvent struct {
	Subject string `json:"subject,omitempty"`
	Count   int    `json:"count,omitempty"`
}

func (VehicleChange) isDetails() {}
func (CampaignEvent) isDetails() {}
func (ResultEvent) isDetails()   {}
func (RoleEvent) isDetails()     {}
func (UserEvent) isDetails()     {}
func (SystemEvent) isDetails()   {}
