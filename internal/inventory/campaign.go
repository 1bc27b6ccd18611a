package inventory

import "time"

// Status is the lifecycle state of a campaign. Transitions run strictly
// forward except to cancelled; approved and cancelled are terminal.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusCancelled  Status = "cancelled"
)

// ResultStatus classifies one vehicle within one campaign. A vehicle with
// no stored result is implicitly pending.
type ResultStatus string

const (
	ResultFound   ResultStatus = "found"
	ResultMissing ResultStatus = "missing"
	ResultDamaged ResultStatus = "damaged"
	ResultMoved   ResultStatus = "moved"
	ResultPending ResultStatus = "pending"
)

// Campaign is one discrete stock-take. The counters are cached summaries
// recomputed from the result set on every change; they are never updated
// incrementally.
type Campaign struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	WarehouseID      string     `json:"warehouseId"`
	StartDate        string     `json:"startDate"`
	EndDate          string     `json:"endDate"`
	Status           Status     `json:"status"`
	TotalVehicles    int        `json:"totalVehicles"`
	InventoriedCount int        `json:"inventoriedCount"`
	FoundCount       int        `json:"foundCount"`
	MissingCount     int        `json:"missingCount"`
	DamagedCount     int        `json:"damagedCount"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	ApprovedBy       string     `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	ApprovalNotes    string     `json:"approvalNotes,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// Draft carries the caller-supplied fields for a new campaign.
type Draft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	WarehouseID string `json:"warehouseId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Notes       string `json:"notes"`
}

// Result is the stored outcome for one (campaign, vehicle) pair.
// Re-recording overwrites the previous result.
type Result struct {
	Status         ResultStatus `json:"status"`
	Condition      string       `json:"condition,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	Photos         []string     `json:"photos,omitempty"`
	InventoriedBy  string       `json:"inventoriedBy,omitempty"`
	InventoriedAt  time.Time    `json:"inventoriedAt"`
	Location       string       `json:"location,omitempty"`
	ActualLocation string       `json:"actualLocation,omitempty"`
}

// ResultDraft carries the caller-supplied fields for one recording.
type ResultDraft struct {
	Status         ResultStatus `json:"status"`
	Condition      string       `json:"condition"`
	Notes          string       `json:"notes"`
	Photos         []string     `json:"photos"`
	Location       string       `json:"location"`
	ActualLocation string       `json:"actualLocation"`
}

// WarehouseAll selects every vehicle regardless of warehouse.
const WarehouseAll = "all"

func (s Status) terminal() bool {
	return s == StatusApproved || s == StatusCancelled
}
