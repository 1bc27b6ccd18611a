package inventory

import (
	"context"
	"sync"
	"time"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/ids"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/rbac"
	"fleetdesk.org/internal/store"
)

// VehicleSource supplies the fleet size at campaign creation time. The
// count is snapshotted onto the campaign, never refreshed.
type VehicleSource interface {
	CountVehicles(ctx context.Context, warehouseID string) int
}

// Engine manages campaign lifecycles and per-vehicle inventory results.
// Mutating operations are permission-gated and audited; not-found and
// wrong-state conditions report nil, never an error.
type Engine struct {
	mu       sync.Mutex
	store    store.Store
	log      *audit.Log
	perms    *rbac.Registry
	vehicles VehicleSource
	resolve  auth.Resolver
	now      func() time.Time
}

// NewEngine wires an Engine with its injected collaborators.
func NewEngine(s store.Store, log *audit.Log, perms *rbac.Registry, vehicles VehicleSource, resolve auth.Resolver) *Engine {
	return &Engine{
		store:    s,
		log:      log,
		perms:    perms,
		vehicles: vehicles,
		resolve:  resolve,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Create registers a scheduled campaign. Name, start and end dates are
// required; totalVehicles is counted from the vehicle source filtered by
// the draft's warehouse.
func (e *Engine) Create(ctx context.Context, draft Draft) *Campaign {
	if !e.perms.HasPermission(ctx, rbac.PermManageCampaigns) {
		return nil
	}
	if draft.Name == "" || draft.StartDate == "" || draft.EndDate == "" {
		return nil
	}
	warehouseID := draft.WarehouseID
	if warehouseID == "" {
		warehouseID = WarehouseAll
	}

	total := 0
	if e.vehicles != nil {
		total = e.vehicles.CountVehicles(ctx, warehouseID)
	}

	c := Campaign{
		ID:            ids.WithPrefix("INV"),
		Name:          draft.Name,
		Description:   draft.Description,
		WarehouseID:   warehouseID,
		StartDate:     draft.StartDate,
		EndDate:       draft.EndDate,
		Status:        StatusScheduled,
		TotalVehicles: total,
		CreatedBy:     e.actorName(ctx),
		CreatedAt:     e.now(),
		Notes:         draft.Notes,
	}

	e.mu.Lock()
	campaigns := e.loadCampaigns(ctx)
	campaigns = append(campaigns, c)
	e.saveCampaigns(ctx, campaigns)
	e.mu.Unlock()

	e.record(ctx, audit.ActionCampaignCreated, c, "")
	return &c
}

// Start moves a scheduled campaign to in_progress and stamps startedAt.
func (e *Engine) Start(ctx context.Context, id string) *Campaign {
	return e.transition(ctx, id, audit.ActionCampaignStarted, func(c *Campaign) bool {
		if c.Status != StatusScheduled {
			return false
		}
		c.Status = StatusInProgress
		ts := e.now()
		c.StartedAt = &ts
		return true
	})
}

// RecordResult upserts the result for one vehicle in an in_progress
// campaign and recounts the parent's counters from the full result set.
func (e *Engine) RecordResult(ctx context.Context, campaignID, vehicleID string, draft ResultDraft) *Result {
	if !e.perms.HasAnyPermission(ctx, rbac.PermConductInventory, rbac.PermManageCampaigns) {
		return nil
	}
	if vehicleID == "" {
		return nil
	}

	status := draft.Status
	if status == "" {
		status = ResultPending
	}
	res := Result{
		Status:         status,
		Condition:      draft.Condition,
		Notes:          draft.Notes,
		Photos:         draft.Photos,
		InventoriedBy:  e.actorName(ctx),
		InventoriedAt:  e.now(),
		Location:       draft.Location,
		ActualLocation: draft.ActualLocation,
	}

	e.mu.Lock()
	campaigns := e.loadCampaigns(ctx)
	i := indexOf(campaigns, campaignID)
	if i < 0 || campaigns[i].Status != StatusInProgress {
		e.mu.Unlock()
		return nil
	}

	results := e.loadResults(ctx)
	byVehicle := results[campaignID]
	if byVehicle == nil {
		byVehicle = make(map[string]Result)
		results[campaignID] = byVehicle
	}
	byVehicle[vehicleID] = res
	e.saveResults(ctx, results)

	recount(&campaigns[i], byVehicle)
	e.saveCampaigns(ctx, campaigns)
	e.mu.Unlock()

	if e.log != nil {
		e.log.Record(ctx, audit.ActionInventoryRecorded, audit.ResultEvent{
			CampaignID: campaignID,
			VehicleID:  vehicleID,
			Status:     string(status),
		}, draft.Notes)
	}
	return &res
}

// Complete moves an in_progress campaign to completed after a final
// recount, and stamps completedAt.
func (e *Engine) Complete(ctx context.Context, id string) *Campaign {
	return e.transition(ctx, id, audit.ActionCampaignCompleted, func(c *Campaign) bool {
		if c.Status != StatusInProgress {
			return false
		}
		c.Status = StatusCompleted
		ts := e.now()
		c.CompletedAt = &ts
		return true
	})
}

// Approve moves a completed campaign to approved, stamping the approver's
// display name, the approval time and the notes.
func (e *Engine) Approve(ctx context.Context, id, notes string) *Campaign {
	if !e.perms.HasPermission(ctx, rbac.PermApproveInventory) {
		return nil
	}
	approver := e.actorName(ctx)
	return e.transition(ctx, id, audit.ActionCampaignApproved, func(c *Campaign) bool {
		if c.Status != StatusCompleted {
			return false
		}
		c.Status = StatusApproved
		c.ApprovedBy = approver
		ts := e.now()
		c.ApprovedAt = &ts
		c.ApprovalNotes = notes
		return true
	})
}

// Cancel moves any non-terminal campaign to cancelled.
func (e *Engine) Cancel(ctx context.Context, id string) *Campaign {
	return e.transition(ctx, id, audit.ActionCampaignCancelled, func(c *Campaign) bool {
		if c.Status.terminal() {
			return false
		}
		c.Status = StatusCancelled
		return true
	})
}

// Delete removes a campaign and its whole result set. The two keys are
// saved in separate cycles; a crash in between can orphan results.
func (e *Engine) Delete(ctx context.Context, id string) bool {
	if !e.perms.HasPermission(ctx, rbac.PermManageCampaigns) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	campaigns := e.loadCampaigns(ctx)
	i := indexOf(campaigns, id)
	if i < 0 {
		return false
	}
	campaigns = append(campaigns[:i], campaigns[i+1:]...)
	e.saveCampaigns(ctx, campaigns)

	results := e.loadResults(ctx)
	if _, ok := results[id]; ok {
		delete(results, id)
		e.saveResults(ctx, results)
	}
	return true
}

// Campaigns returns every stored campaign, oldest first.
func (e *Engine) Campaigns(ctx context.Context) []Campaign {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadCampaigns(ctx)
}

// Get returns the campaign with the given id, or nil.
func (e *Engine) Get(ctx context.Context, id string) *Campaign {
	e.mu.Lock()
	defer e.mu.Unlock()
	campaigns := e.loadCampaigns(ctx)
	if i := indexOf(campaigns, id); i >= 0 {
		c := campaigns[i]
		return &c
	}
	return nil
}

// ResultsFor returns the result set of one campaign keyed by vehicle id.
func (e *Engine) ResultsFor(ctx context.Context, campaignID string) map[string]Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadResults(ctx)[campaignID]
}

// VehicleStatus returns the recorded status for one vehicle, or pending
// when nothing has been recorded yet.
func (e *Engine) VehicleStatus(ctx context.Context, campaignID, vehicleID string) ResultStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if res, ok := e.loadResults(ctx)[campaignID][vehicleID]; ok {
		return res.Status
	}
	return ResultPending
}

// Compare classifies per-vehicle status changes between two campaigns'
// result sets. Nil when either campaign is missing.
func (e *Engine) Compare(ctx context.Context, aID, bID string) *Comparison {
	e.mu.Lock()
	defer e.mu.Unlock()
	campaigns := e.loadCampaigns(ctx)
	if indexOf(campaigns, aID) < 0 || indexOf(campaigns, bID) < 0 {
		return nil
	}
	results := e.loadResults(ctx)
	cmp := CompareResults(results[aID], results[bID])
	return &cmp
}

// transition applies a guarded status change under the lock and audits it
// when the guard accepted. Gated on campaign management.
func (e *Engine) transition(ctx context.Context, id string, action audit.Action, apply func(*Campaign) bool) *Campaign {
	if !e.perms.HasPermission(ctx, rbac.PermManageCampaigns) {
		return nil
	}

	e.mu.Lock()
	campaigns := e.loadCampaigns(ctx)
	i := indexOf(campaigns, id)
	if i < 0 {
		e.mu.Unlock()
		return nil
	}
	if !apply(&campaigns[i]) {
		e.mu.Unlock()
		return nil
	}
	if campaigns[i].Status == StatusCompleted {
		recount(&campaigns[i], e.loadResults(ctx)[id])
	}
	c := campaigns[i]
	e.saveCampaigns(ctx, campaigns)
	e.mu.Unlock()

	e.record(ctx, action, c, "")
	return &c
}

func (e *Engine) record(ctx context.Context, action audit.Action, c Campaign, notes string) {
	if e.log == nil {
		return
	}
	e.log.Record(ctx, action, audit.CampaignEvent{
		CampaignID: c.ID,
		Name:       c.Name,
		Status:     string(c.Status),
	}, notes)
}

func (e *Engine) actorName(ctx context.Context) string {
	if e.resolve == nil {
		return ""
	}
	actor, ok := e.resolve(ctx)
	if !ok {
		return ""
	}
	if actor.Name != "" {
		return actor.Name
	}
	return actor.ID
}

// recount rebuilds the cached counters from the full result set. Always a
// full pass, never incremental, so repeated or out-of-order recordings
// cannot drift the counts.
func recount(c *Campaign, byVehicle map[string]Result) {
	c.InventoriedCount = len(byVehicle)
	c.FoundCount, c.MissingCount, c.DamagedCount = 0, 0, 0
	for _, res := range byVehicle {
		switch res.Status {
		case ResultFound:
			c.FoundCount++
		case ResultMissing:
			c.MissingCount++
		case ResultDamaged:
			c.DamagedCount++
		}
	}
}

func indexOf(campaigns []Campaign, id string) int {
	for i := range campaigns {
		if campaigns[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) loadCampaigns(ctx context.Context) []Campaign {
	var campaigns []Campaign
	store.ReadJSON(ctx, e.store, store.KeyCampaigns, &campaigns)
	return campaigns
}

func (e *Engine) saveCampaigns(ctx context.Context, campaigns []Campaign) {
	if err := store.WriteJSON(ctx, e.store, store.KeyCampaigns, campaigns); err != nil {
		obs.Warn("campaign save failed", err)
	}
}

func (e *Engine) loadResults(ctx context.Context) map[string]map[string]Result {
	results := make(map[string]map[string]Result)
	store.ReadJSON(ctx, e.store, store.KeyResults, &results)
	return results
}

func (e *Engine) saveResults(ctx context.Context, results map[string]map[string]Result) {
	if err := store.WriteJSON(ctx, e.store, store.KeyResults, results); err != nil {
		obs.Warn("inventory results save failed", err)
	}
}
