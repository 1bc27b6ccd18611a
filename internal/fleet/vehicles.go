package fleet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/auth"
	"fleetdesk.org/internal/ids"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/rbac"
	"fleetdesk.org/internal/store"
)

// Vehicle is one fleet unit. WarehouseID binds it to its current location.
type Vehicle struct {
	ID          string  `json:"id"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Year        int     `json:"year"`
	VIN         string  `json:"vin,omitempty"`
	PlateNo     string  `json:"plateNo,omitempty"`
	WarehouseID string  `json:"warehouseId"`
	MarketValue float64 `json:"marketValue,omitempty"`
}

// TransferRecord is one entry of the persisted transfer log.
type TransferRecord struct {
	ID            string    `json:"id"`
	VehicleID     string    `json:"vehicleId"`
	FromWarehouse string    `json:"fromWarehouseId"`
	ToWarehouse   string    `json:"toWarehouseId"`
	TransferredBy string    `json:"transferredBy,omitempty"`
	TransferredAt time.Time `json:"transferredAt"`
	Notes         string    `json:"notes,omitempty"`
}

// VehicleRegistry is the persisted vehicle collection. Mutations are
// permission-gated and audited with field-level diffs.
type VehicleRegistry struct {
	mu      sync.Mutex
	store   store.Store
	log     *audit.Log
	perms   *rbac.Registry
	resolve auth.Resolver
	now     func() time.Time
}

// NewVehicleRegistry wires a VehicleRegistry.
func NewVehicleRegistry(s store.Store, log *audit.Log, perms *rbac.Registry, resolve auth.Resolver) *VehicleRegistry {
	return &VehicleRegistry{
		store:   s,
		log:     log,
		perms:   perms,
		resolve: resolve,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (r *VehicleRegistry) WithClock(now func() time.Time) *VehicleRegistry {
	r.now = now
	return r
}

// List returns every stored vehicle.
func (r *VehicleRegistry) List(ctx context.Context) []Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// FindByID returns the vehicle with the given id, or nil.
func (r *VehicleRegistry) FindByID(ctx context.Context, id string) *Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicles := r.load(ctx)
	if i := vehicleIndex(vehicles, id); i >= 0 {
		v := vehicles[i]
		return &v
	}
	return nil
}

// CountVehicles counts vehicles in one warehouse, or all of them when
// warehouseID is "all" or empty.
func (r *VehicleRegistry) CountVehicles(ctx context.Context, warehouseID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	vehicles := r.load(ctx)
	if warehouseID == "" || warehouseID == "all" {
		return len(vehicles)
	}
	n := 0
	for _, v := range vehicles {
		if v.WarehouseID == warehouseID {
			n++
		}
	}
	return n
}

// Add stores a new vehicle. An empty id gets a generated one; a duplicate
// id is rejected.
func (r *VehicleRegistry) Add(ctx context.Context, v Vehicle) *Vehicle {
	if !r.perms.HasPermission(ctx, rbac.PermAddVehicle) {
		return nil
	}
	if v.ID == "" {
		v.ID = ids.WithPrefix("VEH")
	}

	r.mu.Lock()
	vehicles := r.load(ctx)
	if vehicleIndex(vehicles, v.ID) >= 0 {
		r.mu.Unlock()
		return nil
	}
	vehicles = append(vehicles, v)
	r.save(ctx, vehicles)
	r.mu.Unlock()

	if r.log != nil {
		r.log.RecordVehicleChange(ctx, audit.ActionVehicleCreated, v.ID, nil, asMap(v), "")
	}
	return &v
}

// Update replaces the stored vehicle with the same id and audits the
// field-level diff.
func (r *VehicleRegistry) Update(ctx context.Context, v Vehicle) *Vehicle {
	if !r.perms.HasPermission(ctx, rbac.PermEditVehicle) {
		return nil
	}

	r.mu.Lock()
	vehicles := r.load(ctx)
	i := vehicleIndex(vehicles, v.ID)
	if i < 0 {
		r.mu.Unlock()
		return nil
	}
	old := vehicles[i]
	vehicles[i] = v
	r.save(ctx, vehicles)
	r.mu.Unlock()

	if r.log != nil {
		r.log.RecordVehicleChange(ctx, audit.ActionVehicleUpdated, v.ID, asMap(old), asMap(v), "")
	}
	return &v
}

// Remove deletes a vehicle.
func (r *VehicleRegistry) Remove(ctx context.Context, id string) bool {
	if !r.perms.HasPermission(ctx, rbac.PermDeleteVehicle) {
		return false
	}

	r.mu.Lock()
	vehicles := r.load(ctx)
	i := vehicleIndex(vehicles, id)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	old := vehicles[i]
	vehicles = append(vehicles[:i], vehicles[i+1:]...)
	r.save(ctx, vehicles)
	r.mu.Unlock()

	if r.log != nil {
		r.log.RecordVehicleChange(ctx, audit.ActionVehicleDeleted, id, asMap(old), nil, "")
	}
	return true
}

// Transfer moves a vehicle to another warehouse, appends to the transfer
// log and audits the move. A transfer to the current warehouse is refused.
func (r *VehicleRegistry) Transfer(ctx context.Context, vehicleID, toWarehouse, notes string) *TransferRecord {
	if !r.perms.HasPermission(ctx, rbac.PermTransferVehicle) {
		return nil
	}
	if toWarehouse == "" {
		return nil
	}

	actorName := ""
	if r.resolve != nil {
		if actor, ok := r.resolve(ctx); ok {
			actorName = actor.Name
			if actorName == "" {
				actorName = actor.ID
			}
		}
	}

	r.mu.Lock()
	vehicles := r.load(ctx)
	i := vehicleIndex(vehicles, vehicleID)
	if i < 0 || vehicles[i].WarehouseID == toWarehouse {
		r.mu.Unlock()
		return nil
	}
	rec := TransferRecord{
		ID:            ids.WithPrefix("TRF"),
		VehicleID:     vehicleID,
		FromWarehouse: vehicles[i].WarehouseID,
		ToWarehouse:   toWarehouse,
		TransferredBy: actorName,
		TransferredAt: r.now(),
		Notes:         notes,
	}
	vehicles[i].WarehouseID = toWarehouse
	r.save(ctx, vehicles)

	var transfers []TransferRecord
	store.ReadJSON(ctx, r.store, store.KeyTransferLog, &transfers)
	transfers = append(transfers, rec)
	if err := store.WriteJSON(ctx, r.store, store.KeyTransferLog, transfers); err != nil {
		obs.Warn("transfer log save failed", err)
	}
	r.mu.Unlock()

	if r.log != nil {
		r.log.Record(ctx, audit.ActionVehicleTransferred, audit.VehicleChange{
			VehicleID: vehicleID,
			Snapshot: map[string]any{
				"fromWarehouseId": rec.FromWarehouse,
				"toWarehouseId":   rec.ToWarehouse,
				"transferId":      rec.ID,
			},
		}, notes)
	}
	return &rec
}

// Transfers returns the persisted transfer log, oldest first.
func (r *VehicleRegistry) Transfers(ctx context.Context) []TransferRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var transfers []TransferRecord
	store.ReadJSON(ctx, r.store, store.KeyTransferLog, &transfers)
	return transfers
}

func vehicleIndex(vehicles []Vehicle, id string) int {
	for i := range vehicles {
		if vehicles[i].ID == id {
			return i
		}
	}
	return -1
}

// asMap reshapes a vehicle through its JSON form so audit diffing sees the
// wire field names.
func asMap(v Vehicle) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func (r *VehicleRegistry) load(ctx context.Context) []Vehicle {
	var vehicles []Vehicle
	store.ReadJSON(ctx, r.store, store.KeyVehicles, &vehicles)
	return vehicles
}

func (r *VehicleRegistry) save(ctx context.Context, vehicles []Vehicle) {
	if err := store.WriteJSON(ctx, r.store, store.KeyVehicles, vehicles); err != nil {
		obs.Warn("vehicle save failed", err)
	}
}
