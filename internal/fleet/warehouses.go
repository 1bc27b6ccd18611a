package fleet

import (
	"context"
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/ids"
	"fleetdesk.org/internal/obs"
	"fleetdesk.org/internal/rbac"
	"fleetdesk.org/internal/store"
)

//go:embed seed_warehouses.yaml
var warehouseSeed []byte

// Warehouse is one storage location.
type Warehouse struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Code     string `json:"code" yaml:"code"`
	Address  string `json:"address,omitempty" yaml:"address"`
	City     string `json:"city,omitempty" yaml:"city"`
	Manager  string `json:"manager,omitempty" yaml:"manager"`
	Phone    string `json:"phone,omitempty" yaml:"phone"`
	Capacity int    `json:"capacity" yaml:"capacity"`
	IsActive bool   `json:"isActive" yaml:"isActive"`
}

// Occupancy reports how full one warehouse is.
type Occupancy struct {
	WarehouseID string  `json:"warehouseId"`
	Name        string  `json:"name"`
	Capacity    int     `json:"capacity"`
	Vehicles    int     `json:"vehicles"`
	Utilisation float64 `json:"utilisation"`
}

// WarehouseRegistry is the persisted warehouse collection. When the store
// key is empty the built-in seed set is loaded and persisted first.
type WarehouseRegistry struct {
	mu       sync.Mutex
	store    store.Store
	log      *audit.Log
	perms    *rbac.Registry
	vehicles *VehicleRegistry
}

// NewWarehouseRegistry wires a WarehouseRegistry. vehicles may be nil when
// occupancy stats are not needed.
func NewWarehouseRegistry(s store.Store, log *audit.Log, perms *rbac.Registry, vehicles *VehicleRegistry) *WarehouseRegistry {
	return &WarehouseRegistry{store: s, log: log, perms: perms, vehicles: vehicles}
}

// List returns every warehouse, seeding defaults on first use.
func (r *WarehouseRegistry) List(ctx context.Context) []Warehouse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// FindByID returns the warehouse with the given id, or nil.
func (r *WarehouseRegistry) FindByID(ctx context.Context, id string) *Warehouse {
	r.mu.Lock()
	defer r.mu.Unlock()
	warehouses := r.load(ctx)
	if i := warehouseIndex(warehouses, id); i >= 0 {
		w := warehouses[i]
		return &w
	}
	return nil
}

// Add stores a new warehouse. An empty id gets a generated one.
func (r *WarehouseRegistry) Add(ctx context.Context, w Warehouse) *Warehouse {
	if !r.perms.HasPermission(ctx, rbac.PermAddWarehouse) {
		return nil
	}
	if w.Name == "" {
		return nil
	}
	if w.ID == "" {
		w.ID = ids.WithPrefix("WH")
	}

	r.mu.Lock()
	warehouses := r.load(ctx)
	if warehouseIndex(warehouses, w.ID) >= 0 {
		r.mu.Unlock()
		return nil
	}
	warehouses = append(warehouses, w)
	r.save(ctx, warehouses)
	r.mu.Unlock()

	r.record(ctx, audit.ActionWarehouseCreated, w)
	return &w
}

// Update replaces the stored warehouse with the same id.
func (r *WarehouseRegistry) Update(ctx context.Context, w Warehouse) *Warehouse {
	if !r.perms.HasPermission(ctx, rbac.PermEditWarehouse) {
		return nil
	}

	r.mu.Lock()
	warehouses := r.load(ctx)
	i := warehouseIndex(warehouses, w.ID)
	if i < 0 {
		r.mu.Unlock()
		return nil
	}
	warehouses[i] = w
	r.save(ctx, warehouses)
	r.mu.Unlock()

	r.record(ctx, audit.ActionWarehouseUpdated, w)
	return &w
}

// Remove deletes a warehouse. A warehouse that still holds vehicles is
// refused.
func (r *WarehouseRegistry) Remove(ctx context.Context, id string) bool {
	if !r.perms.HasPermission(ctx, rbac.PermDeleteWarehouse) {
		return false
	}
	if r.vehicles != nil && r.vehicles.CountVehicles(ctx, id) > 0 {
		return false
	}

	r.mu.Lock()
	warehouses := r.load(ctx)
	i := warehouseIndex(warehouses, id)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	old := warehouses[i]
	warehouses = append(warehouses[:i], warehouses[i+1:]...)
	r.save(ctx, warehouses)
	r.mu.Unlock()

	r.record(ctx, audit.ActionWarehouseDeleted, old)
	return true
}

// OccupancyStats reports the vehicle count and utilisation per warehouse.
func (r *WarehouseRegistry) OccupancyStats(ctx context.Context) []Occupancy {
	warehouses := r.List(ctx)
	out := make([]Occupancy, 0, len(warehouses))
	for _, w := range warehouses {
		n := 0
		if r.vehicles != nil {
			n = r.vehicles.CountVehicles(ctx, w.ID)
		}
		o := Occupancy{WarehouseID: w.ID, Name: w.Name, Capacity: w.Capacity, Vehicles: n}
		if w.Capacity > 0 {
			o.Utilisation = float64(n) / float64(w.Capacity)
		}
		out = append(out, o)
	}
	return out
}

func (r *WarehouseRegistry) record(ctx context.Context, action audit.Action, w Warehouse) {
	if r.log == nil {
		return
	}
	r.log.Record(ctx, action, audit.SystemEvent{Subject: w.ID + " " + w.Name}, "")
}

func warehouseIndex(warehouses []Warehouse, id string) int {
	for i := range warehouses {
		if warehouses[i].ID == id {
			return i
		}
	}
	return -1
}

// load returns the stored warehouses, falling back to the embedded seed
// set when the key has never been written.
func (r *WarehouseRegistry) load(ctx context.Context) []Warehouse {
	var warehouses []Warehouse
	if store.ReadJSON(ctx, r.store, store.KeyWarehouses, &warehouses) {
		return warehouses
	}

	var seed struct {
		Warehouses []Warehouse `yaml:"warehouses"`
	}
	if err := yaml.Unmarshal(warehouseSeed, &seed); err != nil {
		obs.Warn("warehouse seed parse failed", err)
		return nil
	}
	r.save(ctx, seed.Warehouses)
	return seed.Warehouses
}

func (r *WarehouseRegistry) save(ctx context.Context, warehouses []Warehouse) {
	if err := store.WriteJSON(ctx, r.store, store.KeyWarehouses, warehouses); err != nil {
		obs.Warn("warehouse save failed", err)
	}
}
