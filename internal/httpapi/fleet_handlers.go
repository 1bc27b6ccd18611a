package httpapi

import (
	"net/http"
	"strings"

	"fleetdesk.org/internal/fleet"
)

type transferRequest struct {
	ToWarehouse string `json:"toWarehouseId"`
	Notes       string `json:"notes"`
}

func (a *API) handleWarehousesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.svc.Warehouses.List(r.Context()))
	case http.MethodPost:
		var req fleet.Warehouse
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		created := a.svc.Warehouses.Add(r.Context(), req)
		if created == nil {
			writeError(w, r, http.StatusForbidden, "warehouse could not be added")
			return
		}
		w.Header().Set("Location", "/v1/warehouses/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleWarehouseStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.svc.Warehouses.OccupancyStats(r.Context()))
}

func (a *API) handleWarehouseResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/warehouses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		wh := a.svc.Warehouses.FindByID(r.Context(), id)
		if wh == nil {
			writeError(w, r, http.StatusNotFound, "warehouse not found")
			return
		}
		writeJSON(w, http.StatusOK, wh)
	case http.MethodPatch:
		var req fleet.Warehouse
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.ID = id
		updated := a.svc.Warehouses.Update(r.Context(), req)
		if updated == nil {
			writeError(w, r, http.StatusForbidden, "warehouse could not be updated")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if !a.svc.Warehouses.Remove(r.Context(), id) {
			writeError(w, r, http.StatusForbidden, "warehouse could not be removed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleVehiclesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		vehicles := a.svc.Vehicles.List(r.Context())
		if vehicles == nil {
			vehicles = []fleet.Vehicle{}
		}
		writeJSON(w, http.StatusOK, vehicles)
	case http.MethodPost:
		var req fleet.Vehicle
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.Make == "" || req.Model == "" {
			writeError(w, r, http.StatusBadRequest, "make and model are required")
			return
		}
		created := a.svc.Vehicles.Add(r.Context(), req)
		if created == nil {
			writeError(w, r, http.StatusForbidden, "vehicle could not be added")
			return
		}
		w.Header().Set("Location", "/v1/vehicles/"+created.ID)
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleVehicleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/vehicles/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		a.vehicleByID(w, r, id)
	case "transfer":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transferVehicle(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) vehicleByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		v := a.svc.Vehicles.FindByID(r.Context(), id)
		if v == nil {
			writeError(w, r, http.StatusNotFound, "vehicle not found")
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodPut:
		var req fleet.Vehicle
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		req.ID = id
		updated := a.svc.Vehicles.Update(r.Context(), req)
		if updated == nil {
			writeError(w, r, http.StatusForbidden, "vehicle could not be updated")
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if !a.svc.Vehicles.Remove(r.Context(), id) {
			writeError(w, r, http.StatusForbidden, "vehicle could not be removed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) transferVehicle(w http.ResponseWriter, r *http.Request, id string) {
	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.ToWarehouse == "" {
		writeError(w, r, http.StatusBadRequest, "toWarehouseId is required")
		return
	}
	rec := a.svc.Vehicles.Transfer(r.Context(), id, req.ToWarehouse, req.Notes)
	if rec == nil {
		writeError(w, r, http.StatusConflict, "transfer rejected")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
