package httpapi

import (
	"net/http"
	"strings"

	"fleetdesk.org/internal/inventory"
)

type recordResultRequest struct {
	VehicleID      string `json:"vehicleId"`
	Status         string `json:"status"`
	Condition      string `json:"condition"`
	Notes          string `json:"notes"`
	Location       string `json:"location"`
	ActualLocation string `json:"actualLocation"`
}

type approveRequest struct {
	Notes string `json:"notes"`
}

func (a *API) handleCampaignsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.svc.Campaigns.Campaigns(r.Context()))
	case http.MethodPost:
		a.createCampaign(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCampaignCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	aID := r.URL.Query().Get("a")
	bID := r.URL.Query().Get("b")
	if aID == "" || bID == "" {
		writeError(w, r, http.StatusBadRequest, "query parameters a and b are required")
		return
	}
	cmp := a.svc.Campaigns.Compare(r.Context(), aID, bID)
	if cmp == nil {
		writeError(w, r, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (a *API) handleCampaignResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/campaigns/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, action, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getCampaign(w, r, id)
		case http.MethodDelete:
			a.deleteCampaign(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case "results":
		switch r.Method {
		case http.MethodGet:
			a.listResults(w, r, id)
		case http.MethodPut:
			a.recordResult(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
		}
	case "start", "complete", "approve", "cancel":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transitionCampaign(w, r, id, action)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	var draft inventory.Draft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(draft.Name) == "" || draft.StartDate == "" || draft.EndDate == "" {
		writeError(w, r, http.StatusBadRequest, "name, startDate and endDate are required")
		return
	}

	c := a.svc.Campaigns.Create(r.Context(), draft)
	if c == nil {
		writeError(w, r, http.StatusForbidden, "campaign management permission required")
		return
	}
	w.Header().Set("Location", "/v1/campaigns/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) getCampaign(w http.ResponseWriter, r *http.Request, id string) {
	c := a.svc.Campaigns.Get(r.Context(), id)
	if c == nil {
		writeError(w, r, http.StatusNotFound, "campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) deleteCampaign(w http.ResponseWriter, r *http.Request, id string) {
	if !a.svc.Campaigns.Delete(r.Context(), id) {
		writeError(w, r, http.StatusNotFound, "campaign not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) transitionCampaign(w http.ResponseWriter, r *http.Request, id, action string) {
	var c *inventory.Campaign
	switch action {
	case "start":
		c = a.svc.Campaigns.Start(r.Context(), id)
	case "complete":
		c = a.svc.Campaigns.Complete(r.Context(), id)
	case "approve":
		var req approveRequest
		// Approval notes are optional; an empty body is fine.
		if r.ContentLength > 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error())
				return
			}
		}
		c = a.svc.Campaigns.Approve(r.Context(), id, req.Notes)
	case "cancel":
		c = a.svc.Campaigns.Cancel(r.Context(), id)
	}
	if c == nil {
		writeError(w, r, http.StatusConflict, "transition rejected")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) listResults(w http.ResponseWriter, r *http.Request, id string) {
	if a.svc.Campaigns.Get(r.Context(), id) == nil {
		writeError(w, r, http.StatusNotFound, "campaign not found")
		return
	}
	results := a.svc.Campaigns.ResultsFor(r.Context(), id)
	if results == nil {
		results = map[string]inventory.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) recordResult(w http.ResponseWriter, r *http.Request, id string) {
	var req recordResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.VehicleID) == "" {
		writeError(w, r, http.StatusBadRequest, "vehicleId is required")
		return
	}

	res := a.svc.Campaigns.RecordResult(r.Context(), id, req.VehicleID, inventory.ResultDraft{
		Status:         inventory.ResultStatus(req.Status),
		Condition:      req.Condition,
		Notes:          req.Notes,
		Location:       req.Location,
		ActualLocation: req.ActualLocation,
	})
	if res == nil {
		writeError(w, r, http.StatusConflict, "recording rejected")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
