package httpapi

import (
	"net/http"
	"time"

	"fleetdesk.org/internal/audit"
	"fleetdesk.org/internal/rbac"
)

type pruneRequest struct {
	DaysToKeep int `json:"daysToKeep"`
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.svc.Users.HasPermission(r.Context(), rbac.PermViewAuditLog) {
		writeError(w, r, http.StatusForbidden, "audit log permission required")
		return
	}

	q := r.URL.Query()
	var entries []audit.Entry
	switch {
	case q.Get("action") != "":
		entries = a.svc.Audit.ByAction(r.Context(), audit.Action(q.Get("action")))
	case q.Get("actor") != "":
		entries = a.svc.Audit.ByActor(r.Context(), q.Get("actor"))
	case q.Get("vehicle") != "":
		entries = a.svc.Audit.VehicleHistory(r.Context(), q.Get("vehicle"))
	case q.Get("from") != "" || q.Get("to") != "":
		from, to, err := parseDateRange(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		entries = a.svc.Audit.ByDateRange(r.Context(), from, to)
	default:
		entries = a.svc.Audit.Entries(r.Context())
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleAuditPrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.svc.Users.HasPermission(r.Context(), rbac.PermDeleteAllData) {
		writeError(w, r, http.StatusForbidden, "data administration permission required")
		return
	}

	var req pruneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DaysToKeep <= 0 {
		writeError(w, r, http.StatusBadRequest, "daysToKeep must be greater than zero")
		return
	}
	removed := a.svc.Audit.Prune(r.Context(), req.DaysToKeep)
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func parseDateRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
