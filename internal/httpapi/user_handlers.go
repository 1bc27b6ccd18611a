package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"fleetdesk.org/internal/rbac"
)

type roleResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Permissions []string `json:"permissions"`
}

type userRequest struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Warehouse string `json:"warehouse"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
}

type assignRoleRequest struct {
	Role      string `json:"role"`
	Warehouse string `json:"warehouse"`
}

type userResponse struct {
	ID string `json:"id"`
	rbac.Assignment
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	roles := rbac.AllRoles()
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		perms := make([]string, 0, len(role.Permissions))
		for p := range role.Permissions {
			perms = append(perms, string(p))
		}
		sort.Strings(perms)
		out = append(out, roleResponse{
			ID:          string(role.ID),
			DisplayName: role.DisplayName,
			Permissions: perms,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids, assignments := a.svc.Users.Users(r.Context())
		out := make([]userResponse, 0, len(ids))
		for _, id := range ids {
			out = append(out, userResponse{ID: id, Assignment: assignments[id]})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		a.addUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		switch r.Method {
		case http.MethodPatch:
			a.updateUser(w, r, id)
		case http.MethodDelete:
			a.deleteUser(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
		}
	case "role":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.assignRole(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) addUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, r, http.StatusBadRequest, "id is required")
		return
	}
	ok := a.svc.Users.AddUser(r.Context(), req.ID, rbac.UserDraft{
		Role:      rbac.RoleID(req.Role),
		Warehouse: req.Warehouse,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Status:    req.Status,
	})
	if !ok {
		writeError(w, r, http.StatusForbidden, "user could not be added")
		return
	}
	w.Header().Set("Location", "/v1/users/"+req.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ok := a.svc.Users.UpdateUser(r.Context(), id, rbac.UserDraft{
		Role:      rbac.RoleID(req.Role),
		Warehouse: req.Warehouse,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		Status:    req.Status,
	})
	if !ok {
		writeError(w, r, http.StatusForbidden, "user could not be updated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if !a.svc.Users.DeleteUser(r.Context(), id) {
		writeError(w, r, http.StatusForbidden, "user could not be deleted")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, id string) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		writeError(w, r, http.StatusBadRequest, "role is required")
		return
	}
	if !a.svc.Users.AssignRole(r.Context(), id, rbac.RoleID(req.Role), req.Warehouse) {
		writeError(w, r, http.StatusForbidden, "role could not be assigned")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "role": req.Role})
}
