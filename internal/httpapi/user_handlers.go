package httpapi

import (
	"net/http"
	"strings"

	"incidentdesk.org/internal/directory"
	"incidentdesk.org/internal/rbac"
)

type createUserRequest struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password"`
	PrimaryRole string   `json:"primary_role"`
	Roles       []string `json:"roles"`
}

type updateUserRequest struct {
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	PrimaryRole *string `json:"primary_role"`
	Status      *string `json:"status"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"principal":       p,
		"effective_roles": p.EffectiveRoles(),
	})
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.CreateUser(r.Context(), p, directory.CreateInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		PrimaryRole: req.PrimaryRole,
		Roles:       req.Roles,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	users, err := a.users.ListUsers(r.Context(), p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []directory.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if rest == "" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if id, ok := strings.CutSuffix(rest, "/roles"); ok && !strings.Contains(id, "/") && id != "" {
		a.handleUserRoles(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, rest)
	case http.MethodPatch:
		a.updateUser(w, r, rest)
	case http.MethodDelete:
		a.deleteUser(w, r, rest)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	user, err := a.users.GetUser(r.Context(), p, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := directory.Update{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Status:      req.Status,
	}
	if req.PrimaryRole != nil {
		role := rbac.Role(*req.PrimaryRole)
		upd.PrimaryRole = &role
	}
	user, err := a.users.UpdateUser(r.Context(), p, id, upd)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	// Role or status edits must not ride on a stale cached principal.
	a.sessions.InvalidateUser(id)
	writeJSON(w, http.StatusOK, user)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	if err := a.users.DeleteUser(r.Context(), p, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.sessions.InvalidateUser(id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
		return
	}
	p, ok := principalOr401(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var err error
	if r.Method == http.MethodPost {
		err = a.users.AssignRole(r.Context(), p, id, req.Role)
	} else {
		err = a.users.RemoveRole(r.Context(), p, id, req.Role)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.sessions.InvalidateUser(id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
