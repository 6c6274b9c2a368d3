// admin_users.go - управление пользователями: /api/admin/users.
package handlers

import (
	"net/http"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
)

type adminUsersResponse struct {
	Users []directoryUserDTO `json:"users"`
}

// ListAdminUsers - GET /api/admin/users: пользователи Keycloak с ролями.
func (h *APIHandler) ListAdminUsers(w http.ResponseWriter, r *http.Request) {
	if h.adminUsers == nil {
		apierrors.IDPUnavailable(w, "Keycloak Admin API не настроен")
		return
	}

	users, err := h.adminUsers.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "ListAdminUsers")
		return
	}

	out := make([]directoryUserDTO, len(users))
	for i, u := range users {
		out[i] = mapDirectoryUser(u)
	}
	writeJSON(w, http.StatusOK, adminUsersResponse{Users: out})
}

// SetAdminUserRole - PATCH /api/admin/users.
func (h *APIHandler) SetAdminUserRole(w http.ResponseWriter, r *http.Request) {
	set := h.profiles.SetRole
	if h.adminUsers != nil {
		set = h.adminUsers.SetRole
	}
	h.setRole(w, r, set, "SetAdminUserRole")
}
