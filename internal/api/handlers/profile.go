// profile.go - профиль пользователя: /api/profile и /api/whoami.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/api/middleware"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

type profileResponse struct {
	User    *principalDTO `json:"user"`
	Profile *profileDTO   `json:"profile"`
}

type whoamiResponse struct {
	User *principalDTO `json:"user"`
}

type profileUpdateResponse struct {
	OK       bool `json:"ok"`
	NoChange bool `json:"noChange,omitempty"`
}

// roleRequest - тело PATCH /api/profile и PATCH /api/admin/users.
type roleRequest struct {
	ID   string `json:"id" validate:"required"`
	Role string `json:"role" validate:"required,oneof=staff catering admin"`
}

// Whoami - GET /api/whoami. Для анонимного запроса user = null.
func (h *APIHandler) Whoami(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, whoamiResponse{User: mapPrincipal(middleware.PrincipalFromContext(r.Context()))})
}

// GetProfile - GET /api/profile. profile = null, если профиль ещё не создан.
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	userID := middleware.UserIDFromContext(r.Context())

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err, "GetProfile")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{User: mapPrincipal(p), Profile: mapProfile(profile)})
}

// UpdateProfile - POST /api/profile. Меняются только переданные поля,
// null очищает поле. Роль через этот путь не меняется.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := readJSON(w, r, &body); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	patch, err := parseProfilePatch(body)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	noChange, err := h.profiles.UpsertSelf(r.Context(), middleware.UserIDFromContext(r.Context()), patch)
	if err != nil {
		h.writeServiceError(w, r, err, "UpdateProfile")
		return
	}
	writeJSON(w, http.StatusOK, profileUpdateResponse{OK: true, NoChange: noChange})
}

// SetProfileRole - PATCH /api/profile (только admin).
func (h *APIHandler) SetProfileRole(w http.ResponseWriter, r *http.Request) {
	h.setRole(w, r, h.profiles.SetRole, "SetProfileRole")
}

type setRoleFunc func(ctx context.Context, actorID, userID, role string) error

func (h *APIHandler) setRole(w http.ResponseWriter, r *http.Request, set setRoleFunc, op string) {
	var req roleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	actorID := middleware.UserIDFromContext(r.Context())
	if err := set(r.Context(), actorID, req.ID, req.Role); err != nil {
		h.writeServiceError(w, r, err, op)
		return
	}
	writeOK(w)
}

// parseProfilePatch разбирает тело self-service обновления профиля.
// Отсутствующий ключ не меняет поле, null очищает его.
func parseProfilePatch(body map[string]json.RawMessage) (model.ProfilePatch, error) {
	var patch model.ProfilePatch
	if body == nil {
		return patch, fmt.Errorf("ожидается JSON-объект")
	}
	if _, ok := body["role"]; ok {
		return patch, fmt.Errorf("role нельзя изменить через профиль")
	}

	fields := map[string]*model.OptionalString{
		"name":         &patch.Name,
		"locationId":   &patch.LocationID,
		"lunchSession": &patch.LunchSession,
	}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		dst, ok := fields[k]
		if !ok {
			return patch, fmt.Errorf("неизвестное поле %q", k)
		}
		v, err := optionalString(body[k])
		if err != nil {
			return patch, fmt.Errorf("%s: %v", k, err)
		}
		*dst = v
	}
	return patch, nil
}

func optionalString(raw json.RawMessage) (model.OptionalString, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return model.OptionalString{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.OptionalString{}, fmt.Errorf("ожидается строка или null")
	}
	return model.OptionalString{Set: true, Value: &s}, nil
}
