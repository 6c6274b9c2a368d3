// menu.go - обработчики каталога блюд: /api/menu.
package handlers

import (
	"net/http"

	apierrors "github.com/ngriffiths19/lunch-planner/internal/api/errors"
	"github.com/ngriffiths19/lunch-planner/internal/domain/model"
)

type menuUpsertRequest struct {
	ID       string  `json:"id" validate:"omitempty,uuid"`
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Active   *bool   `json:"active"`
}

type menuPatchRequest struct {
	ID       string  `json:"id" validate:"required,uuid"`
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Active   *bool   `json:"active"`
}

type menuListResponse struct {
	Items []menuItemDTO `json:"items"`
}

type menuCreateResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type menuDeleteResponse struct {
	OK       bool `json:"ok"`
	Archived bool `json:"archived,omitempty"`
	Deleted  bool `json:"deleted,omitempty"`
}

// ListMenu - GET /api/menu. Архивные позиции - только с ?all=1.
func (h *APIHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.List(r.Context(), queryFlag(r, "all"))
	if err != nil {
		h.writeServiceError(w, r, err, "ListMenu")
		return
	}
	writeJSON(w, http.StatusOK, menuListResponse{Items: mapMenuItems(items)})
}

// UpsertMenu - POST /api/menu. Без id - создание (или восстановление
// архивного блюда с тем же названием), с id - частичное изменение.
func (h *APIHandler) UpsertMenu(w http.ResponseWriter, r *http.Request) {
	var req menuUpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	if req.ID != "" {
		patch := model.MenuItemPatch{Name: req.Name, Category: req.Category, Active: req.Active}
		if err := h.menu.Update(r.Context(), req.ID, patch); err != nil {
			h.writeServiceError(w, r, err, "UpsertMenu")
			return
		}
		writeJSON(w, http.StatusOK, menuCreateResponse{OK: true, ID: req.ID})
		return
	}

	if req.Name == nil {
		apierrors.ValidationError(w, "name обязателен")
		return
	}
	category := ""
	if req.Category != nil {
		category = *req.Category
	}
	id, err := h.menu.Create(r.Context(), *req.Name, category)
	if err != nil {
		h.writeServiceError(w, r, err, "UpsertMenu")
		return
	}
	if req.Active != nil && !*req.Active {
		if err := h.menu.Archive(r.Context(), id); err != nil {
			h.writeServiceError(w, r, err, "UpsertMenu")
			return
		}
	}
	writeJSON(w, http.StatusOK, menuCreateResponse{OK: true, ID: id})
}

// PatchMenu - PATCH /api/menu.
func (h *APIHandler) PatchMenu(w http.ResponseWriter, r *http.Request) {
	var req menuPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	patch := model.MenuItemPatch{Name: req.Name, Category: req.Category, Active: req.Active}
	if err := h.menu.Update(r.Context(), req.ID, patch); err != nil {
		h.writeServiceError(w, r, err, "PatchMenu")
		return
	}
	writeOK(w)
}

// DeleteMenu - DELETE /api/menu?id=...[&hard=true].
// По умолчанию блюдо архивируется; hard=true удаляет физически (409,
// если блюдо используется).
func (h *APIHandler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		apierrors.ValidationError(w, "id обязателен")
		return
	}

	if queryFlag(r, "hard") {
		if err := h.menu.HardDelete(r.Context(), id); err != nil {
			h.writeServiceError(w, r, err, "DeleteMenu")
			return
		}
		writeJSON(w, http.StatusOK, menuDeleteResponse{OK: true, Deleted: true})
		return
	}

	if err := h.menu.Archive(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err, "DeleteMenu")
		return
	}
	writeJSON(w, http.StatusOK, menuDeleteResponse{OK: true, Archived: true})
}
