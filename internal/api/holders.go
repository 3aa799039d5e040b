package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// HoldersHandler handles holder CRUD endpoints.
type HoldersHandler struct {
	DB *sql.DB
}

type createHolderRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type updateHolderRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/holders.
func (h *HoldersHandler) List(w http.ResponseWriter, r *http.Request) {
	holderType := r.URL.Query().Get("type")
	holders, err := store.ListHolders(r.Context(), h.DB, holderType)
	if err != nil {
		slog.Error("failed to list holders", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list holders")
		return
	}
	if holders == nil {
		holders = []model.Holder{}
	}
	jsonResponse(w, http.StatusOK, holders)
}

// Create handles POST /api/holders. Person holders are created together with
// their user, so only locations can be created here.
func (h *HoldersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHolderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if req.Type == "" {
		req.Type = model.HolderTypeLocation
	}
	if req.Type != model.HolderTypeLocation {
		jsonError(w, http.StatusBadRequest, "only locations can be created directly; create a user for a person")
		return
	}

	holder, err := store.CreateHolder(r.Context(), h.DB, req.Name, req.Type)
	if err != nil {
		slog.Error("failed to create holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create holder")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder created", "user", claims.Username, "holder", req.Name, "type", req.Type)
	jsonResponse(w, http.StatusCreated, holder)
}

// Get handles GET /api/holders/{id}.
func (h *HoldersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	holder, err := store.GetHolder(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get holder")
		return
	}
	if holder == nil || holder.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "holder not found")
		return
	}

	jsonResponse(w, http.StatusOK, holder)
}

// Update handles PUT /api/holders/{id}.
func (h *HoldersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	var req updateHolderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateHolder(r.Context(), h.DB, id, req.Name); err != nil {
		slog.Error("failed to update holder", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update holder")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder updated", "user", claims.Username, "holder", req.Name)
	holder, _ := store.GetHolder(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, holder)
}

// Delete handles DELETE /api/holders/{id}.
func (h *HoldersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	holder, _ := store.GetHolder(r.Context(), h.DB, id)
	holderName := fmt.Sprintf("id:%d", id)
	if holder != nil {
		holderName = holder.Name
	}

	if err := store.DeleteHolder(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete holder", "holder", holderName, "error", err)
		if errors.Is(err, store.ErrHolderHasItems) {
			jsonError(w, http.StatusConflict, "cannot delete holder: still holds equipment")
			return
		}
		jsonError(w, http.StatusBadRequest, "cannot delete holder")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("holder deleted", "user", claims.Username, "holder", holderName)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "holder deleted"})
}

// Equipment handles GET /api/holders/{id}/equipment.
func (h *HoldersHandler) Equipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{HolderID: id})
	if err != nil {
		slog.Error("failed to list holder equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list holder equipment")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}
