package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// EquipmentHandler handles equipment lookups and state changes.
type EquipmentHandler struct {
	DB        *sql.DB
	Inventory *inventory.Manager
}

type assignRequest struct {
	UserID int64 `json:"user_id"`
}

type transferRequest struct {
	LocationID int64 `json:"location_id"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type removeRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type removeByUPCRequest struct {
	UPC    string `json:"upc"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// List handles GET /api/equipment.
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Status:         q.Get("status"),
		UPC:            q.Get("upc"),
		IncludeRemoved: q.Get("include_removed") == "1",
	}
	if f.Status != "" && !model.ValidItemStatus(f.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}
	f.HolderID, _ = strconv.ParseInt(q.Get("holder"), 10, 64)
	f.ProductID, _ = strconv.ParseInt(q.Get("product"), 10, 64)

	items, err := store.ListItems(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list equipment", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Intake handles POST /api/equipment/intake.
func (h *EquipmentHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var req inventory.IntakeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Inventory.Intake(r.Context(), req, actorID(r))
	if err != nil {
		inventoryError(w, err, "intake")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/equipment/{uuid}.
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Inventory.Lookup(r.Context(), r.PathValue("uuid"))
	if err != nil {
		inventoryError(w, err, "lookup")
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}

// History handles GET /api/equipment/{uuid}/history.
func (h *EquipmentHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.Inventory.History(r.Context(), r.PathValue("uuid"))
	if err != nil {
		inventoryError(w, err, "history")
		return
	}
	jsonResponse(w, http.StatusOK, history)
}

// Assign handles POST /api/equipment/{uuid}/assign.
func (h *EquipmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil || req.UserID <= 0 {
		jsonError(w, http.StatusBadRequest, "user_id required")
		return
	}
	h.respondAfter(w, r, "assign", func() (*model.Transaction, error) {
		return h.Inventory.Assign(r.Context(), r.PathValue("uuid"), req.UserID, actorID(r))
	})
}

// Transfer handles POST /api/equipment/{uuid}/transfer.
func (h *EquipmentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil || req.LocationID <= 0 {
		jsonError(w, http.StatusBadRequest, "location_id required")
		return
	}
	h.respondAfter(w, r, "transfer", func() (*model.Transaction, error) {
		return h.Inventory.Transfer(r.Context(), r.PathValue("uuid"), req.LocationID, actorID(r))
	})
}

// Unassign handles POST /api/equipment/{uuid}/unassign.
func (h *EquipmentHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	h.respondAfter(w, r, "unassign", func() (*model.Transaction, error) {
		return h.Inventory.Unassign(r.Context(), r.PathValue("uuid"), actorID(r))
	})
}

// SetStatus handles POST /api/equipment/{uuid}/status.
func (h *EquipmentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respondAfter(w, r, "status", func() (*model.Transaction, error) {
		return h.Inventory.SetStatus(r.Context(), r.PathValue("uuid"), req.Status, req.Notes, actorID(r))
	})
}

// SaveNotes handles POST /api/equipment/{uuid}/notes.
func (h *EquipmentHandler) SaveNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respondAfter(w, r, "notes", func() (*model.Transaction, error) {
		return h.Inventory.SaveNotes(r.Context(), r.PathValue("uuid"), req.Notes, actorID(r))
	})
}

// Remove handles POST /api/equipment/{uuid}/remove. Removing an item that is
// already removed is not an error: the result reports success=false.
func (h *EquipmentHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req removeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Inventory.Remove(r.Context(), inventory.RemoveRequest{
		UUID:   r.PathValue("uuid"),
		Reason: req.Reason,
		Notes:  req.Notes,
	}, actorID(r))
	if err != nil {
		inventoryError(w, err, "remove")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// RemoveByUPC handles POST /api/equipment/remove-by-upc.
func (h *EquipmentHandler) RemoveByUPC(w http.ResponseWriter, r *http.Request) {
	var req removeByUPCRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Inventory.RemoveByUPC(r.Context(), req.UPC, req.Reason, req.Notes, actorID(r))
	if err != nil {
		inventoryError(w, err, "remove by upc")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// respondAfter runs a state change and answers with the item's fresh state,
// so stations always render what the server holds.
func (h *EquipmentHandler) respondAfter(w http.ResponseWriter, r *http.Request, op string, fn func() (*model.Transaction, error)) {
	if _, err := fn(); err != nil {
		inventoryError(w, err, op)
		return
	}
	detail, err := h.Inventory.Lookup(r.Context(), r.PathValue("uuid"))
	if err != nil {
		inventoryError(w, err, op)
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}
