package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// Check-in/out form actions.
const (
	ActionSearchUsers      = "search_users"
	ActionGetLocations     = "get_locations"
	ActionUpdateAssignment = "update_assignment"
	ActionUpdateNotes      = "update_notes"
)

// Assignment targets for update_assignment.
const (
	AssignToUser     = "user"
	AssignToLocation = "location"
	AssignNone       = "unassign"
)

const userSearchLimit = 10

// CheckInOutHandler serves the form-encoded check-in/out endpoint used by
// scan stations.
type CheckInOutHandler struct {
	DB        *sql.DB
	Inventory *inventory.Manager
}

// UserMatch is a search_users result row.
type UserMatch struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
}

// Handle handles POST /api/checkinout.
func (h *CheckInOutHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid form")
		return
	}

	switch action := r.PostFormValue("action"); action {
	case ActionSearchUsers:
		h.searchUsers(w, r)
	case ActionGetLocations:
		h.locations(w, r)
	case ActionUpdateAssignment:
		h.updateAssignment(w, r)
	case ActionUpdateNotes:
		h.updateNotes(w, r)
	default:
		codeError(w, http.StatusBadRequest, inventory.CodeInvalidRequest, "unknown action "+strconv.Quote(action))
	}
}

func (h *CheckInOutHandler) searchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.PostFormValue("query"))
	matches := []UserMatch{}
	if query != "" {
		users, err := store.SearchUsers(r.Context(), h.DB, query, userSearchLimit)
		if err != nil {
			slog.Error("failed to search users", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to search users")
			return
		}
		for _, u := range users {
			matches = append(matches, UserMatch{ID: u.ID, Username: u.Username, FullName: u.FullName})
		}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "users": matches})
}

func (h *CheckInOutHandler) locations(w http.ResponseWriter, r *http.Request) {
	locations, err := store.ListHolders(r.Context(), h.DB, model.HolderTypeLocation)
	if err != nil {
		slog.Error("failed to list locations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Holder{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "locations": locations})
}

func (h *CheckInOutHandler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uuid := r.PostFormValue("uuid")
	actor := actorID(r)

	var err error
	switch r.PostFormValue("assignment_type") {
	case AssignToUser:
		userID, perr := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
		if perr != nil {
			codeError(w, http.StatusBadRequest, inventory.CodeInvalidRequest, "user_id required")
			return
		}
		_, err = h.Inventory.Assign(ctx, uuid, userID, actor)
	case AssignToLocation:
		locationID, perr := strconv.ParseInt(r.PostFormValue("location_id"), 10, 64)
		if perr != nil {
			codeError(w, http.StatusBadRequest, inventory.CodeInvalidRequest, "location_id required")
			return
		}
		_, err = h.Inventory.Transfer(ctx, uuid, locationID, actor)
	case AssignNone:
		_, err = h.Inventory.Unassign(ctx, uuid, actor)
	default:
		codeError(w, http.StatusBadRequest, inventory.CodeInvalidRequest, "assignment_type must be user, location or unassign")
		return
	}
	if err != nil {
		inventoryError(w, err, ActionUpdateAssignment)
		return
	}
	h.respondItem(w, r, uuid)
}

func (h *CheckInOutHandler) updateNotes(w http.ResponseWriter, r *http.Request) {
	uuid := r.PostFormValue("uuid")
	if _, err := h.Inventory.SaveNotes(r.Context(), uuid, r.PostFormValue("notes"), actorID(r)); err != nil {
		inventoryError(w, err, ActionUpdateNotes)
		return
	}
	h.respondItem(w, r, uuid)
}

func (h *CheckInOutHandler) respondItem(w http.ResponseWriter, r *http.Request, uuid string) {
	detail, err := h.Inventory.Lookup(r.Context(), uuid)
	if err != nil {
		inventoryError(w, err, "lookup")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "item": detail})
}
