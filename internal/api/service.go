package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/inventory"
)

// Web-service method names.
const (
	MethodLookupEquipment = "local_equipment_lookup_equipment"
	MethodValidateRemoval = "local_equipment_validate_removal"
	MethodProcessScan     = "local_equipment_process_scan"
)

// ServiceHandler dispatches named web-service calls.
type ServiceHandler struct {
	Inventory *inventory.Manager
}

// ServiceCall is the body of POST /api/service.
type ServiceCall struct {
	MethodName string      `json:"methodname"`
	Args       ServiceArgs `json:"args"`
}

// ServiceArgs holds the arguments of every method; each reads what it needs.
type ServiceArgs struct {
	UUID string `json:"uuid,omitempty"`
	Code string `json:"code,omitempty"`
}

// Call handles POST /api/service.
func (h *ServiceHandler) Call(w http.ResponseWriter, r *http.Request) {
	var call ServiceCall
	if err := decodeJSON(r, &call); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		result any
		err    error
	)
	switch call.MethodName {
	case MethodLookupEquipment:
		result, err = h.Inventory.Lookup(r.Context(), call.Args.UUID)
	case MethodValidateRemoval:
		result, err = h.Inventory.ValidateRemoval(r.Context(), call.Args.UUID)
	case MethodProcessScan:
		result, err = h.Inventory.ProcessScan(r.Context(), call.Args.Code)
	default:
		slog.Warn("unknown service method", "method", call.MethodName)
		codeError(w, http.StatusNotFound, "unknown_method", "unknown method "+call.MethodName)
		return
	}
	if err != nil {
		inventoryError(w, err, call.MethodName)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}
