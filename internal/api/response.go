package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/oprema/internal/inventory"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// codeError writes a JSON error response carrying a machine-readable code.
func codeError(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]string{"error": message, "code": code})
}

// inventoryError maps an inventory failure to a response. Anything without a
// domain code is an internal error and is logged.
func inventoryError(w http.ResponseWriter, err error, op string) {
	code := inventory.CodeOf(err)
	if code == "" {
		slog.Error("inventory operation failed", "op", op, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	codeError(w, statusForCode(code), code, err.Error())
}

func statusForCode(code string) int {
	switch code {
	case inventory.CodeItemNotFound:
		return http.StatusNotFound
	case inventory.CodeAlreadyRemoved, inventory.CodeUPCWithQRExists, inventory.CodeItemCheckedOut:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
