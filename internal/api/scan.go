package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/oprema/internal/imaging"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/scanner"
)

// ScanUploadLimit caps a scan request body: one frame plus multipart overhead.
const ScanUploadLimit = imaging.MaxUploadBytes + 1<<20

// ScanHandler decodes barcodes from uploaded camera frames.
type ScanHandler struct {
	Inventory *inventory.Manager
	Detector  scanner.Detector
}

type scanResponse struct {
	Detection scanner.Detection     `json:"detection"`
	Result    *inventory.ScanResult `json:"result"`
}

// Scan handles POST /api/scan with a multipart "image" field.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			codeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "image too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	img, _, err := imaging.Decode(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := scanner.DetectFrame(h.Detector, img)
	if err != nil {
		slog.Error("barcode detection failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "barcode detection failed")
		return
	}
	if len(found) == 0 {
		codeError(w, http.StatusUnprocessableEntity, "no_match", scanner.ErrNoMatch.Error())
		return
	}

	result, err := h.Inventory.ProcessScan(r.Context(), found[0].Text)
	if err != nil {
		inventoryError(w, err, "scan")
		return
	}
	jsonResponse(w, http.StatusOK, scanResponse{Detection: found[0], Result: result})
}
