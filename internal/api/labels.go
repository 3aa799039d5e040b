package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/labels"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// LabelsHandler serves QR labels and the label print queue.
type LabelsHandler struct {
	DB        *sql.DB
	Inventory *inventory.Manager
}

type markPrintedRequest struct {
	ItemIDs []int64 `json:"item_ids"`
}

func (h *LabelsHandler) base(r *http.Request) string {
	base, err := store.GetSetting(r.Context(), h.DB, store.SettingLabelBase)
	if err != nil {
		slog.Warn("failed to read label base URL", "error", err)
	}
	return base
}

// Label handles GET /api/equipment/{uuid}/label.png.
func (h *LabelsHandler) Label(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Inventory.Lookup(r.Context(), r.PathValue("uuid"))
	if err != nil {
		inventoryError(w, err, "label")
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 || size > 2048 {
		size = labels.DefaultQRSize
	}
	png, err := labels.QRCode(h.base(r), detail.Item.UUID, size)
	if err != nil {
		slog.Error("failed to render label", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render label")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=86400")
	w.Write(png)
}

// Queue handles GET /api/printqueue.
func (h *LabelsHandler) Queue(w http.ResponseWriter, r *http.Request) {
	jobs, err := store.ListPrintQueue(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list print queue", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list print queue")
		return
	}
	if jobs == nil {
		jobs = []model.PrintJob{}
	}
	jsonResponse(w, http.StatusOK, jobs)
}

// Sheet handles GET /api/printqueue/sheet.pdf. Rendering a sheet does not
// mark anything printed.
func (h *LabelsHandler) Sheet(w http.ResponseWriter, r *http.Request) {
	jobs, err := store.ListPrintQueue(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list print queue", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list print queue")
		return
	}

	entries := make([]labels.Entry, 0, len(jobs))
	for _, j := range jobs {
		entries = append(entries, labels.Entry{UUID: j.UUID, Caption: j.ProductName})
	}
	pdf, err := labels.Sheet(h.base(r), entries, labels.DefaultLayout())
	if err != nil {
		slog.Error("failed to render label sheet", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to render label sheet")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="labels.pdf"`)
	w.Write(pdf)
}

// MarkPrinted handles DELETE /api/printqueue. With no item IDs the whole
// queue is marked printed.
func (h *LabelsHandler) MarkPrinted(w http.ResponseWriter, r *http.Request) {
	var req markPrintedRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ids := req.ItemIDs
	if len(ids) == 0 {
		jobs, err := store.ListPrintQueue(r.Context(), h.DB)
		if err != nil {
			slog.Error("failed to list print queue", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to list print queue")
			return
		}
		for _, j := range jobs {
			ids = append(ids, j.ItemID)
		}
	}

	marked, err := store.MarkLabelsPrinted(r.Context(), h.DB, ids)
	if err != nil {
		slog.Error("failed to mark labels printed", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to mark labels printed")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("labels printed", "user", claims.Username, "count", marked)
	jsonResponse(w, http.StatusOK, map[string]int{"marked": marked})
}
