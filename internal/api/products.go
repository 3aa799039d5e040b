package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// ProductsHandler handles product catalogue endpoints.
type ProductsHandler struct {
	DB *sql.DB
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	UPC         string `json:"upc"`
}

func (req *productRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.UPC = strings.TrimSpace(req.UPC)
	if req.Name == "" {
		return "name required"
	}
	if req.UPC != "" && barcode.Classify(req.UPC) != barcode.KindUPC {
		return "upc must be 8 to 14 digits"
	}
	return ""
}

// List handles GET /api/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := store.ListProducts(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list products", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	jsonResponse(w, http.StatusOK, products)
}

// Create handles POST /api/products.
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	product, err := store.CreateProduct(r.Context(), h.DB, req.Name, req.Description, req.Category, req.UPC)
	if err != nil {
		slog.Warn("failed to create product", "error", err)
		jsonError(w, http.StatusConflict, "a product with this UPC already exists")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("product created", "user", claims.Username, "product", req.Name, "upc", req.UPC)
	jsonResponse(w, http.StatusCreated, product)
}

// Get handles GET /api/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := store.GetProduct(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get product", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if product == nil || product.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "product not found")
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id}.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if err := store.UpdateProduct(r.Context(), h.DB, id, req.Name, req.Description, req.Category, req.UPC); err != nil {
		slog.Warn("failed to update product", "error", err)
		jsonError(w, http.StatusConflict, "failed to update product")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("product updated", "user", claims.Username, "product", req.Name)
	product, _ := store.GetProduct(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := store.DeleteProduct(r.Context(), h.DB, id); err != nil {
		slog.Warn("failed to delete product", "id", id, "error", err)
		jsonError(w, http.StatusBadRequest, "cannot delete product: equipment still uses it or not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("product deleted", "user", claims.Username, "id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
