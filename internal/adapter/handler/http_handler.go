package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/core/service"
)

type HTTPHandler struct {
	products *service.ProductService
	orders   *service.OrderService
	logger   *zap.Logger
}

func NewHTTPHandler(products *service.ProductService, orders *service.OrderService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{products: products, orders: orders, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("PUT /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)
	mux.HandleFunc("POST /api/products/{id}/stock", h.AdjustStock)
	mux.HandleFunc("PUT /api/products/{id}/stock", h.OverwriteStock)
	mux.HandleFunc("POST /api/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ProductFilter{
		CategoryID: q.Get("category_id"),
		Status:     domain.StockStatus(q.Get("status")),
		Search:     q.Get("search"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  q.Get("sort_order"),
		Page:       atoiDefault(q.Get("page"), 1),
		Limit:      atoiDefault(q.Get("limit"), 20),
	}
	if v := q.Get("min_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = d
		}
	}
	if v := q.Get("max_price"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = d
		}
	}

	page, err := h.products.Filter(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type createProductRequest struct {
	CategoryID  string              `json:"category_id"`
	SKU         string              `json:"sku"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	BasePrice   decimal.NullDecimal `json:"base_price"`
	HasVariants bool                `json:"has_variants"`
	Stock       *int                `json:"stock"`
	Variants    []struct {
		SKU   string          `json:"sku"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Stock int             `json:"stock"`
	} `json:"variants"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.SKU == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "sku and name are required"})
		return
	}

	p := &domain.Product{
		CategoryID:  req.CategoryID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		HasVariants: req.HasVariants,
		Stock:       req.Stock,
	}
	for _, v := range req.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			SKU:   v.SKU,
			Name:  v.Name,
			Price: v.Price,
			Stock: v.Stock,
		})
	}

	created, err := h.products.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	p := &domain.Product{
		ID:          r.PathValue("id"),
		CategoryID:  req.CategoryID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		BasePrice:   req.BasePrice,
		IsActive:    true,
	}
	updated, err := h.products.Update(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockRequest struct {
	VariantID string `json:"variant_id"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ref := domain.StockRef{ProductID: r.PathValue("id"), VariantID: req.VariantID}
	state, err := h.products.AdjustStock(r.Context(), ref, req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *HTTPHandler) OverwriteStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ref := domain.StockRef{ProductID: r.PathValue("id"), VariantID: req.VariantID}
	state, err := h.products.OverwriteStock(r.Context(), ref, req.Stock)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type placeOrderRequest struct {
	UserID string `json:"user_id"`
	Lines  []struct {
		ProductID string `json:"product_id"`
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == "" || len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and lines are required"})
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.OrderLine{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
		})
	}

	order, err := h.orders.PlaceOrder(r.Context(), req.UserID, lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError translates domain errors to status codes. Conflicts are 409 so
// clients know a resubmit may succeed; sold-out lines are 400, not 500.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "insufficient stock"})
	case errors.Is(err, domain.ErrInvalidDelta), errors.Is(err, service.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConcurrencyExhausted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "concurrent modification, please retry"})
	case errors.Is(err, domain.ErrOrderNotCancellable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "order cannot be cancelled"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
