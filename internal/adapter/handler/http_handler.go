package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rl1809/shoes-cart/internal/core/domain"
)

type CartStore interface {
	Cart() domain.Cart
	AddProduct(ctx context.Context, productID int64) domain.Result
	RemoveProduct(ctx context.Context, productID int64) domain.Result
	UpdateProductAmount(ctx context.Context, productID int64, amount int) domain.Result
}

type NotificationSource interface {
	Drain() []string
}

type ProductLookup interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

type HTTPHandler struct {
	store   CartStore
	notes   NotificationSource
	catalog ProductLookup
	logger  *slog.Logger
}

type AddItemHTTPRequest struct {
	ProductID int64 `json:"product_id"`
}

type UpdateAmountHTTPRequest struct {
	Amount int `json:"amount"`
}

type CartHTTPResponse struct {
	Outcome domain.Outcome `json:"outcome,omitempty"`
	Message string         `json:"message,omitempty"`
	Cart    domain.Cart    `json:"cart"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(store CartStore, notes NotificationSource, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{store: store, notes: notes, logger: logger}
}

// WithCatalog enables GET /api/products/{product_id}. Lookups go straight to
// the catalog and do not wait on cart mutations.
func (h *HTTPHandler) WithCatalog(catalog ProductLookup) *HTTPHandler {
	h.catalog = catalog
	return h
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddItem)
		r.Put("/cart/items/{product_id}", h.UpdateAmount)
		r.Delete("/cart/items/{product_id}", h.RemoveItem)
		r.Get("/notifications", h.Notifications)
		if h.catalog != nil {
			r.Get("/products/{product_id}", h.GetProduct)
		}
	})

	return otelhttp.NewHandler(r, "shoes-cart")
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CartHTTPResponse{Cart: h.store.Cart()})
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}
	if req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "product_id must be positive"})
		return
	}

	h.writeResult(w, r, h.store.AddProduct(r.Context(), req.ProductID))
}

func (h *HTTPHandler) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAmountHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "invalid request body"})
		return
	}

	h.writeResult(w, r, h.store.UpdateProductAmount(r.Context(), productID, req.Amount))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	h.writeResult(w, r, h.store.RemoveProduct(r.Context(), productID))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Error: "product not found"})
		return
	}
	if err != nil {
		h.logger.WarnContext(r.Context(), "product lookup failed",
			"request_id", middleware.GetReqID(r.Context()), "product_id", productID, "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorHTTPResponse{Error: "product lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Notifications returns and clears the messages emitted since the last call.
func (h *HTTPHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	messages := []string{}
	if h.notes != nil {
		messages = h.notes.Drain()
	}
	writeJSON(w, http.StatusOK, map[string][]string{"messages": messages})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeResult(w http.ResponseWriter, r *http.Request, res domain.Result) {
	status := http.StatusOK
	switch res.Outcome {
	case domain.OutcomeRejected:
		status = http.StatusConflict
	case domain.OutcomeFailed:
		status = http.StatusUnprocessableEntity
	}

	if res.Err != nil {
		h.logger.DebugContext(r.Context(), "cart request not applied",
			"request_id", middleware.GetReqID(r.Context()), "outcome", res.Outcome, "error", res.Err)
	}

	writeJSON(w, status, CartHTTPResponse{
		Outcome: res.Outcome,
		Message: res.Message,
		Cart:    h.store.Cart(),
	})
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: "product_id must be a positive integer"})
		return 0, false
	}
	return productID, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
