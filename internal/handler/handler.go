package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dapur-be/internal/cart"
	"dapur-be/internal/logger"
	"dapur-be/internal/metrics"
	"dapur-be/internal/middleware"
	"dapur-be/internal/order"
	"dapur-be/internal/product"
	"dapur-be/internal/utils"
	"dapur-be/internal/verification"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type Handler struct {
	orders        order.Service
	verifications verification.Service
	carts         cart.Store
	catalog       product.Repository
	metrics       *metrics.Registry
}

func New(orders order.Service, verifications verification.Service, carts cart.Store, catalog product.Repository, m *metrics.Registry) *Handler {
	return &Handler{
		orders:        orders,
		verifications: verifications,
		carts:         carts,
		catalog:       catalog,
		metrics:       m,
	}
}

// Routes builds the public and admin API. Admin routes need an admin token.
func (h *Handler) Routes(secret []byte, limiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", h.metrics.Handler())

	mux.HandleFunc("POST /carts", h.createCart)
	mux.HandleFunc("GET /carts/{id}", h.getCart)
	mux.HandleFunc("PUT /carts/{id}/items/{productID}", h.setCartItem)
	mux.HandleFunc("GET /products/{id}/stock", h.getStock)

	mux.HandleFunc("POST /verification/send", h.sendVerification)
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("POST /orders/lookup", h.lookupOrders)
	mux.HandleFunc("GET /orders/{ref}", h.getOrder)
	mux.HandleFunc("POST /orders/{ref}/cancel", h.cancelOrder)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /admin/orders", h.adminListOrders)
	admin.HandleFunc("GET /admin/orders/{ref}", h.adminGetOrder)
	admin.HandleFunc("POST /admin/orders/{ref}/status", h.adminTransition)
	admin.HandleFunc("POST /admin/orders/{ref}/cancel", h.adminCancel)
	mux.Handle("/admin/", middleware.RequireAdmin(admin))

	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	handler = middleware.Auth(secret)(handler)
	handler = logger.LoggingMiddleware(handler)
	handler = logger.RequestIDMiddleware(handler)
	return handler
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", order.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.carts.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, sess)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.carts.GetCart(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sess)
}

type setItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	var req setItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	productID := r.PathValue("productID")
	if req.Quantity > 0 {
		p, err := h.catalog.GetProduct(r.Context(), productID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !p.IsAvailable() {
			writeError(w, r, product.ErrProductUnavailable)
			return
		}
	}

	sess, err := h.carts.SetItem(r.Context(), r.PathValue("id"), productID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	level, err := h.catalog.GetStock(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, level)
}

type sendVerificationRequest struct {
	Phone string `json:"phone"`
}

func (h *Handler) sendVerification(w http.ResponseWriter, r *http.Request) {
	var req sendVerificationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.verifications.Send(r.Context(), req.Phone); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateOrderInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The order owns the items now; a leftover cart would only expire.
	if err := h.carts.Delete(context.WithoutCancel(r.Context()), in.CartSessionID); err != nil {
		logger.FromCtx(r.Context()).Warn("failed to discard ordered cart",
			zap.String("cart_session_id", in.CartSessionID),
			zap.Error(err),
		)
	}

	utils.WriteJSON(w, http.StatusCreated, o)
}

func parseStatusFilter(raw string) (*order.Status, error) {
	if raw == "" {
		return nil, nil
	}
	s, err := order.ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type lookupRequest struct {
	Phone  string `json:"phone"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

// lookupOrders lists a customer's orders once they prove they own the phone.
func (h *Handler) lookupOrders(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	status, err := parseStatusFilter(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.ListOrdersAsCustomer(r.Context(), req.Phone, req.Code, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status, err := parseStatusFilter(q.Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.ListOrdersByPhone(r.Context(), q.Get("phone"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

// getOrder serves customers, who must present the phone the order was
// placed with.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	phone, err := utils.NormalizePhone(r.URL.Query().Get("phone"))
	if err != nil || phone != o.CustomerPhone {
		writeError(w, r, order.ErrOrderNotFound)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

type cancelRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CancelAsCustomer(r.Context(), r.PathValue("ref"), req.Phone, req.Code)
	h.respondCancel(w, r, o, err)
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h *Handler) adminTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), r.PathValue("ref"), target)
	if target == order.StatusCancelled {
		h.respondCancel(w, r, o, err)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) adminCancel(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("ref"), order.InitiatorAdmin)
	h.respondCancel(w, r, o, err)
}

// respondCancel reports a cancelled order even when restocking failed; the
// failure is already queued for reconciliation.
func (h *Handler) respondCancel(w http.ResponseWriter, r *http.Request, o *order.Order, err error) {
	if err != nil && !(o != nil && errors.Is(err, order.ErrCompensationFailed)) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		w.Header().Set("X-Stock-Reconcile", "pending")
	}
	utils.WriteJSON(w, http.StatusOK, o)
}
