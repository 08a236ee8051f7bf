package handler

import (
	"errors"
	"net/http"

	"dapur-be/internal/cart"
	"dapur-be/internal/db"
	"dapur-be/internal/logger"
	"dapur-be/internal/order"
	"dapur-be/internal/product"
	"dapur-be/internal/utils"
	"dapur-be/internal/verification"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string        `json:"error"`
	Code  string        `json:"code"`
	Items []itemFailure `json:"items,omitempty"`
}

type itemFailure struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

func stockReason(err error) string {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, product.ErrProductUnavailable):
		return "unavailable"
	case errors.Is(err, product.ErrInsufficientStock):
		return "insufficient_stock"
	}
	return "unknown"
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{order.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{utils.ErrInvalidPhone, http.StatusBadRequest, "invalid_phone"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{cart.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{order.ErrVerificationFailed, http.StatusForbidden, "verification_failed"},
	{verification.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{cart.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
	{cart.ErrCartExpired, http.StatusGone, "cart_expired"},
	{order.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{order.ErrCartAlreadyOrdered, http.StatusConflict, "cart_already_ordered"},
	{cart.ErrCartConflict, http.StatusConflict, "cart_conflict"},
	{order.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{order.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{product.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{product.ErrProductUnavailable, http.StatusConflict, "product_unavailable"},
	{db.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *order.StockError
	if errors.As(err, &stockErr) {
		items := make([]itemFailure, 0, len(stockErr.Items))
		for _, it := range stockErr.Items {
			items = append(items, itemFailure{
				ProductID: it.ProductID,
				Requested: it.Requested,
				Available: it.Available,
				Reason:    stockReason(it.Err),
			})
		}
		utils.WriteJSON(w, http.StatusConflict, errorResponse{
			Error: "some items cannot be ordered",
			Code:  "stock_unavailable",
			Items: items,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			utils.WriteJSON(w, m.status, errorResponse{Error: m.err.Error(), Code: m.code})
			return
		}
	}

	logger.FromCtx(r.Context()).Error("unhandled error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	utils.WriteJSON(w, http.StatusInternalServerError, errorResponse{
		Error: "internal server error",
		Code:  "internal",
	})
}
