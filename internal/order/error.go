package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrVerificationFailed      = errors.New("verification failed")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrCartAlreadyOrdered      = errors.New("an order was already placed for this cart")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOrderNumberAllocation   = errors.New("could not allocate order number")
	ErrCompensationFailed      = errors.New("stock compensation failed")

	errNumberTaken   = errors.New("order number already used")
	errStatusChanged = errors.New("order status changed concurrently")
)

// ItemFailure explains why one cart line could not be reserved. Err is one of
// product.ErrProductNotFound, product.ErrProductUnavailable or
// product.ErrInsufficientStock.
type ItemFailure struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Err       error  `json:"-"`
}

// StockError lists every line that failed. errors.Is matches any of the
// per-item kinds.
type StockError struct {
	Items []ItemFailure
}

func (e *StockError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%s: %v", it.ProductID, it.Err))
	}
	return "order items unavailable: " + strings.Join(parts, "; ")
}

func (e *StockError) Unwrap() []error {
	errs := make([]error, 0, len(e.Items))
	for _, it := range e.Items {
		errs = append(errs, it.Err)
	}
	return errs
}
