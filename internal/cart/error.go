package cart

import "errors"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrCartExpired     = errors.New("cart expired")
	ErrInvalidQuantity = errors.New("invalid cart quantity")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrCartConflict    = errors.New("cart was modified concurrently")
)
