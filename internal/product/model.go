package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsDisabled    bool            `json:"is_disabled"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsAvailable is true iff there is stock left and the product was not
// switched off by the admin.
func (p *Product) IsAvailable() bool {
	return p.StockQuantity > 0 && !p.IsDisabled
}

// StockLevel is the read-only view served to catalog pages.
type StockLevel struct {
	ProductID     string `json:"product_id"`
	StockQuantity int    `json:"stock_quantity"`
	IsAvailable   bool   `json:"is_available"`
}
