package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Initiator records who cancelled an order.
type Initiator string

const (
	InitiatorCustomer Initiator = "customer"
	InitiatorAdmin    Initiator = "admin"
)

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CartSessionID   string          `json:"-"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerName    string          `json:"customer_name"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryNotes   string          `json:"delivery_notes,omitempty"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt *time.Time `json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy Initiator  `json:"cancelled_by,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OrderItem is a snapshot of the product at the moment the order was placed.
// Later catalog edits never change it.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Customer struct {
	Name            string `json:"name" validate:"required,max=120"`
	DeliveryAddress string `json:"delivery_address" validate:"required,max=500"`
	DeliveryNotes   string `json:"delivery_notes" validate:"max=500"`
}

type CreateOrderInput struct {
	CartSessionID string   `json:"cart_session_id" validate:"required,max=64"`
	Customer      Customer `json:"customer"`
	Phone         string   `json:"phone" validate:"required,max=32"`
	Code          string   `json:"code" validate:"required,len=6,numeric"`
}

// stamp sets the timestamp column belonging to status.
func (o *Order) stamp(status Status, at time.Time) {
	t := at
	switch status {
	case StatusConfirmed:
		o.ConfirmedAt = &t
	case StatusPreparing:
		o.PreparingAt = &t
	case StatusReady:
		o.ReadyAt = &t
	case StatusDelivered:
		o.DeliveredAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	}
	o.Status = status
	o.UpdatedAt = at
}
