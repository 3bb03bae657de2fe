package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a looked up entity does not exist.
var ErrNotFound = errors.New("not found")

// Key groups of generic attributes.
const (
	KeyGroupOrder    = "Order"
	KeyGroupCustomer = "Customer"
)

// Customer attribute keys.
const (
	AttributeFirstName = "FirstName"
	AttributeLastName  = "LastName"
	AttributePhone     = "Phone"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentPaid              PaymentStatus = "paid"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentVoided            PaymentStatus = "voided"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderComplete   OrderStatus = "complete"
	OrderCancelled  OrderStatus = "cancelled"
)

type Store struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Customer struct {
	ID           int64     `json:"id"`
	CustomerGUID uuid.UUID `json:"customer_guid"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Active       bool      `json:"active"`
	Deleted      bool      `json:"deleted"`
}

type Address struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// Order is a platform order. ShippingAddressID is zero when the order has no shipping address.
type Order struct {
	ID                   int64           `json:"id"`
	OrderGUID            uuid.UUID       `json:"order_guid"`
	CustomOrderNumber    string          `json:"custom_order_number"`
	StoreID              int64           `json:"store_id"`
	CustomerID           int64           `json:"customer_id"`
	ShippingAddressID    int64           `json:"shipping_address_id,omitempty"`
	PickupInStore        bool            `json:"pickup_in_store"`
	OrderSubtotal        decimal.Decimal `json:"order_subtotal"`
	OrderTotal           decimal.Decimal `json:"order_total"`
	RefundedAmount       decimal.Decimal `json:"refunded_amount"`
	CaptureTransactionID string          `json:"capture_transaction_id,omitempty"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	OrderStatus          OrderStatus     `json:"order_status"`
	Deleted              bool            `json:"deleted"`
	CreatedOnUTC         time.Time       `json:"created_on_utc"`
}

// CanMarkAsPaid reports whether the order may move to the paid state.
func (o *Order) CanMarkAsPaid() bool {
	if o.OrderStatus == OrderCancelled {
		return false
	}
	switch o.PaymentStatus {
	case PaymentPaid, PaymentRefunded, PaymentVoided, PaymentPartiallyRefunded:
		return false
	}
	return true
}

// CanCancel reports whether the order may be cancelled.
func (o *Order) CanCancel() bool {
	return o.OrderStatus != OrderCancelled
}
