package model

import (
	"time"
)

// OrderStatus order lifecycle state
type OrderStatus string

// Order statuses
const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPacked         OrderStatus = "PACKED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusRefunded       OrderStatus = "REFUNDED"
)

// Payment methods
const (
	PaymentMethodCard           = "CARD"
	PaymentMethodUPI            = "UPI"
	PaymentMethodWallet         = "WALLET"
	PaymentMethodCashOnDelivery = "CASH_ON_DELIVERY"
)

// Order order model
type Order struct {
	ID                 uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo            string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_no"`
	UserID             uint64      `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	Status             OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Subtotal           int64       `gorm:"type:bigint;not null" json:"subtotal"` // cents
	DeliveryFee        int64       `gorm:"type:bigint;not null;default:0" json:"delivery_fee"`
	Tax                int64       `gorm:"type:bigint;not null;default:0" json:"tax"`
	Total              int64       `gorm:"type:bigint;not null" json:"total"`
	PaymentMethod      string      `gorm:"type:varchar(20);not null" json:"payment_method"`
	Notes              *string     `gorm:"type:varchar(500)" json:"notes,omitempty"`
	EstimatedDelivery  *time.Time  `gorm:"type:timestamp" json:"estimated_delivery,omitempty"`
	ConfirmedAt        *time.Time  `gorm:"type:timestamp" json:"confirmed_at,omitempty"`
	PackedAt           *time.Time  `gorm:"type:timestamp" json:"packed_at,omitempty"`
	DispatchedAt       *time.Time  `gorm:"type:timestamp" json:"dispatched_at,omitempty"`
	DeliveredAt        *time.Time  `gorm:"type:timestamp" json:"delivered_at,omitempty"`
	CancelledAt        *time.Time  `gorm:"type:timestamp" json:"cancelled_at,omitempty"`
	RefundedAt         *time.Time  `gorm:"type:timestamp" json:"refunded_at,omitempty"`
	SLABreachedAt      *time.Time  `gorm:"type:timestamp" json:"sla_breached_at,omitempty"`
	CancellationReason *string     `gorm:"type:varchar(255)" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time   `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`

	Items         []OrderItem          `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Payment       *Payment             `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether no further transition is possible.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCancelled || o.Status == OrderStatusRefunded
}

// CanUserCancel reports whether the owning customer may still cancel.
func (o *Order) CanUserCancel() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// OrderItem is a line item with a snapshot of the product at the time
// of purchase, so later catalog edits don't rewrite order history.
type OrderItem struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint64    `gorm:"type:bigint unsigned;not null;index" json:"order_id"`
	ProductID   uint64    `gorm:"type:bigint unsigned;not null;index" json:"product_id"`
	ProductName string    `gorm:"type:varchar(200);not null" json:"product_name"`
	ProductSKU  string    `gorm:"type:varchar(64);not null" json:"product_sku"`
	UnitPrice   int64     `gorm:"type:bigint;not null" json:"unit_price"` // cents
	Quantity    int       `gorm:"type:int;not null" json:"quantity"`
	Total       int64     `gorm:"type:bigint;not null" json:"total"`
	CreatedAt   time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusHistory records every transition with its actor.
type OrderStatusHistory struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint64      `gorm:"type:bigint unsigned;not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null" json:"status"`
	Notes     *string     `gorm:"type:varchar(500)" json:"notes,omitempty"`
	ChangedBy string      `gorm:"type:varchar(64);not null;default:'system'" json:"changed_by"`
	CreatedAt time.Time   `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}

// PaymentStatus payment state
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Payment is the one-to-one payment record of an order.
type Payment struct {
	ID               uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          uint64        `gorm:"type:bigint unsigned;uniqueIndex;not null" json:"order_id"`
	Amount           int64         `gorm:"type:bigint;not null" json:"amount"` // cents
	Currency         string        `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	Method           string        `gorm:"type:varchar(20);not null" json:"method"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	GatewayPaymentID *string       `gorm:"type:varchar(128)" json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time    `gorm:"type:timestamp" json:"paid_at,omitempty"`
	RefundAmount     int64         `gorm:"type:bigint;not null;default:0" json:"refund_amount"`
	RefundedAt       *time.Time    `gorm:"type:timestamp" json:"refunded_at,omitempty"`
	CreatedAt        time.Time     `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Payment) TableName() string {
	return "payments"
}
