package outbox

import "fmt"

// EventType enumerates every event the pipeline emits. Dispatch switches
// exhaustively on this set; an unknown type is a permanent failure, not
// a retry candidate.
type EventType string

const (
	EventOrderCreated       EventType = "ORDER_CREATED"
	EventPaymentSuccess     EventType = "PAYMENT_SUCCESS"
	EventStockDeducted      EventType = "STOCK_DEDUCTED"
	EventOrderStatusChanged EventType = "ORDER_STATUS_CHANGED"
	EventOrderCancelled     EventType = "ORDER_CANCELLED"
)

// ChannelFor maps an event type to its pub/sub channel.
func ChannelFor(t EventType) (string, error) {
	switch t {
	case EventOrderCreated:
		return "events:order:created", nil
	case EventPaymentSuccess:
		return "events:payment:success", nil
	case EventStockDeducted:
		return "events:stock:deducted", nil
	case EventOrderStatusChanged:
		return "events:order:status", nil
	case EventOrderCancelled:
		return "events:order:cancelled", nil
	default:
		return "", fmt.Errorf("unknown event type %q", t)
	}
}

// OrderCreatedPayload announces a new order with its line items.
type OrderCreatedPayload struct {
	OrderID     uint64             `json:"order_id"`
	OrderNo     string             `json:"order_no"`
	UserID      uint64             `json:"user_id"`
	TotalAmount int64              `json:"total_amount"`
	Items       []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID uint64 `json:"product_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// PaymentSuccessPayload announces a captured payment.
type PaymentSuccessPayload struct {
	OrderID          uint64 `json:"order_id"`
	OrderNo          string `json:"order_no"`
	UserID           uint64 `json:"user_id"`
	Amount           int64  `json:"amount"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}

// StockDeductedPayload records physical stock leaving the pool.
type StockDeductedPayload struct {
	OrderID   uint64 `json:"order_id"`
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderStatusChangedPayload announces any non-cancel transition.
type OrderStatusChangedPayload struct {
	OrderID   uint64 `json:"order_id"`
	OrderNo   string `json:"order_no"`
	UserID    uint64 `json:"user_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedBy string `json:"changed_by"`
}

// OrderCancelledPayload announces a cancellation with its reason.
type OrderCancelledPayload struct {
	OrderID uint64 `json:"order_id"`
	OrderNo string `json:"order_no"`
	UserID  uint64 `json:"user_id"`
	Reason  string `json:"reason"`
}
