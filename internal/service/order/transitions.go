package order

import (
	"time"

	"quickcart/internal/model"
)

// validTransitions is the exhaustive transition table. A pair absent
// from this map is an invalid transition, full stop.
var validTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending: {
		model.OrderStatusConfirmed,
		model.OrderStatusCancelled,
	},
	model.OrderStatusConfirmed: {
		model.OrderStatusPacked,
		model.OrderStatusCancelled,
	},
	model.OrderStatusPacked: {
		model.OrderStatusOutForDelivery,
		model.OrderStatusCancelled,
	},
	model.OrderStatusOutForDelivery: {
		model.OrderStatusDelivered,
		model.OrderStatusCancelled,
	},
	model.OrderStatusDelivered: {
		model.OrderStatusRefunded,
	},
	model.OrderStatusCancelled: {},
	model.OrderStatusRefunded:  {},
}

// CanTransition reports whether from -> to appears in the table.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// timestampColumn returns the column stamped by entering a status, or
// "" for statuses with no dedicated timestamp.
func timestampColumn(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusConfirmed:
		return "confirmed_at"
	case model.OrderStatusPacked:
		return "packed_at"
	case model.OrderStatusOutForDelivery:
		return "dispatched_at"
	case model.OrderStatusDelivered:
		return "delivered_at"
	case model.OrderStatusCancelled:
		return "cancelled_at"
	case model.OrderStatusRefunded:
		return "refunded_at"
	default:
		return ""
	}
}

func transitionUpdates(to model.OrderStatus, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{}
	if col := timestampColumn(to); col != "" {
		updates[col] = now
	}
	return updates
}
