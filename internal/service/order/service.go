package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/database"
	"quickcart/internal/model"
	"quickcart/internal/repository"
	"quickcart/internal/service/inventory"
	"quickcart/internal/service/outbox"
	"quickcart/pkg/log"
	"quickcart/pkg/snowflake"
	"quickcart/pkg/utils"
)

// CheckoutItem is one requested product line.
type CheckoutItem struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CheckoutInput carries everything Checkout needs.
type CheckoutInput struct {
	UserID        uint64
	Items         []CheckoutItem
	PaymentMethod string
	Notes         *string
}

// Service owns the order lifecycle: checkout, status transitions,
// cancellation with stock restoration, and payment outcomes.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint64) (*model.Order, error)
	ListOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Order, int64, error)
	// UpdateStatus applies one transition from the table, stamps the
	// stage timestamp and appends history. Cancellations restore stock.
	UpdateStatus(ctx context.Context, orderID uint64, to model.OrderStatus, notes *string, changedBy string) error
	// CancelOrder is the customer-facing cancel; it enforces ownership
	// and the cancellable-by-user window.
	CancelOrder(ctx context.Context, userID, orderID uint64, reason string) error
	// HandlePaymentSuccess converts (or re-takes) the reservations and
	// confirms the order. Safe to call more than once per order.
	HandlePaymentSuccess(ctx context.Context, orderNo, gatewayPaymentID string) error
	// HandlePaymentFailure cancels a still-pending order and releases
	// its holds.
	HandlePaymentFailure(ctx context.Context, orderNo, reason string) error
}

// Config carries the checkout business parameters.
type Config struct {
	MinOrderAmount    int64
	EstimatedDelivery time.Duration
}

type service struct {
	orders       repository.OrderRepository
	products     repository.ProductRepository
	inventory    inventory.Service
	outbox       outbox.Service
	serializable database.TxFunc
	idGen        *snowflake.IDGenerator
	cfg          Config
}

func NewService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	inv inventory.Service,
	ob outbox.Service,
	serializable database.TxFunc,
	idGen *snowflake.IDGenerator,
	cfg Config,
) Service {
	return &service{
		orders:       orders,
		products:     products,
		inventory:    inv,
		outbox:       ob,
		serializable: serializable,
		idGen:        idGen,
		cfg:          cfg,
	}
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*model.Order, error) {
	if len(input.Items) == 0 {
		return nil, utils.ErrEmptyCart
	}

	var created *model.Order
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		now := time.Now()

		// Hold stock first. The guarded reserve fails the whole checkout
		// when any line cannot be covered.
		reserveItems := make([]inventory.ReserveItem, 0, len(input.Items))
		for _, item := range input.Items {
			reserveItems = append(reserveItems, inventory.ReserveItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if _, err := s.inventory.ReserveItems(ctx, tx, input.UserID, reserveItems); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return utils.ErrOutOfStock
			}
			return err
		}

		order := &model.Order{
			OrderNo:       fmt.Sprintf("QC%d", s.idGen.NextID()),
			UserID:        input.UserID,
			Status:        model.OrderStatusPending,
			PaymentMethod: input.PaymentMethod,
			Notes:         input.Notes,
		}
		if s.cfg.EstimatedDelivery > 0 {
			eta := now.Add(s.cfg.EstimatedDelivery)
			order.EstimatedDelivery = &eta
		}

		var subtotal int64
		for _, item := range input.Items {
			p, err := products.GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !p.IsAvailable {
				return utils.NewError(utils.CodeOutOfStock, fmt.Sprintf("product %d is not available", item.ProductID))
			}

			lineTotal := p.Price * int64(item.Quantity)
			subtotal += lineTotal
			order.Items = append(order.Items, model.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				ProductSKU:  p.SKU,
				UnitPrice:   p.Price,
				Quantity:    item.Quantity,
				Total:       lineTotal,
			})

			// Physical deduction happens at order creation; conversion of
			// the reservation later only clears the hold bookkeeping.
			if err := products.DeductStock(ctx, p.ID, item.Quantity); err != nil {
				return err
			}
			if err := products.AppendLog(ctx, &model.InventoryLog{
				ProductID:     p.ID,
				Action:        model.InventoryActionOrderReserved,
				Quantity:      -item.Quantity,
				PreviousStock: p.StockQuantity,
				NewStock:      p.StockQuantity - item.Quantity,
			}); err != nil {
				return err
			}
		}

		if subtotal < s.cfg.MinOrderAmount {
			return utils.ErrOrderBelowMin
		}
		order.Subtotal = subtotal
		order.Total = subtotal + order.DeliveryFee + order.Tax

		order.Payment = &model.Payment{
			Amount: order.Total,
			Method: input.PaymentMethod,
			Status: model.PaymentStatusPending,
		}
		note := "order placed"
		order.StatusHistory = []model.OrderStatusHistory{{
			Status:    model.OrderStatusPending,
			Notes:     &note,
			ChangedBy: fmt.Sprintf("user:%d", input.UserID),
		}}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		itemPayloads := make([]outbox.OrderItemPayload, 0, len(order.Items))
		for _, it := range order.Items {
			itemPayloads = append(itemPayloads, outbox.OrderItemPayload{
				ProductID: it.ProductID,
				SKU:       it.ProductSKU,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
			if err := s.outbox.WriteEvent(ctx, tx, outbox.EventStockDeducted, outbox.StockDeductedPayload{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			}); err != nil {
				return err
			}
		}
		if err := s.outbox.WriteEvent(ctx, tx, outbox.EventOrderCreated, outbox.OrderCreatedPayload{
			OrderID:     order.ID,
			OrderNo:     order.OrderNo,
			UserID:      order.UserID,
			TotalAmount: order.Total,
			Items:       itemPayloads,
		}); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithComponent("order").WithFields(map[string]any{
		"order_no": created.OrderNo,
		"user_id":  created.UserID,
		"total":    created.Total,
	}).Info("order created")
	return created, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uint64) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, utils.ErrOrderNotFound
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.orders.ListUserOrders(ctx, userID, page, pageSize)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uint64, to model.OrderStatus, notes *string, changedBy string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrOrderNotFound
		}
		return err
	}
	if !CanTransition(order.Status, to) {
		return utils.NewError(utils.CodeInvalidTransition,
			fmt.Sprintf("cannot transition order %s from %s to %s", order.OrderNo, order.Status, to))
	}

	if to == model.OrderStatusCancelled {
		reason := "cancelled"
		if notes != nil {
			reason = *notes
		}
		return s.cancelTx(ctx, order, reason, changedBy)
	}

	return s.serializable(ctx, func(tx *gorm.DB) error {
		return s.transitionTx(ctx, tx, order, to, notes, changedBy)
	})
}

// transitionTx applies a non-cancel transition on the given handle.
func (s *service) transitionTx(ctx context.Context, tx *gorm.DB, order *model.Order, to model.OrderStatus, notes *string, changedBy string) error {
	orders := s.orders.WithTx(tx)
	now := time.Now()

	if err := orders.UpdateStatus(ctx, order.ID, order.Status, to, transitionUpdates(to, now)); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return utils.NewError(utils.CodeInvalidTransition,
				fmt.Sprintf("order %s left %s before the transition to %s applied", order.OrderNo, order.Status, to))
		}
		return err
	}
	if err := orders.AppendHistory(ctx, &model.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    to,
		Notes:     notes,
		ChangedBy: changedBy,
	}); err != nil {
		return err
	}
	return s.outbox.WriteEvent(ctx, tx, outbox.EventOrderStatusChanged, outbox.OrderStatusChangedPayload{
		OrderID:   order.ID,
		OrderNo:   order.OrderNo,
		UserID:    order.UserID,
		From:      string(order.Status),
		To:        string(to),
		ChangedBy: changedBy,
	})
}

// cancelTx cancels an order, restores the deducted stock line by line,
// releases the owner's active holds and emits the cancel event, all in
// one transaction.
func (s *service) cancelTx(ctx context.Context, order *model.Order, reason, changedBy string) error {
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		products := s.products.WithTx(tx)
		now := time.Now()

		updates := transitionUpdates(model.OrderStatusCancelled, now)
		updates["cancellation_reason"] = reason
		// Guarding on the pre-read status keeps a customer cancel and the
		// unpaid-order sweep from both restoring stock for the same order.
		if err := orders.UpdateStatus(ctx, order.ID, order.Status, model.OrderStatusCancelled, updates); err != nil {
			if errors.Is(err, repository.ErrStatusChanged) {
				return utils.NewError(utils.CodeInvalidTransition,
					fmt.Sprintf("order %s left %s before the cancel applied", order.OrderNo, order.Status))
			}
			return err
		}
		if err := orders.AppendHistory(ctx, &model.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    model.OrderStatusCancelled,
			Notes:     &reason,
			ChangedBy: changedBy,
		}); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			p, err := products.GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			orderID := order.ID
			if err := products.AppendLog(ctx, &model.InventoryLog{
				ProductID:     item.ProductID,
				Action:        model.InventoryActionOrderCancelled,
				Quantity:      item.Quantity,
				PreviousStock: p.StockQuantity - item.Quantity,
				NewStock:      p.StockQuantity,
				OrderID:       &orderID,
			}); err != nil {
				return err
			}
		}

		return s.outbox.WriteEvent(ctx, tx, outbox.EventOrderCancelled, outbox.OrderCancelledPayload{
			OrderID: order.ID,
			OrderNo: order.OrderNo,
			UserID:  order.UserID,
			Reason:  reason,
		})
	})
	if err != nil {
		return err
	}

	// The holds themselves live outside the order row; release them in
	// their own serializable transaction after the cancel committed.
	if err := s.inventory.ReleaseUserReservations(ctx, order.UserID); err != nil {
		log.WithComponent("order").WithError(err).WithField("order_no", order.OrderNo).
			Warn("cancelled but could not release reservations; sweeper will catch them")
	}

	log.WithComponent("order").WithFields(map[string]any{
		"order_no": order.OrderNo,
		"reason":   reason,
	}).Info("order cancelled")
	return nil
}

func (s *service) CancelOrder(ctx context.Context, userID, orderID uint64, reason string) error {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.CanUserCancel() {
		return utils.NewError(utils.CodeInvalidTransition,
			fmt.Sprintf("order %s can no longer be cancelled", order.OrderNo))
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	return s.cancelTx(ctx, order, reason, fmt.Sprintf("user:%d", userID))
}

func (s *service) HandlePaymentSuccess(ctx context.Context, orderNo, gatewayPaymentID string) error {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrOrderNotFound
		}
		return err
	}

	switch order.Status {
	case model.OrderStatusPending:
		// fall through to confirmation
	case model.OrderStatusConfirmed:
		// Gateway retried a webhook we already handled.
		return nil
	default:
		return utils.NewError(utils.CodeInvalidTransition,
			fmt.Sprintf("payment success for order %s in state %s", orderNo, order.Status))
	}

	items := make([]inventory.ReserveItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, inventory.ReserveItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	ok, err := s.inventory.ReReserveIfNeeded(ctx, order.UserID, order.ID, items)
	if err != nil {
		return err
	}
	if !ok {
		// Stock was resold while the payment was in flight. Cancel and
		// leave the payment for the refund flow.
		if cancelErr := s.cancelTx(ctx, order, "stock unavailable when payment confirmed", "system"); cancelErr != nil {
			return cancelErr
		}
		return utils.ErrOutOfStock
	}

	return s.serializable(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		now := time.Now()

		paymentUpdates := map[string]interface{}{
			"status":  model.PaymentStatusCompleted,
			"paid_at": now,
		}
		if gatewayPaymentID != "" {
			paymentUpdates["gateway_payment_id"] = gatewayPaymentID
		}
		if err := orders.UpdatePayment(ctx, order.ID, paymentUpdates); err != nil {
			return err
		}

		note := "payment captured"
		if err := s.transitionTx(ctx, tx, order, model.OrderStatusConfirmed, &note, "system"); err != nil {
			return err
		}
		return s.outbox.WriteEvent(ctx, tx, outbox.EventPaymentSuccess, outbox.PaymentSuccessPayload{
			OrderID:          order.ID,
			OrderNo:          order.OrderNo,
			UserID:           order.UserID,
			Amount:           order.Total,
			GatewayPaymentID: gatewayPaymentID,
		})
	})
}

func (s *service) HandlePaymentFailure(ctx context.Context, orderNo, reason string) error {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrOrderNotFound
		}
		return err
	}
	if order.Status != model.OrderStatusPending {
		// Nothing to unwind; either already cancelled or already paid by
		// a competing notification.
		return nil
	}

	if err := s.orders.UpdatePayment(ctx, order.ID, map[string]interface{}{
		"status": model.PaymentStatusFailed,
	}); err != nil {
		return err
	}
	if reason == "" {
		reason = "payment failed"
	}
	return s.cancelTx(ctx, order, reason, "system")
}
