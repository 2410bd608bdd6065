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
	"quickcart/pkg/log"
	"quickcart/pkg/utils"
)

// LifecycleConfig carries the timeout budgets for the sweepers.
type LifecycleConfig struct {
	UnpaidCancelAfter  time.Duration
	ConfirmedToPacked  time.Duration
	PackedToDispatched time.Duration
	BatchSize          int
}

// LifecycleService runs the scheduled order sweeps: auto-cancel of
// unpaid orders, SLA breach stamps, and the admin-driven partial
// fulfillment path.
type LifecycleService interface {
	// AutoCancelUnpaid cancels PENDING non-cash orders whose payment has
	// not completed within the timeout, restoring stock per line item.
	AutoCancelUnpaid(ctx context.Context) (int, error)
	// TrackSLABreaches stamps sla_breached_at on orders sitting in
	// CONFIRMED or PACKED past their stage budget. Stamps once only and
	// never changes status.
	TrackSLABreaches(ctx context.Context) (int, error)
	// PartialFulfillment removes a strict subset of line items, restores
	// their stock, recomputes totals and records a proportional refund.
	PartialFulfillment(ctx context.Context, orderID uint64, removeItemIDs []uint64, actor string) (*model.Order, error)
}

type lifecycleService struct {
	orders       repository.OrderRepository
	products     repository.ProductRepository
	core         Service
	serializable database.TxFunc
	cfg          LifecycleConfig
}

func NewLifecycleService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	core Service,
	serializable database.TxFunc,
	cfg LifecycleConfig,
) LifecycleService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &lifecycleService{
		orders:       orders,
		products:     products,
		core:         core,
		serializable: serializable,
		cfg:          cfg,
	}
}

func (s *lifecycleService) AutoCancelUnpaid(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.UnpaidCancelAfter)
	candidates, err := s.orders.ListUnpaidBefore(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	logger := log.WithComponent("lifecycle")
	cancelled := 0
	for _, order := range candidates {
		// Cash orders settle at the door; they never time out on payment.
		if order.PaymentMethod == model.PaymentMethodCashOnDelivery {
			continue
		}
		reason := fmt.Sprintf("payment not received within %s", s.cfg.UnpaidCancelAfter)
		if err := s.core.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, &reason, "system"); err != nil {
			// A payment may have landed between the query and the cancel;
			// skip and move on.
			if errors.Is(err, utils.ErrInvalidTransition) {
				continue
			}
			logger.WithError(err).WithField("order_no", order.OrderNo).Error("auto-cancel failed")
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		logger.WithField("cancelled", cancelled).Info("unpaid orders auto-cancelled")
	}
	return cancelled, nil
}

func (s *lifecycleService) TrackSLABreaches(ctx context.Context) (int, error) {
	now := time.Now()
	logger := log.WithComponent("lifecycle")
	breached := 0

	stages := []struct {
		status model.OrderStatus
		column string
		budget time.Duration
	}{
		{model.OrderStatusConfirmed, "confirmed_at", s.cfg.ConfirmedToPacked},
		{model.OrderStatusPacked, "packed_at", s.cfg.PackedToDispatched},
	}
	for _, stage := range stages {
		overdue, err := s.orders.ListStageOverdue(ctx, stage.status, stage.column, now.Add(-stage.budget), s.cfg.BatchSize)
		if err != nil {
			return breached, err
		}
		for _, order := range overdue {
			if err := s.orders.MarkSLABreached(ctx, order.ID, now); err != nil {
				logger.WithError(err).WithField("order_no", order.OrderNo).Error("could not stamp breach")
				continue
			}
			breached++
			logger.WithFields(map[string]any{
				"order_no": order.OrderNo,
				"status":   order.Status,
			}).Warn("order breached stage budget")
		}
	}
	return breached, nil
}

func (s *lifecycleService) PartialFulfillment(ctx context.Context, orderID uint64, removeItemIDs []uint64, actor string) (*model.Order, error) {
	if len(removeItemIDs) == 0 {
		return nil, utils.NewError(utils.CodeInvalidParam, "no items to remove")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrOrderNotFound
		}
		return nil, err
	}
	if order.IsTerminal() || order.Status == model.OrderStatusDelivered {
		return nil, utils.NewError(utils.CodeInvalidTransition,
			fmt.Sprintf("order %s can no longer be modified", order.OrderNo))
	}

	removeSet := make(map[uint64]bool, len(removeItemIDs))
	for _, id := range removeItemIDs {
		removeSet[id] = true
	}
	var removed []model.OrderItem
	for _, item := range order.Items {
		if removeSet[item.ID] {
			removed = append(removed, item)
			delete(removeSet, item.ID)
		}
	}
	if len(removeSet) > 0 {
		return nil, utils.NewError(utils.CodeInvalidParam, "request names items not on this order")
	}
	if len(removed) == len(order.Items) {
		return nil, utils.NewError(utils.CodeInvalidParam, "cannot remove every item; cancel the order instead")
	}

	var refund int64
	for _, item := range removed {
		refund += item.Total
	}

	err = s.serializable(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		products := s.products.WithTx(tx)

		if err := orders.DeleteItems(ctx, order.ID, removeItemIDs); err != nil {
			return err
		}

		newSubtotal := order.Subtotal - refund
		newTotal := order.Total - refund
		if err := orders.UpdateTotals(ctx, order.ID, newSubtotal, newTotal); err != nil {
			return err
		}

		for _, item := range removed {
			if err := products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			p, err := products.GetByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			oid := order.ID
			note := "partial fulfillment"
			if err := products.AppendLog(ctx, &model.InventoryLog{
				ProductID:     item.ProductID,
				Action:        model.InventoryActionOrderCancelled,
				Quantity:      item.Quantity,
				PreviousStock: p.StockQuantity - item.Quantity,
				NewStock:      p.StockQuantity,
				OrderID:       &oid,
				Notes:         &note,
			}); err != nil {
				return err
			}
		}

		payment, err := orders.GetPayment(ctx, order.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if payment != nil && payment.Status == model.PaymentStatusCompleted {
			if err := orders.UpdatePayment(ctx, order.ID, map[string]interface{}{
				"refund_amount": payment.RefundAmount + refund,
				"refunded_at":   time.Now(),
			}); err != nil {
				return err
			}
		}

		note := fmt.Sprintf("partial fulfillment: %d item(s) removed, %d refunded", len(removed), refund)
		return orders.AppendHistory(ctx, &model.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    order.Status,
			Notes:     &note,
			ChangedBy: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	log.WithComponent("lifecycle").WithFields(map[string]any{
		"order_no": order.OrderNo,
		"removed":  len(removed),
		"refund":   refund,
	}).Info("order partially fulfilled")
	return s.orders.GetByID(ctx, orderID)
}
