package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// OrderRepository order repository interface
type OrderRepository interface {
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) OrderRepository

	// Create order with its items, payment record and first history row
	Create(ctx context.Context, order *model.Order) error

	// Get order by ID
	GetByID(ctx context.Context, id uint64) (*model.Order, error)

	// Get order by order number
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)

	// List user orders
	ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Order, int64, error)

	// Update order status with associated timestamp fields. The update
	// only applies while the row still sits in from; ErrStatusChanged
	// is returned when a concurrent transition won.
	UpdateStatus(ctx context.Context, id uint64, from, to model.OrderStatus, updates map[string]interface{}) error

	// Append a status history record
	AppendHistory(ctx context.Context, history *model.OrderStatusHistory) error

	// List unpaid PENDING non-cash orders created before cutoff
	ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)

	// List orders sitting in status with the stage timestamp before cutoff and no breach mark
	ListStageOverdue(ctx context.Context, status model.OrderStatus, stampColumn string, cutoff time.Time, limit int) ([]*model.Order, error)

	// MarkSLABreached stamps sla_breached_at once
	MarkSLABreached(ctx context.Context, id uint64, at time.Time) error

	// Remove order items (partial fulfillment)
	DeleteItems(ctx context.Context, orderID uint64, itemIDs []uint64) error

	// Update order monetary totals
	UpdateTotals(ctx context.Context, id uint64, subtotal, total int64) error

	// Get payment by order ID
	GetPayment(ctx context.Context, orderID uint64) (*model.Payment, error)

	// Update payment fields
	UpdatePayment(ctx context.Context, orderID uint64, updates map[string]interface{}) error
}

// orderRepository order repository implementation
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *orderRepository) WithTx(tx *gorm.DB) OrderRepository {
	return &orderRepository{db: tx}
}

// Create creates an order together with its items, payment record and
// initial history row. Callers wrap this in the checkout transaction.
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	db := r.db.WithContext(ctx)

	items := order.Items
	payment := order.Payment
	history := order.StatusHistory
	order.Items = nil
	order.Payment = nil
	order.StatusHistory = nil

	if err := db.Create(order).Error; err != nil {
		return err
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items

	if payment != nil {
		payment.OrderID = order.ID
		if err := db.Create(payment).Error; err != nil {
			return err
		}
		order.Payment = payment
	}

	for i := range history {
		history[i].OrderID = order.ID
	}
	if len(history) > 0 {
		if err := db.Create(&history).Error; err != nil {
			return err
		}
	}
	order.StatusHistory = history

	return nil
}

// GetByID gets an order by ID
func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo gets an order by order number
func (r *orderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("order_no = ?", orderNo).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// ListUserOrders lists user orders
func (r *orderRepository) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Preload("Items").
		Preload("Payment").
		Find(&orders).Error

	return orders, total, err
}

// UpdateStatus updates order status and any timestamp columns the
// transition stamps. The status guard in the WHERE clause loses
// cleanly when two transitions race, e.g. a customer cancel against
// the unpaid-order sweep.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uint64, from, to model.OrderStatus, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// AppendHistory appends a status history record
func (r *orderRepository) AppendHistory(ctx context.Context, history *model.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// ListUnpaidBefore lists PENDING non-cash orders created before cutoff
func (r *orderRepository) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("status = ? AND payment_method <> ? AND created_at < ?",
			model.OrderStatusPending, model.PaymentMethodCashOnDelivery, cutoff).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListStageOverdue lists orders that have sat in status past cutoff
// without a breach mark. stampColumn names the timestamp of the stage
// entry (confirmed_at, packed_at).
func (r *orderRepository) ListStageOverdue(ctx context.Context, status model.OrderStatus, stampColumn string, cutoff time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND sla_breached_at IS NULL", status).
		Where(stampColumn+" < ?", cutoff).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkSLABreached stamps sla_breached_at, once. The guard makes the
// sweep idempotent across redundant runs.
func (r *orderRepository) MarkSLABreached(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND sla_breached_at IS NULL", id).
		Update("sla_breached_at", at).Error
}

// DeleteItems removes order items
func (r *orderRepository) DeleteItems(ctx context.Context, orderID uint64, itemIDs []uint64) error {
	return r.db.WithContext(ctx).
		Where("order_id = ? AND id IN ?", orderID, itemIDs).
		Delete(&model.OrderItem{}).Error
}

// UpdateTotals updates order monetary totals
func (r *orderRepository) UpdateTotals(ctx context.Context, id uint64, subtotal, total int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"subtotal": subtotal,
			"total":    total,
		}).Error
}

// GetPayment gets the payment record of an order
func (r *orderRepository) GetPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// UpdatePayment updates payment fields by order ID
func (r *orderRepository) UpdatePayment(ctx context.Context, orderID uint64, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("order_id = ?", orderID).
		Updates(updates).Error
}
