package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
	"quickcart/internal/repository"
	"quickcart/internal/service/inventory"
	"quickcart/internal/service/outbox"
	"quickcart/pkg/utils"
)

func fakeTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uint64]*model.Product
	logs     []*model.InventoryLog
}

func newFakeProductRepo(products ...*model.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[uint64]*model.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) WithTx(tx *gorm.DB) repository.ProductRepository { return r }

func (r *fakeProductRepo) Create(ctx context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *fakeProductRepo) Reserve(ctx context.Context, id uint64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.StockQuantity-p.ReservedQuantity < quantity {
		return repository.ErrInsufficientStock
	}
	p.ReservedQuantity += quantity
	return nil
}

func (r *fakeProductRepo) ReleaseReserved(ctx context.Context, id uint64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.ReservedQuantity -= quantity
	}
	return nil
}

func (r *fakeProductRepo) DeductStock(ctx context.Context, id uint64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.StockQuantity < quantity {
		return repository.ErrInsufficientStock
	}
	p.StockQuantity -= quantity
	return nil
}

func (r *fakeProductRepo) RestoreStock(ctx context.Context, id uint64, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.StockQuantity += quantity
	}
	return nil
}

func (r *fakeProductRepo) AppendLog(ctx context.Context, entry *model.InventoryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	nextID  uint64
	orders  map[uint64]*model.Order
	history []*model.OrderStatusHistory

	// beforeUpdateStatus runs under the mutex before the guard check,
	// letting tests interleave a competing transition.
	beforeUpdateStatus func(o *model.Order)
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uint64]*model.Order)}
}

func (r *fakeOrderRepo) WithTx(tx *gorm.DB) repository.OrderRepository { return r }

func (r *fakeOrderRepo) Create(ctx context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now()
	for i := range order.Items {
		order.Items[i].ID = uint64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	if order.Payment != nil {
		order.Payment.OrderID = order.ID
	}
	clone := cloneOrder(order)
	r.orders[order.ID] = clone
	return nil
}

func cloneOrder(o *model.Order) *model.Order {
	clone := *o
	clone.Items = append([]model.OrderItem(nil), o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		clone.Payment = &p
	}
	return &clone
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNo == orderNo {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeOrderRepo) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.OrderStatus, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.beforeUpdateStatus != nil {
		r.beforeUpdateStatus(o)
	}
	if o.Status != from {
		return repository.ErrStatusChanged
	}
	o.Status = to
	for col, v := range updates {
		switch col {
		case "confirmed_at":
			t := v.(time.Time)
			o.ConfirmedAt = &t
		case "packed_at":
			t := v.(time.Time)
			o.PackedAt = &t
		case "dispatched_at":
			t := v.(time.Time)
			o.DispatchedAt = &t
		case "delivered_at":
			t := v.(time.Time)
			o.DeliveredAt = &t
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		case "refunded_at":
			t := v.(time.Time)
			o.RefundedAt = &t
		case "cancellation_reason":
			s := v.(string)
			o.CancellationReason = &s
		}
	}
	return nil
}

func (r *fakeOrderRepo) AppendHistory(ctx context.Context, history *model.OrderStatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, history)
	return nil
}

func (r *fakeOrderRepo) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		unpaid := o.Payment == nil || o.Payment.Status == model.PaymentStatusPending
		if o.Status == model.OrderStatusPending && unpaid && o.CreatedAt.Before(cutoff) {
			out = append(out, cloneOrder(o))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListStageOverdue(ctx context.Context, status model.OrderStatus, stampColumn string, cutoff time.Time, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.Status != status || o.SLABreachedAt != nil {
			continue
		}
		var stamp *time.Time
		switch stampColumn {
		case "confirmed_at":
			stamp = o.ConfirmedAt
		case "packed_at":
			stamp = o.PackedAt
		}
		if stamp != nil && stamp.Before(cutoff) {
			out = append(out, cloneOrder(o))
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) MarkSLABreached(ctx context.Context, id uint64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if o.SLABreachedAt == nil {
		o.SLABreachedAt = &at
	}
	return nil
}

func (r *fakeOrderRepo) DeleteItems(ctx context.Context, orderID uint64, itemIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	remove := make(map[uint64]bool, len(itemIDs))
	for _, id := range itemIDs {
		remove[id] = true
	}
	var kept []model.OrderItem
	for _, item := range o.Items {
		if !remove[item.ID] {
			kept = append(kept, item)
		}
	}
	o.Items = kept
	return nil
}

func (r *fakeOrderRepo) UpdateTotals(ctx context.Context, id uint64, subtotal, total int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Subtotal = subtotal
	o.Total = total
	return nil
}

func (r *fakeOrderRepo) GetPayment(ctx context.Context, orderID uint64) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Payment == nil {
		return nil, repository.ErrNotFound
	}
	p := *o.Payment
	return &p, nil
}

func (r *fakeOrderRepo) UpdatePayment(ctx context.Context, orderID uint64, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Payment == nil {
		return repository.ErrNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			o.Payment.Status = v.(model.PaymentStatus)
		case "paid_at":
			t := v.(time.Time)
			o.Payment.PaidAt = &t
		case "gateway_payment_id":
			s := v.(string)
			o.Payment.GatewayPaymentID = &s
		case "refund_amount":
			o.Payment.RefundAmount = v.(int64)
		case "refunded_at":
			t := v.(time.Time)
			o.Payment.RefundedAt = &t
		}
	}
	return nil
}

// fakeInventory records calls; reservation behavior is steered by the
// fail flags.
type fakeInventory struct {
	mu            sync.Mutex
	failReserve   bool
	reReserveOK   bool
	reserveCalls  int
	convertCalls  int
	releaseCalls  int
	reReserveRuns int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{reReserveOK: true}
}

func (f *fakeInventory) ReserveStock(ctx context.Context, userID uint64, items []inventory.ReserveItem) ([]uint64, error) {
	return f.ReserveItems(ctx, nil, userID, items)
}

func (f *fakeInventory) ReserveItems(ctx context.Context, tx *gorm.DB, userID uint64, items []inventory.ReserveItem) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveCalls++
	if f.failReserve {
		return nil, utils.ErrOutOfStock
	}
	ids := make([]uint64, len(items))
	for i := range items {
		ids[i] = uint64(i + 1)
	}
	return ids, nil
}

func (f *fakeInventory) ConvertReservations(ctx context.Context, userID, orderID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convertCalls++
	return nil
}

func (f *fakeInventory) ReleaseReservations(ctx context.Context, ids []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	return nil
}

func (f *fakeInventory) ReleaseUserReservations(ctx context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
	return nil
}

func (f *fakeInventory) ReleaseExpired(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeInventory) ReReserveIfNeeded(ctx context.Context, userID, orderID uint64, items []inventory.ReserveItem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reReserveRuns++
	return f.reReserveOK, nil
}

// fakeOutbox collects written events in order.
type fakeOutbox struct {
	mu     sync.Mutex
	events []writtenEvent
}

type writtenEvent struct {
	Type    outbox.EventType
	Payload any
}

func (f *fakeOutbox) WriteEvent(ctx context.Context, tx *gorm.DB, eventType outbox.EventType, payload any) error {
	return f.WriteEventDirect(ctx, eventType, payload)
}

func (f *fakeOutbox) WriteEventDirect(ctx context.Context, eventType outbox.EventType, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, writtenEvent{Type: eventType, Payload: payload})
	return nil
}

func (f *fakeOutbox) Dispatch(ctx context.Context) (outbox.DispatchStats, error) {
	return outbox.DispatchStats{}, nil
}

func (f *fakeOutbox) CleanupCompleted(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeOutbox) typesWritten() []outbox.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outbox.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}
