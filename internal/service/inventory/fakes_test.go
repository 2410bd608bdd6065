package inventory

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
	"quickcart/internal/repository"
)

// fakeTx stands in for a serializable transaction runner; the fakes
// below don't need a real handle.
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
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ReservedQuantity -= quantity
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
	p, ok := r.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.StockQuantity += quantity
	return nil
}

func (r *fakeProductRepo) AppendLog(ctx context.Context, entry *model.InventoryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

type fakeReservationRepo struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]*model.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uint64]*model.Reservation)}
}

func (r *fakeReservationRepo) WithTx(tx *gorm.DB) repository.ReservationRepository { return r }

func (r *fakeReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	res.ID = r.nextID
	clone := *res
	r.reservations[res.ID] = &clone
	return nil
}

func (r *fakeReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *res
	return &clone, nil
}

func (r *fakeReservationRepo) ListActiveByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Reservation
	for _, res := range r.reservations {
		if res.UserID == userID && res.IsActive() {
			clone := *res
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) ListExpired(ctx context.Context, limit int) ([]*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Reservation
	for _, res := range r.reservations {
		if res.ReleasedAt == nil && res.ConvertedAt == nil && res.ExpiresAt.Before(time.Now()) {
			clone := *res
			out = append(out, &clone)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeReservationRepo) MarkConverted(ctx context.Context, id, orderID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if res.ReleasedAt != nil || res.ConvertedAt != nil {
		return repository.ErrAlreadyTerminal
	}
	now := time.Now()
	res.ConvertedAt = &now
	res.OrderID = &orderID
	return nil
}

func (r *fakeReservationRepo) MarkReleased(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if res.ReleasedAt != nil || res.ConvertedAt != nil {
		return repository.ErrAlreadyTerminal
	}
	now := time.Now()
	res.ReleasedAt = &now
	return nil
}
