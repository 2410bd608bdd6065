package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickcart/internal/model"
)

func newTestService(products *fakeProductRepo, reservations *fakeReservationRepo) Service {
	return NewService(products, reservations, fakeTx, 15*time.Minute, 100)
}

func TestReserveStock(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	ids, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 3, p.ReservedQuantity)
	assert.Equal(t, 7, p.Available())
}

func TestReserveStockInsufficient(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 2, IsAvailable: true})
	svc := newTestService(products, newFakeReservationRepo())

	_, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 3}})
	assert.Error(t, err)

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)
}

func TestReserveStockEmptyItems(t *testing.T) {
	svc := newTestService(newFakeProductRepo(), newFakeReservationRepo())
	_, err := svc.ReserveStock(context.Background(), 7, nil)
	assert.Error(t, err)
}

// Twenty buyers race for five units; exactly five reservations may win.
func TestConcurrentReservationsNoOversell(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 5, IsAvailable: true})
	svc := newTestService(products, newFakeReservationRepo())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := svc.ReserveStock(context.Background(), userID, []ReserveItem{{ProductID: 1, Quantity: 1}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 5, p.ReservedQuantity)
}

func TestConvertReservations(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	ids, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 4}})
	require.NoError(t, err)

	require.NoError(t, svc.ConvertReservations(context.Background(), 7, 99))

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)

	res, _ := reservations.GetByID(context.Background(), ids[0])
	require.NotNil(t, res.ConvertedAt)
	require.NotNil(t, res.OrderID)
	assert.Equal(t, uint64(99), *res.OrderID)
}

func TestReleaseUserReservations(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	ids, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 4}})
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseUserReservations(context.Background(), 7))

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)

	res, _ := reservations.GetByID(context.Background(), ids[0])
	assert.NotNil(t, res.ReleasedAt)
	assert.Nil(t, res.ConvertedAt)
}

func TestReleaseReservationsByID(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	ids, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 4}})
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseReservations(context.Background(), ids))

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)

	// Releasing again is a no-op thanks to the terminal-marker guard.
	require.NoError(t, svc.ReleaseReservations(context.Background(), ids))
	p, _ = products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)
}

// One buyer holds the whole stock; a second buyer fails until the first
// hold is released, then succeeds.
func TestReleaseRestoresAvailabilityForOtherBuyers(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 5, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	idsA, err := svc.ReserveStock(context.Background(), 1, []ReserveItem{{ProductID: 1, Quantity: 5}})
	require.NoError(t, err)

	_, err = svc.ReserveStock(context.Background(), 2, []ReserveItem{{ProductID: 1, Quantity: 1}})
	require.Error(t, err)

	require.NoError(t, svc.ReleaseReservations(context.Background(), idsA))

	_, err = svc.ReserveStock(context.Background(), 2, []ReserveItem{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
}

func TestReleaseExpiredSweep(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	_, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)

	// Nothing expired yet.
	released, err := svc.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, released)

	// Force expiry.
	reservations.mu.Lock()
	for _, r := range reservations.reservations {
		r.ExpiresAt = time.Now().Add(-time.Minute)
	}
	reservations.mu.Unlock()

	released, err = svc.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)

	// Sweep is idempotent.
	released, err = svc.ReleaseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestReReserveWithActiveReservations(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	_, err := svc.ReserveStock(context.Background(), 7, []ReserveItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)

	ok, err := svc.ReReserveIfNeeded(context.Background(), 7, 42, []ReserveItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, ok)

	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)
}

func TestReReserveAfterExpiryTakesFreshHold(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 10, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	// Simulate a fully swept reservation: nothing active remains.
	ok, err := svc.ReReserveIfNeeded(context.Background(), 7, 42, []ReserveItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	assert.True(t, ok)

	// Reserve-then-convert nets out to zero held units.
	p, _ := products.GetByID(context.Background(), 1)
	assert.Equal(t, 0, p.ReservedQuantity)
}

func TestReReserveFailsWhenStockGone(t *testing.T) {
	products := newFakeProductRepo(&model.Product{ID: 1, StockQuantity: 1, IsAvailable: true})
	reservations := newFakeReservationRepo()
	svc := newTestService(products, reservations)

	ok, err := svc.ReReserveIfNeeded(context.Background(), 7, 42, []ReserveItem{{ProductID: 1, Quantity: 2}})
	require.NoError(t, err)
	assert.False(t, ok)
}
