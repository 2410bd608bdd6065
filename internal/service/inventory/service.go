package inventory

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

// ReserveItem is one product line to hold stock for.
type ReserveItem struct {
	ProductID uint64
	Quantity  int
}

// Service manages stock reservations. Reservations hold availability for
// a bounded window; they are converted when payment lands, released when
// the owner walks away, and swept when they expire.
type Service interface {
	// ReserveStock opens its own serializable transaction and holds stock
	// for every item, all-or-nothing. Returns the reservation IDs.
	ReserveStock(ctx context.Context, userID uint64, items []ReserveItem) ([]uint64, error)
	// ReserveItems is the transactional form used when the caller already
	// owns a transaction (checkout reserves inside the order tx).
	ReserveItems(ctx context.Context, tx *gorm.DB, userID uint64, items []ReserveItem) ([]uint64, error)
	// ConvertReservations finalizes the owner's active reservations
	// against orderID, releasing the reserved counters.
	ConvertReservations(ctx context.Context, userID, orderID uint64) error
	// ReleaseReservations releases the given reservations and returns
	// their quantities to availability. Already-terminal IDs are skipped.
	ReleaseReservations(ctx context.Context, ids []uint64) error
	// ReleaseUserReservations releases every active reservation the owner
	// holds and returns the reserved quantities to availability.
	ReleaseUserReservations(ctx context.Context, userID uint64) error
	// ReleaseExpired sweeps reservations past their deadline.
	ReleaseExpired(ctx context.Context) (int, error)
	// ReReserveIfNeeded re-checks availability for a payment that arrived
	// after the owner's reservations expired. Returns false when stock is
	// no longer available and the order must be cancelled.
	ReReserveIfNeeded(ctx context.Context, userID, orderID uint64, items []ReserveItem) (bool, error)
}

type service struct {
	products     repository.ProductRepository
	reservations repository.ReservationRepository
	serializable database.TxFunc
	ttl          time.Duration
	sweepBatch   int
}

func NewService(
	products repository.ProductRepository,
	reservations repository.ReservationRepository,
	serializable database.TxFunc,
	ttl time.Duration,
	sweepBatch int,
) Service {
	if sweepBatch <= 0 {
		sweepBatch = 100
	}
	return &service{
		products:     products,
		reservations: reservations,
		serializable: serializable,
		ttl:          ttl,
		sweepBatch:   sweepBatch,
	}
}

func (s *service) ReserveStock(ctx context.Context, userID uint64, items []ReserveItem) ([]uint64, error) {
	var ids []uint64
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		var txErr error
		ids, txErr = s.ReserveItems(ctx, tx, userID, items)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *service) ReserveItems(ctx context.Context, tx *gorm.DB, userID uint64, items []ReserveItem) ([]uint64, error) {
	if len(items) == 0 {
		return nil, utils.ErrEmptyCart
	}

	products := s.products.WithTx(tx)
	reservations := s.reservations.WithTx(tx)
	expiresAt := time.Now().Add(s.ttl)

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, utils.NewError(utils.CodeInvalidParam, fmt.Sprintf("invalid quantity %d for product %d", item.Quantity, item.ProductID))
		}
		if err := products.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		r := &model.Reservation{
			UserID:    userID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			ExpiresAt: expiresAt,
		}
		if err := reservations.Create(ctx, r); err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *service) ConvertReservations(ctx context.Context, userID, orderID uint64) error {
	return s.serializable(ctx, func(tx *gorm.DB) error {
		return s.convertTx(ctx, tx, userID, orderID)
	})
}

func (s *service) convertTx(ctx context.Context, tx *gorm.DB, userID, orderID uint64) error {
	products := s.products.WithTx(tx)
	reservations := s.reservations.WithTx(tx)

	active, err := reservations.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range active {
		if err := reservations.MarkConverted(ctx, r.ID, orderID); err != nil {
			if errors.Is(err, repository.ErrAlreadyTerminal) {
				continue
			}
			return err
		}
		if err := products.ReleaseReserved(ctx, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) ReleaseReservations(ctx context.Context, ids []uint64) error {
	return s.serializable(ctx, func(tx *gorm.DB) error {
		reservations := s.reservations.WithTx(tx)
		list := make([]*model.Reservation, 0, len(ids))
		for _, id := range ids {
			r, err := reservations.GetByID(ctx, id)
			if err != nil {
				return err
			}
			list = append(list, r)
		}
		return s.releaseAll(ctx, tx, list)
	})
}

func (s *service) ReleaseUserReservations(ctx context.Context, userID uint64) error {
	return s.serializable(ctx, func(tx *gorm.DB) error {
		reservations := s.reservations.WithTx(tx)
		active, err := reservations.ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		return s.releaseAll(ctx, tx, active)
	})
}

func (s *service) ReleaseExpired(ctx context.Context) (int, error) {
	released := 0
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		expired, err := s.reservations.WithTx(tx).ListExpired(ctx, s.sweepBatch)
		if err != nil {
			return err
		}
		if err := s.releaseAll(ctx, tx, expired); err != nil {
			return err
		}
		released = len(expired)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		log.WithComponent("inventory").WithField("released", released).Info("expired reservations released")
	}
	return released, nil
}

func (s *service) releaseAll(ctx context.Context, tx *gorm.DB, list []*model.Reservation) error {
	products := s.products.WithTx(tx)
	reservations := s.reservations.WithTx(tx)
	for _, r := range list {
		if err := reservations.MarkReleased(ctx, r.ID); err != nil {
			if errors.Is(err, repository.ErrAlreadyTerminal) {
				continue
			}
			return err
		}
		if err := products.ReleaseReserved(ctx, r.ProductID, r.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) ReReserveIfNeeded(ctx context.Context, userID, orderID uint64, items []ReserveItem) (bool, error) {
	available := true
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		reservations := s.reservations.WithTx(tx)
		active, err := reservations.ListActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			// Reservations survived the payment window; convert them.
			return s.convertTx(ctx, tx, userID, orderID)
		}

		// The originals expired and were swept back into the pool. Take
		// fresh reservations and convert them immediately so the order
		// keeps its audit trail; if stock was sold out from under us the
		// guarded reserve fails and the payment must be refunded.
		if _, err := s.ReserveItems(ctx, tx, userID, items); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) || errors.Is(err, utils.ErrOutOfStock) {
				available = false
				return nil
			}
			return err
		}
		return s.convertTx(ctx, tx, userID, orderID)
	})
	if err != nil {
		return false, err
	}
	return available, nil
}
