package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// ReservationRepository reservation repository interface
type ReservationRepository interface {
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) ReservationRepository

	// Create reservation
	Create(ctx context.Context, reservation *model.Reservation) error

	// Get reservation by ID
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)

	// List active reservations for a user
	ListActiveByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error)

	// List expired reservations still active
	ListExpired(ctx context.Context, limit int) ([]*model.Reservation, error)

	// MarkConverted stamps converted_at (terminal, set once)
	MarkConverted(ctx context.Context, id, orderID uint64) error

	// MarkReleased stamps released_at (terminal, set once)
	MarkReleased(ctx context.Context, id uint64) error
}

// reservationRepository reservation repository implementation
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *reservationRepository) WithTx(tx *gorm.DB) ReservationRepository {
	return &reservationRepository{db: tx}
}

// Create creates a reservation
func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID gets a reservation by ID
func (r *reservationRepository) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var reservation model.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// ListActiveByUser lists a user's reservations with no terminal marker
func (r *reservationRepository) ListActiveByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	var reservations []*model.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND released_at IS NULL AND converted_at IS NULL", userID).
		Find(&reservations).Error
	return reservations, err
}

// ListExpired lists reservations past expires_at with no terminal marker
func (r *reservationRepository) ListExpired(ctx context.Context, limit int) ([]*model.Reservation, error) {
	var reservations []*model.Reservation
	err := r.db.WithContext(ctx).
		Where("expires_at < ? AND released_at IS NULL AND converted_at IS NULL", time.Now()).
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// MarkConverted stamps converted_at. The guard on both terminal columns
// keeps the one-marker invariant even under concurrent sweeps.
func (r *reservationRepository) MarkConverted(ctx context.Context, id, orderID uint64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND released_at IS NULL AND converted_at IS NULL", id).
		Updates(map[string]interface{}{
			"converted_at": time.Now(),
			"order_id":     orderID,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}

// MarkReleased stamps released_at
func (r *reservationRepository) MarkReleased(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND released_at IS NULL AND converted_at IS NULL", id).
		Update("released_at", time.Now())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyTerminal
	}
	return nil
}
