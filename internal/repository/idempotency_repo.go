package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// ErrDuplicateKey the unique constraint rejected the insert.
var ErrDuplicateKey = errors.New("duplicate key")

// IdempotencyRepository idempotency record repository interface
type IdempotencyRepository interface {
	// Get record by key
	GetByKey(ctx context.Context, key string) (*model.IdempotencyKey, error)

	// Create placeholder record; ErrDuplicateKey if the key exists
	Create(ctx context.Context, record *model.IdempotencyKey) error

	// Store the response on a reserved key
	StoreResponse(ctx context.Context, key string, status int, body string) error

	// Delete record by key
	DeleteByKey(ctx context.Context, key string) error

	// Delete record by ID
	DeleteByID(ctx context.Context, id uint64) error

	// Delete all expired records
	DeleteExpired(ctx context.Context) (int64, error)
}

// idempotencyRepository idempotency repository implementation
type idempotencyRepository struct {
	db *gorm.DB
}

// NewIdempotencyRepository creates an idempotency repository
func NewIdempotencyRepository(db *gorm.DB) IdempotencyRepository {
	return &idempotencyRepository{db: db}
}

// GetByKey gets a record by key
func (r *idempotencyRepository) GetByKey(ctx context.Context, key string) (*model.IdempotencyKey, error) {
	var record model.IdempotencyKey
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts the placeholder. The unique index on key makes this
// the first-writer-wins primitive the whole layer relies on.
func (r *idempotencyRepository) Create(ctx context.Context, record *model.IdempotencyKey) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// StoreResponse fills in the cached response
func (r *idempotencyRepository) StoreResponse(ctx context.Context, key string, status int, body string) error {
	return r.db.WithContext(ctx).
		Model(&model.IdempotencyKey{}).
		Where("`key` = ?", key).
		Updates(map[string]interface{}{
			"response_status": status,
			"response_body":   body,
		}).Error
}

// DeleteByKey deletes a record by key
func (r *idempotencyRepository) DeleteByKey(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("`key` = ?", key).Delete(&model.IdempotencyKey{}).Error
}

// DeleteByID deletes a record by ID
func (r *idempotencyRepository) DeleteByID(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.IdempotencyKey{}).Error
}

// DeleteExpired deletes all expired records
func (r *idempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&model.IdempotencyKey{})
	return result.RowsAffected, result.Error
}
