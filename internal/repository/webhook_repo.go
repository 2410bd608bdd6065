package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// WebhookRepository webhook event repository interface
type WebhookRepository interface {
	// Insert records a webhook delivery; ErrDuplicateKey means the
	// provider already delivered this event
	Insert(ctx context.Context, event *model.WebhookEvent) error

	// Exists checks whether a (provider, eventID) pair was processed
	Exists(ctx context.Context, provider, eventID string) (bool, error)
}

// webhookRepository webhook repository implementation
type webhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a webhook repository
func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}

// Insert records a webhook delivery. The unique (provider, event_id)
// index is the dedup barrier.
func (r *webhookRepository) Insert(ctx context.Context, event *model.WebhookEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

// Exists checks whether a (provider, eventID) pair was processed
func (r *webhookRepository) Exists(ctx context.Context, provider, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	return count > 0, err
}
