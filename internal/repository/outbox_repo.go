package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// OutboxRepository outbox event repository interface
type OutboxRepository interface {
	// WithTx returns a repository bound to the given transaction
	WithTx(tx *gorm.DB) OutboxRepository

	// Create outbox event
	Create(ctx context.Context, event *model.OutboxEvent) error

	// List events ready for dispatch, oldest first
	ListDispatchable(ctx context.Context, maxRetries, limit int) ([]*model.OutboxEvent, error)

	// Mark event as being processed
	MarkProcessing(ctx context.Context, id uint64) error

	// Mark event completed
	MarkCompleted(ctx context.Context, id uint64, processedAt time.Time) error

	// Mark event failed with error, incrementing retries
	MarkFailed(ctx context.Context, id uint64, lastError string) error

	// Delete completed events processed before cutoff
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Count events stuck in FAILED at or past the retry ceiling
	CountDead(ctx context.Context, maxRetries int) (int64, error)
}

// outboxRepository outbox repository implementation
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates an outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *outboxRepository) WithTx(tx *gorm.DB) OutboxRepository {
	return &outboxRepository{db: tx}
}

// Create creates an outbox event
func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListDispatchable lists PENDING and retriable FAILED events in
// creation order.
func (r *outboxRepository) ListDispatchable(ctx context.Context, maxRetries, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status IN ? AND retries < ?",
			[]model.OutboxStatus{model.OutboxStatusPending, model.OutboxStatusFailed}, maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkProcessing marks an event as being processed
func (r *outboxRepository) MarkProcessing(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("status", model.OutboxStatusProcessing).Error
}

// MarkCompleted marks an event completed
func (r *outboxRepository) MarkCompleted(ctx context.Context, id uint64, processedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       model.OutboxStatusCompleted,
			"processed_at": processedAt,
		}).Error
}

// MarkFailed records the error and increments the retry count
func (r *outboxRepository) MarkFailed(ctx context.Context, id uint64, lastError string) error {
	if len(lastError) > 500 {
		lastError = lastError[:500]
	}
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OutboxStatusFailed,
			"retries":    gorm.Expr("retries + 1"),
			"last_error": lastError,
		}).Error
}

// DeleteCompletedBefore deletes COMPLETED events processed before cutoff
func (r *outboxRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", model.OutboxStatusCompleted, cutoff).
		Delete(&model.OutboxEvent{})
	return result.RowsAffected, result.Error
}

// CountDead counts events left in FAILED past the retry ceiling, which
// are surfaced for manual inspection rather than retried forever.
func (r *outboxRepository) CountDead(ctx context.Context, maxRetries int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("status = ? AND retries >= ?", model.OutboxStatusFailed, maxRetries).
		Count(&count).Error
	return count, err
}
