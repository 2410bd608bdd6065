package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"quickcart/internal/model"
)

// TokenRepository refresh token repository interface
type TokenRepository interface {
	// Create refresh token
	Create(ctx context.Context, token *model.RefreshToken) error

	// Get token record by token value
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)

	// Revoke one token by ID
	Revoke(ctx context.Context, id uint64) error

	// Revoke every active token in a family
	RevokeFamily(ctx context.Context, family string) (int64, error)

	// Revoke a user's specific token by value
	RevokeUserToken(ctx context.Context, userID uint64, token string) error

	// Revoke all active tokens of a user
	RevokeAllForUser(ctx context.Context, userID uint64) (int64, error)

	// Delete tokens expired before cutoff
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// tokenRepository token repository implementation
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a token repository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Create creates a refresh token record
func (r *tokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// GetByToken gets a token record by token value
func (r *tokenRepository) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var record model.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Revoke revokes one token by ID
func (r *tokenRepository) Revoke(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now()).Error
}

// RevokeFamily revokes every active token sharing a family identifier
func (r *tokenRepository) RevokeFamily(ctx context.Context, family string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("family = ? AND revoked_at IS NULL", family).
		Update("revoked_at", time.Now())
	return result.RowsAffected, result.Error
}

// RevokeUserToken revokes a user's specific token by value
func (r *tokenRepository) RevokeUserToken(ctx context.Context, userID uint64, token string) error {
	return r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND token = ? AND revoked_at IS NULL", userID, token).
		Update("revoked_at", time.Now()).Error
}

// RevokeAllForUser revokes all active tokens of a user
func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userID uint64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now())
	return result.RowsAffected, result.Error
}

// DeleteExpiredBefore hard-deletes tokens long past expiry
func (r *tokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.RefreshToken{})
	return result.RowsAffected, result.Error
}
