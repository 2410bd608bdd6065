package model

import (
	"time"
)

// RefreshToken is one link in a rotation chain. All tokens descending
// from one login share a Family; presenting a revoked token is replay
// evidence and kills the whole family.
type RefreshToken struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token     string     `gorm:"type:varchar(512);uniqueIndex:idx_refresh_token,length:255;not null" json:"-"`
	UserID    uint64     `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	Family    string     `gorm:"type:varchar(36);not null;index" json:"family"`
	ExpiresAt time.Time  `gorm:"type:timestamp;not null" json:"expires_at"`
	RevokedAt *time.Time `gorm:"type:timestamp" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsExpired reports whether the token's lifetime has passed.
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsRevoked reports whether the token was rotated or explicitly revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}
