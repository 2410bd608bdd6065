package model

import (
	"time"
)

// IdempotencyKey deduplicates client-retried writes. The unique key
// column makes placeholder creation atomic: the first writer wins and
// everyone else sees either the cached response or a conflict.
// ResponseStatus/ResponseBody stay null while the protected operation
// is still running.
type IdempotencyKey struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Key            string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"key"`
	RequestHash    string    `gorm:"type:char(64);not null" json:"request_hash"`
	ResponseStatus *int      `gorm:"type:int" json:"response_status,omitempty"`
	ResponseBody   *string   `gorm:"type:mediumtext" json:"response_body,omitempty"`
	ExpiresAt      time.Time `gorm:"type:timestamp;not null;index" json:"expires_at"`
	CreatedAt      time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}

// IsExpired reports whether the record should be treated as absent.
func (k *IdempotencyKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}

// HasResponse reports whether the protected operation completed.
func (k *IdempotencyKey) HasResponse() bool {
	return k.ResponseStatus != nil && k.ResponseBody != nil
}
