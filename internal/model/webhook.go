package model

import (
	"time"
)

// WebhookEvent records a processed payment-gateway callback. The
// (provider, event_id) unique index is what deduplicates redeliveries
// before any side effect runs.
type WebhookEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider  string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_provider_event" json:"provider"`
	EventID   string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_provider_event" json:"event_id"`
	EventType string    `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload   string    `gorm:"type:json;not null" json:"payload"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
