package model

import (
	"time"
)

// OutboxStatus outbox event processing state
type OutboxStatus string

// Outbox statuses
const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusCompleted  OutboxStatus = "COMPLETED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// OutboxEvent is a pending domain event, written in the same
// transaction as the business mutation it describes and drained by the
// background dispatcher. An ORDER_CREATED row exists if and only if the
// order row exists.
type OutboxEvent struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Type        string         `gorm:"type:varchar(40);not null;index" json:"type"`
	Payload     string         `gorm:"type:json;not null" json:"payload"`
	Status      OutboxStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Retries     int            `gorm:"type:int;not null;default:0" json:"retries"`
	LastError   *string        `gorm:"type:varchar(500)" json:"last_error,omitempty"`
	ProcessedAt *time.Time     `gorm:"type:timestamp" json:"processed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
