package model

import (
	"time"
)

// Reservation is a provisional, time-bounded hold against available
// stock. Exactly one of ReleasedAt or ConvertedAt is ever set; a
// reservation with neither is active and counts against the product's
// ReservedQuantity.
type Reservation struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   uint64     `gorm:"type:bigint unsigned;not null;index" json:"product_id"`
	UserID      uint64     `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	SessionID   *string    `gorm:"type:varchar(64)" json:"session_id,omitempty"`
	OrderID     *uint64    `gorm:"type:bigint unsigned;index" json:"order_id,omitempty"`
	Quantity    int        `gorm:"type:int;not null" json:"quantity"`
	ExpiresAt   time.Time  `gorm:"type:timestamp;not null;index" json:"expires_at"`
	ReleasedAt  *time.Time `gorm:"type:timestamp" json:"released_at,omitempty"`
	ConvertedAt *time.Time `gorm:"type:timestamp" json:"converted_at,omitempty"`
	CreatedAt   time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName set name
func (Reservation) TableName() string {
	return "inventory_reservations"
}

// IsActive reports whether the hold still counts against reserved stock.
func (r *Reservation) IsActive() bool {
	return r.ReleasedAt == nil && r.ConvertedAt == nil
}

// IsExpired reports whether the hold's TTL has passed.
func (r *Reservation) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}
