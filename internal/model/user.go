package model

import (
	"time"
)

// User user model. Profile editing lives outside this core; the row
// exists for ownership of orders, reservations and token families.
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(128);not null" json:"-"`
	Name         *string    `gorm:"type:varchar(100)" json:"name,omitempty"`
	Role         string     `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt  *time.Time `gorm:"type:timestamp" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (User) TableName() string {
	return "users"
}
