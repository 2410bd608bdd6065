package model

import (
	"time"
)

// Product is the stock ledger row for a sellable item. StockQuantity is
// the physical on-hand count; ReservedQuantity is the sum of active
// holds. Both are mutated only inside serializable transactions.
type Product struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"type:varchar(200);not null" json:"name"`
	SKU              string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"sku"`
	Price            int64     `gorm:"type:bigint;not null" json:"price"` // cents
	StockQuantity    int       `gorm:"type:int;not null;default:0" json:"stock_quantity"`
	ReservedQuantity int       `gorm:"type:int;not null;default:0" json:"reserved_quantity"`
	IsAvailable      bool      `gorm:"not null;default:true" json:"is_available"`
	CreatedAt        time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// Available is the quantity a new checkout may still claim.
func (p *Product) Available() int {
	return p.StockQuantity - p.ReservedQuantity
}

// InventoryLog is an append-only record of every physical stock
// movement, written in the same transaction as the movement itself.
type InventoryLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID     uint64    `gorm:"type:bigint unsigned;not null;index" json:"product_id"`
	Action        string    `gorm:"type:varchar(32);not null" json:"action"`
	Quantity      int       `gorm:"type:int;not null" json:"quantity"`
	PreviousStock int       `gorm:"type:int;not null" json:"previous_stock"`
	NewStock      int       `gorm:"type:int;not null" json:"new_stock"`
	OrderID       *uint64   `gorm:"type:bigint unsigned;index" json:"order_id,omitempty"`
	Notes         *string   `gorm:"type:varchar(255)" json:"notes,omitempty"`
	PerformedBy   *string   `gorm:"type:varchar(64)" json:"performed_by,omitempty"`
	CreatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (InventoryLog) TableName() string {
	return "inventory_logs"
}

// Inventory log actions
const (
	InventoryActionOrderReserved  = "ORDER_RESERVED"
	InventoryActionOrderCancelled = "ORDER_CANCELLED"
	InventoryActionRestock        = "RESTOCK"
)
