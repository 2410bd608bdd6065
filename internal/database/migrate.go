package database

import (
	"fmt"

	"quickcart/internal/model"
	"quickcart/pkg/log"
)

// Migrate runs auto-migration for all models.
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.InventoryLog{},
		&model.Reservation{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusHistory{},
		&model.Payment{},
		&model.OutboxEvent{},
		&model.IdempotencyKey{},
		&model.RefreshToken{},
		&model.WebhookEvent{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	log.Info("Database migration completed")
	return nil
}
