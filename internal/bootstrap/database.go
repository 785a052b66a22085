package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"paydibs/internal/models"
)

// Migrate ensures the order, quote and invoice tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Quote{},
		&models.Invoice{},
	}
}
