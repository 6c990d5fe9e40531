package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"topupstore/internal/models"
)

// Migrate ensures the orders and payments tables exist. Rows are financial
// records and are never dropped or rewritten here.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Order{}, &models.Payment{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
