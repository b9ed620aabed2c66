package models

import (
	_ "embed"
	"fmt"

	"gorm.io/gorm"
)

//go:embed schema.sql
var schemaSQL string

// AutoMigrate applies the embedded SQL schema. Every statement is idempotent.
func AutoMigrate(db *gorm.DB) error {
	if err := db.Exec(schemaSQL).Error; err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
