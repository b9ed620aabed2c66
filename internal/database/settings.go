package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const jwtSecretKey = "jwt_secret"

// SystemSetting is a persisted key/value pair.
type SystemSetting struct {
	Key   string `gorm:"column:key;size:100;primaryKey"`
	Value string `gorm:"column:value;type:text"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// EnsureJWTSecret returns the persisted signing secret, creating one on first
// use so operator tokens survive restarts when JWT_SECRET is not configured.
func EnsureJWTSecret(ctx context.Context, db *gorm.DB) (string, error) {
	var s SystemSetting
	err := db.WithContext(ctx).Where("key = ?", jwtSecretKey).First(&s).Error
	if err == nil && s.Value != "" {
		return s.Value, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("load jwt secret: %w", err)
	}

	secret, err := generateSecret(32)
	if err != nil {
		return "", err
	}
	// First writer wins; re-read so concurrent starters agree.
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SystemSetting{Key: jwtSecretKey, Value: secret}).Error; err != nil {
		return "", fmt.Errorf("store jwt secret: %w", err)
	}
	if err := db.WithContext(ctx).Where("key = ?", jwtSecretKey).First(&s).Error; err != nil {
		return "", fmt.Errorf("reload jwt secret: %w", err)
	}
	return s.Value, nil
}

func generateSecret(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
