package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a vehicle owner with a single tracked ITP expiry.
type Client struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name              string         `gorm:"column:name;size:255;not null" json:"name"`
	LicensePlate      string         `gorm:"column:license_plate;size:20;uniqueIndex;not null" json:"license_plate"`
	PhoneNumber       string         `gorm:"column:phone_number;size:20;not null" json:"phone_number"`
	Email             string         `gorm:"column:email;size:255;not null" json:"email"`
	ITPExpirationDate time.Time      `gorm:"column:itp_expiration_date;not null;index" json:"itp_expiration_date"`
	Locale            string         `gorm:"column:locale;size:5" json:"locale,omitempty"`
	Active            bool           `gorm:"column:active;index" json:"active"`
	CreatedAt         time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at" json:"updated_at"`
	Notifications     []Notification `gorm:"foreignKey:ClientID" json:"notifications,omitempty"`
}

func (Client) TableName() string {
	return "clients"
}

// BeforeCreate assigns an ID and canonicalises the plate.
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.LicensePlate = NormalizePlate(c.LicensePlate)
	return nil
}

// NormalizePlate upper-cases and trims a registration number.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// ClientFilter narrows a client listing.
type ClientFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	Limit      int
}
