package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Channel is the delivery medium of a notification.
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

// ParseChannel accepts the channel name in any case.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToUpper(strings.TrimSpace(s))) {
	case ChannelSMS:
		return ChannelSMS, true
	case ChannelEmail:
		return ChannelEmail, true
	}
	return "", false
}

// NotificationStatus tracks the delivery outcome of a notification attempt.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// Notification is one ledger row: a single send attempt on a single channel.
// SentAt is set only for accepted messages.
type Notification struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ClientID     uuid.UUID          `gorm:"column:client_id;type:uuid;not null;index" json:"client_id"`
	Client       *Client            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Channel      Channel            `gorm:"column:channel;size:10;not null;index" json:"channel"`
	Status       NotificationStatus `gorm:"column:status;size:10;not null;index" json:"status"`
	Subject      string             `gorm:"column:subject;size:255" json:"subject,omitempty"`
	Message      string             `gorm:"column:message;type:text" json:"message"`
	ProviderID   string             `gorm:"column:provider_id;size:255" json:"provider_id,omitempty"`
	ErrorMessage string             `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	SentAt       *time.Time         `gorm:"column:sent_at;index" json:"sent_at"`
	CreatedAt    time.Time          `gorm:"column:created_at;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// NotificationFilter narrows a ledger listing.
type NotificationFilter struct {
	ClientID *uuid.UUID
	Channel  Channel
	Status   NotificationStatus
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// Normalize clamps paging to sane bounds.
func (f *NotificationFilter) Normalize() {
	f.Page, f.Limit = normalizePaging(f.Page, f.Limit)
}

// Normalize clamps paging to sane bounds.
func (f *ClientFilter) Normalize() {
	f.Page, f.Limit = normalizePaging(f.Page, f.Limit)
}

// NotificationStats aggregates the ledger.
type NotificationStats struct {
	Total    int64          `json:"total"`
	ByStatus StatusCounts   `json:"byStatus"`
	ByType   ChannelCounts  `json:"byType"`
	Recent   []Notification `json:"recentNotifications"`
}

type StatusCounts struct {
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

type ChannelCounts struct {
	SMS   int64 `json:"sms"`
	Email int64 `json:"email"`
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
