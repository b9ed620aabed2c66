package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redpotato/backend/internal/models"
)

// ClientStore reads client records.
type ClientStore interface {
	// FindActiveWithExpiryInRange returns active clients whose expiry lies in
	// [start, end] inclusive, ordered by expiry ascending.
	FindActiveWithExpiryInRange(ctx context.Context, start, end time.Time) ([]models.Client, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

// NotificationLedger persists and queries send attempts.
type NotificationLedger interface {
	Create(ctx context.Context, n *models.Notification) error
	// FindFirst returns the first row for the client with the given status whose
	// SentAt lies in [start, end], or nil when there is none.
	FindFirst(ctx context.Context, clientID uuid.UUID, status models.NotificationStatus, start, end time.Time) (*models.Notification, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationQueries backs the operator views of the ledger.
type NotificationQueries interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error)
	Stats(ctx context.Context) (*models.NotificationStats, error)
}

// Cache is a JSON key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	CacheKeyNotificationStats = "itp:notifications:stats"
	CacheKeyLastRun           = "itp:reminder:last_run"
	CacheKeyDashboardStats    = "itp:dashboard:stats"

	CacheTTLNotificationStats = time.Minute
	CacheTTLLastRun           = 7 * 24 * time.Hour
	CacheTTLDashboardStats    = 30 * time.Second
)
