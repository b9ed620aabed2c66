package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/models"
)

const recentNotificationsLimit = 5

// NotificationRepository is the gorm-backed notification ledger.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// FindFirst returns the first matching row whose sent_at lies in [start, end], or nil.
func (r *NotificationRepository) FindFirst(ctx context.Context, clientID uuid.UUID, status models.NotificationStatus, start, end time.Time) (*models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND status = ? AND sent_at >= ? AND sent_at <= ?", clientID, status, start, end).
		Order("sent_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// DeleteOlderThan removes rows created before cutoff and reports how many went.
func (r *NotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Preload("Client").First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

// List returns a page of rows, newest first, and the total match count.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&models.Notification{})
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Channel != "" {
		q = q.Where("channel = ?", filter.Channel)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Notification
	err := q.Preload("Client").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *NotificationRepository) ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountByStatusSince counts rows with status created at or after since.
func (r *NotificationRepository) CountByStatusSince(ctx context.Context, status models.NotificationStatus, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("status = ? AND created_at >= ?", status, since).Count(&n).Error
	return n, err
}

type groupCount struct {
	GroupKey string
	Count    int64
}

// Stats counts rows by status and channel and returns the most recent ones.
func (r *NotificationRepository) Stats(ctx context.Context) (*models.NotificationStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.NotificationStats{}

	if err := db.Model(&models.Notification{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	var byStatus []groupCount
	if err := db.Model(&models.Notification{}).
		Select("status AS group_key, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, g := range byStatus {
		switch models.NotificationStatus(g.GroupKey) {
		case models.StatusSent:
			stats.ByStatus.Sent = g.Count
		case models.StatusFailed:
			stats.ByStatus.Failed = g.Count
		case models.StatusPending:
			stats.ByStatus.Pending = g.Count
		}
	}

	var byChannel []groupCount
	if err := db.Model(&models.Notification{}).
		Select("channel AS group_key, COUNT(*) AS count").Group("channel").Scan(&byChannel).Error; err != nil {
		return nil, err
	}
	for _, g := range byChannel {
		switch models.Channel(g.GroupKey) {
		case models.ChannelSMS:
			stats.ByType.SMS = g.Count
		case models.ChannelEmail:
			stats.ByType.Email = g.Count
		}
	}

	if err := db.Preload("Client").Order("created_at DESC").Limit(recentNotificationsLimit).
		Find(&stats.Recent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
