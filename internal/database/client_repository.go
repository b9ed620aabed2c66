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

// ClientRepository is the gorm-backed client store.
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// FindActiveWithExpiryInRange returns active clients expiring in [start, end], soonest first.
func (r *ClientRepository) FindActiveWithExpiryInRange(ctx context.Context, start, end time.Time) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).
		Where("active = ? AND itp_expiration_date >= ? AND itp_expiration_date <= ?", true, start, end).
		Order("itp_expiration_date ASC").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("select expiring clients: %w", err)
	}
	return clients, nil
}

// CountActive counts clients that are still tracked.
func (r *ClientRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Client{}).Where("active = ?", true).Count(&n).Error
	return n, err
}

// CountActiveExpiredBefore counts active clients whose ITP ended before t.
func (r *ClientRepository) CountActiveExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("active = ? AND itp_expiration_date < ?", true, t).Count(&n).Error
	return n, err
}

// CountActiveWithExpiryInRange counts active clients expiring in [start, end].
func (r *ClientRepository) CountActiveWithExpiryInRange(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("active = ? AND itp_expiration_date >= ? AND itp_expiration_date <= ?", true, start, end).
		Count(&n).Error
	return n, err
}

// ListRecent returns the newest active clients.
func (r *ClientRepository) ListRecent(ctx context.Context, limit int) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).Where("active = ?", true).
		Order("created_at DESC").Limit(limit).Find(&clients).Error
	return clients, err
}

func (r *ClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrClientNotFound
		}
		return nil, err
	}
	return &client, nil
}

// List returns a page of clients matching filter and the total match count.
func (r *ClientRepository) List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int64, error) {
	filter.Normalize()

	q := r.db.WithContext(ctx).Model(&models.Client{})
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR license_plate ILIKE ? OR phone_number ILIKE ? OR email ILIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []models.Client
	err := q.Order("itp_expiration_date ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&clients).Error
	if err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// Create inserts a client. A plate that is already registered yields ErrDuplicatePlate.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	client.LicensePlate = models.NormalizePlate(client.LicensePlate)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("license_plate = ?", client.LicensePlate).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.ErrDuplicatePlate
	}

	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicatePlate
		}
		return err
	}
	return nil
}

// Update saves every field of client.
func (r *ClientRepository) Update(ctx context.Context, client *models.Client) error {
	client.LicensePlate = models.NormalizePlate(client.LicensePlate)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("license_plate = ? AND id <> ?", client.LicensePlate, client.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.ErrDuplicatePlate
	}

	res := r.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", client.ID).Updates(map[string]interface{}{
		"name":                client.Name,
		"license_plate":       client.LicensePlate,
		"phone_number":        client.PhoneNumber,
		"email":               client.Email,
		"itp_expiration_date": client.ITPExpirationDate,
		"locale":              client.Locale,
		"active":              client.Active,
		"updated_at":          time.Now().UTC(),
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicatePlate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrClientNotFound
	}
	return nil
}

// Deactivate soft-deletes a client; it drops out of reminder selection.
func (r *ClientRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrClientNotFound
	}
	return nil
}
