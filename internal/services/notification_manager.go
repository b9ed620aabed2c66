package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/models"
)

// NotificationManager serves the operator actions around the reminder ledger:
// one-off sends, retries, history and stats.
type NotificationManager struct {
	clients    ClientStore
	ledger     NotificationQueries
	dispatcher *Dispatcher
	cache      Cache
	loc        *time.Location
	logger     zerolog.Logger
	now        func() time.Time
}

// NewNotificationManager creates a notification manager. cache may be nil.
func NewNotificationManager(clients ClientStore, ledger NotificationQueries, dispatcher *Dispatcher, cache Cache, loc *time.Location, logger zerolog.Logger) *NotificationManager {
	if loc == nil {
		loc = time.Local
	}
	return &NotificationManager{
		clients:    clients,
		ledger:     ledger,
		dispatcher: dispatcher,
		cache:      cache,
		loc:        loc,
		logger:     logger.With().Str("component", "notification-manager").Logger(),
		now:        time.Now,
	}
}

// DispatchSingle sends the current reminder for one client on one channel.
// Lookup failures are reported in the result, never returned.
func (m *NotificationManager) DispatchSingle(ctx context.Context, clientID uuid.UUID, channel models.Channel) ChannelResult {
	client, err := m.clients.FindByID(ctx, clientID)
	if err != nil {
		return failedResult(channel, err)
	}
	days := DaysRemaining(client.ITPExpirationDate, m.now().In(m.loc))
	res := m.dispatcher.Dispatch(ctx, *client, channel, days)
	m.invalidateStats(ctx)
	return res
}

// Retry re-sends on the channel of an earlier notification.
func (m *NotificationManager) Retry(ctx context.Context, notificationID uuid.UUID) ChannelResult {
	n, err := m.ledger.FindByID(ctx, notificationID)
	if err != nil {
		return failedResult("", err)
	}
	m.logger.Info().
		Str("notification_id", notificationID.String()).
		Str("client_id", n.ClientID.String()).
		Str("channel", string(n.Channel)).
		Msg("retrying notification")
	return m.DispatchSingle(ctx, n.ClientID, n.Channel)
}

// TestSendResult reports a manual test send on one or both channels.
type TestSendResult struct {
	Success bool           `json:"success"`
	SMS     *ChannelResult `json:"sms,omitempty"`
	Email   *ChannelResult `json:"email,omitempty"`
}

// SendTest sends the reminder for a client on SMS, EMAIL or BOTH.
func (m *NotificationManager) SendTest(ctx context.Context, clientID uuid.UUID, kind string) (TestSendResult, error) {
	var channels []models.Channel
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "SMS":
		channels = []models.Channel{models.ChannelSMS}
	case "EMAIL":
		channels = []models.Channel{models.ChannelEmail}
	case "BOTH":
		channels = []models.Channel{models.ChannelSMS, models.ChannelEmail}
	default:
		return TestSendResult{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownChannel, kind)
	}

	if _, err := m.clients.FindByID(ctx, clientID); err != nil {
		return TestSendResult{}, err
	}

	var out TestSendResult
	for _, ch := range channels {
		res := m.DispatchSingle(ctx, clientID, ch)
		out.Success = out.Success || res.Success
		if ch == models.ChannelSMS {
			out.SMS = &res
		} else {
			out.Email = &res
		}
	}
	return out, nil
}

// List returns a page of ledger rows and the total match count.
func (m *NotificationManager) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error) {
	filter.Normalize()
	return m.ledger.List(ctx, filter)
}

// ClientHistory returns the latest notifications of one client.
func (m *NotificationManager) ClientHistory(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error) {
	if _, err := m.clients.FindByID(ctx, clientID); err != nil {
		return nil, err
	}
	return m.ledger.ListByClient(ctx, clientID, limit)
}

// Stats aggregates the ledger, served from cache when fresh.
func (m *NotificationManager) Stats(ctx context.Context) (*models.NotificationStats, error) {
	if m.cache != nil {
		var cached models.NotificationStats
		if err := m.cache.Get(ctx, CacheKeyNotificationStats, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := m.ledger.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, CacheKeyNotificationStats, stats, CacheTTLNotificationStats); err != nil {
			m.logger.Warn().Err(err).Msg("failed to cache notification stats")
		}
	}
	return stats, nil
}

// LastRun returns the most recent reminder run summary, or nil when none is known.
func (m *NotificationManager) LastRun(ctx context.Context) (*RunSummary, error) {
	if m.cache == nil {
		return nil, nil
	}
	var summary RunSummary
	if err := m.cache.Get(ctx, CacheKeyLastRun, &summary); err != nil {
		if !errors.Is(err, apperrors.ErrCacheMiss) {
			m.logger.Warn().Err(err).Msg("failed to read last run summary")
		}
		return nil, nil
	}
	return &summary, nil
}

func (m *NotificationManager) invalidateStats(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, CacheKeyNotificationStats); err != nil {
		m.logger.Warn().Err(err).Msg("failed to invalidate notification stats")
	}
}
