package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/logger"
	"github.com/redpotato/backend/internal/models"
)

type managerHarness struct {
	m      *NotificationManager
	ledger *memLedger
	sms    *fakeSender
	email  *fakeSender
	cache  *memCache
	client models.Client
}

func newManagerHarness() *managerHarness {
	h := &managerHarness{
		ledger: &memLedger{},
		sms:    &fakeSender{channel: "SMS"},
		email:  &fakeSender{channel: "Email"},
		cache:  newMemCache(),
		client: testClient("popescu", fixedNow.Add(72*time.Hour)),
	}
	clients := &memClients{clients: []models.Client{h.client}}
	d := newTestDispatcher(h.sms, h.email, h.ledger)
	h.m = NewNotificationManager(clients, h.ledger, d, h.cache, time.UTC, logger.Nop())
	h.m.now = func() time.Time { return fixedNow }
	return h
}

func TestDispatchSingle(t *testing.T) {
	h := newManagerHarness()

	res := h.m.DispatchSingle(context.Background(), h.client.ID, models.ChannelSMS)
	assert.True(t, res.Success)
	assert.NotEqual(t, uuid.Nil, res.NotificationID)
	assert.Equal(t, 1, h.sms.calls())
	assert.Equal(t, 0, h.email.calls())
}

func TestDispatchSingleUnknownClient(t *testing.T) {
	h := newManagerHarness()

	res := h.m.DispatchSingle(context.Background(), uuid.New(), models.ChannelSMS)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, apperrors.ErrClientNotFound)
	assert.Empty(t, h.ledger.snapshot())
}

func TestRetryResendsSameChannel(t *testing.T) {
	h := newManagerHarness()
	h.email.fail = assert.AnError

	first := h.m.DispatchSingle(context.Background(), h.client.ID, models.ChannelEmail)
	require.False(t, first.Success)

	h.email.fail = nil
	res := h.m.Retry(context.Background(), first.NotificationID)
	assert.True(t, res.Success)
	assert.Equal(t, models.ChannelEmail, res.Channel)
	assert.Equal(t, 2, h.email.calls())
	assert.Equal(t, 0, h.sms.calls())
	assert.Len(t, h.ledger.snapshot(), 2)
}

func TestRetryUnknownNotification(t *testing.T) {
	h := newManagerHarness()

	res := h.m.Retry(context.Background(), uuid.New())
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, apperrors.ErrNotificationNotFound)
}

func TestSendTest(t *testing.T) {
	h := newManagerHarness()

	res, err := h.m.SendTest(context.Background(), h.client.ID, "both")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.SMS)
	require.NotNil(t, res.Email)
	assert.True(t, res.SMS.Success)
	assert.True(t, res.Email.Success)

	res, err = h.m.SendTest(context.Background(), h.client.ID, "EMAIL")
	require.NoError(t, err)
	assert.Nil(t, res.SMS)
	assert.NotNil(t, res.Email)

	_, err = h.m.SendTest(context.Background(), h.client.ID, "PIGEON")
	assert.ErrorIs(t, err, apperrors.ErrUnknownChannel)

	_, err = h.m.SendTest(context.Background(), uuid.New(), "SMS")
	assert.ErrorIs(t, err, apperrors.ErrClientNotFound)
}

func TestStatsAreCachedAndInvalidated(t *testing.T) {
	h := newManagerHarness()
	ctx := context.Background()

	h.m.DispatchSingle(ctx, h.client.ID, models.ChannelSMS)
	stats, err := h.m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.True(t, h.cache.has(CacheKeyNotificationStats))

	h.m.DispatchSingle(ctx, h.client.ID, models.ChannelEmail)
	assert.False(t, h.cache.has(CacheKeyNotificationStats))

	stats, err = h.m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus.Sent)
	assert.Equal(t, int64(1), stats.ByType.SMS)
	assert.Equal(t, int64(1), stats.ByType.Email)
}

func TestClientHistory(t *testing.T) {
	h := newManagerHarness()
	ctx := context.Background()
	h.m.SendTest(ctx, h.client.ID, "BOTH")

	rows, err := h.m.ClientHistory(ctx, h.client.ID, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = h.m.ClientHistory(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, apperrors.ErrClientNotFound)
}

func TestLastRun(t *testing.T) {
	h := newManagerHarness()
	ctx := context.Background()

	last, err := h.m.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, h.cache.Set(ctx, CacheKeyLastRun, RunSummary{Success: true, TotalClients: 4}, time.Hour))
	last, err = h.m.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 4, last.TotalClients)
}

func TestLastRunCacheUnavailable(t *testing.T) {
	h := newManagerHarness()
	ctx := context.Background()
	require.NoError(t, h.cache.Set(ctx, CacheKeyLastRun, RunSummary{Success: true}, time.Hour))
	h.cache.down = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

	last, err := h.m.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}
