package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpotato/backend/internal/logger"
	"github.com/redpotato/backend/internal/models"
)

type jobHarness struct {
	job     *ReminderJob
	clients *memClients
	ledger  *memLedger
	sms     *fakeSender
	email   *fakeSender
	cache   *memCache
	pauses  int
	now     time.Time
}

func newJobHarness(clients ...models.Client) *jobHarness {
	h := &jobHarness{
		clients: &memClients{clients: clients},
		ledger:  &memLedger{},
		sms:     &fakeSender{channel: "SMS"},
		email:   &fakeSender{channel: "Email"},
		cache:   newMemCache(),
		now:     fixedNow,
	}
	d := NewDispatcher(h.sms, h.email, h.ledger, testComposer(), logger.Nop())
	d.now = func() time.Time { return h.now }
	h.job = NewReminderJob(h.clients, h.ledger, d, h.cache, ReminderJobConfig{
		LookaheadDays: 7,
		Pacing:        500 * time.Millisecond,
		Location:      time.UTC,
	}, logger.Nop())
	h.job.now = func() time.Time { return h.now }
	h.job.sleep = func(context.Context, time.Duration) { h.pauses++ }
	return h
}

func (h *jobHarness) run() RunSummary {
	return h.job.Run(context.Background(), TriggerManual)
}

func TestReminderEndToEnd(t *testing.T) {
	client := testClient("popescu", fixedNow.Add(72*time.Hour))
	h := newJobHarness(client)

	summary := h.run()

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.TotalClients)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	require.Len(t, summary.Results, 1)
	require.NotNil(t, summary.Results[0].DaysRemaining)
	assert.Equal(t, 3, *summary.Results[0].DaysRemaining)
	assert.Equal(t, "sent", summary.Results[0].SMS)
	assert.Equal(t, "sent", summary.Results[0].Email)

	assert.Equal(t, 1, h.ledger.count(client.ID, models.ChannelSMS, models.StatusSent))
	assert.Equal(t, 1, h.ledger.count(client.ID, models.ChannelEmail, models.StatusSent))
	for _, r := range h.ledger.snapshot() {
		require.NotNil(t, r.SentAt)
		assert.Equal(t, fixedNow, *r.SentAt)
		switch r.Channel {
		case models.ChannelEmail:
			assert.Equal(t, "[URGENT] Reminder ITP - "+client.LicensePlate, r.Subject)
		case models.ChannelSMS:
			assert.Contains(t, r.Message, "expira in 3 zile")
			assert.NotContains(t, r.Message, "a expirat")
		}
	}
}

func TestReminderIsIdempotentWithinADay(t *testing.T) {
	client := testClient("popescu", fixedNow.Add(72*time.Hour))
	h := newJobHarness(client)

	first := h.run()
	require.Equal(t, 1, first.SuccessCount)

	h.now = fixedNow.Add(4 * time.Hour)
	second := h.run()

	assert.True(t, second.Success)
	assert.Equal(t, 1, second.SkipCount)
	assert.Equal(t, 0, second.SuccessCount)
	assert.Equal(t, OutcomeSkipped, second.Results[0].Status)
	assert.Equal(t, "Already notified today", second.Results[0].Reason)
	assert.Len(t, h.ledger.snapshot(), 2)
	assert.Equal(t, 1, h.sms.calls())
}

func TestReminderSendsAgainNextDay(t *testing.T) {
	client := testClient("popescu", fixedNow.Add(72*time.Hour))
	h := newJobHarness(client)

	h.run()
	h.now = fixedNow.Add(24 * time.Hour)
	summary := h.run()

	assert.Equal(t, 1, summary.SuccessCount)
	require.NotNil(t, summary.Results[0].DaysRemaining)
	assert.Equal(t, 2, *summary.Results[0].DaysRemaining)
	assert.Len(t, h.ledger.snapshot(), 4)
}

func TestReminderSingleSuccessfulChannelBlocksResend(t *testing.T) {
	client := testClient("popescu", fixedNow.Add(72*time.Hour))
	h := newJobHarness(client)
	h.sms.fail = errors.New("carrier down")

	first := h.run()
	assert.Equal(t, OutcomeSuccess, first.Results[0].Status)
	assert.Equal(t, "failed", first.Results[0].SMS)
	assert.Contains(t, first.Results[0].SMSError, "carrier down")

	h.sms.fail = nil
	second := h.run()
	assert.Equal(t, OutcomeSkipped, second.Results[0].Status)
}

func TestReminderFailedRunIsRetriedSameDay(t *testing.T) {
	client := testClient("popescu", fixedNow.Add(72*time.Hour))
	h := newJobHarness(client)
	h.sms.fail = errors.New("down")
	h.email.fail = errors.New("down")

	first := h.run()
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.FailureCount)
	assert.Equal(t, OutcomeFailed, first.Results[0].Status)

	h.sms.fail, h.email.fail = nil, nil
	second := h.run()
	assert.Equal(t, OutcomeSuccess, second.Results[0].Status)
	assert.Equal(t, 1, h.ledger.count(client.ID, models.ChannelSMS, models.StatusFailed))
	assert.Equal(t, 1, h.ledger.count(client.ID, models.ChannelSMS, models.StatusSent))
}

func TestReminderBatchSurvivesMalformedClient(t *testing.T) {
	var clients []models.Client
	for i, name := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		clients = append(clients, testClient(name, fixedNow.Add(time.Duration(i+1)*24*time.Hour)))
	}
	clients[2].ITPExpirationDate = time.Time{}

	h := newJobHarness(clients...)
	h.clients.raw = true

	summary := h.run()

	assert.True(t, summary.Success)
	assert.Equal(t, 5, summary.TotalClients)
	assert.Equal(t, 4, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	assert.Equal(t, 1, summary.ErrorCount)
	require.Len(t, summary.Results, 5)
	assert.Equal(t, OutcomeError, summary.Results[2].Status)
	assert.Contains(t, summary.Results[2].Error, "malformed client record")
	assert.Equal(t, 4, h.sms.calls())
	assert.Equal(t, OutcomeSuccess, summary.Results[3].Status)
	assert.Equal(t, OutcomeSuccess, summary.Results[4].Status)
}

type panickyDispatcher struct {
	inner   ReminderDispatcher
	panicOn uuid.UUID
}

func (p panickyDispatcher) DispatchBoth(ctx context.Context, client models.Client, days int) DispatchResult {
	if client.ID == p.panicOn {
		panic("unexpected nil")
	}
	return p.inner.DispatchBoth(ctx, client, days)
}

func TestReminderBatchSurvivesPanic(t *testing.T) {
	a := testClient("alpha", fixedNow.Add(24*time.Hour))
	b := testClient("bravo", fixedNow.Add(48*time.Hour))
	c := testClient("charlie", fixedNow.Add(72*time.Hour))

	h := newJobHarness(a, b, c)
	h.job.dispatcher = panickyDispatcher{inner: h.job.dispatcher, panicOn: b.ID}

	summary := h.run()

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, OutcomeError, summary.Results[1].Status)
	assert.Contains(t, summary.Results[1].Error, "unexpected nil")
}

func TestReminderWindowBoundaries(t *testing.T) {
	y, m, d := fixedNow.Date()
	inside := testClient("inside", time.Date(y, m, d+7, 23, 59, 59, 999000000, time.UTC))
	outside := testClient("outside", time.Date(y, m, d+8, 0, 0, 0, 0, time.UTC))
	earlyToday := testClient("early", time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	yesterday := testClient("yesterday", time.Date(y, m, d-1, 23, 59, 0, 0, time.UTC))

	h := newJobHarness(inside, outside, earlyToday, yesterday)
	summary := h.run()

	assert.Equal(t, 2, summary.TotalClients)
	require.Len(t, summary.Results, 2)
	// Ordered by expiry ascending.
	assert.Equal(t, earlyToday.ID, summary.Results[0].ClientID)
	assert.Equal(t, 0, *summary.Results[0].DaysRemaining)
	assert.Equal(t, inside.ID, summary.Results[1].ClientID)

	assert.Equal(t, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), h.clients.lastStart)
	assert.True(t, h.clients.lastEnd.After(inside.ITPExpirationDate) || h.clients.lastEnd.Equal(inside.ITPExpirationDate))
}

func TestReminderSkipsInactiveClients(t *testing.T) {
	c := testClient("sleepy", fixedNow.Add(48*time.Hour))
	c.Active = false
	h := newJobHarness(c)

	summary := h.run()
	assert.True(t, summary.Success)
	assert.Equal(t, "No clients with expiring ITP", summary.Message)
	assert.Equal(t, 0, summary.TotalClients)
}

func TestReminderSelectorFailure(t *testing.T) {
	h := newJobHarness()
	h.clients.err = errors.New("connection refused")

	summary := h.run()
	assert.False(t, summary.Success)
	assert.Equal(t, "ITP reminder job failed", summary.Message)
	assert.Contains(t, summary.Error, "connection refused")
}

func TestReminderDedupLookupFailureAbortsBatch(t *testing.T) {
	h := newJobHarness(testClient("alpha", fixedNow.Add(24*time.Hour)), testClient("bravo", fixedNow.Add(48*time.Hour)))
	h.ledger.findErr = errors.New("relation does not exist")

	summary := h.run()
	assert.False(t, summary.Success)
	assert.Contains(t, summary.Error, "relation does not exist")
	assert.Equal(t, 0, h.sms.calls())
}

func TestReminderPacesBetweenDispatches(t *testing.T) {
	a := testClient("alpha", fixedNow.Add(24*time.Hour))
	b := testClient("bravo", fixedNow.Add(48*time.Hour))
	c := testClient("charlie", fixedNow.Add(72*time.Hour))
	h := newJobHarness(a, b, c)

	h.run()
	assert.Equal(t, 2, h.pauses)

	h.pauses = 0
	h.run()
	assert.Equal(t, 0, h.pauses, "skipped clients are not paced")
}

func TestReminderStoresLastRun(t *testing.T) {
	h := newJobHarness(testClient("alpha", fixedNow.Add(24*time.Hour)))
	require.NoError(t, h.cache.Set(context.Background(), CacheKeyNotificationStats, 1, time.Minute))

	h.run()

	var last RunSummary
	require.NoError(t, h.cache.Get(context.Background(), CacheKeyLastRun, &last))
	assert.Equal(t, TriggerManual, last.Trigger)
	assert.Equal(t, 1, last.SuccessCount)
	assert.False(t, h.cache.has(CacheKeyNotificationStats))
}
