package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/metrics"
	"github.com/redpotato/backend/internal/models"
)

// Triggers recorded on each run summary.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// Outcome is the per-client result of a reminder run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// ClientOutcome is the per-client detail line of a run summary.
type ClientOutcome struct {
	ClientID      uuid.UUID `json:"clientId"`
	Client        string    `json:"client"`
	LicensePlate  string    `json:"licensePlate"`
	Status        Outcome   `json:"status"`
	DaysRemaining *int      `json:"daysRemaining,omitempty"`
	SMS           string    `json:"sms,omitempty"`
	Email         string    `json:"email,omitempty"`
	SMSError      string    `json:"smsError,omitempty"`
	EmailError    string    `json:"emailError,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// RunSummary is returned by every reminder run, including failed ones.
type RunSummary struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	Error        string          `json:"error,omitempty"`
	Trigger      string          `json:"trigger"`
	StartedAt    time.Time       `json:"startedAt"`
	FinishedAt   time.Time       `json:"finishedAt"`
	TotalClients int             `json:"totalClients"`
	SuccessCount int             `json:"successCount"`
	FailureCount int             `json:"failureCount"`
	ErrorCount   int             `json:"errorCount"`
	SkipCount    int             `json:"skipCount"`
	Results      []ClientOutcome `json:"results"`
}

// ReminderDispatcher sends a reminder on every channel.
type ReminderDispatcher interface {
	DispatchBoth(ctx context.Context, client models.Client, daysRemaining int) DispatchResult
}

// ReminderJobConfig tunes a reminder run.
type ReminderJobConfig struct {
	LookaheadDays int
	Pacing        time.Duration
	Location      *time.Location
}

// ReminderJob selects clients whose ITP expires soon, skips those already
// notified today and dispatches a reminder to the rest, one at a time.
type ReminderJob struct {
	clients    ClientStore
	ledger     NotificationLedger
	dispatcher ReminderDispatcher
	cache      Cache
	cfg        ReminderJobConfig
	logger     zerolog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
}

// NewReminderJob creates a reminder job. cache may be nil.
func NewReminderJob(clients ClientStore, ledger NotificationLedger, dispatcher ReminderDispatcher, cache Cache, cfg ReminderJobConfig, logger zerolog.Logger) *ReminderJob {
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &ReminderJob{
		clients:    clients,
		ledger:     ledger,
		dispatcher: dispatcher,
		cache:      cache,
		cfg:        cfg,
		logger:     logger.With().Str("component", "reminder-job").Logger(),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// getNow returns the current time in the configured timezone
func (j *ReminderJob) getNow() time.Time {
	return j.now().In(j.cfg.Location)
}

// Run executes one reminder pass. It never panics and never returns an error;
// every failure is folded into the summary.
func (j *ReminderJob) Run(ctx context.Context, trigger string) (summary RunSummary) {
	now := j.getNow()
	summary = RunSummary{Trigger: trigger, StartedAt: now, Results: []ClientOutcome{}}

	defer func() {
		if r := recover(); r != nil {
			summary.Success = false
			summary.Message = "ITP reminder job failed"
			summary.Error = fmt.Sprintf("panic: %v", r)
		}
		summary.FinishedAt = j.getNow()
		j.finish(context.WithoutCancel(ctx), summary)
	}()

	start, end := ReminderWindow(now, j.cfg.LookaheadDays)
	j.logger.Info().
		Str("trigger", trigger).
		Time("window_start", start).
		Time("window_end", end).
		Msg("ITP reminder job started")

	clients, err := j.clients.FindActiveWithExpiryInRange(ctx, start, end)
	if err != nil {
		summary.Message = "ITP reminder job failed"
		summary.Error = err.Error()
		return summary
	}

	summary.TotalClients = len(clients)
	if len(clients) == 0 {
		summary.Success = true
		summary.Message = "No clients with expiring ITP"
		return summary
	}

	for i, client := range clients {
		outcome, abort := j.processClient(ctx, client, now)
		if abort != nil {
			summary.Message = "ITP reminder job failed"
			summary.Error = abort.Error()
			return summary
		}

		ev := j.logger.Info().
			Str("client_id", client.ID.String()).
			Str("license_plate", client.LicensePlate).
			Str("outcome", string(outcome.Status))
		if outcome.DaysRemaining != nil {
			ev = ev.Int("days_remaining", *outcome.DaysRemaining)
		}
		ev.Msg("client processed")

		summary.Results = append(summary.Results, outcome)
		metrics.IncClientOutcome(string(outcome.Status))
		switch outcome.Status {
		case OutcomeSuccess:
			summary.SuccessCount++
		case OutcomeFailed:
			summary.FailureCount++
		case OutcomeError:
			summary.FailureCount++
			summary.ErrorCount++
		case OutcomeSkipped:
			summary.SkipCount++
		}

		if outcome.Status != OutcomeSkipped && outcome.Status != OutcomeError && i < len(clients)-1 {
			j.sleep(ctx, j.cfg.Pacing)
		}
	}

	summary.Success = true
	summary.Message = "ITP reminder job completed"
	return summary
}

// processClient handles one client. A non-nil error means the ledger could not
// be queried and the batch must stop; everything else is folded into the outcome.
func (j *ReminderJob) processClient(ctx context.Context, client models.Client, now time.Time) (out ClientOutcome, abort error) {
	out = ClientOutcome{
		ClientID:     client.ID,
		Client:       client.Name,
		LicensePlate: client.LicensePlate,
	}
	defer func() {
		if r := recover(); r != nil {
			out.Status = OutcomeError
			out.Error = fmt.Sprintf("panic: %v", r)
			j.logger.Error().Str("client_id", client.ID.String()).Interface("panic", r).Msg("client processing panicked")
		}
	}()

	existing, err := j.ledger.FindFirst(ctx, client.ID, models.StatusSent, StartOfDay(now), EndOfDay(now))
	if err != nil {
		return out, fmt.Errorf("dedup lookup for client %s: %w", client.ID, err)
	}
	if existing != nil {
		out.Status = OutcomeSkipped
		out.Reason = "Already notified today"
		j.logger.Debug().Str("client_id", client.ID.String()).Msg("already notified today")
		return out, nil
	}

	if err := validateForReminder(client); err != nil {
		out.Status = OutcomeError
		out.Error = err.Error()
		j.logger.Warn().Err(err).Str("client_id", client.ID.String()).Msg("skipping malformed client")
		return out, nil
	}

	days := DaysRemaining(client.ITPExpirationDate, now)
	out.DaysRemaining = &days

	res := j.dispatcher.DispatchBoth(ctx, client, days)
	out.SMS, out.SMSError = channelStatus(res.SMS)
	out.Email, out.EmailError = channelStatus(res.Email)
	if res.AnySucceeded() {
		out.Status = OutcomeSuccess
	} else {
		out.Status = OutcomeFailed
	}
	return out, nil
}

func validateForReminder(client models.Client) error {
	if client.ITPExpirationDate.IsZero() {
		return fmt.Errorf("%w: missing ITP expiration date", apperrors.ErrMalformedClient)
	}
	if client.PhoneNumber == "" && client.Email == "" {
		return fmt.Errorf("%w: no phone number or email", apperrors.ErrMalformedClient)
	}
	return nil
}

func channelStatus(r ChannelResult) (string, string) {
	if r.Success {
		return string(models.StatusSent), ""
	}
	return string(models.StatusFailed), r.Error
}

func (j *ReminderJob) finish(ctx context.Context, summary RunSummary) {
	metrics.ObserveReminderRun(summary.Trigger, summary.Success, summary.FinishedAt.Sub(summary.StartedAt))

	ev := j.logger.Info()
	if !summary.Success {
		ev = j.logger.Error().Str("error", summary.Error)
	}
	ev.Str("trigger", summary.Trigger).
		Int("total", summary.TotalClients).
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailureCount).
		Int("skipped", summary.SkipCount).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg(summary.Message)

	if j.cache == nil {
		return
	}
	if err := j.cache.Set(ctx, CacheKeyLastRun, summary, CacheTTLLastRun); err != nil {
		j.logger.Warn().Err(err).Msg("failed to store last run summary")
	}
	if err := j.cache.Delete(ctx, CacheKeyNotificationStats); err != nil {
		j.logger.Warn().Err(err).Msg("failed to invalidate notification stats")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
