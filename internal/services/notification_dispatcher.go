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

// ChannelResult is the outcome of one channel attempt.
type ChannelResult struct {
	Channel        models.Channel `json:"channel"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
	ProviderID     string         `json:"providerId,omitempty"`
	NotificationID uuid.UUID      `json:"notificationId,omitempty"`
	Simulated      bool           `json:"simulated,omitempty"`

	// Err keeps the cause for callers that need errors.Is.
	Err error `json:"-"`
}

func failedResult(channel models.Channel, err error) ChannelResult {
	return ChannelResult{Channel: channel, Error: err.Error(), Err: err}
}

// DispatchResult is the outcome of sending on both channels.
type DispatchResult struct {
	SMS   ChannelResult `json:"sms"`
	Email ChannelResult `json:"email"`
}

// AnySucceeded reports whether at least one channel accepted the message.
func (r DispatchResult) AnySucceeded() bool {
	return r.SMS.Success || r.Email.Success
}

// Dispatcher composes reminder content, hands it to the channel transports and
// writes one ledger row per attempt. Channel failures never escape as errors.
type Dispatcher struct {
	sms      ChannelSender
	email    ChannelSender
	ledger   NotificationLedger
	composer MessageComposer
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over the given transports.
func NewDispatcher(sms, email ChannelSender, ledger NotificationLedger, composer MessageComposer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sms:      sms,
		email:    email,
		ledger:   ledger,
		composer: composer,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
}

// DispatchBoth sends SMS then email. Each channel is attempted independently.
func (d *Dispatcher) DispatchBoth(ctx context.Context, client models.Client, daysRemaining int) DispatchResult {
	msg, err := d.composer.Compose(client, daysRemaining, d.composer.LocaleFor(client))
	if err != nil {
		return DispatchResult{
			SMS:   d.record(ctx, client, models.ChannelSMS, ComposedMessage{}, nil, err),
			Email: d.record(ctx, client, models.ChannelEmail, ComposedMessage{}, nil, err),
		}
	}
	return DispatchResult{
		SMS:   d.send(ctx, client, models.ChannelSMS, msg),
		Email: d.send(ctx, client, models.ChannelEmail, msg),
	}
}

// Dispatch sends on a single channel.
func (d *Dispatcher) Dispatch(ctx context.Context, client models.Client, channel models.Channel, daysRemaining int) ChannelResult {
	if channel != models.ChannelSMS && channel != models.ChannelEmail {
		return failedResult(channel, fmt.Errorf("%w: %q", apperrors.ErrUnknownChannel, channel))
	}
	msg, err := d.composer.Compose(client, daysRemaining, d.composer.LocaleFor(client))
	if err != nil {
		return d.record(ctx, client, channel, ComposedMessage{}, nil, err)
	}
	return d.send(ctx, client, channel, msg)
}

// DispatchSMS sends the reminder by SMS only.
func (d *Dispatcher) DispatchSMS(ctx context.Context, client models.Client, daysRemaining int) ChannelResult {
	return d.Dispatch(ctx, client, models.ChannelSMS, daysRemaining)
}

// DispatchEmail sends the reminder by email only.
func (d *Dispatcher) DispatchEmail(ctx context.Context, client models.Client, daysRemaining int) ChannelResult {
	return d.Dispatch(ctx, client, models.ChannelEmail, daysRemaining)
}

func (d *Dispatcher) send(ctx context.Context, client models.Client, channel models.Channel, msg ComposedMessage) ChannelResult {
	var (
		sender      ChannelSender
		destination string
		payload     Payload
	)
	switch channel {
	case models.ChannelSMS:
		sender, destination, payload = d.sms, client.PhoneNumber, Payload{Body: msg.SMSText}
	default:
		sender, destination, payload = d.email, client.Email, Payload{Subject: msg.EmailSubject, Body: msg.EmailHTML}
	}

	res, err := safeSend(ctx, sender, destination, payload)
	return d.record(ctx, client, channel, msg, res, err)
}

// safeSend turns a transport panic into an ordinary failure.
func safeSend(ctx context.Context, sender ChannelSender, destination string, payload Payload) (res *SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("transport panic: %v", r)
		}
	}()
	if sender == nil {
		return nil, fmt.Errorf("no transport configured")
	}
	res, err = sender.Send(ctx, destination, payload)
	if err == nil && res == nil {
		err = fmt.Errorf("transport returned no result")
	}
	return res, err
}

// record writes the ledger row for one attempt. A ledger write failure is
// logged and does not change the delivery outcome.
func (d *Dispatcher) record(ctx context.Context, client models.Client, channel models.Channel, msg ComposedMessage, res *SendResult, sendErr error) ChannelResult {
	now := d.now()
	row := &models.Notification{
		ID:        uuid.New(),
		ClientID:  client.ID,
		Channel:   channel,
		CreatedAt: now,
	}
	if channel == models.ChannelSMS {
		row.Message = msg.SMSText
	} else {
		row.Subject = msg.EmailSubject
		row.Message = msg.EmailHTML
	}

	result := ChannelResult{Channel: channel, NotificationID: row.ID}
	if sendErr != nil {
		row.Status = models.StatusFailed
		row.ErrorMessage = sendErr.Error()
		result.Error = sendErr.Error()
		result.Err = sendErr
	} else {
		row.Status = models.StatusSent
		row.SentAt = &now
		row.ProviderID = res.ProviderID
		result.Success = true
		result.ProviderID = res.ProviderID
		result.Simulated = res.Simulated
	}

	if err := d.ledger.Create(ctx, row); err != nil {
		d.logger.Error().Err(err).
			Str("client_id", client.ID.String()).
			Str("channel", string(channel)).
			Str("status", string(row.Status)).
			Msg("failed to record notification")
		result.NotificationID = uuid.Nil
	}

	metrics.IncDispatch(string(channel), string(row.Status))

	ev := d.logger.Info()
	if sendErr != nil {
		ev = d.logger.Warn().Err(sendErr)
	}
	ev.Str("client_id", client.ID.String()).
		Str("license_plate", client.LicensePlate).
		Str("channel", string(channel)).
		Str("status", string(row.Status)).
		Msg("notification attempt")

	return result
}
