package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/apperrors"
)

const smsChannelName = "SMS"

// SMSConfig holds the Twilio account used for SMS delivery.
type SMSConfig struct {
	AccountSID    string
	AuthToken     string
	From          string
	BaseURL       string
	CountryPrefix string
	Timeout       time.Duration
}

// SMSService sends SMS through the Twilio REST API.
// Without credentials it runs in simulation mode and only logs.
type SMSService struct {
	cfg    SMSConfig
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewSMSService creates a new SMS service
func NewSMSService(cfg SMSConfig, logger zerolog.Logger) *SMSService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.CountryPrefix == "" {
		cfg.CountryPrefix = "+4"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMSService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "sms").Logger(),
		now:    time.Now,
	}
}

// Simulated reports whether credentials are missing.
func (s *SMSService) Simulated() bool {
	return s.cfg.AccountSID == "" || s.cfg.AuthToken == ""
}

type twilioResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send delivers payload.Body to the phone number in destination.
func (s *SMSService) Send(ctx context.Context, destination string, payload Payload) (*SendResult, error) {
	if strings.TrimSpace(destination) == "" {
		return nil, &apperrors.SendError{Channel: smsChannelName, Err: apperrors.ErrMissingDestination}
	}
	to := NormalizePhoneNumber(destination, s.cfg.CountryPrefix)

	if s.Simulated() {
		id := simulatedID(s.now())
		s.logger.Info().Str("to", to).Str("provider_id", id).Str("body", payload.Body).Msg("simulated SMS")
		return &SendResult{ProviderID: id, Simulated: true}, nil
	}

	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.AccountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", s.cfg.From)
	data.Set("Body", payload.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &apperrors.SendError{Channel: smsChannelName, Err: fmt.Errorf("create request: %w", err)}
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &apperrors.SendError{Channel: smsChannelName, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var tr twilioResponse
	_ = json.Unmarshal(body, &tr)

	if resp.StatusCode >= 400 {
		msg := tr.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &apperrors.SendError{
			Channel: smsChannelName,
			Err:     fmt.Errorf("twilio error (%d): %s", resp.StatusCode, msg),
		}
	}
	if tr.SID == "" {
		return nil, &apperrors.SendError{Channel: smsChannelName, Err: errors.New("twilio response missing message sid")}
	}

	s.logger.Info().Str("to", to).Str("provider_id", tr.SID).Str("status", tr.Status).Msg("SMS sent")
	return &SendResult{ProviderID: tr.SID}, nil
}

// NormalizePhoneNumber converts a local number to international format.
// Separators are stripped, "00" becomes "+", and a leading "0" gets countryPrefix.
func NormalizePhoneNumber(phone, countryPrefix string) string {
	p := strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	switch {
	case p == "":
		return p
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "00"):
		return "+" + p[2:]
	case strings.HasPrefix(p, "0"):
		return countryPrefix + p
	default:
		return "+" + p
	}
}
