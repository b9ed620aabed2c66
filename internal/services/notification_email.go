package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/apperrors"
)

const emailChannelName = "Email"

// EmailConfig holds the SMTP relay settings.
type EmailConfig struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// EmailService sends HTML email over SMTP.
// Without credentials it runs in simulation mode and only logs.
type EmailService struct {
	cfg      EmailConfig
	fromAddr string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEmailService creates a new email service
func NewEmailService(cfg EmailConfig, logger zerolog.Logger) *EmailService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	fromAddr := cfg.From
	if addr, err := mail.ParseAddress(cfg.From); err == nil {
		fromAddr = addr.Address
	}
	return &EmailService{
		cfg:      cfg,
		fromAddr: fromAddr,
		logger:   logger.With().Str("component", "email").Logger(),
		now:      time.Now,
	}
}

// Simulated reports whether SMTP credentials are missing.
func (s *EmailService) Simulated() bool {
	return s.cfg.Username == "" || s.cfg.Password == ""
}

// Send delivers an HTML email. The generated Message-ID is returned as provider ID.
func (s *EmailService) Send(ctx context.Context, destination string, payload Payload) (*SendResult, error) {
	to := strings.TrimSpace(destination)
	if to == "" {
		return nil, &apperrors.SendError{Channel: emailChannelName, Err: apperrors.ErrMissingDestination}
	}

	now := s.now()
	if s.Simulated() {
		id := simulatedID(now) + "@simulated.local"
		s.logger.Info().Str("to", to).Str("subject", payload.Subject).Str("provider_id", id).Msg("simulated email")
		return &SendResult{ProviderID: id, Simulated: true}, nil
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.fromAddr))
	msg, err := buildMessage(s.cfg.From, to, payload.Subject, payload.Body, messageID, now)
	if err != nil {
		return nil, &apperrors.SendError{Channel: emailChannelName, Err: err}
	}

	if err := s.deliver(ctx, to, msg); err != nil {
		return nil, &apperrors.SendError{Channel: emailChannelName, Err: err}
	}

	s.logger.Info().Str("to", to).Str("provider_id", messageID).Msg("email sent")
	return &SendResult{ProviderID: messageID}, nil
}

func (s *EmailService) implicitTLS() bool {
	return s.cfg.Secure || s.cfg.Port == 465
}

func (s *EmailService) startTLS() bool {
	return !s.implicitTLS() && (s.cfg.Port == 587 || s.cfg.Port == 25)
}

func (s *EmailService) deliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	_ = conn.SetDeadline(deadline)

	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	if s.implicitTLS() {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP client failed: %w", err)
	}
	defer client.Close()

	if s.startTLS() {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if ok, _ := client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(s.fromAddr); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, html, messageID string, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("UTF-8", subject)},
		{"Date", date.Format(time.RFC1123Z)},
		{"Message-ID", messageID},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"Content-Transfer-Encoding", "quoted-printable"},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return buf.Bytes(), nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
