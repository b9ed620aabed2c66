package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/apperrors"
	"github.com/redpotato/backend/internal/middleware"
	"github.com/redpotato/backend/internal/models"
	"github.com/redpotato/backend/internal/services"
)

// NotificationService is the operator surface over the reminder ledger.
type NotificationService interface {
	SendTest(ctx context.Context, clientID uuid.UUID, kind string) (services.TestSendResult, error)
	Retry(ctx context.Context, notificationID uuid.UUID) services.ChannelResult
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int64, error)
	ClientHistory(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error)
	Stats(ctx context.Context) (*models.NotificationStats, error)
	LastRun(ctx context.Context) (*services.RunSummary, error)
}

// ReminderScheduler runs the reminder job and controls its triggers.
type ReminderScheduler interface {
	RunNow(ctx context.Context) services.RunSummary
	RunCleanup(ctx context.Context) (int64, error)
	Status() services.SchedulerStatus
	StartReminder() error
	StopReminder(ctx context.Context) error
}

// NotificationHandler handles notification-related requests
type NotificationHandler struct {
	notifications NotificationService
	scheduler     ReminderScheduler
	cronEnabled   bool
	logger        zerolog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications NotificationService, scheduler ReminderScheduler, cronEnabled bool, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		scheduler:     scheduler,
		cronEnabled:   cronEnabled,
		logger:        logger.With().Str("component", "notification-handler").Logger(),
	}
}

// Register mounts the notification routes on router.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Post("/run", h.Run)
	router.Post("/test", h.SendTest)
	router.Post("/:id/retry", h.Retry)
	router.Get("/", h.List)
	router.Get("/stats", h.Stats)
	router.Get("/last-run", h.LastRun)
	router.Get("/client/:clientId", h.ClientHistory)
}

// RegisterScheduler mounts the scheduler routes on router. Trigger control
// is restricted to admins.
func (h *NotificationHandler) RegisterScheduler(router fiber.Router) {
	router.Get("/", h.SchedulerStatus)
	router.Post("/start", middleware.AdminOnly(), h.StartScheduler)
	router.Post("/stop", middleware.AdminOnly(), h.StopScheduler)
	router.Post("/cleanup", middleware.AdminOnly(), h.Cleanup)
}

// Run executes the reminder job now and returns its summary
func (h *NotificationHandler) Run(c *fiber.Ctx) error {
	h.logger.Info().Str("operator", middleware.GetCurrentUsername(c)).Msg("manual reminder run requested")

	summary := h.scheduler.RunNow(c.UserContext())

	status := fiber.StatusOK
	if !summary.Success {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"success": summary.Success,
		"message": summary.Message,
		"data":    summary,
	})
}

// SendTestRequest represents a manual send for one client
type SendTestRequest struct {
	ClientID string `json:"clientId" validate:"required,uuid"`
	Type     string `json:"type" validate:"required,oneof=SMS EMAIL BOTH"`
}

// SendTest sends the current reminder to one client on the requested channels
func (h *NotificationHandler) SendTest(c *fiber.Ctx) error {
	var req SendTestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	req.Type = strings.ToUpper(strings.TrimSpace(req.Type))
	if err := validate.Struct(req); err != nil {
		fields := validationErrors(err)
		message := "Validation failed"
		if _, bad := fields["type"]; bad {
			message = "Invalid notification type. Use: SMS, EMAIL, or BOTH"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": message,
			"fields":  fields,
		})
	}

	result, err := h.notifications.SendTest(c.UserContext(), uuid.MustParse(req.ClientID), req.Type)
	if err != nil {
		return h.notificationError(c, err)
	}

	message := "Test notification sent successfully"
	if !result.Success {
		message = "Test notification failed"
	}
	return c.JSON(fiber.Map{
		"success": result.Success,
		"message": message,
		"data":    result,
	})
}

// Retry re-sends a notification on its original channel
func (h *NotificationHandler) Retry(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid notification ID"})
	}

	result := h.notifications.Retry(c.UserContext(), id)
	if errors.Is(result.Err, apperrors.ErrNotificationNotFound) || errors.Is(result.Err, apperrors.ErrClientNotFound) {
		return h.notificationError(c, result.Err)
	}

	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Notification resend failed",
			"error":   result.Error,
			"data":    result,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification resent successfully",
		"data":    result,
	})
}

// List returns a filtered page of the notification ledger
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	filter := models.NotificationFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}

	if raw := c.Query("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid client ID"})
		}
		filter.ClientID = &id
	}
	if raw := c.Query("channel"); raw != "" {
		ch, ok := models.ParseChannel(raw)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid channel. Use: SMS or EMAIL"})
		}
		filter.Channel = ch
	}
	if raw := c.Query("status"); raw != "" {
		switch st := models.NotificationStatus(strings.ToLower(raw)); st {
		case models.StatusPending, models.StatusSent, models.StatusFailed:
			filter.Status = st
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid status"})
		}
	}
	for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw, time.UTC)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid " + key + " date"})
		}
		*dst = &t
	}
	filter.Normalize()

	rows, total, err := h.notifications.List(c.UserContext(), filter)
	if err != nil {
		return h.internalError(c, "Failed to fetch notifications", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"notifications": rows,
			"pagination": fiber.Map{
				"page":       filter.Page,
				"limit":      filter.Limit,
				"total":      total,
				"totalPages": (total + int64(filter.Limit) - 1) / int64(filter.Limit),
			},
		},
	})
}

// Stats returns ledger counts by status and channel
func (h *NotificationHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.notifications.Stats(c.UserContext())
	if err != nil {
		return h.internalError(c, "Failed to fetch notification stats", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// ClientHistory returns the latest notifications of one client
func (h *NotificationHandler) ClientHistory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("clientId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid client ID"})
	}

	rows, err := h.notifications.ClientHistory(c.UserContext(), id, c.QueryInt("limit", 10))
	if err != nil {
		return h.notificationError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// LastRun returns the summary of the most recent reminder run
func (h *NotificationHandler) LastRun(c *fiber.Ctx) error {
	summary, err := h.notifications.LastRun(c.UserContext())
	if err != nil {
		return h.internalError(c, "Failed to fetch last run", err)
	}
	if summary == nil {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "No reminder run recorded yet",
			"data":    nil,
		})
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

// SchedulerStatus reports the cron triggers
func (h *NotificationHandler) SchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"enabled":  h.cronEnabled,
			"schedule": h.scheduler.Status(),
		},
	})
}

// StartScheduler starts the daily reminder trigger
func (h *NotificationHandler) StartScheduler(c *fiber.Ctx) error {
	if err := h.scheduler.StartReminder(); err != nil {
		return h.internalError(c, "Failed to start scheduler", err)
	}
	h.logger.Info().Str("operator", middleware.GetCurrentUsername(c)).Msg("reminder trigger started")
	return c.JSON(fiber.Map{"success": true, "message": "Scheduler started", "data": h.scheduler.Status()})
}

// StopScheduler stops the daily reminder trigger, waiting for a running job
func (h *NotificationHandler) StopScheduler(c *fiber.Ctx) error {
	if err := h.scheduler.StopReminder(c.UserContext()); err != nil {
		return h.internalError(c, "Failed to stop scheduler", err)
	}
	h.logger.Info().Str("operator", middleware.GetCurrentUsername(c)).Msg("reminder trigger stopped")
	return c.JSON(fiber.Map{"success": true, "message": "Scheduler stopped", "data": h.scheduler.Status()})
}

// Cleanup removes ledger rows past the retention period
func (h *NotificationHandler) Cleanup(c *fiber.Ctx) error {
	deleted, err := h.scheduler.RunCleanup(c.UserContext())
	if err != nil {
		return h.internalError(c, "Notification cleanup failed", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification cleanup completed",
		"data":    fiber.Map{"deleted": deleted},
	})
}

func (h *NotificationHandler) notificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotificationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Notification not found"})
	case errors.Is(err, apperrors.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Client not found"})
	case errors.Is(err, apperrors.ErrUnknownChannel):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid notification type. Use: SMS, EMAIL, or BOTH",
		})
	}
	return h.internalError(c, "Notification request failed", err)
}

func (h *NotificationHandler) internalError(c *fiber.Ctx, message string, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
