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
	"github.com/redpotato/backend/internal/models"
	"github.com/redpotato/backend/internal/services"
)

// ClientStore is the client persistence used by the intake endpoints.
type ClientStore interface {
	List(ctx context.Context, filter models.ClientFilter) ([]models.Client, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindActiveWithExpiryInRange(ctx context.Context, start, end time.Time) ([]models.Client, error)
	Create(ctx context.Context, client *models.Client) error
	Update(ctx context.Context, client *models.Client) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// ClientNotifications reads a client's recent ledger rows.
type ClientNotifications interface {
	ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]models.Notification, error)
}

// ClientHandler handles client intake requests
type ClientHandler struct {
	clients       ClientStore
	notifications ClientNotifications
	loc           *time.Location
	lookaheadDays int
	logger        zerolog.Logger
	now           func() time.Time
}

// NewClientHandler creates a new client handler
func NewClientHandler(clients ClientStore, notifications ClientNotifications, loc *time.Location, lookaheadDays int, logger zerolog.Logger) *ClientHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ClientHandler{
		clients:       clients,
		notifications: notifications,
		loc:           loc,
		lookaheadDays: lookaheadDays,
		logger:        logger.With().Str("component", "client-handler").Logger(),
		now:           time.Now,
	}
}

// Register mounts the client routes on router.
func (h *ClientHandler) Register(router fiber.Router) {
	router.Get("/expiring", h.Expiring)
	router.Get("/", h.List)
	router.Get("/:id", h.Get)
	router.Post("/", h.Create)
	router.Put("/:id", h.Update)
	router.Delete("/:id", h.Delete)
}

// CreateClientRequest represents the create client request
type CreateClientRequest struct {
	Name              string `json:"name" validate:"required,min=2,max=255"`
	LicensePlate      string `json:"license_plate" validate:"required,plate"`
	PhoneNumber       string `json:"phone_number" validate:"required,phone"`
	Email             string `json:"email" validate:"required,email"`
	ITPExpirationDate string `json:"itp_expiration_date" validate:"required,itpdate"`
	Locale            string `json:"locale" validate:"omitempty,locale"`
}

// UpdateClientRequest represents a partial client update
type UpdateClientRequest struct {
	Name              *string `json:"name" validate:"omitempty,min=2,max=255"`
	LicensePlate      *string `json:"license_plate" validate:"omitempty,plate"`
	PhoneNumber       *string `json:"phone_number" validate:"omitempty,phone"`
	Email             *string `json:"email" validate:"omitempty,email"`
	ITPExpirationDate *string `json:"itp_expiration_date" validate:"omitempty,itpdate"`
	Locale            *string `json:"locale" validate:"omitempty,locale"`
	Active            *bool   `json:"active"`
}

// ClientView is a client with its days until ITP expiry.
type ClientView struct {
	models.Client
	DaysRemaining int `json:"days_remaining"`
}

func (h *ClientHandler) view(client models.Client) ClientView {
	return ClientView{
		Client:        client,
		DaysRemaining: services.DaysRemaining(client.ITPExpirationDate, h.now().In(h.loc)),
	}
}

// List returns a page of clients
func (h *ClientHandler) List(c *fiber.Ctx) error {
	filter := models.ClientFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		ActiveOnly: c.Query("active", "true") != "false",
		Page:       c.QueryInt("page", 1),
		Limit:      c.QueryInt("limit", 20),
	}
	filter.Normalize()

	clients, total, err := h.clients.List(c.UserContext(), filter)
	if err != nil {
		return h.internalError(c, "Failed to fetch clients", err)
	}

	views := make([]ClientView, 0, len(clients))
	for _, client := range clients {
		views = append(views, h.view(client))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"clients": views,
			"pagination": fiber.Map{
				"page":       filter.Page,
				"limit":      filter.Limit,
				"total":      total,
				"totalPages": (total + int64(filter.Limit) - 1) / int64(filter.Limit),
			},
		},
	})
}

// Expiring returns active clients whose ITP expires within the next days
func (h *ClientHandler) Expiring(c *fiber.Ctx) error {
	days := c.QueryInt("days", h.lookaheadDays)
	if days < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "days must not be negative",
		})
	}

	start, end := services.ReminderWindow(h.now().In(h.loc), days)
	clients, err := h.clients.FindActiveWithExpiryInRange(c.UserContext(), start, end)
	if err != nil {
		return h.internalError(c, "Failed to fetch expiring clients", err)
	}

	views := make([]ClientView, 0, len(clients))
	for _, client := range clients {
		views = append(views, h.view(client))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"clients": views,
			"days":    days,
			"count":   len(views),
		},
	})
}

// Get returns a client with its last notifications
func (h *ClientHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid client ID"})
	}

	client, err := h.clients.FindByID(c.UserContext(), id)
	if err != nil {
		return h.clientError(c, err)
	}

	history, err := h.notifications.ListByClient(c.UserContext(), id, 10)
	if err != nil {
		return h.internalError(c, "Failed to fetch client notifications", err)
	}
	client.Notifications = history

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.view(*client),
	})
}

// Create registers a new client
func (h *ClientHandler) Create(c *fiber.Ctx) error {
	var req CreateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  validationErrors(err),
		})
	}

	expiry, _ := parseDate(req.ITPExpirationDate, h.loc)
	client := &models.Client{
		Name:              strings.TrimSpace(req.Name),
		LicensePlate:      models.NormalizePlate(req.LicensePlate),
		PhoneNumber:       req.PhoneNumber,
		Email:             strings.TrimSpace(req.Email),
		ITPExpirationDate: expiry,
		Locale:            strings.ToLower(req.Locale),
		Active:            true,
	}

	if err := h.clients.Create(c.UserContext(), client); err != nil {
		return h.clientError(c, err)
	}

	h.logger.Info().Str("client_id", client.ID.String()).Str("plate", client.LicensePlate).Msg("client created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Client created successfully",
		"data":    h.view(*client),
	})
}

// Update changes the supplied fields of a client
func (h *ClientHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid client ID"})
	}

	var req UpdateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  validationErrors(err),
		})
	}

	client, err := h.clients.FindByID(c.UserContext(), id)
	if err != nil {
		return h.clientError(c, err)
	}

	if req.Name != nil {
		client.Name = strings.TrimSpace(*req.Name)
	}
	if req.LicensePlate != nil {
		client.LicensePlate = models.NormalizePlate(*req.LicensePlate)
	}
	if req.PhoneNumber != nil {
		client.PhoneNumber = *req.PhoneNumber
	}
	if req.Email != nil {
		client.Email = strings.TrimSpace(*req.Email)
	}
	if req.ITPExpirationDate != nil {
		client.ITPExpirationDate, _ = parseDate(*req.ITPExpirationDate, h.loc)
	}
	if req.Locale != nil {
		client.Locale = strings.ToLower(*req.Locale)
	}
	if req.Active != nil {
		client.Active = *req.Active
	}

	if err := h.clients.Update(c.UserContext(), client); err != nil {
		return h.clientError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Client updated successfully",
		"data":    h.view(*client),
	})
}

// Delete deactivates a client; its history is kept
func (h *ClientHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid client ID"})
	}

	if err := h.clients.Deactivate(c.UserContext(), id); err != nil {
		return h.clientError(c, err)
	}

	h.logger.Info().Str("client_id", id.String()).Msg("client deactivated")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Client deleted successfully",
	})
}

func (h *ClientHandler) clientError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Client not found"})
	case errors.Is(err, apperrors.ErrDuplicatePlate):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "A client with this license plate already exists",
		})
	}
	return h.internalError(c, "Failed to save client", err)
}

func (h *ClientHandler) internalError(c *fiber.Ctx, message string, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
