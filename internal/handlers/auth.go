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
)

// UserStore is the operator account persistence.
type UserStore interface {
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type AuthHandler struct {
	users    UserStore
	secret   string
	tokenTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuthHandler(users UserStore, secret string, tokenTTL time.Duration, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger.With().Str("component", "auth-handler").Logger(),
		now:      time.Now,
	}
}

// Register mounts the auth routes. Only login is reachable without a token.
func (h *AuthHandler) Register(router fiber.Router, authRequired fiber.Handler) {
	router.Post("/login", h.Login)
	router.Post("/register", authRequired, middleware.AdminOnly(), h.CreateUser)
	router.Get("/me", authRequired, h.Me)
	router.Post("/logout", authRequired, h.Logout)
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest creates an operator account
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin operator"`
}

// Login checks credentials and issues a token. Username or email are accepted.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Username and password are required",
			"fields":  validationErrors(err),
		})
	}

	user, err := h.users.FindByLogin(c.UserContext(), req.Username)
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return h.internalError(c, "Login failed", err)
	}
	if user == nil || !user.CheckPassword(req.Password) {
		h.logger.Warn().Str("username", req.Username).Str("ip", c.IP()).Msg("login failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid credentials",
		})
	}

	token, err := middleware.GenerateToken(h.secret, user.Username, user.Role, h.tokenTTL)
	if err != nil {
		return h.internalError(c, "Failed to generate token", err)
	}

	now := h.now()
	if err := h.users.TouchLastLogin(c.UserContext(), user.ID, now); err != nil {
		h.logger.Warn().Err(err).Str("username", user.Username).Msg("failed to record last login")
	}
	user.LastLogin = &now

	h.logger.Info().Str("username", user.Username).Str("role", user.Role).Msg("user logged in")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Authentication successful",
		"data": fiber.Map{
			"token": token,
			"user":  user,
		},
	})
}

// CreateUser adds an operator account; admins only
func (h *AuthHandler) CreateUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation failed",
			"fields":  validationErrors(err),
		})
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    req.Email,
		Role:     req.Role,
	}
	if user.Role == "" {
		user.Role = models.RoleOperator
	}
	if err := user.SetPassword(req.Password); err != nil {
		return h.internalError(c, "Failed to create user", err)
	}

	if err := h.users.Create(c.UserContext(), user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateUser) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success": false,
				"message": "Username or email already registered",
			})
		}
		return h.internalError(c, "Failed to create user", err)
	}

	h.logger.Info().
		Str("username", user.Username).
		Str("role", user.Role).
		Str("created_by", middleware.GetCurrentUsername(c)).
		Msg("user created")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User created successfully",
		"data":    user,
	})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.FindByUsername(c.UserContext(), middleware.GetCurrentUsername(c))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}
		return h.internalError(c, "Failed to fetch user", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

// Logout is client-side; tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "message": "Logout successful"})
}

func (h *AuthHandler) internalError(c *fiber.Ctx, message string, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
