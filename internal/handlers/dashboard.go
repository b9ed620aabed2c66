package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/models"
	"github.com/redpotato/backend/internal/services"
)

const (
	dashboardRecentClients = 5
	dashboardMonthDays     = 30
)

// DashboardClients are the client aggregates shown on the dashboard.
type DashboardClients interface {
	CountActive(ctx context.Context) (int64, error)
	CountActiveExpiredBefore(ctx context.Context, t time.Time) (int64, error)
	CountActiveWithExpiryInRange(ctx context.Context, start, end time.Time) (int64, error)
	FindActiveWithExpiryInRange(ctx context.Context, start, end time.Time) ([]models.Client, error)
	ListRecent(ctx context.Context, limit int) ([]models.Client, error)
}

// DashboardNotifications counts today's ledger rows.
type DashboardNotifications interface {
	CountByStatusSince(ctx context.Context, status models.NotificationStatus, since time.Time) (int64, error)
}

type DashboardOverview struct {
	TotalClients            int64 `json:"totalClients"`
	ExpiredCount            int64 `json:"expiredCount"`
	ExpiringSoonCount       int64 `json:"expiringSoonCount"`
	ExpiringThirtyDaysCount int64 `json:"expiringThirtyDaysCount"`
}

type DashboardNotificationCounts struct {
	SentToday   int64 `json:"sentToday"`
	FailedToday int64 `json:"failedToday"`
}

// DashboardStats is the operator landing page summary.
type DashboardStats struct {
	Overview            DashboardOverview           `json:"overview"`
	Notifications       DashboardNotificationCounts `json:"notifications"`
	RecentClients       []ClientView                `json:"recentClients"`
	UpcomingExpirations []ClientView                `json:"upcomingExpirations"`
	ReminderDays        int                         `json:"reminderDays"`
}

type DashboardHandler struct {
	clients       DashboardClients
	notifications DashboardNotifications
	cache         services.Cache
	loc           *time.Location
	lookaheadDays int
	logger        zerolog.Logger
	now           func() time.Time
}

// NewDashboardHandler creates a dashboard handler. cache may be nil.
func NewDashboardHandler(clients DashboardClients, notifications DashboardNotifications, cache services.Cache, loc *time.Location, lookaheadDays int, logger zerolog.Logger) *DashboardHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardHandler{
		clients:       clients,
		notifications: notifications,
		cache:         cache,
		loc:           loc,
		lookaheadDays: lookaheadDays,
		logger:        logger.With().Str("component", "dashboard-handler").Logger(),
		now:           time.Now,
	}
}

func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/stats", h.Stats)
}

// Stats returns dashboard statistics
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.cache != nil {
		var cached DashboardStats
		if err := h.cache.Get(ctx, services.CacheKeyDashboardStats, &cached); err == nil {
			return c.JSON(fiber.Map{"success": true, "data": cached})
		}
	}

	stats, err := h.collect(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to collect dashboard stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to fetch dashboard stats",
		})
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, services.CacheKeyDashboardStats, stats, services.CacheTTLDashboardStats); err != nil {
			h.logger.Warn().Err(err).Msg("failed to cache dashboard stats")
		}
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

func (h *DashboardHandler) collect(ctx context.Context) (*DashboardStats, error) {
	now := h.now().In(h.loc)
	today, soonEnd := services.ReminderWindow(now, h.lookaheadDays)
	_, monthEnd := services.ReminderWindow(now, dashboardMonthDays)

	stats := &DashboardStats{ReminderDays: h.lookaheadDays}
	var err error

	if stats.Overview.TotalClients, err = h.clients.CountActive(ctx); err != nil {
		return nil, err
	}
	if stats.Overview.ExpiredCount, err = h.clients.CountActiveExpiredBefore(ctx, today); err != nil {
		return nil, err
	}
	if stats.Overview.ExpiringSoonCount, err = h.clients.CountActiveWithExpiryInRange(ctx, today, soonEnd); err != nil {
		return nil, err
	}
	if stats.Overview.ExpiringThirtyDaysCount, err = h.clients.CountActiveWithExpiryInRange(ctx, today, monthEnd); err != nil {
		return nil, err
	}

	if stats.Notifications.SentToday, err = h.notifications.CountByStatusSince(ctx, models.StatusSent, today); err != nil {
		return nil, err
	}
	if stats.Notifications.FailedToday, err = h.notifications.CountByStatusSince(ctx, models.StatusFailed, today); err != nil {
		return nil, err
	}

	recent, err := h.clients.ListRecent(ctx, dashboardRecentClients)
	if err != nil {
		return nil, err
	}
	upcoming, err := h.clients.FindActiveWithExpiryInRange(ctx, today, soonEnd)
	if err != nil {
		return nil, err
	}

	stats.RecentClients = make([]ClientView, 0, len(recent))
	for _, c := range recent {
		stats.RecentClients = append(stats.RecentClients, ClientView{Client: c, DaysRemaining: services.DaysRemaining(c.ITPExpirationDate, now)})
	}
	stats.UpcomingExpirations = make([]ClientView, 0, len(upcoming))
	for _, c := range upcoming {
		stats.UpcomingExpirations = append(stats.UpcomingExpirations, ClientView{Client: c, DaysRemaining: services.DaysRemaining(c.ITPExpirationDate, now)})
	}
	return stats, nil
}
