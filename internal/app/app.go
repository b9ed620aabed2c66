// Package app assembles the reminder service from configuration. Both the API
// server and the operator CLI start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/config"
	"github.com/redpotato/backend/internal/database"
	"github.com/redpotato/backend/internal/models"
	"github.com/redpotato/backend/internal/services"
)

// App holds the connected stores and the services built on them.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Location *time.Location

	DB            *database.Database
	Cache         *database.Cache
	Clients       *database.ClientRepository
	Notifications *database.NotificationRepository
	Users         *database.UserRepository

	Dispatcher *services.Dispatcher
	Job        *services.ReminderJob
	Manager    *services.NotificationManager
	Scheduler  *services.Scheduler
}

// New connects to Postgres and Redis, applies the schema and wires the services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db.DB.WithContext(ctx)); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.JWTSecretGenerated {
		secret, err := database.EnsureJWTSecret(ctx, db.DB)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load persisted JWT secret: %w", err)
		}
		cfg.JWTSecret = secret
	}

	a := &App{
		Config:        cfg,
		Logger:        log,
		Location:      loc,
		DB:            db,
		Cache:         database.NewCache(db.Redis),
		Clients:       database.NewClientRepository(db.DB),
		Notifications: database.NewNotificationRepository(db.DB),
		Users:         database.NewUserRepository(db.DB),
	}
	a.buildServices()
	return a, nil
}

func (a *App) buildServices() {
	cfg := a.Config

	sms := services.NewSMSService(services.SMSConfig{
		AccountSID:    cfg.TwilioAccountSID,
		AuthToken:     cfg.TwilioAuthToken,
		From:          cfg.TwilioPhoneNumber,
		BaseURL:       cfg.TwilioBaseURL,
		CountryPrefix: cfg.SMSCountryPrefix,
	}, a.Logger)

	email := services.NewEmailService(services.EmailConfig{
		Host:     cfg.EmailHost,
		Port:     cfg.EmailPort,
		Secure:   cfg.EmailSecure,
		Username: cfg.EmailUser,
		Password: cfg.EmailPassword,
		From:     cfg.EmailFrom,
	}, a.Logger)

	composer := services.MessageComposer{
		DefaultLocale: cfg.NotificationLocale,
		Location:      a.Location,
		Contact: services.ContactInfo{
			Phone: cfg.ServiceContactPhone,
			Email: cfg.ServiceContactEmail,
		},
	}

	a.Dispatcher = services.NewDispatcher(sms, email, a.Notifications, composer, a.Logger)
	a.Job = services.NewReminderJob(a.Clients, a.Notifications, a.Dispatcher, a.Cache, services.ReminderJobConfig{
		LookaheadDays: cfg.ITPReminderDays,
		Pacing:        cfg.ReminderPacing,
		Location:      a.Location,
	}, a.Logger)
	a.Manager = services.NewNotificationManager(a.Clients, a.Notifications, a.Dispatcher, a.Cache, a.Location, a.Logger)
	a.Scheduler = services.NewScheduler(a.Job, a.Notifications, a.Cache, a.Location, a.Logger)
}

// Close releases the database connections.
func (a *App) Close() {
	a.DB.Close()
}
