package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/redpotato/backend/internal/config"
)

const maxConnectRetries = 30

// Database bundles the Postgres and Redis handles. Redis is nil when unreachable.
type Database struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// Connect opens Postgres with retries and pings Redis. A Redis outage only
// disables caching.
func Connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Database, error) {
	log = log.With().Str("component", "database").Logger()

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxConnectRetries; i++ {
		db, err = Open(cfg.PostgresDSN())
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxConnectRetries).Msg("database connection failed, retrying in 2 seconds")
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxConnectRetries, err)
	}
	log.Info().Msg("database connected")

	d := &Database{DB: db}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, caching disabled")
		rdb.Close()
	} else {
		d.Redis = rdb
		log.Info().Msg("redis connected")
	}

	return d, nil
}

// Open opens a gorm handle on dsn with the pool settings used everywhere.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Ping checks Postgres and, when configured, Redis.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases both connections.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
}
