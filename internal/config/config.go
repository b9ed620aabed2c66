package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret          string
	JWTSecretGenerated bool
	JWTExpireHours     int

	// API
	APIPort         int
	CORSOrigin      string
	RateLimit       int
	ShutdownTimeout time.Duration

	// Twilio
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioBaseURL     string
	SMSCountryPrefix  string

	// Email
	EmailHost     string
	EmailPort     int
	EmailSecure   bool
	EmailUser     string
	EmailPassword string
	EmailFrom     string

	// Notifications
	NotificationLocale  string
	ServiceContactPhone string
	ServiceContactEmail string

	// Scheduling
	CronEnabled     bool
	CronTimezone    string
	ITPReminderDays int
	ReminderPacing  time.Duration
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + strconv.Itoa(length)))
	}
	return hex.EncodeToString(bytes)
}

// Load reads the environment (and a .env file when present) into a Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	jwtGenerated := jwtSecret == ""
	if jwtGenerated {
		jwtSecret = generateSecureSecret(32)
		log.Warn().Msg("JWT_SECRET not set - a persisted secret will be used once the database is reachable")
	}

	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" && os.Getenv("DATABASE_URL") == "" {
		log.Warn().Msg("DB_PASSWORD not set - this is insecure for production")
		dbPassword = "changeme"
	}

	reminderDays := getEnvInt("ITP_REMINDER_DAYS", 7)
	if reminderDays <= 0 {
		reminderDays = 7
	}

	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "production"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "serviceauto"),
		DBPassword:  dbPassword,
		DBName:      getEnv("DB_NAME", "serviceauto"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:          jwtSecret,
		JWTSecretGenerated: jwtGenerated,
		JWTExpireHours:     getEnvInt("JWT_EXPIRE_HOURS", 24),

		APIPort:         getEnvInt("API_PORT", 3000),
		CORSOrigin:      getEnv("CORS_ORIGIN", "*"),
		RateLimit:       getEnvInt("API_RATE_LIMIT", 100),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioBaseURL:     getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		SMSCountryPrefix:  getEnv("SMS_COUNTRY_PREFIX", "+4"),

		EmailHost:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:     getEnvInt("EMAIL_PORT", 587),
		EmailSecure:   getEnvBool("EMAIL_SECURE", false),
		EmailUser:     getEnv("EMAIL_USER", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", ""),
		EmailFrom:     getEnv("EMAIL_FROM", "Service Auto <noreply@serviceauto.ro>"),

		NotificationLocale:  strings.ToLower(getEnv("NOTIFICATION_LOCALE", "ro")),
		ServiceContactPhone: getEnv("SERVICE_CONTACT_PHONE", "+40 721 234 567"),
		ServiceContactEmail: getEnv("SERVICE_CONTACT_EMAIL", "contact@serviceauto.ro"),

		// Enabled unless explicitly switched off.
		CronEnabled:     os.Getenv("CRON_ENABLED") != "false",
		CronTimezone:    getEnv("CRON_TIMEZONE", "Europe/Bucharest"),
		ITPReminderDays: reminderDays,
		ReminderPacing:  time.Duration(getEnvInt("REMINDER_PACING_MS", 500)) * time.Millisecond,
	}

	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		log.Warn().Msg("Twilio credentials not set - SMS runs in simulation mode")
	}
	if cfg.EmailUser == "" || cfg.EmailPassword == "" {
		log.Warn().Msg("EMAIL_USER/EMAIL_PASSWORD not set - email runs in simulation mode")
	}

	return cfg
}

// Location resolves CronTimezone. Day boundaries and cron triggers are evaluated in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.CronTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_TIMEZONE %q: %w", c.CronTimezone, err)
	}
	return loc, nil
}

// PostgresDSN returns DATABASE_URL when set, otherwise a DSN assembled from the DB_* keys.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

// IsDevelopment reports whether APP_ENV selects the development profile.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "development" || env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
