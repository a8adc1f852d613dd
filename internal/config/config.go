package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/rent-service/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds application configuration
type Config struct {
	Port     string
	LogLevel string

	StoreDriver   string
	DBConn        string
	MongoURI      string
	MongoDatabase string

	JWTSecret         string
	TokenTTL          time.Duration
	AdminUsername     string
	AdminPasswordHash string
	EncryptionKey     string

	AlertHorizonDays  int
	ReminderSchedule  string
	ReminderRecipient string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	CORSAllowedOrigins []string
}

// NewConfig loads configuration from environment variables and an optional .env file
func NewConfig() (*Config, error) {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_CONN", "host=localhost port=5436 user=test password=test dbname=rent sslmode=disable")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "rent")
	v.SetDefault("JWT_SECRET", "secret")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6")
	v.SetDefault("ALERT_HORIZON_DAYS", 3)
	v.SetDefault("REMINDER_SCHEDULE", "0 9 * * *")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	cfg := &Config{
		Port:              v.GetString("PORT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		DBConn:            v.GetString("DB_CONN"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDatabase:     v.GetString("MONGO_DATABASE"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		TokenTTL:          v.GetDuration("TOKEN_TTL"),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		EncryptionKey:     v.GetString("ENCRYPTION_KEY"),
		AlertHorizonDays:  v.GetInt("ALERT_HORIZON_DAYS"),
		ReminderSchedule:  v.GetString("REMINDER_SCHEDULE"),
		ReminderRecipient: v.GetString("REMINDER_RECIPIENT"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetString("SMTP_PORT"),
		SMTPUsername:      v.GetString("SMTP_USERNAME"),
		SMTPPassword:      v.GetString("SMTP_PASSWORD"),
		SenderEmail:       v.GetString("SENDER_EMAIL"),
	}
	for _, origin := range strings.Split(v.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	case DriverMongo:
		if cfg.MongoURI == "" || cfg.MongoDatabase == "" {
			return nil, fmt.Errorf("MONGO_URI and MONGO_DATABASE are required")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}
	if _, err := cfg.EncryptionKeyBytes(); err != nil {
		return nil, err
	}
	if cfg.AlertHorizonDays < 0 {
		return nil, fmt.Errorf("ALERT_HORIZON_DAYS must not be negative")
	}

	return cfg, nil
}

// EncryptionKeyBytes decodes the hex encoded AES key
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	key, err := utils.ParseKey(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}
	return key, nil
}

// SMTPEnabled reports whether enough SMTP settings are present to send mail
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != ""
}
