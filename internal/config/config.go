/**
 * @description
 * This file handles the configuration management for the subscription tracker.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 */
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	AuthJWKSURL        string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience       string        `mapstructure:"AUTH_AUDIENCE"`
	AuthIssuer         string        `mapstructure:"AUTH_ISSUER"`
	InternalAPIKey     string        `mapstructure:"INTERNAL_API_KEY"`
	RabbitMQURL        string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange     string        `mapstructure:"EVENTS_EXCHANGE"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	RedisKeyPrefix     string        `mapstructure:"REDIS_KEY_PREFIX"`
	RateLimitRequests  int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow    time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	TrustProxyHeaders  bool          `mapstructure:"TRUST_PROXY_HEADERS"`
	UpcomingWindowDays int           `mapstructure:"UPCOMING_WINDOW_DAYS"`
	ReminderSchedule   string        `mapstructure:"REMINDER_JOB_SCHEDULE"`
	ReminderWindowDays int           `mapstructure:"REMINDER_WINDOW_DAYS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("EVENTS_EXCHANGE", "subscriptions.events")
	viper.SetDefault("REDIS_KEY_PREFIX", "subtracker")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("TRUST_PROXY_HEADERS", false)
	viper.SetDefault("UPCOMING_WINDOW_DAYS", 30)
	viper.SetDefault("REMINDER_JOB_SCHEDULE", "0 8 * * *") // Every day at 08:00.
	viper.SetDefault("REMINDER_WINDOW_DAYS", 3)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("AUTH_AUDIENCE")
	_ = viper.BindEnv("AUTH_ISSUER")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("RATE_LIMIT_REQUESTS")
	_ = viper.BindEnv("RATE_LIMIT_WINDOW")
	_ = viper.BindEnv("TRUST_PROXY_HEADERS")
	_ = viper.BindEnv("UPCOMING_WINDOW_DAYS")
	_ = viper.BindEnv("REMINDER_JOB_SCHEDULE")
	_ = viper.BindEnv("REMINDER_WINDOW_DAYS")

	if err = viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}

	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.AuthJWKSURL = strings.TrimSpace(config.AuthJWKSURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	err = config.validate()
	return
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.AuthJWKSURL == "" {
		return errors.New("AUTH_JWKS_URL is required")
	}
	if c.UpcomingWindowDays < 1 || c.UpcomingWindowDays > 365 {
		return fmt.Errorf("UPCOMING_WINDOW_DAYS must be between 1 and 365, got %d", c.UpcomingWindowDays)
	}
	if c.ReminderWindowDays < 1 || c.ReminderWindowDays > 365 {
		return fmt.Errorf("REMINDER_WINDOW_DAYS must be between 1 and 365, got %d", c.ReminderWindowDays)
	}
	if c.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative, got %d", c.RateLimitRequests)
	}
	return nil
}
