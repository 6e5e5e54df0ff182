package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the sync service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	ChatAPIURL          string
	ChatAPIKey          string
	WebhookTrustedAgent string
	FollowUpSubject     string
	BadgeTaskSubject    string
	BadgePushSubject    string
	BadgeDebounce       time.Duration
	BadgeWindow         time.Duration
	GroupActionLimit    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Activity Sync API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("webhook.trusted_agent", "Stream Webhook Client")
	v.SetDefault("followup.subject", "sync.followups")
	v.SetDefault("badge.task_subject", "sync.badge.update")
	v.SetDefault("badge.push_subject", "sync.badge.push")
	v.SetDefault("badge.debounce", "10s")
	v.SetDefault("badge.window", "168h")
	v.SetDefault("group_action_limit", 100)

	debounce, err := time.ParseDuration(v.GetString("badge.debounce"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid badge debounce: %w", err)
	}

	window, err := time.ParseDuration(v.GetString("badge.window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid badge window: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		ChatAPIURL:          v.GetString("chat.api_url"),
		ChatAPIKey:          v.GetString("chat.api_key"),
		WebhookTrustedAgent: v.GetString("webhook.trusted_agent"),
		FollowUpSubject:     v.GetString("followup.subject"),
		BadgeTaskSubject:    v.GetString("badge.task_subject"),
		BadgePushSubject:    v.GetString("badge.push_subject"),
		BadgeDebounce:       debounce,
		BadgeWindow:         window,
		GroupActionLimit:    v.GetInt("group_action_limit"),
	}

	if cfg.WebhookTrustedAgent == "" {
		return Config{}, fmt.Errorf("webhook trusted agent must be provided")
	}

	if cfg.GroupActionLimit <= 0 {
		cfg.GroupActionLimit = 100
	}

	return cfg, nil
}
