package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// Config is everything the process reads from the environment, loaded once
// at startup.
type Config struct {
	Port            string
	BotToken        string
	GatewayBaseURL  string
	DatabaseURL     string
	RedisURL        string
	CommandPrefix   string
	CommandCategory string
	MeetingTimezone string
	MeetingChannel  string
	SheetBaseURL    string
	LogLevel        string
}

// Load reads the environment, falling back to a local .env file outside of
// deployed environments. Missing required credentials are reported so main
// can exit non-zero instead of running half-configured.
func Load() (Config, error) {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		_ = godotenv.Load()
	}

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		GatewayBaseURL:  os.Getenv("GATEWAY_BASE_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		CommandPrefix:   getenv("COMMAND_PREFIX", "!"),
		CommandCategory: os.Getenv("COMMAND_CATEGORY"),
		MeetingTimezone: getenv("MEETING_TIMEZONE", "America/New_York"),
		MeetingChannel:  os.Getenv("MEETING_CHANNEL_ID"),
		SheetBaseURL:    os.Getenv("SHEET_BASE_URL"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}

	switch {
	case cfg.BotToken == "":
		return cfg, errors.New("BOT_TOKEN is required")
	case cfg.GatewayBaseURL == "":
		return cfg, errors.New("GATEWAY_BASE_URL is required")
	case cfg.DatabaseURL == "":
		return cfg, errors.New("DATABASE_URL is required")
	case cfg.RedisURL == "":
		return cfg, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
