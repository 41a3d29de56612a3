package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"price-history/internal/domain"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	BrokerID      string
	PricePollSecs int

	H24RefreshInterval time.Duration
	D7RefreshInterval  time.Duration
	M1RefreshInterval  time.Duration
	M3RefreshInterval  time.Duration

	CandlesServiceURL   string
	AssetsServiceURL    string
	ConverterServiceURL string

	CollaboratorTimeout time.Duration

	AlertMoveThresholdPct float64
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.BrokerID = strings.TrimSpace(os.Getenv("BROKER_ID"))
	if cfg.BrokerID == "" {
		cfg.BrokerID = domain.DefaultBroker
	}

	cfg.PricePollSecs = 60
	if v := strings.TrimSpace(os.Getenv("PRICE_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PricePollSecs = n
		}
	}

	cfg.H24RefreshInterval = refreshIntervalFromEnv("H24_REFRESH_SECS")
	cfg.D7RefreshInterval = refreshIntervalFromEnv("D7_REFRESH_SECS")
	cfg.M1RefreshInterval = refreshIntervalFromEnv("M1_REFRESH_SECS")
	cfg.M3RefreshInterval = refreshIntervalFromEnv("M3_REFRESH_SECS")

	cfg.CandlesServiceURL = strings.TrimSpace(os.Getenv("CANDLES_SERVICE_URL"))
	if cfg.CandlesServiceURL == "" {
		log.Println("Warning: CANDLES_SERVICE_URL not set")
	}
	cfg.AssetsServiceURL = strings.TrimSpace(os.Getenv("ASSETS_SERVICE_URL"))
	if cfg.AssetsServiceURL == "" {
		log.Println("Warning: ASSETS_SERVICE_URL not set")
	}
	cfg.ConverterServiceURL = strings.TrimSpace(os.Getenv("CONVERTER_SERVICE_URL"))
	if cfg.ConverterServiceURL == "" {
		log.Println("Warning: CONVERTER_SERVICE_URL not set")
	}

	cfg.CollaboratorTimeout = 10 * time.Second
	if v := strings.TrimSpace(os.Getenv("COLLABORATOR_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CollaboratorTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.AlertMoveThresholdPct = 10
	if v := strings.TrimSpace(os.Getenv("ALERT_MOVE_THRESHOLD_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
			cfg.AlertMoveThresholdPct = n
		}
	}

	return cfg
}

// refreshIntervalFromEnv reads a per-window staleness interval, defaulting
// to one hour as the production deployment uses.
func refreshIntervalFromEnv(key string) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Hour
}
