package config

import (
	"os"
	"strconv"
	"time"
)

type MarketConfig struct {
	DefaultPageSize     int
	MaxPageSize         int
	SignupBonus         int64
	HistoryDefaultLimit int
	HistoryMaxLimit     int
	MessageRateLimit    int
	MessageRateWindow   time.Duration
	MaxMessageLength    int
	PublicBaseURL       string
	QRCodeSize          int
}

func LoadMarketConfig() *MarketConfig {
	return &MarketConfig{
		DefaultPageSize:     getEnvAsInt("MARKET_DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:         getEnvAsInt("MARKET_MAX_PAGE_SIZE", 100),
		SignupBonus:         int64(getEnvAsInt("MARKET_SIGNUP_BONUS", 100)),
		HistoryDefaultLimit: getEnvAsInt("LEDGER_HISTORY_DEFAULT_LIMIT", 50),
		HistoryMaxLimit:     getEnvAsInt("LEDGER_HISTORY_MAX_LIMIT", 500),
		MessageRateLimit:    getEnvAsInt("MESSAGE_RATE_LIMIT", 30),
		MessageRateWindow:   getEnvAsDuration("MESSAGE_RATE_WINDOW", time.Minute),
		MaxMessageLength:    getEnvAsInt("MESSAGE_MAX_LENGTH", 5000),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		QRCodeSize:          getEnvAsInt("QR_CODE_SIZE", 256),
	}
}

// ClampPage normalises page and limit for listing queries.
func (c *MarketConfig) ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = c.DefaultPageSize
	}
	if limit > c.MaxPageSize {
		limit = c.MaxPageSize
	}
	return page, limit
}

// ClampHistory normalises a ledger history limit.
func (c *MarketConfig) ClampHistory(limit int) int {
	if limit < 1 {
		return c.HistoryDefaultLimit
	}
	if limit > c.HistoryMaxLimit {
		return c.HistoryMaxLimit
	}
	return limit
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
