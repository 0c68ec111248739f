package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadMarketConfig_Defaults(t *testing.T) {
	cfg := LoadMarketConfig()

	assert.Equal(t, 20, cfg.DefaultPageSize)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, int64(100), cfg.SignupBonus)
	assert.Equal(t, time.Minute, cfg.MessageRateWindow)
}

func TestLoadMarketConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MARKET_SIGNUP_BONUS", "250")
	t.Setenv("MESSAGE_RATE_WINDOW", "30s")
	t.Setenv("MARKET_MAX_PAGE_SIZE", "not-a-number")

	cfg := LoadMarketConfig()

	assert.Equal(t, int64(250), cfg.SignupBonus)
	assert.Equal(t, 30*time.Second, cfg.MessageRateWindow)
	assert.Equal(t, 100, cfg.MaxPageSize)
}

func TestMarketConfig_ClampPage(t *testing.T) {
	cfg := &MarketConfig{DefaultPageSize: 20, MaxPageSize: 100}

	page, limit := cfg.ClampPage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)

	page, limit = cfg.ClampPage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, 100, limit)
}

func TestMarketConfig_ClampHistory(t *testing.T) {
	cfg := &MarketConfig{HistoryDefaultLimit: 50, HistoryMaxLimit: 500}

	assert.Equal(t, 50, cfg.ClampHistory(0))
	assert.Equal(t, 10, cfg.ClampHistory(10))
	assert.Equal(t, 500, cfg.ClampHistory(9999))
}
