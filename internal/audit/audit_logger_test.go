package audit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_WritesEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a := NewLogger(zap.New(core))

	a.LogCredit("trade-1", "user-1", 50, "trade_income")
	a.LogDebit("trade-1", "user-2", 50, "trade_payment")
	a.LogTransfer("trade-1", "user-2", "user-1", 50, "SUCCESS")
	a.LogError("trade-1", "user-2", errors.New("insufficient funds"))

	entries := logs.All()
	require.Len(t, entries, 4)

	types := make([]string, 0, len(entries))
	for _, e := range entries {
		assert.Equal(t, "AUDIT", e.Message)
		types = append(types, e.ContextMap()["event_type"].(string))
	}
	assert.Equal(t, []string{"CREDIT", "DEBIT", "TRANSFER", "ERROR"}, types)
	assert.Equal(t, "FAILED", entries[3].ContextMap()["status"])
}

func TestNewLogger_NilLogger(t *testing.T) {
	a := NewLogger(nil)
	assert.NotPanics(t, func() {
		a.LogCredit("x", "y", 1, "adjustment")
	})
}
