package audit

import (
	"time"

	"go.uber.org/zap"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	RelatedID string    `json:"related_id"`
	AccountID string    `json:"account_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// Logger writes one structured line per ledger movement.
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("audit")}
}

func (a *Logger) LogCredit(relatedID, accountID string, amount int64, reason string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "CREDIT",
		RelatedID: relatedID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"reason": reason},
	})
}

func (a *Logger) LogDebit(relatedID, accountID string, amount int64, reason string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "DEBIT",
		RelatedID: relatedID,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"reason": reason},
	})
}

func (a *Logger) LogTransfer(relatedID, fromAccount, toAccount string, amount int64, status string) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "TRANSFER",
		RelatedID: relatedID,
		Amount:    amount,
		Status:    status,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

func (a *Logger) LogError(relatedID, accountID string, err error) {
	a.write(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		RelatedID: relatedID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) write(event Event) {
	a.log.Info("AUDIT",
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("related_id", event.RelatedID),
		zap.String("account_id", event.AccountID),
		zap.Int64("amount", event.Amount),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
	)
}
