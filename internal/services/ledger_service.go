package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bartermarket/backend/internal/audit"
	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	lockAccountSQL = `
		SELECT id, coin_balance, version, updated_at
		FROM profiles
		WHERE id = $1
		FOR UPDATE`

	insertLedgerEntrySQL = `
		INSERT INTO coin_transactions (id, user_id, amount, reason, related_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateAccountBalanceSQL = `
		UPDATE profiles
		SET coin_balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`

	selectBalanceSQL = `SELECT coin_balance FROM profiles WHERE id = $1`

	selectHistorySQL = `
		SELECT id, user_id, amount, reason, related_id, balance_after, created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	reconcileSQL = `
		SELECT p.coin_balance, COALESCE(SUM(t.amount), 0), COUNT(t.id)
		FROM profiles p
		LEFT JOIN coin_transactions t ON t.user_id = p.id
		WHERE p.id = $1
		GROUP BY p.id, p.coin_balance`
)

// LedgerService owns coin balances. A balance and its history row are always
// written in the same SQL transaction, and the profile row is locked first so
// concurrent operations on one user serialize.
type LedgerService struct {
	db     *sql.DB
	audit  *audit.Logger
	config *config.MarketConfig
	log    *zap.Logger
}

func NewLedgerService(db *sql.DB, cfg *config.MarketConfig, log *zap.Logger) *LedgerService {
	return &LedgerService{
		db:     db,
		audit:  audit.NewLogger(log),
		config: cfg,
		log:    log,
	}
}

// Credit adds amount to the user's balance.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, reason, relatedID string) (*models.LedgerTransaction, error) {
	return s.single(ctx, "credit", userID, amount, reason, relatedID, s.CreditTx)
}

// Debit removes amount from the user's balance, failing with
// ErrInsufficientFunds when the balance is too low.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, reason, relatedID string) (*models.LedgerTransaction, error) {
	return s.single(ctx, "debit", userID, amount, reason, relatedID, s.DebitTx)
}

type ledgerTxFunc func(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason, relatedID string) (*models.LedgerTransaction, error)

func (s *LedgerService) single(ctx context.Context, kind, userID string, amount int64, reason, relatedID string, apply ledgerTxFunc) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		metrics.LedgerOperations.WithLabelValues(kind, "rejected").Inc()
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s: %w", kind, err)
	}
	defer tx.Rollback()

	entry, err := apply(ctx, tx, userID, amount, reason, relatedID)
	if err != nil {
		s.audit.LogError(relatedID, userID, err)
		metrics.LedgerOperations.WithLabelValues(kind, "error").Inc()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.audit.LogError(relatedID, userID, err)
		metrics.LedgerOperations.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("failed to commit %s: %w", kind, err)
	}

	s.AuditEntries(*entry)
	return entry, nil
}

// CreditTx credits inside a transaction owned by the caller.
func (s *LedgerService) CreditTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason, relatedID string) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, tx, account, amount, reason, relatedID)
}

// DebitTx debits inside a transaction owned by the caller.
func (s *LedgerService) DebitTx(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason, relatedID string) (*models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	account, err := s.lockAccount(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if account.Balance < amount {
		return nil, fmt.Errorf("%w: balance %d, required %d", ErrInsufficientFunds, account.Balance, amount)
	}

	return s.apply(ctx, tx, account, -amount, reason, relatedID)
}

// TransferTx moves amount from one user to another inside the caller's
// transaction. Both rows are locked in id order to avoid deadlocks.
func (s *LedgerService) TransferTx(ctx context.Context, tx *sql.Tx, fromUserID, toUserID string, amount int64, relatedID string) ([]models.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return nil, validationf("cannot transfer coins to the same account")
	}

	firstLock, secondLock := fromUserID, toUserID
	if fromUserID > toUserID {
		firstLock, secondLock = toUserID, fromUserID
	}

	fromAccount, err := s.lockAccount(ctx, tx, firstLock)
	if err != nil {
		return nil, err
	}

	toAccount, err := s.lockAccount(ctx, tx, secondLock)
	if err != nil {
		return nil, err
	}

	if firstLock != fromUserID {
		fromAccount, toAccount = toAccount, fromAccount
	}

	if fromAccount.Balance < amount {
		return nil, fmt.Errorf("%w: balance %d, required %d", ErrInsufficientFunds, fromAccount.Balance, amount)
	}

	now := time.Now().UTC()
	debit, err := s.createLedgerEntry(ctx, tx, fromAccount.ID, -amount, models.ReasonTradeDebit, relatedID, fromAccount.Balance-amount, now)
	if err != nil {
		return nil, err
	}

	credit, err := s.createLedgerEntry(ctx, tx, toAccount.ID, amount, models.ReasonTradeCredit, relatedID, toAccount.Balance+amount, now)
	if err != nil {
		return nil, err
	}

	if err := s.updateAccountBalance(ctx, tx, fromAccount, fromAccount.Balance-amount, now); err != nil {
		return nil, err
	}

	if err := s.updateAccountBalance(ctx, tx, toAccount, toAccount.Balance+amount, now); err != nil {
		return nil, err
	}

	return []models.LedgerTransaction{*debit, *credit}, nil
}

// AuditEntries records committed entries. Call it only after the owning
// transaction has committed.
func (s *LedgerService) AuditEntries(entries ...models.LedgerTransaction) {
	for _, e := range entries {
		if e.Amount < 0 {
			s.audit.LogDebit(e.RelatedID, e.UserID, -e.Amount, e.Reason)
			metrics.LedgerOperations.WithLabelValues("debit", "ok").Inc()
			metrics.CoinsMoved.WithLabelValues("debit").Add(float64(-e.Amount))
		} else {
			s.audit.LogCredit(e.RelatedID, e.UserID, e.Amount, e.Reason)
			metrics.LedgerOperations.WithLabelValues("credit", "ok").Inc()
			metrics.CoinsMoved.WithLabelValues("credit").Add(float64(e.Amount))
		}
	}
}

// GetBalance returns the current balance of userID.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, selectBalanceSQL, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: profile %s", ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return balance, nil
}

// GetHistory returns the newest limit ledger entries of userID.
func (s *LedgerService) GetHistory(ctx context.Context, userID string, limit int) ([]models.LedgerTransaction, error) {
	limit = s.config.ClampHistory(limit)

	rows, err := s.db.QueryContext(ctx, selectHistorySQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger history: %w", err)
	}
	defer rows.Close()

	history := []models.LedgerTransaction{}
	for rows.Next() {
		var e models.LedgerTransaction
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.RelatedID, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, e)
	}

	return history, rows.Err()
}

// Reconcile compares the stored balance with the sum of the user's ledger.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (*models.Reconciliation, error) {
	r := models.Reconciliation{UserID: userID}
	err := s.db.QueryRowContext(ctx, reconcileSQL, userID).Scan(&r.Balance, &r.LedgerSum, &r.Entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile ledger: %w", err)
	}

	r.Consistent = r.Balance == r.LedgerSum
	if !r.Consistent {
		s.log.Error("[LEDGER] balance does not match ledger history",
			zap.String("user_id", userID),
			zap.Int64("balance", r.Balance),
			zap.Int64("ledger_sum", r.LedgerSum))
	}
	return &r, nil
}

func (s *LedgerService) apply(ctx context.Context, tx *sql.Tx, account *models.Account, delta int64, reason, relatedID string) (*models.LedgerTransaction, error) {
	now := time.Now().UTC()
	newBalance := account.Balance + delta

	entry, err := s.createLedgerEntry(ctx, tx, account.ID, delta, reason, relatedID, newBalance, now)
	if err != nil {
		return nil, err
	}

	if err := s.updateAccountBalance(ctx, tx, account, newBalance, now); err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *LedgerService) lockAccount(ctx context.Context, tx *sql.Tx, userID string) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRowContext(ctx, lockAccountSQL, userID).
		Scan(&account.ID, &account.Balance, &account.Version, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %s: %w", userID, err)
	}
	return &account, nil
}

func (s *LedgerService) createLedgerEntry(ctx context.Context, tx *sql.Tx, userID string, amount int64, reason, relatedID string, balanceAfter int64, at time.Time) (*models.LedgerTransaction, error) {
	entry := &models.LedgerTransaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Amount:       amount,
		Reason:       reason,
		RelatedID:    relatedID,
		BalanceAfter: balanceAfter,
		CreatedAt:    at,
	}

	_, err := tx.ExecContext(ctx, insertLedgerEntrySQL,
		entry.ID, entry.UserID, entry.Amount, entry.Reason, entry.RelatedID, entry.BalanceAfter, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry, nil
}

func (s *LedgerService) updateAccountBalance(ctx context.Context, tx *sql.Tx, account *models.Account, newBalance int64, at time.Time) error {
	result, err := tx.ExecContext(ctx, updateAccountBalanceSQL, newBalance, at, account.ID, account.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", ErrConflict, account.ID)
	}

	return nil
}
