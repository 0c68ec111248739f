package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const tradeColumns = "id, initiator_id, responder_id, listing_id, proposed_listing_id, coin_amount, message, status, created_at, updated_at, completed_at"

const (
	insertTradeSQL = `
		INSERT INTO trades (id, initiator_id, responder_id, listing_id, proposed_listing_id, coin_amount, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectTradeSQL = `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	lockTradeSQL = `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 FOR UPDATE`

	updateTradeStatusSQL = `UPDATE trades SET status = $1, updated_at = $2 WHERE id = $3`

	completeTradeSQL = `UPDATE trades SET status = $1, updated_at = $2, completed_at = $3 WHERE id = $4`
)

// Notifier delivers best-effort notifications.
type Notifier interface {
	Emit(ctx context.Context, in models.NotificationInput) (*models.Notification, error)
}

// TradeService drives a trade from proposal to a terminal state. Every
// transition locks the trade row, and completion moves coins and archives
// listings in the same transaction.
type TradeService struct {
	db       *sql.DB
	ledger   *LedgerService
	listings *ListingService
	notifier Notifier
	log      *zap.Logger
}

func NewTradeService(db *sql.DB, ledger *LedgerService, listings *ListingService, notifier Notifier, log *zap.Logger) *TradeService {
	return &TradeService{
		db:       db,
		ledger:   ledger,
		listings: listings,
		notifier: notifier,
		log:      log,
	}
}

func (s *TradeService) Propose(ctx context.Context, initiatorID, listingID, responderID string, offer models.TradeOffer) (*models.Trade, error) {
	if initiatorID == responderID {
		return nil, fmt.Errorf("%w: cannot trade with yourself", ErrInvalidTrade)
	}
	if offer.CoinAmount < 0 {
		return nil, fmt.Errorf("%w: coin amount must not be negative", ErrInvalidTrade)
	}
	offer.Message = strings.TrimSpace(offer.Message)
	if offer.ProposedListingID == "" && offer.CoinAmount == 0 && offer.Message == "" {
		return nil, fmt.Errorf("%w: offer is empty", ErrInvalidTrade)
	}

	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("%w: listing is not active", ErrInvalidTrade)
	}
	if listing.OwnerID != responderID {
		return nil, fmt.Errorf("%w: listing does not belong to the responder", ErrInvalidTrade)
	}

	if offer.ProposedListingID != "" {
		if offer.ProposedListingID == listingID {
			return nil, fmt.Errorf("%w: cannot offer the requested listing", ErrInvalidTrade)
		}
		proposed, err := s.listings.Get(ctx, offer.ProposedListingID)
		if err != nil {
			return nil, err
		}
		if proposed.Status != models.ListingStatusActive || proposed.OwnerID != initiatorID {
			return nil, fmt.Errorf("%w: offered listing must be one of your active listings", ErrInvalidTrade)
		}
	}

	now := time.Now().UTC()
	trade := &models.Trade{
		ID:                uuid.NewString(),
		InitiatorID:       initiatorID,
		ResponderID:       responderID,
		ListingID:         listingID,
		ProposedListingID: offer.ProposedListingID,
		CoinAmount:        offer.CoinAmount,
		Message:           offer.Message,
		Status:            models.TradeStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err = s.db.ExecContext(ctx, insertTradeSQL,
		trade.ID, trade.InitiatorID, trade.ResponderID, trade.ListingID, nullString(trade.ProposedListingID),
		trade.CoinAmount, trade.Message, string(trade.Status), trade.CreatedAt, trade.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}

	metrics.TradeTransitions.WithLabelValues(string(trade.Status)).Inc()
	s.log.Info("[TRADE] proposed",
		zap.String("trade_id", trade.ID),
		zap.String("listing_id", listingID),
		zap.Int64("coins", trade.CoinAmount))

	s.notify(ctx, responderID, models.NotificationTradeOffer, "New trade offer",
		fmt.Sprintf("You received a trade offer for %q", listing.Title), trade)
	return trade, nil
}

func (s *TradeService) Respond(ctx context.Context, tradeID, responderID string, decision models.TradeDecision) (*models.Trade, error) {
	var to models.TradeStatus
	switch decision {
	case models.DecisionAccept:
		to = models.TradeStatusAccepted
	case models.DecisionReject:
		to = models.TradeStatusRejected
	default:
		return nil, validationf("decision must be ACCEPT or REJECT")
	}

	trade, err := s.transition(ctx, tradeID, func(t *models.Trade) error {
		if t.ResponderID != responderID {
			return fmt.Errorf("%w: only the responder can answer this trade", ErrForbidden)
		}
		if t.Status != models.TradeStatusPending {
			return fmt.Errorf("%w: trade is %s", ErrInvalidTransition, t.Status)
		}
		return nil
	}, to)
	if err != nil {
		return nil, err
	}

	if to == models.TradeStatusAccepted {
		s.notify(ctx, trade.InitiatorID, models.NotificationTradeAccepted, "Trade accepted",
			"Your trade offer was accepted", trade)
	} else {
		s.notify(ctx, trade.InitiatorID, models.NotificationTradeRejected, "Trade rejected",
			"Your trade offer was rejected", trade)
	}
	return trade, nil
}

func (s *TradeService) Cancel(ctx context.Context, tradeID, callerID string) (*models.Trade, error) {
	trade, err := s.transition(ctx, tradeID, func(t *models.Trade) error {
		if !t.IsParty(callerID) {
			return fmt.Errorf("%w: not a party to this trade", ErrForbidden)
		}
		if t.Status != models.TradeStatusPending && t.Status != models.TradeStatusAccepted {
			return fmt.Errorf("%w: trade is %s", ErrInvalidTransition, t.Status)
		}
		return nil
	}, models.TradeStatusCancelled)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, trade.Counterpart(callerID), models.NotificationTradeCancelled, "Trade cancelled",
		"A trade you were part of was cancelled", trade)
	return trade, nil
}

// Complete settles an ACCEPTED trade. Coins move from initiator to responder,
// both listings are archived and the trade becomes COMPLETED, all or nothing.
func (s *TradeService) Complete(ctx context.Context, tradeID, callerID string) (*models.TradeCompletion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin trade completion: %w", err)
	}
	defer tx.Rollback()

	trade, err := scanTrade(tx.QueryRowContext(ctx, lockTradeSQL, tradeID))
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(callerID) {
		return nil, fmt.Errorf("%w: not a party to this trade", ErrForbidden)
	}
	if trade.Status != models.TradeStatusAccepted {
		return nil, fmt.Errorf("%w: trade is %s", ErrInvalidTransition, trade.Status)
	}

	entries := []models.LedgerTransaction{}
	if trade.CoinAmount > 0 {
		entries, err = s.ledger.TransferTx(ctx, tx, trade.InitiatorID, trade.ResponderID, trade.CoinAmount, trade.ID)
		if err != nil {
			s.log.Warn("[TRADE] completion aborted",
				zap.String("trade_id", trade.ID),
				zap.Error(err))
			return nil, err
		}
	}

	listingIDs := []string{trade.ListingID}
	if trade.ProposedListingID != "" {
		listingIDs = append(listingIDs, trade.ProposedListingID)
	}
	for _, listingID := range listingIDs {
		if err := s.listings.ArchiveTx(ctx, tx, listingID); err != nil {
			s.log.Warn("[TRADE] completion aborted",
				zap.String("trade_id", trade.ID),
				zap.String("listing_id", listingID),
				zap.Error(err))
			return nil, err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, completeTradeSQL, string(models.TradeStatusCompleted), now, now, trade.ID); err != nil {
		return nil, fmt.Errorf("failed to complete trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trade completion: %w", err)
	}

	trade.Status = models.TradeStatusCompleted
	trade.UpdatedAt = now
	trade.CompletedAt = &now

	s.ledger.AuditEntries(entries...)
	metrics.TradeTransitions.WithLabelValues(string(trade.Status)).Inc()
	s.log.Info("[TRADE] completed",
		zap.String("trade_id", trade.ID),
		zap.Int64("coins", trade.CoinAmount))

	for _, userID := range []string{trade.InitiatorID, trade.ResponderID} {
		s.notify(ctx, userID, models.NotificationTradeCompleted, "Trade completed",
			"Your trade has been completed", trade)
	}

	return &models.TradeCompletion{Trade: trade, LedgerEntries: entries}, nil
}

// Get returns a trade visible to one of its parties.
func (s *TradeService) Get(ctx context.Context, tradeID, callerID string) (*models.Trade, error) {
	trade, err := scanTrade(s.db.QueryRowContext(ctx, selectTradeSQL, tradeID))
	if err != nil {
		return nil, err
	}
	if !trade.IsParty(callerID) {
		return nil, fmt.Errorf("%w: not a party to this trade", ErrForbidden)
	}
	return trade, nil
}

// ListForUser returns the user's trades, newest first. role is "initiator",
// "responder" or empty for both; status is optional.
func (s *TradeService) ListForUser(ctx context.Context, userID, role, status string) ([]models.Trade, error) {
	var where string
	switch role {
	case "":
		where = "(initiator_id = $1 OR responder_id = $1)"
	case "initiator":
		where = "initiator_id = $1"
	case "responder":
		where = "responder_id = $1"
	default:
		return nil, validationf("role must be initiator or responder")
	}
	args := []any{userID}

	if status != "" {
		switch models.TradeStatus(status) {
		case models.TradeStatusPending, models.TradeStatusAccepted, models.TradeStatusRejected,
			models.TradeStatusCancelled, models.TradeStatusCompleted:
		default:
			return nil, validationf("unknown trade status %q", status)
		}
		args = append(args, status)
		where += " AND status = $2"
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tradeColumns+" FROM trades WHERE "+where+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func (s *TradeService) transition(ctx context.Context, tradeID string, check func(*models.Trade) error, to models.TradeStatus) (*models.Trade, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin trade update: %w", err)
	}
	defer tx.Rollback()

	trade, err := scanTrade(tx.QueryRowContext(ctx, lockTradeSQL, tradeID))
	if err != nil {
		return nil, err
	}
	if err := check(trade); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, updateTradeStatusSQL, string(to), now, trade.ID); err != nil {
		return nil, fmt.Errorf("failed to update trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trade update: %w", err)
	}

	trade.Status = to
	trade.UpdatedAt = now
	metrics.TradeTransitions.WithLabelValues(string(to)).Inc()
	s.log.Info("[TRADE] status changed",
		zap.String("trade_id", trade.ID),
		zap.String("status", string(to)))
	return trade, nil
}

func (s *TradeService) notify(ctx context.Context, userID, notificationType, title, message string, trade *models.Trade) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.Emit(ctx, models.NotificationInput{
		UserID:      userID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		RelatedID:   trade.ID,
		RelatedType: "trade",
	})
	if err != nil {
		s.log.Warn("[TRADE] failed to emit notification",
			zap.String("trade_id", trade.ID),
			zap.String("type", notificationType),
			zap.Error(err))
	}
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var (
		t         models.Trade
		proposed  sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&t.ID, &t.InitiatorID, &t.ResponderID, &t.ListingID, &proposed, &t.CoinAmount,
		&t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trade", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trade: %w", err)
	}

	t.ProposedListingID = proposed.String
	if completed.Valid {
		t.CompletedAt = &completed.Time
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
