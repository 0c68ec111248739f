package handlers

import (
	"context"
	"net/http"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type WalletService interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	GetHistory(ctx context.Context, userID string, limit int) ([]models.LedgerTransaction, error)
	Reconcile(ctx context.Context, userID string) (*models.Reconciliation, error)
}

type WalletHandler struct {
	ledger WalletService
}

func NewWalletHandler(ledger WalletService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance returns the caller's coin balance
// @Summary Get wallet balance
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{balance=int64}
// @Failure 401 {object} services.ErrorResponse
// @Router /wallet/balance [get]
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// GetTransactions returns the caller's ledger, newest first
// @Summary Wallet transactions
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries, at most 500"
// @Success 200 {object} object{transactions=[]models.LedgerTransaction}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/transactions [get]
func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	entries, err := h.ledger.GetHistory(r.Context(), userID, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// Reconcile checks the caller's balance against the ledger sum
// @Summary Reconcile wallet
// @Tags Wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Reconciliation
// @Router /wallet/reconcile [get]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.ledger.Reconcile(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
