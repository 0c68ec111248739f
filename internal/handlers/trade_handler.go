package handlers

import (
	"context"
	"net/http"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type TradeService interface {
	Propose(ctx context.Context, initiatorID, listingID, responderID string, offer models.TradeOffer) (*models.Trade, error)
	Respond(ctx context.Context, tradeID, responderID string, decision models.TradeDecision) (*models.Trade, error)
	Cancel(ctx context.Context, tradeID, callerID string) (*models.Trade, error)
	Complete(ctx context.Context, tradeID, callerID string) (*models.TradeCompletion, error)
	Get(ctx context.Context, tradeID, callerID string) (*models.Trade, error)
	ListForUser(ctx context.Context, userID, role, status string) ([]models.Trade, error)
}

type TradeHandler struct {
	service   TradeService
	validator *services.ValidationHelper
}

func NewTradeHandler(service TradeService) *TradeHandler {
	return &TradeHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ProposeTradeRequest represents a trade offer
// @Description Trade proposal request structure
type ProposeTradeRequest struct {
	ListingID         string `json:"listingId" validate:"required,uuid"`
	ResponderID       string `json:"responderId" validate:"required,uuid"`
	ProposedListingID string `json:"proposedListingId" validate:"omitempty,uuid"`
	CoinAmount        int64  `json:"coinAmount" validate:"gte=0" example:"50"`
	Message           string `json:"message" validate:"omitempty,max=1000"`
}

// RespondTradeRequest carries the responder's decision
// @Description Trade response request structure
type RespondTradeRequest struct {
	Decision string `json:"decision" validate:"required,oneof=ACCEPT REJECT" example:"ACCEPT"`
}

// Propose opens a trade on another member's listing
// @Summary Propose trade
// @Tags Trades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProposeTradeRequest true "Offer"
// @Success 200 {object} models.Trade
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /trades [post]
func (h *TradeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ProposeTradeRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	trade, err := h.service.Propose(r.Context(), userID, req.ListingID, req.ResponderID, models.TradeOffer{
		ProposedListingID: req.ProposedListingID,
		CoinAmount:        req.CoinAmount,
		Message:           req.Message,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trade)
}

// List returns the caller's trades
// @Summary List trades
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param role query string false "initiator or responder"
// @Param status query string false "Trade status"
// @Success 200 {array} models.Trade
// @Failure 400 {object} services.ErrorResponse
// @Router /trades [get]
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	trades, err := h.service.ListForUser(r.Context(), userID, q.Get("role"), q.Get("status"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trades)
}

// Get returns a trade the caller is party to
// @Summary Get trade
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trade ID"
// @Success 200 {object} models.Trade
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /trades/{id} [get]
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tradeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	trade, err := h.service.Get(r.Context(), tradeID, userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trade)
}

// Respond accepts or rejects a pending trade
// @Summary Respond to trade
// @Tags Trades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trade ID"
// @Param request body RespondTradeRequest true "Decision"
// @Success 200 {object} models.Trade
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /trades/{id}/respond [post]
func (h *TradeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tradeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RespondTradeRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	trade, err := h.service.Respond(r.Context(), tradeID, userID, models.TradeDecision(req.Decision))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trade)
}

// Complete settles an accepted trade
// @Summary Complete trade
// @Description Moves the offered coins and archives the traded listings atomically
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trade ID"
// @Success 200 {object} models.TradeCompletion
// @Failure 402 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /trades/{id}/complete [post]
func (h *TradeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tradeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	completion, err := h.service.Complete(r.Context(), tradeID, userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completion)
}

// Cancel withdraws a pending or accepted trade
// @Summary Cancel trade
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Trade ID"
// @Success 200 {object} models.Trade
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /trades/{id}/cancel [post]
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tradeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	trade, err := h.service.Cancel(r.Context(), tradeID, userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trade)
}
