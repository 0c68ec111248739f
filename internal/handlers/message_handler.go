package handlers

import (
	"context"
	"net/http"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, userID, otherUserID string) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, userID, otherUserID string) (int64, error)
}

type MessageHandler struct {
	service   MessageService
	validator *services.ValidationHelper
}

func NewMessageHandler(service MessageService) *MessageHandler {
	return &MessageHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// SendMessageRequest represents a direct message
// @Description Message request structure
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId" validate:"required,uuid"`
	Content    string `json:"content" validate:"required,max=5000" example:"Is the bike still available?"`
}

// Send delivers a direct message
// @Summary Send message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SendMessageRequest true "Message"
// @Success 200 {object} models.Message
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /messages [post]
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	msg, err := h.service.Send(r.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// Conversations lists the caller's inbox, most recent first
// @Summary List conversations
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Conversation
// @Router /conversations [get]
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	conversations, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

// Messages returns the thread with another member, oldest first
// @Summary Conversation messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Other user ID"
// @Success 200 {array} models.Message
// @Router /conversations/{userId}/messages [get]
func (h *MessageHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	otherUserID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(r.Context(), userID, otherUserID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// MarkRead marks everything the other member sent as read
// @Summary Mark conversation read
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Other user ID"
// @Success 200 {object} object{marked=int64}
// @Router /conversations/{userId}/read [post]
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	otherUserID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	marked, err := h.service.MarkConversationRead(r.Context(), userID, otherUserID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"marked": marked})
}
