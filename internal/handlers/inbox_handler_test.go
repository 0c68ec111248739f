package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWalletHandler(t *testing.T) {
	ledger := &MockWalletService{}
	handler := NewWalletHandler(ledger)

	ledger.On("GetBalance", userA).Return(int64(150), nil)
	ledger.On("GetHistory", userA, 5).Return([]models.LedgerTransaction{{ID: "tx-1", Amount: 50}}, nil)
	ledger.On("Reconcile", userA).Return(&models.Reconciliation{UserID: userA, Balance: 150, LedgerSum: 150, Consistent: true}, nil)

	rec := serve(t, http.MethodGet, "/wallet/balance", handler.GetBalance, "/wallet/balance", "", userA)
	assert.JSONEq(t, `{"balance":150}`, rec.Body.String())

	rec = serve(t, http.MethodGet, "/wallet/transactions", handler.GetTransactions, "/wallet/transactions?limit=5", "", userA)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"transactions":[`)

	rec = serve(t, http.MethodGet, "/wallet/transactions", handler.GetTransactions, "/wallet/transactions?limit=x", "", userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodGet, "/wallet/reconcile", handler.Reconcile, "/wallet/reconcile", "", userA)
	assert.Contains(t, rec.Body.String(), `"consistent":true`)

	rec = serve(t, http.MethodGet, "/wallet/balance", handler.GetBalance, "/wallet/balance", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMessageHandler(t *testing.T) {
	service := &MockMessageService{}
	handler := NewMessageHandler(service)

	service.On("Send", userA, userB, "hi").Return(&models.Message{ID: "m-1", Content: "hi"}, nil)
	service.On("Send", userA, userA, "hi").Return(nil, fmt.Errorf("%w: cannot message yourself", services.ErrInvalidMessage))
	service.On("ListConversations", userA).Return([]models.Conversation{{OtherUserID: userB, LastMessage: "hi"}}, nil)
	service.On("ListMessages", userA, userB).Return([]models.Message{{ID: "m-1"}}, nil)
	service.On("MarkConversationRead", userA, userB).Return(int64(2), nil)

	rec := serve(t, http.MethodPost, "/messages", handler.Send, "/messages", `{"receiverId":"` + userB + `","content":"hi"}`, userA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodPost, "/messages", handler.Send, "/messages", `{"receiverId":"` + userA + `","content":"hi"}`, userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPost, "/messages", handler.Send, "/messages", `{"receiverId":"` + userB + `","content":""}`, userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNumberOfCalls(t, "Send", 2)

	rec = serve(t, http.MethodGet, "/conversations", handler.Conversations, "/conversations", "", userA)
	assert.Contains(t, rec.Body.String(), `"lastMessage":"hi"`)

	rec = serve(t, http.MethodGet, "/conversations/{userId}/messages", handler.Messages, "/conversations/" + userB + "/messages", "", userA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodPost, "/conversations/{userId}/read", handler.MarkRead, "/conversations/" + userB + "/read", "", userA)
	assert.JSONEq(t, `{"marked":2}`, rec.Body.String())
}

func TestNotificationHandler(t *testing.T) {
	service := &MockNotificationService{}
	handler := NewNotificationHandler(service)

	service.On("List", userA, true, 10).Return([]models.Notification{{ID: notificationOne, Type: models.NotificationTradeOffer}}, nil)
	service.On("UnreadCount", userA).Return(int64(3), nil)
	service.On("MarkRead", notificationOne, userA).Return(nil)
	service.On("MarkRead", notificationTwo, userA).Return(fmt.Errorf("%w: notification belongs to another user", services.ErrForbidden))
	service.On("MarkAllRead", userA).Return(int64(3), nil)
	service.On("GetPreferences", userA).Return([]models.NotificationPreference{{Type: models.NotificationMessage, Enabled: true}}, nil)
	service.On("SetPreference", userA, models.NotificationMessage, false).
		Return(&models.NotificationPreference{UserID: userA, Type: models.NotificationMessage, Enabled: false}, nil)

	rec := serve(t, http.MethodGet, "/notifications", handler.List, "/notifications?unread=true&limit=10", "", userA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodGet, "/notifications", handler.List, "/notifications?unread=sometimes", "", userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodGet, "/notifications/unread-count", handler.UnreadCount, "/notifications/unread-count", "", userA)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = serve(t, http.MethodPost, "/notifications/{id}/read", handler.MarkRead, "/notifications/" + notificationOne + "/read", "", userA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodPost, "/notifications/{id}/read", handler.MarkRead, "/notifications/" + notificationTwo + "/read", "", userA)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(t, http.MethodPost, "/notifications/read-all", handler.MarkAllRead, "/notifications/read-all", "", userA)
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())

	rec = serve(t, http.MethodGet, "/notifications/preferences", handler.GetPreferences, "/notifications/preferences", "", userA)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, http.MethodPut, "/notifications/preferences", handler.SetPreference, "/notifications/preferences",
		`{"type":"message","enabled":false}`, userA)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled":false`)

	// enabled is required, a missing value is not the same as false
	rec = serve(t, http.MethodPut, "/notifications/preferences", handler.SetPreference, "/notifications/preferences",
		`{"type":"message"}`, userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	service.AssertNumberOfCalls(t, "SetPreference", 1)
	service.AssertNotCalled(t, "List", userA, false, mock.Anything)
}
