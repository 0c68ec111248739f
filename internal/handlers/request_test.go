package handlers

import (
	"net/http"
	"testing"

	"github.com/bartermarket/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMalformedPathIDs(t *testing.T) {
	listings := &MockListingService{}
	share := &MockShareService{}
	trades := &MockTradeService{}
	messages := &MockMessageService{}
	notifications := &MockNotificationService{}

	listingHandler := NewListingHandler(listings, share)
	tradeHandler := NewTradeHandler(trades)
	messageHandler := NewMessageHandler(messages)
	notificationHandler := NewNotificationHandler(notifications)

	tests := []struct {
		name    string
		method  string
		pattern string
		handler http.HandlerFunc
		path    string
		body    string
	}{
		{"listing get", http.MethodGet, "/listings/{id}", listingHandler.Get, "/listings/abc", ""},
		{"listing update", http.MethodPut, "/listings/{id}", listingHandler.Update, "/listings/abc", `{"price":90}`},
		{"listing archive", http.MethodPost, "/listings/{id}/archive", listingHandler.Archive, "/listings/abc/archive", ""},
		{"listing delete", http.MethodDelete, "/listings/{id}", listingHandler.Delete, "/listings/abc", ""},
		{"listing qr", http.MethodGet, "/listings/{id}/qr", listingHandler.QRCode, "/listings/abc/qr", ""},
		{"trade get", http.MethodGet, "/trades/{id}", tradeHandler.Get, "/trades/abc", ""},
		{"trade respond", http.MethodPost, "/trades/{id}/respond", tradeHandler.Respond, "/trades/abc/respond", `{"decision":"ACCEPT"}`},
		{"trade complete", http.MethodPost, "/trades/{id}/complete", tradeHandler.Complete, "/trades/abc/complete", ""},
		{"trade cancel", http.MethodPost, "/trades/{id}/cancel", tradeHandler.Cancel, "/trades/abc/cancel", ""},
		{"conversation messages", http.MethodGet, "/conversations/{userId}/messages", messageHandler.Messages, "/conversations/abc/messages", ""},
		{"conversation read", http.MethodPost, "/conversations/{userId}/read", messageHandler.MarkRead, "/conversations/abc/read", ""},
		{"notification read", http.MethodPost, "/notifications/{id}/read", notificationHandler.MarkRead, "/notifications/abc/read", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.method, tt.pattern, tt.handler, tt.path, tt.body, userA)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, services.KindValidation, decodeError(t, rec).Code)
		})
	}

	for _, m := range []*mock.Mock{&listings.Mock, &share.Mock, &trades.Mock, &messages.Mock, &notifications.Mock} {
		assert.Empty(t, m.Calls)
	}
}

func TestMalformedBodyIDs(t *testing.T) {
	trades := &MockTradeService{}
	messages := &MockMessageService{}
	tradeHandler := NewTradeHandler(trades)
	messageHandler := NewMessageHandler(messages)

	proposals := map[string]string{
		"ListingID":         `{"listingId":"not-a-uuid","responderId":"` + userB + `","coinAmount":5}`,
		"ResponderID":       `{"listingId":"` + listingB + `","responderId":"x'; --","coinAmount":5}`,
		"ProposedListingID": `{"listingId":"` + listingB + `","responderId":"` + userB + `","proposedListingId":"abc"}`,
	}
	for field, body := range proposals {
		rec := serve(t, http.MethodPost, "/trades", tradeHandler.Propose, "/trades", body, userA)
		assert.Equal(t, http.StatusBadRequest, rec.Code, field)
		resp := decodeError(t, rec)
		assert.Equal(t, services.KindValidation, resp.Code, field)
		assert.Contains(t, resp.Details, field)
	}
	trades.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	rec := serve(t, http.MethodPost, "/messages", messageHandler.Send, "/messages", `{"receiverId":"bob","content":"hi"}`, userA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "ReceiverID")
	messages.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
