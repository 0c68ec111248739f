package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bartermarket/backend/internal/middleware"
	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	userA           = "6f1d2c3b-8a4e-4f5d-9c7b-1a2b3c4d5e01"
	userB           = "6f1d2c3b-8a4e-4f5d-9c7b-1a2b3c4d5e02"
	userC           = "6f1d2c3b-8a4e-4f5d-9c7b-1a2b3c4d5e03"
	userOne         = "0b9e7a12-3c4d-4e5f-8a6b-7c8d9e0f1a01"
	userTwo         = "0b9e7a12-3c4d-4e5f-8a6b-7c8d9e0f1a02"
	listingOne      = "d2a7c4e9-1b3f-4a6d-8e2c-5f7b9a1c3e01"
	listingTwo      = "d2a7c4e9-1b3f-4a6d-8e2c-5f7b9a1c3e02"
	listingA        = "d2a7c4e9-1b3f-4a6d-8e2c-5f7b9a1c3e0a"
	listingB        = "d2a7c4e9-1b3f-4a6d-8e2c-5f7b9a1c3e0b"
	tradeOne        = "4c8b2e6a-9d1f-4b3e-a5c7-2e4f6a8b0d01"
	tradeTwo        = "4c8b2e6a-9d1f-4b3e-a5c7-2e4f6a8b0d02"
	notificationOne = "8e3f5a7c-2b4d-4c6e-b8a1-3c5e7a9b1d01"
	notificationTwo = "8e3f5a7c-2b4d-4c6e-b8a1-3c5e7a9b1d02"
)

// serve routes a single request through a chi router so URL params resolve.
// A non-empty userID is placed in the request context as the auth middleware would.
func serve(t *testing.T, method, pattern string, handler http.HandlerFunc, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, handler)

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) services.ErrorResponse {
	t.Helper()
	var resp services.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func nilOr[T any](args mock.Arguments, i int) T {
	var zero T
	if args.Get(i) == nil {
		return zero
	}
	return args.Get(i).(T)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	args := m.Called(in)
	return nilOr[*services.AuthResult](args, 0), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	args := m.Called(email, password)
	return nilOr[*services.AuthResult](args, 0), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(token).Error(0)
}

func (m *MockAuthService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(userID)
	return nilOr[*models.Profile](args, 0), args.Error(1)
}

func (m *MockAuthService) GetPublicProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	args := m.Called(userID)
	return nilOr[*models.PublicProfile](args, 0), args.Error(1)
}

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) Create(ctx context.Context, ownerID string, in models.ListingInput) (*models.Listing, error) {
	args := m.Called(ownerID, in)
	return nilOr[*models.Listing](args, 0), args.Error(1)
}

func (m *MockListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	args := m.Called(id)
	return nilOr[*models.Listing](args, 0), args.Error(1)
}

func (m *MockListingService) Update(ctx context.Context, id, requesterID string, patch models.ListingPatch) (*models.Listing, error) {
	args := m.Called(id, requesterID, patch)
	return nilOr[*models.Listing](args, 0), args.Error(1)
}

func (m *MockListingService) Archive(ctx context.Context, id, requesterID string) (*models.Listing, error) {
	args := m.Called(id, requesterID)
	return nilOr[*models.Listing](args, 0), args.Error(1)
}

func (m *MockListingService) Delete(ctx context.Context, id, requesterID string) error {
	return m.Called(id, requesterID).Error(0)
}

func (m *MockListingService) List(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	args := m.Called(filter)
	return nilOr[*models.ListingPage](args, 0), args.Error(1)
}

func (m *MockListingService) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	args := m.Called(ownerID)
	return nilOr[[]models.Listing](args, 0), args.Error(1)
}

func (m *MockListingService) Categories(ctx context.Context) ([]string, error) {
	args := m.Called()
	return nilOr[[]string](args, 0), args.Error(1)
}

type MockShareService struct {
	mock.Mock
}

func (m *MockShareService) ListingQRCode(ctx context.Context, listingID string) (*services.ListingShare, error) {
	args := m.Called(listingID)
	return nilOr[*services.ListingShare](args, 0), args.Error(1)
}

type MockTradeService struct {
	mock.Mock
}

func (m *MockTradeService) Propose(ctx context.Context, initiatorID, listingID, responderID string, offer models.TradeOffer) (*models.Trade, error) {
	args := m.Called(initiatorID, listingID, responderID, offer)
	return nilOr[*models.Trade](args, 0), args.Error(1)
}

func (m *MockTradeService) Respond(ctx context.Context, tradeID, responderID string, decision models.TradeDecision) (*models.Trade, error) {
	args := m.Called(tradeID, responderID, decision)
	return nilOr[*models.Trade](args, 0), args.Error(1)
}

func (m *MockTradeService) Cancel(ctx context.Context, tradeID, callerID string) (*models.Trade, error) {
	args := m.Called(tradeID, callerID)
	return nilOr[*models.Trade](args, 0), args.Error(1)
}

func (m *MockTradeService) Complete(ctx context.Context, tradeID, callerID string) (*models.TradeCompletion, error) {
	args := m.Called(tradeID, callerID)
	return nilOr[*models.TradeCompletion](args, 0), args.Error(1)
}

func (m *MockTradeService) Get(ctx context.Context, tradeID, callerID string) (*models.Trade, error) {
	args := m.Called(tradeID, callerID)
	return nilOr[*models.Trade](args, 0), args.Error(1)
}

func (m *MockTradeService) ListForUser(ctx context.Context, userID, role, status string) ([]models.Trade, error) {
	args := m.Called(userID, role, status)
	return nilOr[[]models.Trade](args, 0), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetBalance(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) GetHistory(ctx context.Context, userID string, limit int) ([]models.LedgerTransaction, error) {
	args := m.Called(userID, limit)
	return nilOr[[]models.LedgerTransaction](args, 0), args.Error(1)
}

func (m *MockWalletService) Reconcile(ctx context.Context, userID string) (*models.Reconciliation, error) {
	args := m.Called(userID)
	return nilOr[*models.Reconciliation](args, 0), args.Error(1)
}

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	args := m.Called(senderID, receiverID, content)
	return nilOr[*models.Message](args, 0), args.Error(1)
}

func (m *MockMessageService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(userID)
	return nilOr[[]models.Conversation](args, 0), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, userID, otherUserID string) ([]models.Message, error) {
	args := m.Called(userID, otherUserID)
	return nilOr[[]models.Message](args, 0), args.Error(1)
}

func (m *MockMessageService) MarkConversationRead(ctx context.Context, userID, otherUserID string) (int64, error) {
	args := m.Called(userID, otherUserID)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	args := m.Called(userID, unreadOnly, limit)
	return nilOr[[]models.Notification](args, 0), args.Error(1)
}

func (m *MockNotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return m.Called(id, userID).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) GetPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	args := m.Called(userID)
	return nilOr[[]models.NotificationPreference](args, 0), args.Error(1)
}

func (m *MockNotificationService) SetPreference(ctx context.Context, userID, notificationType string, enabled bool) (*models.NotificationPreference, error) {
	args := m.Called(userID, notificationType, enabled)
	return nilOr[*models.NotificationPreference](args, 0), args.Error(1)
}
