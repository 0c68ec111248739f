package services

import (
	"context"

	"github.com/bartermarket/backend/internal/models"
	"github.com/stretchr/testify/mock"
)

func ctx() context.Context {
	return context.Background()
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, userID, event string, data any) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Emit(ctx context.Context, in models.NotificationInput) (*models.Notification, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

// notified returns the notification types sent to userID.
func (m *MockNotifier) notified(userID string) []string {
	var types []string
	for _, call := range m.Calls {
		if call.Method != "Emit" {
			continue
		}
		in := call.Arguments.Get(0).(models.NotificationInput)
		if in.UserID == userID {
			types = append(types, in.Type)
		}
	}
	return types
}
