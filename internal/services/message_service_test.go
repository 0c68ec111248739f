package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	profileExistsPattern = "SELECT EXISTS\\(SELECT 1 FROM profiles WHERE id = \\$1\\)"
	upsertPattern        = "INSERT INTO conversations \\(user_id, other_user_id, last_message, last_message_at, unread_count\\) VALUES \\(\\$1, \\$2, \\$3, \\$4, \\$5\\) ON CONFLICT \\(user_id, other_user_id\\) DO UPDATE"
)

func newTestMessages(t *testing.T) (*MessageService, sqlmock.Sqlmock, *MockPublisher, *MockNotifier) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	publisher := &MockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier := &MockNotifier{}
	notifier.On("Emit", mock.Anything).Return(&models.Notification{}, nil).Maybe()

	return NewMessageService(db, config.LoadMarketConfig(), publisher, notifier, zap.NewNop()), dbMock, publisher, notifier
}

func TestMessageService_Send(t *testing.T) {
	t.Run("message and both conversation rows in one transaction", func(t *testing.T) {
		service, dbMock, publisher, notifier := newTestMessages(t)

		dbMock.ExpectQuery(profileExistsPattern).
			WithArgs("user-b").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO messages").
			WithArgs(sqlmock.AnyArg(), "user-a", "user-b", "hi", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec(upsertPattern).
			WithArgs("user-a", "user-b", "hi", sqlmock.AnyArg(), 0).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec(upsertPattern).
			WithArgs("user-b", "user-a", "hi", sqlmock.AnyArg(), 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectCommit()

		msg, err := service.Send(ctx(), "user-a", "user-b", "  hi ")
		require.NoError(t, err)
		assert.Equal(t, "hi", msg.Content)
		assert.False(t, msg.IsRead)

		publisher.AssertCalled(t, "Publish", "user-b", "new_message", msg)
		assert.Equal(t, []string{models.NotificationMessage}, notifier.notified("user-b"))
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("failed receiver upsert rolls everything back", func(t *testing.T) {
		service, dbMock, publisher, notifier := newTestMessages(t)

		dbMock.ExpectQuery(profileExistsPattern).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO messages").
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec(upsertPattern).
			WithArgs("user-a", "user-b", "hi", sqlmock.AnyArg(), 0).
			WillReturnResult(sqlmock.NewResult(1, 1))
		dbMock.ExpectExec(upsertPattern).
			WithArgs("user-b", "user-a", "hi", sqlmock.AnyArg(), 1).
			WillReturnError(errors.New("deadlock detected"))
		dbMock.ExpectRollback()

		_, err := service.Send(ctx(), "user-a", "user-b", "hi")
		assert.Error(t, err)
		assert.Equal(t, KindInternal, KindOf(err))
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		notifier.AssertNotCalled(t, "Emit", mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("invalid messages", func(t *testing.T) {
		service, dbMock, _, _ := newTestMessages(t)

		for _, content := range []string{"", "   \n\t", strings.Repeat("x", 5001)} {
			_, err := service.Send(ctx(), "user-a", "user-b", content)
			assert.ErrorIs(t, err, ErrInvalidMessage)
			assert.Equal(t, KindValidation, KindOf(err))
		}

		_, err := service.Send(ctx(), "user-a", "user-a", "hello me")
		assert.ErrorIs(t, err, ErrInvalidMessage)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown receiver", func(t *testing.T) {
		service, dbMock, _, _ := newTestMessages(t)

		dbMock.ExpectQuery(profileExistsPattern).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := service.Send(ctx(), "user-a", "ghost", "hi")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}

func TestMessageService_ListConversations(t *testing.T) {
	service, dbMock, _, _ := newTestMessages(t)
	now := time.Now()

	cols := []string{"user_id", "other_user_id", "last_message", "last_message_at", "unread_count",
		"id", "username", "display_name", "avatar_url", "location"}

	// each side of the pair sees the same last message and the other party's profile
	for _, side := range []struct{ user, other, name string }{
		{"user-a", "user-b", "Bob"},
		{"user-b", "user-a", "Alice"},
	} {
		dbMock.ExpectQuery("FROM conversations c JOIN profiles p ON p.id = c.other_user_id WHERE c.user_id = \\$1 ORDER BY c.last_message_at DESC").
			WithArgs(side.user).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(side.user, side.other, "hi", now, 0, side.other, strings.ToLower(side.name), side.name, "", ""))

		conversations, err := service.ListConversations(ctx(), side.user)
		require.NoError(t, err)
		require.Len(t, conversations, 1)
		assert.Equal(t, "hi", conversations[0].LastMessage)
		assert.Equal(t, side.other, conversations[0].OtherUser.ID)
		assert.Equal(t, side.name, conversations[0].OtherUser.DisplayName)
	}
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestMessageService_ListMessages(t *testing.T) {
	service, dbMock, _, _ := newTestMessages(t)
	now := time.Now()

	dbMock.ExpectQuery("WHERE \\(sender_id = \\$1 AND receiver_id = \\$2\\) OR \\(sender_id = \\$2 AND receiver_id = \\$1\\) ORDER BY created_at ASC").
		WithArgs("user-a", "user-b").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "content", "is_read", "created_at"}).
			AddRow("m-1", "user-a", "user-b", "hi", true, now.Add(-time.Minute)).
			AddRow("m-2", "user-b", "user-a", "hello", false, now))

	messages, err := service.ListMessages(ctx(), "user-a", "user-b")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "m-1", messages[0].ID)
	assert.Equal(t, "user-b", messages[1].SenderID)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestMessageService_MarkConversationRead(t *testing.T) {
	service, dbMock, publisher, _ := newTestMessages(t)

	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE messages SET is_read = TRUE WHERE sender_id = \\$1 AND receiver_id = \\$2 AND is_read = FALSE").
		WithArgs("user-b", "user-a").
		WillReturnResult(sqlmock.NewResult(0, 3))
	dbMock.ExpectExec("UPDATE conversations SET unread_count = 0 WHERE user_id = \\$1 AND other_user_id = \\$2").
		WithArgs("user-a", "user-b").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()

	marked, err := service.MarkConversationRead(ctx(), "user-a", "user-b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
	publisher.AssertCalled(t, "Publish", "user-b", "messages_read", map[string]string{"by": "user-a"})
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("é", 150)
	assert.Equal(t, strings.Repeat("é", 100)+"…", preview(long))
}
