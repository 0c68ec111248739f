package services

import (
	"encoding/base64"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestShare(t *testing.T) (*ShareService, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.LoadMarketConfig()
	cfg.PublicBaseURL = "https://barter.example/"
	client, redisMock := redismock.NewClientMock()

	return NewShareService(NewListingService(db, cfg, zap.NewNop()), client, cfg, zap.NewNop()), dbMock, redisMock
}

func TestShareService_ListingQRCode(t *testing.T) {
	t.Run("renders and caches", func(t *testing.T) {
		service, dbMock, redisMock := newTestShare(t)

		expectListing(dbMock, "listing-1", "owner-1", models.ListingStatusActive)
		expected, err := renderQRCode("https://barter.example/listings/listing-1", 256)
		require.NoError(t, err)

		redisMock.ExpectGet("share:qr:listing-1").RedisNil()
		redisMock.ExpectSet("share:qr:listing-1", expected, shareCacheTTL).SetVal("OK")

		share, err := service.ListingQRCode(ctx(), "listing-1")
		require.NoError(t, err)
		assert.Equal(t, "https://barter.example/listings/listing-1", share.URL)
		assert.Equal(t, expected, share.QRImage)

		png, err := base64.StdEncoding.DecodeString(share.QRImage)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(png[:4]))

		assert.NoError(t, dbMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("served from cache", func(t *testing.T) {
		service, dbMock, redisMock := newTestShare(t)

		expectListing(dbMock, "listing-1", "owner-1", models.ListingStatusActive)
		redisMock.ExpectGet("share:qr:listing-1").SetVal("cached-image")

		share, err := service.ListingQRCode(ctx(), "listing-1")
		require.NoError(t, err)
		assert.Equal(t, "cached-image", share.QRImage)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("archived listing cannot be shared", func(t *testing.T) {
		service, dbMock, _ := newTestShare(t)

		expectListing(dbMock, "listing-1", "owner-1", models.ListingStatusArchived)

		_, err := service.ListingQRCode(ctx(), "listing-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
