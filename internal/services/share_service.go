package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const shareCacheTTL = time.Hour

// ListingShare is a scannable link to a listing.
type ListingShare struct {
	ListingID string `json:"listingId"`
	URL       string `json:"url"`
	QRImage   string `json:"qrImage"` // base64 PNG
}

// ShareService renders QR codes that point at public listing pages.
type ShareService struct {
	listings *ListingService
	redis    *redis.Client
	config   *config.MarketConfig
	log      *zap.Logger
}

func NewShareService(listings *ListingService, redisClient *redis.Client, cfg *config.MarketConfig, log *zap.Logger) *ShareService {
	return &ShareService{
		listings: listings,
		redis:    redisClient,
		config:   cfg,
		log:      log,
	}
}

func (s *ShareService) ListingQRCode(ctx context.Context, listingID string) (*ListingShare, error) {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("%w: listing is no longer available", ErrNotFound)
	}

	share := &ListingShare{
		ListingID: listing.ID,
		URL:       s.listingURL(listing.ID),
	}

	key := fmt.Sprintf("share:qr:%s", listing.ID)
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			share.QRImage = cached
			return share, nil
		}
		if err != redis.Nil {
			s.log.Warn("[SHARE] cache read failed", zap.Error(err))
		}
	}

	image, err := renderQRCode(share.URL, s.config.QRCodeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}
	share.QRImage = image

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, image, shareCacheTTL).Err(); err != nil {
			s.log.Warn("[SHARE] cache write failed", zap.Error(err))
		}
	}

	return share, nil
}

func (s *ShareService) listingURL(listingID string) string {
	return strings.TrimRight(s.config.PublicBaseURL, "/") + "/listings/" + listingID
}

func renderQRCode(content string, size int) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
