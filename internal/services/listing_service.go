package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bartermarket/backend/internal/config"
	"github.com/bartermarket/backend/internal/metrics"
	"github.com/bartermarket/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const listingColumns = "id, owner_id, title, description, category, price, status, location, image_url, created_at, updated_at"

const (
	insertListingSQL = `
		INSERT INTO listings (id, owner_id, title, description, category, price, status, location, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	selectListingSQL = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	lockListingSQL = `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

	updateListingSQL = `
		UPDATE listings
		SET title = $1, description = $2, category = $3, price = $4, location = $5, image_url = $6, updated_at = $7
		WHERE id = $8`

	updateListingStatusSQL = `UPDATE listings SET status = $1, updated_at = $2 WHERE id = $3`

	archiveActiveListingSQL = `UPDATE listings SET status = 'ARCHIVED', updated_at = $1 WHERE id = $2 AND status = 'ACTIVE'`

	selectOwnerListingsSQL = `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE owner_id = $1 AND status <> 'DELETED'
		ORDER BY created_at DESC, id DESC`

	selectCategoriesSQL = `SELECT DISTINCT category FROM listings WHERE status = 'ACTIVE' ORDER BY category`
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

// ListingService manages the lifecycle of listings. Only the owner may
// mutate a listing and DELETED listings are invisible to every read.
type ListingService struct {
	db     *sql.DB
	config *config.MarketConfig
	log    *zap.Logger
}

func NewListingService(db *sql.DB, cfg *config.MarketConfig, log *zap.Logger) *ListingService {
	return &ListingService{db: db, config: cfg, log: log}
}

func (s *ListingService) Create(ctx context.Context, ownerID string, in models.ListingInput) (*models.Listing, error) {
	now := time.Now().UTC()
	listing := &models.Listing{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Status:      models.ListingStatusActive,
		Location:    strings.TrimSpace(in.Location),
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := validateListing(listing); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, insertListingSQL,
		listing.ID, listing.OwnerID, listing.Title, listing.Description, listing.Category, listing.Price,
		string(listing.Status), listing.Location, listing.ImageURL, listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	metrics.ListingsChanged.WithLabelValues("created").Inc()
	s.log.Info("[LISTING] created", zap.String("listing_id", listing.ID), zap.String("owner_id", ownerID))
	return listing, nil
}

// Get returns a listing in any state except DELETED.
func (s *ListingService) Get(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := scanListing(s.db.QueryRowContext(ctx, selectListingSQL, id))
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingStatusDeleted {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	return listing, nil
}

func (s *ListingService) Update(ctx context.Context, id, requesterID string, patch models.ListingPatch) (*models.Listing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin listing update: %w", err)
	}
	defer tx.Rollback()

	listing, err := s.lockOwned(ctx, tx, id, requesterID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		listing.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		listing.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		listing.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		listing.Price = *patch.Price
	}
	if patch.Location != nil {
		listing.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.ImageURL != nil {
		listing.ImageURL = *patch.ImageURL
	}

	if err := validateListing(listing); err != nil {
		return nil, err
	}

	listing.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx, updateListingSQL,
		listing.Title, listing.Description, listing.Category, listing.Price, listing.Location, listing.ImageURL,
		listing.UpdatedAt, listing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit listing update: %w", err)
	}

	metrics.ListingsChanged.WithLabelValues("updated").Inc()
	return listing, nil
}

// Archive moves an ACTIVE listing to ARCHIVED.
func (s *ListingService) Archive(ctx context.Context, id, requesterID string) (*models.Listing, error) {
	return s.transition(ctx, id, requesterID, models.ListingStatusArchived)
}

// Delete hides the listing for good. The row is kept with status DELETED so
// trades that reference it stay intact.
func (s *ListingService) Delete(ctx context.Context, id, requesterID string) error {
	_, err := s.transition(ctx, id, requesterID, models.ListingStatusDeleted)
	return err
}

func (s *ListingService) transition(ctx context.Context, id, requesterID string, to models.ListingStatus) (*models.Listing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin listing transition: %w", err)
	}
	defer tx.Rollback()

	listing, err := s.lockOwned(ctx, tx, id, requesterID)
	if err != nil {
		return nil, err
	}

	if to == models.ListingStatusArchived && listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("%w: listing is %s", ErrInvalidTransition, listing.Status)
	}

	listing.Status = to
	listing.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, updateListingStatusSQL, string(to), listing.UpdatedAt, listing.ID); err != nil {
		return nil, fmt.Errorf("failed to update listing status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit listing transition: %w", err)
	}

	metrics.ListingsChanged.WithLabelValues(strings.ToLower(string(to))).Inc()
	s.log.Info("[LISTING] status changed",
		zap.String("listing_id", id),
		zap.String("status", string(to)))
	return listing, nil
}

// ArchiveTx archives an ACTIVE listing inside the caller's transaction. A
// listing that is already ARCHIVED or DELETED fails with ErrInvalidTransition,
// so the caller's transaction must be rolled back.
func (s *ListingService) ArchiveTx(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, archiveActiveListingSQL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive listing %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to archive listing %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: listing %s is not active", ErrInvalidTransition, id)
	}
	return nil
}

// List returns a page of ACTIVE listings, newest first.
func (s *ListingService) List(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	page, limit := s.config.ClampPage(filter.Page, filter.Limit)

	where := []string{"status = $1"}
	args := []any{string(models.ListingStatusActive)}

	if category := strings.TrimSpace(filter.Category); category != "" {
		args = append(args, category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM listings WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		listingColumns, clause, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings, err := collectListings(rows)
	if err != nil {
		return nil, err
	}

	return &models.ListingPage{
		Listings: listings,
		Pagination: models.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: int((total + int64(limit) - 1) / int64(limit)),
		},
	}, nil
}

// ListByOwner returns the owner's ACTIVE and ARCHIVED listings.
func (s *ListingService) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, selectOwnerListingsSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// Categories returns the distinct categories of ACTIVE listings.
func (s *ListingService) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, selectCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *ListingService) lockOwned(ctx context.Context, tx *sql.Tx, id, requesterID string) (*models.Listing, error) {
	listing, err := scanListing(tx.QueryRowContext(ctx, lockListingSQL, id))
	if err != nil {
		return nil, err
	}
	if listing.Status == models.ListingStatusDeleted {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	if listing.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: only the owner can modify this listing", ErrForbidden)
	}
	return listing, nil
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category, &l.Price,
		&l.Status, &l.Location, &l.ImageURL, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: listing", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return &l, nil
}

func collectListings(rows *sql.Rows) ([]models.Listing, error) {
	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func validateListing(l *models.Listing) error {
	if n := utf8.RuneCountInString(l.Title); n < 3 || n > 255 {
		return validationf("title must be between 3 and 255 characters")
	}
	if n := utf8.RuneCountInString(l.Description); n < 10 || n > 2000 {
		return validationf("description must be between 10 and 2000 characters")
	}
	if l.Category == "" {
		return validationf("category is required")
	}
	if l.Price < 0 {
		return validationf("price must not be negative")
	}
	return nil
}
