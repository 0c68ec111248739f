package handlers

import (
	"context"
	"net/http"

	"github.com/bartermarket/backend/internal/models"
	"github.com/bartermarket/backend/internal/services"
)

type ListingService interface {
	Create(ctx context.Context, ownerID string, in models.ListingInput) (*models.Listing, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
	Update(ctx context.Context, id, requesterID string, patch models.ListingPatch) (*models.Listing, error)
	Archive(ctx context.Context, id, requesterID string) (*models.Listing, error)
	Delete(ctx context.Context, id, requesterID string) error
	List(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
	Categories(ctx context.Context) ([]string, error)
}

type ShareService interface {
	ListingQRCode(ctx context.Context, listingID string) (*services.ListingShare, error)
}

type ListingHandler struct {
	service   ListingService
	share     ShareService
	validator *services.ValidationHelper
}

func NewListingHandler(service ListingService, share ShareService) *ListingHandler {
	return &ListingHandler{
		service:   service,
		share:     share,
		validator: services.NewValidationHelper(),
	}
}

// CreateListingRequest represents a new listing
// @Description Listing creation request structure
type CreateListingRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255" example:"Road bike"`
	Description string `json:"description" validate:"required,min=10,max=2000" example:"Aluminium frame, 54cm, new tyres"`
	Category    string `json:"category" validate:"required,max=100" example:"sports"`
	Price       int64  `json:"price" validate:"gte=0" example:"120"` // in BC
	Location    string `json:"location" validate:"omitempty,max=255" example:"Lisbon"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url,max=2048"`
}

// UpdateListingRequest carries the fields to change; omitted fields stay as they are
// @Description Listing update request structure
type UpdateListingRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,min=10,max=2000"`
	Category    *string `json:"category" validate:"omitempty,min=1,max=100"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,max=2048"`
}

// Create publishes a listing owned by the caller
// @Summary Create listing
// @Tags Listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateListingRequest true "Listing"
// @Success 201 {object} models.Listing
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /listings [post]
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateListingRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	listing, err := h.service.Create(r.Context(), userID, models.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Location:    req.Location,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, listing)
}

// Get returns one listing
// @Summary Get listing
// @Tags Listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	listing, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// Update edits a listing owned by the caller
// @Summary Update listing
// @Tags Listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Param request body UpdateListingRequest true "Changed fields"
// @Success 200 {object} models.Listing
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [put]
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateListingRequest
	if !decodeRequest(w, r, h.validator, &req) {
		return
	}

	listing, err := h.service.Update(r.Context(), listingID, userID, models.ListingPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Location:    req.Location,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// Archive withdraws an active listing from the market
// @Summary Archive listing
// @Tags Listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 200 {object} models.Listing
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /listings/{id}/archive [post]
func (h *ListingHandler) Archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	listing, err := h.service.Archive(r.Context(), listingID, userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// Delete removes a listing owned by the caller
// @Summary Delete listing
// @Tags Listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 200 {object} object{success=bool}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id} [delete]
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), listingID, userID); err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// List browses active listings
// @Summary Browse listings
// @Tags Listings
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size, at most 100"
// @Param category query string false "Exact category"
// @Param search query string false "Case-insensitive match on title or description"
// @Success 200 {object} models.ListingPage
// @Failure 400 {object} services.ErrorResponse
// @Router /listings [get]
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	q := r.URL.Query()
	result, err := h.service.List(r.Context(), models.ListingFilter{
		Page:     page,
		Limit:    limit,
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Mine lists the caller's own listings in every state but deleted
// @Summary My listings
// @Tags Listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Listing
// @Router /users/me/listings [get]
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	listings, err := h.service.ListByOwner(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listings)
}

// Categories lists categories that have active listings
// @Summary Listing categories
// @Tags Listings
// @Produce json
// @Success 200 {array} string
// @Router /listings/categories [get]
func (h *ListingHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

// QRCode returns a scannable share code for an active listing
// @Summary Listing share code
// @Tags Listings
// @Produce json
// @Param id path string true "Listing ID"
// @Success 200 {object} services.ListingShare
// @Failure 404 {object} services.ErrorResponse
// @Router /listings/{id}/qr [get]
func (h *ListingHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	listingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	share, err := h.share.ListingQRCode(r.Context(), listingID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, share)
}
