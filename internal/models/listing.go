package models

import "time"

type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "ACTIVE"
	ListingStatusArchived ListingStatus = "ARCHIVED"
	ListingStatusDeleted  ListingStatus = "DELETED"
)

// Listing is an item or service offered by exactly one owner.
type Listing struct {
	ID          string        `json:"id" db:"id"`
	OwnerID     string        `json:"ownerId" db:"owner_id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Category    string        `json:"category" db:"category"`
	Price       int64         `json:"price" db:"price"` // in BC
	Status      ListingStatus `json:"status" db:"status"`
	Location    string        `json:"location,omitempty" db:"location"`
	ImageURL    string        `json:"imageUrl,omitempty" db:"image_url"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}

// ListingInput carries the fields of a new listing.
type ListingInput struct {
	Title       string
	Description string
	Category    string
	Price       int64
	Location    string
	ImageURL    string
}

// ListingPatch carries optional field updates; nil means unchanged.
type ListingPatch struct {
	Title       *string
	Description *string
	Category    *string
	Price       *int64
	Location    *string
	ImageURL    *string
}

// ListingFilter selects a page of active listings.
type ListingFilter struct {
	Page     int
	Limit    int
	Category string
	Search   string
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type ListingPage struct {
	Listings   []Listing  `json:"listings"`
	Pagination Pagination `json:"pagination"`
}
