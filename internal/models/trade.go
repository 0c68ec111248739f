package models

import "time"

type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusAccepted  TradeStatus = "ACCEPTED"
	TradeStatusRejected  TradeStatus = "REJECTED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
	TradeStatusCompleted TradeStatus = "COMPLETED"
)

// Terminal reports whether no further transition is allowed from s.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeStatusRejected, TradeStatusCancelled, TradeStatusCompleted:
		return true
	}
	return false
}

type TradeDecision string

const (
	DecisionAccept TradeDecision = "ACCEPT"
	DecisionReject TradeDecision = "REJECT"
)

// Trade is a negotiation between an initiator and the owner of the requested listing.
type Trade struct {
	ID                string      `json:"id" db:"id"`
	InitiatorID       string      `json:"initiatorId" db:"initiator_id"`
	ResponderID       string      `json:"responderId" db:"responder_id"`
	ListingID         string      `json:"listingId" db:"listing_id"`
	ProposedListingID string      `json:"proposedListingId,omitempty" db:"proposed_listing_id"`
	CoinAmount        int64       `json:"coinAmount" db:"coin_amount"`
	Message           string      `json:"message,omitempty" db:"message"`
	Status            TradeStatus `json:"status" db:"status"`
	CreatedAt         time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time   `json:"updatedAt" db:"updated_at"`
	CompletedAt       *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
}

// IsParty reports whether userID is the initiator or the responder.
func (t *Trade) IsParty(userID string) bool {
	return userID == t.InitiatorID || userID == t.ResponderID
}

// Counterpart returns the other party of the trade.
func (t *Trade) Counterpart(userID string) string {
	if userID == t.InitiatorID {
		return t.ResponderID
	}
	return t.InitiatorID
}

// TradeOffer is what the initiator puts on the table.
type TradeOffer struct {
	ProposedListingID string
	CoinAmount        int64
	Message           string
}

// TradeCompletion is the outcome of a completed trade.
type TradeCompletion struct {
	Trade         *Trade              `json:"trade"`
	LedgerEntries []LedgerTransaction `json:"ledgerEntries"`
}
