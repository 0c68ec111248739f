package models

import (
	"time"
)

// LedgerTransaction is an immutable signed movement of coins for one user.
type LedgerTransaction struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"userId" db:"user_id"`
	Amount       int64     `json:"amount" db:"amount"` // signed, in BC
	Reason       string    `json:"reason" db:"reason"`
	RelatedID    string    `json:"relatedId,omitempty" db:"related_id"`
	BalanceAfter int64     `json:"balanceAfter" db:"balance_after"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Ledger reasons
const (
	ReasonSignupBonus = "signup_bonus"
	ReasonTradeDebit  = "trade_payment"
	ReasonTradeCredit = "trade_income"
	ReasonAdjustment  = "adjustment"
)

// Account is the locked view of a profile's balance inside a ledger transaction.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Balance   int64     `json:"balance" db:"coin_balance"`
	Version   int       `json:"version" db:"version"` // for optimistic locking
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Reconciliation compares a stored balance with the sum of its ledger history.
type Reconciliation struct {
	UserID     string `json:"userId"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledgerSum"`
	Entries    int64  `json:"entries"`
	Consistent bool   `json:"consistent"`
}
