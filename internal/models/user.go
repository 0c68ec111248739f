package models

import "time"

// Profile is a marketplace member. CoinBalance is only ever changed by the ledger.
type Profile struct {
	ID           string    `json:"id" db:"id" example:"3f0e8d0a-4a53-4a8e-9a9e-0d1f3c2b7a11"`
	Email        string    `json:"email" db:"email" example:"user@example.com"`
	Username     string    `json:"username" db:"username" example:"swapper42"`
	DisplayName  string    `json:"displayName" db:"display_name" example:"Jane Doe"`
	AvatarURL    string    `json:"avatarUrl,omitempty" db:"avatar_url"`
	Bio          string    `json:"bio,omitempty" db:"bio"`
	Location     string    `json:"location,omitempty" db:"location"`
	CoinBalance  int64     `json:"coinBalance" db:"coin_balance" example:"100"`
	Version      int       `json:"-" db:"version"` // for optimistic locking
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
	PasswordHash string    `json:"-" db:"password_hash"`
}

// PublicProfile is the subset of a profile visible to other members.
type PublicProfile struct {
	ID          string `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	DisplayName string `json:"displayName" db:"display_name"`
	AvatarURL   string `json:"avatarUrl,omitempty" db:"avatar_url"`
	Location    string `json:"location,omitempty" db:"location"`
}

func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Location:    p.Location,
	}
}
