package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity record returned by GET /auth/me.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	FullName      *string   `json:"full_name"`
	GoogleID      *string   `json:"google_id"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// DisplayName returns the full name when set, the email otherwise.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

// Profile is the optional decoration record stored at /profiles/me.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate is the body of PUT /profiles/me. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Plan describes the user's subscription plan and usage counters.
type Plan struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Plan              string    `json:"plan"`
	FreeUses          int       `json:"free_uses"`
	UsesCount         int       `json:"uses_count"`
	HotmartPurchaseID *string   `json:"hotmart_purchase_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// RemainingFreeUses reports how many free uses are left, never below zero.
func (p Plan) RemainingFreeUses() int {
	if left := p.FreeUses - p.UsesCount; left > 0 {
		return left
	}
	return 0
}
