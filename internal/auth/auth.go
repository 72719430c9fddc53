package auth

import (
	"context"
	"time"
)

// ─────────────────────────────────────────────
// Account represents a registered requester.
// ─────────────────────────────────────────────

type Account struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	Email      string     `json:"email" gorm:"uniqueIndex"`
	Password   string     `json:"-"` // bcrypt hash, never serialised
	APIKey     string     `json:"api_key" gorm:"uniqueIndex"`   // non-expiring key, issued on register
	Status     string     `json:"status" gorm:"default:active"` // active | banned
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ─────────────────────────────────────────────
// AccountService – the single auth interface.
// ─────────────────────────────────────────────

type AccountService interface {
	// Register creates a new account via email + password.
	// A unique API key is generated and returned with the Account.
	Register(ctx context.Context, email, password string) (*Account, error)

	// Login authenticates via email + password, returns the account (incl. API key).
	Login(ctx context.Context, email, password string) (*Account, error)

	// GetByAPIKey looks up an account by its API key.
	// This is the main method used by the auth middleware on every request.
	GetByAPIKey(ctx context.Context, apiKey string) (*Account, error)

	// GetByID retrieves an account by its internal ID.
	GetByID(ctx context.Context, accountID string) (*Account, error)

	// ResetAPIKey regenerates the account's API key (invalidates old one).
	ResetAPIKey(ctx context.Context, accountID string) (*Account, error)
}
