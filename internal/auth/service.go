package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ─────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrEmailExists       = errors.New("email already registered")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidAPIKey     = errors.New("invalid api key")
)

// ─────────────────────────────────────────────
// accountService implements AccountService
// ─────────────────────────────────────────────

type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountService backed by the given DB.
func NewAccountService(db *gorm.DB) AccountService {
	return &accountService{db: db}
}

// Register creates a new account with email + password.
func (s *accountService) Register(ctx context.Context, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	// Check if email exists
	var existing Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailExists
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Generate API key
	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hash),
		APIKey:    apiKey,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, err
	}

	return account, nil
}

// Login authenticates via email + password.
func (s *accountService) Login(ctx context.Context, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account Account
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	// Update last used
	now := time.Now()
	account.LastUsedAt = &now
	s.db.WithContext(ctx).Model(&account).Update("last_used_at", now)

	return &account, nil
}

// GetByAPIKey looks up an account by API key.
func (s *accountService) GetByAPIKey(ctx context.Context, apiKey string) (*Account, error) {
	var account Account
	if err := s.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}
	return &account, nil
}

// GetByID retrieves an account by ID.
func (s *accountService) GetByID(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	if err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// ResetAPIKey regenerates the account's API key.
func (s *accountService) ResetAPIKey(ctx context.Context, accountID string) (*Account, error) {
	var account Account
	if err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	newKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	account.APIKey = newKey
	account.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&account).Error; err != nil {
		return nil, err
	}

	return &account, nil
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// generateAPIKey creates a new API key with "zg-" prefix.
func generateAPIKey() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "zg-" + hex.EncodeToString(bytes), nil
}
