package domain

import (
	"errors"
	"time"
)

// Account is the core account entity. Email is stored trimmed and lowercased;
// callers normalize before persistence.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("id is required")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
