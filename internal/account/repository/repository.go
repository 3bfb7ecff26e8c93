package repository

import (
	"context"
	"errors"

	"umbra-auth/internal/account/domain"
)

// ErrDuplicateEmail is returned by Create when the email is already taken.
// The accounts table enforces uniqueness on lower(email), so this is
// authoritative even under concurrent registration.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Delete(ctx context.Context, id string) error
}
