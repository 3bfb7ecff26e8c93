package repository

import (
	"context"
	"errors"
	"time"

	"umbra-auth/internal/session/domain"
)

var (
	// ErrDuplicateToken is returned by Create and Rotate when the minted token
	// collides with an existing row. Callers regenerate and retry.
	ErrDuplicateToken = errors.New("refresh token already exists")
	// ErrTokenNotUsable is returned by Rotate when the presented token is
	// unknown, revoked, or expired. The three cases are deliberately
	// indistinguishable to callers.
	ErrTokenNotUsable = errors.New("refresh token not usable")
)

// Repository defines persistence for refresh-token sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByToken(ctx context.Context, token string) (*domain.Session, error)
	// Revoke marks the session revoked. Revoking an unknown or already revoked
	// token is not an error.
	Revoke(ctx context.Context, token string) error
	// Rotate atomically revokes the old token and persists the replacement.
	// Only a token that is unrevoked and unexpired at the database's clock can
	// rotate; concurrent rotations of the same token serialize on the row, so
	// at most one wins and the rest get ErrTokenNotUsable.
	Rotate(ctx context.Context, oldToken string, next *domain.Session) error
	// DeleteExpired removes rows whose expiry is before the cutoff, revoked or
	// not. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
