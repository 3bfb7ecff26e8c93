package repository

import (
	"context"
	"database/sql"
	"errors"

	"umbra-auth/internal/account/domain"
	"umbra-auth/internal/db"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account with the given email, or nil if not found.
// The lookup is case-insensitive to match the unique index on lower(email).
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE lower(email) = lower($1)`, email)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set; it is not
// assigned by this method. Returns ErrDuplicateEmail when the unique index on
// lower(email) rejects the row.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// Delete removes the account. Refresh tokens cascade via the foreign key.
// Deleting a missing account is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
