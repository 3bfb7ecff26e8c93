package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"umbra-auth/internal/db"
	"umbra-auth/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// Create persists the session. Returns ErrDuplicateToken when the token
// collides with an existing row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, account_id, revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.Token, s.AccountID, s.Revoked, s.ExpiresAt, s.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateToken
	}
	return err
}

// FindByToken returns the session for the token, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT token, account_id, revoked, expires_at, created_at FROM refresh_tokens WHERE token = $1`,
		token).Scan(&s.Token, &s.AccountID, &s.Revoked, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Revoke marks the session with the given token as revoked. Revoking an
// unknown or already revoked token succeeds without effect.
func (r *PostgresRepository) Revoke(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// Rotate revokes oldToken and inserts next in one transaction. The conditional
// UPDATE takes the row lock, so for any number of concurrent rotations of the
// same token exactly one sees a row flip from usable to revoked; the others
// observe zero rows affected and get ErrTokenNotUsable.
func (r *PostgresRepository) Rotate(ctx context.Context, oldToken string, next *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE
		 WHERE token = $1 AND revoked = FALSE AND expires_at > $2`,
		oldToken, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTokenNotUsable
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, account_id, revoked, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		next.Token, next.AccountID, next.Revoked, next.ExpiresAt, next.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateToken
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteExpired removes rows whose expiry is before cutoff. Revoked rows past
// their expiry carry no replay signal anymore, so they go too.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
