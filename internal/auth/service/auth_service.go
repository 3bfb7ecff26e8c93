package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	accountdomain "umbra-auth/internal/account/domain"
	accountrepo "umbra-auth/internal/account/repository"
	"umbra-auth/internal/security"
	sessiondomain "umbra-auth/internal/session/domain"
	sessionrepo "umbra-auth/internal/session/repository"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrAccountNotFound     = errors.New("account not found")
)

// AuthResult holds the outcome of Register, Login, or Refresh: the owning
// account plus a fresh token pair.
type AuthResult struct {
	AccountID    string
	Email        string
	AccessToken  string
	RefreshToken string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	FindByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	Revoke(ctx context.Context, token string) error
	Rotate(ctx context.Context, oldToken string, next *sessiondomain.Session) error
}

// EventRecorder records auth lifecycle events. Implementations must not block
// the request path; a nil recorder disables recording.
type EventRecorder interface {
	Record(ctx context.Context, event, accountID string)
}

// AuthService implements register, login, refresh, logout, and profile lookup.
// All cross-request coordination goes through the repositories; the service
// itself holds no mutable state.
type AuthService struct {
	accounts AccountRepo
	sessions SessionRepo
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	events   EventRecorder
}

// NewAuthService returns an AuthService with the given dependencies. events may be nil.
func NewAuthService(accounts AccountRepo, sessions SessionRepo, hasher *security.Hasher, tokens *security.TokenProvider, events EventRecorder) *AuthService {
	return &AuthService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		events:   events,
	}
}

// Register creates an account with the given email and password and signs it
// in. Returns ValidationErrors for bad input and ErrEmailTaken for a duplicate
// email, whether caught by the pre-check or by the store's unique constraint
// when two registrations race.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	normalized, verrs := ValidateCredentials(email, password)
	if verrs != nil {
		return nil, verrs
	}
	existing, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	account := &accountdomain.Account{
		ID:           uuid.New().String(),
		Email:        normalized,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, accountrepo.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	// The account commit and the first session are separate store calls. If
	// the session insert fails the account stays committed: the client sees a
	// server error and a register retry answers ErrEmailTaken, but the stored
	// credentials are valid and Login succeeds.
	result, err := s.issueSession(ctx, account)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "registered", account.ID)
	return result, nil
}

// Login authenticates with email and password and issues a fresh token pair.
// An unknown email and a wrong password both return ErrInvalidCredentials so
// responses carry no account-enumeration signal.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	normalized, verrs := ValidateCredentials(email, password)
	if verrs != nil {
		return nil, verrs
	}
	account, err := s.accounts.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	result, err := s.issueSession(ctx, account)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "login", account.ID)
	return result, nil
}

// Refresh redeems a refresh token for a new pair. The presented token is
// revoked and the replacement created in one store transaction, so a token
// refreshes at most once no matter how many requests race. Unknown, revoked,
// and expired tokens all return ErrInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	session, err := s.sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !session.Usable(time.Now().UTC()) {
		if session.Revoked {
			s.record(ctx, "reuse_rejected", session.AccountID)
		}
		return nil, ErrInvalidRefreshToken
	}
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidRefreshToken
	}
	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		return nil, err
	}
	next := &sessiondomain.Session{
		Token:     pair.RefreshToken,
		AccountID: account.ID,
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Rotate(ctx, refreshToken, next); err != nil {
		if errors.Is(err, sessionrepo.ErrTokenNotUsable) {
			// Someone else rotated or revoked it between our read and the
			// transaction. Same answer as any spent token.
			s.record(ctx, "reuse_rejected", session.AccountID)
			return nil, ErrInvalidRefreshToken
		}
		if errors.Is(err, sessionrepo.ErrDuplicateToken) {
			if next.Token, err = security.NewRefreshToken(); err != nil {
				return nil, err
			}
			if err := s.sessions.Rotate(ctx, refreshToken, next); err != nil {
				if errors.Is(err, sessionrepo.ErrTokenNotUsable) {
					return nil, ErrInvalidRefreshToken
				}
				return nil, err
			}
		} else {
			return nil, err
		}
	}
	s.record(ctx, "rotated", account.ID)
	return &AuthResult{
		AccountID:    account.ID,
		Email:        account.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: next.Token,
	}, nil
}

// Logout revokes the session for the given refresh token. Unknown, already
// revoked, and expired tokens all succeed; logout is idempotent and leaks
// nothing about token validity.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, refreshToken); err != nil {
		return err
	}
	s.record(ctx, "logout", "")
	return nil
}

// Me returns the account for the given id, typically the subject of a
// validated access token. Returns ErrAccountNotFound when the account was
// deleted after the token was issued.
func (s *AuthService) Me(ctx context.Context, accountID string) (*accountdomain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *AuthService) issueSession(ctx context.Context, account *accountdomain.Account) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(account.ID)
	if err != nil {
		return nil, err
	}
	session := &sessiondomain.Session{
		Token:     pair.RefreshToken,
		AccountID: account.ID,
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	err = s.sessions.Create(ctx, session)
	if errors.Is(err, sessionrepo.ErrDuplicateToken) {
		// 256-bit tokens do not collide in practice, but the store reports it
		// and one retry costs nothing.
		if session.Token, err = security.NewRefreshToken(); err != nil {
			return nil, err
		}
		err = s.sessions.Create(ctx, session)
	}
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccountID:    account.ID,
		Email:        account.Email,
		AccessToken:  pair.AccessToken,
		RefreshToken: session.Token,
	}, nil
}

func (s *AuthService) record(ctx context.Context, event, accountID string) {
	if s.events == nil {
		return
	}
	s.events.Record(ctx, event, accountID)
}
