package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTTLNotConfigured is returned when the provider was built with a
	// non-positive lifetime. Config validation catches this at startup; the
	// per-call check is the defensive backstop.
	ErrTTLNotConfigured = errors.New("token ttl is not configured")
)

// AccessClaims holds JWT claims for the access token. Subject is the account id.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// TokenPair is one issuance: a signed short-lived access token, an opaque
// refresh token, and the instant the refresh token stops being usable.
// RefreshExpiresAt is computed from a single clock read so the caller and the
// session store agree on "now".
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenProvider issues and validates access JWTs (RS256 or ES256) and mints
// opaque refresh tokens. Refresh tokens are random, never signed, and only
// meaningful to the session store.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on access-token checks.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssuePair mints an access/refresh pair for the given account. Both expiries
// derive from one time.Now call.
func (p *TokenProvider) IssuePair(accountID string) (*TokenPair, error) {
	if p.accessTTL <= 0 || p.refreshTTL <= 0 {
		return nil, ErrTTLNotConfigured
	}
	now := time.Now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
	}
	access, err := p.sign(claims)
	if err != nil {
		return nil, err
	}
	refresh, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(p.refreshTTL),
	}, nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns the account id from the subject claim.
func (p *TokenProvider) ValidateAccess(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// NewRefreshToken returns a fresh opaque refresh token: 32 random bytes,
// hex-encoded. Collisions are practically unreachable but the session store
// still guards against them with a unique key.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
