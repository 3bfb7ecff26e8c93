package domain

import "time"

// Session is one refresh-token grant. The opaque token string is the primary
// key; revoked rows are kept so a replayed token is recognized and rejected
// rather than silently unknown.
type Session struct {
	Token     string
	AccountID string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Usable reports whether the session can still be redeemed at the given instant.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
