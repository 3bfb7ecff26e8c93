package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationErrors maps a field name to a human-readable problem with it.
// It is returned as an error so the handler can map it to a 400 with the
// field-keyed errors object.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

// One @, a dot somewhere in the domain, no whitespace. Deliverability is the
// mail server's problem, not ours.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Minimum counts characters, not bytes, so multi-byte passwords measure the
// way users do. Maximum is bcrypt's 72-byte input limit; anything longer must
// be rejected here rather than surface as a hashing failure.
const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

// NormalizeEmail trims surrounding whitespace and lowercases. All storage and
// lookups go through this so `"A@B.com "` and `"a@b.com"` are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks both fields independently and returns the
// normalized email together with every problem found, so a request with a bad
// email and a short password reports both at once. A nil second return means
// the input is acceptable.
func ValidateCredentials(email, password string) (string, ValidationErrors) {
	errs := ValidationErrors{}
	normalized := NormalizeEmail(email)
	if normalized == "" {
		errs["email"] = "email is required"
	} else if !emailPattern.MatchString(normalized) {
		errs["email"] = "invalid email format"
	}
	if password == "" {
		errs["password"] = "password is required"
	} else if utf8.RuneCountInString(password) < minPasswordLength {
		errs["password"] = "password must be at least 8 characters"
	} else if len(password) > maxPasswordBytes {
		errs["password"] = "password must be at most 72 bytes"
	}
	if len(errs) > 0 {
		return "", errs
	}
	return normalized, nil
}
