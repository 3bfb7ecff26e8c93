package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	accountdomain "umbra-auth/internal/account/domain"
	accountrepo "umbra-auth/internal/account/repository"
	"umbra-auth/internal/security"
	sessiondomain "umbra-auth/internal/session/domain"
	sessionrepo "umbra-auth/internal/session/repository"
)

type memAccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*accountdomain.Account
	byEmail map[string]*accountdomain.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		byID:    map[string]*accountdomain.Account{},
		byEmail: map[string]*accountdomain.Account{},
	}
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memAccountRepo) GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memAccountRepo) Create(ctx context.Context, a *accountdomain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return accountrepo.ErrDuplicateEmail
	}
	a2 := *a
	r.byID[a.ID] = &a2
	r.byEmail[a.Email] = &a2
	return nil
}

type memSessionRepo struct {
	mu        sync.Mutex
	m         map[string]*sessiondomain.Session
	createErr error // returned once by the next Create
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: map[string]*sessiondomain.Session{}}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	if _, ok := r.m[s.Token]; ok {
		return sessionrepo.ErrDuplicateToken
	}
	s2 := *s
	r.m[s.Token] = &s2
	return nil
}

func (r *memSessionRepo) FindByToken(ctx context.Context, token string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[token]; ok {
		s2 := *s
		return &s2, nil
	}
	return nil, nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[token]; ok {
		s.Revoked = true
	}
	return nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, oldToken string, next *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.m[oldToken]
	if !ok || !old.Usable(time.Now().UTC()) {
		return sessionrepo.ErrTokenNotUsable
	}
	if _, ok := r.m[next.Token]; ok {
		return sessionrepo.ErrDuplicateToken
	}
	old.Revoked = true
	s2 := *next
	r.m[next.Token] = &s2
	return nil
}

func (r *memSessionRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, s := range r.m {
		if s.Usable(now) {
			n++
		}
	}
	return n
}

type memEventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *memEventRecorder) Record(ctx context.Context, event, accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *memEventRecorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestService(t *testing.T) (*AuthService, *memAccountRepo, *memSessionRepo, *memEventRecorder) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	accounts := newMemAccountRepo()
	sessions := newMemSessionRepo()
	events := &memEventRecorder{}
	svc := NewAuthService(accounts, sessions, security.NewHasher(bcrypt.MinCost), tokens, events)
	return svc, accounts, sessions, events
}

func TestRegister(t *testing.T) {
	svc, accounts, sessions, events := newTestService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "X@y.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Email != "x@y.com" {
		t.Errorf("email not normalized: got %q", res.Email)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("token pair missing from result")
	}
	stored, _ := accounts.GetByEmail(ctx, "x@y.com")
	if stored == nil {
		t.Fatal("account not persisted under normalized email")
	}
	if stored.PasswordHash == "StrongPass123" {
		t.Fatal("password stored in plaintext")
	}
	if n := sessions.activeCount(); n != 1 {
		t.Errorf("want 1 active session, got %d", n)
	}
	if !events.has("registered") {
		t.Error("registered event not recorded")
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), "not-an-email", "short")
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("want ValidationErrors, got %v", err)
	}
	if _, ok := verrs["email"]; !ok {
		t.Error("email error missing")
	}
	if _, ok := verrs["password"]; !ok {
		t.Error("password error missing")
	}
}

func TestRegister_OversizedPassword(t *testing.T) {
	// bcrypt refuses inputs over 72 bytes; the validator must catch that as a
	// field error before hashing, never a server error.
	svc, _, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), "long@b.com", strings.Repeat("a", 80))
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("want ValidationErrors, got %v", err)
	}
	if verrs["password"] == "" {
		t.Errorf("want a password field error, got %v", verrs)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@b.com", "StrongPass123"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := svc.Register(ctx, "a@b.com", "OtherPass456"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register: want ErrEmailTaken, got %v", err)
	}
	// Different case and extra whitespace normalize to the same email.
	if _, err := svc.Register(ctx, "  A@B.COM ", "OtherPass456"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("case-variant duplicate: want ErrEmailTaken, got %v", err)
	}
}

func TestRegister_DuplicateRace(t *testing.T) {
	// Pre-check misses the duplicate; the store's constraint catches it and the
	// service still answers ErrEmailTaken, not a generic failure.
	svc, accounts, _, _ := newTestService(t)
	ctx := context.Background()
	// nil entry: GetByEmail reports no account, Create still sees the key taken.
	accounts.byEmail["a@b.com"] = nil
	if _, err := svc.Register(ctx, "a@b.com", "StrongPass123"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("racing register: want ErrEmailTaken, got %v", err)
	}
}

func TestRegister_SessionCreateFailureLeavesAccountUsable(t *testing.T) {
	// The account commit and the first session insert are separate calls. When
	// the session insert fails the account survives: the failed register
	// surfaces a store error, a retry reports the email taken, and a plain
	// login with the same credentials succeeds.
	svc, _, sessions, _ := newTestService(t)
	ctx := context.Background()

	sessions.mu.Lock()
	sessions.createErr = errors.New("connection refused")
	sessions.mu.Unlock()
	_, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err == nil {
		t.Fatal("Register should surface the session store failure")
	}
	var verrs ValidationErrors
	if errors.As(err, &verrs) || errors.Is(err, ErrEmailTaken) {
		t.Fatalf("store failure must not masquerade as a client error, got %v", err)
	}

	if _, err := svc.Register(ctx, "a@b.com", "StrongPass123"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("register retry: want ErrEmailTaken, got %v", err)
	}
	res, err := svc.Login(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Login after failed register: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Error("login should issue a full token pair")
	}
}

func TestLogin(t *testing.T) {
	svc, _, sessions, events := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "A@B.com ", "StrongPass123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("token pair missing from result")
	}
	if n := sessions.activeCount(); n != 2 {
		t.Errorf("want 2 active sessions after register+login, got %d", n)
	}
	if !events.has("login") {
		t.Error("login event not recorded")
	}
}

func TestLogin_WrongPasswordAndUnknownEmail(t *testing.T) {
	svc, _, sessions, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "a@b.com", "StrongPass123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	before := sessions.activeCount()

	_, errWrong := svc.Login(ctx, "a@b.com", "WrongPass123")
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("wrong password: want ErrInvalidCredentials, got %v", errWrong)
	}
	_, errUnknown := svc.Login(ctx, "nobody@b.com", "StrongPass123")
	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown email: want ErrInvalidCredentials, got %v", errUnknown)
	}
	// Same error either way; nothing distinguishes a wrong password from a
	// missing account.
	if !errors.Is(errWrong, errUnknown) && errWrong.Error() != errUnknown.Error() {
		t.Error("credential failures should be indistinguishable")
	}
	if n := sessions.activeCount(); n != before {
		t.Errorf("failed login created a session: %d -> %d", before, n)
	}
}

func TestRefresh_RotatesExactlyOnce(t *testing.T) {
	svc, _, sessions, events := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Refresh(ctx, reg.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.RefreshToken == reg.RefreshToken {
		t.Fatal("refresh returned the same token")
	}
	if res.AccountID != reg.AccountID || res.Email != "a@b.com" {
		t.Errorf("refresh result owner mismatch: %+v", res)
	}
	if n := sessions.activeCount(); n != 1 {
		t.Errorf("want exactly 1 active session after rotation, got %d", n)
	}
	if !events.has("rotated") {
		t.Error("rotated event not recorded")
	}

	// The spent token is now revoked; presenting it again must fail.
	if _, err := svc.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("second refresh with spent token: want ErrInvalidRefreshToken, got %v", err)
	}
	if !events.has("reuse_rejected") {
		t.Error("reuse_rejected event not recorded")
	}
}

func TestRefresh_ConcurrentSameToken(t *testing.T) {
	svc, _, sessions, _ := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, reg.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidRefreshToken):
		default:
			t.Errorf("unexpected refresh error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("want exactly 1 winning refresh, got %d", wins)
	}
	if n := sessions.activeCount(); n != 1 {
		t.Errorf("want exactly 1 active session, got %d", n)
	}
}

func TestRefresh_UnknownExpiredRevoked(t *testing.T) {
	svc, _, sessions, _ := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Refresh(ctx, "no-such-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("unknown token: want ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := svc.Refresh(ctx, ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("empty token: want ErrInvalidRefreshToken, got %v", err)
	}

	// Expire the session in place; the error class matches an invalid token.
	sessions.mu.Lock()
	sessions.m[reg.RefreshToken].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	sessions.mu.Unlock()
	if _, err := svc.Refresh(ctx, reg.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expired token: want ErrInvalidRefreshToken, got %v", err)
	}

	// A logged-out token is never refreshable.
	login, err := svc.Login(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("revoked token: want ErrInvalidRefreshToken, got %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	svc, _, sessions, _ := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, reg.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := sessions.activeCount(); n != 0 {
		t.Errorf("want 0 active sessions after logout, got %d", n)
	}
	// Second logout with the same token, and logout with a token that was
	// never issued, both succeed.
	if err := svc.Logout(ctx, reg.RefreshToken); err != nil {
		t.Errorf("second Logout: %v", err)
	}
	if err := svc.Logout(ctx, "never-issued"); err != nil {
		t.Errorf("Logout with unknown token: %v", err)
	}
}

func TestMe(t *testing.T) {
	svc, accounts, _, _ := newTestService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "a@b.com", "StrongPass123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	account, err := svc.Me(ctx, reg.AccountID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if account.Email != "a@b.com" {
		t.Errorf("Me email: want a@b.com, got %q", account.Email)
	}

	// Account deleted after token issuance.
	accounts.mu.Lock()
	delete(accounts.byID, reg.AccountID)
	accounts.mu.Unlock()
	if _, err := svc.Me(ctx, reg.AccountID); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("deleted account: want ErrAccountNotFound, got %v", err)
	}
}
