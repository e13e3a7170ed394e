package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/pkg/config"
)

func TestSignupJobSeekerGetsBonus(t *testing.T) {
	env := newTestEnv(t)

	user, tokens, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "Sam@Example.com",
		Name:     "Sam",
		Password: "hunter22",
		Role:     "job_seeker",
	})
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if user.Email != "sam@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.Credits != 50 {
		t.Fatalf("expected signup bonus of 50 credits, got %d", user.Credits)
	}
	if len(env.credits.txs) != 1 || env.credits.txs[0].Reason != domain.ReasonSignupBonus {
		t.Fatalf("expected one signup bonus ledger entry, got %+v", env.credits.txs)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
}

func TestSignupRecruiterGetsNoBonus(t *testing.T) {
	env := newTestEnv(t)

	user, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "hr@corp.com",
		Name:     "HR",
		Password: "hunter22",
		Role:     "recruiter",
		Company:  "Corp",
	})
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if user.Credits != 0 {
		t.Fatalf("expected no credits for recruiter, got %d", user.Credits)
	}
	if len(env.credits.txs) != 0 {
		t.Fatalf("expected no ledger entries, got %d", len(env.credits.txs))
	}
}

func TestSignupRecruiterRequiresCompany(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "hr@corp.com",
		Name:     "HR",
		Password: "hunter22",
		Role:     "recruiter",
	})
	if err == nil {
		t.Fatal("expected validation error for missing company")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.users.createErr = repository.ErrConflict

	_, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "sam@example.com",
		Name:     "Sam",
		Password: "hunter22",
		Role:     "job_seeker",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "sam@example.com",
		Name:     "Sam",
		Password: "12345",
		Role:     "job_seeker",
	})
	if err == nil {
		t.Fatal("expected validation error for short password")
	}
}

func TestLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	signedUp, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "sam@example.com",
		Name:     "Sam",
		Password: "hunter22",
		Role:     "job_seeker",
	})
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	user, tokens, err := env.svc.Login(context.Background(), "Sam@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != signedUp.ID {
		t.Fatalf("expected the signed-up user, got %q", user.ID)
	}
	if tokens.AccessToken == "" {
		t.Fatal("expected an access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "sam@example.com",
		Name:     "Sam",
		Password: "hunter22",
		Role:     "job_seeker",
	}); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, _, err := env.svc.Login(context.Background(), "sam@example.com", "wrong-pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.Login(context.Background(), "ghost@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthorizeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	signedUp, tokens, err := env.svc.Signup(context.Background(), SignupInput{
		Email:    "sam@example.com",
		Name:     "Sam",
		Password: "hunter22",
		Role:     "job_seeker",
	})
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	user, claims, err := env.svc.Authorize(context.Background(), tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if user.ID != signedUp.ID {
		t.Fatalf("expected the signed-up user, got %q", user.ID)
	}
	if claims.Role != domain.RoleJobSeeker {
		t.Fatalf("expected job_seeker claims, got %q", claims.Role)
	}
}

func TestAuthorizeRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)
	if _, _, err := env.svc.Authorize(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

type testEnv struct {
	svc     Service
	users   *fakeUserRepo
	credits *creditStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := &testEnv{
		users:   &fakeUserRepo{byEmail: make(map[string]*domain.User)},
		credits: &creditStore{},
	}
	cfg := config.APIConfig{
		JWTSecret:          "test-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		SignupBonusCredits: 50,
	}
	env.svc = New(env.users, ledger.New(env.credits, nil, logger), logger, cfg)
	return env
}

type fakeUserRepo struct {
	byEmail   map[string]*domain.User
	createErr error
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[user.Email]; exists {
		return repository.ErrConflict
	}
	copied := *user
	f.byEmail[user.Email] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range f.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type creditStore struct {
	balance int
	txs     []domain.CreditTransaction
}

func (c *creditStore) ApplyCredits(_ context.Context, tx *domain.CreditTransaction) (int, error) {
	if c.balance+tx.Delta < 0 {
		return 0, repository.ErrInsufficientBalance
	}
	c.balance += tx.Delta
	c.txs = append(c.txs, *tx)
	return c.balance, nil
}

func (c *creditStore) ListTransactions(context.Context, string, int) ([]domain.CreditTransaction, error) {
	return c.txs, nil
}

func (c *creditStore) MarkPhoneVerified(context.Context, string) (bool, error)    { return false, nil }
func (c *creditStore) MarkLinkedInVerified(context.Context, string) (bool, error) { return false, nil }
func (c *creditStore) SetResumeText(context.Context, string, string) (bool, error) {
	return false, nil
}

func (c *creditStore) GetWallet(_ context.Context, email string) (*domain.Wallet, error) {
	return &domain.Wallet{UserEmail: email}, nil
}

func (c *creditStore) ApplyWallet(_ context.Context, tx *domain.WalletTransaction) (*domain.Wallet, error) {
	return &domain.Wallet{UserEmail: tx.UserEmail}, nil
}

func (c *creditStore) ListWalletTransactions(context.Context, string, int) ([]domain.WalletTransaction, error) {
	return nil, nil
}
