package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skillbit/marketplace/internal/domain"
	"github.com/skillbit/marketplace/internal/repository"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/pkg/config"
	"github.com/skillbit/marketplace/pkg/crypto"
	jwtpkg "github.com/skillbit/marketplace/pkg/jwt"
)

var (
	// ErrInvalidCredentials is returned for a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when the signup email already exists.
	ErrEmailTaken = errors.New("email already registered")

	errInvalidEmail    = errors.New("email is required")
	errInvalidPassword = errors.New("password must be at least 6 characters")
	errInvalidName     = errors.New("name is required")
	errInvalidRole     = errors.New("role must be job_seeker or recruiter")
	errMissingCompany  = errors.New("recruiter company is required")
)

// SignupInput encapsulates registration attributes.
type SignupInput struct {
	Email       string
	Name        string
	Password    string
	Role        string
	Company     string
	Designation string
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Service handles authentication workflows.
type Service struct {
	users  repository.UserRepository
	ledger ledger.Service
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, ledgerSvc ledger.Service, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, ledger: ledgerSvc, logger: logger, cfg: cfg}
}

// Signup registers a new user and seeds job seekers with the signing bonus.
func (s Service) Signup(ctx context.Context, input SignupInput) (*domain.User, TokenPair, error) {
	if err := validateSignup(&input); err != nil {
		return nil, TokenPair{}, err
	}
	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		Role:         input.Role,
		Company:      input.Company,
		Designation:  input.Designation,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, TokenPair{}, ErrEmailTaken
		}
		return nil, TokenPair{}, err
	}
	if user.Role == domain.RoleJobSeeker && s.cfg.SignupBonusCredits > 0 {
		balance, err := s.ledger.Earn(ctx, user.Email, domain.ReasonSignupBonus, s.cfg.SignupBonusCredits)
		if err != nil {
			s.logger.Error("signup bonus failed", "user_id", user.ID, "error", err)
		} else {
			user.Credits = balance
		}
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, tokens, nil
}

// Login authenticates a user and returns tokens.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, TokenPair, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user and claims.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s Service) issueTokens(user *domain.User) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(user.ID, user.Email, user.Role, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(user.ID, user.Email, user.Role, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}

func validateSignup(input *SignupInput) error {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	input.Role = strings.TrimSpace(strings.ToLower(input.Role))
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return errInvalidEmail
	}
	if len(input.Password) < 6 {
		return errInvalidPassword
	}
	if input.Name == "" {
		return errInvalidName
	}
	switch input.Role {
	case domain.RoleJobSeeker:
	case domain.RoleRecruiter:
		if strings.TrimSpace(input.Company) == "" {
			return errMissingCompany
		}
	default:
		return errInvalidRole
	}
	return nil
}
