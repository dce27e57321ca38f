package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/auth"
	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// TokenIssuer signs access tokens. *auth.TokenManager satisfies it.
type TokenIssuer interface {
	Issue(user types.User) (string, time.Time, error)
}

// LoginLimiter throttles repeated failed logins for the same key.
type LoginLimiter interface {
	// Blocked reports how long key must wait before trying again, or 0.
	Blocked(ctx context.Context, key string) (time.Duration, error)
	// Fail records a failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset clears the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

// AuthResult is returned by both Register and Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

// AuthService verifies credentials and issues tokens.
type AuthService struct {
	users   UserRepository
	signup  *UserService
	tokens  TokenIssuer
	limiter LoginLimiter
	logger  *slog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithLoginLimiter enables login throttling.
func WithLoginLimiter(l LoginLimiter) AuthOption {
	return func(s *AuthService) {
		s.limiter = l
	}
}

// WithAuthLogger sets the logger used for limiter failures.
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(s *AuthService) {
		s.logger = logger
	}
}

func NewAuthService(users UserRepository, tokens TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:  users,
		signup: NewUserService(users),
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a User-role account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	user, err := s.signup.create(ctx, NewUserInput{Name: name, Email: email, Password: password, Role: types.RoleUser})
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(user)
}

// Login checks the credentials of an active account and returns a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, apperr.Validation("missing credentials")
	}

	if s.limiter != nil {
		wait, err := s.limiter.Blocked(ctx, email)
		if err != nil {
			s.logger.Warn("login limiter unavailable", "error", err)
		} else if wait > 0 {
			return AuthResult{}, apperr.TooManyRequests("too many failed login attempts", wait)
		}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, apperr.Internal("failed to authenticate", err)
	}

	hash := ""
	if err == nil && user.Active {
		hash = user.PasswordHash
	}
	if err := auth.CheckPassword(hash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			return AuthResult{}, apperr.Internal("failed to authenticate", err)
		}
		s.recordFailure(ctx, email)
		return AuthResult{}, apperr.Unauthorized("invalid credentials")
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.Warn("login limiter reset failed", "error", err)
		}
	}
	return s.issue(user)
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Fail(ctx, email); err != nil {
		s.logger.Warn("login limiter unavailable", "error", err)
	}
}

func (s *AuthService) issue(user types.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, apperr.Internal("failed to create token", err)
	}
	return AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
