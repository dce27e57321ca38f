package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/indicadores/apiserver/internal/apperr"
	"github.com/indicadores/apiserver/internal/auth"
	"github.com/indicadores/apiserver/internal/policy"
	"github.com/indicadores/apiserver/internal/store"
	"github.com/indicadores/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Deactivate(ctx context.Context, id int) error
}

// NewUserInput carries the fields of an account created by an administrator.
type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     types.Role
}

// UserUpdate carries the writable fields of an existing account. An empty
// Password keeps the current one. The e-mail cannot be changed.
type UserUpdate struct {
	Name     string
	Password string
	Role     types.Role
}

const (
	userNotFound    = "user not found"
	emailRegistered = "email already registered"
)

// Credential limits. bcrypt rejects passwords longer than 72 bytes and the
// email column holds 150 characters.
const (
	minPasswordLen   = 6
	maxPasswordBytes = 72
	maxEmailLen      = 150
)

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return apperr.Validation("password must be at least 6 characters")
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("password must be at most 72 bytes")
	}
	return nil
}

func (s *UserService) List(ctx context.Context, caller policy.Caller) ([]types.User, error) {
	if err := policy.Authorize(caller, policy.ManageUsers); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	return users, translate(err, userNotFound, emailRegistered)
}

func (s *UserService) Get(ctx context.Context, caller policy.Caller, id int) (types.User, error) {
	if err := policy.Authorize(caller, policy.ManageUsers); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, id)
	return user, translate(err, userNotFound, emailRegistered)
}

// Profile returns the caller's own active account.
func (s *UserService) Profile(ctx context.Context, caller policy.Caller) (types.User, error) {
	if err := policy.Authorize(caller, policy.ViewProfile); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, caller.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Unauthorized("unauthorized")
	}
	return user, translate(err, userNotFound, emailRegistered)
}

func (s *UserService) Create(ctx context.Context, caller policy.Caller, in NewUserInput) (types.User, error) {
	if err := policy.Authorize(caller, policy.ManageUsers); err != nil {
		return types.User{}, err
	}
	return s.create(ctx, in)
}

// SeedAdministrator creates an administrator account without a caller. It
// backs the operator command used to bootstrap an empty database.
func (s *UserService) SeedAdministrator(ctx context.Context, name, email, password string) (types.User, error) {
	return s.create(ctx, NewUserInput{Name: name, Email: email, Password: password, Role: types.RoleAdministrator})
}

func (s *UserService) create(ctx context.Context, in NewUserInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" {
		return types.User{}, apperr.Validation("name and email are required")
	}
	if utf8.RuneCountInString(in.Email) > maxEmailLen {
		return types.User{}, apperr.Validation("email must be at most 150 characters")
	}
	if in.Role == "" {
		in.Role = types.RoleUser
	}
	if !in.Role.Valid() {
		return types.User{}, apperr.Validation("invalid role")
	}
	if err := checkPassword(in.Password); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, apperr.Conflict(emailRegistered)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Internal("failed to check user", err)
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, apperr.Internal("failed to create user", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hashed,
	})
	return user, translate(err, userNotFound, emailRegistered)
}

func (s *UserService) Update(ctx context.Context, caller policy.Caller, id int, in UserUpdate) (types.User, error) {
	if err := policy.Authorize(caller, policy.ManageUsers); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, translate(err, userNotFound, emailRegistered)
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return types.User{}, apperr.Validation("invalid role")
		}
		user.Role = in.Role
	}
	if in.Password != "" {
		if err := checkPassword(in.Password); err != nil {
			return types.User{}, err
		}
		hashed, err := auth.HashPassword(in.Password)
		if err != nil {
			return types.User{}, apperr.Internal("failed to update user", err)
		}
		user.PasswordHash = hashed
	}

	updated, err := s.repo.Update(ctx, user)
	return updated, translate(err, userNotFound, emailRegistered)
}

// Delete deactivates the account. Its calculations are kept.
func (s *UserService) Delete(ctx context.Context, caller policy.Caller, id int) error {
	if err := policy.Authorize(caller, policy.ManageUsers); err != nil {
		return err
	}
	return translate(s.repo.Deactivate(ctx, id), userNotFound, emailRegistered)
}
