// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values (never *http.Request) and return domain
// errors from internal/apperror. The handler layer maps those to status
// codes. Every service depends on repository interfaces, so tests can pass
// hand-written fakes or a real in-memory SQLite database.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/auth"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

// invalidCredentials is deliberately identical for "no such email" and
// "wrong password". Clients treat it as a form error (400), not an auth failure.
const invalidCredentials = "Invalid credentials"

// AuthService handles registration and login.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository     → read/write user records
//   - activity   repository.ActivityRepository → login audit trail
//   - tokens     *auth.TokenService            → issue JWTs
//   - passwords  *auth.PasswordService         → bcrypt hashing
//   - logger     *slog.Logger                  → structured logging
type AuthService struct {
	users     repository.UserRepository
	activity  repository.ActivityRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	activity repository.ActivityRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		activity:  activity,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName"  validate:"max=100"`
	Email     string `json:"email"     validate:"required,email,max=254"`
	Password  string `json:"password"  validate:"required,max=72"`
	Role      string `json:"role"`
}

// AuthResult bundles the issued JWT and the public user record.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates an account and logs it in.
//
// An empty or unknown role silently becomes "default"; there is no
// self-service path to an elevated role other than asking for it at sign-up.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if in.Email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", "Please enter all required fields")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	role := model.Role(in.Role)
	if !role.Valid() {
		role = model.RoleDefault
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "User already exists", Field: "email"}
		}
		s.logger.Error("failed to create user", slog.String("email", in.Email), slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("role", string(user.Role)))

	return s.issue(user)
}

// Login verifies credentials and issues a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Please enter all required fields")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.ValidationFailed("", invalidCredentials)
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed audit write never blocks a login.
	if err := s.activity.Record(ctx, &model.Activity{
		UserID:      user.ID,
		Type:        model.ActivityLogin,
		Description: "Logged in",
	}); err != nil {
		s.logger.Warn("failed to record login activity", slog.String("userID", user.ID), slog.String("error", err.Error()))
	}

	return res, nil
}

// Me returns the caller's public user record.
func (s *AuthService) Me(ctx context.Context, id *model.Identity) (*model.User, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	return s.users.GetByID(ctx, id.UserID)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(model.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
