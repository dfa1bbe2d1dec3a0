package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Client-facing account messages.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgUserExists         = "User already exists"
	MsgOldPasswordWrong   = "Old password is incorrect"
	MsgUserNotFound       = "User not found"
)

var errUserExists = &apperrors.AppError{
	Code:    "ALREADY_EXISTS",
	Message: MsgUserExists,
	Status:  http.StatusConflict,
	Err:     apperrors.ErrAlreadyExists,
}

// UserService implements signup, login, token refresh and password changes.
type UserService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	tokens TokenIssuer
	events UserEventPublisher
	logger *slog.Logger

	// dummyHash is compared against when the email is unknown.
	dummyHash string
}

// fallbackDummyHash is a cost-12 bcrypt hash of a random string, used when
// the hasher cannot produce one at startup.
const fallbackDummyHash = "$2b$12$Q9Yw0n3vXk7Lr2Fh8TzJbebmsE2dmYPSfZpJP.bYbgfbG/S3JvLrG"

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	tokens TokenIssuer,
	events UserEventPublisher,
	logger *slog.Logger,
) *UserService {
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		logger.Warn("using fallback hash for unknown-email logins", slog.String("error", err.Error()))
		dummy = fallbackDummyHash
	}
	return &UserService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		events:    events,
		logger:    logger,
		dummyHash: dummy,
	}
}

// RegisterInput holds the parameters for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// TokenPair is an access token and its companion refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by Login.
type LoginResult struct {
	User   *domain.User
	Tokens TokenPair
}

// Register creates a customer account. The role is never taken from input.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.create(ctx, in, domain.RoleCustomer)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role string) (*domain.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        domain.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, errUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
	)
	return user, nil
}

// Login checks credentials and issues a token pair. Unknown emails and wrong
// passwords produce the same error and comparable latency.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("login: %w", err)
		}
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, apperrors.Unauthorized(MsgInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh mints a new access token and a rotated refresh token for the
// subject of an already verified refresh token. The user is reloaded so a
// role change takes effect at the next refresh.
func (s *UserService) Refresh(ctx context.Context, userID string) (TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return TokenPair{}, apperrors.Unauthorized(auth.ErrInvalidToken.Error())
		}
		return TokenPair{}, fmt.Errorf("refresh: %w", err)
	}
	return s.issuePair(user)
}

// ChangePassword replaces the password after verifying the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound(MsgUserNotFound)
		}
		return fmt.Errorf("change password: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperrors.Unauthorized(MsgOldPasswordWrong)
		}
		return fmt.Errorf("change password: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return nil
}

// Profile returns the account of userID.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgUserNotFound)
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the configured admin account on first start. An
// existing account with that email is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, in RegisterInput) error {
	existing, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(in.Email))
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			s.logger.WarnContext(ctx, "bootstrap admin email belongs to a non-admin account",
				slog.String("user_id", existing.ID))
		}
		return nil
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("look up admin: %w", err)
	}

	user, err := s.create(ctx, in, domain.RoleAdmin)
	if err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.InfoContext(ctx, "admin account created", slog.String("user_id", user.ID))
	return nil
}

func (s *UserService) issuePair(user *domain.User) (TokenPair, error) {
	access, err := s.tokens.Issue(user, auth.KindAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(user, auth.KindRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
