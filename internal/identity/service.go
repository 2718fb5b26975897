package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// AccountOpener prepares the balance account of a freshly registered user.
type AccountOpener interface {
	EnsureAccount(ctx context.Context, userID string) error
}

// Service manages identity lifecycle.
type Service struct {
	repo     Repository
	accounts AccountOpener
	logger   *slog.Logger
}

// NewService creates a new identity service. accounts may be nil when the
// balance store needs no per-user setup.
func NewService(repo Repository, accounts AccountOpener, logger *slog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, logger: logger}
}

// Register creates a new customer and stores a hashed password.
func (s *Service) Register(ctx context.Context, reg Registration) (User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" {
		return User{}, errors.New("username is required")
	}
	if len(reg.Password) < minPasswordLength {
		return User{}, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Username:     reg.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(reg.FullName),
		Email:        strings.TrimSpace(reg.Email),
		PhoneNumber:  strings.TrimSpace(reg.PhoneNumber),
		Address:      strings.TrimSpace(reg.Address),
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if s.accounts != nil {
		if err := s.accounts.EnsureAccount(ctx, user.ID); err != nil {
			return User{}, fmt.Errorf("open balance account: %w", err)
		}
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Authenticate verifies a username and password.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns the user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByUsername resolves a login name to a user.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

// SetPushToken binds a device token to the user. An empty token unbinds it.
func (s *Service) SetPushToken(ctx context.Context, id, token string) error {
	return s.repo.UpdatePushToken(ctx, id, strings.TrimSpace(token))
}
