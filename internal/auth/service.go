package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tiendita-shop/tiendita/internal/shared"
)

// Service implements account lifecycle and credential checks.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the auth service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SignUp creates an unconfirmed account. The returned user carries the
// confirmation token to be delivered by mail.
func (s *Service) SignUp(ctx context.Context, email, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		ConfirmToken: uuid.NewString(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", slog.String("user_id", user.ID))
	return &user, nil
}

// Confirm spends a confirmation token and activates the account.
func (s *Service) Confirm(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	user, err := s.repo.FindByConfirmToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if err := s.repo.MarkConfirmed(ctx, user.ID); err != nil {
		return nil, err
	}
	s.logger.Info("email confirmed", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate verifies credentials. Unknown addresses and wrong passwords
// collapse into the same error so the login form never reveals which one it
// was. Unconfirmed accounts are reported separately so the form can tell the
// user to check their inbox.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return user, nil
}

// RegisterSession records a login session row for auditing.
func (s *Service) RegisterSession(ctx context.Context, sessionID, userID string, ttl time.Duration, ip, ua string) error {
	return s.repo.CreateSession(ctx, sessionID, userID, time.Now().Add(ttl), ip, ua)
}

// RemoveSession drops the session audit row on logout.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

// PruneExpiredSessions removes stale audit rows. Run from the background
// worker.
func (s *Service) PruneExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, time.Now())
}
